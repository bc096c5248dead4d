package formulas

import (
	"github.com/markcheno/go-talib"
)

// VolumeRatio returns the last bar's volume relative to a simple
// moving average of the preceding bars.
//
// A ratio below 1.0 means the bar traded under its recent baseline,
// which is what Wyckoff spring scoring keys on (low volume on the
// penetration bar signals a lack of supply).
//
// Returns nil if fewer than length+1 bars are available.
func VolumeRatio(volumes []float64, length int) *float64 {
	if len(volumes) < length+1 || length < 2 {
		return nil
	}

	sma := talib.Sma(volumes[:len(volumes)-1], length)
	baseline := sma[len(sma)-1]
	if isNaN(baseline) || baseline <= 0 {
		return nil
	}

	ratio := volumes[len(volumes)-1] / baseline
	return &ratio
}

// VolumeTrendSlope fits the recent volume series with a linear
// regression and returns the normalized slope. A negative slope means
// volume is drying up across the structure.
//
// Returns nil if fewer than length bars are available.
func VolumeTrendSlope(volumes []float64, length int) *float64 {
	if len(volumes) < length || length < 2 {
		return nil
	}

	reg := talib.LinearRegSlope(volumes, length)
	slope := reg[len(reg)-1]
	if isNaN(slope) {
		return nil
	}

	mean := Mean(volumes[len(volumes)-length:])
	if mean <= 0 {
		return nil
	}

	normalized := slope / mean
	return &normalized
}
