package formulas

import (
	"gonum.org/v1/gonum/stat"
)

// Mean calculates the arithmetic mean of a slice of float64 values
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Mean(data, nil)
}

// StdDev calculates the standard deviation of a slice of float64 values
func StdDev(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.StdDev(data, nil)
}

// CalculateReturns converts prices to percentage returns
// Returns[i] = (Price[i] - Price[i-1]) / Price[i-1]
func CalculateReturns(prices []float64) []float64 {
	if len(prices) < 2 {
		return []float64{}
	}

	returns := make([]float64, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i-1] != 0 {
			returns[i-1] = (prices[i] - prices[i-1]) / prices[i-1]
		}
	}

	return returns
}

// Correlation computes the Pearson correlation of two return series.
// Series are truncated to the shorter length, aligned from the end
// (most recent observations). Returns 0 when fewer than two aligned
// points exist or either series is constant.
func Correlation(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if n < 2 {
		return 0
	}

	x := a[len(a)-n:]
	y := b[len(b)-n:]

	if StdDev(x) == 0 || StdDev(y) == 0 {
		return 0
	}

	r := stat.Correlation(x, y, nil)
	if isNaN(r) {
		return 0
	}
	return r
}

// isNaN checks if a float64 is NaN
func isNaN(f float64) bool {
	return f != f
}
