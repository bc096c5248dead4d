package domain

import "time"

// PatternKind identifies a Wyckoff event/pattern type
type PatternKind string

const (
	PatternSpring PatternKind = "SPRING"
	PatternSOS    PatternKind = "SOS" // Sign of Strength
	PatternLPS    PatternKind = "LPS" // Last Point of Support
	PatternUTAD   PatternKind = "UTAD"
	PatternSC     PatternKind = "SC" // Selling Climax
	PatternAR     PatternKind = "AR" // Automatic Rally
	PatternST     PatternKind = "ST" // Secondary Test
)

// WyckoffPhase represents the accumulation/distribution phase (A-E)
type WyckoffPhase string

const (
	PhaseA       WyckoffPhase = "A"
	PhaseB       WyckoffPhase = "B"
	PhaseC       WyckoffPhase = "C"
	PhaseD       WyckoffPhase = "D"
	PhaseE       WyckoffPhase = "E"
	PhaseUnknown WyckoffPhase = ""
)

// Bar represents a single OHLCV bar
type Bar struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// Pattern is an immutable detection result produced by the external
// phase/event detectors. It is never mutated after creation.
type Pattern struct {
	Kind       PatternKind  `json:"kind"`
	Symbol     string       `json:"symbol"`
	BarIndex   int          `json:"bar_index"`
	DetectedAt time.Time    `json:"detected_at"`
	Phase      WyckoffPhase `json:"phase"`

	// Raw measurements from the detector
	VolumeRatio    float64 `json:"volume_ratio"`    // pattern bar volume / baseline volume
	PenetrationPct float64 `json:"penetration_pct"` // % penetration below support (Spring) or above resistance
	RecoveryBars   int     `json:"recovery_bars"`   // bars to recover back into the range
	Spread         float64 `json:"spread"`          // bar high-low range relative to average
	ClosePosition  float64 `json:"close_position"`  // where the close sits in the bar range (0=low, 1=high)
	CreekStrength  float64 `json:"creek_strength"`  // strength of the resistance line being tested (0-1)
	VolumeTrend    float64 `json:"volume_trend"`    // slope of volume across the structure (negative = drying up)

	// Trading-range context needed for sizing and campaign identity
	RangeStart   time.Time `json:"range_start"`
	RangeSupport float64   `json:"range_support"` // Creek level
	EntryPrice   float64   `json:"entry_price"`
	StopPrice    float64   `json:"stop_price"`
}

// RiskPerUnit returns the per-unit risk between entry and stop.
// A non-positive value means the detector supplied unusable levels.
func (p Pattern) RiskPerUnit() float64 {
	return p.EntryPrice - p.StopPrice
}
