package domain

// AssetClass identifies the market category a symbol trades in.
// The set is closed: scorers exist for exactly these classes.
type AssetClass string

const (
	AssetClassStock  AssetClass = "stock"
	AssetClassForex  AssetClass = "forex"
	AssetClassCrypto AssetClass = "crypto"
)

// VolumeReliability grades how trustworthy reported volume is for an
// asset class. Forex volume is tick volume, not real volume, so bonuses
// that lean on volume behavior are disabled for LOW reliability classes.
type VolumeReliability string

const (
	VolumeReliabilityHigh   VolumeReliability = "HIGH"
	VolumeReliabilityMedium VolumeReliability = "MEDIUM"
	VolumeReliabilityLow    VolumeReliability = "LOW"
)

// ConfidenceScore is the kind-specific component breakdown for a scored
// pattern. Invariant: 0 <= TotalScore <= MaxPossible, where MaxPossible
// is fixed per asset class (100 stock, 85 forex, 90 crypto).
type ConfidenceScore struct {
	Components        map[string]float64 `json:"components"`
	TotalScore        float64            `json:"total_score"`
	AssetClass        AssetClass         `json:"asset_class"`
	VolumeReliability VolumeReliability  `json:"volume_reliability"`
	MaxPossible       float64            `json:"max_possible"`
}
