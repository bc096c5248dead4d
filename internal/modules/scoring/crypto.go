package scoring

import (
	"github.com/aristath/wyckoff-trader/internal/domain"
)

// CryptoScorer scores crypto patterns. Exchange volume is real but
// fragmented across venues and prone to wash trading, so it carries
// less weight than stock volume and the ceiling sits at 90.
type CryptoScorer struct{}

// NewCryptoScorer creates a crypto scorer
func NewCryptoScorer() *CryptoScorer {
	return &CryptoScorer{}
}

func (s *CryptoScorer) AssetClass() domain.AssetClass { return domain.AssetClassCrypto }

func (s *CryptoScorer) VolumeReliability() domain.VolumeReliability {
	return domain.VolumeReliabilityMedium
}

func (s *CryptoScorer) MaxConfidence() float64 { return 90 }

var (
	cryptoSpringVolume = []breakpoint{
		{0.3, 30}, {0.5, 22}, {0.7, 14}, {1.0, 6},
	}
	cryptoSpringPenetration = []breakpoint{
		{1.0, 30}, {2.0, 22}, {3.0, 15}, {5.0, 8},
	}
	cryptoSpringRecovery = []breakpoint{
		{3, 20}, {5, 14}, {7, 8},
	}
)

// ScoreSpring scores volume/penetration/recovery for spring-family events
func (s *CryptoScorer) ScoreSpring(p domain.Pattern) domain.ConfidenceScore {
	components := map[string]float64{
		"volume":      scoreBelow(p.VolumeRatio, cryptoSpringVolume),
		"penetration": scoreBelow(p.PenetrationPct, cryptoSpringPenetration),
		"recovery":    scoreBelow(float64(p.RecoveryBars), cryptoSpringRecovery),
		"creek_bonus": creekBonus(p),
	}
	if p.VolumeTrend < dryingTrendThreshold {
		components["volume_trend_bonus"] = volumeTrendBonusPoints
	}
	return finalize(components, s)
}

var (
	cryptoSOSVolume = []breakpoint{
		{2.0, 30}, {1.5, 22}, {1.2, 14}, {1.0, 6},
	}
	cryptoSOSSpread = []breakpoint{
		{1.5, 30}, {1.2, 20}, {1.0, 10},
	}
	cryptoSOSClose = []breakpoint{
		{0.8, 20}, {0.65, 14}, {0.5, 6},
	}
)

// ScoreSOS scores volume/spread/close for strength-family events
func (s *CryptoScorer) ScoreSOS(p domain.Pattern) domain.ConfidenceScore {
	components := map[string]float64{
		"volume":      scoreAtOrAbove(p.VolumeRatio, cryptoSOSVolume),
		"spread":      scoreAtOrAbove(p.Spread, cryptoSOSSpread),
		"close":       scoreAtOrAbove(p.ClosePosition, cryptoSOSClose),
		"creek_bonus": creekBonus(p),
	}
	if p.VolumeTrend > risingTrendThreshold {
		components["volume_trend_bonus"] = volumeTrendBonusPoints
	}
	return finalize(components, s)
}
