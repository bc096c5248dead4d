package scoring

import (
	"github.com/aristath/wyckoff-trader/internal/domain"
)

// StockScorer scores equity patterns. Exchange-reported volume is real
// volume, so the volume component carries the most weight and both
// bonuses are available.
type StockScorer struct{}

// NewStockScorer creates a stock scorer
func NewStockScorer() *StockScorer {
	return &StockScorer{}
}

func (s *StockScorer) AssetClass() domain.AssetClass { return domain.AssetClassStock }

func (s *StockScorer) VolumeReliability() domain.VolumeReliability {
	return domain.VolumeReliabilityHigh
}

func (s *StockScorer) MaxConfidence() float64 { return 100 }

// Spring component ladders. A spring penetrates support on low volume
// and recovers quickly; each component rewards that shape.
var (
	stockSpringVolume = []breakpoint{
		{0.3, 40}, {0.5, 30}, {0.7, 20}, {1.0, 10},
	}
	stockSpringPenetration = []breakpoint{
		{1.0, 30}, {2.0, 22}, {3.0, 15}, {5.0, 8},
	}
	stockSpringRecovery = []breakpoint{
		{3, 20}, {5, 14}, {7, 8},
	}
)

// ScoreSpring scores volume/penetration/recovery for spring-family events
func (s *StockScorer) ScoreSpring(p domain.Pattern) domain.ConfidenceScore {
	components := map[string]float64{
		"volume":      scoreBelow(p.VolumeRatio, stockSpringVolume),
		"penetration": scoreBelow(p.PenetrationPct, stockSpringPenetration),
		"recovery":    scoreBelow(float64(p.RecoveryBars), stockSpringRecovery),
		"creek_bonus": creekBonus(p),
	}
	if p.VolumeTrend < dryingTrendThreshold {
		components["volume_trend_bonus"] = volumeTrendBonusPoints
	}
	return finalize(components, s)
}

// SOS component ladders. A sign of strength expands volume and spread
// and closes near the high.
var (
	stockSOSVolume = []breakpoint{
		{2.0, 40}, {1.5, 30}, {1.2, 20}, {1.0, 10},
	}
	stockSOSSpread = []breakpoint{
		{1.5, 30}, {1.2, 20}, {1.0, 10},
	}
	stockSOSClose = []breakpoint{
		{0.8, 30}, {0.65, 20}, {0.5, 10},
	}
)

// ScoreSOS scores volume/spread/close for strength-family events
func (s *StockScorer) ScoreSOS(p domain.Pattern) domain.ConfidenceScore {
	components := map[string]float64{
		"volume":      scoreAtOrAbove(p.VolumeRatio, stockSOSVolume),
		"spread":      scoreAtOrAbove(p.Spread, stockSOSSpread),
		"close":       scoreAtOrAbove(p.ClosePosition, stockSOSClose),
		"creek_bonus": creekBonus(p),
	}
	if p.VolumeTrend > risingTrendThreshold {
		components["volume_trend_bonus"] = volumeTrendBonusPoints
	}
	return finalize(components, s)
}
