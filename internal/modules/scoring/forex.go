package scoring

import (
	"github.com/aristath/wyckoff-trader/internal/domain"
)

// ForexScorer scores currency-pair patterns. Forex volume is tick
// volume, not transacted volume, so the weight shifts from volume onto
// price structure (penetration, recovery, spread, close) and the
// volume-trend bonus is disabled. Ceiling is 85: a forex signal can
// never be ranked as confidently as a fully-confirmed stock signal.
type ForexScorer struct{}

// NewForexScorer creates a forex scorer
func NewForexScorer() *ForexScorer {
	return &ForexScorer{}
}

func (s *ForexScorer) AssetClass() domain.AssetClass { return domain.AssetClassForex }

func (s *ForexScorer) VolumeReliability() domain.VolumeReliability {
	return domain.VolumeReliabilityLow
}

func (s *ForexScorer) MaxConfidence() float64 { return 85 }

var (
	forexSpringVolume = []breakpoint{
		{0.3, 10}, {0.5, 8}, {0.7, 5}, {1.0, 2},
	}
	forexSpringPenetration = []breakpoint{
		{1.0, 38}, {2.0, 28}, {3.0, 18}, {5.0, 10},
	}
	forexSpringRecovery = []breakpoint{
		{3, 28}, {5, 20}, {7, 10},
	}
)

// ScoreSpring scores volume/penetration/recovery for spring-family events
func (s *ForexScorer) ScoreSpring(p domain.Pattern) domain.ConfidenceScore {
	components := map[string]float64{
		"volume":      scoreBelow(p.VolumeRatio, forexSpringVolume),
		"penetration": scoreBelow(p.PenetrationPct, forexSpringPenetration),
		"recovery":    scoreBelow(float64(p.RecoveryBars), forexSpringRecovery),
		"creek_bonus": creekBonus(p),
	}
	// Volume-trend bonus withheld: tick volume trend is noise
	return finalize(components, s)
}

var (
	forexSOSVolume = []breakpoint{
		{2.0, 10}, {1.5, 8}, {1.2, 5}, {1.0, 2},
	}
	forexSOSSpread = []breakpoint{
		{1.5, 38}, {1.2, 26}, {1.0, 12},
	}
	forexSOSClose = []breakpoint{
		{0.8, 28}, {0.65, 18}, {0.5, 8},
	}
)

// ScoreSOS scores volume/spread/close for strength-family events
func (s *ForexScorer) ScoreSOS(p domain.Pattern) domain.ConfidenceScore {
	components := map[string]float64{
		"volume":      scoreAtOrAbove(p.VolumeRatio, forexSOSVolume),
		"spread":      scoreAtOrAbove(p.Spread, forexSOSSpread),
		"close":       scoreAtOrAbove(p.ClosePosition, forexSOSClose),
		"creek_bonus": creekBonus(p),
	}
	return finalize(components, s)
}
