package scoring

import (
	"fmt"

	"github.com/aristath/wyckoff-trader/internal/domain"
)

// Scorer is the asset-class-specific confidence scoring strategy.
// The detector set is closed; scorers are the open axis: a new asset
// class is added by implementing this interface, never by modifying an
// existing scorer.
type Scorer interface {
	AssetClass() domain.AssetClass
	VolumeReliability() domain.VolumeReliability
	MaxConfidence() float64
	ScoreSpring(p domain.Pattern) domain.ConfidenceScore
	ScoreSOS(p domain.Pattern) domain.ConfidenceScore
}

// Score dispatches a pattern to the right scoring path for its kind.
// Spring-family events (SPRING, SC, ST, UTAD) are scored on
// volume/penetration/recovery; strength-family events (SOS, LPS, AR)
// on volume/spread/close.
func Score(s Scorer, p domain.Pattern) (domain.ConfidenceScore, error) {
	switch p.Kind {
	case domain.PatternSpring, domain.PatternSC, domain.PatternST, domain.PatternUTAD:
		return s.ScoreSpring(p), nil
	case domain.PatternSOS, domain.PatternLPS, domain.PatternAR:
		return s.ScoreSOS(p), nil
	default:
		return domain.ConfidenceScore{}, fmt.Errorf("unknown pattern kind %q", p.Kind)
	}
}

// breakpoint maps a measurement threshold to awarded points.
type breakpoint struct {
	threshold float64
	points    float64
}

// scoreBelow awards the points of the first breakpoint whose threshold
// the value is strictly below. Lower measurements score higher
// (e.g. spring volume ratio, penetration depth).
func scoreBelow(value float64, ladder []breakpoint) float64 {
	for _, bp := range ladder {
		if value < bp.threshold {
			return bp.points
		}
	}
	return 0
}

// scoreAtOrAbove awards the points of the first breakpoint whose
// threshold the value meets. Higher measurements score higher
// (e.g. SOS volume expansion, close position).
func scoreAtOrAbove(value float64, ladder []breakpoint) float64 {
	for _, bp := range ladder {
		if value >= bp.threshold {
			return bp.points
		}
	}
	return 0
}

// Bonus thresholds shared across asset classes. The volume-trend bonus
// is withheld for LOW-reliability classes (tick volume cannot carry it).
const (
	creekBonusPoints       = 10.0
	creekStrengthThreshold = 0.7

	volumeTrendBonusPoints = 5.0
	dryingTrendThreshold   = -0.05 // spring: supply drying up
	risingTrendThreshold   = 0.05  // SOS: demand expanding
)

// finalize sums components and bonuses, then clamps to the asset-class
// ceiling. Clamping after summation is the invariant that keeps bonuses
// from pushing a score above its class ceiling.
func finalize(components map[string]float64, s Scorer) domain.ConfidenceScore {
	var total float64
	for _, v := range components {
		total += v
	}
	if total > s.MaxConfidence() {
		total = s.MaxConfidence()
	}
	if total < 0 {
		total = 0
	}

	return domain.ConfidenceScore{
		Components:        components,
		TotalScore:        total,
		AssetClass:        s.AssetClass(),
		VolumeReliability: s.VolumeReliability(),
		MaxPossible:       s.MaxConfidence(),
	}
}

// creekBonus awards points when the tested resistance line is strong.
func creekBonus(p domain.Pattern) float64 {
	if p.CreekStrength >= creekStrengthThreshold {
		return creekBonusPoints
	}
	return 0
}
