package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/wyckoff-trader/internal/domain"
)

// springFixture is a textbook spring: volume dried up to a quarter of
// baseline, shallow penetration, two-bar recovery, strong creek.
func springFixture(symbol string) domain.Pattern {
	return domain.Pattern{
		Kind:           domain.PatternSpring,
		Symbol:         symbol,
		VolumeRatio:    0.25,
		PenetrationPct: 0.8,
		RecoveryBars:   2,
		CreekStrength:  0.8,
	}
}

func TestStockScorer_TextbookSpring(t *testing.T) {
	score := NewStockScorer().ScoreSpring(springFixture("AAPL"))

	assert.Equal(t, 40.0, score.Components["volume"])
	assert.Equal(t, 30.0, score.Components["penetration"])
	assert.Equal(t, 20.0, score.Components["recovery"])
	assert.Equal(t, 10.0, score.Components["creek_bonus"])
	assert.Equal(t, 100.0, score.TotalScore)
	assert.Equal(t, 100.0, score.MaxPossible)
	assert.Equal(t, domain.VolumeReliabilityHigh, score.VolumeReliability)
}

func TestForexScorer_IdenticalInputsClampTo85(t *testing.T) {
	score := NewForexScorer().ScoreSpring(springFixture("EUR/USD"))

	// Raw components sum to 86; the class ceiling clamps to 85
	assert.Equal(t, 10.0, score.Components["volume"])
	assert.Equal(t, 38.0, score.Components["penetration"])
	assert.Equal(t, 28.0, score.Components["recovery"])
	assert.Equal(t, 10.0, score.Components["creek_bonus"])
	assert.Equal(t, 85.0, score.TotalScore)
	assert.Equal(t, 85.0, score.MaxPossible)
}

func TestAssetClassCeilings(t *testing.T) {
	// Maximal inputs for every component and bonus
	p := springFixture("X")
	p.VolumeTrend = -0.10

	tests := []struct {
		name    string
		scorer  Scorer
		ceiling float64
	}{
		{"stock", NewStockScorer(), 100},
		{"forex", NewForexScorer(), 85},
		{"crypto", NewCryptoScorer(), 90},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spring := tt.scorer.ScoreSpring(p)
			assert.LessOrEqual(t, spring.TotalScore, tt.ceiling)
			assert.GreaterOrEqual(t, spring.TotalScore, 0.0)

			sos := tt.scorer.ScoreSOS(domain.Pattern{
				Kind:          domain.PatternSOS,
				VolumeRatio:   3.0,
				Spread:        2.0,
				ClosePosition: 0.95,
				CreekStrength: 0.9,
				VolumeTrend:   0.2,
			})
			assert.LessOrEqual(t, sos.TotalScore, tt.ceiling)
		})
	}
}

func TestForexScorer_NoVolumeTrendBonus(t *testing.T) {
	p := springFixture("EUR/USD")
	p.VolumeTrend = -0.20 // strongly drying volume

	score := NewForexScorer().ScoreSpring(p)
	_, hasBonus := score.Components["volume_trend_bonus"]
	assert.False(t, hasBonus, "tick volume must not earn a trend bonus")
}

func TestStockScorer_VolumeTrendBonus(t *testing.T) {
	p := springFixture("AAPL")
	p.VolumeRatio = 0.6 // leave headroom below the ceiling
	p.VolumeTrend = -0.20

	score := NewStockScorer().ScoreSpring(p)
	assert.Equal(t, 5.0, score.Components["volume_trend_bonus"])
}

func TestScore_DispatchByKind(t *testing.T) {
	s := NewStockScorer()

	springKinds := []domain.PatternKind{
		domain.PatternSpring, domain.PatternSC, domain.PatternST, domain.PatternUTAD,
	}
	for _, kind := range springKinds {
		p := springFixture("AAPL")
		p.Kind = kind
		score, err := Score(s, p)
		require.NoError(t, err)
		assert.Contains(t, score.Components, "penetration", "kind %s", kind)
	}

	sosKinds := []domain.PatternKind{
		domain.PatternSOS, domain.PatternLPS, domain.PatternAR,
	}
	for _, kind := range sosKinds {
		score, err := Score(s, domain.Pattern{Kind: kind, VolumeRatio: 1.6, Spread: 1.3, ClosePosition: 0.7})
		require.NoError(t, err)
		assert.Contains(t, score.Components, "spread", "kind %s", kind)
	}

	_, err := Score(s, domain.Pattern{Kind: "BOGUS"})
	assert.Error(t, err)
}

func TestScoreOrdering_WeakerSpringScoresLower(t *testing.T) {
	strong := springFixture("AAPL")

	weak := strong
	weak.VolumeRatio = 0.9
	weak.PenetrationPct = 4.0
	weak.RecoveryBars = 6
	weak.CreekStrength = 0.3

	s := NewStockScorer()
	assert.Greater(t, s.ScoreSpring(strong).TotalScore, s.ScoreSpring(weak).TotalScore)
}
