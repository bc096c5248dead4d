package prioritizer

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/wyckoff-trader/internal/domain"
	"github.com/aristath/wyckoff-trader/pkg/logger"
)

type stubPrices struct {
	series map[string][]float64
}

func (s *stubPrices) ClosingPrices(symbol string, bars int) ([]float64, error) {
	prices, ok := s.series[symbol]
	if !ok {
		return nil, fmt.Errorf("no series for %s", symbol)
	}
	return prices, nil
}

type stubOpen struct{ symbols []string }

func (s *stubOpen) OpenSymbols() ([]string, error) { return s.symbols, nil }

func validated(symbol string, score float64, detectedAt time.Time) domain.ValidationOutcome {
	p := domain.Pattern{
		Kind:       domain.PatternSpring,
		Symbol:     symbol,
		DetectedAt: detectedAt,
		RangeStart: detectedAt.AddDate(0, -1, 0),
	}
	return domain.Accepted(p,
		domain.ConfidenceScore{TotalScore: score, MaxPossible: 100},
		domain.PositionSizing{Symbol: symbol},
	)
}

func ramp(start, step float64, n int) []float64 {
	out := make([]float64, n)
	v := start
	for i := range out {
		out[i] = v
		v += step
	}
	return out
}

func TestMaxCorrelation(t *testing.T) {
	log := logger.New(logger.Config{Level: "error"})
	up := ramp(100, 1, 30)
	down := ramp(100, -1, 30)

	prices := &stubPrices{series: map[string][]float64{
		"AAPL": up,
		"MSFT": up,   // perfectly correlated with AAPL
		"GLD":  down, // perfectly anti-correlated
	}}
	mapper := NewCorrelationMapper(prices, 30, log)

	// Absolute correlation: both perfect co- and anti-movement count
	assert.InDelta(t, 1.0, mapper.MaxCorrelation("AAPL", []string{"MSFT"}), 0.02)
	assert.InDelta(t, 1.0, mapper.MaxCorrelation("AAPL", []string{"GLD"}), 0.02)

	// Candidate skips itself and tolerates missing series
	assert.Equal(t, 0.0, mapper.MaxCorrelation("AAPL", []string{"AAPL"}))
	assert.Equal(t, 0.0, mapper.MaxCorrelation("AAPL", []string{"UNKNOWN"}))
	assert.Equal(t, 0.0, mapper.MaxCorrelation("UNKNOWN", []string{"AAPL"}))
}

func TestRank_ConfidenceFirst(t *testing.T) {
	log := logger.New(logger.Config{Level: "error"})
	pr := NewPrioritizer(nil, nil, log)

	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	ranked := pr.Rank([]domain.ValidationOutcome{
		validated("AAPL", 72, now),
		validated("MSFT", 91, now),
		validated("NVDA", 85, now.Add(time.Minute)),
	})

	require.Len(t, ranked, 3)
	assert.Equal(t, "MSFT", ranked[0].Outcome.Pattern.Symbol)
	assert.Equal(t, "NVDA", ranked[1].Outcome.Pattern.Symbol)
	assert.Equal(t, "AAPL", ranked[2].Outcome.Pattern.Symbol)
}

func TestRank_CorrelationBreaksConfidenceTie(t *testing.T) {
	log := logger.New(logger.Config{Level: "error"})
	up := ramp(100, 1, 30)

	prices := &stubPrices{series: map[string][]float64{
		"AAPL": up,
		"MSFT": up,
		"GLD":  {100, 101, 99, 102, 98, 103, 97, 104, 96, 105, 100, 101, 99, 102, 98, 103, 97, 104, 96, 105},
	}}
	mapper := NewCorrelationMapper(prices, 30, log)
	pr := NewPrioritizer(mapper, &stubOpen{symbols: []string{"MSFT"}}, log)

	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	ranked := pr.Rank([]domain.ValidationOutcome{
		validated("AAPL", 80, now), // crowded: moves with open MSFT campaign
		validated("GLD", 80, now),  // uncorrelated
	})

	require.Len(t, ranked, 2)
	assert.Equal(t, "GLD", ranked[0].Outcome.Pattern.Symbol)
	assert.Equal(t, "AAPL", ranked[1].Outcome.Pattern.Symbol)
	assert.Greater(t, ranked[1].MaxCorrelation, ranked[0].MaxCorrelation)
}

func TestRank_EarliestDetectionBreaksFullTie(t *testing.T) {
	log := logger.New(logger.Config{Level: "error"})
	pr := NewPrioritizer(nil, nil, log)

	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	later := validated("LATE", 80, now.Add(time.Hour))
	earlier := validated("EARLY", 80, now)

	ranked := pr.Rank([]domain.ValidationOutcome{later, earlier})
	require.Len(t, ranked, 2)
	assert.Equal(t, "EARLY", ranked[0].Outcome.Pattern.Symbol)
}

func TestRank_FiltersRejected(t *testing.T) {
	log := logger.New(logger.Config{Level: "error"})
	pr := NewPrioritizer(nil, nil, log)

	p := domain.Pattern{Kind: domain.PatternSpring, Symbol: "AAPL"}
	ranked := pr.Rank([]domain.ValidationOutcome{
		domain.Rejected(p, domain.StageRiskValidation, "over cap"),
		validated("MSFT", 60, time.Now()),
	})

	require.Len(t, ranked, 1)
	assert.Equal(t, "MSFT", ranked[0].Outcome.Pattern.Symbol)
}
