package prioritizer

import (
	"github.com/rs/zerolog"

	"github.com/aristath/wyckoff-trader/pkg/formulas"
)

// PriceSeriesProvider supplies recent closing prices for a symbol,
// newest last. A short or empty series is acceptable; correlation
// against it reads as zero.
type PriceSeriesProvider interface {
	ClosingPrices(symbol string, bars int) ([]float64, error)
}

// DefaultLookbackBars is the return-series window used when the caller
// does not specify one.
const DefaultLookbackBars = 60

// CorrelationMapper measures how correlated a candidate symbol's
// returns are with the symbols of currently open campaigns. The
// prioritizer uses the max correlation as a crowding penalty.
type CorrelationMapper struct {
	log      zerolog.Logger
	prices   PriceSeriesProvider
	lookback int
}

// NewCorrelationMapper creates a correlation mapper
func NewCorrelationMapper(prices PriceSeriesProvider, lookback int, log zerolog.Logger) *CorrelationMapper {
	if lookback <= 0 {
		lookback = DefaultLookbackBars
	}
	return &CorrelationMapper{
		log:      log.With().Str("service", "correlation").Logger(),
		prices:   prices,
		lookback: lookback,
	}
}

// MaxCorrelation returns the highest absolute Pearson correlation
// between the candidate symbol's returns and each open symbol's
// returns. The candidate itself is skipped if it appears in the open
// set. Missing or short series contribute zero, so a symbol with no
// history never loses priority on correlation grounds alone.
func (m *CorrelationMapper) MaxCorrelation(symbol string, openSymbols []string) float64 {
	candidate, err := m.returns(symbol)
	if err != nil || len(candidate) < 2 {
		return 0
	}

	max := 0.0
	for _, open := range openSymbols {
		if open == symbol {
			continue
		}
		other, err := m.returns(open)
		if err != nil || len(other) < 2 {
			continue
		}
		corr := formulas.Correlation(candidate, other)
		if corr < 0 {
			corr = -corr
		}
		if corr > max {
			max = corr
		}
	}
	return max
}

func (m *CorrelationMapper) returns(symbol string) ([]float64, error) {
	prices, err := m.prices.ClosingPrices(symbol, m.lookback)
	if err != nil {
		m.log.Debug().Err(err).Str("symbol", symbol).Msg("No price series for correlation")
		return nil, err
	}
	return formulas.CalculateReturns(prices), nil
}
