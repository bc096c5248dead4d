package execution

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/aristath/wyckoff-trader/internal/domain"
)

// PaperAdapter is the default execution adapter: it fills every
// validated signal at its entry price without touching a broker. A real
// broker adapter implements the same interface.
type PaperAdapter struct {
	log     zerolog.Logger
	counter atomic.Uint64
}

// NewPaperAdapter creates a paper execution adapter
func NewPaperAdapter(log zerolog.Logger) *PaperAdapter {
	return &PaperAdapter{
		log: log.With().Str("service", "paper_execution").Logger(),
	}
}

// Execute fills the signal at its entry price
func (a *PaperAdapter) Execute(ctx context.Context, outcome domain.ValidationOutcome) (*domain.Fill, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !outcome.Validated || outcome.Sizing == nil {
		return nil, fmt.Errorf("cannot execute an unvalidated or unsized signal")
	}

	fill := &domain.Fill{
		Symbol:   outcome.Sizing.Symbol,
		Price:    outcome.Sizing.EntryPrice,
		Quantity: outcome.Sizing.Quantity,
		OrderID:  fmt.Sprintf("paper-%d", a.counter.Add(1)),
	}
	a.log.Info().
		Str("symbol", fill.Symbol).
		Str("order_id", fill.OrderID).
		Float64("price", fill.Price).
		Float64("quantity", fill.Quantity).
		Msg("Paper fill")
	return fill, nil
}
