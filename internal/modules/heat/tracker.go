package heat

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/wyckoff-trader/internal/domain"
)

// DefaultAlertCooldown rate-limits transition callbacks during
// volatile heat oscillation near a boundary.
const DefaultAlertCooldown = 300 * time.Second

// TransitionCallback fires when the alert state changes. Callbacks run
// synchronously on the updating goroutine.
type TransitionCallback func(from, to domain.AlertState, heat domain.PortfolioHeat)

// Tracker tracks aggregate open risk as a percentage of equity and the
// derived alert state.
//
// Not internally synchronized: a tracker expects a single writer.
// Concurrent owners must serialize access, ideally by giving one
// goroutine ownership and passing update requests to it.
type Tracker struct {
	log      zerolog.Logger
	cooldown time.Duration
	now      func() time.Time // injectable clock for tests

	heat      domain.PortfolioHeat
	callbacks []TransitionCallback
	lastAlert time.Time
}

// NewTracker creates a heat tracker with the given alert cooldown.
// A zero cooldown uses the default.
func NewTracker(cooldown time.Duration, log zerolog.Logger) *Tracker {
	if cooldown <= 0 {
		cooldown = DefaultAlertCooldown
	}
	return &Tracker{
		log:      log.With().Str("component", "heat_tracker").Logger(),
		cooldown: cooldown,
		now:      time.Now,
		heat: domain.PortfolioHeat{
			State: domain.AlertNormal,
		},
	}
}

// OnTransition registers a state-change callback
func (t *Tracker) OnTransition(cb TransitionCallback) {
	t.callbacks = append(t.callbacks, cb)
}

// UpdateHeat recomputes heat from total open risk and equity and
// re-derives the alert state. Callbacks fire only on an actual state
// change, and at most once per cooldown window. Identical inputs are
// idempotent: same resulting state, no duplicate callbacks.
func (t *Tracker) UpdateHeat(totalRisk, equity float64) domain.PortfolioHeat {
	var pct float64
	if equity > 0 {
		pct = totalRisk / equity * 100
	}

	prev := t.heat.State
	next := domain.AlertStateFor(pct)

	t.heat = domain.PortfolioHeat{
		HeatPct:   pct,
		TotalRisk: totalRisk,
		Equity:    equity,
		State:     next,
	}

	if next != prev {
		t.log.Info().
			Str("from", string(prev)).
			Str("to", string(next)).
			Float64("heat_pct", pct).
			Msg("Heat state changed")

		if t.now().Sub(t.lastAlert) >= t.cooldown {
			t.lastAlert = t.now()
			for _, cb := range t.callbacks {
				cb(prev, next, t.heat)
			}
		} else {
			t.log.Debug().Msg("Alert suppressed by cooldown")
		}
	}

	return t.heat
}

// Heat returns the current heat snapshot
func (t *Tracker) Heat() domain.PortfolioHeat {
	return t.heat
}

// Exceeded reports whether the hard entry gate is closed. Advisory only
// for existing open positions; it never forces liquidation.
func (t *Tracker) Exceeded() bool {
	return t.heat.State == domain.AlertExceeded
}

// RemainingPct returns how much heat headroom exists under the
// portfolio ceiling.
func (t *Tracker) RemainingPct(ceiling float64) float64 {
	remaining := ceiling - t.heat.HeatPct
	if remaining < 0 {
		return 0
	}
	return remaining
}
