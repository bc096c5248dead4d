package risk

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/wyckoff-trader/internal/domain"
)

// breakerState tracks one named dependency.
type breakerState struct {
	consecutiveFailures int
	openedAt            time.Time
	open                bool
}

// CircuitBreaker tracks consecutive failures per named dependency and
// short-circuits calls during a cooldown window after tripping. The
// pipeline treats a short-circuit as a stage rejection, not a crash.
type CircuitBreaker struct {
	log       zerolog.Logger
	threshold int
	cooldown  time.Duration
	now       func() time.Time // injectable clock for tests

	mu    sync.Mutex
	deps  map[string]*breakerState
}

// NewCircuitBreaker creates a breaker that trips a dependency after
// threshold consecutive failures and holds it open for cooldown.
func NewCircuitBreaker(threshold int, cooldown time.Duration, log zerolog.Logger) *CircuitBreaker {
	if threshold < 1 {
		threshold = 1
	}
	return &CircuitBreaker{
		log:       log.With().Str("component", "circuit_breaker").Logger(),
		threshold: threshold,
		cooldown:  cooldown,
		now:       time.Now,
		deps:      make(map[string]*breakerState),
	}
}

// Call invokes fn under the named dependency's breaker. While open, it
// returns ErrCircuitOpen without invoking fn; after the cooldown the
// breaker half-opens and lets one trial call through.
func (b *CircuitBreaker) Call(dependency string, fn func() error) error {
	b.mu.Lock()
	state, ok := b.deps[dependency]
	if !ok {
		state = &breakerState{}
		b.deps[dependency] = state
	}

	if state.open {
		if b.now().Sub(state.openedAt) < b.cooldown {
			b.mu.Unlock()
			return fmt.Errorf("%w: dependency %q", domain.ErrCircuitOpen, dependency)
		}
		// Half-open: allow this call as a trial
		b.log.Info().Str("dependency", dependency).Msg("Circuit half-open, trial call")
	}
	b.mu.Unlock()

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil {
		state.consecutiveFailures++
		if state.consecutiveFailures >= b.threshold {
			if !state.open {
				b.log.Warn().
					Str("dependency", dependency).
					Int("failures", state.consecutiveFailures).
					Msg("Circuit tripped")
			}
			state.open = true
			state.openedAt = b.now()
		}
		return err
	}

	if state.open {
		b.log.Info().Str("dependency", dependency).Msg("Circuit closed after successful trial")
	}
	state.open = false
	state.consecutiveFailures = 0
	return nil
}

// Open reports whether the named dependency's circuit is currently open
func (b *CircuitBreaker) Open(dependency string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	state, ok := b.deps[dependency]
	if !ok || !state.open {
		return false
	}
	return b.now().Sub(state.openedAt) < b.cooldown
}
