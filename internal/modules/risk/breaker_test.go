package risk

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/wyckoff-trader/internal/domain"
	"github.com/aristath/wyckoff-trader/pkg/logger"
)

var errBoom = errors.New("boom")

func newBreaker(threshold int, cooldown time.Duration) (*CircuitBreaker, *time.Time) {
	log := logger.New(logger.Config{Level: "error"})
	b := NewCircuitBreaker(threshold, cooldown, log)

	clock := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return clock }
	return b, &clock
}

func TestBreaker_TripsAfterConsecutiveFailures(t *testing.T) {
	b, _ := newBreaker(3, time.Minute)

	fail := func() error { return errBoom }

	for i := 0; i < 3; i++ {
		err := b.Call("risk_manager", fail)
		assert.ErrorIs(t, err, errBoom)
	}
	assert.True(t, b.Open("risk_manager"))

	// Short-circuit: fn is not invoked while open
	called := false
	err := b.Call("risk_manager", func() error { called = true; return nil })
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrCircuitOpen))
	assert.False(t, called)
}

func TestBreaker_SuccessResetsCounter(t *testing.T) {
	b, _ := newBreaker(3, time.Minute)

	_ = b.Call("scorer", func() error { return errBoom })
	_ = b.Call("scorer", func() error { return errBoom })
	_ = b.Call("scorer", func() error { return nil })
	_ = b.Call("scorer", func() error { return errBoom })
	_ = b.Call("scorer", func() error { return errBoom })

	assert.False(t, b.Open("scorer"), "non-consecutive failures must not trip")
}

func TestBreaker_HalfOpenAfterCooldown(t *testing.T) {
	b, clock := newBreaker(2, time.Minute)

	_ = b.Call("audit", func() error { return errBoom })
	_ = b.Call("audit", func() error { return errBoom })
	assert.True(t, b.Open("audit"))

	// Cooldown elapses: one trial call goes through
	*clock = clock.Add(61 * time.Second)

	called := false
	err := b.Call("audit", func() error { called = true; return nil })
	require.NoError(t, err)
	assert.True(t, called)
	assert.False(t, b.Open("audit"))
}

func TestBreaker_FailedTrialReopens(t *testing.T) {
	b, clock := newBreaker(2, time.Minute)

	_ = b.Call("audit", func() error { return errBoom })
	_ = b.Call("audit", func() error { return errBoom })

	*clock = clock.Add(61 * time.Second)
	err := b.Call("audit", func() error { return errBoom })
	assert.ErrorIs(t, err, errBoom)
	assert.True(t, b.Open("audit"))
}

func TestBreaker_DependenciesAreIndependent(t *testing.T) {
	b, _ := newBreaker(1, time.Minute)

	_ = b.Call("risk_manager", func() error { return errBoom })
	assert.True(t, b.Open("risk_manager"))
	assert.False(t, b.Open("scorer"))

	err := b.Call("scorer", func() error { return nil })
	assert.NoError(t, err)
}
