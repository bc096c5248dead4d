package pipeline

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Switch is the process-local kill switch. When engaged, no new pattern
// enters the pipeline; in-flight evaluations complete normally. It does
// not weaken validation in any way, it only closes the front door.
type Switch struct {
	log zerolog.Logger

	mu        sync.RWMutex
	engaged   bool
	reason    string
	engagedAt time.Time
}

// NewSwitch creates a disengaged kill switch
func NewSwitch(log zerolog.Logger) *Switch {
	return &Switch{log: log.With().Str("component", "killswitch").Logger()}
}

// Engage stops new patterns from entering the pipeline
func (s *Switch) Engage(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.engaged {
		return
	}
	s.engaged = true
	s.reason = reason
	s.engagedAt = time.Now()
	s.log.Warn().Str("reason", reason).Msg("Kill switch engaged")
}

// Release reopens the pipeline to new patterns
func (s *Switch) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.engaged {
		return
	}
	s.engaged = false
	s.reason = ""
	s.log.Warn().Msg("Kill switch released")
}

// Engaged reports whether the switch is currently set
func (s *Switch) Engaged() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engaged
}

// Status returns the current state for the API surface
func (s *Switch) Status() (engaged bool, reason string, since time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engaged, s.reason, s.engagedAt
}
