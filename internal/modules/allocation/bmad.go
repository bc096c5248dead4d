package allocation

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/wyckoff-trader/internal/domain"
)

// Base BMAD fractions of the campaign risk cap per entry leg.
var baseFractions = map[domain.PatternKind]float64{
	domain.PatternSpring: 0.40,
	domain.PatternSOS:    0.30,
	domain.PatternLPS:    0.30,
}

// legOrder fixes the scheduled sequence of campaign legs.
var legOrder = []domain.PatternKind{
	domain.PatternSpring,
	domain.PatternSOS,
	domain.PatternLPS,
}

// Leg is a planned campaign entry with its current fraction of the
// campaign risk cap.
type Leg struct {
	Kind     domain.PatternKind `json:"kind"`
	Fraction float64            `json:"fraction"`
	Skipped  bool               `json:"skipped"`
}

// Allocator computes per-leg capital allocation for a campaign using
// the fixed 40/30/30 Spring/SOS/LPS split. When a scheduled leg is
// skipped (its pattern never fired within the validity window), the
// remaining legs absorb its share proportionally so the campaign still
// deploys its full risk cap instead of under-deploying.
type Allocator struct {
	log zerolog.Logger
}

// NewAllocator creates a BMAD allocator
func NewAllocator(log zerolog.Logger) *Allocator {
	return &Allocator{
		log: log.With().Str("component", "bmad_allocator").Logger(),
	}
}

// EntryKinds returns the leg kinds in scheduled order
func (a *Allocator) EntryKinds() []domain.PatternKind {
	kinds := make([]domain.PatternKind, len(legOrder))
	copy(kinds, legOrder)
	return kinds
}

// IsEntryKind reports whether a pattern kind opens a campaign leg
func (a *Allocator) IsEntryKind(kind domain.PatternKind) bool {
	_, ok := baseFractions[kind]
	return ok
}

// Plan rebalances fractions across the non-skipped legs. Fractions are
// recomputed from the base weights on every call, so re-running on an
// unchanged skip set yields identical output (idempotence).
func (a *Allocator) Plan(skipped []domain.PatternKind) ([]Leg, error) {
	skipSet := make(map[domain.PatternKind]bool, len(skipped))
	for _, k := range skipped {
		if _, ok := baseFractions[k]; !ok {
			return nil, fmt.Errorf("kind %q is not a campaign leg", k)
		}
		skipSet[k] = true
	}

	var remainingWeight float64
	for kind, base := range baseFractions {
		if !skipSet[kind] {
			remainingWeight += base
		}
	}

	legs := make([]Leg, 0, len(legOrder))
	for _, kind := range legOrder {
		leg := Leg{Kind: kind, Skipped: skipSet[kind]}
		if !leg.Skipped && remainingWeight > 0 {
			leg.Fraction = baseFractions[kind] / remainingWeight
		}
		legs = append(legs, leg)
	}

	return legs, nil
}

// FractionFor returns the rebalanced fraction for one leg kind given
// the set of skipped legs.
func (a *Allocator) FractionFor(kind domain.PatternKind, skipped []domain.PatternKind) (float64, error) {
	legs, err := a.Plan(skipped)
	if err != nil {
		return 0, err
	}
	for _, leg := range legs {
		if leg.Kind == kind {
			if leg.Skipped {
				return 0, fmt.Errorf("leg %q is skipped", kind)
			}
			return leg.Fraction, nil
		}
	}
	return 0, fmt.Errorf("kind %q is not a campaign leg", kind)
}
