package campaign

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/wyckoff-trader/internal/domain"
	"github.com/aristath/wyckoff-trader/internal/events"
	"github.com/aristath/wyckoff-trader/internal/locking"
	"github.com/aristath/wyckoff-trader/internal/modules/allocation"
)

// allowedTransitions is the campaign state machine. COMPLETED is
// reachable from ACTIVE as well as MARKUP so a time/stop exit can close
// a campaign that never confirmed markup.
var allowedTransitions = map[domain.CampaignStatus][]domain.CampaignStatus{
	domain.CampaignFormed: {domain.CampaignActive, domain.CampaignInvalidated},
	domain.CampaignActive: {domain.CampaignMarkup, domain.CampaignCompleted, domain.CampaignInvalidated},
	domain.CampaignMarkup: {domain.CampaignCompleted},
}

// Service owns campaign state transitions and position attachment.
// Transitions for a single campaign id are linearized through a
// per-campaign lock, so two concurrent fills cannot double-activate.
type Service struct {
	log       zerolog.Logger
	repo      *Repository
	allocator *allocation.Allocator
	emitter   *events.Emitter
	audit     domain.AuditSink
	locks     *locking.Manager
}

// NewService creates the campaign lifecycle service
func NewService(
	repo *Repository,
	allocator *allocation.Allocator,
	emitter *events.Emitter,
	audit domain.AuditSink,
	locks *locking.Manager,
	log zerolog.Logger,
) *Service {
	return &Service{
		log:       log.With().Str("service", "campaign").Logger(),
		repo:      repo,
		allocator: allocator,
		emitter:   emitter,
		audit:     audit,
		locks:     locks,
	}
}

func lockName(campaignID string) string {
	return "campaign:" + campaignID
}

// FindForPattern returns the campaign a pattern belongs to, or nil if
// none exists yet. Used by the pipeline's risk stage to read campaign
// capacity before attachment.
func (s *Service) FindForPattern(p domain.Pattern) (*domain.Campaign, error) {
	return s.repo.GetByID(domain.CampaignID(p.Symbol, p.RangeStart))
}

// LegFraction returns the BMAD fraction for an entry kind given the
// campaign's skipped legs. A nil campaign uses the base split.
func (s *Service) LegFraction(c *domain.Campaign, kind domain.PatternKind) (float64, error) {
	var skipped []domain.PatternKind
	if c != nil {
		skipped = c.SkippedLegs
	}
	return s.allocator.FractionFor(kind, skipped)
}

// IsEntryKind reports whether a pattern kind opens a campaign leg
func (s *Service) IsEntryKind(kind domain.PatternKind) bool {
	return s.allocator.IsEntryKind(kind)
}

// EntryKinds returns the scheduled legs in campaign order
func (s *Service) EntryKinds() []domain.PatternKind {
	return s.allocator.EntryKinds()
}

// AttachValidated attaches a validated, sized entry to its campaign,
// creating the campaign on first contact. The campaign id is
// deterministic from (symbol, range start), which is the system's main
// idempotence guarantee: repeated signals from one range attach to one
// campaign.
func (s *Service) AttachValidated(outcome domain.ValidationOutcome) (*domain.Campaign, *domain.Position, error) {
	if !outcome.Validated || outcome.Sizing == nil {
		return nil, nil, fmt.Errorf("only validated, sized outcomes can attach")
	}
	p := outcome.Pattern
	id := domain.CampaignID(p.Symbol, p.RangeStart)

	s.locks.Lock(lockName(id))
	defer s.locks.Unlock(lockName(id))

	c, err := s.repo.GetByID(id)
	if err != nil {
		return nil, nil, err
	}
	if c == nil {
		if c, err = s.create(p); err != nil {
			return nil, nil, err
		}
	}

	if c.Status.Terminal() {
		return nil, nil, fmt.Errorf("%w: %s is %s", domain.ErrCampaignTerminal, c.ID, c.Status)
	}
	if c.HasLeg(p.Kind) {
		return nil, nil, fmt.Errorf("campaign %s already holds a %s leg", c.ID, p.Kind)
	}

	fraction, err := s.LegFraction(c, p.Kind)
	if err != nil {
		return nil, nil, err
	}

	position := &domain.Position{
		CampaignID:         c.ID,
		EntryKind:          p.Kind,
		EntryPhase:         p.Phase,
		AllocationFraction: fraction,
		RiskAmount:         outcome.Sizing.RiskAmount,
		Quantity:           outcome.Sizing.Quantity,
		EntryPrice:         outcome.Sizing.EntryPrice,
		StopPrice:          outcome.Sizing.StopPrice,
		Status:             domain.PositionOpen,
		OpenedAt:           time.Now(),
	}
	if err := s.repo.AttachPosition(position); err != nil {
		return nil, nil, err
	}

	c.Positions = append(c.Positions, *position)
	c.AllocatedRisk += outcome.Sizing.RiskPct
	if p.Phase != domain.PhaseUnknown {
		c.PhaseCounts[p.Phase]++
	}

	// First filled entry activates; an in-campaign SOS confirms markup.
	if c.Status == domain.CampaignFormed {
		if err := s.transition(c, domain.CampaignActive, events.CampaignActivated, "first validated entry filled"); err != nil {
			return nil, nil, err
		}
	} else if c.Status == domain.CampaignActive && p.Kind == domain.PatternSOS {
		if err := s.transition(c, domain.CampaignMarkup, events.PatternDetected, "markup confirmed by SOS"); err != nil {
			return nil, nil, err
		}
	}

	if err := s.repo.Update(c); err != nil {
		return nil, nil, err
	}

	s.emitter.EmitForCampaign(events.PatternDetected, "campaign", c.ID, map[string]interface{}{
		"kind":     string(p.Kind),
		"phase":    string(p.Phase),
		"risk_pct": outcome.Sizing.RiskPct,
	})

	s.log.Info().
		Str("campaign_id", c.ID).
		Str("kind", string(p.Kind)).
		Float64("risk_amount", position.RiskAmount).
		Str("status", string(c.Status)).
		Msg("Position attached")

	return c, position, nil
}

// RecordDetection bumps the phase histogram for informational patterns
// (UTAD, SC, AR, ST) that do not open a leg. No-op when the campaign
// does not exist yet.
func (s *Service) RecordDetection(p domain.Pattern) error {
	id := domain.CampaignID(p.Symbol, p.RangeStart)

	s.locks.Lock(lockName(id))
	defer s.locks.Unlock(lockName(id))

	c, err := s.repo.GetByID(id)
	if err != nil || c == nil {
		return err
	}
	if c.Status.Terminal() {
		return nil
	}

	if p.Phase != domain.PhaseUnknown {
		c.PhaseCounts[p.Phase]++
	}
	if err := s.repo.Update(c); err != nil {
		return err
	}

	s.emitter.EmitForCampaign(events.PatternDetected, "campaign", c.ID, map[string]interface{}{
		"kind":  string(p.Kind),
		"phase": string(p.Phase),
	})
	return nil
}

// Complete closes a campaign after its final target or a time/stop exit
func (s *Service) Complete(campaignID, reason string) (*domain.Campaign, error) {
	return s.terminate(campaignID, domain.CampaignCompleted, events.CampaignCompleted, reason)
}

// Invalidate terminates a campaign whose trading range broke down
// before markup. Only reachable from FORMED or ACTIVE.
func (s *Service) Invalidate(campaignID, reason string) (*domain.Campaign, error) {
	return s.terminate(campaignID, domain.CampaignInvalidated, events.CampaignFailed, reason)
}

// CheckRangeBreak invalidates the campaign when price closes below the
// range support (Creek) prior to markup confirmation. Campaigns already
// in MARKUP are unaffected.
func (s *Service) CheckRangeBreak(symbol string, rangeStart time.Time, support, closePrice float64) error {
	if closePrice >= support {
		return nil
	}

	id := domain.CampaignID(symbol, rangeStart)
	c, err := s.repo.GetByID(id)
	if err != nil || c == nil {
		return err
	}
	if c.Status != domain.CampaignFormed && c.Status != domain.CampaignActive {
		return nil
	}

	_, err = s.Invalidate(id, fmt.Sprintf("support break: close %.4f below creek %.4f", closePrice, support))
	return err
}

// ClosePosition closes a leg at an exit price, recording the realized
// R-multiple against the initial stop distance.
func (s *Service) ClosePosition(campaignID string, positionID int64, exitPrice float64) error {
	s.locks.Lock(lockName(campaignID))
	defer s.locks.Unlock(lockName(campaignID))

	c, err := s.repo.GetByID(campaignID)
	if err != nil {
		return err
	}
	if c == nil {
		return fmt.Errorf("campaign %s not found", campaignID)
	}

	for _, p := range c.Positions {
		if p.ID != positionID {
			continue
		}
		riskPerUnit := p.EntryPrice - p.StopPrice
		if riskPerUnit <= 0 {
			return fmt.Errorf("position %d has invalid levels", positionID)
		}
		realizedR := (exitPrice - p.EntryPrice) / riskPerUnit
		return s.repo.ClosePosition(positionID, realizedR)
	}
	return fmt.Errorf("position %d not found in campaign %s", positionID, campaignID)
}

// SkipLeg marks an unfilled leg's validity window as expired; later
// entries size against the rebalanced fractions.
func (s *Service) SkipLeg(campaignID string, kind domain.PatternKind) error {
	s.locks.Lock(lockName(campaignID))
	defer s.locks.Unlock(lockName(campaignID))

	c, err := s.repo.GetByID(campaignID)
	if err != nil {
		return err
	}
	if c == nil {
		return fmt.Errorf("campaign %s not found", campaignID)
	}
	if c.HasLeg(kind) {
		return fmt.Errorf("leg %s already filled in campaign %s", kind, campaignID)
	}
	for _, k := range c.SkippedLegs {
		if k == kind {
			return nil // already skipped; idempotent
		}
	}

	c.SkippedLegs = append(c.SkippedLegs, kind)
	if err := s.repo.Update(c); err != nil {
		return err
	}

	s.log.Info().
		Str("campaign_id", campaignID).
		Str("kind", string(kind)).
		Msg("Leg validity window expired, allocation rebalanced")
	return nil
}

// Repo exposes the repository for read-side consumers (handlers, jobs)
func (s *Service) Repo() *Repository {
	return s.repo
}

func (s *Service) create(p domain.Pattern) (*domain.Campaign, error) {
	now := time.Now()
	c := &domain.Campaign{
		ID:          domain.CampaignID(p.Symbol, p.RangeStart),
		Symbol:      p.Symbol,
		RangeStart:  p.RangeStart,
		Status:      domain.CampaignFormed,
		PhaseCounts: make(map[domain.WyckoffPhase]int),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(c); err != nil {
		return nil, err
	}

	s.emitter.EmitForCampaign(events.CampaignFormed, "campaign", c.ID, map[string]interface{}{
		"symbol":      c.Symbol,
		"range_start": c.RangeStart.Format("2006-01-02"),
	})
	s.auditChange(c, "campaign formed")
	return c, nil
}

func (s *Service) terminate(campaignID string, to domain.CampaignStatus, eventType events.EventType, reason string) (*domain.Campaign, error) {
	s.locks.Lock(lockName(campaignID))
	defer s.locks.Unlock(lockName(campaignID))

	c, err := s.repo.GetByID(campaignID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("campaign %s not found", campaignID)
	}

	if err := s.transition(c, to, eventType, reason); err != nil {
		return nil, err
	}
	if err := s.repo.Update(c); err != nil {
		return nil, err
	}
	return c, nil
}

// transition validates and applies a status change, emitting the
// lifecycle event and the audit record. Callers persist via Update.
func (s *Service) transition(c *domain.Campaign, to domain.CampaignStatus, eventType events.EventType, reason string) error {
	allowed := false
	for _, next := range allowedTransitions[c.Status] {
		if next == to {
			allowed = true
			break
		}
	}
	if !allowed {
		if c.Status.Terminal() {
			return fmt.Errorf("%w: %s", domain.ErrCampaignTerminal, c.ID)
		}
		return fmt.Errorf("invalid transition %s -> %s for campaign %s", c.Status, to, c.ID)
	}

	from := c.Status
	c.Status = to
	c.UpdatedAt = time.Now()

	s.emitter.EmitForCampaign(eventType, "campaign", c.ID, map[string]interface{}{
		"from":   string(from),
		"to":     string(to),
		"reason": reason,
	})
	s.auditChange(c, fmt.Sprintf("%s -> %s: %s", from, to, reason))

	s.log.Info().
		Str("campaign_id", c.ID).
		Str("from", string(from)).
		Str("to", string(to)).
		Str("reason", reason).
		Msg("Campaign transitioned")
	return nil
}

func (s *Service) auditChange(c *domain.Campaign, reason string) {
	err := s.audit.Record(domain.AuditEvent{
		Type:       domain.AuditCampaignChange,
		Symbol:     c.Symbol,
		CampaignID: c.ID,
		Reason:     reason,
		Timestamp:  time.Now(),
		Payload: map[string]any{
			"status":         string(c.Status),
			"allocated_risk": c.AllocatedRisk,
		},
	})
	if err != nil {
		s.log.Error().Err(err).Str("campaign_id", c.ID).Msg("Failed to audit campaign change")
	}
}
