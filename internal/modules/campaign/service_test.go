package campaign

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/wyckoff-trader/internal/database"
	"github.com/aristath/wyckoff-trader/internal/domain"
	"github.com/aristath/wyckoff-trader/internal/events"
	"github.com/aristath/wyckoff-trader/internal/locking"
	"github.com/aristath/wyckoff-trader/internal/modules/allocation"
	"github.com/aristath/wyckoff-trader/pkg/logger"
)

// memorySink collects audit events for assertions
type memorySink struct {
	mu     sync.Mutex
	events []domain.AuditEvent
}

func (m *memorySink) Record(e domain.AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return nil
}

func newTestService(t *testing.T) (*Service, *memorySink, *events.Emitter) {
	t.Helper()
	log := logger.New(logger.Config{Level: "error", Pretty: false})

	db, err := database.New(filepath.Join(t.TempDir(), "campaigns.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo, err := NewRepository(db.Conn(), log)
	require.NoError(t, err)

	sink := &memorySink{}
	emitter := events.NewEmitter(log)
	svc := NewService(repo, allocation.NewAllocator(log), emitter, sink, locking.NewManager(), log)
	return svc, sink, emitter
}

func springOutcome(symbol string, rangeStart time.Time) domain.ValidationOutcome {
	p := domain.Pattern{
		Kind:       domain.PatternSpring,
		Symbol:     symbol,
		Phase:      domain.PhaseC,
		RangeStart: rangeStart,
		EntryPrice: 100,
		StopPrice:  95,
	}
	score := domain.ConfidenceScore{TotalScore: 85, AssetClass: domain.AssetClassStock, MaxPossible: 100}
	sizing := domain.PositionSizing{
		Symbol:     symbol,
		CampaignID: domain.CampaignID(symbol, rangeStart),
		RiskAmount: 2000,
		RiskPct:    2.0,
		Quantity:   400,
		EntryPrice: 100,
		StopPrice:  95,
	}
	return domain.Accepted(p, score, sizing)
}

func sosOutcome(symbol string, rangeStart time.Time) domain.ValidationOutcome {
	o := springOutcome(symbol, rangeStart)
	o.Pattern.Kind = domain.PatternSOS
	o.Pattern.Phase = domain.PhaseD
	o.Sizing.RiskPct = 1.5
	o.Sizing.RiskAmount = 1500
	return o
}

func TestAttachValidated_CreatesAndActivates(t *testing.T) {
	svc, sink, _ := newTestService(t)
	rangeStart := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)

	c, pos, err := svc.AttachValidated(springOutcome("AAPL", rangeStart))
	require.NoError(t, err)

	assert.Equal(t, "AAPL-2026-01-05", c.ID)
	assert.Equal(t, domain.CampaignActive, c.Status)
	assert.Equal(t, domain.PatternSpring, pos.EntryKind)
	assert.InDelta(t, 0.40, pos.AllocationFraction, 1e-9)
	assert.InDelta(t, 2.0, c.AllocatedRisk, 1e-9)
	assert.Equal(t, 1, c.PhaseCounts[domain.PhaseC])

	// Formed then activated, both audited
	require.GreaterOrEqual(t, len(sink.events), 2)
	assert.Contains(t, sink.events[0].Reason, "formed")
	assert.Contains(t, sink.events[1].Reason, "FORMED -> ACTIVE")

	// Persisted state matches
	got, err := svc.Repo().GetByID(c.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, domain.CampaignActive, got.Status)
	assert.Len(t, got.Positions, 1)
}

func TestAttachValidated_SameRangeSameCampaign(t *testing.T) {
	svc, _, _ := newTestService(t)
	rangeStart := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)

	c1, _, err := svc.AttachValidated(springOutcome("AAPL", rangeStart))
	require.NoError(t, err)
	c2, _, err := svc.AttachValidated(sosOutcome("AAPL", rangeStart))
	require.NoError(t, err)

	assert.Equal(t, c1.ID, c2.ID)
	assert.Len(t, c2.Positions, 2)
	assert.InDelta(t, 3.5, c2.AllocatedRisk, 1e-9)

	// A different range start is a different campaign
	other, _, err := svc.AttachValidated(springOutcome("AAPL", rangeStart.AddDate(0, 2, 0)))
	require.NoError(t, err)
	assert.NotEqual(t, c1.ID, other.ID)
}

func TestAttachValidated_SOSConfirmsMarkup(t *testing.T) {
	svc, _, _ := newTestService(t)
	rangeStart := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)

	_, _, err := svc.AttachValidated(springOutcome("AAPL", rangeStart))
	require.NoError(t, err)

	c, _, err := svc.AttachValidated(sosOutcome("AAPL", rangeStart))
	require.NoError(t, err)
	assert.Equal(t, domain.CampaignMarkup, c.Status)
}

func TestAttachValidated_DuplicateLegRejected(t *testing.T) {
	svc, _, _ := newTestService(t)
	rangeStart := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)

	_, _, err := svc.AttachValidated(springOutcome("AAPL", rangeStart))
	require.NoError(t, err)

	_, _, err = svc.AttachValidated(springOutcome("AAPL", rangeStart))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already holds")
}

func TestAttachValidated_TerminalCampaignRejects(t *testing.T) {
	svc, _, _ := newTestService(t)
	rangeStart := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)

	c, _, err := svc.AttachValidated(springOutcome("AAPL", rangeStart))
	require.NoError(t, err)
	_, err = svc.Invalidate(c.ID, "support break")
	require.NoError(t, err)

	_, _, err = svc.AttachValidated(sosOutcome("AAPL", rangeStart))
	assert.ErrorIs(t, err, domain.ErrCampaignTerminal)
}

func TestInvalidate_OnlyBeforeMarkup(t *testing.T) {
	svc, _, _ := newTestService(t)
	rangeStart := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)

	_, _, err := svc.AttachValidated(springOutcome("AAPL", rangeStart))
	require.NoError(t, err)
	c, _, err := svc.AttachValidated(sosOutcome("AAPL", rangeStart))
	require.NoError(t, err)
	require.Equal(t, domain.CampaignMarkup, c.Status)

	_, err = svc.Invalidate(c.ID, "support break")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid transition")
}

func TestCompleteAndTerminalIdempotence(t *testing.T) {
	svc, _, _ := newTestService(t)
	rangeStart := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)

	c, _, err := svc.AttachValidated(springOutcome("AAPL", rangeStart))
	require.NoError(t, err)

	done, err := svc.Complete(c.ID, "time exit")
	require.NoError(t, err)
	assert.Equal(t, domain.CampaignCompleted, done.Status)

	_, err = svc.Complete(c.ID, "again")
	assert.ErrorIs(t, err, domain.ErrCampaignTerminal)
	_, err = svc.Invalidate(c.ID, "late break")
	assert.ErrorIs(t, err, domain.ErrCampaignTerminal)
}

func TestCheckRangeBreak(t *testing.T) {
	svc, _, _ := newTestService(t)
	rangeStart := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)

	c, _, err := svc.AttachValidated(springOutcome("AAPL", rangeStart))
	require.NoError(t, err)

	// Close above support does nothing
	require.NoError(t, svc.CheckRangeBreak("AAPL", rangeStart, 95, 96))
	got, err := svc.Repo().GetByID(c.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CampaignActive, got.Status)

	// Close below support invalidates pre-markup
	require.NoError(t, svc.CheckRangeBreak("AAPL", rangeStart, 95, 94.2))
	got, err = svc.Repo().GetByID(c.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CampaignInvalidated, got.Status)
}

func TestCheckRangeBreak_MarkupUnaffected(t *testing.T) {
	svc, _, _ := newTestService(t)
	rangeStart := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)

	_, _, err := svc.AttachValidated(springOutcome("AAPL", rangeStart))
	require.NoError(t, err)
	c, _, err := svc.AttachValidated(sosOutcome("AAPL", rangeStart))
	require.NoError(t, err)

	require.NoError(t, svc.CheckRangeBreak("AAPL", rangeStart, 95, 90))
	got, err := svc.Repo().GetByID(c.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CampaignMarkup, got.Status)
}

func TestClosePosition_RealizedR(t *testing.T) {
	svc, _, _ := newTestService(t)
	rangeStart := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)

	c, pos, err := svc.AttachValidated(springOutcome("AAPL", rangeStart))
	require.NoError(t, err)

	// Entry 100, stop 95, exit 110 -> +2R
	require.NoError(t, svc.ClosePosition(c.ID, pos.ID, 110))

	got, err := svc.Repo().GetByID(c.ID)
	require.NoError(t, err)
	require.Len(t, got.Positions, 1)
	assert.Equal(t, domain.PositionClosed, got.Positions[0].Status)
	require.NotNil(t, got.Positions[0].RealizedR)
	assert.InDelta(t, 2.0, *got.Positions[0].RealizedR, 1e-9)
	assert.InDelta(t, 0, got.OpenRisk(), 1e-9)
}

func TestSkipLeg_RebalancesLaterEntries(t *testing.T) {
	svc, _, _ := newTestService(t)
	rangeStart := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)

	c, _, err := svc.AttachValidated(springOutcome("AAPL", rangeStart))
	require.NoError(t, err)

	require.NoError(t, svc.SkipLeg(c.ID, domain.PatternSOS))
	// Idempotent
	require.NoError(t, svc.SkipLeg(c.ID, domain.PatternSOS))

	got, err := svc.Repo().GetByID(c.ID)
	require.NoError(t, err)
	require.Equal(t, []domain.PatternKind{domain.PatternSOS}, got.SkippedLegs)

	// LPS absorbs the skipped SOS share: 0.30/0.70
	frac, err := svc.LegFraction(got, domain.PatternLPS)
	require.NoError(t, err)
	assert.InDelta(t, 0.30/0.70, frac, 1e-9)

	// A filled leg cannot be skipped
	err = svc.SkipLeg(c.ID, domain.PatternSpring)
	assert.Error(t, err)
}

func TestRecordDetection(t *testing.T) {
	svc, _, _ := newTestService(t)
	rangeStart := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)

	// No campaign yet -> no-op
	st := domain.Pattern{Kind: domain.PatternST, Symbol: "AAPL", Phase: domain.PhaseB, RangeStart: rangeStart}
	require.NoError(t, svc.RecordDetection(st))

	c, _, err := svc.AttachValidated(springOutcome("AAPL", rangeStart))
	require.NoError(t, err)

	require.NoError(t, svc.RecordDetection(st))
	got, err := svc.Repo().GetByID(c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.PhaseCounts[domain.PhaseB])
	assert.Len(t, got.Positions, 1)
}

func TestAttachValidated_RejectsUnsizedOutcome(t *testing.T) {
	svc, _, _ := newTestService(t)
	p := domain.Pattern{Kind: domain.PatternSpring, Symbol: "AAPL", RangeStart: time.Now()}
	_, _, err := svc.AttachValidated(domain.Rejected(p, domain.StageRiskValidation, "over cap"))
	assert.Error(t, err)
}
