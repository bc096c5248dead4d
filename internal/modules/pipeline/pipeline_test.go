package pipeline

import (
	"context"
	"errors"
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
	"github.com/aristath/wyckoff-trader/internal/modules/campaign"
	"github.com/aristath/wyckoff-trader/internal/modules/heat"
	"github.com/aristath/wyckoff-trader/internal/modules/risk"
	"github.com/aristath/wyckoff-trader/internal/modules/scoring"
	"github.com/aristath/wyckoff-trader/pkg/logger"
)

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

func (m *memorySink) stages() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, e.Stage)
	}
	return out
}

type fixedEquity float64

func (e fixedEquity) Equity() float64 { return float64(e) }

type stubClassifier struct {
	phase domain.WyckoffPhase
	err   error
	calls int
}

func (c *stubClassifier) Classify(symbol string, bars []domain.Bar) (domain.WyckoffPhase, error) {
	c.calls++
	if c.err != nil {
		return domain.PhaseUnknown, c.err
	}
	return c.phase, nil
}

type fixture struct {
	pipeline   *Pipeline
	tracker    *heat.Tracker
	campaigns  *campaign.Service
	sink       *memorySink
	classifier *stubClassifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := logger.New(logger.Config{Level: "error", Pretty: false})

	db, err := database.New(filepath.Join(t.TempDir(), "campaigns.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo, err := campaign.NewRepository(db.Conn(), log)
	require.NoError(t, err)

	sink := &memorySink{}
	emitter := events.NewEmitter(log)
	svc := campaign.NewService(repo, allocation.NewAllocator(log), emitter, sink, locking.NewManager(), log)

	tracker := heat.NewTracker(heat.DefaultAlertCooldown, log)
	classifier := &stubClassifier{phase: domain.PhaseC}

	pl := New(Config{
		Registry:   scoring.NewRegistry(log),
		Breaker:    risk.NewCircuitBreaker(3, time.Minute, log),
		Validator:  risk.NewValidator(domain.DefaultRiskLimits(), tracker, log),
		Campaigns:  svc,
		Classifier: classifier,
		Equity:     fixedEquity(100_000),
		Audit:      sink,
		Emitter:    emitter,
	}, log)

	return &fixture{pipeline: pl, tracker: tracker, campaigns: svc, sink: sink, classifier: classifier}
}

func strongSpring(symbol string) domain.Pattern {
	return domain.Pattern{
		Kind:           domain.PatternSpring,
		Symbol:         symbol,
		DetectedAt:     time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC),
		Phase:          domain.PhaseC,
		VolumeRatio:    0.25,
		PenetrationPct: 0.8,
		RecoveryBars:   2,
		CreekStrength:  0.75,
		RangeStart:     time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
		RangeSupport:   95,
		EntryPrice:     100,
		StopPrice:      95,
	}
}

func TestProcess_AcceptsStrongSpring(t *testing.T) {
	f := newFixture(t)

	outcome := f.pipeline.Process(strongSpring("AAPL"), nil)

	require.True(t, outcome.Validated)
	require.NotNil(t, outcome.Score)
	assert.InDelta(t, 100, outcome.Score.TotalScore, 1e-9)
	require.NotNil(t, outcome.Sizing)
	assert.InDelta(t, 2.0, outcome.Sizing.RiskPct, 1e-9)
	assert.InDelta(t, 400, outcome.Sizing.Quantity, 1e-9)

	// Every stage audited in strict execution order
	assert.Equal(t, domain.PipelineStages, f.sink.stages())
}

func TestProcess_StageOrderStopsAtRejection(t *testing.T) {
	f := newFixture(t)
	p := strongSpring("AAPL")
	p.RangeStart = time.Time{} // no trading range context

	outcome := f.pipeline.Process(p, nil)

	require.False(t, outcome.Validated)
	assert.Equal(t, domain.StageRangeDetection, outcome.Stage)
	// Stages 1-2 accepted, stage 3 rejected, nothing after
	assert.Equal(t, []string{
		domain.StageIngest,
		domain.StageVolumeAnalysis,
		domain.StageRangeDetection,
	}, f.sink.stages())
	assert.Equal(t, domain.AuditStageReject, f.sink.events[2].Type)
}

func TestProcess_IngestRejectsMalformedPattern(t *testing.T) {
	f := newFixture(t)

	p := strongSpring("")
	outcome := f.pipeline.Process(p, nil)
	require.False(t, outcome.Validated)
	assert.Equal(t, domain.StageIngest, outcome.Stage)

	p = strongSpring("AAPL")
	p.Kind = "WEDGE"
	outcome = f.pipeline.Process(p, nil)
	require.False(t, outcome.Validated)
	assert.Equal(t, domain.StageIngest, outcome.Stage)
}

func TestProcess_NoOverride_HeatExceededRejectsHighConfidence(t *testing.T) {
	f := newFixture(t)
	f.tracker.UpdateHeat(10_500, 100_000) // 10.5% heat, EXCEEDED

	// A near-perfect forex spring still rejects; there is no override.
	p := strongSpring("EUR/USD")
	outcome := f.pipeline.Process(p, nil)

	require.False(t, outcome.Validated)
	assert.Equal(t, domain.StageRiskValidation, outcome.Stage)
	assert.Contains(t, outcome.Reason, "heat")
}

func TestProcess_LowConfidenceRejectsAtPatternDetection(t *testing.T) {
	f := newFixture(t)

	p := strongSpring("AAPL")
	p.VolumeRatio = 1.5    // no volume signature
	p.PenetrationPct = 6   // too deep
	p.RecoveryBars = 9     // too slow
	p.CreekStrength = 0.2  // no bonus

	outcome := f.pipeline.Process(p, nil)
	require.False(t, outcome.Validated)
	assert.Equal(t, domain.StagePatternDetection, outcome.Stage)
	assert.Contains(t, outcome.Reason, "below minimum")
}

func TestProcess_PhaseClassifierBreakerOpensToStageRejection(t *testing.T) {
	f := newFixture(t)
	f.classifier.err = errors.New("classifier down")

	p := strongSpring("AAPL")
	p.Phase = domain.PhaseUnknown

	// Three consecutive failures trip the breaker
	for i := 0; i < 3; i++ {
		outcome := f.pipeline.Process(p, nil)
		require.False(t, outcome.Validated)
		assert.Equal(t, domain.StagePhaseClassify, outcome.Stage)
	}
	calls := f.classifier.calls

	// Open breaker short-circuits: rejection without touching the dependency
	outcome := f.pipeline.Process(p, nil)
	require.False(t, outcome.Validated)
	assert.Equal(t, domain.StagePhaseClassify, outcome.Stage)
	assert.Contains(t, outcome.Reason, "unavailable")
	assert.Equal(t, calls, f.classifier.calls)
}

func TestProcess_ClassifierFillsUnknownPhase(t *testing.T) {
	f := newFixture(t)
	f.classifier.phase = domain.PhaseD

	p := strongSpring("AAPL")
	p.Phase = domain.PhaseUnknown

	outcome := f.pipeline.Process(p, nil)
	require.True(t, outcome.Validated)
	assert.Equal(t, domain.PhaseD, outcome.Pattern.Phase)
	assert.Equal(t, 1, f.classifier.calls)
}

func TestProcess_VolumeBaselineFromBars(t *testing.T) {
	f := newFixture(t)

	p := strongSpring("AAPL")
	p.VolumeRatio = 0 // detector left it unset

	// 20 baseline bars at 1000, pattern bar at 250 -> ratio 0.25
	bars := make([]domain.Bar, 21)
	for i := range bars {
		bars[i] = domain.Bar{Volume: 1000}
	}
	bars[20].Volume = 250

	outcome := f.pipeline.Process(p, bars)
	require.True(t, outcome.Validated)
	assert.InDelta(t, 0.25, outcome.Pattern.VolumeRatio, 1e-9)

	// No measurement and no bars is a volume-stage rejection
	p.VolumeRatio = 0
	outcome = f.pipeline.Process(p, nil)
	require.False(t, outcome.Validated)
	assert.Equal(t, domain.StageVolumeAnalysis, outcome.Stage)
}

func TestProcess_InformationalKindValidatesWithoutSizing(t *testing.T) {
	f := newFixture(t)

	p := strongSpring("AAPL")
	p.Kind = domain.PatternST
	p.Phase = domain.PhaseB

	outcome := f.pipeline.Process(p, nil)
	require.True(t, outcome.Validated)
	assert.Nil(t, outcome.Sizing)
}

func TestProcess_CampaignCapacityConsumedAcrossLegs(t *testing.T) {
	f := newFixture(t)

	spring := f.pipeline.Process(strongSpring("AAPL"), nil)
	require.True(t, spring.Validated)
	_, _, err := f.campaigns.AttachValidated(spring)
	require.NoError(t, err)

	// SOS leg sizes against remaining campaign capacity
	sos := strongSpring("AAPL")
	sos.Kind = domain.PatternSOS
	sos.Phase = domain.PhaseD
	sos.VolumeRatio = 2.2
	sos.Spread = 1.6
	sos.ClosePosition = 0.85

	outcome := f.pipeline.Process(sos, nil)
	require.True(t, outcome.Validated)
	require.NotNil(t, outcome.Sizing)
	assert.InDelta(t, 1.5, outcome.Sizing.RiskPct, 1e-9)
}

func TestEngine_KillSwitchBlocksSubmission(t *testing.T) {
	f := newFixture(t)
	log := logger.New(logger.Config{Level: "error"})
	kill := NewSwitch(log)

	engine := NewEngine(EngineConfig{
		Pipeline:  f.pipeline,
		Source:    patternSourceFunc(func(symbol string, bars []domain.Bar) ([]domain.Pattern, error) { return nil, nil }),
		Campaigns: f.campaigns,
		Tracker:   f.tracker,
		Equity:    fixedEquity(100_000),
		Emitter:   events.NewEmitter(log),
		Kill:      kill,
		Workers:   2,
	}, log)

	ctx := context.Background()
	assert.True(t, engine.Submit(ctx, "AAPL", nil))

	kill.Engage("manual halt")
	assert.False(t, engine.Submit(ctx, "AAPL", nil))

	kill.Release()
	assert.True(t, engine.Submit(ctx, "AAPL", nil))
}

type patternSourceFunc func(symbol string, bars []domain.Bar) ([]domain.Pattern, error)

func (f patternSourceFunc) Detect(symbol string, bars []domain.Bar) ([]domain.Pattern, error) {
	return f(symbol, bars)
}

func TestEngine_EvaluateAttachesAndUpdatesHeat(t *testing.T) {
	f := newFixture(t)
	log := logger.New(logger.Config{Level: "error"})

	source := patternSourceFunc(func(symbol string, bars []domain.Bar) ([]domain.Pattern, error) {
		return []domain.Pattern{strongSpring(symbol)}, nil
	})
	engine := NewEngine(EngineConfig{
		Pipeline:  f.pipeline,
		Source:    source,
		Campaigns: f.campaigns,
		Tracker:   f.tracker,
		Equity:    fixedEquity(100_000),
		Emitter:   events.NewEmitter(log),
		Kill:      NewSwitch(log),
		Workers:   1,
	}, log)

	engine.evaluate(context.Background(), task{symbol: "AAPL"})

	c, err := f.campaigns.Repo().GetByID("AAPL-2026-01-05")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, domain.CampaignActive, c.Status)
	assert.Len(t, c.Positions, 1)

	// 2000 risk on 100k equity -> 2% heat
	assert.InDelta(t, 2.0, f.tracker.Heat().HeatPct, 1e-9)
}
