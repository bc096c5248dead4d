package pipeline

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/wyckoff-trader/internal/audit"
	"github.com/aristath/wyckoff-trader/internal/domain"
	"github.com/aristath/wyckoff-trader/internal/events"
	"github.com/aristath/wyckoff-trader/internal/modules/campaign"
	"github.com/aristath/wyckoff-trader/internal/modules/risk"
	"github.com/aristath/wyckoff-trader/internal/modules/scoring"
	"github.com/aristath/wyckoff-trader/pkg/formulas"
)

// Named breaker dependencies for the external-facing stages.
const (
	DepPhaseClassifier = "phase_classifier"
	DepScorerRegistry  = "scorer_registry"
	DepRiskManager     = "risk_manager"
)

// DefaultMinConfidence is the floor a scored pattern must clear at the
// pattern-detection stage.
const DefaultMinConfidence = 50.0

// volumeBaselineBars is the SMA window for the volume baseline.
const volumeBaselineBars = 20

// PhaseClassifier assigns a Wyckoff phase when a detector did not.
// External service, wrapped by a circuit breaker.
type PhaseClassifier interface {
	Classify(symbol string, bars []domain.Bar) (domain.WyckoffPhase, error)
}

// EquitySource reports current account equity for sizing
type EquitySource interface {
	Equity() float64
}

// Pipeline runs a pattern through the seven validation stages in
// strict order. A stage either passes the pattern forward or terminates
// it with a rejected outcome; there is no override path and stage
// failures never propagate as errors past this boundary. Every stage
// decision is audited before the pipeline moves on.
type Pipeline struct {
	log           zerolog.Logger
	registry      *scoring.Registry
	breaker       *risk.CircuitBreaker
	validator     *risk.Validator
	campaigns     *campaign.Service
	classifier    PhaseClassifier
	equity        EquitySource
	sink          domain.AuditSink
	decisions     *audit.DecisionRepository
	emitter       *events.Emitter
	minConfidence float64
}

// Config carries pipeline collaborators
type Config struct {
	Registry      *scoring.Registry
	Breaker       *risk.CircuitBreaker
	Validator     *risk.Validator
	Campaigns     *campaign.Service
	Classifier    PhaseClassifier
	Equity        EquitySource
	Audit         domain.AuditSink
	Decisions     *audit.DecisionRepository
	Emitter       *events.Emitter
	MinConfidence float64
}

// New creates a validation pipeline
func New(cfg Config, log zerolog.Logger) *Pipeline {
	minConfidence := cfg.MinConfidence
	if minConfidence <= 0 {
		minConfidence = DefaultMinConfidence
	}
	return &Pipeline{
		log:           log.With().Str("service", "pipeline").Logger(),
		registry:      cfg.Registry,
		breaker:       cfg.Breaker,
		validator:     cfg.Validator,
		campaigns:     cfg.Campaigns,
		classifier:    cfg.Classifier,
		equity:        cfg.Equity,
		sink:          cfg.Audit,
		decisions:     cfg.Decisions,
		emitter:       cfg.Emitter,
		minConfidence: minConfidence,
	}
}

// Process runs one pattern through all stages and returns its single,
// final outcome.
func (pl *Pipeline) Process(p domain.Pattern, bars []domain.Bar) domain.ValidationOutcome {
	// Stage 1: ingest sanity.
	if reason := pl.ingest(p); reason != "" {
		return pl.reject(p, domain.StageIngest, reason)
	}
	pl.stageAccept(p, domain.StageIngest, "")

	// Stage 2: volume analysis. Detector measurements win; the SMA
	// baseline fills in when the detector left the ratio unset.
	p, reason := pl.analyzeVolume(p, bars)
	if reason != "" {
		return pl.reject(p, domain.StageVolumeAnalysis, reason)
	}
	pl.stageAccept(p, domain.StageVolumeAnalysis, fmt.Sprintf("volume_ratio=%.2f", p.VolumeRatio))

	// Stage 3: trading-range detection.
	if p.RangeStart.IsZero() {
		return pl.reject(p, domain.StageRangeDetection, "no trading range context")
	}
	if p.RangeSupport <= 0 {
		return pl.reject(p, domain.StageRangeDetection, "missing range support level")
	}
	pl.stageAccept(p, domain.StageRangeDetection, "")

	// Stage 4: phase classification (external, breaker-wrapped).
	p, reason = pl.classifyPhase(p, bars)
	if reason != "" {
		return pl.reject(p, domain.StagePhaseClassify, reason)
	}
	pl.stageAccept(p, domain.StagePhaseClassify, string(p.Phase))

	// Stage 5: pattern confirmation and confidence scoring.
	score, reason := pl.scorePattern(p)
	if reason != "" {
		return pl.reject(p, domain.StagePatternDetection, reason)
	}
	pl.stageAccept(p, domain.StagePatternDetection, fmt.Sprintf("confidence=%.1f/%.0f", score.TotalScore, score.MaxPossible))

	// Stage 6: risk validation and sizing. Informational kinds carry
	// no entry, so they skip sizing but still produce an outcome.
	var sizing *domain.PositionSizing
	if pl.campaigns.IsEntryKind(p.Kind) {
		sizing, reason = pl.validateRisk(p)
		if reason != "" {
			return pl.reject(p, domain.StageRiskValidation, reason)
		}
	}
	pl.stageAccept(p, domain.StageRiskValidation, "")

	// Stage 7: signal generation.
	outcome := domain.ValidationOutcome{
		Pattern:   p,
		Validated: true,
		Score:     &score,
		Sizing:    sizing,
	}
	pl.stageAccept(p, domain.StageSignalGeneration, "")
	pl.finish(outcome)
	return outcome
}

func (pl *Pipeline) ingest(p domain.Pattern) string {
	if p.Symbol == "" {
		return "missing symbol"
	}
	switch p.Kind {
	case domain.PatternSpring, domain.PatternSOS, domain.PatternLPS,
		domain.PatternUTAD, domain.PatternSC, domain.PatternAR, domain.PatternST:
	default:
		return fmt.Sprintf("unknown pattern kind %q", p.Kind)
	}
	if p.DetectedAt.IsZero() {
		return "missing detection timestamp"
	}
	return ""
}

func (pl *Pipeline) analyzeVolume(p domain.Pattern, bars []domain.Bar) (domain.Pattern, string) {
	if p.VolumeRatio > 0 {
		return p, ""
	}
	if len(bars) == 0 {
		return p, "no volume measurement and no bar data"
	}

	volumes := make([]float64, len(bars))
	for i, b := range bars {
		volumes[i] = b.Volume
	}
	ratio := formulas.VolumeRatio(volumes, volumeBaselineBars)
	if ratio == nil {
		return p, fmt.Sprintf("insufficient bars for volume baseline (%d < %d)", len(bars), volumeBaselineBars+1)
	}
	p.VolumeRatio = *ratio
	if trend := formulas.VolumeTrendSlope(volumes, volumeBaselineBars); trend != nil && p.VolumeTrend == 0 {
		p.VolumeTrend = *trend
	}
	return p, ""
}

func (pl *Pipeline) classifyPhase(p domain.Pattern, bars []domain.Bar) (domain.Pattern, string) {
	if p.Phase != domain.PhaseUnknown {
		return p, ""
	}
	if pl.classifier == nil {
		return p, "phase unknown and no classifier configured"
	}

	var phase domain.WyckoffPhase
	err := pl.breaker.Call(DepPhaseClassifier, func() error {
		var cerr error
		phase, cerr = pl.classifier.Classify(p.Symbol, bars)
		return cerr
	})
	if err != nil {
		// An open breaker is a stage rejection, never a crash.
		if errors.Is(err, domain.ErrCircuitOpen) {
			return p, fmt.Sprintf("phase classifier unavailable: %v", err)
		}
		return p, fmt.Sprintf("phase classification failed: %v", err)
	}
	if phase == domain.PhaseUnknown {
		return p, "classifier returned no phase"
	}
	p.Phase = phase
	return p, ""
}

func (pl *Pipeline) scorePattern(p domain.Pattern) (domain.ConfidenceScore, string) {
	var score domain.ConfidenceScore
	err := pl.breaker.Call(DepScorerRegistry, func() error {
		scorer, serr := pl.registry.ScorerForSymbol(p.Symbol)
		if serr != nil {
			return serr
		}
		score, serr = scoring.Score(scorer, p)
		return serr
	})
	if err != nil {
		if errors.Is(err, domain.ErrCircuitOpen) {
			return score, fmt.Sprintf("scorer unavailable: %v", err)
		}
		return score, fmt.Sprintf("scoring failed: %v", err)
	}
	if score.TotalScore < pl.minConfidence {
		return score, fmt.Sprintf("confidence %.1f below minimum %.1f", score.TotalScore, pl.minConfidence)
	}
	return score, ""
}

func (pl *Pipeline) validateRisk(p domain.Pattern) (*domain.PositionSizing, string) {
	var sizing *domain.PositionSizing
	var reason string
	err := pl.breaker.Call(DepRiskManager, func() error {
		c, cerr := pl.campaigns.FindForPattern(p)
		if cerr != nil {
			return cerr
		}
		fraction, cerr := pl.campaigns.LegFraction(c, p.Kind)
		if cerr != nil {
			return cerr
		}
		sizing, reason = pl.validator.Size(p, c, fraction, pl.equity.Equity())
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrCircuitOpen) {
			return nil, fmt.Sprintf("risk manager unavailable: %v", err)
		}
		return nil, fmt.Sprintf("risk validation errored: %v", err)
	}
	return sizing, reason
}

func (pl *Pipeline) reject(p domain.Pattern, stage, reason string) domain.ValidationOutcome {
	outcome := domain.Rejected(p, stage, reason)

	pl.recordAudit(domain.AuditEvent{
		Type:       domain.AuditStageReject,
		Symbol:     p.Symbol,
		CampaignID: pl.campaignID(p),
		Stage:      stage,
		Reason:     reason,
		Timestamp:  time.Now(),
	})
	pl.finish(outcome)

	pl.log.Info().
		Str("symbol", p.Symbol).
		Str("kind", string(p.Kind)).
		Str("stage", stage).
		Str("reason", reason).
		Msg("Pattern rejected")
	return outcome
}

func (pl *Pipeline) stageAccept(p domain.Pattern, stage, detail string) {
	pl.recordAudit(domain.AuditEvent{
		Type:       domain.AuditStageAccept,
		Symbol:     p.Symbol,
		CampaignID: pl.campaignID(p),
		Stage:      stage,
		Reason:     detail,
		Timestamp:  time.Now(),
	})
}

// finish persists the decision record and emits the terminal event.
// Runs once per pattern, after the last stage decision is audited.
func (pl *Pipeline) finish(outcome domain.ValidationOutcome) {
	if pl.decisions != nil {
		if err := pl.decisions.RecordOutcome(outcome); err != nil {
			pl.log.Error().Err(err).Str("symbol", outcome.Pattern.Symbol).Msg("Failed to record decision")
		}
	}
	if pl.emitter == nil {
		return
	}

	data := map[string]interface{}{
		"symbol": outcome.Pattern.Symbol,
		"kind":   string(outcome.Pattern.Kind),
	}
	if outcome.Validated {
		if outcome.Score != nil {
			data["confidence"] = outcome.Score.TotalScore
		}
		pl.emitter.EmitForCampaign(events.PatternValidated, "pipeline", pl.campaignID(outcome.Pattern), data)
		return
	}
	data["stage"] = outcome.Stage
	data["reason"] = outcome.Reason
	pl.emitter.EmitForCampaign(events.PatternRejected, "pipeline", pl.campaignID(outcome.Pattern), data)
}

func (pl *Pipeline) recordAudit(event domain.AuditEvent) {
	if pl.sink == nil {
		return
	}
	if err := pl.sink.Record(event); err != nil {
		pl.log.Error().Err(err).Str("stage", event.Stage).Msg("Failed to record audit event")
	}
}

func (pl *Pipeline) campaignID(p domain.Pattern) string {
	if p.RangeStart.IsZero() {
		return ""
	}
	return domain.CampaignID(p.Symbol, p.RangeStart)
}
