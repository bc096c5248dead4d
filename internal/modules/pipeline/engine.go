package pipeline

import (
	"context"
	"hash/fnv"
	"sync"

	"github.com/rs/zerolog"

	"github.com/aristath/wyckoff-trader/internal/domain"
	"github.com/aristath/wyckoff-trader/internal/events"
	"github.com/aristath/wyckoff-trader/internal/modules/campaign"
	"github.com/aristath/wyckoff-trader/internal/modules/heat"
	"github.com/aristath/wyckoff-trader/internal/modules/prioritizer"
)

// task is one symbol's bar window awaiting evaluation
type task struct {
	symbol string
	bars   []domain.Bar
}

// Engine runs pattern evaluation across a worker pool. Tasks are
// sharded by symbol hash so a single symbol's pattern stream always
// lands on the same worker and evaluates in strict sequence, while
// different symbols run in parallel. The kill switch is consulted once,
// at submission; in-flight evaluations always complete.
type Engine struct {
	log       zerolog.Logger
	pipeline  *Pipeline
	source    domain.PatternSource
	campaigns *campaign.Service
	tracker   *heat.Tracker
	equity    EquitySource
	executor  domain.ExecutionAdapter
	emitter   *events.Emitter
	kill      domain.KillSwitch
	ranker    *prioritizer.Prioritizer

	queues []chan task
	wg     sync.WaitGroup
}

// EngineConfig carries engine collaborators
type EngineConfig struct {
	Pipeline  *Pipeline
	Source    domain.PatternSource
	Campaigns *campaign.Service
	Tracker   *heat.Tracker
	Equity    EquitySource
	Executor  domain.ExecutionAdapter
	Emitter   *events.Emitter
	Kill      domain.KillSwitch
	Ranker    *prioritizer.Prioritizer
	Workers   int
}

// NewEngine creates the evaluation engine
func NewEngine(cfg EngineConfig, log zerolog.Logger) *Engine {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}
	queues := make([]chan task, workers)
	for i := range queues {
		queues[i] = make(chan task, 32)
	}
	return &Engine{
		log:       log.With().Str("service", "engine").Logger(),
		pipeline:  cfg.Pipeline,
		source:    cfg.Source,
		campaigns: cfg.Campaigns,
		tracker:   cfg.Tracker,
		equity:    cfg.Equity,
		executor:  cfg.Executor,
		emitter:   cfg.Emitter,
		kill:      cfg.Kill,
		ranker:    cfg.Ranker,
		queues:    queues,
	}
}

// Start launches the worker pool. Workers drain their queues and exit
// when the context is cancelled.
func (e *Engine) Start(ctx context.Context) {
	for i, q := range e.queues {
		e.wg.Add(1)
		go e.worker(ctx, i, q)
	}
	e.log.Info().Int("workers", len(e.queues)).Msg("Evaluation engine started")
}

// Stop waits for in-flight evaluations to finish
func (e *Engine) Stop() {
	e.wg.Wait()
}

// Submit queues a symbol's bar window for evaluation. Returns false
// when the kill switch is engaged or the worker queue is full.
func (e *Engine) Submit(ctx context.Context, symbol string, bars []domain.Bar) bool {
	if e.kill != nil && e.kill.Engaged() {
		e.log.Warn().Str("symbol", symbol).Msg("Submission refused: kill switch engaged")
		return false
	}

	q := e.queues[shard(symbol, len(e.queues))]
	select {
	case q <- task{symbol: symbol, bars: bars}:
		return true
	case <-ctx.Done():
		return false
	default:
		e.log.Warn().Str("symbol", symbol).Msg("Submission dropped: worker queue full")
		return false
	}
}

func (e *Engine) worker(ctx context.Context, id int, q chan task) {
	defer e.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-q:
			e.evaluate(ctx, t)
		}
	}
}

// evaluate detects patterns in a bar window and runs each through the
// pipeline in detection order.
func (e *Engine) evaluate(ctx context.Context, t task) {
	patterns, err := e.source.Detect(t.symbol, t.bars)
	if err != nil {
		e.log.Error().Err(err).Str("symbol", t.symbol).Msg("Pattern detection failed")
		e.emitter.EmitError("engine", err, map[string]interface{}{"symbol": t.symbol})
		return
	}

	var entries []domain.ValidationOutcome
	for _, p := range patterns {
		// A close below the Creek invalidates the pattern's campaign
		// before markup; the pattern itself still gets its outcome.
		if len(t.bars) > 0 && p.RangeSupport > 0 && !p.RangeStart.IsZero() {
			lastClose := t.bars[len(t.bars)-1].Close
			if err := e.campaigns.CheckRangeBreak(p.Symbol, p.RangeStart, p.RangeSupport, lastClose); err != nil {
				e.log.Error().Err(err).Str("symbol", p.Symbol).Msg("Range break check failed")
			}
		}

		outcome := e.pipeline.Process(p, t.bars)
		if !outcome.Validated {
			continue
		}
		if outcome.Sizing == nil {
			// Informational pattern: update campaign phase history only.
			if err := e.campaigns.RecordDetection(p); err != nil {
				e.log.Error().Err(err).Str("symbol", p.Symbol).Msg("Failed to record detection")
			}
			continue
		}
		entries = append(entries, outcome)
	}

	// Competing entries attach highest-priority first, so remaining
	// portfolio heat goes to high-conviction, uncorrelated signals.
	if e.ranker != nil && len(entries) > 1 {
		ranked := e.ranker.Rank(entries)
		entries = entries[:0]
		for _, c := range ranked {
			entries = append(entries, c.Outcome)
		}
	}
	for _, outcome := range entries {
		e.attach(ctx, outcome)
	}
}

// attach binds a validated, sized signal to its campaign, refreshes
// portfolio heat from persisted open risk, and hands the signal to the
// execution adapter. Execution failures are logged, never retried here.
func (e *Engine) attach(ctx context.Context, outcome domain.ValidationOutcome) {
	c, _, err := e.campaigns.AttachValidated(outcome)
	if err != nil {
		e.log.Error().Err(err).Str("symbol", outcome.Pattern.Symbol).Msg("Failed to attach validated signal")
		e.emitter.EmitError("engine", err, map[string]interface{}{"symbol": outcome.Pattern.Symbol})
		return
	}

	totalRisk, err := e.campaigns.Repo().TotalOpenRisk()
	if err != nil {
		e.log.Error().Err(err).Msg("Failed to compute open risk")
	} else {
		e.tracker.UpdateHeat(totalRisk, e.equity.Equity())
	}

	if e.executor == nil {
		return
	}
	fill, err := e.executor.Execute(ctx, outcome)
	if err != nil {
		e.log.Error().Err(err).
			Str("campaign_id", c.ID).
			Str("symbol", outcome.Pattern.Symbol).
			Msg("Execution failed")
		return
	}
	e.log.Info().
		Str("campaign_id", c.ID).
		Str("order_id", fill.OrderID).
		Float64("price", fill.Price).
		Float64("quantity", fill.Quantity).
		Msg("Signal executed")
}

func shard(symbol string, n int) int {
	h := fnv.New32a()
	h.Write([]byte(symbol))
	return int(h.Sum32() % uint32(n))
}
