package scheduler

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/wyckoff-trader/internal/audit"
	"github.com/aristath/wyckoff-trader/internal/modules/campaign"
	"github.com/aristath/wyckoff-trader/internal/modules/heat"
)

// EquitySource reports current account equity
type EquitySource interface {
	Equity() float64
}

// HeatSnapshotJob recomputes portfolio heat from persisted open risk
// and records a snapshot. Runs frequently so the tracker never drifts
// from the database after a restart or a missed update.
type HeatSnapshotJob struct {
	log     zerolog.Logger
	repo    *campaign.Repository
	tracker *heat.Tracker
	history *audit.HeatHistoryRepository
	equity  EquitySource
}

// NewHeatSnapshotJob creates a heat snapshot job
func NewHeatSnapshotJob(
	repo *campaign.Repository,
	tracker *heat.Tracker,
	history *audit.HeatHistoryRepository,
	equity EquitySource,
	log zerolog.Logger,
) *HeatSnapshotJob {
	return &HeatSnapshotJob{
		log:     log.With().Str("job", "heat_snapshot").Logger(),
		repo:    repo,
		tracker: tracker,
		history: history,
		equity:  equity,
	}
}

// Name returns the job name
func (j *HeatSnapshotJob) Name() string {
	return "heat_snapshot"
}

// Run recomputes heat and persists the reading
func (j *HeatSnapshotJob) Run() error {
	totalRisk, err := j.repo.TotalOpenRisk()
	if err != nil {
		return fmt.Errorf("failed to compute open risk: %w", err)
	}

	h := j.tracker.UpdateHeat(totalRisk, j.equity.Equity())
	if err := j.history.Record(h, time.Now()); err != nil {
		return err
	}

	j.log.Debug().
		Float64("heat_pct", h.HeatPct).
		Str("state", string(h.State)).
		Msg("Heat snapshot recorded")
	return nil
}
