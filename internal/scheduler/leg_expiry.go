package scheduler

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/wyckoff-trader/internal/modules/campaign"
)

// DefaultLegWindow is how long each scheduled leg stays fillable after
// the previous leg's deadline.
const DefaultLegWindow = 5 * 24 * time.Hour

// LegExpiryJob walks open campaigns and marks legs whose validity
// window lapsed unfilled as skipped, so later legs size against the
// rebalanced allocation instead of leaving campaign capital stranded.
//
// The i-th scheduled leg (Spring, SOS, LPS) expires (i+1) windows after
// campaign creation.
type LegExpiryJob struct {
	log    zerolog.Logger
	svc    *campaign.Service
	window time.Duration
}

// NewLegExpiryJob creates a leg expiry job
func NewLegExpiryJob(svc *campaign.Service, window time.Duration, log zerolog.Logger) *LegExpiryJob {
	if window <= 0 {
		window = DefaultLegWindow
	}
	return &LegExpiryJob{
		log:    log.With().Str("job", "leg_expiry").Logger(),
		svc:    svc,
		window: window,
	}
}

// Name returns the job name
func (j *LegExpiryJob) Name() string {
	return "leg_expiry"
}

// Run expires lapsed legs across all open campaigns
func (j *LegExpiryJob) Run() error {
	campaigns, err := j.svc.Repo().ListOpen()
	if err != nil {
		return err
	}

	now := time.Now()
	for _, c := range campaigns {
		for i, kind := range j.svc.EntryKinds() {
			deadline := c.CreatedAt.Add(time.Duration(i+1) * j.window)
			if now.Before(deadline) || c.HasLeg(kind) {
				continue
			}
			skipped := false
			for _, k := range c.SkippedLegs {
				if k == kind {
					skipped = true
					break
				}
			}
			if skipped {
				continue
			}

			if err := j.svc.SkipLeg(c.ID, kind); err != nil {
				j.log.Error().Err(err).
					Str("campaign_id", c.ID).
					Str("kind", string(kind)).
					Msg("Failed to skip expired leg")
			}
		}
	}
	return nil
}
