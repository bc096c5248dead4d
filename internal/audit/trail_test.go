package audit

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/wyckoff-trader/internal/database"
	"github.com/aristath/wyckoff-trader/internal/domain"
	"github.com/aristath/wyckoff-trader/pkg/logger"
)

func newTestTrail(t *testing.T) *Trail {
	t.Helper()

	db, err := database.NewAudit(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	trail, err := NewTrail(db.Conn(), logger.New(logger.Config{Level: "error"}))
	require.NoError(t, err)
	return trail
}

func TestTrail_RecordAndRead(t *testing.T) {
	trail := newTestTrail(t)

	err := trail.Record(domain.AuditEvent{
		Type:       domain.AuditStageReject,
		Symbol:     "AAPL",
		CampaignID: "AAPL-2026-01-05",
		Stage:      domain.StageRiskValidation,
		Reason:     "risk_validation_failed: campaign at cap",
		Payload:    map[string]any{"confidence": 88.0},
	})
	require.NoError(t, err)

	events, err := trail.Events(0, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)

	assert.Equal(t, uint64(1), events[0].Sequence)
	assert.Equal(t, domain.AuditStageReject, events[0].Type)
	assert.Equal(t, "AAPL", events[0].Symbol)
	assert.Equal(t, 88.0, events[0].Payload["confidence"])
}

func TestTrail_SequenceIsMonotonic(t *testing.T) {
	trail := newTestTrail(t)

	for i := 0; i < 5; i++ {
		require.NoError(t, trail.Record(domain.AuditEvent{
			Type:   domain.AuditStageAccept,
			Symbol: "MSFT",
		}))
	}

	events, err := trail.Events(0, 10)
	require.NoError(t, err)
	require.Len(t, events, 5)

	for i, event := range events {
		assert.Equal(t, uint64(i+1), event.Sequence)
	}
}

func TestTrail_EventsForCampaign(t *testing.T) {
	trail := newTestTrail(t)

	require.NoError(t, trail.Record(domain.AuditEvent{
		Type: domain.AuditCampaignChange, CampaignID: "AAPL-2026-01-05",
	}))
	require.NoError(t, trail.Record(domain.AuditEvent{
		Type: domain.AuditCampaignChange, CampaignID: "MSFT-2026-02-10",
	}))
	require.NoError(t, trail.Record(domain.AuditEvent{
		Type: domain.AuditCampaignChange, CampaignID: "AAPL-2026-01-05",
	}))

	events, err := trail.EventsForCampaign("AAPL-2026-01-05")
	require.NoError(t, err)
	assert.Len(t, events, 2)
	assert.Less(t, events[0].Sequence, events[1].Sequence)
}

func TestDecisionRepository_RecordAndQuery(t *testing.T) {
	db, err := database.NewAudit(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	log := logger.New(logger.Config{Level: "error"})
	_, err = NewTrail(db.Conn(), log) // ensures schema
	require.NoError(t, err)

	repo := NewDecisionRepository(db.Conn(), log)

	detected := time.Date(2026, 1, 5, 14, 30, 0, 0, time.UTC)
	score := domain.ConfidenceScore{TotalScore: 85}

	require.NoError(t, repo.RecordOutcome(domain.Accepted(
		domain.Pattern{Symbol: "AAPL", Kind: domain.PatternSpring, DetectedAt: detected},
		score,
		domain.PositionSizing{},
	)))
	require.NoError(t, repo.RecordOutcome(domain.Rejected(
		domain.Pattern{Symbol: "AAPL", Kind: domain.PatternSOS, DetectedAt: detected},
		domain.StageRiskValidation,
		"risk_validation_failed",
	)))
	require.NoError(t, repo.RecordOutcome(domain.Rejected(
		domain.Pattern{Symbol: "MSFT", Kind: domain.PatternSpring, DetectedAt: detected},
		domain.StageVolumeAnalysis,
		"volume ratio unavailable",
	)))

	records, err := repo.Query("AAPL", time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.True(t, records[0].Validated)
	assert.Equal(t, 85.0, records[0].Confidence)
	assert.False(t, records[1].Validated)
	assert.Equal(t, []string{"risk_validation_failed"}, records[1].Reasons)

	stats, err := repo.Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Accepted)
	assert.Equal(t, 2, stats.Rejected)
	assert.Equal(t, 1, stats.ByStage[domain.StageRiskValidation])
	assert.Equal(t, 1, stats.ByStage[domain.StageVolumeAnalysis])
}
