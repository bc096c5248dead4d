package domain

import "time"

// AuditEventType classifies append-only audit records.
type AuditEventType string

const (
	AuditStageAccept    AuditEventType = "STAGE_ACCEPT"
	AuditStageReject    AuditEventType = "STAGE_REJECT"
	AuditCampaignChange AuditEventType = "CAMPAIGN_CHANGE"
	AuditHeatChange     AuditEventType = "HEAT_CHANGE"
)

// AuditEvent is a write-once record of a stage decision or a
// campaign/heat state change. Ordering is wall-clock plus a monotonic
// sequence number assigned at emission time, so the total order is
// stable across concurrent workers regardless of clock skew.
type AuditEvent struct {
	Sequence   uint64         `json:"sequence"`
	Type       AuditEventType `json:"type"`
	Symbol     string         `json:"symbol,omitempty"`
	CampaignID string         `json:"campaign_id,omitempty"`
	Stage      string         `json:"stage,omitempty"`
	Reason     string         `json:"reason,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
	Payload    map[string]any `json:"payload,omitempty"`
}

// DecisionRecord is the one-per-pattern accept/reject record,
// queryable by symbol and date range.
type DecisionRecord struct {
	ID         int64     `json:"id"`
	Symbol     string    `json:"symbol"`
	Kind       PatternKind `json:"kind"`
	Validated  bool      `json:"validated"`
	Reasons    []string  `json:"reasons"`
	Stage      string    `json:"stage,omitempty"`
	Confidence float64   `json:"confidence"`
	DetectedAt time.Time `json:"detected_at"`
	DecidedAt  time.Time `json:"decided_at"`
}
