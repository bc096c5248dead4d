package events

import (
	"time"

	"github.com/aristath/wyckoff-trader/internal/domain"
)

// EventType represents different event types
type EventType string

const (
	// Campaign lifecycle events
	CampaignFormed    EventType = "CAMPAIGN_FORMED"
	CampaignActivated EventType = "CAMPAIGN_ACTIVATED"
	PatternDetected   EventType = "PATTERN_DETECTED"
	CampaignCompleted EventType = "CAMPAIGN_COMPLETED"
	CampaignFailed    EventType = "CAMPAIGN_FAILED"

	// Pipeline events
	PatternValidated EventType = "PATTERN_VALIDATED"
	PatternRejected  EventType = "PATTERN_REJECTED"

	// Risk events
	HeatAlert EventType = "HEAT_ALERT"

	ErrorOccurred EventType = "ERROR_OCCURRED"
)

// Event represents a system event pushed to subscribers. Consumers
// de-duplicate by (campaign_id, type, timestamp); delivery is
// at-least-once.
type Event struct {
	ID         string                 `json:"id"`
	Sequence   uint64                 `json:"sequence"`
	Type       EventType              `json:"type"`
	CampaignID string                 `json:"campaign_id,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
	Data       map[string]interface{} `json:"data"`
	Module     string                 `json:"module"`
}

// HeatAlertData is the payload shape for HEAT_ALERT events
type HeatAlertData struct {
	State     domain.AlertState `json:"state"`
	HeatPct   float64           `json:"heat_pct"`
	Timestamp time.Time         `json:"timestamp"`
}

// ToMap converts the alert payload into the generic event data map
func (d HeatAlertData) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"state":     string(d.State),
		"heat_pct":  d.HeatPct,
		"timestamp": d.Timestamp,
	}
}
