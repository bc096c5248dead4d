package domain

import (
	"fmt"
	"time"
)

// CampaignStatus is the lifecycle state of a campaign.
type CampaignStatus string

const (
	CampaignFormed      CampaignStatus = "FORMED"
	CampaignActive      CampaignStatus = "ACTIVE"
	CampaignMarkup      CampaignStatus = "MARKUP"
	CampaignCompleted   CampaignStatus = "COMPLETED"
	CampaignInvalidated CampaignStatus = "INVALIDATED"
)

// Terminal reports whether the status is an end state. Terminal
// campaigns are retained for audit, never deleted.
func (s CampaignStatus) Terminal() bool {
	return s == CampaignCompleted || s == CampaignInvalidated
}

// CampaignID builds the deterministic campaign identifier from the
// symbol and the start date of its trading range. Repeated signals from
// the same range attach to one campaign instead of creating duplicates.
func CampaignID(symbol string, rangeStart time.Time) string {
	return fmt.Sprintf("%s-%s", symbol, rangeStart.Format("2006-01-02"))
}

// PositionStatus is the open/closed state of a campaign leg.
type PositionStatus string

const (
	PositionOpen   PositionStatus = "OPEN"
	PositionClosed PositionStatus = "CLOSED"
)

// Position is a single campaign leg. A position is owned exclusively
// by its campaign and never shared.
type Position struct {
	ID                 int64          `json:"id"`
	CampaignID         string         `json:"campaign_id"`
	EntryKind          PatternKind    `json:"entry_kind"`
	EntryPhase         WyckoffPhase   `json:"entry_phase"`
	AllocationFraction float64        `json:"allocation_fraction"`
	RiskAmount         float64        `json:"risk_amount"`
	Quantity           float64        `json:"quantity"`
	EntryPrice         float64        `json:"entry_price"`
	StopPrice          float64        `json:"stop_price"`
	Status             PositionStatus `json:"status"`
	RealizedR          *float64       `json:"realized_r,omitempty"` // set once closed
	OpenedAt           time.Time      `json:"opened_at"`
	ClosedAt           *time.Time     `json:"closed_at,omitempty"`
}

// Campaign is a multi-leg trading engagement around one
// accumulation/distribution range in one symbol.
type Campaign struct {
	ID            string               `json:"id"`
	Symbol        string               `json:"symbol"`
	RangeStart    time.Time            `json:"range_start"`
	Status        CampaignStatus       `json:"status"`
	Positions     []Position           `json:"positions"`
	AllocatedRisk float64              `json:"allocated_risk"` // cumulative % of equity committed
	PhaseCounts   map[WyckoffPhase]int `json:"phase_counts"`   // detections seen per phase A-E
	SkippedLegs   []PatternKind        `json:"skipped_legs"`   // legs whose validity window expired unfilled
	CreatedAt     time.Time            `json:"created_at"`
	UpdatedAt     time.Time            `json:"updated_at"`
}

// OpenRisk sums the risk amounts of the campaign's open legs.
func (c *Campaign) OpenRisk() float64 {
	var total float64
	for _, p := range c.Positions {
		if p.Status == PositionOpen {
			total += p.RiskAmount
		}
	}
	return total
}

// HasLeg reports whether a leg with the given entry kind exists.
func (c *Campaign) HasLeg(kind PatternKind) bool {
	for _, p := range c.Positions {
		if p.EntryKind == kind {
			return true
		}
	}
	return false
}
