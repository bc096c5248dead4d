package domain

import "fmt"

// RiskLimits holds the three-tier equity-percentage ceilings.
// The hierarchy per-trade < per-campaign < portfolio is validated at
// configuration load; a violation prevents startup.
type RiskLimits struct {
	PerTradePct    float64 `json:"per_trade_pct"`    // default 2.0
	PerCampaignPct float64 `json:"per_campaign_pct"` // default 5.0
	PortfolioPct   float64 `json:"portfolio_pct"`    // default 10.0
}

// DefaultRiskLimits returns the standard 2/5/10 limit set.
func DefaultRiskLimits() RiskLimits {
	return RiskLimits{
		PerTradePct:    2.0,
		PerCampaignPct: 5.0,
		PortfolioPct:   10.0,
	}
}

// Validate enforces the risk hierarchy invariant.
func (r RiskLimits) Validate() error {
	if r.PerTradePct <= 0 || r.PerCampaignPct <= 0 || r.PortfolioPct <= 0 {
		return fmt.Errorf("%w: risk limits must be positive (trade=%.2f campaign=%.2f portfolio=%.2f)",
			ErrInvariantViolation, r.PerTradePct, r.PerCampaignPct, r.PortfolioPct)
	}
	if r.PerTradePct >= r.PerCampaignPct || r.PerCampaignPct >= r.PortfolioPct {
		return fmt.Errorf("%w: risk hierarchy requires per-trade < per-campaign < portfolio (got %.2f/%.2f/%.2f)",
			ErrInvariantViolation, r.PerTradePct, r.PerCampaignPct, r.PortfolioPct)
	}
	return nil
}

// AlertState is the portfolio heat alert level.
type AlertState string

const (
	AlertNormal   AlertState = "NORMAL"   // heat < 7%
	AlertWarning  AlertState = "WARNING"  // 7% <= heat < 9%
	AlertCritical AlertState = "CRITICAL" // 9% <= heat < 10%
	AlertExceeded AlertState = "EXCEEDED" // heat >= 10%, blocks all new entries
)

// AlertStateFor derives the alert state for a heat percentage.
func AlertStateFor(heatPct float64) AlertState {
	switch {
	case heatPct >= 10.0:
		return AlertExceeded
	case heatPct >= 9.0:
		return AlertCritical
	case heatPct >= 7.0:
		return AlertWarning
	default:
		return AlertNormal
	}
}

// PortfolioHeat is aggregate open risk as a percentage of equity.
type PortfolioHeat struct {
	HeatPct   float64    `json:"heat_pct"`
	TotalRisk float64    `json:"total_risk"`
	Equity    float64    `json:"equity"`
	State     AlertState `json:"state"`
}

// PositionSizing is the sizing result produced by the risk validator
// for a validated pattern.
type PositionSizing struct {
	Symbol       string  `json:"symbol"`
	CampaignID   string  `json:"campaign_id"`
	RiskAmount   float64 `json:"risk_amount"`   // currency at risk
	RiskPct      float64 `json:"risk_pct"`      // risk as % of equity
	Quantity     float64 `json:"quantity"`      // units to buy
	EntryPrice   float64 `json:"entry_price"`
	StopPrice    float64 `json:"stop_price"`
	Advisory     string  `json:"advisory,omitempty"` // proximity warning at WARNING/CRITICAL heat
}
