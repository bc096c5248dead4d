package risk

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/wyckoff-trader/internal/domain"
	"github.com/aristath/wyckoff-trader/internal/modules/heat"
)

// RejectionReason is the canonical reason string for sizing failures.
const RejectionReason = "risk_validation_failed"

// Validator sizes new entries under the three-tier risk hierarchy:
// per-trade <= per-campaign remaining <= portfolio headroom. Any cap
// breach rejects the entry; there is no override path.
type Validator struct {
	log    zerolog.Logger
	limits domain.RiskLimits
	heat   *heat.Tracker
}

// NewValidator creates a risk validator
func NewValidator(limits domain.RiskLimits, tracker *heat.Tracker, log zerolog.Logger) *Validator {
	return &Validator{
		log:    log.With().Str("component", "risk_validator").Logger(),
		limits: limits,
		heat:   tracker,
	}
}

// Limits returns the configured risk limits
func (v *Validator) Limits() domain.RiskLimits {
	return v.limits
}

// Size computes the position sizing for a pattern entering a campaign.
//
// allocationFraction is the BMAD leg share of the campaign cap (e.g.
// 0.40 for a Spring leg). campaign may carry earlier legs whose
// allocated risk consumes campaign capacity. equity is current account
// equity.
//
// On failure, the returned reason is non-empty and sizing is nil.
func (v *Validator) Size(
	p domain.Pattern,
	campaign *domain.Campaign,
	allocationFraction float64,
	equity float64,
) (*domain.PositionSizing, string) {
	// EXCEEDED heat is a hard gate: nothing new gets sized.
	if v.heat.Exceeded() {
		v.log.Warn().
			Str("symbol", p.Symbol).
			Float64("heat_pct", v.heat.Heat().HeatPct).
			Msg("Entry blocked: portfolio heat exceeded")
		return nil, fmt.Sprintf("%s: portfolio heat %.2f%% exceeds %.2f%% ceiling",
			RejectionReason, v.heat.Heat().HeatPct, v.limits.PortfolioPct)
	}

	if equity <= 0 {
		return nil, fmt.Sprintf("%s: non-positive equity", RejectionReason)
	}

	riskPerUnit := p.RiskPerUnit()
	if riskPerUnit <= 0 {
		return nil, fmt.Sprintf("%s: entry %.4f at or below stop %.4f",
			RejectionReason, p.EntryPrice, p.StopPrice)
	}

	if allocationFraction <= 0 || allocationFraction > 1 {
		return nil, fmt.Sprintf("%s: invalid allocation fraction %.2f", RejectionReason, allocationFraction)
	}

	// Leg risk is its share of the campaign cap, never above per-trade.
	riskPct := allocationFraction * v.limits.PerCampaignPct
	if riskPct > v.limits.PerTradePct {
		riskPct = v.limits.PerTradePct
	}

	// Campaign capacity check.
	campaignAllocated := 0.0
	campaignID := domain.CampaignID(p.Symbol, p.RangeStart)
	if campaign != nil {
		campaignAllocated = campaign.AllocatedRisk
		campaignID = campaign.ID
	}
	if campaignAllocated+riskPct > v.limits.PerCampaignPct+1e-9 {
		return nil, fmt.Sprintf("%s: campaign at %.2f%% of %.2f%% cap, leg needs %.2f%%",
			RejectionReason, campaignAllocated, v.limits.PerCampaignPct, riskPct)
	}

	// Portfolio headroom check.
	current := v.heat.Heat().HeatPct
	if current+riskPct > v.limits.PortfolioPct+1e-9 {
		return nil, fmt.Sprintf("%s: portfolio heat %.2f%% + leg %.2f%% breaches %.2f%% ceiling",
			RejectionReason, current, riskPct, v.limits.PortfolioPct)
	}

	sizing := &domain.PositionSizing{
		Symbol:     p.Symbol,
		CampaignID: campaignID,
		RiskPct:    riskPct,
		RiskAmount: equity * riskPct / 100,
		EntryPrice: p.EntryPrice,
		StopPrice:  p.StopPrice,
	}
	sizing.Quantity = sizing.RiskAmount / riskPerUnit

	// WARNING/CRITICAL surface advisory proximity warnings, never block.
	switch v.heat.Heat().State {
	case domain.AlertWarning:
		sizing.Advisory = fmt.Sprintf("portfolio heat %.2f%% approaching ceiling", current)
	case domain.AlertCritical:
		sizing.Advisory = fmt.Sprintf("portfolio heat %.2f%% critical, %.2f%% headroom remains",
			current, v.limits.PortfolioPct-current)
	}

	v.log.Debug().
		Str("symbol", p.Symbol).
		Float64("risk_pct", riskPct).
		Float64("quantity", sizing.Quantity).
		Msg("Entry sized")

	return sizing, ""
}
