package config

import (
	"errors"
	"testing"

	"github.com/aristath/wyckoff-trader/internal/domain"
)

func TestValidate_RiskHierarchy(t *testing.T) {
	tests := []struct {
		name    string
		limits  domain.RiskLimits
		wantErr bool
	}{
		{
			name:    "standard 2/5/10",
			limits:  domain.RiskLimits{PerTradePct: 2, PerCampaignPct: 5, PortfolioPct: 10},
			wantErr: false,
		},
		{
			name:    "per-trade equals per-campaign",
			limits:  domain.RiskLimits{PerTradePct: 5, PerCampaignPct: 5, PortfolioPct: 10},
			wantErr: true,
		},
		{
			name:    "per-trade above per-campaign",
			limits:  domain.RiskLimits{PerTradePct: 6, PerCampaignPct: 5, PortfolioPct: 10},
			wantErr: true,
		},
		{
			name:    "campaign above portfolio",
			limits:  domain.RiskLimits{PerTradePct: 2, PerCampaignPct: 12, PortfolioPct: 10},
			wantErr: true,
		},
		{
			name:    "zero limit",
			limits:  domain.RiskLimits{PerTradePct: 0, PerCampaignPct: 5, PortfolioPct: 10},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				DatabasePath:    "./data/campaigns.db",
				AuditDBPath:     "./data/audit.db",
				RiskLimits:      tt.limits,
				PipelineWorkers: 4,
				AccountEquity:   100_000,
			}
			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Errorf("Expected validation error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Expected no error, got %v", err)
			}
			if tt.wantErr && err != nil && !errors.Is(err, domain.ErrInvariantViolation) {
				t.Errorf("Expected ErrInvariantViolation, got %v", err)
			}
		})
	}
}
