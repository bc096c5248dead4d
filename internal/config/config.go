package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/aristath/wyckoff-trader/internal/domain"
)

// Config holds application configuration
type Config struct {
	Port         int
	DevMode      bool
	LogLevel     string
	DatabasePath string // campaign/state database
	AuditDBPath  string // append-only audit database

	// Risk limits (equity percentages)
	RiskLimits domain.RiskLimits

	// Portfolio heat alert cooldown
	HeatAlertCooldown time.Duration

	// Circuit breaker tuning
	BreakerThreshold int
	BreakerCooldown  time.Duration

	// Pipeline worker pool
	PipelineWorkers int

	// Minimum confidence a scored pattern must clear
	MinConfidence float64

	// Paper-trading account equity used for sizing
	AccountEquity float64

	// How long each scheduled campaign leg stays fillable
	LegWindow time.Duration

	// S3-compatible backup target (Cloudflare R2 shape); optional
	BackupBucket    string
	BackupEndpoint  string
	BackupAccessKey     string
	BackupSecretKey     string
	BackupRetentionDays int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Port:         getEnvAsInt("GO_PORT", 8001),
		DevMode:      getEnvAsBool("DEV_MODE", false),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		DatabasePath: getEnv("DATABASE_PATH", "./data/campaigns.db"),
		AuditDBPath:  getEnv("AUDIT_DB_PATH", "./data/audit.db"),
		RiskLimits: domain.RiskLimits{
			PerTradePct:    getEnvAsFloat("RISK_PER_TRADE_PCT", 2.0),
			PerCampaignPct: getEnvAsFloat("RISK_PER_CAMPAIGN_PCT", 5.0),
			PortfolioPct:   getEnvAsFloat("RISK_PORTFOLIO_PCT", 10.0),
		},
		HeatAlertCooldown:   getEnvAsDuration("HEAT_ALERT_COOLDOWN", 300*time.Second),
		BreakerThreshold:    getEnvAsInt("BREAKER_THRESHOLD", 5),
		BreakerCooldown:     getEnvAsDuration("BREAKER_COOLDOWN", 60*time.Second),
		PipelineWorkers:     getEnvAsInt("PIPELINE_WORKERS", 4),
		MinConfidence:       getEnvAsFloat("MIN_CONFIDENCE", 50.0),
		AccountEquity:       getEnvAsFloat("ACCOUNT_EQUITY", 100_000),
		LegWindow:           getEnvAsDuration("LEG_WINDOW", 120*time.Hour),
		BackupBucket:        getEnv("BACKUP_BUCKET", ""),
		BackupEndpoint:      getEnv("BACKUP_ENDPOINT", ""),
		BackupAccessKey:     getEnv("BACKUP_ACCESS_KEY", ""),
		BackupSecretKey:     getEnv("BACKUP_SECRET_KEY", ""),
		BackupRetentionDays: getEnvAsInt("BACKUP_RETENTION_DAYS", 30),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks required configuration and the risk-limit hierarchy.
// A hierarchy violation is fatal: the pipeline must not accept traffic
// with a misconfigured limit set.
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("DATABASE_PATH is required")
	}
	if c.AuditDBPath == "" {
		return fmt.Errorf("AUDIT_DB_PATH is required")
	}
	if err := c.RiskLimits.Validate(); err != nil {
		return err
	}
	if c.PipelineWorkers < 1 {
		return fmt.Errorf("PIPELINE_WORKERS must be >= 1, got %d", c.PipelineWorkers)
	}
	if c.AccountEquity <= 0 {
		return fmt.Errorf("ACCOUNT_EQUITY must be positive, got %.2f", c.AccountEquity)
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
