package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/wyckoff-trader/internal/audit"
	"github.com/aristath/wyckoff-trader/internal/config"
	"github.com/aristath/wyckoff-trader/internal/database"
	"github.com/aristath/wyckoff-trader/internal/domain"
	"github.com/aristath/wyckoff-trader/internal/events"
	"github.com/aristath/wyckoff-trader/internal/execution"
	"github.com/aristath/wyckoff-trader/internal/locking"
	"github.com/aristath/wyckoff-trader/internal/modules/allocation"
	"github.com/aristath/wyckoff-trader/internal/modules/campaign"
	"github.com/aristath/wyckoff-trader/internal/modules/heat"
	"github.com/aristath/wyckoff-trader/internal/modules/pipeline"
	"github.com/aristath/wyckoff-trader/internal/modules/prioritizer"
	"github.com/aristath/wyckoff-trader/internal/modules/risk"
	"github.com/aristath/wyckoff-trader/internal/modules/scoring"
	"github.com/aristath/wyckoff-trader/internal/reliability"
	"github.com/aristath/wyckoff-trader/internal/scheduler"
	"github.com/aristath/wyckoff-trader/internal/server"
	"github.com/aristath/wyckoff-trader/pkg/logger"
)

// staticEquity is the paper-trading equity source
type staticEquity float64

func (e staticEquity) Equity() float64 { return float64(e) }

// noopSource is the placeholder pattern source; real detectors plug in
// through domain.PatternSource.
type noopSource struct{}

func (noopSource) Detect(symbol string, bars []domain.Bar) ([]domain.Pattern, error) {
	return nil, nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New(logger.Config{Level: "info", Pretty: true})
		bootLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	log.Info().Msg("Starting Wyckoff trader")

	for _, path := range []string{cfg.DatabasePath, cfg.AuditDBPath} {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			log.Fatal().Err(err).Str("path", path).Msg("Failed to create data directory")
		}
	}

	campaignDB, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open campaign database")
	}
	defer campaignDB.Close()

	auditDB, err := database.NewAudit(cfg.AuditDBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open audit database")
	}
	defer auditDB.Close()

	trail, err := audit.NewTrail(auditDB.Conn(), log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize audit trail")
	}
	decisions := audit.NewDecisionRepository(auditDB.Conn(), log)
	heatHistory := audit.NewHeatHistoryRepository(auditDB.Conn(), log)

	emitter := events.NewEmitter(log)
	hub := events.NewHub(emitter, log)

	tracker := heat.NewTracker(cfg.HeatAlertCooldown, log)
	tracker.OnTransition(func(from, to domain.AlertState, h domain.PortfolioHeat) {
		emitter.Emit(events.HeatAlert, "heat", events.HeatAlertData{
			State:     to,
			HeatPct:   h.HeatPct,
			Timestamp: time.Now(),
		}.ToMap())
		if err := trail.Record(domain.AuditEvent{
			Type:      domain.AuditHeatChange,
			Reason:    string(from) + " -> " + string(to),
			Timestamp: time.Now(),
			Payload: map[string]any{
				"heat_pct":   h.HeatPct,
				"total_risk": h.TotalRisk,
				"equity":     h.Equity,
			},
		}); err != nil {
			log.Error().Err(err).Msg("Failed to audit heat change")
		}
	})

	equity := staticEquity(cfg.AccountEquity)
	lockManager := locking.NewManager()

	campaignRepo, err := campaign.NewRepository(campaignDB.Conn(), log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize campaign repository")
	}
	campaigns := campaign.NewService(
		campaignRepo,
		allocation.NewAllocator(log),
		emitter,
		trail,
		lockManager,
		log,
	)

	kill := pipeline.NewSwitch(log)
	breaker := risk.NewCircuitBreaker(cfg.BreakerThreshold, cfg.BreakerCooldown, log)

	pl := pipeline.New(pipeline.Config{
		Registry:      scoring.NewRegistry(log),
		Breaker:       breaker,
		Validator:     risk.NewValidator(cfg.RiskLimits, tracker, log),
		Campaigns:     campaigns,
		Equity:        equity,
		Audit:         trail,
		Decisions:     decisions,
		Emitter:       emitter,
		MinConfidence: cfg.MinConfidence,
	}, log)

	ranker := prioritizer.NewPrioritizer(nil, campaignRepo, log)

	engine := pipeline.NewEngine(pipeline.EngineConfig{
		Pipeline:  pl,
		Source:    noopSource{},
		Campaigns: campaigns,
		Tracker:   tracker,
		Equity:    equity,
		Executor:  execution.NewPaperAdapter(log),
		Emitter:   emitter,
		Kill:      kill,
		Ranker:    ranker,
		Workers:   cfg.PipelineWorkers,
	}, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	engine.Start(ctx)

	sched := scheduler.New(log)
	registerJobs(sched, cfg, campaignRepo, campaigns, tracker, heatHistory, equity, campaignDB, auditDB, lockManager, log)
	sched.Start()
	defer sched.Stop()

	srv := server.New(server.Config{
		Port:         cfg.Port,
		DevMode:      cfg.DevMode,
		Log:          log,
		CampaignDB:   campaignDB,
		AuditDB:      auditDB,
		Campaigns:    campaigns,
		Tracker:      tracker,
		Trail:        trail,
		Decisions:    decisions,
		HeatHistory:  heatHistory,
		Kill:         kill,
		Hub:          hub,
		PortfolioPct: cfg.RiskLimits.PortfolioPct,
	})

	go func() {
		if err := srv.Start(); err != nil {
			log.Error().Err(err).Msg("HTTP server stopped")
		}
	}()
	log.Info().Int("port", cfg.Port).Msg("Server started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	cancel()
	engine.Stop()
	log.Info().Msg("Stopped")
}

func registerJobs(
	sched *scheduler.Scheduler,
	cfg *config.Config,
	repo *campaign.Repository,
	campaigns *campaign.Service,
	tracker *heat.Tracker,
	heatHistory *audit.HeatHistoryRepository,
	equity scheduler.EquitySource,
	campaignDB, auditDB *database.DB,
	lockManager *locking.Manager,
	log zerolog.Logger,
) {
	heatJob := scheduler.NewHeatSnapshotJob(repo, tracker, heatHistory, equity, log)
	if err := sched.AddJob("@every 1m", heatJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to register heat snapshot job")
	}

	expiryJob := scheduler.NewLegExpiryJob(campaigns, cfg.LegWindow, log)
	if err := sched.AddJob("@every 1h", expiryJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to register leg expiry job")
	}

	if cfg.BackupBucket == "" {
		log.Info().Msg("Backup bucket not configured, skipping backup job")
		return
	}

	store, err := reliability.NewS3Client(context.Background(), reliability.S3Config{
		Bucket:    cfg.BackupBucket,
		Endpoint:  cfg.BackupEndpoint,
		AccessKey: cfg.BackupAccessKey,
		SecretKey: cfg.BackupSecretKey,
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create backup client")
	}

	backupService := reliability.NewBackupService(map[string]*database.DB{
		"campaigns": campaignDB,
		"audit":     auditDB,
	}, filepath.Dir(cfg.DatabasePath), store, log)

	backupJob := scheduler.NewBackupJob(backupService, lockManager, cfg.BackupRetentionDays, log)
	if err := sched.AddJob("0 0 3 * * *", backupJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to register backup job")
	}
}
