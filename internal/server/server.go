package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/aristath/wyckoff-trader/internal/audit"
	"github.com/aristath/wyckoff-trader/internal/database"
	"github.com/aristath/wyckoff-trader/internal/events"
	"github.com/aristath/wyckoff-trader/internal/modules/campaign"
	"github.com/aristath/wyckoff-trader/internal/modules/heat"
	"github.com/aristath/wyckoff-trader/internal/modules/pipeline"
)

// Config holds server wiring
type Config struct {
	Port         int
	DevMode      bool
	Log          zerolog.Logger
	CampaignDB   *database.DB
	AuditDB      *database.DB
	Campaigns    *campaign.Service
	Tracker      *heat.Tracker
	Trail        *audit.Trail
	Decisions    *audit.DecisionRepository
	HeatHistory  *audit.HeatHistoryRepository
	Kill         *pipeline.Switch
	Hub          *events.Hub
	PortfolioPct float64
}

// Server is the HTTP surface: REST for dashboard reads and the kill
// switch, websocket for the live event stream.
type Server struct {
	router *chi.Mux
	server *http.Server
	log    zerolog.Logger
	cfg    Config
	start  time.Time
}

// New creates the HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router: chi.NewRouter(),
		log:    cfg.Log.With().Str("component", "server").Logger(),
		cfg:    cfg,
		start:  time.Now(),
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		// The websocket route lives outside this group, so the timeout
		// only bounds the REST surface.
		r.Use(middleware.Timeout(60 * time.Second))

		r.Route("/system", func(r chi.Router) {
			r.Get("/status", s.handleSystemStatus)
		})

		r.Route("/campaigns", func(r chi.Router) {
			r.Get("/", s.handleListCampaigns)
			r.Get("/{id}", s.handleGetCampaign)
			r.Get("/{id}/audit", s.handleCampaignAudit)
		})

		r.Route("/heat", func(r chi.Router) {
			r.Get("/", s.handleHeat)
			r.Get("/history", s.handleHeatHistory)
		})

		r.Route("/decisions", func(r chi.Router) {
			r.Get("/", s.handleListDecisions)
			r.Get("/stats", s.handleDecisionStats)
		})

		r.Post("/killswitch", s.handleKillSwitch)
	})

	if s.cfg.Hub != nil {
		s.router.Get("/ws/events", s.cfg.Hub.ServeHTTP)
	}
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
