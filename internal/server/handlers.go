package server

import (
	"encoding/json"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/wyckoff-trader/internal/domain"
)

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"service": "wyckoff-trader",
	})
}

// handleSystemStatus reports process, host, and storage health
func (s *Server) handleSystemStatus(w http.ResponseWriter, r *http.Request) {
	cpuAvg := 0.0
	if pct, err := cpu.Percent(100*time.Millisecond, false); err == nil && len(pct) > 0 {
		cpuAvg = pct[0]
	} else if err != nil {
		s.log.Warn().Err(err).Msg("Failed to read CPU usage")
	}

	memUsedPct := 0.0
	if stat, err := mem.VirtualMemory(); err == nil {
		memUsedPct = stat.UsedPercent
	} else {
		s.log.Warn().Err(err).Msg("Failed to read memory usage")
	}

	engaged, reason, since := s.cfg.Kill.Status()
	killState := map[string]interface{}{"engaged": engaged}
	if engaged {
		killState["reason"] = reason
		killState["since"] = since
	}

	response := map[string]interface{}{
		"status":         "running",
		"uptime_seconds": int64(time.Since(s.start).Seconds()),
		"cpu_pct":        cpuAvg,
		"memory_pct":     memUsedPct,
		"goroutines":     runtime.NumGoroutine(),
		"kill_switch":    killState,
		"databases": map[string]interface{}{
			"campaigns": dbSize(s.cfg.CampaignDB.Path()),
			"audit":     dbSize(s.cfg.AuditDB.Path()),
		},
	}
	if s.cfg.Hub != nil {
		response["ws_clients"] = s.cfg.Hub.ClientCount()
	}

	s.writeJSON(w, http.StatusOK, response)
}

// handleListCampaigns lists campaigns, optionally filtered by status
func (s *Server) handleListCampaigns(w http.ResponseWriter, r *http.Request) {
	status := domain.CampaignStatus(r.URL.Query().Get("status"))

	campaigns, err := s.cfg.Campaigns.Repo().List(status)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to list campaigns")
		s.writeError(w, http.StatusInternalServerError, "failed to list campaigns")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"campaigns": campaigns,
		"count":     len(campaigns),
	})
}

// handleGetCampaign returns one campaign with its positions
func (s *Server) handleGetCampaign(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	c, err := s.cfg.Campaigns.Repo().GetByID(id)
	if err != nil {
		s.log.Error().Err(err).Str("campaign_id", id).Msg("Failed to load campaign")
		s.writeError(w, http.StatusInternalServerError, "failed to load campaign")
		return
	}
	if c == nil {
		s.writeError(w, http.StatusNotFound, "campaign not found")
		return
	}
	s.writeJSON(w, http.StatusOK, c)
}

// handleCampaignAudit returns the audit history for a campaign
func (s *Server) handleCampaignAudit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	audit, err := s.cfg.Trail.EventsForCampaign(id)
	if err != nil {
		s.log.Error().Err(err).Str("campaign_id", id).Msg("Failed to load audit events")
		s.writeError(w, http.StatusInternalServerError, "failed to load audit events")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"campaign_id": id,
		"events":      audit,
	})
}

// handleHeat returns current portfolio heat and remaining headroom
func (s *Server) handleHeat(w http.ResponseWriter, r *http.Request) {
	h := s.cfg.Tracker.Heat()
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"heat":          h,
		"remaining_pct": s.cfg.Tracker.RemainingPct(s.cfg.PortfolioPct),
		"ceiling_pct":   s.cfg.PortfolioPct,
	})
}

// handleHeatHistory returns persisted heat snapshots
func (s *Server) handleHeatHistory(w http.ResponseWriter, r *http.Request) {
	from, ok := parseTimeParam(r, "from")
	if !ok {
		s.writeError(w, http.StatusBadRequest, "invalid from timestamp")
		return
	}
	to, ok := parseTimeParam(r, "to")
	if !ok {
		s.writeError(w, http.StatusBadRequest, "invalid to timestamp")
		return
	}

	history, err := s.cfg.HeatHistory.History(from, to)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to load heat history")
		s.writeError(w, http.StatusInternalServerError, "failed to load heat history")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"snapshots": history,
		"count":     len(history),
	})
}

// handleListDecisions returns decision records filtered by symbol and
// date range
func (s *Server) handleListDecisions(w http.ResponseWriter, r *http.Request) {
	from, ok := parseTimeParam(r, "from")
	if !ok {
		s.writeError(w, http.StatusBadRequest, "invalid from timestamp")
		return
	}
	to, ok := parseTimeParam(r, "to")
	if !ok {
		s.writeError(w, http.StatusBadRequest, "invalid to timestamp")
		return
	}

	decisions, err := s.cfg.Decisions.Query(r.URL.Query().Get("symbol"), from, to)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to query decisions")
		s.writeError(w, http.StatusInternalServerError, "failed to query decisions")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"decisions": decisions,
		"count":     len(decisions),
	})
}

// handleDecisionStats returns accept/reject counts by stage
func (s *Server) handleDecisionStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.cfg.Decisions.Stats()
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to compute decision stats")
		s.writeError(w, http.StatusInternalServerError, "failed to compute decision stats")
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

type killSwitchRequest struct {
	Engage bool   `json:"engage"`
	Reason string `json:"reason"`
}

// handleKillSwitch engages or releases the pipeline kill switch
func (s *Server) handleKillSwitch(w http.ResponseWriter, r *http.Request) {
	var req killSwitchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Engage {
		if req.Reason == "" {
			s.writeError(w, http.StatusBadRequest, "engaging requires a reason")
			return
		}
		s.cfg.Kill.Engage(req.Reason)
	} else {
		s.cfg.Kill.Release()
	}

	engaged, reason, since := s.cfg.Kill.Status()
	response := map[string]interface{}{"engaged": engaged}
	if engaged {
		response["reason"] = reason
		response["since"] = since
	}
	s.writeJSON(w, http.StatusOK, response)
}

// parseTimeParam reads an RFC3339 query param; a missing param is the
// zero time (open bound).
func parseTimeParam(r *http.Request, name string) (time.Time, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, true
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

func dbSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes an error response
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
