package audit

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/wyckoff-trader/internal/domain"
)

// HeatSnapshot is one persisted heat reading
type HeatSnapshot struct {
	ID         int64                `json:"id"`
	Heat       domain.PortfolioHeat `json:"heat"`
	RecordedAt time.Time            `json:"recorded_at"`
}

// HeatHistoryRepository persists periodic portfolio heat snapshots so
// the dashboard can chart heat against the alert thresholds.
type HeatHistoryRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewHeatHistoryRepository creates a heat history repository
func NewHeatHistoryRepository(db *sql.DB, log zerolog.Logger) *HeatHistoryRepository {
	return &HeatHistoryRepository{
		db:  db,
		log: log.With().Str("repo", "heat_history").Logger(),
	}
}

// Record persists a heat snapshot
func (r *HeatHistoryRepository) Record(h domain.PortfolioHeat, at time.Time) error {
	_, err := r.db.Exec(`
		INSERT INTO heat_history (heat_pct, state, total_risk, equity, recorded_at)
		VALUES (?, ?, ?, ?, ?)
	`, h.HeatPct, string(h.State), h.TotalRisk, h.Equity, at.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to record heat snapshot: %w", err)
	}
	return nil
}

// History returns snapshots within [from, to], oldest first. Zero
// bounds are open.
func (r *HeatHistoryRepository) History(from, to time.Time) ([]HeatSnapshot, error) {
	query := "SELECT id, heat_pct, state, total_risk, equity, recorded_at FROM heat_history WHERE 1=1"
	var args []interface{}
	if !from.IsZero() {
		query += " AND recorded_at >= ?"
		args = append(args, from.UTC().Format(time.RFC3339Nano))
	}
	if !to.IsZero() {
		query += " AND recorded_at <= ?"
		args = append(args, to.UTC().Format(time.RFC3339Nano))
	}
	query += " ORDER BY recorded_at ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query heat history: %w", err)
	}
	defer rows.Close()

	var out []HeatSnapshot
	for rows.Next() {
		var s HeatSnapshot
		var state, recordedAt string
		if err := rows.Scan(&s.ID, &s.Heat.HeatPct, &state, &s.Heat.TotalRisk, &s.Heat.Equity, &recordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan heat snapshot: %w", err)
		}
		s.Heat.State = domain.AlertState(state)
		if ts, perr := time.Parse(time.RFC3339Nano, recordedAt); perr == nil {
			s.RecordedAt = ts
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
