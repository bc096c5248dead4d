package audit

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/wyckoff-trader/internal/domain"
)

// DecisionRepository stores the one-per-pattern accept/reject records
// that back the regression/accuracy tooling. Records are write-once.
type DecisionRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewDecisionRepository creates a decision repository
func NewDecisionRepository(db *sql.DB, log zerolog.Logger) *DecisionRepository {
	return &DecisionRepository{
		db:  db,
		log: log.With().Str("repo", "decisions").Logger(),
	}
}

// RecordOutcome persists the final pipeline outcome for a pattern
func (r *DecisionRepository) RecordOutcome(outcome domain.ValidationOutcome) error {
	var reasons []string
	if !outcome.Validated {
		reasons = append(reasons, outcome.Reason)
	}
	reasonsJSON, err := json.Marshal(reasons)
	if err != nil {
		return fmt.Errorf("failed to encode reasons: %w", err)
	}

	var confidence float64
	if outcome.Score != nil {
		confidence = outcome.Score.TotalScore
	}

	_, err = r.db.Exec(`
		INSERT INTO decision_records (symbol, kind, validated, reasons, stage, confidence, detected_at, decided_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		outcome.Pattern.Symbol,
		string(outcome.Pattern.Kind),
		boolToInt(outcome.Validated),
		string(reasonsJSON),
		outcome.Stage,
		confidence,
		outcome.Pattern.DetectedAt.Format(time.RFC3339Nano),
		time.Now().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to record decision: %w", err)
	}

	return nil
}

// Query returns decisions for a symbol within a date range. Zero times
// leave that bound open.
func (r *DecisionRepository) Query(symbol string, from, to time.Time) ([]domain.DecisionRecord, error) {
	query := "SELECT id, symbol, kind, validated, reasons, stage, confidence, detected_at, decided_at FROM decision_records WHERE 1=1"
	var args []interface{}

	if symbol != "" {
		query += " AND symbol = ?"
		args = append(args, symbol)
	}
	if !from.IsZero() {
		query += " AND decided_at >= ?"
		args = append(args, from.Format(time.RFC3339Nano))
	}
	if !to.IsZero() {
		query += " AND decided_at <= ?"
		args = append(args, to.Format(time.RFC3339Nano))
	}
	query += " ORDER BY decided_at ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query decisions: %w", err)
	}
	defer rows.Close()

	var records []domain.DecisionRecord
	for rows.Next() {
		var (
			rec         domain.DecisionRecord
			kind        string
			validated   int
			reasonsJSON string
			detectedAt  string
			decidedAt   string
		)
		if err := rows.Scan(&rec.ID, &rec.Symbol, &kind, &validated, &reasonsJSON,
			&rec.Stage, &rec.Confidence, &detectedAt, &decidedAt); err != nil {
			return nil, fmt.Errorf("failed to scan decision: %w", err)
		}

		rec.Kind = domain.PatternKind(kind)
		rec.Validated = validated != 0
		if err := json.Unmarshal([]byte(reasonsJSON), &rec.Reasons); err != nil {
			return nil, fmt.Errorf("failed to decode reasons: %w", err)
		}
		if rec.DetectedAt, err = time.Parse(time.RFC3339Nano, detectedAt); err != nil {
			return nil, fmt.Errorf("failed to parse detected_at: %w", err)
		}
		if rec.DecidedAt, err = time.Parse(time.RFC3339Nano, decidedAt); err != nil {
			return nil, fmt.Errorf("failed to parse decided_at: %w", err)
		}

		records = append(records, rec)
	}
	return records, rows.Err()
}

// StageCounts summarizes rejects per stage plus the total accept count
type StageCounts struct {
	Accepted int            `json:"accepted"`
	Rejected int            `json:"rejected"`
	ByStage  map[string]int `json:"by_stage"`
}

// Stats aggregates accept/reject counts grouped by rejection stage
func (r *DecisionRepository) Stats() (*StageCounts, error) {
	counts := &StageCounts{ByStage: make(map[string]int)}

	rows, err := r.db.Query(`
		SELECT validated, stage, COUNT(*)
		FROM decision_records
		GROUP BY validated, stage
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query decision stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			validated int
			stage     string
			count     int
		)
		if err := rows.Scan(&validated, &stage, &count); err != nil {
			return nil, fmt.Errorf("failed to scan decision stats: %w", err)
		}
		if validated != 0 {
			counts.Accepted += count
		} else {
			counts.Rejected += count
			counts.ByStage[stage] += count
		}
	}
	return counts, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
