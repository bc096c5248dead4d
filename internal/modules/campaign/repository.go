package campaign

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/wyckoff-trader/internal/domain"
)

// Repository handles campaign and position persistence
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a campaign repository, ensuring the schema
func NewRepository(db *sql.DB, log zerolog.Logger) (*Repository, error) {
	if err := InitSchema(db); err != nil {
		return nil, fmt.Errorf("failed to init campaign schema: %w", err)
	}
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "campaign").Logger(),
	}, nil
}

// Create inserts a new campaign
func (r *Repository) Create(c *domain.Campaign) error {
	phaseJSON, err := json.Marshal(c.PhaseCounts)
	if err != nil {
		return fmt.Errorf("failed to encode phase counts: %w", err)
	}
	skippedJSON, err := json.Marshal(c.SkippedLegs)
	if err != nil {
		return fmt.Errorf("failed to encode skipped legs: %w", err)
	}

	_, err = r.db.Exec(`
		INSERT INTO campaigns (id, symbol, range_start, status, allocated_risk, phase_counts, skipped_legs, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		c.ID,
		c.Symbol,
		c.RangeStart.Format(time.RFC3339),
		string(c.Status),
		c.AllocatedRisk,
		string(phaseJSON),
		string(skippedJSON),
		c.CreatedAt.Format(time.RFC3339Nano),
		c.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to create campaign %s: %w", c.ID, err)
	}

	r.log.Info().Str("campaign_id", c.ID).Msg("Campaign created")
	return nil
}

// GetByID retrieves a campaign with its positions. Returns nil when
// the campaign does not exist.
func (r *Repository) GetByID(id string) (*domain.Campaign, error) {
	row := r.db.QueryRow(`
		SELECT id, symbol, range_start, status, allocated_risk, phase_counts, skipped_legs, created_at, updated_at
		FROM campaigns WHERE id = ?
	`, id)

	c, err := scanCampaign(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get campaign %s: %w", id, err)
	}

	if c.Positions, err = r.positionsFor(c.ID); err != nil {
		return nil, err
	}
	return c, nil
}

// Update persists mutable campaign fields
func (r *Repository) Update(c *domain.Campaign) error {
	phaseJSON, err := json.Marshal(c.PhaseCounts)
	if err != nil {
		return fmt.Errorf("failed to encode phase counts: %w", err)
	}
	skippedJSON, err := json.Marshal(c.SkippedLegs)
	if err != nil {
		return fmt.Errorf("failed to encode skipped legs: %w", err)
	}

	res, err := r.db.Exec(`
		UPDATE campaigns
		SET status = ?, allocated_risk = ?, phase_counts = ?, skipped_legs = ?, updated_at = ?
		WHERE id = ?
	`,
		string(c.Status),
		c.AllocatedRisk,
		string(phaseJSON),
		string(skippedJSON),
		time.Now().Format(time.RFC3339Nano),
		c.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update campaign %s: %w", c.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("campaign %s not found", c.ID)
	}
	return nil
}

// List returns campaigns, optionally filtered by status
func (r *Repository) List(status domain.CampaignStatus) ([]*domain.Campaign, error) {
	query := `
		SELECT id, symbol, range_start, status, allocated_risk, phase_counts, skipped_legs, created_at, updated_at
		FROM campaigns
	`
	var args []interface{}
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, string(status))
	}
	query += " ORDER BY created_at DESC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list campaigns: %w", err)
	}
	defer rows.Close()

	var campaigns []*domain.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows.Scan)
		if err != nil {
			return nil, err
		}
		if c.Positions, err = r.positionsFor(c.ID); err != nil {
			return nil, err
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, rows.Err()
}

// ListOpen returns campaigns in a non-terminal status
func (r *Repository) ListOpen() ([]*domain.Campaign, error) {
	all, err := r.List("")
	if err != nil {
		return nil, err
	}
	var open []*domain.Campaign
	for _, c := range all {
		if !c.Status.Terminal() {
			open = append(open, c)
		}
	}
	return open, nil
}

// OpenSymbols returns the distinct symbols of non-terminal campaigns
func (r *Repository) OpenSymbols() ([]string, error) {
	rows, err := r.db.Query(`
		SELECT DISTINCT symbol FROM campaigns WHERE status NOT IN (?, ?)
	`, string(domain.CampaignCompleted), string(domain.CampaignInvalidated))
	if err != nil {
		return nil, fmt.Errorf("failed to query open symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		symbols = append(symbols, s)
	}
	return symbols, rows.Err()
}

// AttachPosition inserts a position leg for a campaign
func (r *Repository) AttachPosition(p *domain.Position) error {
	res, err := r.db.Exec(`
		INSERT INTO positions
		(campaign_id, entry_kind, entry_phase, allocation_fraction, risk_amount, quantity,
		 entry_price, stop_price, status, opened_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		p.CampaignID,
		string(p.EntryKind),
		string(p.EntryPhase),
		p.AllocationFraction,
		p.RiskAmount,
		p.Quantity,
		p.EntryPrice,
		p.StopPrice,
		string(p.Status),
		p.OpenedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to attach position: %w", err)
	}

	p.ID, _ = res.LastInsertId()
	return nil
}

// ClosePosition marks a position closed with its realized R-multiple
func (r *Repository) ClosePosition(positionID int64, realizedR float64) error {
	res, err := r.db.Exec(`
		UPDATE positions
		SET status = ?, realized_r = ?, closed_at = ?
		WHERE id = ? AND status = ?
	`,
		string(domain.PositionClosed),
		realizedR,
		time.Now().Format(time.RFC3339Nano),
		positionID,
		string(domain.PositionOpen),
	)
	if err != nil {
		return fmt.Errorf("failed to close position %d: %w", positionID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("position %d not found or already closed", positionID)
	}
	return nil
}

// TotalOpenRisk sums risk amounts across all open positions
func (r *Repository) TotalOpenRisk() (float64, error) {
	var total sql.NullFloat64
	err := r.db.QueryRow(`
		SELECT SUM(risk_amount) FROM positions WHERE status = ?
	`, string(domain.PositionOpen)).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum open risk: %w", err)
	}
	return total.Float64, nil
}

func (r *Repository) positionsFor(campaignID string) ([]domain.Position, error) {
	rows, err := r.db.Query(`
		SELECT id, campaign_id, entry_kind, entry_phase, allocation_fraction, risk_amount,
		       quantity, entry_price, stop_price, status, realized_r, opened_at, closed_at
		FROM positions
		WHERE campaign_id = ?
		ORDER BY opened_at ASC, id ASC
	`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to query positions: %w", err)
	}
	defer rows.Close()

	var positions []domain.Position
	for rows.Next() {
		var (
			p         domain.Position
			kind      string
			phase     string
			status    string
			realizedR sql.NullFloat64
			openedAt  string
			closedAt  sql.NullString
		)
		if err := rows.Scan(&p.ID, &p.CampaignID, &kind, &phase, &p.AllocationFraction,
			&p.RiskAmount, &p.Quantity, &p.EntryPrice, &p.StopPrice, &status,
			&realizedR, &openedAt, &closedAt); err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}

		p.EntryKind = domain.PatternKind(kind)
		p.EntryPhase = domain.WyckoffPhase(phase)
		p.Status = domain.PositionStatus(status)
		if realizedR.Valid {
			v := realizedR.Float64
			p.RealizedR = &v
		}
		if p.OpenedAt, err = time.Parse(time.RFC3339Nano, openedAt); err != nil {
			return nil, fmt.Errorf("failed to parse opened_at: %w", err)
		}
		if closedAt.Valid {
			t, err := time.Parse(time.RFC3339Nano, closedAt.String)
			if err != nil {
				return nil, fmt.Errorf("failed to parse closed_at: %w", err)
			}
			p.ClosedAt = &t
		}

		positions = append(positions, p)
	}
	return positions, rows.Err()
}

func scanCampaign(scan func(...interface{}) error) (*domain.Campaign, error) {
	var (
		c          domain.Campaign
		rangeStart string
		status     string
		phaseJSON  string
		skipJSON   string
		createdAt  string
		updatedAt  string
	)
	if err := scan(&c.ID, &c.Symbol, &rangeStart, &status, &c.AllocatedRisk,
		&phaseJSON, &skipJSON, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	c.Status = domain.CampaignStatus(status)

	var err error
	if c.RangeStart, err = time.Parse(time.RFC3339, rangeStart); err != nil {
		return nil, fmt.Errorf("failed to parse range_start: %w", err)
	}
	if c.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if c.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	if err := json.Unmarshal([]byte(phaseJSON), &c.PhaseCounts); err != nil {
		return nil, fmt.Errorf("failed to decode phase counts: %w", err)
	}
	if err := json.Unmarshal([]byte(skipJSON), &c.SkippedLegs); err != nil {
		return nil, fmt.Errorf("failed to decode skipped legs: %w", err)
	}
	if c.PhaseCounts == nil {
		c.PhaseCounts = make(map[domain.WyckoffPhase]int)
	}

	return &c, nil
}
