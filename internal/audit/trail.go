package audit

import (
	"database/sql"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/aristath/wyckoff-trader/internal/domain"
)

// Trail is the append-only audit event store. It implements
// domain.AuditSink. Sequence numbers are assigned from an atomic
// counter seeded from the database at startup, so ordering survives
// restarts and is independent of wall-clock skew across workers.
type Trail struct {
	db  *sql.DB
	log zerolog.Logger
	seq atomic.Uint64
}

// NewTrail creates the audit trail, ensuring the schema and seeding the
// sequence counter from the last persisted event.
func NewTrail(db *sql.DB, log zerolog.Logger) (*Trail, error) {
	if err := InitSchema(db); err != nil {
		return nil, fmt.Errorf("failed to init audit schema: %w", err)
	}

	t := &Trail{
		db:  db,
		log: log.With().Str("repo", "audit_trail").Logger(),
	}

	var last sql.NullInt64
	if err := db.QueryRow("SELECT MAX(seq) FROM audit_events").Scan(&last); err != nil {
		return nil, fmt.Errorf("failed to seed audit sequence: %w", err)
	}
	if last.Valid {
		t.seq.Store(uint64(last.Int64))
	}

	return t, nil
}

// NextSequence atomically allocates the next sequence number
func (t *Trail) NextSequence() uint64 {
	return t.seq.Add(1)
}

// Record appends an event. Events without a sequence get one assigned
// at this point. Insert failures are retried once; a persistent failure
// is returned to the caller, never swallowed.
func (t *Trail) Record(event domain.AuditEvent) error {
	if event.Sequence == 0 {
		event.Sequence = t.NextSequence()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	var payload []byte
	if len(event.Payload) > 0 {
		var err error
		payload, err = msgpack.Marshal(event.Payload)
		if err != nil {
			return fmt.Errorf("failed to encode audit payload: %w", err)
		}
	}

	query := `
		INSERT INTO audit_events (seq, type, symbol, campaign_id, stage, reason, timestamp, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	args := []interface{}{
		event.Sequence,
		string(event.Type),
		event.Symbol,
		event.CampaignID,
		event.Stage,
		event.Reason,
		event.Timestamp.Format(time.RFC3339Nano),
		payload,
	}

	_, err := t.db.Exec(query, args...)
	if err != nil {
		t.log.Warn().Err(err).Uint64("seq", event.Sequence).Msg("Audit insert failed, retrying")
		if _, err = t.db.Exec(query, args...); err != nil {
			return fmt.Errorf("failed to record audit event %d: %w", event.Sequence, err)
		}
	}

	return nil
}

// Events returns up to limit events ordered by sequence, oldest first,
// starting after the given sequence number.
func (t *Trail) Events(afterSeq uint64, limit int) ([]domain.AuditEvent, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := t.db.Query(`
		SELECT seq, type, symbol, campaign_id, stage, reason, timestamp, payload
		FROM audit_events
		WHERE seq > ?
		ORDER BY seq ASC
		LIMIT ?
	`, afterSeq, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}
	defer rows.Close()

	var events []domain.AuditEvent
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// EventsForCampaign returns all events for one campaign in sequence order
func (t *Trail) EventsForCampaign(campaignID string) ([]domain.AuditEvent, error) {
	rows, err := t.db.Query(`
		SELECT seq, type, symbol, campaign_id, stage, reason, timestamp, payload
		FROM audit_events
		WHERE campaign_id = ?
		ORDER BY seq ASC
	`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to query campaign audit events: %w", err)
	}
	defer rows.Close()

	var events []domain.AuditEvent
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

func scanEvent(rows *sql.Rows) (domain.AuditEvent, error) {
	var (
		event     domain.AuditEvent
		eventType string
		ts        string
		payload   []byte
	)
	if err := rows.Scan(&event.Sequence, &eventType, &event.Symbol, &event.CampaignID,
		&event.Stage, &event.Reason, &ts, &payload); err != nil {
		return event, fmt.Errorf("failed to scan audit event: %w", err)
	}

	event.Type = domain.AuditEventType(eventType)
	parsed, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return event, fmt.Errorf("failed to parse audit timestamp: %w", err)
	}
	event.Timestamp = parsed

	if len(payload) > 0 {
		if err := msgpack.Unmarshal(payload, &event.Payload); err != nil {
			return event, fmt.Errorf("failed to decode audit payload: %w", err)
		}
	}

	return event, nil
}
