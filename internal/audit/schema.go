package audit

import "database/sql"

// Schema for the append-only audit database. Events are write-once:
// nothing in this package issues UPDATE or DELETE against audit_events.
const Schema = `
CREATE TABLE IF NOT EXISTS audit_events (
    seq INTEGER PRIMARY KEY,
    type TEXT NOT NULL,
    symbol TEXT,
    campaign_id TEXT,
    stage TEXT,
    reason TEXT,
    timestamp TEXT NOT NULL,
    payload BLOB
);

CREATE INDEX IF NOT EXISTS idx_audit_events_campaign ON audit_events(campaign_id);
CREATE INDEX IF NOT EXISTS idx_audit_events_type ON audit_events(type);

CREATE TABLE IF NOT EXISTS decision_records (
    id INTEGER PRIMARY KEY,
    symbol TEXT NOT NULL,
    kind TEXT NOT NULL,
    validated INTEGER NOT NULL,
    reasons TEXT NOT NULL,
    stage TEXT,
    confidence REAL NOT NULL DEFAULT 0,
    detected_at TEXT NOT NULL,
    decided_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_decisions_symbol ON decision_records(symbol);
CREATE INDEX IF NOT EXISTS idx_decisions_decided ON decision_records(decided_at);

CREATE TABLE IF NOT EXISTS heat_history (
    id INTEGER PRIMARY KEY,
    heat_pct REAL NOT NULL,
    state TEXT NOT NULL,
    total_risk REAL NOT NULL,
    equity REAL NOT NULL,
    recorded_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_heat_history_recorded ON heat_history(recorded_at);
`

// InitSchema ensures the audit tables exist
func InitSchema(db *sql.DB) error {
	_, err := db.Exec(Schema)
	return err
}
