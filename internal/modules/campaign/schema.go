package campaign

import "database/sql"

// Schema for the campaign database. Terminal campaigns are retained for
// audit; nothing here deletes rows.
const Schema = `
CREATE TABLE IF NOT EXISTS campaigns (
    id TEXT PRIMARY KEY,
    symbol TEXT NOT NULL,
    range_start TEXT NOT NULL,
    status TEXT NOT NULL,
    allocated_risk REAL NOT NULL DEFAULT 0,
    phase_counts TEXT NOT NULL DEFAULT '{}',
    skipped_legs TEXT NOT NULL DEFAULT '[]',
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_campaigns_symbol ON campaigns(symbol);
CREATE INDEX IF NOT EXISTS idx_campaigns_status ON campaigns(status);

CREATE TABLE IF NOT EXISTS positions (
    id INTEGER PRIMARY KEY,
    campaign_id TEXT NOT NULL REFERENCES campaigns(id),
    entry_kind TEXT NOT NULL,
    entry_phase TEXT NOT NULL DEFAULT '',
    allocation_fraction REAL NOT NULL,
    risk_amount REAL NOT NULL,
    quantity REAL NOT NULL,
    entry_price REAL NOT NULL,
    stop_price REAL NOT NULL,
    status TEXT NOT NULL,
    realized_r REAL,
    opened_at TEXT NOT NULL,
    closed_at TEXT
);

CREATE INDEX IF NOT EXISTS idx_positions_campaign ON positions(campaign_id);
CREATE INDEX IF NOT EXISTS idx_positions_status ON positions(status);
`

// InitSchema ensures the campaign tables exist
func InitSchema(db *sql.DB) error {
	_, err := db.Exec(Schema)
	return err
}
