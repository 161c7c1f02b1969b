package db

import (
	"database/sql"
	"fmt"
)

// schema is the full database schema.
//
// Prices are stored as decimal text and calendar dates as YYYY-MM-DD text so
// that neither goes through floating point or time zone conversion.
// created_at and updated_at are unix milliseconds.
const schema = `
CREATE TABLE IF NOT EXISTS inventory_items (
    id                  INTEGER PRIMARY KEY,
    title               TEXT NOT NULL,
    description         TEXT NOT NULL DEFAULT '',
    purchase_price      TEXT NOT NULL,
    selling_price       TEXT,
    purchase_date       TEXT NOT NULL,
    scheduled_post_date TEXT,
    posted_date         TEXT,
    sold_date           TEXT,
    image_path          TEXT,
    purchase_location   TEXT NOT NULL DEFAULT '',
    category            TEXT NOT NULL DEFAULT '',
    notes               TEXT NOT NULL DEFAULT '',
    created_at          INTEGER NOT NULL,
    updated_at          INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_inventory_items_scheduled
    ON inventory_items(scheduled_post_date);

CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS revoked_tokens (
    jti        TEXT PRIMARY KEY,
    expires_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS backup_jobs (
    id          INTEGER PRIMARY KEY,
    kind        TEXT NOT NULL CHECK (kind IN ('export', 'import')),
    strategy    TEXT,
    status      TEXT NOT NULL CHECK (status IN ('success', 'error')),
    total_items INTEGER NOT NULL DEFAULT 0,
    imported    INTEGER NOT NULL DEFAULT 0,
    skipped     INTEGER NOT NULL DEFAULT 0,
    message     TEXT NOT NULL DEFAULT '',
    started_at  DATETIME NOT NULL,
    finished_at DATETIME NOT NULL
);
`

// EnsureSchema creates all tables and indexes if they don't already exist.
func EnsureSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}
