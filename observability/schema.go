// Package observability records session lifecycle events in SQLite.
// Lifecycle only: activations, deactivations, emitted signals, pin
// create/close, clipboard failures. Inspected page content is never
// persisted here.
package observability

import "database/sql"

// Schema contains the complete DDL for the event log.
const Schema = `
-- Session lifecycle events
CREATE TABLE IF NOT EXISTS session_events (
    event_id TEXT PRIMARY KEY,
    session_id TEXT NOT NULL,
    event_type TEXT NOT NULL,
    details TEXT,
    success INTEGER NOT NULL DEFAULT 1,
    created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
);
CREATE INDEX IF NOT EXISTS idx_session_events_session
    ON session_events(session_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_session_events_type
    ON session_events(event_type, created_at DESC);

-- Metadata registry
CREATE TABLE IF NOT EXISTS _observability_metadata (
    table_name TEXT PRIMARY KEY,
    created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
    description TEXT
);
INSERT OR IGNORE INTO _observability_metadata (table_name, description) VALUES
    ('session_events', 'Inspection session lifecycle events');
`

// Init applies the observability schema to the given database.
func Init(db *sql.DB) error {
	_, err := db.Exec(Schema)
	return err
}
