package observability

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/typelens/typelens/dbopen"
	"github.com/typelens/typelens/idgen"
)

// Event types recorded by the session layer.
const (
	EventActivated        = "activated"
	EventDeactivated      = "deactivated"
	EventEscape           = "escape"
	EventSignalSearch     = "signal_search"
	EventSignalDeactivate = "signal_deactivate"
	EventPinCreated       = "pin_created"
	EventPinClosed        = "pin_closed"
	EventClipboardFailure = "clipboard_failure"
	EventTeardownError    = "teardown_error"
)

// SessionEvent is one lifecycle record.
type SessionEvent struct {
	EventID   string    `json:"event_id"`
	SessionID string    `json:"session_id"`
	EventType string    `json:"event_type"`
	Details   string    `json:"details,omitempty"` // optional JSON
	Success   bool      `json:"success"`
	CreatedAt time.Time `json:"created_at"`
}

// EventLog writes session events and manages retention cleanup.
type EventLog struct {
	db    *sql.DB
	newID idgen.Generator
}

// EventLogOption configures an EventLog.
type EventLogOption func(*EventLog)

// WithEventIDGenerator sets a custom ID generator for event IDs.
func WithEventIDGenerator(gen idgen.Generator) EventLogOption {
	return func(l *EventLog) { l.newID = gen }
}

// NewEventLog creates a log backed by the given database.
func NewEventLog(db *sql.DB, opts ...EventLogOption) *EventLog {
	l := &EventLog{
		db:    db,
		newID: idgen.Prefixed("evt_", idgen.Default),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Log records an event. Writes go through dbopen.Exec because retention
// cleanup shares the WAL file and can hold the write lock briefly.
// Errors are logged via slog but do not propagate, so a failing
// observability store never disturbs the session.
func (l *EventLog) Log(ctx context.Context, sessionID, eventType, details string, success bool) {
	eventID := l.newID()
	_, err := dbopen.Exec(ctx, l.db, `
		INSERT INTO session_events (
			event_id, session_id, event_type, details, success, created_at
		) VALUES (?,?,?,?,?,?)`,
		eventID, sessionID, eventType, details, success, time.Now().Unix())
	if err != nil {
		slog.Error("observability event log failed", "error", err, "event_type", eventType)
	}
}

// Recent returns the latest events for a session, newest first. An empty
// sessionID returns events across all sessions.
func (l *EventLog) Recent(ctx context.Context, sessionID string, limit int) ([]SessionEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	q := `SELECT event_id, session_id, event_type, details, success, created_at
		FROM session_events`
	var args []any
	if sessionID != "" {
		q += " WHERE session_id = ?"
		args = append(args, sessionID)
	}
	q += " ORDER BY created_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := l.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("observability: query events: %w", err)
	}
	defer rows.Close()

	var events []SessionEvent
	for rows.Next() {
		var e SessionEvent
		var details sql.NullString
		var success int
		var ts int64
		if err := rows.Scan(&e.EventID, &e.SessionID, &e.EventType, &details, &success, &ts); err != nil {
			return nil, fmt.Errorf("observability: scan event: %w", err)
		}
		if details.Valid {
			e.Details = details.String
		}
		e.Success = success != 0
		e.CreatedAt = time.Unix(ts, 0)
		events = append(events, e)
	}
	return events, rows.Err()
}

// RetentionConfig specifies retention in days. Zero means no cleanup.
type RetentionConfig struct {
	EventsDays     int
	RunVacuumAfter bool
}

// Cleanup deletes records exceeding the retention thresholds.
// The table/column pair goes through a whitelist so a refactor toward
// configurable targets cannot turn this into SQL injection.
func Cleanup(ctx context.Context, db *sql.DB, cfg RetentionConfig) error {
	now := time.Now().Unix()

	allowedTables := map[string]bool{
		"session_events": true,
	}
	allowedColumns := map[string]bool{
		"created_at": true,
	}

	type cleanupTarget struct {
		table  string
		column string
		days   int
	}
	targets := []cleanupTarget{
		{"session_events", "created_at", cfg.EventsDays},
	}

	// one transaction for all deletes, retried as a unit when the
	// event log holds the write lock
	err := dbopen.RunTx(ctx, db, func(tx *sql.Tx) error {
		for _, t := range targets {
			if t.days <= 0 {
				continue
			}
			if !allowedTables[t.table] || !allowedColumns[t.column] {
				return fmt.Errorf("cleanup: invalid table/column %s/%s", t.table, t.column)
			}
			cutoff := now - int64(t.days*86400)
			q := fmt.Sprintf("DELETE FROM %s WHERE %s < ?", t.table, t.column)
			if _, err := tx.ExecContext(ctx, q, cutoff); err != nil {
				return fmt.Errorf("cleanup %s: %w", t.table, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	// VACUUM cannot run inside a transaction
	if cfg.RunVacuumAfter {
		if _, err := db.ExecContext(ctx, "VACUUM"); err != nil {
			return fmt.Errorf("vacuum: %w", err)
		}
	}
	return nil
}
