package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// Event type constants: process events
const (
	EventProcessStarted = "process.started"
	EventProcessStopped = "process.stopped"
	EventWebhookSet     = "webhook.set"
)

// Event type constants: relay events
const (
	EventExchangeStarted   = "exchange.started"
	EventExchangeCompleted = "exchange.completed"
	EventExchangeFailed    = "exchange.failed"
	EventReplySent         = "reply.sent"
	EventReplyFailed       = "reply.failed"
	EventCommandHandled    = "command.handled"
	EventSessionCleared    = "session.cleared"
	EventCircuitOpened     = "circuit.opened"
	EventCircuitHalfOpen   = "circuit.half_open"
	EventCircuitClosed     = "circuit.closed"
)

// Event is one journal row.
type Event struct {
	ID        int64
	Timestamp int64
	ParentID  *int64
	Type      string
	Payload   map[string]any
}

// OpenDB opens (or creates) a SQLite database at the given path, ensuring
// that the parent directory exists.
func OpenDB(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create db directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open db at %s: %w", path, err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping db at %s: %w", path, err)
	}

	return db, nil
}

// InitSchema creates the events table.
func InitSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS events (
			id INTEGER PRIMARY KEY,
			timestamp INTEGER NOT NULL DEFAULT (unixepoch()),
			parent_id INTEGER,
			event_type TEXT NOT NULL,
			payload TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_events_parent_id ON events(parent_id);
		CREATE INDEX IF NOT EXISTS idx_events_type_id ON events(event_type, id);
	`)
	return err
}

// LogEvent inserts an event into the events table and returns its auto-generated id.
// parentID may be nil for root events. payload is serialized to JSON; nil payload stores NULL.
func LogEvent(db *sql.DB, parentID *int64, eventType string, payload map[string]any) (int64, error) {
	var payloadJSON any
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, fmt.Errorf("marshal event payload: %w", err)
		}
		payloadJSON = string(data)
	}

	res, err := db.Exec(
		`INSERT INTO events (parent_id, event_type, payload) VALUES (?, ?, ?)`,
		parentID, eventType, payloadJSON,
	)
	if err != nil {
		return 0, fmt.Errorf("insert event %s: %w", eventType, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("get event id: %w", err)
	}
	return id, nil
}

// CountEvents returns how many events of the given type were recorded.
func CountEvents(db *sql.DB, eventType string) (int, error) {
	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM events WHERE event_type = ?`, eventType).Scan(&count)
	return count, err
}

// LatestEvent returns the most recent event of the given type, or nil if
// none was recorded.
func LatestEvent(db *sql.DB, eventType string) (*Event, error) {
	var (
		ev      Event
		parent  sql.NullInt64
		payload sql.NullString
	)
	err := db.QueryRow(
		`SELECT id, timestamp, parent_id, event_type, payload FROM events
		 WHERE event_type = ? ORDER BY id DESC LIMIT 1`,
		eventType,
	).Scan(&ev.ID, &ev.Timestamp, &parent, &ev.Type, &payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if parent.Valid {
		p := parent.Int64
		ev.ParentID = &p
	}
	if payload.Valid {
		if err := json.Unmarshal([]byte(payload.String), &ev.Payload); err != nil {
			return nil, fmt.Errorf("decode payload of event %d: %w", ev.ID, err)
		}
	}
	return &ev, nil
}

// Children returns the event types recorded under parentID in insertion order.
func Children(db *sql.DB, parentID int64) ([]string, error) {
	rows, err := db.Query(`SELECT event_type FROM events WHERE parent_id = ? ORDER BY id`, parentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var types []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		types = append(types, t)
	}
	return types, rows.Err()
}
