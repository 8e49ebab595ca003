package db

import (
	"database/sql"
	"log/slog"
	"os"
)

// Journal is a best-effort diagnostic event log. A nil *Journal discards
// everything, so callers never need to check whether journaling is enabled.
type Journal struct {
	db     *sql.DB
	logger *slog.Logger
	rootID *int64
}

// OpenJournal opens the database at path, creates the schema and records a
// process.started root event that later events hang under.
func OpenJournal(path, role string, logger *slog.Logger) (*Journal, error) {
	database, err := OpenDB(path)
	if err != nil {
		return nil, err
	}
	if err := InitSchema(database); err != nil {
		database.Close()
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	j := &Journal{db: database, logger: logger.With("component", "journal")}
	rootID, err := LogEvent(database, nil, EventProcessStarted, map[string]any{
		"role": role,
		"pid":  os.Getpid(),
	})
	if err != nil {
		database.Close()
		return nil, err
	}
	j.rootID = &rootID
	return j, nil
}

// Record logs an event under parentID, or under the process root when
// parentID is nil. It returns the new event id, or 0 on failure.
func (j *Journal) Record(parentID *int64, eventType string, payload map[string]any) int64 {
	if j == nil {
		return 0
	}
	if parentID == nil {
		parentID = j.rootID
	}
	id, err := LogEvent(j.db, parentID, eventType, payload)
	if err != nil {
		j.logger.Warn("journal write failed", "event_type", eventType, "error", err)
		return 0
	}
	return id
}

// DB exposes the underlying database.
func (j *Journal) DB() *sql.DB {
	if j == nil {
		return nil
	}
	return j.db
}

// Close records process.stopped and closes the database.
func (j *Journal) Close() error {
	if j == nil {
		return nil
	}
	j.Record(nil, EventProcessStopped, nil)
	return j.db.Close()
}
