package vm

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// ---------------------------------------------------------------------------
// Reload history
// ---------------------------------------------------------------------------

// ReloadStatus is the recorded outcome of a reload.
type ReloadStatus string

const (
	ReloadSucceeded ReloadStatus = "ok"
	ReloadFailed    ReloadStatus = "error"
)

// ReloadRecord is one journaled reload outcome.
type ReloadRecord struct {
	ID           string
	IsolateID    string
	RootURL      string
	Status       ReloadStatus
	Error        string
	NumClasses   int
	NumLibraries int
	Duration     time.Duration
	When         time.Time
}

// ReloadHistory journals reload outcomes to SQLite so IDE tooling can
// show what happened to a long-running isolate. Attaching a history to an
// isolate is optional.
type ReloadHistory struct {
	db *sql.DB
	mu sync.Mutex
}

// OpenReloadHistory opens (creating if needed) the journal at dbPath.
func OpenReloadHistory(dbPath string) (*ReloadHistory, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening reload history: %w", err)
	}

	// Set busy timeout for concurrent access.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS reloads (
		id TEXT PRIMARY KEY,
		isolate TEXT NOT NULL,
		root_url TEXT NOT NULL,
		status TEXT NOT NULL,
		error TEXT,
		num_classes INTEGER NOT NULL,
		num_libraries INTEGER NOT NULL,
		duration_us INTEGER NOT NULL,
		at TIMESTAMP NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating reloads table: %w", err)
	}

	return &ReloadHistory{db: db}, nil
}

// Record journals one reload outcome.
func (h *ReloadHistory) Record(rec *ReloadRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.db.Exec(
		`INSERT INTO reloads
		 (id, isolate, root_url, status, error, num_classes, num_libraries, duration_us, at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.IsolateID, rec.RootURL, string(rec.Status), rec.Error,
		rec.NumClasses, rec.NumLibraries, rec.Duration.Microseconds(), rec.When,
	)
	if err != nil {
		return fmt.Errorf("recording reload: %w", err)
	}
	return nil
}

// Recent returns up to n journaled reloads, newest first.
func (h *ReloadHistory) Recent(n int) ([]*ReloadRecord, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	rows, err := h.db.Query(
		`SELECT id, isolate, root_url, status, error, num_classes, num_libraries, duration_us, at
		 FROM reloads ORDER BY at DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("querying reloads: %w", err)
	}
	defer rows.Close()

	var recs []*ReloadRecord
	for rows.Next() {
		rec := &ReloadRecord{}
		var status string
		var durationUs int64
		if err := rows.Scan(&rec.ID, &rec.IsolateID, &rec.RootURL, &status, &rec.Error,
			&rec.NumClasses, &rec.NumLibraries, &durationUs, &rec.When); err != nil {
			return nil, fmt.Errorf("scanning reload row: %w", err)
		}
		rec.Status = ReloadStatus(status)
		rec.Duration = time.Duration(durationUs) * time.Microsecond
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// Close releases the underlying database.
func (h *ReloadHistory) Close() error {
	return h.db.Close()
}
