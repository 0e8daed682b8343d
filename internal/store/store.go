// Package store provides the local SQLite cache: UI preferences and a short
// history of finished runs. Everything here is best-effort; the dashboard
// works without it.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/dimakrest/trading-analyst/internal/filter"
)

// Store handles SQLite persistence. NOT an interface - concrete type.
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type Store struct {
	db *sql.DB
	mu sync.RWMutex // Protects all database operations
}

// RunRecord is one finished run as kept in local history.
type RunRecord struct {
	ID          string
	SubmittedAt time.Time
	Symbols     int
	Total       int
	Processed   int
	Status      string
	Error       string
}

// Open creates a new Store with the given database path.
// Creates tables if they don't exist.
// Uses WAL mode for better concurrent read performance (file-based DBs only).
func Open(dbPath string) (*Store, error) {
	connStr := dbPath
	if dbPath == ":memory:" {
		// For in-memory databases, use shared cache mode so all connections
		// in the pool see the same database
		connStr = "file::memory:?cache=shared"
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if dbPath != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable WAL mode: %w", err)
		}
	}

	s := &Store{db: db}

	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return s, nil
}

// createTables creates the required tables and indexes if they don't exist.
func (s *Store) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS prefs (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		submitted_at DATETIME NOT NULL,
		symbols INTEGER NOT NULL,
		total INTEGER NOT NULL,
		processed INTEGER NOT NULL,
		status TEXT NOT NULL,
		error TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_runs_submitted ON runs(submitted_at DESC);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
// Thread-safe: acquires write lock to prevent closing during in-flight operations.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// SetPref stores one preference value as JSON under key.
// Thread-safe: acquires write lock.
func (s *Store) SetPref(key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal pref %q: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.Exec(`
		INSERT INTO prefs (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, string(data))
	return err
}

// GetPref loads one preference into out. Returns false when the key has
// never been stored.
// Thread-safe: acquires read lock.
func (s *Store) GetPref(key string, out any) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var data string
	err := s.db.QueryRow("SELECT value FROM prefs WHERE key = ?", key).Scan(&data)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(data), out); err != nil {
		return false, fmt.Errorf("unmarshal pref %q: %w", key, err)
	}
	return true, nil
}

// historyCap bounds the runs table; RecordRun prunes past it.
const historyCap = 200

// RecordRun upserts one finished run into history and prunes entries beyond
// the cap. Satisfies the backtest orchestrator's recorder interface.
// Thread-safe: acquires write lock.
func (s *Store) RecordRun(id string, symbols, total, processed int, status, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO runs (id, submitted_at, symbols, total, processed, status, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			processed = excluded.processed,
			status = excluded.status,
			error = excluded.error
	`, id, time.Now().UTC(), symbols, total, processed, status, errMsg)
	if err != nil {
		return err
	}
	return s.pruneRunsLocked(historyCap)
}

// RecentRuns returns up to limit runs, newest first.
// Thread-safe: acquires read lock.
func (s *Store) RecentRuns(limit int) ([]RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, submitted_at, symbols, total, processed, status, COALESCE(error, '')
		FROM runs
		ORDER BY submitted_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		var r RunRecord
		if err := rows.Scan(&r.ID, &r.SubmittedAt, &r.Symbols, &r.Total, &r.Processed, &r.Status, &r.Error); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// PruneRuns keeps only the newest keep runs.
// Thread-safe: acquires write lock.
func (s *Store) PruneRuns(keep int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pruneRunsLocked(keep)
}

func (s *Store) pruneRunsLocked(keep int) error {
	_, err := s.db.Exec(`
		DELETE FROM runs WHERE id NOT IN (
			SELECT id FROM runs ORDER BY submitted_at DESC LIMIT ?
		)
	`, keep)
	return err
}

// Pref keys used by the typed helpers below.
const (
	prefFilterDefaults = "filter_defaults"
	prefTheme          = "theme"
)

// SaveFilterDefaults persists the filter criteria restored on next startup.
func (s *Store) SaveFilterDefaults(c filter.Criteria) error {
	return s.SetPref(prefFilterDefaults, c)
}

// FilterDefaults returns the saved filter criteria, if any.
func (s *Store) FilterDefaults() (filter.Criteria, bool, error) {
	var c filter.Criteria
	ok, err := s.GetPref(prefFilterDefaults, &c)
	return c, ok, err
}

// SaveTheme persists the UI theme name.
func (s *Store) SaveTheme(name string) error {
	return s.SetPref(prefTheme, name)
}

// Theme returns the saved UI theme name, if any.
func (s *Store) Theme() (string, bool, error) {
	var name string
	ok, err := s.GetPref(prefTheme, &name)
	return name, ok, err
}
