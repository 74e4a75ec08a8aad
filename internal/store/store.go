// Package store keeps the action journal in SQLite.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Store handles SQLite persistence. NOT an interface - concrete type.
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type Store struct {
	db      *sql.DB
	mu      sync.RWMutex
	session string
	now     func() time.Time
}

// Action is one dispatched service call.
type Action struct {
	ID        string    `json:"id"`
	Service   string    `json:"service"`
	EntityID  string    `json:"entity_id"`
	OK        bool      `json:"ok"`
	Error     string    `json:"error,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
	At        time.Time `json:"at"`
}

// Open creates a new Store with the given database path and brings the
// schema up to date. ":memory:" opens an in-memory database shared by
// every Store in the process.
func Open(dbPath string) (*Store, error) {
	connStr := dbPath
	if dbPath == ":memory:" {
		connStr = "file::memory:?cache=shared"
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// A second pooled connection to :memory: would see a different database.
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

	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, now: time.Now}, nil
}

// SetSession tags subsequently recorded actions with a session id.
func (s *Store) SetSession(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = id
}

// Close closes the database connection.
// Thread-safe: acquires write lock to prevent closing during in-flight operations.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// Record appends one service call outcome to the journal.
func (s *Store) Record(ctx context.Context, service, entityID string, callErr error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errText sql.NullString
	if callErr != nil {
		errText = sql.NullString{String: callErr.Error(), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO actions (id, service, entity_id, ok, error, session_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, uuid.NewString(), service, entityID, boolToInt(callErr == nil), errText, s.session, s.now().UTC())
	if err != nil {
		return fmt.Errorf("record action: %w", err)
	}
	return nil
}

// RecentActions returns up to limit actions, newest first.
// Thread-safe: acquires read lock.
func (s *Store) RecentActions(ctx context.Context, limit int) ([]Action, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryActions(ctx, `
		SELECT id, service, entity_id, ok, error, session_id, created_at
		FROM actions
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, limit)
}

// ActionsFor returns up to limit actions for one entity, newest first.
// Thread-safe: acquires read lock.
func (s *Store) ActionsFor(ctx context.Context, entityID string, limit int) ([]Action, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryActions(ctx, `
		SELECT id, service, entity_id, ok, error, session_id, created_at
		FROM actions
		WHERE entity_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, entityID, limit)
}

// queryActions executes a query and scans results into Actions.
// Caller must hold s.mu (read lock is sufficient).
func (s *Store) queryActions(ctx context.Context, query string, args ...any) ([]Action, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var actions []Action
	for rows.Next() {
		var a Action
		var okInt int
		var errText sql.NullString
		if err := rows.Scan(&a.ID, &a.Service, &a.EntityID, &okInt, &errText, &a.SessionID, &a.At); err != nil {
			return nil, err
		}
		a.OK = okInt != 0
		a.Error = errText.String
		actions = append(actions, a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return actions, nil
}

// boolToInt converts a bool to an int for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
