// Package statuslog keeps a durable, change-only journal of board
// online/offline transitions in SQLite. An entry is written only when a
// board's computed event differs from its last recorded event, and the
// journal is capped at MaxEntries (oldest dropped first).
package statuslog

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"cactusd/internal/model"
)

// MaxEntries is the journal cap.
const MaxEntries = 500

type Store struct {
	db *sql.DB
}

// Open opens or creates the status log database.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening status log: %w", err)
	}
	// SQLite handles one writer at a time; a single connection avoids
	// SQLITE_BUSY under concurrent scan cycles.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS last_status (
			name TEXT PRIMARY KEY,
			event TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS status_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts TIMESTAMP NOT NULL,
			name TEXT NOT NULL,
			event TEXT NOT NULL,
			details TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_status_log_name ON status_log(name);
	`)
	if err != nil {
		return fmt.Errorf("creating status log schema: %w", err)
	}
	return nil
}

// RecordIfChanged appends a transition entry if the event differs from the
// board's last recorded event. Read, decide, append and trim run in one
// transaction so overlapping scan cycles serialize at the store.
func (s *Store) RecordIfChanged(name, event, details string) (bool, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var last string
	err = tx.QueryRow(`SELECT event FROM last_status WHERE name = ?`, name).Scan(&last)
	if err != nil && err != sql.ErrNoRows {
		return false, fmt.Errorf("reading last status: %w", err)
	}
	if last == event {
		return false, nil
	}

	_, err = tx.Exec(
		`INSERT INTO status_log (ts, name, event, details) VALUES (?, ?, ?, ?)`,
		time.Now().UTC(), name, event, details,
	)
	if err != nil {
		return false, fmt.Errorf("appending status entry: %w", err)
	}

	_, err = tx.Exec(`
		INSERT INTO last_status (name, event) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET event = excluded.event
	`, name, event)
	if err != nil {
		return false, fmt.Errorf("updating last status: %w", err)
	}

	_, err = tx.Exec(`
		DELETE FROM status_log WHERE id NOT IN (
			SELECT id FROM status_log ORDER BY id DESC LIMIT ?
		)
	`, MaxEntries)
	if err != nil {
		return false, fmt.Errorf("trimming status log: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

// Query returns the most recent entries, newest first, optionally filtered
// by board name. name == "" means all boards.
func (s *Store) Query(limit int, name string) ([]model.StatusEntry, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT ts, name, event, details FROM status_log`
	args := []any{}
	if name != "" {
		query += ` WHERE name = ?`
		args = append(args, name)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying status log: %w", err)
	}
	defer rows.Close()

	var entries []model.StatusEntry
	for rows.Next() {
		var e model.StatusEntry
		if err := rows.Scan(&e.Timestamp, &e.Name, &e.Event, &e.Details); err != nil {
			return nil, fmt.Errorf("scanning status entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// LastStatuses returns the last recorded event for every board.
func (s *Store) LastStatuses() (map[string]string, error) {
	rows, err := s.db.Query(`SELECT name, event FROM last_status`)
	if err != nil {
		return nil, fmt.Errorf("querying last statuses: %w", err)
	}
	defer rows.Close()

	statuses := map[string]string{}
	for rows.Next() {
		var name, event string
		if err := rows.Scan(&name, &event); err != nil {
			return nil, fmt.Errorf("scanning last status: %w", err)
		}
		statuses[name] = event
	}
	return statuses, rows.Err()
}

// Count returns the number of journal entries.
func (s *Store) Count() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM status_log`).Scan(&n)
	return n, err
}
