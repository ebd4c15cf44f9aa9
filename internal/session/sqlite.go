package session

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteTier is the persistent storage tier, a key/value table in a local
// SQLite file. It survives restarts, like a browser's local storage.
type SQLiteTier struct {
	db *sql.DB
}

// DefaultDBPath returns the default database path.
func DefaultDBPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "krishi", "krishi.sqlite")
}

// OpenSQLiteTier opens (creating if needed) the database with WAL.
func OpenSQLiteTier(path string) (*SQLiteTier, error) {
	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single connection keeps ":memory:" databases alive across calls.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS kv (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updatedAt REAL NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLiteTier{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteTier) Close() error {
	return s.db.Close()
}

// Get returns the value stored under key.
func (s *SQLiteTier) Get(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("query %s: %w", key, err)
	}
	return value, true, nil
}

// Set stores value under key, replacing any previous value.
func (s *SQLiteTier) Set(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO kv (key, value, updatedAt) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updatedAt = excluded.updatedAt
	`, key, value, unixFromTime(time.Now()))
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Delete removes the given keys. Missing keys are ignored.
func (s *SQLiteTier) Delete(keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(keys)), ",")
	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = k
	}
	if _, err := s.db.Exec(`DELETE FROM kv WHERE key IN (`+placeholders+`)`, args...); err != nil {
		return fmt.Errorf("delete keys: %w", err)
	}
	return nil
}

// Clear removes every stored key.
func (s *SQLiteTier) Clear() error {
	if _, err := s.db.Exec(`DELETE FROM kv`); err != nil {
		return fmt.Errorf("clear store: %w", err)
	}
	return nil
}

func unixFromTime(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}
