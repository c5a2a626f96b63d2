// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrClosed is returned when the database has been closed.
	ErrClosed = errors.New("database is closed")

	// ErrNotFound is returned when a row does not exist.
	ErrNotFound = errors.New("row not found")
)

// CorruptSuffix is appended to a database file that could not be opened.
const CorruptSuffix = ".corrupt.bak"

// timeLayout is fixed width so that text columns sort chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// =============================================================================
// DB
// =============================================================================

// DB is the usage database.
type DB struct {
	db   *sql.DB
	path string
}

// Open opens (or creates) the database at path. If the existing file cannot
// be opened it is backed up to <path>.corrupt.bak, removed and recreated.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	d, err := open(path)
	if err == nil {
		return d, nil
	}

	if _, statErr := os.Stat(path); statErr != nil {
		return nil, err
	}

	log.Printf("DB_CORRUPT: %s: %v", path, err)
	if err := recoverCorrupt(path); err != nil {
		return nil, err
	}

	d, err = open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to recreate database: %w", err)
	}
	log.Printf("DB_RECREATED: %s (previous file kept at %s)", path, path+CorruptSuffix)
	return d, nil
}

func open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	var check string
	if err := db.QueryRow("PRAGMA quick_check").Scan(&check); err != nil {
		db.Close()
		return nil, fmt.Errorf("integrity check failed: %w", err)
	}
	if check != "ok" {
		db.Close()
		return nil, fmt.Errorf("integrity check failed: %s", check)
	}

	d := &DB{db: db, path: path}
	if err := d.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return d, nil
}

// recoverCorrupt copies the damaged file aside and removes it along with its
// WAL side files.
func recoverCorrupt(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read corrupt database: %w", err)
	}
	if err := os.WriteFile(path+CorruptSuffix, data, 0600); err != nil {
		return fmt.Errorf("failed to back up corrupt database: %w", err)
	}
	for _, p := range []string{path, path + "-wal", path + "-shm"} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove corrupt database: %w", err)
		}
	}
	return nil
}

func (d *DB) initSchema() error {
	if _, err := d.db.Exec(Schema); err != nil {
		return err
	}

	existing, err := d.columns("sessions")
	if err != nil {
		return err
	}
	for _, col := range sessionExtensionColumns {
		if existing[col.name] {
			continue
		}
		if _, err := d.db.Exec(col.ddl); err != nil {
			return fmt.Errorf("failed to add column %s: %w", col.name, err)
		}
	}

	_, err = d.db.Exec(fmt.Sprintf("PRAGMA user_version = %d", SchemaVersion))
	return err
}

func (d *DB) columns(table string) (map[string]bool, error) {
	rows, err := d.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols := make(map[string]bool)
	for rows.Next() {
		var (
			cid       int
			name      string
			ctype     string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &dfltValue, &pk); err != nil {
			return nil, err
		}
		cols[name] = true
	}
	return cols, rows.Err()
}

// Path returns the database file location.
func (d *DB) Path() string {
	return d.path
}

// Close closes the database.
func (d *DB) Close() error {
	if d.db == nil {
		return ErrClosed
	}
	err := d.db.Close()
	d.db = nil
	return err
}

// =============================================================================
// TIME HELPERS
// =============================================================================

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatNullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t.Local(), nil
}

func parseNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
