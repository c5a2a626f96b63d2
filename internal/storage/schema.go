// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

const (
	// SchemaVersion is stored in PRAGMA user_version.
	SchemaVersion = 3
)

// Schema defines the SQLite database schema.
const Schema = `
CREATE TABLE IF NOT EXISTS sessions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    pc_name TEXT,
    user_name TEXT,
    user_id TEXT,
    purpose TEXT,
    start_time TEXT,
    end_time TEXT,
    requested_minutes INTEGER,
    max_extensions INTEGER NOT NULL DEFAULT 0,
    extensions_used INTEGER NOT NULL DEFAULT 0,
    extension_minutes INTEGER NOT NULL DEFAULT 0,
    end_reason TEXT
);

CREATE INDEX IF NOT EXISTS idx_sessions_start_time ON sessions(start_time);

CREATE TABLE IF NOT EXISTS process_logs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id INTEGER,
    process_name TEXT,
    executable_path TEXT,
    started_at TEXT,
    ended_at TEXT,
    end_reason TEXT
);

CREATE INDEX IF NOT EXISTS idx_process_logs_started_at ON process_logs(started_at);

CREATE TABLE IF NOT EXISTS window_logs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id INTEGER,
    process_name TEXT,
    window_title TEXT,
    changed_at TEXT
);

CREATE INDEX IF NOT EXISTS idx_window_logs_changed_at ON window_logs(changed_at);

CREATE TABLE IF NOT EXISTS allowed_programs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    display_name TEXT,
    executable_path TEXT,
    arguments TEXT
);

CREATE TABLE IF NOT EXISTS admin_failures (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    failed_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_admin_failures_failed_at ON admin_failures(failed_at);
`

// sessionExtensionColumns were added in schema version 2. Databases created
// by version 1 get them through ALTER TABLE.
var sessionExtensionColumns = []struct {
	name string
	ddl  string
}{
	{"max_extensions", "ALTER TABLE sessions ADD COLUMN max_extensions INTEGER NOT NULL DEFAULT 0"},
	{"extensions_used", "ALTER TABLE sessions ADD COLUMN extensions_used INTEGER NOT NULL DEFAULT 0"},
	{"extension_minutes", "ALTER TABLE sessions ADD COLUMN extension_minutes INTEGER NOT NULL DEFAULT 0"},
}
