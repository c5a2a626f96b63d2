// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage persists workstation usage in a local SQLite database.
//
// Four tables are kept: sessions, process_logs, window_logs and
// allowed_programs. Log rows are append-only; sessions are inserted once and
// updated when extended or ended, never deleted. allowed_programs mirrors the
// policy allow-list for reporting.
//
// A database that cannot be opened is copied to "<db>.corrupt.bak", removed
// and recreated empty.
//
// # Usage
//
//	db, err := storage.Open(cfg.DatabasePath())
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	id, err := db.InsertSession(ctx, s)
//	recent, err := db.RecentSessions(ctx, 100)
package storage
