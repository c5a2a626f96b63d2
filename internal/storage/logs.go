// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jeranaias/publicpc/internal/model"
)

// InsertProcessLog appends a process row and returns its id.
func (d *DB) InsertProcessLog(ctx context.Context, l *model.ProcessLog) (int64, error) {
	if d.db == nil {
		return 0, ErrClosed
	}

	res, err := d.db.ExecContext(ctx, `
INSERT INTO process_logs (session_id, process_name, executable_path, started_at, ended_at, end_reason)
VALUES (?, ?, ?, ?, ?, ?)`,
		l.SessionID, l.ProcessName, l.ExecutablePath,
		formatTime(l.StartedAt), formatNullTime(l.EndedAt), l.EndReason,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert process log: %w", err)
	}
	return res.LastInsertId()
}

// InsertWindowLog appends a window row and returns its id.
func (d *DB) InsertWindowLog(ctx context.Context, l *model.WindowLog) (int64, error) {
	if d.db == nil {
		return 0, ErrClosed
	}

	res, err := d.db.ExecContext(ctx, `
INSERT INTO window_logs (session_id, process_name, window_title, changed_at)
VALUES (?, ?, ?, ?)`,
		l.SessionID, l.ProcessName, l.WindowTitle, formatTime(l.ChangedAt),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert window log: %w", err)
	}
	return res.LastInsertId()
}

// ProcessLogs returns process rows started within [from, to], newest first.
func (d *DB) ProcessLogs(ctx context.Context, from, to time.Time) ([]model.ProcessLog, error) {
	if d.db == nil {
		return nil, ErrClosed
	}

	rows, err := d.db.QueryContext(ctx, `
SELECT id, session_id, process_name, executable_path, started_at, ended_at, end_reason
FROM process_logs
WHERE started_at BETWEEN ? AND ?
ORDER BY started_at DESC, id DESC`,
		formatTime(from), formatTime(to),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query process logs: %w", err)
	}
	defer rows.Close()

	var logs []model.ProcessLog
	for rows.Next() {
		var (
			l                  model.ProcessLog
			sessionID          sql.NullInt64
			name, path, reason sql.NullString
			started, ended     sql.NullString
		)
		if err := rows.Scan(&l.ID, &sessionID, &name, &path, &started, &ended, &reason); err != nil {
			return nil, err
		}
		if l.StartedAt, err = parseTime(started.String); err != nil {
			return nil, err
		}
		if l.EndedAt, err = parseNullTime(ended); err != nil {
			return nil, err
		}
		l.SessionID = sessionID.Int64
		l.ProcessName = name.String
		l.ExecutablePath = path.String
		l.EndReason = reason.String
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// WindowLogs returns window rows changed within [from, to], newest first.
func (d *DB) WindowLogs(ctx context.Context, from, to time.Time) ([]model.WindowLog, error) {
	if d.db == nil {
		return nil, ErrClosed
	}

	rows, err := d.db.QueryContext(ctx, `
SELECT id, session_id, process_name, window_title, changed_at
FROM window_logs
WHERE changed_at BETWEEN ? AND ?
ORDER BY changed_at DESC, id DESC`,
		formatTime(from), formatTime(to),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query window logs: %w", err)
	}
	defer rows.Close()

	var logs []model.WindowLog
	for rows.Next() {
		var (
			l                    model.WindowLog
			sessionID            sql.NullInt64
			name, title, changed sql.NullString
		)
		if err := rows.Scan(&l.ID, &sessionID, &name, &title, &changed); err != nil {
			return nil, err
		}
		if l.ChangedAt, err = parseTime(changed.String); err != nil {
			return nil, err
		}
		l.SessionID = sessionID.Int64
		l.ProcessName = name.String
		l.WindowTitle = title.String
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
