// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jeranaias/publicpc/internal/model"
)

const sessionColumns = `id, pc_name, user_name, user_id, purpose, start_time, end_time,
    requested_minutes, max_extensions, extensions_used, extension_minutes, end_reason`

// InsertSession stores a new session and returns its id. s.ID is ignored.
func (d *DB) InsertSession(ctx context.Context, s *model.Session) (int64, error) {
	if d.db == nil {
		return 0, ErrClosed
	}

	res, err := d.db.ExecContext(ctx, `
INSERT INTO sessions (pc_name, user_name, user_id, purpose, start_time, end_time,
    requested_minutes, max_extensions, extensions_used, extension_minutes, end_reason)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.PCName, s.UserName, s.UserID, s.Purpose,
		formatTime(s.StartTime), formatNullTime(s.EndTime),
		s.RequestedMinutes, s.MaxExtensions, s.ExtensionsUsed, s.ExtensionMinutes,
		s.EndReason,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert session: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read session id: %w", err)
	}
	return id, nil
}

// UpdateSession writes the mutable fields of an existing session.
func (d *DB) UpdateSession(ctx context.Context, s *model.Session) error {
	if d.db == nil {
		return ErrClosed
	}

	res, err := d.db.ExecContext(ctx, `
UPDATE sessions
SET end_time = ?, requested_minutes = ?, max_extensions = ?, extensions_used = ?,
    extension_minutes = ?, end_reason = ?
WHERE id = ?`,
		formatNullTime(s.EndTime), s.RequestedMinutes, s.MaxExtensions, s.ExtensionsUsed,
		s.ExtensionMinutes, s.EndReason, s.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update session %d: %w", s.ID, err)
	}

	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return fmt.Errorf("session %d: %w", s.ID, ErrNotFound)
	}
	return nil
}

// GetSession returns one session by id.
func (d *DB) GetSession(ctx context.Context, id int64) (*model.Session, error) {
	if d.db == nil {
		return nil, ErrClosed
	}

	row := d.db.QueryRowContext(ctx, "SELECT "+sessionColumns+" FROM sessions WHERE id = ?", id)
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %d: %w", id, ErrNotFound)
	}
	return s, err
}

// RecentSessions returns up to limit sessions, newest first.
func (d *DB) RecentSessions(ctx context.Context, limit int) ([]*model.Session, error) {
	if limit <= 0 {
		limit = 100
	}
	return d.querySessions(ctx, "SELECT "+sessionColumns+" FROM sessions ORDER BY start_time DESC, id DESC LIMIT ?", limit)
}

// OpenSessions returns sessions that were never ended, oldest first. After a
// crash these are the sessions the previous run left behind.
func (d *DB) OpenSessions(ctx context.Context) ([]*model.Session, error) {
	return d.querySessions(ctx, "SELECT "+sessionColumns+" FROM sessions WHERE end_time IS NULL ORDER BY start_time, id")
}

func (d *DB) querySessions(ctx context.Context, query string, args ...any) ([]*model.Session, error) {
	if d.db == nil {
		return nil, ErrClosed
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*model.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(sc scanner) (*model.Session, error) {
	var (
		s                                 model.Session
		pcName, userName, userID, purpose sql.NullString
		start, end, reason                sql.NullString
		requested                         sql.NullInt64
		maxExt, used, extMinutes          int
	)
	if err := sc.Scan(&s.ID, &pcName, &userName, &userID, &purpose, &start, &end,
		&requested, &maxExt, &used, &extMinutes, &reason); err != nil {
		return nil, err
	}

	startTime, err := parseTime(start.String)
	if err != nil {
		return nil, err
	}
	endTime, err := parseNullTime(end)
	if err != nil {
		return nil, err
	}

	s.PCName = pcName.String
	s.UserName = userName.String
	s.UserID = userID.String
	s.Purpose = purpose.String
	s.StartTime = startTime
	s.EndTime = endTime
	s.RequestedMinutes = int(requested.Int64)
	s.MaxExtensions = maxExt
	s.ExtensionsUsed = used
	s.ExtensionMinutes = extMinutes
	s.EndReason = reason.String
	return &s, nil
}
