// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"fmt"
	"time"
)

// RecordAdminFailure stores one failed administrator password attempt and
// prunes attempts older than a day.
func (d *DB) RecordAdminFailure(ctx context.Context, at time.Time) error {
	if d.db == nil {
		return ErrClosed
	}
	if _, err := d.db.ExecContext(ctx,
		"INSERT INTO admin_failures (failed_at) VALUES (?)", formatTime(at)); err != nil {
		return fmt.Errorf("failed to record admin failure: %w", err)
	}
	if _, err := d.db.ExecContext(ctx,
		"DELETE FROM admin_failures WHERE failed_at < ?", formatTime(at.Add(-24*time.Hour))); err != nil {
		return fmt.Errorf("failed to prune admin failures: %w", err)
	}
	return nil
}

// AdminFailuresSince counts failed attempts at or after since.
func (d *DB) AdminFailuresSince(ctx context.Context, since time.Time) (int, error) {
	if d.db == nil {
		return 0, ErrClosed
	}
	var n int
	err := d.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM admin_failures WHERE failed_at >= ?", formatTime(since)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count admin failures: %w", err)
	}
	return n, nil
}
