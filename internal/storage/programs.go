// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jeranaias/publicpc/internal/policy"
)

// SyncAllowedPrograms replaces the allowed_programs table with programs in a
// single transaction.
func (d *DB) SyncAllowedPrograms(ctx context.Context, programs []policy.AllowedProgram) error {
	if d.db == nil {
		return ErrClosed
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM allowed_programs"); err != nil {
		return fmt.Errorf("failed to clear allowed programs: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO allowed_programs (display_name, executable_path, arguments) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range programs {
		if _, err := stmt.ExecContext(ctx, p.DisplayName, p.ExecutablePath, p.Arguments); err != nil {
			return fmt.Errorf("failed to insert allowed program %s: %w", p.ExecutablePath, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit allowed programs: %w", err)
	}
	return nil
}

// AllowedPrograms returns the mirrored allow-list in insertion order.
func (d *DB) AllowedPrograms(ctx context.Context) ([]policy.AllowedProgram, error) {
	if d.db == nil {
		return nil, ErrClosed
	}

	rows, err := d.db.QueryContext(ctx,
		"SELECT display_name, executable_path, arguments FROM allowed_programs ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query allowed programs: %w", err)
	}
	defer rows.Close()

	var programs []policy.AllowedProgram
	for rows.Next() {
		var name, path, args sql.NullString
		if err := rows.Scan(&name, &path, &args); err != nil {
			return nil, err
		}
		programs = append(programs, policy.AllowedProgram{
			DisplayName:    name.String,
			ExecutablePath: path.String,
			Arguments:      args.String,
		})
	}
	return programs, rows.Err()
}
