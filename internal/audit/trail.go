// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/jeranaias/publicpc/internal/model"
)

// Rows stores the structured copy of process and window events.
type Rows interface {
	InsertProcessLog(ctx context.Context, l *model.ProcessLog) (int64, error)
	InsertWindowLog(ctx context.Context, l *model.WindowLog) (int64, error)
}

// Trail writes each event to the audit sink and to the database.
type Trail struct {
	sink   Sink
	rows   Rows
	errlog *ErrorLog
	now    func() time.Time
}

// NewTrail creates a trail. rows may be nil, in which case only the sink is written.
func NewTrail(sink Sink, rows Rows, errlog *ErrorLog) *Trail {
	return &Trail{sink: sink, rows: rows, errlog: errlog, now: time.Now}
}

// ProcessStart records a program launched from the allow-list.
func (t *Trail) ProcessStart(ctx context.Context, sessionID int64, name, path string) error {
	now := t.now()
	t.insertProcess(ctx, &model.ProcessLog{
		SessionID:      sessionID,
		ProcessName:    name,
		ExecutablePath: path,
		StartedAt:      now,
		EndReason:      model.ProcessRunning,
	})
	return t.record(sessionID, CategoryProcessStart, fmt.Sprintf("%s|%s|%s", name, path, model.ProcessRunning))
}

// ProcessEnd records the end of a process. reason is typically
// model.ProcessBlocked. The returned error only reflects the sink.
func (t *Trail) ProcessEnd(ctx context.Context, sessionID int64, name, path, reason string) error {
	now := t.now()
	if err := t.record(sessionID, CategoryProcessEnd, fmt.Sprintf("%s|%s|%s", name, path, reason)); err != nil {
		return err
	}
	t.insertProcess(ctx, &model.ProcessLog{
		SessionID:      sessionID,
		ProcessName:    name,
		ExecutablePath: path,
		StartedAt:      now,
		EndedAt:        &now,
		EndReason:      reason,
	})
	return nil
}

// WindowChange records a new foreground window title.
func (t *Trail) WindowChange(ctx context.Context, sessionID int64, processName, title string) error {
	if t.rows != nil {
		_, err := t.rows.InsertWindowLog(ctx, &model.WindowLog{
			SessionID:   sessionID,
			ProcessName: processName,
			WindowTitle: title,
			ChangedAt:   t.now(),
		})
		if err != nil {
			t.errlog.Report("audit.window-row", err)
		}
	}
	return t.record(sessionID, CategoryWindow, fmt.Sprintf("%s|%s", processName, title))
}

// Event records a lifecycle event without a database row.
func (t *Trail) Event(sessionID int64, category, message string) error {
	return t.record(sessionID, category, message)
}

func (t *Trail) insertProcess(ctx context.Context, l *model.ProcessLog) {
	if t.rows == nil {
		return
	}
	if _, err := t.rows.InsertProcessLog(ctx, l); err != nil {
		t.errlog.Report("audit.process-row", err)
	}
}

func (t *Trail) record(sessionID int64, category, message string) error {
	if err := t.sink.Record(sessionID, category, message); err != nil {
		t.errlog.Report("audit.sink", err)
		return fmt.Errorf("audit %s: %w", category, err)
	}
	return nil
}
