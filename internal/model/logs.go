// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import "time"

// Process end reasons written to process_logs.end_reason.
const (
	ProcessRunning = "running"
	ProcessBlocked = "blocked"
)

// ProcessLog is one append-only process observation. A start and an end
// are recorded as two independent rows, never updated in place.
type ProcessLog struct {
	ID             int64      `json:"id"`
	SessionID      int64      `json:"session_id"`
	ProcessName    string     `json:"process_name"`
	ExecutablePath string     `json:"executable_path"`
	StartedAt      time.Time  `json:"started_at"`
	EndedAt        *time.Time `json:"ended_at,omitempty"`
	EndReason      string     `json:"end_reason"`
}

// WindowLog is one foreground window title change.
type WindowLog struct {
	ID          int64     `json:"id"`
	SessionID   int64     `json:"session_id"`
	ProcessName string    `json:"process_name"`
	WindowTitle string    `json:"window_title"`
	ChangedAt   time.Time `json:"changed_at"`
}
