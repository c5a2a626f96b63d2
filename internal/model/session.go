// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the persisted records of workstation usage.
package model

import "time"

// =============================================================================
// END REASONS
// =============================================================================

// Session end reasons written to sessions.end_reason.
const (
	EndReasonManual  = "manual"
	EndReasonTimeout = "timeout"
	EndReasonForced  = "forced"

	// EndReasonInterrupted closes sessions left open by a previous run.
	EndReasonInterrupted = "interrupted"
)

// =============================================================================
// SESSION
// =============================================================================

// Session is one bounded period of workstation use.
type Session struct {
	// ID is assigned by the session store on insert.
	ID int64 `json:"id"`

	PCName   string `json:"pc_name"`
	UserName string `json:"user_name"`
	UserID   string `json:"user_id"`
	Purpose  string `json:"purpose"`

	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty"`

	// RequestedMinutes only ever grows, through extensions.
	RequestedMinutes int `json:"requested_minutes"`

	// Extension policy snapshot taken when the session started.
	MaxExtensions    int `json:"max_extensions"`
	ExtensionMinutes int `json:"extension_minutes"`
	ExtensionsUsed   int `json:"extensions_used"`

	EndReason string `json:"end_reason"`
}

// IsOpen reports whether the session has not been ended yet.
func (s *Session) IsOpen() bool {
	return s != nil && s.EndTime == nil
}

// ExtensionsRemaining returns how many extensions can still be granted.
func (s *Session) ExtensionsRemaining() int {
	remaining := s.MaxExtensions - s.ExtensionsUsed
	if remaining < 0 {
		return 0
	}
	return remaining
}

// CanExtend reports whether TryExtend would succeed for this snapshot.
func (s *Session) CanExtend() bool {
	return s.IsOpen() && s.ExtensionsRemaining() > 0 && s.ExtensionMinutes > 0
}

// Allotted returns the total time granted so far.
func (s *Session) Allotted() time.Duration {
	return time.Duration(s.RequestedMinutes) * time.Minute
}

// Deadline returns when the session runs out if it is never paused.
func (s *Session) Deadline() time.Time {
	return s.StartTime.Add(s.Allotted())
}

// Duration returns how long the session lasted, or 0 while it is open.
func (s *Session) Duration() time.Duration {
	if s.EndTime == nil {
		return 0
	}
	return s.EndTime.Sub(s.StartTime)
}

// Clone returns a deep copy safe to hand to another goroutine.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	if s.EndTime != nil {
		end := *s.EndTime
		c.EndTime = &end
	}
	return &c
}
