// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package monitor

import (
	"context"
	"sync"

	"github.com/jeranaias/publicpc/internal/platform"
)

// Change is a new foreground window title.
type Change struct {
	PID         int
	ProcessName string
	Title       string
}

// Tracker samples the foreground window and reports title changes. The last
// title is kept for the life of the Tracker, across sessions.
type Tracker struct {
	windows  platform.WindowSource
	onChange func(ctx context.Context, c Change)

	mu        sync.Mutex
	lastTitle string
}

// NewTracker creates a tracker. onChange may be nil.
func NewTracker(windows platform.WindowSource, onChange func(ctx context.Context, c Change)) *Tracker {
	return &Tracker{windows: windows, onChange: onChange}
}

// Tick samples once and passes a change to onChange. It is the tasks.Func
// for the window monitor.
func (t *Tracker) Tick(ctx context.Context) {
	c, ok := t.Sample()
	if ok && t.onChange != nil {
		t.onChange(ctx, c)
	}
}

// Sample reads the foreground window. ok is true only when the title differs
// from the previous sample. Unreadable windows are skipped without changing
// the remembered title.
func (t *Tracker) Sample() (Change, bool) {
	w, ok, err := t.windows.Foreground()
	if err != nil || !ok {
		return Change{}, false
	}
	name, err := t.windows.ProcessName(w.PID)
	if err != nil {
		return Change{}, false
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if w.Title == t.lastTitle {
		return Change{}, false
	}
	t.lastTitle = w.Title
	return Change{PID: w.PID, ProcessName: name, Title: w.Title}, true
}

// LastTitle returns the most recently reported title.
func (t *Tracker) LastTitle() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastTitle
}
