// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"sync"
	"time"
)

// DefaultWarningThreshold is when the low-time warning turns on.
const DefaultWarningThreshold = 5 * time.Minute

// CountdownStatus is a point-in-time view of a Countdown.
type CountdownStatus struct {
	Remaining time.Duration
	Warning   bool
	Paused    bool
	Armed     bool
	Expired   bool

	// Generation changes on every Reset and Clear.
	Generation uint64
}

// Countdown tracks the time left in a session. It does not run its own
// timer; the owner calls Tick once per interval.
type Countdown struct {
	mu        sync.Mutex
	warnAt    time.Duration
	remaining time.Duration
	warning   bool
	paused    bool
	armed     bool
	expired   bool
	gen       uint64

	onExpire  func(gen uint64)
	onWarning func(remaining time.Duration)
}

// NewCountdown creates a disarmed countdown. A non-positive warnAt disables
// the warning.
func NewCountdown(warnAt time.Duration) *Countdown {
	return &Countdown{warnAt: warnAt}
}

// SetExpireCallback sets the function called once when time runs out. It
// receives the generation that expired, which no longer matches
// Status().Generation after a Reset or Clear.
func (c *Countdown) SetExpireCallback(fn func(gen uint64)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onExpire = fn
}

// SetWarningCallback sets the function called when the warning turns on.
func (c *Countdown) SetWarningCallback(fn func(remaining time.Duration)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onWarning = fn
}

// Reset arms the countdown with total time left.
func (c *Countdown) Reset(total time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.remaining = max(total, 0)
	c.armed = true
	c.expired = false
	c.paused = false
	c.warning = c.inWarning()
}

// Clear disarms the countdown. Later ticks do nothing.
func (c *Countdown) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.armed = false
	c.expired = false
	c.warning = false
	c.paused = false
	c.remaining = 0
}

// Tick removes elapsed from the remaining time. The expire callback runs
// outside the lock, exactly once per Reset.
func (c *Countdown) Tick(elapsed time.Duration) {
	c.mu.Lock()
	if !c.armed || c.paused || c.expired {
		c.mu.Unlock()
		return
	}

	c.remaining -= elapsed
	if c.remaining < 0 {
		c.remaining = 0
	}

	var warnFn func(time.Duration)
	wasWarning := c.warning
	c.warning = c.inWarning()
	if c.warning && !wasWarning {
		warnFn = c.onWarning
	}

	var expireFn func(uint64)
	if c.remaining == 0 {
		c.expired = true
		expireFn = c.onExpire
	}
	remaining := c.remaining
	gen := c.gen
	c.mu.Unlock()

	if warnFn != nil {
		warnFn(remaining)
	}
	if expireFn != nil {
		expireFn(gen)
	}
}

// Extend adds d to the remaining time. It does nothing once expired.
func (c *Countdown) Extend(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.armed || c.expired || d <= 0 {
		return
	}
	c.remaining += d
	c.warning = c.inWarning()
}

// Pause stops Tick from consuming time.
func (c *Countdown) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = true
}

// Resume undoes Pause.
func (c *Countdown) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = false
}

// Remaining returns the time left.
func (c *Countdown) Remaining() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

// Status returns a snapshot of the countdown.
func (c *Countdown) Status() CountdownStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CountdownStatus{
		Remaining: c.remaining,
		Warning:   c.warning,
		Paused:    c.paused,
		Armed:     c.armed,
		Expired:   c.expired,

		Generation: c.gen,
	}
}

func (c *Countdown) inWarning() bool {
	return c.armed && c.warnAt > 0 && c.remaining <= c.warnAt
}
