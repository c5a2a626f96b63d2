// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tasks

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// Func is the work done on every tick.
type Func func(ctx context.Context)

// Reporter records panics recovered from a tick.
type Reporter interface {
	Recovered(source string, r any) string
}

// =============================================================================
// PERIODIC
// =============================================================================

// Periodic calls a Func once per interval until stopped.
type Periodic struct {
	name     string
	interval time.Duration
	fn       Func
	reporter Reporter

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	// tickMu serializes invocations across restarts.
	tickMu  sync.Mutex
	running atomic.Bool
	ticks   atomic.Int64
}

// NewPeriodic creates a stopped task. reporter may be nil.
func NewPeriodic(name string, interval time.Duration, fn Func, reporter Reporter) *Periodic {
	if interval <= 0 {
		interval = time.Second
	}
	return &Periodic{
		name:     name,
		interval: interval,
		fn:       fn,
		reporter: reporter,
	}
}

// Name returns the task name.
func (p *Periodic) Name() string {
	return p.name
}

// Interval returns the tick period.
func (p *Periodic) Interval() time.Duration {
	return p.interval
}

// Running reports whether the task is started.
func (p *Periodic) Running() bool {
	return p.running.Load()
}

// Ticks returns how many ticks have completed since creation.
func (p *Periodic) Ticks() int64 {
	return p.ticks.Load()
}

// =============================================================================
// LIFECYCLE
// =============================================================================

// Start begins ticking. It reports false if the task was already running.
func (p *Periodic) Start() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running.Load() {
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	p.cancel = cancel
	p.done = done
	p.running.Store(true)

	go p.loop(ctx, done)
	return true
}

// Stop cancels the task without waiting for an in-flight tick. It is safe to
// call from inside the tick and to call more than once.
func (p *Periodic) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running.Load() {
		return
	}
	p.running.Store(false)
	p.cancel()
}

// StopAndWait stops the task and waits for the loop to exit. It must not be
// called from inside a tick.
func (p *Periodic) StopAndWait() {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()

	p.Stop()
	if done != nil {
		<-done
	}
}

// RunOnce performs a single tick synchronously, with the same panic
// containment as the loop.
func (p *Periodic) RunOnce(ctx context.Context) {
	p.tick(ctx)
}

// =============================================================================
// LOOP
// =============================================================================

func (p *Periodic) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			p.tick(ctx)
		}
	}
}

func (p *Periodic) tick(ctx context.Context) {
	p.tickMu.Lock()
	defer p.tickMu.Unlock()
	defer p.ticks.Add(1)
	defer func() {
		if r := recover(); r != nil {
			if p.reporter != nil {
				p.reporter.Recovered(p.name, r)
			} else {
				log.Printf("TASK_PANIC: %s: %v", p.name, r)
			}
		}
	}()

	p.fn(ctx)
}
