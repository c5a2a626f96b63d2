// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tasks

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type recordingReporter struct {
	mu      sync.Mutex
	sources []string
}

func (r *recordingReporter) Recovered(source string, _ any) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources = append(r.sources, source)
	return "id"
}

func (r *recordingReporter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sources)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestPeriodic_TicksUntilStopped(t *testing.T) {
	var calls atomic.Int32
	p := NewPeriodic("counter", 5*time.Millisecond, func(context.Context) { calls.Add(1) }, nil)

	if !p.Start() {
		t.Fatal("first Start should report true")
	}
	if p.Start() {
		t.Error("second Start should report false")
	}
	if !p.Running() {
		t.Error("task should be running")
	}

	waitFor(t, func() bool { return calls.Load() >= 3 })
	p.StopAndWait()

	if p.Running() {
		t.Error("task should be stopped")
	}
	after := calls.Load()
	time.Sleep(30 * time.Millisecond)
	if calls.Load() != after {
		t.Errorf("ticks continued after stop: %d -> %d", after, calls.Load())
	}
}

func TestPeriodic_TicksNeverOverlap(t *testing.T) {
	var active, maxActive atomic.Int32
	p := NewPeriodic("slow", time.Millisecond, func(context.Context) {
		n := active.Add(1)
		for {
			m := maxActive.Load()
			if n <= m || maxActive.CompareAndSwap(m, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		active.Add(-1)
	}, nil)

	p.Start()
	waitFor(t, func() bool { return p.Ticks() >= 3 })
	p.Stop()
	p.Start()
	waitFor(t, func() bool { return p.Ticks() >= 6 })
	p.StopAndWait()

	if maxActive.Load() != 1 {
		t.Errorf("observed %d concurrent ticks, want 1", maxActive.Load())
	}
}

func TestPeriodic_PanicIsContained(t *testing.T) {
	reporter := &recordingReporter{}
	var calls atomic.Int32
	p := NewPeriodic("faulty", 2*time.Millisecond, func(context.Context) {
		if calls.Add(1) == 1 {
			panic("first tick fails")
		}
	}, reporter)

	p.Start()
	waitFor(t, func() bool { return calls.Load() >= 3 })
	p.StopAndWait()

	if reporter.count() != 1 {
		t.Errorf("expected one recovered panic, got %d", reporter.count())
	}
	if reporter.sources[0] != "faulty" {
		t.Errorf("panic reported under %q", reporter.sources[0])
	}
}

func TestPeriodic_TickCanStopItself(t *testing.T) {
	var p *Periodic
	var calls atomic.Int32
	p = NewPeriodic("self-stopping", 2*time.Millisecond, func(context.Context) {
		calls.Add(1)
		p.Stop()
	}, nil)

	p.Start()
	waitFor(t, func() bool { return !p.Running() })
	time.Sleep(20 * time.Millisecond)

	if calls.Load() != 1 {
		t.Errorf("expected exactly one tick, got %d", calls.Load())
	}
}

func TestPeriodic_RunOnce(t *testing.T) {
	reporter := &recordingReporter{}
	p := NewPeriodic("manual", time.Hour, func(context.Context) { panic("x") }, reporter)

	p.RunOnce(context.Background())

	if reporter.count() != 1 {
		t.Error("RunOnce should contain the panic")
	}
	if p.Ticks() != 1 {
		t.Errorf("Ticks() = %d, want 1", p.Ticks())
	}
	if p.Running() {
		t.Error("RunOnce must not start the loop")
	}
}
