// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package tasks runs the periodic background work of a workstation: the
// session countdown, the foreground window tracker and the process enforcer.
//
// Each Periodic owns one goroutine driven by a time.Ticker, so its ticks never
// overlap. A panic inside a tick is recovered and reported; the loop keeps
// going. Stop cancels the tick context and returns at once, which lets a tick
// stop its own task (the countdown does this when the session expires).
//
// # Usage
//
//	scan := tasks.NewPeriodic("process-enforcer", 5*time.Second, enforcer.Scan, errlog)
//	scan.Start()
//	defer scan.Stop()
package tasks
