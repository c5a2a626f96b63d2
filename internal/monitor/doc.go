// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package monitor watches the workstation while a session is running.
//
// # Key Types
//
//   - Enforcer: terminates processes that are not on the allow-list
//   - Tracker: reports foreground window title changes
//   - Launcher: starts allow-listed programs and records them
//
// Enforcer and Tracker do one unit of work per call and are driven by
// tasks.Periodic. Each call reads the policy and session through snapshot
// functions, so the caller can swap either at any time.
package monitor
