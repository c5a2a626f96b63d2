// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the persisted records of workstation usage.
//
// # Key Types
//
//   - Session: One bounded period of use by one walk-up user
//   - ProcessLog: One observed process start or end (append-only)
//   - WindowLog: One foreground window title change (append-only)
//
// Records are plain values. Owners hand out copies so that background
// monitors never observe a record while it is being mutated.
package model
