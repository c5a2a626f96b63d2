// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package mode coordinates the workstation: which screen is up, when the
// monitors run, and how policy changes reach the running components.
//
// # Modes
//
//	Locked ──RequestLogin──▶ LoggingIn ──StartSession──▶ ActiveSession
//	   ▲                         │                            │
//	   └────────CancelLogin──────┘◀────────EndSession─────────┘
//
//	any ──RequestAdmin──▶ AdminPanel ──CloseAdmin──▶ previous mode
//	AdminPanel ──EnterMaintenance──▶ Maintenance ──Resume──▶ ActiveSession or Locked
//
// Transitions are computed by Next, a pure function of the current State,
// the Event and the Guards. Controller applies them, starts and stops the
// monitors, and falls back to Locked if anything panics mid-transition.
package mode
