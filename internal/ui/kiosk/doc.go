// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package kiosk is the full-screen Bubble Tea front-end of the workstation.
//
// The model holds no workstation state of its own. Every key press is turned
// into a Controller call and the screen is redrawn from the controller's
// mode, session and countdown once per second.
//
// # Keys
//
//	enter    start / submit / launch
//	ctrl+a   administrator prompt
//	ctrl+e   extend the session
//	ctrl+l   end the session
//	esc      back
package kiosk
