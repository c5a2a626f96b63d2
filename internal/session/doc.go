// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session owns the single active workstation session.
//
// # Key Types
//
//   - Manager: start, extend and end the active session
//   - Countdown: remaining-time tracker with a warning threshold
//   - LoginForm: walk-up login fields validated against the policy
//
// # Usage
//
//	mgr := session.NewManager(db)
//	req, err := form.Request(pol, cfg.StationName())
//	if err != nil {
//	    return err
//	}
//	s, err := mgr.StartSession(ctx, req)
//
// At most one session is open at a time. Readers get copies from Current;
// the held session is only replaced, never mutated in place.
package session
