// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package admin gates administrator access and maintenance mode.
//
// There is one shared administrator secret and no user name. The first
// authentication sets the secret up; after that every attempt is hashed and
// compared against the stored hash. Attempts are throttled with a token
// bucket so the secret cannot be guessed at keyboard speed.
//
// # Usage
//
//	gate := admin.NewGate(creds, admin.Throttle{Burst: 5, Refill: 30 * time.Second})
//	ok, err := gate.EnsureAuthenticated(ctx, prompter)
//	if errors.Is(err, admin.ErrThrottled) {
//	    // tell the user to wait
//	}
package admin
