// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package policy holds the administrator policy of a workstation.
//
// The policy is a JSON document (enforcement mode, session lengths, extension
// rules, the allow-list of launchable programs and the admin secret hash).
// Store loads and saves it; a corrupt document is copied aside to
// "<file>.corrupt.bak" and replaced with defaults, so loading never fails the
// host. Watcher reloads the document when it is edited on disk.
//
// # Modes
//
// The two legacy flags enforcementEnabled and isAdminOnlyPc are mutually
// exclusive. Policy.Mode folds them into one of Enforced, AdminOnly or
// Unrestricted; SetMode writes them back.
//
// # Usage
//
//	store := policy.NewStore(cfg.PolicyPath())
//	p, err := store.Load() // p is never nil
//	if p.IsAllowed(exePath) { ... }
package policy
