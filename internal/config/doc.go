// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads the host configuration of a publicpc workstation.
//
// The host configuration says where things live and how often the monitors
// run. It is distinct from the administrator policy (allow-list, session
// length, enforcement mode), which is a JSON document managed by package
// policy and edited from the admin panel.
//
// # Configuration Precedence
//
//   - Environment variables (PUBLICPC_*)
//   - $PUBLICPC_CONFIG or <data dir>/config.toml
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	db, err := storage.Open(cfg.DatabasePath())
package config
