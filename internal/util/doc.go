// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small file and string helpers shared by publicpc.
//
// # Key Functions
//
// File Operations:
//   - AtomicWriteFile: Crash-safe file writing with fsync
//   - BackupFile: Copy a damaged file aside before it is replaced
//
// String Utilities:
//   - TruncateWidth: Display-width truncation for terminal columns
//   - PadWidth, SingleLine: Table cell helpers
//
// # Usage
//
//	// Replace the policy document without ever leaving a partial file
//	err := util.AtomicWriteFile(path, data, 0600)
//
//	// Keep a corrupt database for the administrator before recreating it
//	backup, err := util.BackupFile(dbPath, ".corrupt.bak")
package util
