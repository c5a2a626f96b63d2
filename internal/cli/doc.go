// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the publicpc command line.
//
// Parse turns os.Args into a Command and its Args; main dispatches to the
// Handle* functions. The default command, run, starts the kiosk. The other
// commands inspect the usage database and the audit files, or change the
// administrator policy after authenticating with the administrator password.
//
// Every handler returns an error instead of exiting; GetExitCode maps it to
// a process exit status.
package cli
