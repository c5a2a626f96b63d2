// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package platform reads and controls the operating system on behalf of the
// monitors: it lists processes, resolves their executable paths, terminates
// them and reads the foreground window.
//
// Implementations:
//   - windows: Toolhelp snapshots, QueryFullProcessImageName, TerminateProcess
//     and user32 for the foreground window
//   - linux: /proc and SIGKILL; there is no foreground window
//   - elsewhere: unsupported stubs
//
// The monitors depend only on ProcessSource and WindowSource so they can be
// tested with fakes.
package platform
