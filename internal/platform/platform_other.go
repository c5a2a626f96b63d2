// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

//go:build !windows && !linux
// +build !windows,!linux

package platform

const caseInsensitivePaths = false

// SystemRoots returns the usual system program directories.
func SystemRoots() []string {
	return []string{"/usr", "/bin", "/sbin", "/System"}
}

type unsupported struct{}

// NewProcessSource returns a source that reports ErrUnsupported.
func NewProcessSource() ProcessSource {
	return unsupported{}
}

// NewWindowSource returns a source that never reports a foreground window.
func NewWindowSource() WindowSource {
	return unsupported{}
}

func (unsupported) Processes() ([]Process, error)          { return nil, ErrUnsupported }
func (unsupported) ExecutablePath(pid int) (string, error) { return "", ErrUnsupported }
func (unsupported) Terminate(pid int) error                { return ErrUnsupported }
func (unsupported) Foreground() (Window, bool, error)      { return Window{}, false, nil }
func (unsupported) ProcessName(pid int) (string, error)    { return "", ErrUnsupported }
