// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package platform

import (
	"errors"
	"path/filepath"
	"strings"
)

// ErrUnsupported is returned where the operating system offers no way to do
// the requested thing.
var ErrUnsupported = errors.New("not supported on this platform")

// Process is one entry of a process listing.
type Process struct {
	PID  int
	Name string
}

// ProcessSource lists and terminates processes.
type ProcessSource interface {
	// Processes returns a snapshot of running processes.
	Processes() ([]Process, error)
	// ExecutablePath resolves the image path of pid. An error means the
	// path cannot be read (access denied, process gone).
	ExecutablePath(pid int) (string, error)
	// Terminate kills pid.
	Terminate(pid int) error
}

// Window is the foreground window.
type Window struct {
	PID   int
	Title string
}

// WindowSource reads the foreground window.
type WindowSource interface {
	// Foreground returns the foreground window. ok is false when there is
	// none, for example while the desktop is switching.
	Foreground() (w Window, ok bool, err error)
	// ProcessName returns the short name of pid, without extension.
	ProcessName(pid int) (string, error)
}

// =============================================================================
// PATH GUARD
// =============================================================================

// PathGuard tells whether an executable lives under a protected directory.
type PathGuard struct {
	roots []string
	fold  bool
}

// NewPathGuard creates a guard for roots. Matching ignores case where the
// file system does.
func NewPathGuard(roots ...string) *PathGuard {
	g := &PathGuard{fold: caseInsensitivePaths}
	for _, r := range roots {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		r = filepath.Clean(r)
		if !strings.HasSuffix(r, string(filepath.Separator)) {
			r += string(filepath.Separator)
		}
		g.roots = append(g.roots, r)
	}
	return g
}

// DefaultPathGuard protects the operating system tree plus extra roots.
func DefaultPathGuard(extra ...string) *PathGuard {
	return NewPathGuard(append(SystemRoots(), extra...)...)
}

// Roots returns the protected directories, each ending in a separator.
func (g *PathGuard) Roots() []string {
	return append([]string(nil), g.roots...)
}

// Protected reports whether path is inside one of the roots.
func (g *PathGuard) Protected(path string) bool {
	for _, root := range g.roots {
		if len(path) < len(root) {
			continue
		}
		prefix := path[:len(root)]
		if prefix == root || (g.fold && strings.EqualFold(prefix, root)) {
			return true
		}
	}
	return false
}

// ShortName returns the file name of an executable path without extension.
func ShortName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
