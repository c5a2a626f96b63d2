// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

//go:build linux
// +build linux

package platform

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

const caseInsensitivePaths = false

// procRoot is a variable so tests can point it at a fake tree.
var procRoot = "/proc"

// SystemRoots returns the directories holding the distribution's own programs.
func SystemRoots() []string {
	return []string{"/usr", "/bin", "/sbin", "/lib", "/lib64"}
}

type procProcesses struct{}

// NewProcessSource returns the process source of this machine.
func NewProcessSource() ProcessSource {
	return procProcesses{}
}

func (procProcesses) Processes() ([]Process, error) {
	entries, err := os.ReadDir(procRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", procRoot, err)
	}

	var procs []Process
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		pid, err := strconv.Atoi(e.Name())
		if err != nil {
			continue
		}
		comm, err := os.ReadFile(filepath.Join(procRoot, e.Name(), "comm"))
		if err != nil {
			// exited between listing and reading
			continue
		}
		procs = append(procs, Process{PID: pid, Name: strings.TrimSpace(string(comm))})
	}
	return procs, nil
}

func (procProcesses) ExecutablePath(pid int) (string, error) {
	path, err := os.Readlink(filepath.Join(procRoot, strconv.Itoa(pid), "exe"))
	if err != nil {
		return "", err
	}
	return strings.TrimSuffix(path, " (deleted)"), nil
}

func (procProcesses) Terminate(pid int) error {
	return unix.Kill(pid, unix.SIGKILL)
}

// noWindows is used where there is no window system to query.
type noWindows struct{}

// NewWindowSource returns a source that never reports a foreground window.
func NewWindowSource() WindowSource {
	return noWindows{}
}

func (noWindows) Foreground() (Window, bool, error) {
	return Window{}, false, nil
}

func (noWindows) ProcessName(pid int) (string, error) {
	comm, err := os.ReadFile(filepath.Join(procRoot, strconv.Itoa(pid), "comm"))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(comm)), nil
}
