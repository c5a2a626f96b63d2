// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package monitor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os/exec"
	"path/filepath"

	"github.com/kballard/go-shellquote"

	"github.com/jeranaias/publicpc/internal/policy"
)

var (
	// ErrNotAllowed is returned when the program is not on the allow-list.
	ErrNotAllowed = errors.New("program is not on the allow-list")

	// ErrBadArguments is returned when program arguments cannot be split.
	ErrBadArguments = errors.New("cannot parse program arguments")
)

// StartRecorder writes the audit entry for a launched program.
type StartRecorder interface {
	ProcessStart(ctx context.Context, sessionID int64, name, path string) error
}

// Launcher starts allow-listed programs for the session user.
type Launcher struct {
	audit  StartRecorder
	policy func() *policy.Policy

	// start runs the command without waiting for it.
	start func(cmd *exec.Cmd) error
}

// NewLauncher creates a launcher that checks programs against policy.
func NewLauncher(audit StartRecorder, pol func() *policy.Policy) *Launcher {
	return &Launcher{audit: audit, policy: pol, start: startDetached}
}

// Command builds the command for prog. The working directory is the
// program's own directory.
func Command(prog policy.AllowedProgram) (*exec.Cmd, error) {
	args, err := shellquote.Split(prog.Arguments)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadArguments, err)
	}
	cmd := exec.Command(prog.ExecutablePath, args...)
	cmd.Dir = filepath.Dir(prog.ExecutablePath)
	return cmd, nil
}

// Launch starts prog for sessionID and records a running PROCESS_START
// entry. A failed audit write does not stop the program.
func (l *Launcher) Launch(ctx context.Context, sessionID int64, prog policy.AllowedProgram) error {
	pol := l.policy()
	if pol == nil || !pol.IsAllowed(prog.ExecutablePath) {
		return ErrNotAllowed
	}
	// Launch what the policy says, not what the caller passed.
	prog, _ = pol.Program(prog.ExecutablePath)

	cmd, err := Command(prog)
	if err != nil {
		return err
	}
	if err := l.start(cmd); err != nil {
		return fmt.Errorf("start %s: %w", prog.DisplayName, err)
	}

	if err := l.audit.ProcessStart(ctx, sessionID, prog.DisplayName, prog.ExecutablePath); err != nil {
		log.Printf("LAUNCH_AUDIT_FAILED: %s: %v", prog.DisplayName, err)
	}
	log.Printf("LAUNCH: session=%d program=%q", sessionID, prog.DisplayName)
	return nil
}

func startDetached(cmd *exec.Cmd) error {
	if err := cmd.Start(); err != nil {
		return err
	}
	// Reap the child so it does not linger as a zombie.
	go func() { _ = cmd.Wait() }()
	return nil
}
