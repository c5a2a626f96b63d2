// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/publicpc/internal/mode"
	"github.com/jeranaias/publicpc/internal/platform"
	"github.com/jeranaias/publicpc/internal/policy"
	"github.com/jeranaias/publicpc/internal/ui/kiosk"
)

// LogFileName is the diagnostic log written while the kiosk owns the screen.
const LogFileName = "publicpc.log"

// HandleRun starts the workstation controller and the kiosk front-end. It
// returns when an administrator quits or the process is signalled.
func HandleRun(args Args) error {
	w, err := openWorkstation(args)
	if err != nil {
		return err
	}
	defer w.Close()

	logFile, err := redirectLog(filepath.Join(w.cfg.Paths.DataDir, LogFileName))
	if err != nil {
		return err
	}
	defer logFile.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctrl := newController(w)
	if err := ctrl.Start(ctx); err != nil {
		return NewCommandError("run", "start", "controller failed to start", err)
	}
	defer ctrl.Close()

	if w.cfg.Monitor.WatchPolicy {
		if watcher := watchPolicy(w, ctrl); watcher != nil {
			defer watcher.Close()
		}
	}

	program := tea.NewProgram(
		kiosk.New(ctx, ctrl, w.cfg.StationName()),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)
	ctrl.Subscribe(func(p *policy.Policy) {
		program.Send(kiosk.PolicyUpdatedMsg{Policy: p})
	})

	log.Printf("KIOSK_START: station=%s version=%s", w.cfg.StationName(), Version)
	if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("kiosk: %w", err)
	}
	log.Printf("KIOSK_STOP: station=%s", w.cfg.StationName())
	return nil
}

// newController wires the mode controller to the workstation stores and the
// operating system.
func newController(w *workstation) *mode.Controller {
	cfg := w.cfg
	return mode.New(mode.Options{
		StationName:       cfg.StationName(),
		Policies:          w.policies,
		Sessions:          w.db,
		Trail:             w.trail,
		Errors:            w.errlog,
		Processes:         platform.NewProcessSource(),
		Windows:           platform.NewWindowSource(),
		Guard:             platform.DefaultPathGuard(cfg.Monitor.ProtectedRoots...),
		ProcessInterval:   cfg.ProcessInterval(),
		WindowInterval:    cfg.WindowInterval(),
		CountdownInterval: cfg.CountdownInterval(),
		WarningThreshold:  cfg.WarningThreshold(),
		Throttle:          w.throttle(),
		Failures:          w.db,
	})
}

// watchPolicy reloads the policy document into ctrl when it is edited on
// disk. A watcher that cannot start is logged and skipped.
func watchPolicy(w *workstation, ctrl *mode.Controller) *policy.Watcher {
	watcher, err := policy.NewWatcher(w.policies, w.cfg.WatchDebounce(), ctrl.PolicyReloaded)
	if err != nil {
		log.Printf("POLICY_WATCH_FAILED: %v", err)
		return nil
	}
	if err := watcher.Start(); err != nil {
		log.Printf("POLICY_WATCH_FAILED: %v", err)
		_ = watcher.Close()
		return nil
	}
	return watcher
}

// redirectLog sends the standard logger to path.
func redirectLog(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	log.SetOutput(f)
	return f, nil
}
