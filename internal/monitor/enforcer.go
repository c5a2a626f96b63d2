// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package monitor

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/jeranaias/publicpc/internal/model"
	"github.com/jeranaias/publicpc/internal/platform"
	"github.com/jeranaias/publicpc/internal/policy"
)

// EndRecorder writes the audit entry for a terminated process. An error
// means the entry was not written.
type EndRecorder interface {
	ProcessEnd(ctx context.Context, sessionID int64, name, path, reason string) error
}

// ErrorReporter records failures that must not stop the caller.
type ErrorReporter interface {
	Report(source string, err error) string
}

// ScanResult counts what one enforcement pass did.
type ScanResult struct {
	Scanned    int
	Unresolved int
	Allowed    int
	Protected  int
	Blocked    int
	// Unaudited processes were left running because the audit entry failed.
	Unaudited int
	// KillFailed processes were audited but could not be terminated.
	KillFailed int
}

// EnforcerConfig wires an Enforcer.
type EnforcerConfig struct {
	Processes platform.ProcessSource
	Guard     *platform.PathGuard
	Audit     EndRecorder
	Errors    ErrorReporter

	// Policy and Session return the current snapshots. Session returns nil
	// when no session is open.
	Policy  func() *policy.Policy
	Session func() *model.Session
}

// =============================================================================
// ENFORCER
// =============================================================================

// Enforcer terminates processes whose executable is neither allow-listed
// nor part of the protected system tree.
type Enforcer struct {
	procs   platform.ProcessSource
	guard   *platform.PathGuard
	audit   EndRecorder
	errs    ErrorReporter
	policy  func() *policy.Policy
	session func() *model.Session
	selfPID int
}

// NewEnforcer creates an enforcer. A nil Guard protects nothing.
func NewEnforcer(cfg EnforcerConfig) *Enforcer {
	guard := cfg.Guard
	if guard == nil {
		guard = platform.NewPathGuard()
	}
	return &Enforcer{
		procs:   cfg.Processes,
		guard:   guard,
		audit:   cfg.Audit,
		errs:    cfg.Errors,
		policy:  cfg.Policy,
		session: cfg.Session,
		selfPID: os.Getpid(),
	}
}

// Tick runs one scan and reports a scan-level failure. It is the
// tasks.Func for the process monitor.
func (e *Enforcer) Tick(ctx context.Context) {
	res, err := e.Scan(ctx)
	if err != nil {
		e.report(err)
		return
	}
	if res.Blocked > 0 || res.Unaudited > 0 {
		log.Printf("ENFORCE: scanned=%d blocked=%d unaudited=%d kill_failed=%d",
			res.Scanned, res.Blocked, res.Unaudited, res.KillFailed)
	}
}

// Scan performs one enforcement pass. It does nothing when there is no
// session or the policy does not kill disallowed processes. Only a failure
// to list processes is returned; per-process failures are counted.
func (e *Enforcer) Scan(ctx context.Context) (ScanResult, error) {
	var res ScanResult

	pol := e.policy()
	sess := e.session()
	if pol == nil || sess == nil || !pol.Enforcing() || !pol.KillDisallowedProcess {
		return res, nil
	}

	procs, err := e.procs.Processes()
	if err != nil {
		return res, fmt.Errorf("list processes: %w", err)
	}
	allowed := pol.AllowedSet()

	for _, p := range procs {
		if ctx.Err() != nil {
			break
		}
		if p.PID == e.selfPID || p.PID <= 0 {
			continue
		}
		res.Scanned++

		path, err := e.procs.ExecutablePath(p.PID)
		if err != nil || path == "" {
			res.Unresolved++
			continue
		}
		if _, ok := allowed[policy.PathKey(path)]; ok {
			res.Allowed++
			continue
		}
		if e.guard.Protected(path) {
			res.Protected++
			continue
		}

		name := platform.ShortName(path)
		if err := e.audit.ProcessEnd(ctx, sess.ID, name, path, model.ProcessBlocked); err != nil {
			res.Unaudited++
			continue
		}
		res.Blocked++
		if err := e.procs.Terminate(p.PID); err != nil {
			res.KillFailed++
		}
	}
	return res, nil
}

func (e *Enforcer) report(err error) {
	if e.errs != nil {
		e.errs.Report("monitor.enforcer", err)
		return
	}
	log.Printf("ENFORCE_FAILED: %v", err)
}
