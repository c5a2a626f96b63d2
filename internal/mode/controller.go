// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package mode

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jeranaias/publicpc/internal/admin"
	"github.com/jeranaias/publicpc/internal/audit"
	"github.com/jeranaias/publicpc/internal/model"
	"github.com/jeranaias/publicpc/internal/monitor"
	"github.com/jeranaias/publicpc/internal/platform"
	"github.com/jeranaias/publicpc/internal/policy"
	"github.com/jeranaias/publicpc/internal/session"
	"github.com/jeranaias/publicpc/internal/tasks"
)

// EndReasonError ends a session when a transition fails unexpectedly.
const EndReasonError = "error"

// ErrRecovered is returned when a transition panicked and the controller
// fell back to Locked.
var ErrRecovered = errors.New("transition failed, workstation locked")

// =============================================================================
// COLLABORATORS
// =============================================================================

// PolicyStore loads and saves the policy document. policy.Store implements it.
type PolicyStore interface {
	Load() (*policy.Policy, error)
	Save(p *policy.Policy) error
}

// SessionStore persists sessions. storage.DB implements it.
type SessionStore interface {
	session.Store
	OpenSessions(ctx context.Context) ([]*model.Session, error)
}

// Options wires a Controller. Zero intervals use the defaults.
type Options struct {
	StationName string

	Policies  PolicyStore
	Sessions  SessionStore
	Trail     *audit.Trail
	Errors    *audit.ErrorLog
	Processes platform.ProcessSource
	Windows   platform.WindowSource
	Guard     *platform.PathGuard

	ProcessInterval   time.Duration
	WindowInterval    time.Duration
	CountdownInterval time.Duration
	WarningThreshold  time.Duration
	Throttle          admin.Throttle
	// Failures, when set, shares the attempt throttle with other processes.
	Failures admin.FailureLog
}

// Default task periods.
const (
	DefaultProcessInterval   = 5 * time.Second
	DefaultWindowInterval    = 3 * time.Second
	DefaultCountdownInterval = time.Second
)

// =============================================================================
// CONTROLLER
// =============================================================================

// Controller owns the session manager, the monitors and the admin gate, and
// moves the workstation between modes.
type Controller struct {
	station  string
	policies PolicyStore
	store    SessionStore
	trail    *audit.Trail
	errlog   *audit.ErrorLog
	failures admin.FailureLog

	sessions  *session.Manager
	countdown *session.Countdown
	gate      *admin.Gate
	enforcer  *monitor.Enforcer
	tracker   *monitor.Tracker
	launcher  *monitor.Launcher

	procTask  *tasks.Periodic
	winTask   *tasks.Periodic
	clockTask *tasks.Periodic

	// mu serializes transitions.
	mu    sync.Mutex
	state State

	// clockSession is the session the countdown was last reset for.
	clockSession int64

	// policyMu serializes policy saves. Lock order is mu, then policyMu.
	policyMu sync.Mutex
	policy   atomic.Pointer[policy.Policy]

	subMu       sync.Mutex
	subscribers []func(*policy.Policy)
}

// New creates a controller in Locked mode. Call Start before use.
func New(opts Options) *Controller {
	c := &Controller{
		station:  opts.StationName,
		policies: opts.Policies,
		store:    opts.Sessions,
		trail:    opts.Trail,
		errlog:   opts.Errors,
		failures: opts.Failures,
	}
	c.policy.Store(policy.Default())

	warnAt := opts.WarningThreshold
	if warnAt == 0 {
		warnAt = session.DefaultWarningThreshold
	}
	clockEvery := orDefault(opts.CountdownInterval, DefaultCountdownInterval)

	c.sessions = session.NewManager(opts.Sessions)
	c.countdown = session.NewCountdown(warnAt)
	c.countdown.SetExpireCallback(c.onExpired)
	c.countdown.SetWarningCallback(func(remaining time.Duration) {
		log.Printf("SESSION_WARNING: id=%d remaining=%s", c.sessions.CurrentID(), session.FormatDuration(remaining))
	})

	c.gate = admin.NewGate(c, opts.Throttle)
	c.gate.SetHooks(admin.Hooks{
		OnEnter:  c.suspendMonitoring,
		OnResume: c.resumeMonitoring,
	})

	c.enforcer = monitor.NewEnforcer(monitor.EnforcerConfig{
		Processes: opts.Processes,
		Guard:     opts.Guard,
		Audit:     opts.Trail,
		Errors:    opts.Errors,
		Policy:    c.policy.Load,
		Session:   c.sessions.Current,
	})
	c.tracker = monitor.NewTracker(opts.Windows, c.onWindowChange)
	c.launcher = monitor.NewLauncher(opts.Trail, c.policy.Load)

	c.procTask = tasks.NewPeriodic("monitor.process", orDefault(opts.ProcessInterval, DefaultProcessInterval), c.enforcer.Tick, opts.Errors)
	c.winTask = tasks.NewPeriodic("monitor.window", orDefault(opts.WindowInterval, DefaultWindowInterval), c.tracker.Tick, opts.Errors)
	c.clockTask = tasks.NewPeriodic("session.countdown", clockEvery, func(context.Context) {
		c.countdown.Tick(clockEvery)
	}, opts.Errors)
	return c
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

// Start loads the policy and closes sessions left open by an earlier run.
func (c *Controller) Start(ctx context.Context) error {
	p, err := c.policies.Load()
	if err != nil {
		// Load only fails when the default cannot be written; run on it anyway.
		c.errlog.Report("mode.start", err)
	}
	if p != nil {
		c.policy.Store(p)
	}
	if c.failures != nil {
		if err := c.gate.UseFailureLog(ctx, c.failures); err != nil {
			c.errlog.Report("mode.start", err)
		}
	}

	open, err := c.store.OpenSessions(ctx)
	if err != nil {
		c.errlog.Report("mode.start", fmt.Errorf("list open sessions: %w", err))
	} else if n := c.sessions.CloseStale(ctx, open); n > 0 {
		c.event(0, audit.CategorySessionEnd, fmt.Sprintf("closed %d interrupted session(s)", n))
	}

	log.Printf("CONTROLLER_START: station=%q mode=%s", c.station, c.Policy().Mode())
	return nil
}

// Close ends any open session and stops every task.
func (c *Controller) Close() {
	_ = c.EndSession(context.Background(), model.EndReasonForced)

	c.procTask.StopAndWait()
	c.winTask.StopAndWait()
	c.clockTask.StopAndWait()
}

// =============================================================================
// QUERIES
// =============================================================================

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Mode returns the current mode.
func (c *Controller) Mode() Mode {
	return c.State().Mode
}

// Policy returns a copy of the policy snapshot.
func (c *Controller) Policy() *policy.Policy {
	return c.policy.Load().Clone()
}

// Session returns a copy of the open session, or nil.
func (c *Controller) Session() *model.Session {
	return c.sessions.Current()
}

// Countdown returns the session clock.
func (c *Controller) Countdown() session.CountdownStatus {
	return c.countdown.Status()
}

// AdminConfigured reports whether an administrator password exists.
func (c *Controller) AdminConfigured() bool {
	return c.gate.Configured()
}

// MaintenanceActive reports whether maintenance mode is on.
func (c *Controller) MaintenanceActive() bool {
	return c.gate.MaintenanceActive()
}

// MonitorsRunning reports whether the process and window monitors run.
func (c *Controller) MonitorsRunning() (process, window bool) {
	return c.procTask.Running(), c.winTask.Running()
}

// Subscribe registers fn for "policy updated" events. fn is called after
// every applied policy, outside the controller lock.
func (c *Controller) Subscribe(fn func(*policy.Policy)) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	c.subscribers = append(c.subscribers, fn)
}

// =============================================================================
// TRANSITIONS
// =============================================================================

// do runs fn under the transition lock. A panic is recorded, the open
// session is ended and the workstation locks.
func (c *Controller) do(op string, fn func() error) (err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			c.errlog.Recovered("mode."+op, r)
			c.fallbackLocked()
			err = fmt.Errorf("%s: %w", op, ErrRecovered)
		}
	}()
	return fn()
}

// fallbackLocked forces Locked. Caller holds mu.
func (c *Controller) fallbackLocked() {
	defer c.errlog.Recover("mode.fallback")

	c.stopMonitors()
	c.clockTask.Stop()
	c.countdown.Clear()
	c.clockSession = 0
	if c.sessions.Active() {
		id := c.sessions.CurrentID()
		if err := c.sessions.EndSession(context.Background(), EndReasonError); err != nil {
			c.errlog.Report("mode.fallback", err)
		}
		c.event(id, audit.CategorySessionEnd, EndReasonError)
	}
	c.state, _ = Next(c.state, EventFailure, Guards{})
	log.Printf("MODE: fallback to %s", c.state.Mode)
}

// fire applies ev. Caller holds mu.
func (c *Controller) fire(ev Event) error {
	next, err := Next(c.state, ev, c.guards())
	if err != nil {
		return err
	}
	if next != c.state {
		log.Printf("MODE: %s -> %s (%s)", c.state.Mode, next.Mode, ev)
	}
	c.state = next
	return nil
}

func (c *Controller) guards() Guards {
	return Guards{
		AdminOnly:   c.policy.Load().AdminOnly(),
		Maintenance: c.gate.MaintenanceActive(),
		SessionOpen: c.sessions.Active(),
	}
}

// fail logs an unexpected error and falls back. Caller holds mu.
func (c *Controller) fail(op string, err error) error {
	c.errlog.Report("mode."+op, err)
	c.fallbackLocked()
	return err
}

// RequestLogin shows the login form.
func (c *Controller) RequestLogin() error {
	return c.do("request-login", func() error {
		return c.fire(EventRequestLogin)
	})
}

// CancelLogin returns to the lock screen.
func (c *Controller) CancelLogin() error {
	return c.do("cancel-login", func() error {
		return c.fire(EventCancelLogin)
	})
}

// StartSession validates form and opens a session. Invalid input leaves
// the login form up; a storage failure locks the workstation.
func (c *Controller) StartSession(ctx context.Context, form session.LoginForm) (*model.Session, error) {
	var started *model.Session
	err := c.do("start-session", func() error {
		if _, err := Next(c.state, EventSessionStarted, c.guards()); err != nil {
			return err
		}
		pol := c.policy.Load()
		req, err := form.Request(pol, c.station)
		if err != nil {
			return err
		}
		s, err := c.sessions.StartSession(ctx, req)
		if errors.Is(err, session.ErrConflict) {
			return err
		}
		if err != nil {
			return c.fail("start-session", err)
		}

		c.event(s.ID, audit.CategorySessionStart,
			fmt.Sprintf("%s|%s|%s|%d", s.UserName, s.UserID, s.Purpose, s.RequestedMinutes))
		c.countdown.Reset(s.Allotted())
		c.clockSession = s.ID
		c.clockTask.Start()
		if pol.Enforcing() {
			c.startMonitors()
		}
		started = s
		return c.fire(EventSessionStarted)
	})
	return started, err
}

// Extend grants one session extension and adds it to the clock.
func (c *Controller) Extend(ctx context.Context) bool {
	ok := false
	_ = c.do("extend", func() error {
		if c.countdown.Status().Expired {
			return nil
		}
		if !c.sessions.TryExtend(ctx) {
			return nil
		}
		s := c.sessions.Current()
		c.countdown.Extend(time.Duration(s.ExtensionMinutes) * time.Minute)
		c.event(s.ID, audit.CategorySessionExt,
			fmt.Sprintf("%d/%d|%d", s.ExtensionsUsed, s.MaxExtensions, s.RequestedMinutes))
		ok = true
		return nil
	})
	return ok
}

// EndSession ends the open session with reason and stops the monitors.
// Without a session it only makes sure everything is stopped.
func (c *Controller) EndSession(ctx context.Context, reason string) error {
	return c.do("end-session", func() error {
		return c.endSessionLocked(ctx, reason)
	})
}

func (c *Controller) endSessionLocked(ctx context.Context, reason string) error {
	c.stopMonitors()
	c.clockTask.Stop()
	c.countdown.Clear()
	c.clockSession = 0

	id := c.sessions.CurrentID()
	if id == 0 {
		return nil
	}
	err := c.sessions.EndSession(ctx, reason)
	if err != nil {
		c.errlog.Report("mode.end-session", err)
	}
	c.event(id, audit.CategorySessionEnd, reason)
	if ferr := c.fire(EventSessionEnded); ferr != nil {
		return ferr
	}
	return err
}

// onExpired runs on the countdown task when time is up. It does nothing
// unless gen is still the current, expired countdown of the open session.
func (c *Controller) onExpired(gen uint64) {
	err := c.do("timeout", func() error {
		st := c.countdown.Status()
		id := c.sessions.CurrentID()
		if !st.Expired || st.Generation != gen || id == 0 || id != c.clockSession {
			log.Printf("SESSION_TIMEOUT: stale expiry ignored (gen=%d current=%d)", gen, id)
			return nil
		}
		return c.endSessionLocked(context.Background(), model.EndReasonTimeout)
	})
	if err != nil {
		log.Printf("SESSION_TIMEOUT: %v", err)
	}
}

// Launch starts an allow-listed program for the session user.
func (c *Controller) Launch(ctx context.Context, prog policy.AllowedProgram) error {
	id := c.sessions.CurrentID()
	if id == 0 {
		return session.ErrNoSession
	}
	return c.launcher.Launch(ctx, id, prog)
}

// =============================================================================
// ADMINISTRATION
// =============================================================================

// RequestAdmin authenticates through p and opens the admin panel. The
// prompt runs outside the transition lock.
func (c *Controller) RequestAdmin(ctx context.Context, p admin.Prompter) error {
	if c.Mode() == AdminPanel {
		return &TransitionError{From: AdminPanel, Event: EventAdminOpened}
	}
	setup := !c.gate.Configured()
	ok, err := c.gate.EnsureAuthenticated(ctx, p)
	sid := c.sessions.CurrentID()
	if !ok {
		if errors.Is(err, admin.ErrIncorrectSecret) || errors.Is(err, admin.ErrThrottled) {
			c.event(sid, audit.CategoryAdmin, "authentication failed")
		}
		return err
	}
	if setup {
		c.event(sid, audit.CategoryAdmin, "password created")
	}
	c.event(sid, audit.CategoryAdmin, "authenticated")

	return c.do("request-admin", func() error {
		return c.fire(EventAdminOpened)
	})
}

// CloseAdmin leaves the admin panel.
func (c *Controller) CloseAdmin() error {
	return c.do("close-admin", func() error {
		if err := c.fire(EventAdminClosed); err != nil {
			return err
		}
		c.event(c.sessions.CurrentID(), audit.CategoryAdmin, "closed")
		return nil
	})
}

func (c *Controller) requireAdmin(op string, fn func() error) error {
	return c.do(op, func() error {
		if c.state.Mode != AdminPanel && c.state.Mode != Maintenance {
			return &TransitionError{From: c.state.Mode, Event: EventAdminOpened}
		}
		return fn()
	})
}

// EnterMaintenance suspends monitoring and the session clock. Only an
// authenticated administrator can do this.
func (c *Controller) EnterMaintenance() error {
	return c.requireAdmin("enter-maintenance", func() error {
		if !c.gate.EnterMaintenance() {
			return nil
		}
		c.event(c.sessions.CurrentID(), audit.CategoryMaintenance, "entered")
		return c.fire(EventMaintenanceEntered)
	})
}

// ResumeFromMaintenance restarts monitoring if a session is still open. It
// is a no-op outside maintenance.
func (c *Controller) ResumeFromMaintenance() error {
	return c.requireAdmin("resume-maintenance", func() error {
		if !c.gate.ResumeFromMaintenance() {
			return nil
		}
		c.event(c.sessions.CurrentID(), audit.CategoryMaintenance, "resumed")
		return c.fire(EventMaintenanceResumed)
	})
}

// ChangeSecret replaces the administrator password.
func (c *Controller) ChangeSecret(secret string) error {
	return c.requireAdmin("change-secret", func() error {
		if err := c.gate.ChangeSecret(secret); err != nil {
			return err
		}
		c.event(c.sessions.CurrentID(), audit.CategoryAdmin, "password changed")
		return nil
	})
}

// suspendMonitoring is the maintenance OnEnter hook.
func (c *Controller) suspendMonitoring() {
	c.stopMonitors()
	c.countdown.Pause()
}

// resumeMonitoring is the maintenance OnResume hook.
func (c *Controller) resumeMonitoring() {
	c.countdown.Resume()
	if c.sessions.Active() && c.policy.Load().Enforcing() {
		c.startMonitors()
	}
}

// =============================================================================
// POLICY
// =============================================================================

// ApplyPolicy saves p, makes it current and publishes it. Only the admin
// panel and maintenance mode may change policy.
func (c *Controller) ApplyPolicy(p *policy.Policy) error {
	var applied *policy.Policy
	err := c.requireAdmin("apply-policy", func() error {
		next := p.Clone()
		// The password is only changed through ChangeSecret.
		next.AdminPasswordHash = c.policy.Load().AdminPasswordHash
		next.Normalize()
		if err := c.savePolicy(next); err != nil {
			return err
		}
		c.reconcileMonitors()
		c.event(c.sessions.CurrentID(), audit.CategoryPolicy, describePolicy(next))
		applied = next
		return nil
	})
	if applied != nil {
		c.publish(applied)
	}
	return err
}

// PolicyReloaded installs a policy read back from disk after an external
// edit. It is not saved again.
func (c *Controller) PolicyReloaded(p *policy.Policy) {
	var applied *policy.Policy
	_ = c.do("policy-reload", func() error {
		if p.Equal(c.policy.Load()) {
			return nil
		}
		applied = p.Clone()
		c.policy.Store(applied)
		c.reconcileMonitors()
		c.event(c.sessions.CurrentID(), audit.CategoryPolicy, "reloaded|"+describePolicy(applied))
		return nil
	})
	if applied != nil {
		c.publish(applied)
	}
}

func (c *Controller) savePolicy(p *policy.Policy) error {
	c.policyMu.Lock()
	defer c.policyMu.Unlock()
	if err := c.policies.Save(p); err != nil {
		return fmt.Errorf("save policy: %w", err)
	}
	c.policy.Store(p)
	return nil
}

func (c *Controller) publish(p *policy.Policy) {
	c.subMu.Lock()
	subs := append([]func(*policy.Policy){}, c.subscribers...)
	c.subMu.Unlock()
	for _, fn := range subs {
		fn(p.Clone())
	}
}

// reconcileMonitors matches the monitors to the enforcement mode while a
// session runs outside maintenance.
func (c *Controller) reconcileMonitors() {
	if !c.sessions.Active() || c.gate.MaintenanceActive() {
		return
	}
	if c.policy.Load().Enforcing() {
		c.startMonitors()
	} else {
		c.stopMonitors()
	}
}

// AdminHash implements admin.CredentialStore.
func (c *Controller) AdminHash() string {
	return c.policy.Load().AdminPasswordHash
}

// SetAdminHash implements admin.CredentialStore.
func (c *Controller) SetAdminHash(hash string) error {
	next := c.policy.Load().Clone()
	next.AdminPasswordHash = hash
	return c.savePolicy(next)
}

func describePolicy(p *policy.Policy) string {
	return fmt.Sprintf("mode=%s|default=%d|max=%d|ext=%dx%d|kill=%t|programs=%d",
		p.Mode(), p.DefaultSessionMinutes, p.MaxSessionMinutes,
		p.MaxExtensionCount, p.SessionExtensionMinutes, p.KillDisallowedProcess, len(p.AllowedPrograms))
}

// =============================================================================
// MONITORS
// =============================================================================

func (c *Controller) startMonitors() {
	if c.procTask.Start() {
		log.Printf("MONITOR: process scan every %s", c.procTask.Interval())
	}
	c.winTask.Start()
}

// stopMonitors never waits, so it is safe from inside a tick.
func (c *Controller) stopMonitors() {
	c.procTask.Stop()
	c.winTask.Stop()
}

// onWindowChange attaches the session to a tracker event and records it.
func (c *Controller) onWindowChange(ctx context.Context, ch monitor.Change) {
	id := c.sessions.CurrentID()
	if id == 0 || !c.policy.Load().Enforcing() {
		return
	}
	if err := c.trail.WindowChange(ctx, id, ch.ProcessName, ch.Title); err != nil {
		log.Printf("WINDOW_AUDIT_FAILED: %v", err)
	}
}

// ScanNow runs one enforcement pass immediately.
func (c *Controller) ScanNow(ctx context.Context) {
	c.procTask.RunOnce(ctx)
}

func (c *Controller) event(sessionID int64, category, message string) {
	if c.trail == nil {
		return
	}
	if err := c.trail.Event(sessionID, category, message); err != nil {
		log.Printf("AUDIT_FAILED: %s: %v", category, err)
	}
}
