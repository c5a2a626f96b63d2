// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package admin

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/jeranaias/publicpc/internal/policy"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrIncorrectSecret is the only failure reported for a wrong secret.
	ErrIncorrectSecret = errors.New("incorrect administrator password")

	// ErrThrottled is returned when too many attempts were made recently.
	ErrThrottled = errors.New("too many attempts, try again later")

	// ErrCancelled is returned when the prompt was dismissed or left empty.
	ErrCancelled = errors.New("authentication cancelled")

	// ErrPromptOpen is returned while another prompt is being shown.
	ErrPromptOpen = errors.New("an administrator prompt is already open")

	// ErrEmptySecret is returned when setting a blank secret.
	ErrEmptySecret = errors.New("administrator password must not be empty")
)

// =============================================================================
// COLLABORATORS
// =============================================================================

// Prompter asks the person at the keyboard for the secret. Returning an
// empty string or ErrCancelled means the prompt was dismissed.
type Prompter interface {
	// CaptureNewSecret is used once, when no secret exists yet.
	CaptureNewSecret(ctx context.Context) (string, error)
	// PromptSecret asks for the existing secret.
	PromptSecret(ctx context.Context) (string, error)
}

// CredentialStore holds the secret hash.
type CredentialStore interface {
	AdminHash() string
	SetAdminHash(hash string) error
}

// Throttle configures the attempt limiter: Burst attempts at once, then one
// more every Refill.
type Throttle struct {
	Burst  int
	Refill time.Duration
}

// DefaultThrottle allows five quick attempts, then one every 30 seconds.
var DefaultThrottle = Throttle{Burst: 5, Refill: 30 * time.Second}

// FailureLog keeps failed attempts across processes, so that separate
// command runs share one throttle.
type FailureLog interface {
	RecordAdminFailure(ctx context.Context, at time.Time) error
	AdminFailuresSince(ctx context.Context, since time.Time) (int, error)
}

// Hooks run when maintenance mode is entered or left.
type Hooks struct {
	OnEnter  func()
	OnResume func()
}

// =============================================================================
// GATE
// =============================================================================

// Gate authenticates the administrator and owns the maintenance flag.
type Gate struct {
	creds    CredentialStore
	throttle Throttle
	limiter  *rate.Limiter
	failures FailureLog

	prompting   atomic.Bool
	maintenance atomic.Bool

	// hookMu serializes maintenance toggles so hooks never interleave.
	hookMu sync.Mutex
	hooks  Hooks
}

// NewGate creates a gate over creds.
func NewGate(creds CredentialStore, t Throttle) *Gate {
	if t.Burst <= 0 {
		t.Burst = DefaultThrottle.Burst
	}
	if t.Refill <= 0 {
		t.Refill = DefaultThrottle.Refill
	}
	return &Gate{
		creds:    creds,
		throttle: t,
		limiter:  rate.NewLimiter(rate.Every(t.Refill), t.Burst),
	}
}

// UseFailureLog charges the limiter with the failures l recorded within one
// full refill of the burst, and records later failures to l. Call it before
// the first prompt.
func (g *Gate) UseFailureLog(ctx context.Context, l FailureLog) error {
	now := time.Now()
	window := time.Duration(g.throttle.Burst) * g.throttle.Refill
	n, err := l.AdminFailuresSince(ctx, now.Add(-window))
	if err != nil {
		return fmt.Errorf("read failed attempts: %w", err)
	}
	g.limiter.AllowN(now, min(n, g.throttle.Burst))
	g.failures = l
	return nil
}

// SetHooks installs the maintenance hooks.
func (g *Gate) SetHooks(h Hooks) {
	g.hookMu.Lock()
	defer g.hookMu.Unlock()
	g.hooks = h
}

// Configured reports whether a secret has been set up.
func (g *Gate) Configured() bool {
	return g.creds.AdminHash() != ""
}

// Prompting reports whether a prompt is open.
func (g *Gate) Prompting() bool {
	return g.prompting.Load()
}

// EnsureAuthenticated runs the first-time setup or checks the secret.
// Only one prompt can be open at a time.
func (g *Gate) EnsureAuthenticated(ctx context.Context, p Prompter) (bool, error) {
	if !g.prompting.CompareAndSwap(false, true) {
		return false, ErrPromptOpen
	}
	defer g.prompting.Store(false)

	stored := g.creds.AdminHash()
	if stored == "" {
		return g.setup(ctx, p)
	}

	secret, err := p.PromptSecret(ctx)
	if err != nil || secret == "" {
		return false, cancelled(err)
	}
	if !g.limiter.Allow() {
		log.Printf("ADMIN_THROTTLED: attempt rejected")
		return false, ErrThrottled
	}
	if !policy.MatchSecret(secret, stored) {
		log.Printf("ADMIN_AUTH_FAILED: incorrect secret")
		if g.failures != nil {
			if err := g.failures.RecordAdminFailure(ctx, time.Now()); err != nil {
				log.Printf("ADMIN_AUTH_FAILED: record attempt: %v", err)
			}
		}
		return false, ErrIncorrectSecret
	}
	log.Printf("ADMIN_AUTH: authenticated")
	return true, nil
}

func (g *Gate) setup(ctx context.Context, p Prompter) (bool, error) {
	secret, err := p.CaptureNewSecret(ctx)
	if err != nil || secret == "" {
		return false, cancelled(err)
	}
	if err := g.creds.SetAdminHash(policy.HashSecret(secret)); err != nil {
		return false, fmt.Errorf("save administrator password: %w", err)
	}
	log.Printf("ADMIN_SETUP: administrator password created")
	return true, nil
}

// ChangeSecret replaces the secret. The caller must already be authenticated.
func (g *Gate) ChangeSecret(secret string) error {
	if strings.TrimSpace(secret) == "" {
		return ErrEmptySecret
	}
	if err := g.creds.SetAdminHash(policy.HashSecret(secret)); err != nil {
		return fmt.Errorf("save administrator password: %w", err)
	}
	log.Printf("ADMIN_SECRET_CHANGED")
	return nil
}

func cancelled(err error) error {
	if err == nil || errors.Is(err, context.Canceled) {
		return ErrCancelled
	}
	if errors.Is(err, ErrCancelled) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrCancelled, err)
}

// =============================================================================
// MAINTENANCE
// =============================================================================

// MaintenanceActive reports whether maintenance mode is on.
func (g *Gate) MaintenanceActive() bool {
	return g.maintenance.Load()
}

// EnterMaintenance turns maintenance mode on and runs OnEnter. It reports
// false if maintenance was already active.
func (g *Gate) EnterMaintenance() bool {
	g.hookMu.Lock()
	defer g.hookMu.Unlock()

	if !g.maintenance.CompareAndSwap(false, true) {
		return false
	}
	log.Printf("MAINTENANCE: entered")
	if g.hooks.OnEnter != nil {
		g.hooks.OnEnter()
	}
	return true
}

// ResumeFromMaintenance turns maintenance mode off and runs OnResume. It is
// a no-op that reports false when maintenance was not active.
func (g *Gate) ResumeFromMaintenance() bool {
	g.hookMu.Lock()
	defer g.hookMu.Unlock()

	if !g.maintenance.CompareAndSwap(true, false) {
		return false
	}
	log.Printf("MAINTENANCE: resumed")
	if g.hooks.OnResume != nil {
		g.hooks.OnResume()
	}
	return true
}
