// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/jeranaias/publicpc/internal/admin"
	"github.com/jeranaias/publicpc/internal/audit"
	"github.com/jeranaias/publicpc/internal/config"
	"github.com/jeranaias/publicpc/internal/policy"
	"github.com/jeranaias/publicpc/internal/storage"
)

// loadConfig reads config.toml from --config or the default location.
func loadConfig(args Args) (*config.Config, error) {
	if args.ConfigPath != "" {
		return config.LoadFromPath(args.ConfigPath)
	}
	return config.Load()
}

// workstation bundles the stores every command works against.
type workstation struct {
	cfg      *config.Config
	db       *storage.DB
	policies *policy.Store
	writer   *audit.Writer
	errlog   *audit.ErrorLog
	trail    *audit.Trail
}

// openWorkstation loads the config and opens the database, the policy
// document and the audit trail.
func openWorkstation(args Args) (*workstation, error) {
	cfg, err := loadConfig(args)
	if err != nil {
		return nil, err
	}
	return openWorkstationWith(cfg)
}

func openWorkstationWith(cfg *config.Config) (*workstation, error) {
	if err := os.MkdirAll(cfg.Paths.DataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := storage.Open(cfg.DatabasePath())
	if err != nil {
		return nil, err
	}

	w := &workstation{
		cfg:      cfg,
		db:       db,
		policies: policy.NewStore(cfg.PolicyPath()),
		writer:   audit.NewWriter(cfg.AuditDir()),
		errlog:   audit.NewErrorLog(cfg.ErrorLogPath()),
	}
	w.policies.SetMirror(db)
	w.trail = audit.NewTrail(w.writer, db, w.errlog)
	return w, nil
}

// Close closes the database.
func (w *workstation) Close() error {
	return w.db.Close()
}

// throttle returns the admin attempt limits from the config.
func (w *workstation) throttle() admin.Throttle {
	return admin.Throttle{Burst: w.cfg.Admin.AttemptBurst, Refill: w.cfg.AttemptRefill()}
}

// =============================================================================
// ADMINISTRATOR AUTHENTICATION
// =============================================================================

// policyCredentials keeps the administrator hash in the policy document.
type policyCredentials struct {
	store *policy.Store
	pol   *policy.Policy
}

func newPolicyCredentials(store *policy.Store) (*policyCredentials, error) {
	pol, err := store.Load()
	if err != nil {
		return nil, err
	}
	return &policyCredentials{store: store, pol: pol}, nil
}

func (c *policyCredentials) AdminHash() string {
	return c.pol.AdminPasswordHash
}

func (c *policyCredentials) SetAdminHash(hash string) error {
	next := c.pol.Clone()
	next.AdminPasswordHash = hash
	if err := c.store.Save(next); err != nil {
		return err
	}
	c.pol = next
	return nil
}

// authenticate asks for the administrator password, or sets one up when
// none exists. It returns the gate so callers can change the secret.
func (w *workstation) authenticate(ctx context.Context, p admin.Prompter) (*admin.Gate, *policyCredentials, error) {
	creds, err := newPolicyCredentials(w.policies)
	if err != nil {
		return nil, nil, err
	}
	gate := admin.NewGate(creds, w.throttle())
	if err := gate.UseFailureLog(ctx, w.db); err != nil {
		return nil, nil, err
	}
	ok, err := gate.EnsureAuthenticated(ctx, p)
	if err != nil {
		_ = w.trail.Event(0, audit.CategoryAdmin, "CLI authentication failed: "+err.Error())
		return nil, nil, err
	}
	if !ok {
		return nil, nil, admin.ErrIncorrectSecret
	}
	_ = w.trail.Event(0, audit.CategoryAdmin, "CLI authenticated")
	return gate, creds, nil
}

// changePolicy authenticates, applies edit to the current policy and saves it.
func (w *workstation) changePolicy(ctx context.Context, p admin.Prompter, what string, edit func(*policy.Policy) error) (*policy.Policy, error) {
	_, creds, err := w.authenticate(ctx, p)
	if err != nil {
		return nil, err
	}

	next := creds.pol.Clone()
	if err := edit(next); err != nil {
		return nil, err
	}
	if err := w.policies.Save(next); err != nil {
		return nil, err
	}

	saved, err := w.policies.Read()
	if err != nil {
		return nil, err
	}
	log.Printf("POLICY_CHANGED: %s", what)
	_ = w.trail.Event(0, audit.CategoryPolicy, what)
	return saved, nil
}
