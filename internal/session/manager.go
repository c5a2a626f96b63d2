// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jeranaias/publicpc/internal/model"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrConflict is returned when a session is started while one is open.
	ErrConflict = errors.New("a session is already active")

	// ErrNoSession is returned by operations that need an active session.
	ErrNoSession = errors.New("no active session")

	// ErrInvalidRequest is returned for a start request with missing fields.
	ErrInvalidRequest = errors.New("invalid session request")
)

// ConflictError carries the session that blocked a StartSession call.
type ConflictError struct {
	Active *model.Session
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("session %d for %q is already active", e.Active.ID, e.Active.UserName)
}

func (e *ConflictError) Unwrap() error {
	return ErrConflict
}

// =============================================================================
// STORE
// =============================================================================

// Store persists session rows. storage.DB implements it.
type Store interface {
	InsertSession(ctx context.Context, s *model.Session) (int64, error)
	UpdateSession(ctx context.Context, s *model.Session) error
}

// StartRequest holds everything needed to open a session. Minutes and the
// extension snapshot are taken as given; LoginForm.Request clamps them.
type StartRequest struct {
	PCName   string
	UserName string
	UserID   string
	Purpose  string

	Minutes          int
	MaxExtensions    int
	ExtensionMinutes int
}

// =============================================================================
// MANAGER
// =============================================================================

// Manager owns the single active session slot.
type Manager struct {
	store Store
	now   func() time.Time

	// mu serializes mutations; current is never exposed.
	mu      sync.Mutex
	current *model.Session

	// snapshot is a copy of current for lock-free readers.
	snapshot atomic.Pointer[model.Session]
}

// NewManager creates a manager with no active session.
func NewManager(store Store) *Manager {
	return &Manager{store: store, now: time.Now}
}

// Current returns a copy of the active session, or nil.
func (m *Manager) Current() *model.Session {
	return m.snapshot.Load().Clone()
}

// CurrentID returns the active session id, or 0.
func (m *Manager) CurrentID() int64 {
	if s := m.snapshot.Load(); s != nil {
		return s.ID
	}
	return 0
}

// Active reports whether a session is open.
func (m *Manager) Active() bool {
	return m.snapshot.Load() != nil
}

// set replaces the held session. Caller must hold mu.
func (m *Manager) set(s *model.Session) {
	m.current = s
	m.snapshot.Store(s.Clone())
}

// StartSession persists a new session and makes it the active one.
// It fails with a *ConflictError while another session is open.
func (m *Manager) StartSession(ctx context.Context, req StartRequest) (*model.Session, error) {
	if req.UserName == "" || req.UserID == "" || req.Minutes <= 0 {
		return nil, ErrInvalidRequest
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil {
		return nil, &ConflictError{Active: m.current.Clone()}
	}

	s := &model.Session{
		PCName:           req.PCName,
		UserName:         req.UserName,
		UserID:           req.UserID,
		Purpose:          req.Purpose,
		StartTime:        m.now(),
		RequestedMinutes: req.Minutes,
		MaxExtensions:    max(req.MaxExtensions, 0),
		ExtensionMinutes: max(req.ExtensionMinutes, 0),
	}

	id, err := m.store.InsertSession(ctx, s)
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	s.ID = id

	m.set(s)
	log.Printf("SESSION_START: id=%d user=%q minutes=%d", s.ID, s.UserName, s.RequestedMinutes)
	return s.Clone(), nil
}

// TryExtend grants one extension. It reports false, leaving the session
// untouched, when there is no session, no extension left, no extension
// minutes, or the update cannot be persisted.
func (m *Manager) TryExtend(ctx context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.current.CanExtend() {
		return false
	}

	next := m.current.Clone()
	next.ExtensionsUsed++
	next.RequestedMinutes += next.ExtensionMinutes

	if err := m.store.UpdateSession(ctx, next); err != nil {
		log.Printf("SESSION_EXTEND_FAILED: id=%d: %v", next.ID, err)
		return false
	}

	m.set(next)
	log.Printf("SESSION_EXTEND: id=%d used=%d/%d minutes=%d",
		next.ID, next.ExtensionsUsed, next.MaxExtensions, next.RequestedMinutes)
	return true
}

// EndSession closes the active session with reason. It is a no-op when
// nothing is active. The slot is cleared even if the update fails; the
// update error is returned.
func (m *Manager) EndSession(ctx context.Context, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return nil
	}

	ended := m.current.Clone()
	now := m.now()
	ended.EndTime = &now
	ended.EndReason = reason

	m.current = nil
	m.snapshot.Store(nil)

	if err := m.store.UpdateSession(ctx, ended); err != nil {
		log.Printf("SESSION_END_FAILED: id=%d reason=%s: %v", ended.ID, reason, err)
		return fmt.Errorf("update session %d: %w", ended.ID, err)
	}
	log.Printf("SESSION_END: id=%d reason=%s", ended.ID, reason)
	return nil
}

// CloseStale ends sessions left open by an earlier run of the process and
// returns how many were closed. The active session is never touched.
func (m *Manager) CloseStale(ctx context.Context, stale []*model.Session) int {
	activeID := m.CurrentID()
	closed := 0
	for _, s := range stale {
		if !s.IsOpen() || s.ID == activeID {
			continue
		}
		ended := s.Clone()
		now := m.now()
		ended.EndTime = &now
		ended.EndReason = model.EndReasonInterrupted
		if err := m.store.UpdateSession(ctx, ended); err != nil {
			log.Printf("SESSION_STALE_FAILED: id=%d: %v", s.ID, err)
			continue
		}
		closed++
	}
	if closed > 0 {
		log.Printf("SESSION_STALE: closed %d interrupted session(s)", closed)
	}
	return closed
}

// =============================================================================
// FORMATTING
// =============================================================================

// FormatDuration renders a remaining time as HH:MM:SS, or MM:SS under an hour.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d.Round(time.Second) / time.Second)
	h, m, s := total/3600, (total/60)%60, total%60
	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
