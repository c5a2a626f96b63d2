// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/publicpc/internal/model"
)

// =============================================================================
// FAKE STORE
// =============================================================================

type fakeStore struct {
	mu        sync.Mutex
	nextID    int64
	inserts   []*model.Session
	updates   []*model.Session
	insertErr error
	updateErr error
}

func (f *fakeStore) InsertSession(_ context.Context, s *model.Session) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return 0, f.insertErr
	}
	f.nextID++
	f.inserts = append(f.inserts, s.Clone())
	return f.nextID, nil
}

func (f *fakeStore) UpdateSession(_ context.Context, s *model.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updates = append(f.updates, s.Clone())
	return nil
}

func (f *fakeStore) endWrites() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, u := range f.updates {
		if u.EndTime != nil {
			n++
		}
	}
	return n
}

func request(maxExt, extMinutes int) StartRequest {
	return StartRequest{
		PCName:           "PC-01",
		UserName:         "Kim",
		UserID:           "0102",
		Purpose:          "research",
		Minutes:          30,
		MaxExtensions:    maxExt,
		ExtensionMinutes: extMinutes,
	}
}

// =============================================================================
// START
// =============================================================================

func TestStartSession(t *testing.T) {
	store := &fakeStore{}
	m := NewManager(store)

	s, err := m.StartSession(context.Background(), request(1, 10))
	require.NoError(t, err)
	assert.Equal(t, int64(1), s.ID)
	assert.True(t, s.IsOpen())
	assert.Equal(t, 30, s.RequestedMinutes)
	assert.Equal(t, int64(1), m.CurrentID())
	assert.True(t, m.Active())
	require.Len(t, store.inserts, 1)
}

func TestStartSessionConflict(t *testing.T) {
	store := &fakeStore{}
	m := NewManager(store)
	ctx := context.Background()

	first, err := m.StartSession(ctx, request(1, 10))
	require.NoError(t, err)

	_, err = m.StartSession(ctx, request(1, 10))
	require.ErrorIs(t, err, ErrConflict)

	var conflict *ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, first.ID, conflict.Active.ID)

	assert.Len(t, store.inserts, 1, "no new row on conflict")
	assert.Equal(t, first.ID, m.CurrentID())
}

func TestStartSessionInsertFailure(t *testing.T) {
	store := &fakeStore{insertErr: errors.New("disk full")}
	m := NewManager(store)

	_, err := m.StartSession(context.Background(), request(0, 0))
	require.Error(t, err)
	assert.Nil(t, m.Current())
}

func TestStartSessionRejectsMissingFields(t *testing.T) {
	m := NewManager(&fakeStore{})
	req := request(0, 0)
	req.UserID = ""
	_, err := m.StartSession(context.Background(), req)
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestCurrentIsACopy(t *testing.T) {
	m := NewManager(&fakeStore{})
	_, err := m.StartSession(context.Background(), request(1, 10))
	require.NoError(t, err)

	snap := m.Current()
	snap.RequestedMinutes = 999
	snap.UserName = "changed"

	assert.Equal(t, 30, m.Current().RequestedMinutes)
	assert.Equal(t, "Kim", m.Current().UserName)
}

// =============================================================================
// EXTEND
// =============================================================================

func TestTryExtendBounded(t *testing.T) {
	for maxExt := 0; maxExt <= 3; maxExt++ {
		store := &fakeStore{}
		m := NewManager(store)
		_, err := m.StartSession(context.Background(), request(maxExt, 10))
		require.NoError(t, err)

		granted := 0
		for i := 0; i < 6; i++ {
			if m.TryExtend(context.Background()) {
				granted++
			}
			assert.LessOrEqual(t, m.Current().ExtensionsUsed, maxExt)
		}
		assert.Equal(t, maxExt, granted)
		assert.Equal(t, maxExt, m.Current().ExtensionsUsed)
		assert.Equal(t, 30+10*maxExt, m.Current().RequestedMinutes)
	}
}

func TestTryExtendSingleExtension(t *testing.T) {
	m := NewManager(&fakeStore{})
	_, err := m.StartSession(context.Background(), request(1, 10))
	require.NoError(t, err)

	require.True(t, m.TryExtend(context.Background()))
	assert.Equal(t, 40, m.Current().RequestedMinutes)

	require.False(t, m.TryExtend(context.Background()))
	assert.Equal(t, 40, m.Current().RequestedMinutes)
	assert.Equal(t, 1, m.Current().ExtensionsUsed)
}

func TestTryExtendFailsClosed(t *testing.T) {
	ctx := context.Background()

	t.Run("no session", func(t *testing.T) {
		assert.False(t, NewManager(&fakeStore{}).TryExtend(ctx))
	})

	t.Run("zero minutes", func(t *testing.T) {
		store := &fakeStore{}
		m := NewManager(store)
		_, err := m.StartSession(ctx, request(3, 0))
		require.NoError(t, err)
		assert.False(t, m.TryExtend(ctx))
		assert.Empty(t, store.updates)
	})

	t.Run("persist failure", func(t *testing.T) {
		store := &fakeStore{}
		m := NewManager(store)
		_, err := m.StartSession(ctx, request(3, 10))
		require.NoError(t, err)

		store.updateErr = errors.New("locked")
		assert.False(t, m.TryExtend(ctx))
		assert.Equal(t, 0, m.Current().ExtensionsUsed)
		assert.Equal(t, 30, m.Current().RequestedMinutes)
	})
}

// =============================================================================
// END
// =============================================================================

func TestEndSessionIdempotent(t *testing.T) {
	store := &fakeStore{}
	m := NewManager(store)
	ctx := context.Background()
	_, err := m.StartSession(ctx, request(0, 0))
	require.NoError(t, err)

	require.NoError(t, m.EndSession(ctx, model.EndReasonManual))
	require.NoError(t, m.EndSession(ctx, model.EndReasonTimeout))

	assert.Equal(t, 1, store.endWrites())
	last := store.updates[len(store.updates)-1]
	assert.Equal(t, model.EndReasonManual, last.EndReason)
	assert.NotNil(t, last.EndTime)
	assert.Nil(t, m.Current())
}

func TestEndSessionWithoutSession(t *testing.T) {
	store := &fakeStore{}
	require.NoError(t, NewManager(store).EndSession(context.Background(), model.EndReasonManual))
	assert.Empty(t, store.updates)
}

func TestEndSessionClearsOnPersistFailure(t *testing.T) {
	store := &fakeStore{}
	m := NewManager(store)
	ctx := context.Background()
	_, err := m.StartSession(ctx, request(0, 0))
	require.NoError(t, err)

	store.updateErr = errors.New("io")
	require.Error(t, m.EndSession(ctx, model.EndReasonForced))
	assert.Nil(t, m.Current())

	// A new session can start afterwards.
	store.updateErr = nil
	_, err = m.StartSession(ctx, request(0, 0))
	require.NoError(t, err)
}

func TestConcurrentEndSession(t *testing.T) {
	store := &fakeStore{}
	m := NewManager(store)
	ctx := context.Background()
	_, err := m.StartSession(ctx, request(0, 0))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.EndSession(ctx, model.EndReasonTimeout)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, store.endWrites())
}

func TestCloseStale(t *testing.T) {
	store := &fakeStore{}
	m := NewManager(store)
	ended := time.Now()
	stale := []*model.Session{
		{ID: 4, UserName: "a"},
		{ID: 5, UserName: "b", EndTime: &ended},
		{ID: 6, UserName: "c"},
	}

	assert.Equal(t, 2, m.CloseStale(context.Background(), stale))
	require.Len(t, store.updates, 2)
	for _, u := range store.updates {
		assert.Equal(t, model.EndReasonInterrupted, u.EndReason)
	}
}

// =============================================================================
// FORMATTING
// =============================================================================

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "00:00"},
		{-time.Second, "00:00"},
		{59 * time.Second, "00:59"},
		{5*time.Minute + 3*time.Second, "05:03"},
		{time.Hour + 2*time.Minute, "01:02:00"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.in); got != tt.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
