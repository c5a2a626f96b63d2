// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package admin

import (
	"context"
	"sync"
)

// StaticPrompter answers prompts with fixed values. It is used for
// non-interactive administration and in tests.
type StaticPrompter struct {
	// Secret answers PromptSecret.
	Secret string
	// NewSecret answers CaptureNewSecret. Empty falls back to Secret.
	NewSecret string
}

func (s StaticPrompter) CaptureNewSecret(context.Context) (string, error) {
	if s.NewSecret != "" {
		return s.NewSecret, nil
	}
	return s.Secret, nil
}

func (s StaticPrompter) PromptSecret(context.Context) (string, error) {
	return s.Secret, nil
}

// PrompterFunc adapts one function to both prompts. setup tells which
// prompt is being shown.
type PrompterFunc func(ctx context.Context, setup bool) (string, error)

func (f PrompterFunc) CaptureNewSecret(ctx context.Context) (string, error) {
	return f(ctx, true)
}

func (f PrompterFunc) PromptSecret(ctx context.Context) (string, error) {
	return f(ctx, false)
}

// MemoryCredentials keeps the hash in memory.
type MemoryCredentials struct {
	mu   sync.Mutex
	hash string
}

func (m *MemoryCredentials) AdminHash() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hash
}

func (m *MemoryCredentials) SetAdminHash(hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hash = hash
	return nil
}
