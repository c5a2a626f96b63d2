// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package policy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/jeranaias/publicpc/internal/util"
)

// CorruptSuffix is appended to a policy file that could not be read.
const CorruptSuffix = ".corrupt.bak"

// ErrCorrupt is returned by Read when the document cannot be decoded.
var ErrCorrupt = errors.New("policy document is corrupt")

// Mirror receives a copy of the allow-list after every successful save.
type Mirror interface {
	SyncAllowedPrograms(ctx context.Context, programs []AllowedProgram) error
}

// Store persists the policy document as indented JSON.
type Store struct {
	path string

	mu     sync.Mutex
	mirror Mirror
}

// NewStore creates a store for the document at path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the document location.
func (s *Store) Path() string {
	return s.path
}

// SetMirror registers a mirror that is updated on every Save.
func (s *Store) SetMirror(m Mirror) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mirror = m
}

// Read decodes the document without repairing anything. It returns
// os.ErrNotExist when the file is missing and ErrCorrupt when it cannot be
// decoded. Fields missing from the document keep their defaults.
func (s *Store) Read() (*Policy, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, err
	}

	p := Default()
	if err := json.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	p.Normalize()
	return p, nil
}

// Load returns the policy, never nil. A missing document is created with
// defaults. An unreadable or corrupt one is copied to <file>.corrupt.bak and
// replaced with defaults. The returned error only reports that the fallback
// could not be persisted; the policy is usable either way.
func (s *Store) Load() (*Policy, error) {
	p, err := s.Read()
	if err == nil {
		return p, nil
	}

	if !errors.Is(err, os.ErrNotExist) {
		log.Printf("POLICY_CORRUPT: %s: %v", s.path, err)
		if backup, berr := util.BackupFile(s.path, CorruptSuffix); berr != nil {
			log.Printf("POLICY_BACKUP_FAILED: %v", berr)
		} else if backup != "" {
			log.Printf("POLICY_BACKUP: corrupt document kept at %s", backup)
		}
	}

	p = Default()
	if err := s.Save(p); err != nil {
		return p, fmt.Errorf("failed to write default policy: %w", err)
	}
	return p, nil
}

// Save normalizes a copy of p and writes it atomically. Saving what Load
// returned leaves the document unchanged.
func (s *Store) Save(p *Policy) error {
	doc := p.Clone()
	doc.Normalize()

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode policy: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := util.AtomicWriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write policy: %w", err)
	}

	if s.mirror != nil {
		if err := s.mirror.SyncAllowedPrograms(context.Background(), doc.AllowedPrograms); err != nil {
			log.Printf("POLICY_MIRROR_FAILED: %v", err)
		}
	}
	return nil
}
