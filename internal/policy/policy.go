// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package policy

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrDuplicateProgram is returned when an executable path is already allow-listed.
	ErrDuplicateProgram = errors.New("program is already in the allow-list")

	// ErrInvalidProgram is returned when a program lacks a name or a path.
	ErrInvalidProgram = errors.New("program needs a display name and an executable path")

	// ErrUnknownMode is returned by ParseMode.
	ErrUnknownMode = errors.New("unknown policy mode")
)

// =============================================================================
// CONSTANTS
// =============================================================================

// MinSessionMinutes is the shortest session that can be requested.
const MinSessionMinutes = 5

// =============================================================================
// MODE
// =============================================================================

// Mode is the enforcement mode of the workstation.
type Mode int

const (
	// ModeEnforced restricts users to the allow-list and monitors them.
	ModeEnforced Mode = iota
	// ModeAdminOnly refuses user logins altogether.
	ModeAdminOnly
	// ModeUnrestricted allows sessions without process enforcement.
	ModeUnrestricted
)

// String returns the string representation of the mode.
func (m Mode) String() string {
	switch m {
	case ModeEnforced:
		return "enforced"
	case ModeAdminOnly:
		return "admin-only"
	case ModeUnrestricted:
		return "unrestricted"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode converts a string to a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "enforced", "enforce":
		return ModeEnforced, nil
	case "admin-only", "adminonly", "admin":
		return ModeAdminOnly, nil
	case "unrestricted", "open":
		return ModeUnrestricted, nil
	default:
		return ModeEnforced, fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

// =============================================================================
// POLICY
// =============================================================================

// AllowedProgram is one entry of the allow-list. ExecutablePath is the
// case-insensitive unique key.
type AllowedProgram struct {
	DisplayName    string `json:"displayName"`
	ExecutablePath string `json:"executablePath"`
	Arguments      string `json:"arguments"`
}

// Policy is the administrator policy document.
type Policy struct {
	EnforcementEnabled bool `json:"enforcementEnabled"`
	IsAdminOnlyPc      bool `json:"isAdminOnlyPc"`

	DefaultSessionMinutes   int  `json:"defaultSessionMinutes"`
	MaxSessionMinutes       int  `json:"maxSessionMinutes"`
	SessionExtensionMinutes int  `json:"sessionExtensionMinutes"`
	MaxExtensionCount       int  `json:"maxExtensionCount"`
	AllowExtensions         bool `json:"allowExtensions"`

	KillDisallowedProcess bool `json:"killDisallowedProcess"`

	AllowedPrograms []AllowedProgram `json:"allowedPrograms"`

	// AdminPasswordHash is the upper-case hex SHA-256 of the admin secret.
	// Empty means no secret has been set up yet.
	AdminPasswordHash string `json:"adminPasswordHash"`
}

// Default returns the policy written on first start.
func Default() *Policy {
	return &Policy{
		EnforcementEnabled:      true,
		IsAdminOnlyPc:           false,
		DefaultSessionMinutes:   60,
		MaxSessionMinutes:       120,
		SessionExtensionMinutes: 15,
		MaxExtensionCount:       2,
		AllowExtensions:         true,
		KillDisallowedProcess:   true,
		AllowedPrograms:         []AllowedProgram{},
	}
}

// Mode folds the two legacy flags into one mode. When both flags are set,
// admin-only wins.
func (p *Policy) Mode() Mode {
	switch {
	case p.IsAdminOnlyPc:
		return ModeAdminOnly
	case p.EnforcementEnabled:
		return ModeEnforced
	default:
		return ModeUnrestricted
	}
}

// SetMode writes the mode back into the legacy flags.
func (p *Policy) SetMode(m Mode) {
	p.EnforcementEnabled = m == ModeEnforced
	p.IsAdminOnlyPc = m == ModeAdminOnly
}

// Enforcing reports whether sessions run under process enforcement.
func (p *Policy) Enforcing() bool {
	return p.Mode() == ModeEnforced
}

// AdminOnly reports whether user logins are refused.
func (p *Policy) AdminOnly() bool {
	return p.Mode() == ModeAdminOnly
}

// HasAdminSecret reports whether an admin secret has been set up.
func (p *Policy) HasAdminSecret() bool {
	return p.AdminPasswordHash != ""
}

// Normalize repairs out-of-range values in place. It is idempotent.
func (p *Policy) Normalize() {
	p.SetMode(p.Mode())

	if p.DefaultSessionMinutes < MinSessionMinutes {
		p.DefaultSessionMinutes = MinSessionMinutes
	}
	if p.MaxSessionMinutes < p.DefaultSessionMinutes {
		p.MaxSessionMinutes = p.DefaultSessionMinutes
	}
	if p.SessionExtensionMinutes < 0 {
		p.SessionExtensionMinutes = 0
	}
	if p.MaxExtensionCount < 0 {
		p.MaxExtensionCount = 0
	}

	// Drop blank entries and later duplicates, keeping the first.
	programs := make([]AllowedProgram, 0, len(p.AllowedPrograms))
	seen := make(map[string]struct{}, len(p.AllowedPrograms))
	for _, prog := range p.AllowedPrograms {
		if strings.TrimSpace(prog.ExecutablePath) == "" {
			continue
		}
		key := PathKey(prog.ExecutablePath)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		programs = append(programs, prog)
	}
	p.AllowedPrograms = programs
}

// ClampMinutes bounds a requested session length to [MinSessionMinutes, MaxSessionMinutes].
func (p *Policy) ClampMinutes(requested int) int {
	upper := p.MaxSessionMinutes
	if upper < MinSessionMinutes {
		upper = MinSessionMinutes
	}
	switch {
	case requested < MinSessionMinutes:
		return MinSessionMinutes
	case requested > upper:
		return upper
	default:
		return requested
	}
}

// ExtensionGrant returns the extension snapshot a new session receives.
// Both values are zero when extensions are disabled.
func (p *Policy) ExtensionGrant() (maxExtensions, minutes int) {
	if !p.AllowExtensions {
		return 0, 0
	}
	return p.MaxExtensionCount, p.SessionExtensionMinutes
}

// Clone returns a deep copy.
func (p *Policy) Clone() *Policy {
	if p == nil {
		return nil
	}
	c := *p
	c.AllowedPrograms = append(make([]AllowedProgram, 0, len(p.AllowedPrograms)), p.AllowedPrograms...)
	return &c
}

// Equal reports whether two policies are identical.
func (p *Policy) Equal(other *Policy) bool {
	if p == nil || other == nil {
		return p == other
	}
	if p.EnforcementEnabled != other.EnforcementEnabled ||
		p.IsAdminOnlyPc != other.IsAdminOnlyPc ||
		p.DefaultSessionMinutes != other.DefaultSessionMinutes ||
		p.MaxSessionMinutes != other.MaxSessionMinutes ||
		p.SessionExtensionMinutes != other.SessionExtensionMinutes ||
		p.MaxExtensionCount != other.MaxExtensionCount ||
		p.AllowExtensions != other.AllowExtensions ||
		p.KillDisallowedProcess != other.KillDisallowedProcess ||
		p.AdminPasswordHash != other.AdminPasswordHash ||
		len(p.AllowedPrograms) != len(other.AllowedPrograms) {
		return false
	}
	for i := range p.AllowedPrograms {
		if p.AllowedPrograms[i] != other.AllowedPrograms[i] {
			return false
		}
	}
	return true
}

// =============================================================================
// ALLOW-LIST
// =============================================================================

// PathKey returns the comparison key of an executable path. Matching is exact
// apart from case.
func PathKey(path string) string {
	return cases.Fold().String(path)
}

// IsAllowed reports whether path is in the allow-list.
func (p *Policy) IsAllowed(path string) bool {
	key := PathKey(path)
	for _, prog := range p.AllowedPrograms {
		if PathKey(prog.ExecutablePath) == key {
			return true
		}
	}
	return false
}

// AllowedSet returns the allow-list as a set of path keys, for callers that
// test many paths against one snapshot.
func (p *Policy) AllowedSet() map[string]struct{} {
	set := make(map[string]struct{}, len(p.AllowedPrograms))
	for _, prog := range p.AllowedPrograms {
		set[PathKey(prog.ExecutablePath)] = struct{}{}
	}
	return set
}

// Program returns the allow-list entry for path.
func (p *Policy) Program(path string) (AllowedProgram, bool) {
	key := PathKey(path)
	for _, prog := range p.AllowedPrograms {
		if PathKey(prog.ExecutablePath) == key {
			return prog, true
		}
	}
	return AllowedProgram{}, false
}

// AddProgram appends prog to the allow-list.
func (p *Policy) AddProgram(prog AllowedProgram) error {
	prog.DisplayName = strings.TrimSpace(prog.DisplayName)
	prog.ExecutablePath = strings.TrimSpace(prog.ExecutablePath)
	prog.Arguments = strings.TrimSpace(prog.Arguments)

	if prog.DisplayName == "" || prog.ExecutablePath == "" {
		return ErrInvalidProgram
	}
	if p.IsAllowed(prog.ExecutablePath) {
		return fmt.Errorf("%w: %s", ErrDuplicateProgram, prog.ExecutablePath)
	}

	p.AllowedPrograms = append(p.AllowedPrograms, prog)
	return nil
}

// RemoveProgram deletes the entry for path and reports whether one existed.
func (p *Policy) RemoveProgram(path string) bool {
	key := PathKey(path)
	for i, prog := range p.AllowedPrograms {
		if PathKey(prog.ExecutablePath) == key {
			p.AllowedPrograms = append(p.AllowedPrograms[:i:i], p.AllowedPrograms[i+1:]...)
			return true
		}
	}
	return false
}
