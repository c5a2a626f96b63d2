// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"errors"
	"strings"

	"github.com/jeranaias/publicpc/internal/policy"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrNameRequired is returned when the name field is blank.
	ErrNameRequired = errors.New("name is required")

	// ErrIDRequired is returned when the id field is blank.
	ErrIDRequired = errors.New("id is required")

	// ErrConsentRequired is returned when the monitoring notice was not accepted.
	ErrConsentRequired = errors.New("consent to monitoring is required")
)

// =============================================================================
// LOGIN FORM
// =============================================================================

// Purposes offered on the login form. Purpose is free text; these are the
// suggested values.
var Purposes = []string{"research", "documents", "other"}

// LoginForm is what a walk-up user fills in.
type LoginForm struct {
	UserName string
	UserID   string
	Purpose  string
	Minutes  int
	Consent  bool
}

// Validate checks the required fields.
func (f LoginForm) Validate() error {
	if strings.TrimSpace(f.UserName) == "" {
		return ErrNameRequired
	}
	if strings.TrimSpace(f.UserID) == "" {
		return ErrIDRequired
	}
	if !f.Consent {
		return ErrConsentRequired
	}
	return nil
}

// Request validates the form and builds a StartRequest under pol: minutes
// are clamped and the extension snapshot is taken from the policy.
func (f LoginForm) Request(pol *policy.Policy, pcName string) (StartRequest, error) {
	if err := f.Validate(); err != nil {
		return StartRequest{}, err
	}
	minutes := f.Minutes
	if minutes == 0 {
		minutes = pol.DefaultSessionMinutes
	}
	maxExt, extMinutes := pol.ExtensionGrant()
	return StartRequest{
		PCName:           pcName,
		UserName:         strings.TrimSpace(f.UserName),
		UserID:           strings.TrimSpace(f.UserID),
		Purpose:          strings.TrimSpace(f.Purpose),
		Minutes:          pol.ClampMinutes(minutes),
		MaxExtensions:    maxExt,
		ExtensionMinutes: extMinutes,
	}, nil
}
