// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package kiosk

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/publicpc/internal/admin"
	"github.com/jeranaias/publicpc/internal/mode"
	"github.com/jeranaias/publicpc/internal/model"
	"github.com/jeranaias/publicpc/internal/policy"
	"github.com/jeranaias/publicpc/internal/session"
	"github.com/jeranaias/publicpc/internal/ui/styles"
)

// Controller is the part of mode.Controller the kiosk drives.
type Controller interface {
	Mode() mode.Mode
	Policy() *policy.Policy
	Session() *model.Session
	Countdown() session.CountdownStatus
	AdminConfigured() bool
	MaintenanceActive() bool

	RequestLogin() error
	CancelLogin() error
	StartSession(ctx context.Context, form session.LoginForm) (*model.Session, error)
	Extend(ctx context.Context) bool
	EndSession(ctx context.Context, reason string) error
	Launch(ctx context.Context, prog policy.AllowedProgram) error

	RequestAdmin(ctx context.Context, p admin.Prompter) error
	CloseAdmin() error
	EnterMaintenance() error
	ResumeFromMaintenance() error
	ApplyPolicy(p *policy.Policy) error
}

// =============================================================================
// MESSAGES
// =============================================================================

// TickMsg refreshes the screen from the controller.
type TickMsg time.Time

// PolicyUpdatedMsg is sent when the controller publishes a new policy.
type PolicyUpdatedMsg struct {
	Policy *policy.Policy
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// =============================================================================
// MODEL
// =============================================================================

// Login form fields, in focus order.
const (
	fieldName = iota
	fieldID
	fieldPurpose
	fieldMinutes
	fieldConsent
	fieldCount
)

// Model is the kiosk screen.
type Model struct {
	ctrl    Controller
	ctx     context.Context
	station string
	theme   *styles.Theme

	mode   mode.Mode
	policy *policy.Policy

	inputs  []textinput.Model
	focus   int
	consent bool

	prompting bool
	secret    textinput.Model

	selected int

	notice string
	err    string
}

// New creates the kiosk model.
func New(ctx context.Context, ctrl Controller, station string) Model {
	m := Model{
		ctrl:    ctrl,
		ctx:     ctx,
		station: station,
		theme:   styles.NewTheme(),
		mode:    ctrl.Mode(),
		policy:  ctrl.Policy(),
	}

	labels := []string{"Your name", "ID number", session.Purposes[0], ""}
	m.inputs = make([]textinput.Model, fieldConsent)
	for i := range m.inputs {
		ti := textinput.New()
		ti.Prompt = ""
		ti.Placeholder = labels[i]
		ti.CharLimit = 64
		m.inputs[i] = ti
	}
	m.inputs[fieldMinutes].CharLimit = 3

	m.secret = textinput.New()
	m.secret.Prompt = "> "
	m.secret.EchoMode = textinput.EchoPassword
	m.secret.EchoCharacter = '*'
	m.secret.CharLimit = 128

	m.resetForm()
	return m
}

// Init starts the refresh tick.
func (m Model) Init() tea.Cmd {
	return tea.Batch(tick(), textinput.Blink)
}

// Mode returns the mode the screen last showed.
func (m Model) Mode() mode.Mode {
	return m.mode
}

// sync reloads the mode from the controller.
func (m *Model) sync() {
	prev := m.mode
	m.mode = m.ctrl.Mode()
	if m.mode != prev {
		m.selected = 0
		if m.mode == mode.LoggingIn {
			m.resetForm()
		}
	}
}

func (m *Model) resetForm() {
	for i := range m.inputs {
		m.inputs[i].Reset()
		m.inputs[i].Blur()
	}
	m.inputs[fieldMinutes].Placeholder = itoa(m.policy.DefaultSessionMinutes)
	m.consent = false
	m.focus = fieldName
	m.inputs[fieldName].Focus()
}

func (m *Model) setError(err error) {
	if err == nil {
		m.err = ""
		return
	}
	m.err = err.Error()
}
