// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package kiosk

import (
	"errors"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/publicpc/internal/admin"
	"github.com/jeranaias/publicpc/internal/mode"
	"github.com/jeranaias/publicpc/internal/model"
	"github.com/jeranaias/publicpc/internal/policy"
	"github.com/jeranaias/publicpc/internal/session"
)

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.theme.SetSize(msg.Width, msg.Height)
		return m, nil

	case TickMsg:
		m.sync()
		return m, tick()

	case PolicyUpdatedMsg:
		m.policy = msg.Policy
		if m.selected >= len(m.policy.AllowedPrograms) {
			m.selected = 0
		}
		m.sync()
		return m, nil

	case tea.KeyMsg:
		if m.prompting {
			return m.handlePromptKey(msg)
		}
		if msg.String() == "ctrl+a" && m.mode != mode.AdminPanel {
			return m.openPrompt()
		}
		m.err = ""
		switch m.mode {
		case mode.Locked:
			return m.handleLockedKey(msg)
		case mode.LoggingIn:
			return m.handleLoginKey(msg)
		case mode.ActiveSession:
			return m.handleSessionKey(msg)
		case mode.AdminPanel:
			return m.handleAdminKey(msg)
		case mode.Maintenance:
			return m.handleMaintenanceKey(msg)
		}
	}

	if m.mode == mode.LoggingIn && m.focus < fieldConsent {
		var cmd tea.Cmd
		m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
		return m, cmd
	}
	return m, nil
}

// =============================================================================
// ADMIN PROMPT
// =============================================================================

func (m Model) openPrompt() (tea.Model, tea.Cmd) {
	m.prompting = true
	m.err = ""
	m.secret.Reset()
	return m, m.secret.Focus()
}

func (m Model) handlePromptKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.prompting = false
		m.secret.Blur()
		return m, nil
	case "enter":
		secret := m.secret.Value()
		m.secret.Reset()
		err := m.ctrl.RequestAdmin(m.ctx, admin.StaticPrompter{Secret: secret})
		if errors.Is(err, admin.ErrCancelled) {
			return m, nil
		}
		m.prompting = false
		m.secret.Blur()
		m.setError(err)
		m.sync()
		return m, nil
	}
	var cmd tea.Cmd
	m.secret, cmd = m.secret.Update(msg)
	return m, cmd
}

// =============================================================================
// LOCK SCREEN
// =============================================================================

func (m Model) handleLockedKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "enter" {
		m.setError(m.ctrl.RequestLogin())
		m.sync()
		return m, textinput.Blink
	}
	return m, nil
}

// =============================================================================
// LOGIN FORM
// =============================================================================

func (m Model) handleLoginKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.setError(m.ctrl.CancelLogin())
		m.sync()
		return m, nil
	case "tab", "down":
		return m.moveFocus(1)
	case "shift+tab", "up":
		return m.moveFocus(-1)
	case " ":
		if m.focus == fieldConsent {
			m.consent = !m.consent
			return m, nil
		}
	case "enter":
		if m.focus < fieldConsent {
			return m.moveFocus(1)
		}
		return m.submitLogin()
	}

	if m.focus < fieldConsent {
		var cmd tea.Cmd
		m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) moveFocus(delta int) (tea.Model, tea.Cmd) {
	if m.focus < fieldConsent {
		m.inputs[m.focus].Blur()
	}
	m.focus = (m.focus + delta + fieldCount) % fieldCount
	if m.focus < fieldConsent {
		return m, m.inputs[m.focus].Focus()
	}
	return m, nil
}

// Form returns the login form as currently filled in.
func (m Model) Form() session.LoginForm {
	minutes, _ := strconv.Atoi(strings.TrimSpace(m.inputs[fieldMinutes].Value()))
	purpose := m.inputs[fieldPurpose].Value()
	if strings.TrimSpace(purpose) == "" {
		purpose = m.inputs[fieldPurpose].Placeholder
	}
	return session.LoginForm{
		UserName: m.inputs[fieldName].Value(),
		UserID:   m.inputs[fieldID].Value(),
		Purpose:  purpose,
		Minutes:  minutes,
		Consent:  m.consent,
	}
}

func (m Model) submitLogin() (tea.Model, tea.Cmd) {
	_, err := m.ctrl.StartSession(m.ctx, m.Form())
	m.setError(err)
	m.sync()
	return m, nil
}

// =============================================================================
// SESSION
// =============================================================================

func (m Model) handleSessionKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	programs := m.policy.AllowedPrograms
	switch msg.String() {
	case "up", "k":
		if m.selected > 0 {
			m.selected--
		}
	case "down", "j":
		if m.selected < len(programs)-1 {
			m.selected++
		}
	case "enter":
		if m.selected < len(programs) {
			prog := programs[m.selected]
			if err := m.ctrl.Launch(m.ctx, prog); err != nil {
				m.setError(err)
			} else {
				m.notice = "Started " + prog.DisplayName
			}
		}
	case "ctrl+e":
		if m.ctrl.Extend(m.ctx) {
			m.notice = "Session extended"
		} else {
			m.err = "No extension available"
		}
	case "ctrl+l":
		m.setError(m.ctrl.EndSession(m.ctx, model.EndReasonManual))
		m.notice = ""
		m.sync()
	}
	return m, nil
}

// =============================================================================
// ADMIN PANEL
// =============================================================================

var modeCycle = []policy.Mode{policy.ModeEnforced, policy.ModeAdminOnly, policy.ModeUnrestricted}

func (m Model) handleAdminKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	next := m.policy.Clone()
	changed := true

	switch msg.String() {
	case "esc":
		m.setError(m.ctrl.CloseAdmin())
		m.sync()
		return m, nil
	case "q":
		return m, tea.Quit
	case "m":
		for i, pm := range modeCycle {
			if pm == next.Mode() {
				next.SetMode(modeCycle[(i+1)%len(modeCycle)])
				break
			}
		}
	case "k":
		next.KillDisallowedProcess = !next.KillDisallowedProcess
	case "x":
		next.AllowExtensions = !next.AllowExtensions
	case "+", "=":
		next.DefaultSessionMinutes += 5
	case "-":
		next.DefaultSessionMinutes -= 5
	case "s":
		changed = false
		m.setError(m.ctrl.EnterMaintenance())
	case "r":
		changed = false
		m.setError(m.ctrl.ResumeFromMaintenance())
	case "f":
		changed = false
		m.setError(m.ctrl.EndSession(m.ctx, model.EndReasonForced))
	default:
		changed = false
	}

	if changed {
		if err := m.ctrl.ApplyPolicy(next); err != nil {
			m.setError(err)
		} else {
			m.policy = m.ctrl.Policy()
			m.notice = "Policy saved"
		}
	}
	m.sync()
	return m, nil
}

// =============================================================================
// MAINTENANCE
// =============================================================================

func (m Model) handleMaintenanceKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "r":
		m.setError(m.ctrl.ResumeFromMaintenance())
	case "f":
		m.setError(m.ctrl.EndSession(m.ctx, model.EndReasonForced))
	}
	m.sync()
	return m, nil
}
