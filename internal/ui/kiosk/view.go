// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package kiosk

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/publicpc/internal/mode"
	"github.com/jeranaias/publicpc/internal/policy"
	"github.com/jeranaias/publicpc/internal/session"
	"github.com/jeranaias/publicpc/internal/util"
)

// programWidth bounds program names in the session list.
const programWidth = 40

func itoa(n int) string {
	return strconv.Itoa(n)
}

// View renders the screen for the current mode.
func (m Model) View() string {
	var body string
	switch m.mode {
	case mode.Locked:
		body = m.viewLocked()
	case mode.LoggingIn:
		body = m.viewLogin()
	case mode.ActiveSession:
		body = m.viewSession()
	case mode.AdminPanel:
		body = m.viewAdmin()
	case mode.Maintenance:
		body = m.viewMaintenance()
	}

	if m.prompting {
		body = m.viewPrompt()
	}
	if m.err != "" {
		body = lipgloss.JoinVertical(lipgloss.Left, body, "", m.theme.Error.Render(m.err))
	}
	return m.theme.Center(body)
}

func (m Model) header(title string) string {
	station := util.TruncateWidth(m.station, 30)
	return lipgloss.JoinVertical(lipgloss.Left,
		m.theme.Title.Render(title),
		m.theme.Subtitle.Render(station),
		"",
	)
}

func (m Model) viewLocked() string {
	lines := []string{m.header("Public Workstation")}
	switch {
	case m.ctrl.MaintenanceActive():
		lines = append(lines, m.theme.Banner.Render("Under maintenance"))
	case m.policy.AdminOnly():
		lines = append(lines, m.theme.Banner.Render("Staff use only"))
	default:
		lines = append(lines, "Press Enter to start a session.")
	}
	lines = append(lines, m.theme.Help.Render("ctrl+a administrator"))
	return m.theme.Panel.Render(strings.Join(lines, "\n"))
}

func (m Model) viewLogin() string {
	labels := []string{"Name", "ID", "Purpose", "Minutes"}
	lines := []string{m.header("Sign in")}
	for i, label := range labels {
		style := m.theme.Label
		if m.focus == i {
			style = m.theme.LabelFocused
		}
		lines = append(lines, style.Render(label)+m.inputs[i].View())
	}

	box := "[ ]"
	if m.consent {
		box = "[x]"
	}
	style := m.theme.Label
	if m.focus == fieldConsent {
		style = m.theme.LabelFocused
	}
	lines = append(lines, "", style.Render("Consent")+box+" I agree that this session is logged.")
	lines = append(lines, m.theme.Help.Render(fmt.Sprintf(
		"%d-%d minutes  tab next  space toggle  enter submit  esc back",
		policy.MinSessionMinutes, m.policy.MaxSessionMinutes)))
	return m.theme.Panel.Render(strings.Join(lines, "\n"))
}

func (m Model) viewSession() string {
	status := m.ctrl.Countdown()
	clock := session.FormatDuration(status.Remaining)
	if status.Warning {
		clock = m.theme.ClockWarning.Render(clock + " remaining")
	} else {
		clock = m.theme.Clock.Render(clock + " remaining")
	}

	title := "Session"
	var ext string
	if s := m.ctrl.Session(); s != nil {
		title = "Welcome, " + util.TruncateWidth(s.UserName, 24)
		ext = fmt.Sprintf("extensions left: %d", s.ExtensionsRemaining())
	}
	lines := []string{m.header(title), clock, m.theme.Subtitle.Render(ext), ""}

	programs := m.policy.AllowedPrograms
	if len(programs) == 0 {
		lines = append(lines, m.theme.Subtitle.Render("No programs are available."))
	}
	for i, p := range programs {
		name := util.TruncateWidth(p.DisplayName, programWidth)
		if i == m.selected {
			lines = append(lines, m.theme.ItemSelected.Render(name))
		} else {
			lines = append(lines, m.theme.Item.Render(name))
		}
	}

	if m.notice != "" {
		lines = append(lines, "", m.theme.Notice.Render(m.notice))
	}
	lines = append(lines, m.theme.Help.Render("enter launch  ctrl+e extend  ctrl+l log out"))
	return m.theme.Panel.Render(strings.Join(lines, "\n"))
}

func (m Model) viewAdmin() string {
	p := m.policy
	row := func(label, value string) string {
		return m.theme.Label.Render(label) + value
	}

	lines := []string{
		m.header("Administration"),
		row("Mode", m.theme.Value.Render(p.Mode().String())),
		row("Kill", m.theme.Flag(p.KillDisallowedProcess)),
		row("Extensions", m.theme.Flag(p.AllowExtensions)),
		row("Default", m.theme.Value.Render(fmt.Sprintf("%d min", p.DefaultSessionMinutes))),
		row("Maximum", m.theme.Value.Render(fmt.Sprintf("%d min", p.MaxSessionMinutes))),
		row("Programs", m.theme.Value.Render(itoa(len(p.AllowedPrograms)))),
		row("Maintenance", m.theme.Flag(m.ctrl.MaintenanceActive())),
	}
	if s := m.ctrl.Session(); s != nil {
		lines = append(lines, row("Session", m.theme.Value.Render(
			util.TruncateWidth(s.UserName, 24)+" "+session.FormatDuration(m.ctrl.Countdown().Remaining))))
	}
	if m.notice != "" {
		lines = append(lines, "", m.theme.Notice.Render(m.notice))
	}
	lines = append(lines, m.theme.Help.Render(
		"m mode  k kill  x extensions  +/- minutes\ns maintenance  r resume  f end session  esc close  q quit"))
	return m.theme.AdminPanel.Render(strings.Join(lines, "\n"))
}

func (m Model) viewMaintenance() string {
	lines := []string{
		m.header("Maintenance"),
		m.theme.Banner.Render("Monitoring is suspended"),
		m.theme.Help.Render("r resume  f end session  ctrl+a administrator"),
	}
	return m.theme.AdminPanel.Render(strings.Join(lines, "\n"))
}

func (m Model) viewPrompt() string {
	title := "Administrator"
	hint := "Enter the administrator secret."
	if !m.ctrl.AdminConfigured() {
		title = "Create administrator secret"
		hint = "No secret is set. The value entered becomes the secret."
	}
	lines := []string{
		m.header(title),
		m.theme.Subtitle.Render(hint),
		m.secret.View(),
		m.theme.Help.Render("enter confirm  esc cancel"),
	}
	return m.theme.AdminPanel.Render(strings.Join(lines, "\n"))
}
