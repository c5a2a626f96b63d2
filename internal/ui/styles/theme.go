// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme holds the styles of every kiosk screen.
type Theme struct {
	IsDark       bool
	ColorProfile termenv.Profile

	Width  int
	Height int

	// ==========================================================================
	// FRAME
	// ==========================================================================

	Panel      lipgloss.Style
	AdminPanel lipgloss.Style
	Title      lipgloss.Style
	Subtitle   lipgloss.Style
	Banner     lipgloss.Style
	Help       lipgloss.Style

	// ==========================================================================
	// FORM
	// ==========================================================================

	Label        lipgloss.Style
	LabelFocused lipgloss.Style
	Value        lipgloss.Style

	// ==========================================================================
	// SESSION
	// ==========================================================================

	Clock        lipgloss.Style
	ClockWarning lipgloss.Style
	Item         lipgloss.Style
	ItemSelected lipgloss.Style

	// ==========================================================================
	// STATUS
	// ==========================================================================

	On     lipgloss.Style
	Off    lipgloss.Style
	Error  lipgloss.Style
	Notice lipgloss.Style
}

// NewTheme detects the terminal and builds the styles.
func NewTheme() *Theme {
	t := &Theme{
		IsDark:       termenv.HasDarkBackground(),
		ColorProfile: termenv.ColorProfile(),
		Width:        80,
		Height:       24,
	}
	t.initStyles()
	return t
}

func (t *Theme) initStyles() {
	t.Panel = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(Cyan).
		Padding(1, 3)
	t.AdminPanel = t.Panel.Copy().BorderForeground(Purple)

	t.Title = lipgloss.NewStyle().Bold(true).Foreground(Cyan)
	t.Subtitle = lipgloss.NewStyle().Foreground(TextSecondary)
	t.Banner = lipgloss.NewStyle().
		Bold(true).
		Foreground(TextInverse).
		Background(AmberDeep).
		Padding(0, 2)
	t.Help = lipgloss.NewStyle().Foreground(TextMuted).MarginTop(1)

	t.Label = lipgloss.NewStyle().Foreground(TextSecondary).Width(14)
	t.LabelFocused = t.Label.Copy().Foreground(Cyan).Bold(true)
	t.Value = lipgloss.NewStyle().Foreground(TextPrimary)

	t.Clock = lipgloss.NewStyle().Bold(true).Foreground(Emerald)
	t.ClockWarning = lipgloss.NewStyle().Bold(true).Foreground(Amber).Blink(true)
	t.Item = lipgloss.NewStyle().Foreground(TextPrimary).PaddingLeft(2)
	t.ItemSelected = lipgloss.NewStyle().
		Foreground(Cyan).
		Background(SurfaceBright).
		Bold(true).
		PaddingLeft(1).
		SetString(">")

	t.On = lipgloss.NewStyle().Foreground(Emerald)
	t.Off = lipgloss.NewStyle().Foreground(TextMuted)
	t.Error = lipgloss.NewStyle().Foreground(Rose).Bold(true)
	t.Notice = lipgloss.NewStyle().Foreground(Amber)
}

// SetSize records the terminal size.
func (t *Theme) SetSize(width, height int) {
	t.Width = width
	t.Height = height
}

// Center places s in the middle of the terminal.
func (t *Theme) Center(s string) string {
	return lipgloss.Place(t.Width, t.Height, lipgloss.Center, lipgloss.Center, s)
}

// Flag renders an on/off value.
func (t *Theme) Flag(on bool) string {
	if on {
		return t.On.Render("on")
	}
	return t.Off.Render("off")
}
