// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/publicpc/internal/model"
	"github.com/jeranaias/publicpc/internal/util"
)

// init configures lipgloss for the terminal we are writing to.
func init() {
	lipgloss.SetColorProfile(colorProfile(os.Stdout))
}

// =============================================================================
// SHARED STYLES
// =============================================================================

var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")). // Cyan
			MarginBottom(1)

	SectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("255")).
			MarginTop(1)

	LabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Width(22)

	ValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	SuccessStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	WarningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	DimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("242"))

	SeparatorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))
)

// =============================================================================
// HELPERS
// =============================================================================

// RenderSeparator renders a horizontal separator line. Default width is 70.
func RenderSeparator(width ...int) string {
	w := 70
	if len(width) > 0 && width[0] > 0 {
		w = width[0]
	}
	return SeparatorStyle.Render(strings.Repeat("=", w))
}

// RenderStatus renders a process or session status with its color.
func RenderStatus(status string) string {
	switch strings.ToLower(status) {
	case "ok", model.ProcessRunning, "open":
		return SuccessStyle.Render("[" + strings.ToUpper(status) + "]")
	case model.ProcessBlocked, "error", model.EndReasonForced:
		return ErrorStyle.Render("[" + strings.ToUpper(status) + "]")
	case model.EndReasonTimeout, model.EndReasonInterrupted:
		return WarningStyle.Render("[" + strings.ToUpper(status) + "]")
	default:
		return DimStyle.Render("[" + strings.ToUpper(status) + "]")
	}
}

// RenderLabel renders a label with consistent width.
func RenderLabel(label string, width ...int) string {
	if len(width) > 0 && width[0] > 0 {
		return LabelStyle.Copy().Width(width[0]).Render(label)
	}
	return LabelStyle.Render(label)
}

// RenderFlag renders a boolean setting.
func RenderFlag(on bool) string {
	if on {
		return SuccessStyle.Render("on")
	}
	return DimStyle.Render("off")
}

// column fits s into a table column of the given display width.
func column(s string, width int) string {
	return util.PadWidth(util.TruncateWidth(util.SingleLine(s), width), width)
}
