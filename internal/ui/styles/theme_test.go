// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"
	"testing"
)

func TestNewTheme(t *testing.T) {
	theme := NewTheme()
	if theme == nil {
		t.Fatal("NewTheme returned nil")
	}
	if theme.Width != 80 || theme.Height != 24 {
		t.Errorf("default size = %dx%d, want 80x24", theme.Width, theme.Height)
	}
}

func TestSetSizeAndCenter(t *testing.T) {
	theme := NewTheme()
	theme.SetSize(40, 5)

	out := theme.Center("hi")
	lines := strings.Split(out, "\n")
	if len(lines) != 5 {
		t.Fatalf("Center produced %d lines, want 5", len(lines))
	}
	if !strings.Contains(lines[2], "hi") {
		t.Errorf("middle line %q does not contain the text", lines[2])
	}
}

func TestFlag(t *testing.T) {
	theme := NewTheme()
	if !strings.Contains(theme.Flag(true), "on") {
		t.Error("Flag(true) should contain \"on\"")
	}
	if !strings.Contains(theme.Flag(false), "off") {
		t.Error("Flag(false) should contain \"off\"")
	}
}
