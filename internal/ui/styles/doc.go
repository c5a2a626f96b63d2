// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the palette and styles of the kiosk screens.

All colors are Lip Gloss AdaptiveColor values so the screens read on light
and dark terminals.

# Usage

	theme := styles.NewTheme()
	theme.SetSize(msg.Width, msg.Height)
	box := theme.Panel.Render(body)
	if status.Warning {
		clock = theme.ClockWarning.Render(clock)
	}
*/
package styles
