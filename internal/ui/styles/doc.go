// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the color palette and lipgloss styles of the
threadchat TUI.

# Colors (colors.go)

Every color is a lipgloss.AdaptiveColor with a light and a dark variant:

	Purple  - assistant messages, selection
	Cyan    - user messages, brand
	Emerald - success toasts
	Rose    - errors
	Amber   - warnings, offline banner
	Sky     - info toasts

# Theme (theme.go)

A Theme resolves the palette for one background. The "auto" mode asks the
terminal (termenv) whether its background is dark; "dark" and "light" skip
detection. Toggle flips the palette at runtime:

	theme := styles.NewTheme(cfg.UI.Theme)
	theme.Toggle()
	toast := theme.Toast("warning").Render("Using offline mode.")
*/
package styles
