// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// =============================================================================
// MARKDOWN RENDERING
// =============================================================================

// markdown renders assistant content with glamour, caching by message id.
// Plain content is returned when the renderer is unavailable.
func (m *Model) markdown(id, content string, width int) string {
	if m.renderer == nil || m.renderWidth != width || m.renderDark != m.theme.IsDark {
		m.renderWidth = width
		m.renderDark = m.theme.IsDark
		m.mdCache = map[string]string{}
		m.renderer = nil

		style := "light"
		if m.theme.IsDark {
			style = "dark"
		}
		r, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(style),
			glamour.WithColorProfile(m.theme.ColorProfile),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			m.logger.Warn("markdown renderer unavailable", "error", err)
			return content
		}
		m.renderer = r
	}

	if out, ok := m.mdCache[id]; ok && id != "" {
		return out
	}
	out, err := m.renderer.Render(content)
	if err != nil {
		m.logger.Debug("markdown render failed", "message_id", id, "error", err)
		return content
	}
	out = strings.Trim(out, "\n")
	if id != "" {
		m.mdCache[id] = out
	}
	return out
}
