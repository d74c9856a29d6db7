// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package chat provides the full-screen chat view of the threadchat TUI.

The Model is a Bubble Tea model over an app.Coordinator. It never touches
the repositories directly: every action runs as a tea.Cmd that calls the
coordinator, and the screen re-reads app.State whenever the coordinator's
Updates channel fires.

# Layout

	┌ header: threadchat · <active title>             online ┐
	│ sidebar    │ degraded banner (when local only)         │
	│ ▸ chat 1   │ message list (viewport)                   │
	│   chat 2   │ 📎 pending attachments                    │
	│            │ composer (textarea) or prompt (textinput) │
	└ toasts, then the status bar with key help              ┘

Assistant messages are rendered as markdown with glamour. The composer is
disabled while the assistant is typing.

# Keys

	enter       send            ctrl+n      new chat
	alt+enter   newline         ctrl+r      rename
	tab         next chat       ctrl+x      delete (y/n)
	shift+tab   previous chat   ctrl+f      search sidebar
	ctrl+o      attach a file   esc         drop attachments
	ctrl+t      toggle theme    ctrl+l      retry the service
	ctrl+g      help            ctrl+c      quit

# Usage

	m := chat.New(chat.Options{
		Coordinator: rt.Coordinator,
		Theme:       styles.NewTheme(cfg.UI.Theme),
		Context:     ctx,
	})
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
*/
package chat
