// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/threadchat/internal/app"
	"github.com/jeranaias/threadchat/internal/model"
	"github.com/jeranaias/threadchat/internal/threads"
	"github.com/jeranaias/threadchat/internal/util"
)

// View renders the whole screen.
func (m Model) View() string {
	main := []string{}
	if banner := m.renderBanner(); banner != "" {
		main = append(main, banner)
	}
	main = append(main, m.viewport.View())
	if pending := m.renderPending(); pending != "" {
		main = append(main, pending)
	}
	main = append(main, m.renderInput())

	body := lipgloss.JoinHorizontal(lipgloss.Top,
		m.renderSidebar(m.bodyHeight),
		lipgloss.JoinVertical(lipgloss.Left, main...),
	)

	parts := []string{m.renderHeader(), body}
	if toasts := m.renderToasts(); toasts != "" {
		parts = append(parts, toasts)
	}
	parts = append(parts, m.renderStatus())
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

// =============================================================================
// HEADER AND BANNER
// =============================================================================

func (m Model) renderHeader() string {
	left := m.theme.HeaderTitle.Render("threadchat")
	if m.state.Active != nil {
		left += m.theme.HeaderMeta.Render(" · ") + util.SingleLine(m.state.Active.Title)
	}
	right := m.theme.HeaderMeta.Render(m.connection())

	gap := m.width - 2 - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	return m.theme.Header.Width(m.width).MaxHeight(1).Render(left + strings.Repeat(" ", gap) + right)
}

// connection describes where chats are currently read from.
func (m Model) connection() string {
	switch {
	case m.offline:
		return "offline mode"
	case m.state.Repo == threads.StateLoading:
		return "connecting..."
	case m.state.Degraded:
		return "local only"
	case m.state.Repo == threads.StateReady:
		return "online"
	default:
		return ""
	}
}

func (m Model) renderBanner() string {
	if !m.state.Degraded {
		return ""
	}
	text := "Offline mode: chats are stored on this machine."
	if !m.offline {
		text = "⚠ Chat service unavailable. Chats are saved on this machine. Press ctrl+l to retry."
		if m.state.Error != "" {
			text = "⚠ " + m.state.Error + " Chats are saved on this machine. Press ctrl+l to retry."
		}
	}
	return m.theme.DegradedBanner.Render(util.TruncateWidth(text, m.viewport.Width-2))
}

// =============================================================================
// SIDEBAR
// =============================================================================

func (m Model) renderSidebar(height int) string {
	inner := sidebarWidth - 3
	var lines []string

	lines = append(lines, m.theme.SidebarTitle.Render(fmt.Sprintf("Chats (%d)", len(m.state.Threads))))
	if m.query != "" || m.mode == ModeSearch {
		style := m.theme.SidebarSearch
		if m.mode == ModeSearch {
			style = m.theme.SidebarSearchActive
		}
		lines = append(lines, style.Render(util.TruncateWidth("/ "+m.query, inner)))
	}

	switch {
	case len(m.visible) == 0 && m.query != "":
		lines = append(lines, m.theme.SidebarEmpty.Render("No matches."))
	case len(m.visible) == 0 && m.state.Loading:
		lines = append(lines, m.theme.SidebarEmpty.Render("Loading..."))
	case len(m.visible) == 0:
		lines = append(lines, m.theme.SidebarEmpty.Render("No chats yet."))
	default:
		used := lipgloss.Height(strings.Join(lines, "\n"))
		lines = append(lines, m.sidebarRows(height-used, inner)...)
	}

	return m.theme.Sidebar.
		Width(sidebarWidth - 1).
		Height(height).
		MaxHeight(height).
		Render(strings.Join(lines, "\n"))
}

// sidebarRows renders as many threads as fit in height, keeping the active
// one visible. Each thread takes two lines.
func (m Model) sidebarRows(height, width int) []string {
	capacity := height / 2
	if capacity < 1 {
		capacity = 1
	}

	active := 0
	for i, t := range m.visible {
		if t.ID == m.state.ActiveID {
			active = i
			break
		}
	}
	start := 0
	if active >= capacity {
		start = active - capacity + 1
	}
	end := start + capacity
	if end > len(m.visible) {
		end = len(m.visible)
	}

	now := m.now()
	rows := make([]string, 0, 2*(end-start))
	for _, t := range m.visible[start:end] {
		marker, style := "  ", m.theme.SidebarItem
		if t.ID == m.state.ActiveID {
			marker, style = "▸ ", m.theme.SidebarItemActive
		}
		title := util.TruncateWidth(util.SingleLine(t.Title), width-2)
		n := len(t.Messages)
		meta := fmt.Sprintf("%d %s · %s", n, util.Plural(n, "message"), shortAge(t.UpdatedAt, now))
		rows = append(rows,
			style.Render(marker+title),
			m.theme.SidebarItemMeta.Render("  "+util.TruncateWidth(meta, width-2)),
		)
	}
	return rows
}

// shortAge formats how long ago t was, coarsely.
func shortAge(t, now time.Time) string {
	if t.IsZero() {
		return "never"
	}
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "now"
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	default:
		return t.Local().Format("Jan 2")
	}
}

// =============================================================================
// MESSAGE LIST
// =============================================================================

// renderMessages renders the active thread for a column of width cells.
func (m *Model) renderMessages(width int) string {
	if m.state.Active == nil {
		if m.state.Loading {
			return m.theme.EmptyState.Render("Loading chats...")
		}
		return m.theme.EmptyState.Render("No chat selected. Press ctrl+n to start one.")
	}
	if len(m.state.Messages) == 0 {
		return m.theme.EmptyState.Render("No messages yet. Say hello!")
	}

	blocks := make([]string, 0, len(m.state.Messages)+1)
	for _, msg := range m.state.Messages {
		blocks = append(blocks, m.renderMessage(msg, width))
	}
	if m.state.Typing {
		blocks = append(blocks, m.theme.Typing.Render("Assistant is typing..."))
	}
	return strings.Join(blocks, "\n\n")
}

func (m *Model) renderMessage(msg model.Message, width int) string {
	var label, bubble lipgloss.Style
	switch msg.Role {
	case model.RoleUser:
		label, bubble = m.theme.UserLabel, m.theme.UserBubble
	case model.RoleAssistant:
		label, bubble = m.theme.AssistantLabel, m.theme.AssistantBubble
	default:
		label, bubble = m.theme.SystemLabel, m.theme.SystemBubble
	}

	header := label.Render(msg.Role.DisplayName())
	if !msg.CreatedAt.IsZero() {
		header += " " + m.theme.Timestamp.Render(msg.CreatedAt.Local().Format("15:04"))
	}

	inner := width - 4
	if inner < 10 {
		inner = 10
	}
	content := msg.Content
	if msg.Role == model.RoleAssistant {
		content = m.markdown(msg.ID, msg.Content, inner)
	}
	if msg.HasFiles() {
		files := make([]string, len(msg.Files))
		for i, f := range msg.Files {
			files[i] = m.theme.Attachment.Render(util.TruncateWidth("📎 "+describeFile(f), inner))
		}
		content = strings.TrimRight(content, "\n") + "\n" + strings.Join(files, "\n")
	}

	return header + "\n" + bubble.Width(width-2).Render(content)
}

func describeFile(f model.Attachment) string {
	if f.MimeType == "" {
		return fmt.Sprintf("%s (%s)", f.Name, formatSize(f.Size))
	}
	return fmt.Sprintf("%s (%s, %s)", f.Name, formatSize(f.Size), f.MimeType)
}

func formatSize(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}

// =============================================================================
// INPUT AREA
// =============================================================================

func (m Model) renderPending() string {
	if len(m.pending) == 0 {
		return ""
	}
	names := make([]string, len(m.pending))
	for i, f := range m.pending {
		names[i] = f.Name
	}
	text := fmt.Sprintf("📎 %d %s: %s (esc to drop)", len(m.pending), util.Plural(len(m.pending), "file"), strings.Join(names, ", "))
	return m.theme.Pending.Render(util.TruncateWidth(text, m.viewport.Width))
}

func (m Model) renderInput() string {
	width := m.viewport.Width - 2
	switch m.mode {
	case ModeSearch, ModeRename, ModeAttach:
		return m.theme.Prompt.Width(width).Render(m.theme.PromptLabel.Render(m.prompt.View()))
	case ModeConfirmDelete:
		title := ""
		for _, t := range m.state.Threads {
			if t.ID == m.deleteID {
				title = t.Title
				break
			}
		}
		q := fmt.Sprintf("Delete %q? (y/n)", util.TruncateWidth(util.SingleLine(title), width-20))
		return m.theme.Prompt.Width(width).Render(m.theme.PromptLabel.Render(q))
	}

	style := m.theme.Composer
	if m.busy() {
		style = m.theme.ComposerDisabled
	}
	return style.Render(m.composer.View())
}

// =============================================================================
// TOASTS AND STATUS
// =============================================================================

var toastPrefix = map[app.Kind]string{
	app.KindSuccess: "✓ ",
	app.KindError:   "✗ ",
	app.KindWarning: "⚠ ",
	app.KindInfo:    "ℹ ",
}

func (m Model) renderToasts() string {
	if len(m.toasts) == 0 {
		return ""
	}
	lines := make([]string, len(m.toasts))
	for i, n := range m.toasts {
		text := util.TruncateWidth(toastPrefix[n.Kind]+util.SingleLine(n.Message), m.width-2)
		lines[i] = m.theme.Toast(string(n.Kind)).Render(text)
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderStatus() string {
	if m.showHelp && m.mode == ModeCompose {
		return m.help.FullHelpView(m.keys.FullHelp())
	}

	var left string
	switch m.mode {
	case ModeCompose:
		left = m.help.ShortHelpView(m.keys.ShortHelp())
	case ModeConfirmDelete:
		left = m.help.ShortHelpView([]key.Binding{m.keys.Yes, m.keys.No})
	default:
		left = m.help.ShortHelpView([]key.Binding{m.keys.Confirm, m.keys.Cancel})
	}

	right := ""
	switch {
	case m.state.Typing:
		right = m.spinner.View() + " Thinking..."
	case m.sending:
		right = m.spinner.View() + " Sending..."
	case m.state.Loading:
		right = m.spinner.View() + " Loading..."
	}

	gap := m.width - 2 - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	return m.theme.StatusBar.Width(m.width).MaxHeight(1).Render(left + strings.Repeat(" ", gap) + right)
}
