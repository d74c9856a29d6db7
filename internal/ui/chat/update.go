// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/threadchat/internal/app"
	"github.com/jeranaias/threadchat/internal/messages"
	"github.com/jeranaias/threadchat/internal/model"
	"github.com/jeranaias/threadchat/internal/threads"
)

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.dirty = true

	case StateChangedMsg:
		m.refresh()
		cmds = append(cmds, waitForUpdate(m.coord.Updates()), m.startSpinner())

	case NotificationMsg:
		cmds = append(cmds, waitForNotification(m.coord.Notifications()), m.pushToast(msg.Notification))

	case toastTickMsg:
		cmds = append(cmds, m.expireToasts(time.Time(msg)))

	case spinner.TickMsg:
		if !m.activity() {
			m.spinning = false
			break
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case ActionDoneMsg:
		cmds = append(cmds, m.handleActionDone(msg))

	case tea.KeyMsg:
		var cmd tea.Cmd
		m, cmd = m.handleKey(msg)
		cmds = append(cmds, cmd)

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		cmds = append(cmds, cmd)
	}

	m.layout()
	if m.dirty {
		m.syncViewport()
	}
	return m, batch(cmds...)
}

// batch is tea.Batch that hands back a lone command unwrapped.
func batch(cmds ...tea.Cmd) tea.Cmd {
	var valid []tea.Cmd
	for _, c := range cmds {
		if c != nil {
			valid = append(valid, c)
		}
	}
	switch len(valid) {
	case 0:
		return nil
	case 1:
		return valid[0]
	default:
		return tea.Batch(valid...)
	}
}

// =============================================================================
// STATE
// =============================================================================

// refresh pulls a new snapshot from the coordinator.
func (m *Model) refresh() {
	m.state = m.coord.State()
	m.filter()
	m.dirty = true

	if m.mode == ModeCompose && !m.busy() {
		m.composer.Focus()
	} else {
		m.composer.Blur()
	}
}

// filter recomputes the sidebar rows for the current query.
func (m *Model) filter() {
	if m.query == "" {
		m.visible = m.state.Threads
		return
	}
	m.visible = m.coord.Search(m.query)
}

func (m Model) activity() bool {
	return m.busy() || m.state.Loading
}

func (m *Model) startSpinner() tea.Cmd {
	if m.spinning || !m.activity() {
		return nil
	}
	m.spinning = true
	return m.spinner.Tick
}

// =============================================================================
// TOASTS
// =============================================================================

func (m *Model) pushToast(n app.Notification) tea.Cmd {
	m.toasts = append(m.toasts, n)
	if len(m.toasts) > maxToasts {
		m.toasts = m.toasts[len(m.toasts)-maxToasts:]
	}
	if m.ticking {
		return nil
	}
	m.ticking = true
	return toastTick()
}

// toast raises a notification that did not come from the coordinator.
func (m *Model) toast(kind app.Kind, text string) tea.Cmd {
	return m.pushToast(app.Notification{
		Kind:     kind,
		Message:  text,
		Duration: app.DefaultNotificationDuration,
		At:       m.now(),
	})
}

func (m *Model) expireToasts(now time.Time) tea.Cmd {
	kept := m.toasts[:0]
	for _, n := range m.toasts {
		if !n.Expired(now) {
			kept = append(kept, n)
		}
	}
	m.toasts = kept
	if len(m.toasts) == 0 {
		m.ticking = false
		return nil
	}
	return toastTick()
}

// =============================================================================
// ACTION RESULTS
// =============================================================================

func (m *Model) handleActionDone(msg ActionDoneMsg) tea.Cmd {
	var cmd tea.Cmd

	if msg.Action == ActionSend {
		m.sending = false
		if rejected(msg.Err) {
			if strings.TrimSpace(m.composer.Value()) == "" {
				m.composer.SetValue(msg.Text)
			}
			m.pending = append(append([]model.Attachment(nil), msg.Files...), m.pending...)
		}
	}

	if msg.Err != nil && !errors.Is(msg.Err, context.Canceled) {
		m.logger.Debug("action failed", "action", msg.Action, "error", msg.Err)
		if unreported(msg.Err) {
			cmd = m.toast(app.KindError, app.Describe(msg.Err))
		}
	}

	m.refresh()
	return cmd
}

// rejected reports a send that failed before the message was added.
func rejected(err error) bool {
	var verr *model.ValidationError
	return errors.As(err, &verr) || errors.Is(err, messages.ErrBusy) || errors.Is(err, messages.ErrNoThread)
}

// unreported reports failures the coordinator returns without raising a
// notification.
func unreported(err error) bool {
	var verr *model.ValidationError
	return errors.As(err, &verr) || errors.Is(err, messages.ErrBusy) || errors.Is(err, threads.ErrNotFound)
}

// =============================================================================
// KEY HANDLING
// =============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		return m, tea.Quit
	}

	switch m.mode {
	case ModeSearch, ModeRename, ModeAttach:
		return m.handlePromptKey(msg)
	case ModeConfirmDelete:
		return m.handleConfirmKey(msg)
	default:
		return m.handleComposeKey(msg)
	}
}

func (m Model) handleComposeKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	coord := m.coord

	switch {
	case key.Matches(msg, m.keys.Send):
		return m.submit()

	case key.Matches(msg, m.keys.NewThread):
		return m, runAction(m.ctx, ActionCreate, func(ctx context.Context) error {
			_, err := coord.CreateThread(ctx)
			return err
		})

	case key.Matches(msg, m.keys.Rename):
		if m.state.Active == nil {
			return m, m.toast(app.KindInfo, app.Describe(messages.ErrNoThread))
		}
		return m, m.openPrompt(ModeRename, "Rename: ", m.state.Active.Title)

	case key.Matches(msg, m.keys.Delete):
		if m.state.Active == nil {
			return m, m.toast(app.KindInfo, app.Describe(messages.ErrNoThread))
		}
		m.deleteID = m.state.Active.ID
		m.mode = ModeConfirmDelete
		m.composer.Blur()
		return m, nil

	case key.Matches(msg, m.keys.Search):
		return m, m.openPrompt(ModeSearch, "Search: ", m.query)

	case key.Matches(msg, m.keys.NextThread):
		return m, m.cycleThread(1)

	case key.Matches(msg, m.keys.PrevThread):
		return m, m.cycleThread(-1)

	case key.Matches(msg, m.keys.Attach):
		return m, m.openPrompt(ModeAttach, "Attach: ", "")

	case key.Matches(msg, m.keys.ClearPending):
		if len(m.pending) > 0 {
			m.pending = nil
			m.dirty = true
		}
		return m, nil

	case key.Matches(msg, m.keys.ToggleTheme):
		m.theme.Toggle()
		m.spinner.Style = m.theme.Spinner
		m.mdCache = map[string]string{}
		m.dirty = true
		return m, m.toast(app.KindInfo, "Theme: "+m.theme.Name())

	case key.Matches(msg, m.keys.Retry):
		return m, runAction(m.ctx, ActionRetry, coord.Retry)

	case key.Matches(msg, m.keys.PageUp):
		m.viewport.HalfViewUp()
		return m, nil

	case key.Matches(msg, m.keys.PageDown):
		m.viewport.HalfViewDown()
		return m, nil

	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		return m, nil
	}

	if m.busy() {
		return m, nil
	}
	var cmd tea.Cmd
	m.composer, cmd = m.composer.Update(msg)
	return m, cmd
}

// submit sends the composer text and pending files. Nothing happens while
// the assistant is answering or when there is nothing to send.
func (m Model) submit() (Model, tea.Cmd) {
	if m.busy() {
		return m, nil
	}
	text := m.composer.Value()
	if strings.TrimSpace(text) == "" && len(m.pending) == 0 {
		return m, nil
	}

	files := m.pending
	m.pending = nil
	m.composer.Reset()
	m.composer.Blur()
	m.sending = true
	m.dirty = true
	return m, sendCmd(m.ctx, m.coord, text, files)
}

// cycleThread selects the sidebar row delta steps away from the active one.
func (m Model) cycleThread(delta int) tea.Cmd {
	n := len(m.visible)
	if n == 0 {
		return nil
	}
	idx := -1
	for i, t := range m.visible {
		if t.ID == m.state.ActiveID {
			idx = i
			break
		}
	}
	var next int
	switch {
	case idx < 0 && delta < 0:
		next = n - 1
	case idx < 0:
		next = 0
	default:
		next = ((idx+delta)%n + n) % n
	}
	if next == idx {
		return nil
	}

	id := m.visible[next].ID
	coord := m.coord
	return runAction(m.ctx, ActionSelect, func(ctx context.Context) error {
		return coord.SelectThread(ctx, id)
	})
}

// =============================================================================
// PROMPTS
// =============================================================================

func (m *Model) openPrompt(mode Mode, label, value string) tea.Cmd {
	m.mode = mode
	m.prompt.Prompt = label
	m.prompt.SetValue(value)
	m.prompt.CursorEnd()
	m.composer.Blur()
	return m.prompt.Focus()
}

func (m *Model) closePrompt() {
	m.mode = ModeCompose
	m.prompt.Blur()
	m.prompt.Reset()
	if !m.busy() {
		m.composer.Focus()
	}
}

func (m Model) handlePromptKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Cancel):
		if m.mode == ModeSearch {
			m.query = ""
			m.filter()
			m.dirty = true
		}
		m.closePrompt()
		return m, nil

	case key.Matches(msg, m.keys.Confirm):
		mode := m.mode
		value := m.prompt.Value()
		m.closePrompt()

		switch mode {
		case ModeSearch:
			m.query = strings.TrimSpace(value)
			m.filter()
			return m, nil
		case ModeRename:
			if m.state.Active == nil {
				return m, nil
			}
			id := m.state.Active.ID
			coord := m.coord
			return m, runAction(m.ctx, ActionRename, func(ctx context.Context) error {
				return coord.RenameThread(ctx, id, value)
			})
		case ModeAttach:
			return m, m.attach(value)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.prompt, cmd = m.prompt.Update(msg)
	if m.mode == ModeSearch {
		m.query = strings.TrimSpace(m.prompt.Value())
		m.filter()
	}
	return m, cmd
}

func (m Model) handleConfirmKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Yes):
		id := m.deleteID
		coord := m.coord
		m.deleteID = ""
		m.closePrompt()
		return m, runAction(m.ctx, ActionDelete, func(ctx context.Context) error {
			return coord.DeleteThread(ctx, id)
		})
	case key.Matches(msg, m.keys.No):
		m.deleteID = ""
		m.closePrompt()
	}
	return m, nil
}

// attach queues the file at path for the next message.
func (m *Model) attach(path string) tea.Cmd {
	path = expandHome(strings.TrimSpace(path))
	if path == "" {
		return nil
	}
	a, err := model.AttachmentFromFile(path)
	if err != nil {
		m.logger.Debug("attach failed", "path", path, "error", err)
		return m.toast(app.KindError, "Could not attach "+filepath.Base(path)+".")
	}
	m.pending = append(m.pending, a)
	m.dirty = true
	return nil
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// =============================================================================
// LAYOUT
// =============================================================================

// layout sizes the components for the current window and content.
func (m *Model) layout() {
	mainWidth := m.width - sidebarWidth
	if mainWidth < 20 {
		mainWidth = 20
	}

	body := m.height - 1 - len(m.toasts) - lipgloss.Height(m.renderStatus())
	if body < 6 {
		body = 6
	}
	m.bodyHeight = body

	height := body
	if m.state.Degraded {
		height--
	}
	if len(m.pending) > 0 {
		height--
	}
	if m.mode == ModeCompose {
		height -= composerHeight + 2
	} else {
		height -= 3
	}
	if height < 1 {
		height = 1
	}

	if m.viewport.Width != mainWidth || m.viewport.Height != height {
		m.viewport.Width = mainWidth
		m.viewport.Height = height
		m.dirty = true
	}
	m.composer.SetWidth(mainWidth - 2)
	m.prompt.Width = mainWidth - 5 - len(m.prompt.Prompt)
	m.help.Width = m.width
}

// syncViewport re-renders the message list and keeps the newest message in
// view when the conversation grows.
func (m *Model) syncViewport() {
	m.dirty = false
	follow := m.viewport.AtBottom() ||
		m.state.ActiveID != m.shownID ||
		len(m.state.Messages) != m.shownCount
	m.shownID = m.state.ActiveID
	m.shownCount = len(m.state.Messages)

	m.viewport.SetContent(m.renderMessages(m.viewport.Width))
	if follow {
		m.viewport.GotoBottom()
	}
}
