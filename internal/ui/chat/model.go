// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/threadchat/internal/app"
	"github.com/jeranaias/threadchat/internal/logging"
	"github.com/jeranaias/threadchat/internal/model"
	"github.com/jeranaias/threadchat/internal/ui/styles"
)

// =============================================================================
// INPUT MODE
// =============================================================================

// Mode is what the bottom input area is currently used for.
type Mode int

const (
	ModeCompose       Mode = iota // Typing a message
	ModeSearch                    // Filtering the sidebar
	ModeRename                    // Editing the active thread's title
	ModeAttach                    // Entering a file path
	ModeConfirmDelete             // Waiting for y/n
)

func (m Mode) String() string {
	switch m {
	case ModeCompose:
		return "compose"
	case ModeSearch:
		return "search"
	case ModeRename:
		return "rename"
	case ModeAttach:
		return "attach"
	case ModeConfirmDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Layout constants.
const (
	sidebarWidth   = 30
	composerHeight = 3
	maxToasts      = 3
)

// =============================================================================
// CHAT MODEL
// =============================================================================

// Options configures a Model.
type Options struct {
	Coordinator *app.Coordinator
	Theme       *styles.Theme

	// Context bounds every coordinator call. Nil means Background.
	Context context.Context
	Logger  *slog.Logger

	// Offline is shown in the header; it does not change behavior.
	Offline bool
}

// Model is the Bubble Tea model for the chat screen.
type Model struct {
	ctx    context.Context
	coord  *app.Coordinator
	theme  *styles.Theme
	logger *slog.Logger
	keys   KeyMap

	// Dimensions
	width      int
	height     int
	bodyHeight int

	// Coordinator snapshot
	state   app.State
	visible []model.Thread // sidebar rows after the search filter
	offline bool

	// Interaction
	mode     Mode
	query    string
	deleteID string
	sending  bool
	pending  []model.Attachment
	toasts   []app.Notification
	showHelp bool

	// Background loops
	spinning bool
	ticking  bool

	// UI Components
	composer textarea.Model
	prompt   textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	help     help.Model

	// Markdown rendering
	renderer    *glamour.TermRenderer
	renderWidth int
	renderDark  bool
	mdCache     map[string]string
	dirty       bool
	shownID     string
	shownCount  int

	now func() time.Time
}

// New creates the chat model.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	theme := opts.Theme
	if theme == nil {
		theme = styles.NewTheme(string(styles.ModeAuto))
	}

	keys := DefaultKeyMap()

	ta := textarea.New()
	ta.Placeholder = "Type a message..."
	ta.ShowLineNumbers = false
	ta.Prompt = "┃ "
	ta.CharLimit = 0
	ta.SetHeight(composerHeight)
	ta.KeyMap.InsertNewline.SetKeys(keys.Newline.Keys()...)
	ta.Focus()

	ti := textinput.New()
	ti.CharLimit = 1024

	vp := viewport.New(80, 20)

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = theme.Spinner

	return Model{
		ctx:      ctx,
		coord:    opts.Coordinator,
		theme:    theme,
		logger:   logging.OrDiscard(opts.Logger).With("component", "tui"),
		keys:     keys,
		width:    80,
		height:   24,
		offline:  opts.Offline,
		mode:     ModeCompose,
		composer: ta,
		prompt:   ti,
		viewport: vp,
		spinner:  sp,
		help:     help.New(),
		mdCache:  map[string]string{},
		dirty:    true,
		now:      time.Now,
	}
}

// =============================================================================
// BUBBLE TEA INTERFACE
// =============================================================================

// Init starts listening to the coordinator and loads threads.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textarea.Blink,
		waitForUpdate(m.coord.Updates()),
		waitForNotification(m.coord.Notifications()),
		runAction(m.ctx, ActionInit, m.coord.Init),
	)
}

// =============================================================================
// ACCESSORS
// =============================================================================

// Mode returns the current input mode.
func (m Model) Mode() Mode {
	return m.mode
}

// Query returns the active sidebar filter.
func (m Model) Query() string {
	return m.query
}

// Pending returns the attachments queued for the next message.
func (m Model) Pending() []model.Attachment {
	return m.pending
}

// Toasts returns the notifications currently on screen.
func (m Model) Toasts() []app.Notification {
	return m.toasts
}

// Theme returns the active theme.
func (m Model) Theme() *styles.Theme {
	return m.theme
}

// Sending reports whether a message is in flight.
func (m Model) Sending() bool {
	return m.sending
}

// ComposerValue returns the text in the composer.
func (m Model) ComposerValue() string {
	return m.composer.Value()
}

// SetComposerValue replaces the text in the composer.
func (m *Model) SetComposerValue(s string) {
	m.composer.SetValue(s)
}

// busy reports whether the composer must reject input.
func (m Model) busy() bool {
	return m.sending || m.state.Typing
}
