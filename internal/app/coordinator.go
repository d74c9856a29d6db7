// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jeranaias/threadchat/internal/config"
	"github.com/jeranaias/threadchat/internal/logging"
	"github.com/jeranaias/threadchat/internal/messages"
	"github.com/jeranaias/threadchat/internal/model"
	"github.com/jeranaias/threadchat/internal/storage"
	"github.com/jeranaias/threadchat/internal/threads"
)

// notificationBuffer bounds undelivered notifications; older ones are
// dropped when the presentation layer falls behind.
const notificationBuffer = 32

// Remote is everything the coordinator needs from the remote client.
type Remote interface {
	threads.Remote
	messages.Remote
}

// Fallback is everything the coordinator needs from the local store.
type Fallback interface {
	threads.Fallback
	messages.Fallback
}

// Options configures a Coordinator.
type Options struct {
	Config *config.Config

	// Remote may be nil, which forces offline operation. A nil Store is
	// replaced by an in-memory one.
	Remote Remote
	Store  Fallback
	Clock  *model.Clock
	Logger *slog.Logger
}

// State is a snapshot of everything the presentation layer renders.
type State struct {
	Threads  []model.Thread
	ActiveID string
	Active   *model.Thread
	Messages []model.Message
	Typing   bool
	Loading  bool
	Repo     threads.State
	Degraded bool

	// Error is the user-facing text of the last unresolved failure.
	Error string
}

// Coordinator composes the repositories into one set of state and actions.
type Coordinator struct {
	threads  *threads.Repository
	messages *messages.Repository
	clock    *model.Clock
	logger   *slog.Logger

	defaultTitle string
	welcome      string
	titleMax     int
	noteTTL      time.Duration

	mu       sync.Mutex
	activeID string
	loading  bool
	sending  bool

	notes   chan Notification
	updates chan struct{}
}

// New wires the repositories. A nil Config uses config.Default().
func New(opts Options) *Coordinator {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	clock := opts.Clock
	if clock == nil {
		clock = model.NewClock()
	}
	logger := logging.OrDiscard(opts.Logger)
	var store Fallback = storage.NewStore(storage.NewMemoryKV(), logger)
	if opts.Store != nil {
		store = opts.Store
	}

	c := &Coordinator{
		clock:        clock,
		logger:       logger.With("component", "app"),
		defaultTitle: cfg.Chat.DefaultTitle,
		welcome:      cfg.Chat.WelcomeMessage,
		titleMax:     cfg.Chat.TitleMaxLength,
		noteTTL:      cfg.UI.NotificationDuration.Duration,
		notes:        make(chan Notification, notificationBuffer),
		updates:      make(chan struct{}, 1),
	}
	if strings.TrimSpace(c.defaultTitle) == "" {
		c.defaultTitle = model.DefaultTitle
	}
	if c.welcome == "" {
		c.welcome = model.WelcomeMessage
	}
	if c.titleMax <= 0 {
		c.titleMax = model.DefaultTitleMaxLength
	}
	if c.noteTTL <= 0 {
		c.noteTTL = DefaultNotificationDuration
	}

	threadOpts := threads.Options{
		Remote:         opts.Remote,
		Store:          store,
		Clock:          clock,
		Logger:         logger,
		Offline:        cfg.Offline.Enabled,
		DefaultTitle:   c.defaultTitle,
		WelcomeMessage: c.welcome,
		OnChange:       c.changed,
	}
	messageOpts := messages.Options{
		Remote:      opts.Remote,
		Store:       store,
		Clock:       clock,
		Logger:      logger,
		TypingDelay: cfg.Chat.TypingDelay.Duration,
		OnChange:    c.changed,
	}
	if cfg.Offline.Enabled {
		messageOpts.Remote = nil
	}
	c.threads = threads.New(threadOpts)
	messageOpts.Local = c.threads.Degraded
	c.messages = messages.New(messageOpts)
	return c
}

// =============================================================================
// OBSERVATION
// =============================================================================

// Notifications delivers notifications in the order they were raised.
func (c *Coordinator) Notifications() <-chan Notification {
	return c.notes
}

// Updates fires (coalesced) whenever state may have changed.
func (c *Coordinator) Updates() <-chan struct{} {
	return c.updates
}

// ActiveID returns the selected thread id without auto-selecting.
func (c *Coordinator) ActiveID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeID
}

// State returns a snapshot. When no thread is selected and threads exist,
// the first one is selected.
func (c *Coordinator) State() State {
	c.ensureActive()

	c.mu.Lock()
	activeID := c.activeID
	loading := c.loading
	sending := c.sending
	c.mu.Unlock()

	list := c.threads.Threads()
	st := State{
		Threads:  list,
		ActiveID: activeID,
		Typing:   sending || c.messages.Typing(),
		Loading:  loading,
		Repo:     c.threads.State(),
		Degraded: c.threads.Degraded(),
		Messages: []model.Message{},
	}
	for i := range list {
		if list[i].ID == activeID {
			st.Active = &list[i]
			break
		}
	}
	if st.Active == nil {
		st.ActiveID = ""
	} else if c.messages.ThreadID() == activeID {
		st.Messages = c.messages.Messages()
	} else {
		st.Messages = model.CloneMessages(st.Active.Messages)
	}

	if err := c.messages.LastError(); err != nil {
		st.Error = Describe(err)
	}
	if err := c.threads.LastError(); err != nil {
		st.Error = Describe(err)
	}
	return st
}

// Search returns threads whose title or message content contains query,
// ignoring case.
func (c *Coordinator) Search(query string) []model.Thread {
	return c.threads.Search(query)
}

// =============================================================================
// ACTIONS
// =============================================================================

// Init loads threads. Falling back to local storage is reported as a
// warning, not an error; the returned error is the degradation cause.
func (c *Coordinator) Init(ctx context.Context) error {
	c.setLoading(true)
	err := c.threads.Init(ctx)
	c.setLoading(false)

	if err != nil {
		if errors.Is(err, threads.ErrOffline) {
			c.notify(KindInfo, "Offline mode: chats are stored on this machine.")
		} else {
			c.notify(KindWarning, "Failed to load threads. Using offline mode.")
		}
	}
	c.refreshActive()
	return err
}

// Retry clears the last error and reloads everything.
func (c *Coordinator) Retry(ctx context.Context) error {
	c.threads.ClearError()
	c.messages.ClearError()

	wasDegraded := c.threads.Degraded()
	err := c.Init(ctx)
	if err == nil && wasDegraded {
		c.notify(KindSuccess, "Reconnected to the chat service.")
	}
	return err
}

// SelectThread makes id the active thread. Messages are fetched when the
// thread has none locally and the remote service is in use.
func (c *Coordinator) SelectThread(ctx context.Context, id string) error {
	t, ok := c.threads.Get(id)
	if !ok {
		return threads.ErrNotFound
	}

	c.mu.Lock()
	c.activeID = id
	c.mu.Unlock()
	c.messages.SetThread(id, t.Messages)

	if len(t.Messages) == 0 && c.threads.State() == threads.StateReady {
		if err := c.messages.Load(ctx); err != nil {
			c.notify(KindError, failure("Failed to load messages.", err))
			return err
		}
	}
	c.changed()
	return nil
}

// CreateThread creates a thread, seeds the welcome message and selects it.
// On failure state is left unchanged.
func (c *Coordinator) CreateThread(ctx context.Context) (model.Thread, error) {
	wasDegraded := c.threads.Degraded()

	t, err := c.threads.Create(ctx, c.defaultTitle)
	if err != nil {
		c.logger.Error("create thread failed", "error", err)
		c.notify(KindError, "Failed to create new chat. Please try again.")
		return model.Thread{}, err
	}

	welcome, err := model.NewMessage(model.RoleAssistant, c.welcome, nil, c.clock)
	if err == nil {
		if uerr := c.threads.Update(ctx, t.ID, model.MessagesUpdate([]model.Message{welcome})); uerr != nil {
			c.logger.Warn("failed to store welcome message", "thread_id", t.ID, "error", uerr)
		}
		t.Messages = []model.Message{welcome}
	}

	c.mu.Lock()
	c.activeID = t.ID
	c.mu.Unlock()
	c.messages.SetThread(t.ID, t.Messages)

	if !wasDegraded && c.threads.Degraded() {
		c.notify(KindWarning, "Failed to create thread. Using offline mode.")
	}
	c.notify(KindSuccess, "New chat created successfully!")
	return t, nil
}

// Send posts text (and files) to the active thread and waits for the
// assistant. Blank text without files and sends while the assistant is
// still answering are rejected before anything changes.
func (c *Coordinator) Send(ctx context.Context, text string, files []model.Attachment) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" && len(files) == 0 {
		return &model.ValidationError{Field: "content", Message: "nothing to send", Err: model.ErrEmptyMessage}
	}
	if !c.beginSend() {
		return messages.ErrBusy
	}
	defer c.endSend()

	c.ensureActive()
	threadID := c.ActiveID()
	if threadID == "" {
		c.notify(KindError, failure("Failed to send message.", messages.ErrNoThread))
		return messages.ErrNoThread
	}
	thread, _ := c.threads.Get(threadID)

	content := text
	if trimmed == "" {
		content = model.AttachmentPlaceholder(len(files))
	}

	firstUser := !hasUserMessage(c.messages.Messages())
	if _, err := c.messages.Add(model.RoleUser, content, files); err != nil {
		c.notify(KindError, failure("Failed to send message.", err))
		return err
	}

	update := model.MessagesUpdate(c.messages.Messages())
	if firstUser && c.isPlaceholderTitle(thread.Title) && trimmed != "" {
		title := model.TitleFromText(trimmed, c.titleMax)
		update.Title = &title
	}
	if err := c.threads.Update(ctx, threadID, update); err != nil {
		c.logger.Warn("thread update after user message failed", "thread_id", threadID, "error", err)
		if update.Title != nil {
			c.notify(KindWarning, "Failed to update thread title.")
		}
	}

	reply, sendErr := c.messages.SendToAssistant(ctx, content, metadataFor(files))

	// The user may have switched threads while the assistant was answering.
	// The reply then goes straight to its own thread.
	synced, ok := c.messages.Messages(), true
	if c.messages.ThreadID() != threadID {
		var owner model.Thread
		owner, ok = c.threads.Get(threadID)
		synced = owner.Messages
		if ok && sendErr == nil {
			synced = append(synced, reply)
		}
	}
	if ok {
		if err := c.threads.Update(ctx, threadID, model.MessagesUpdate(synced)); err != nil {
			c.logger.Warn("thread sync after round-trip failed", "thread_id", threadID, "error", err)
		}
	}

	if sendErr != nil {
		c.notify(KindError, failure("Failed to get AI response.", sendErr))
		return sendErr
	}
	return nil
}

// RenameThread sets a thread's title. Blank or unchanged titles are ignored.
// The local title changes even when the server cannot be updated.
func (c *Coordinator) RenameThread(ctx context.Context, id, title string) error {
	title = strings.TrimSpace(title)
	t, ok := c.threads.Get(id)
	if !ok {
		return threads.ErrNotFound
	}
	if title == "" || title == t.Title {
		return nil
	}

	if err := c.threads.Update(ctx, id, model.TitleUpdate(title)); err != nil {
		c.notify(KindWarning, failure("Renamed locally only.", err))
		return err
	}
	c.notify(KindSuccess, "Thread renamed successfully")
	return nil
}

// DeleteThread deletes a thread. If it was active the selection is cleared.
func (c *Coordinator) DeleteThread(ctx context.Context, id string) error {
	if err := c.threads.Delete(ctx, id); err != nil {
		c.logger.Error("delete thread failed", "thread_id", id, "error", err)
		c.notify(KindError, "Failed to delete thread. Please try again.")
		return err
	}

	c.mu.Lock()
	wasActive := c.activeID == id
	if wasActive {
		c.activeID = ""
	}
	c.mu.Unlock()
	if wasActive {
		c.messages.SetThread("", nil)
	}

	c.notify(KindSuccess, "Thread deleted successfully")
	return nil
}

// ExternalChange reloads from the fallback store after another process
// wrote to it. It only acts while degraded and never while the assistant
// is answering.
func (c *Coordinator) ExternalChange(ctx context.Context) error {
	if !c.threads.Degraded() || c.busy() {
		return nil
	}
	if err := c.threads.ReloadLocal(); err != nil {
		c.logger.Warn("external reload failed", "error", err)
		return err
	}
	c.refreshActive()
	c.notify(KindInfo, "Chats updated from another window.")
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

// ensureActive selects the first thread when nothing valid is selected.
func (c *Coordinator) ensureActive() {
	c.mu.Lock()
	current := c.activeID
	c.mu.Unlock()

	if current != "" {
		if _, ok := c.threads.Get(current); ok {
			return
		}
	}

	list := c.threads.Threads()
	next := ""
	var seed []model.Message
	if len(list) > 0 {
		next = list[0].ID
		seed = list[0].Messages
	}

	c.mu.Lock()
	if c.activeID != current {
		c.mu.Unlock()
		return
	}
	c.activeID = next
	c.mu.Unlock()

	if c.messages.ThreadID() != next {
		c.messages.SetThread(next, seed)
	}
}

// refreshActive reloads the message list of the active thread from the
// thread repository, selecting another thread if it disappeared.
func (c *Coordinator) refreshActive() {
	c.ensureActive()
	id := c.ActiveID()
	if id == "" || c.busy() {
		return
	}
	if t, ok := c.threads.Get(id); ok {
		c.messages.SetThread(id, t.Messages)
	}
}

// beginSend claims the single in-flight send slot.
func (c *Coordinator) beginSend() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sending || c.messages.Typing() {
		return false
	}
	c.sending = true
	return true
}

func (c *Coordinator) endSend() {
	c.mu.Lock()
	c.sending = false
	c.mu.Unlock()
	c.changed()
}

func (c *Coordinator) busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sending || c.messages.Typing()
}

func (c *Coordinator) isPlaceholderTitle(title string) bool {
	title = strings.TrimSpace(title)
	return title == "" || strings.EqualFold(title, c.defaultTitle) || strings.EqualFold(title, model.DefaultTitle)
}

func (c *Coordinator) setLoading(v bool) {
	c.mu.Lock()
	c.loading = v
	c.mu.Unlock()
	c.changed()
}

func (c *Coordinator) notify(kind Kind, msg string) {
	n := Notification{Kind: kind, Message: msg, Duration: c.noteTTL, At: time.Now()}
	select {
	case c.notes <- n:
	default:
		c.logger.Debug("notification dropped", "kind", kind, "message", msg)
	}
	c.changed()
}

func (c *Coordinator) changed() {
	select {
	case c.updates <- struct{}{}:
	default:
	}
}

func hasUserMessage(msgs []model.Message) bool {
	for _, m := range msgs {
		if m.Role == model.RoleUser {
			return true
		}
	}
	return false
}

// metadataFor describes attachments for the send request.
func metadataFor(files []model.Attachment) map[string]any {
	md := map[string]any{}
	if len(files) > 0 {
		list := make([]map[string]any, len(files))
		for i, f := range files {
			list[i] = map[string]any{"name": f.Name, "size": f.Size, "mimeType": f.MimeType}
		}
		md["files"] = list
	}
	return md
}
