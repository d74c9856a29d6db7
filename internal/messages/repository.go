// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package messages

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jeranaias/threadchat/internal/api"
	"github.com/jeranaias/threadchat/internal/logging"
	"github.com/jeranaias/threadchat/internal/model"
	"github.com/jeranaias/threadchat/internal/storage"
)

// DefaultTypingDelay is the pause before the assistant round-trip that
// drives the typing indicator.
const DefaultTypingDelay = 600 * time.Millisecond

var (
	// ErrBusy is returned when an assistant round-trip is already running.
	ErrBusy = errors.New("assistant is still responding")

	// ErrNoThread is returned when no thread is selected.
	ErrNoThread = errors.New("no thread selected")
)

// Remote is the part of the remote client the repository uses.
// *api.Client satisfies it.
type Remote interface {
	GetMessages(ctx context.Context, threadID string) ([]model.Message, error)
	SendMessage(ctx context.Context, threadID, content string, metadata map[string]any) (api.SendResult, error)
}

// Fallback is the part of the local store the repository uses.
// *storage.Store satisfies it.
type Fallback interface {
	LoadMessages(threadID string) ([]model.Message, error)
	SaveMessages(threadID string, msgs []model.Message) error
}

// Options configures a Repository.
type Options struct {
	Remote Remote
	Store  Fallback
	Clock  *model.Clock
	Logger *slog.Logger

	// TypingDelay is applied before each assistant call. Zero disables it;
	// negative selects DefaultTypingDelay.
	TypingDelay time.Duration

	// Local reports whether the fallback store is the source of truth.
	// When it returns true, Load reads the store and Add saves immediately.
	Local func() bool

	// OnChange is called after every list or typing change, outside the lock.
	OnChange func()
}

// Repository is the message list of the active thread.
type Repository struct {
	remote   Remote
	store    Fallback
	clock    *model.Clock
	logger   *slog.Logger
	delay    time.Duration
	local    func() bool
	onChange func()

	mu       sync.RWMutex
	threadID string
	messages []model.Message
	typing   bool
	lastErr  error
}

// New creates a repository with no thread selected. A nil Store is replaced
// by an in-memory one.
func New(opts Options) *Repository {
	logger := logging.OrDiscard(opts.Logger).With("component", "messages")
	store := opts.Store
	if store == nil {
		store = storage.NewStore(storage.NewMemoryKV(), logger)
	}
	clock := opts.Clock
	if clock == nil {
		clock = model.NewClock()
	}
	delay := opts.TypingDelay
	if delay < 0 {
		delay = DefaultTypingDelay
	}
	local := opts.Local
	if local == nil {
		local = func() bool { return opts.Remote == nil }
	}
	return &Repository{
		remote:   opts.Remote,
		store:    store,
		clock:    clock,
		logger:   logger,
		delay:    delay,
		local:    local,
		onChange: opts.OnChange,
		messages: []model.Message{},
	}
}

// =============================================================================
// ACCESSORS
// =============================================================================

// ThreadID returns the active thread id, or "".
func (r *Repository) ThreadID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.threadID
}

// Messages returns a copy of the list.
func (r *Repository) Messages() []model.Message {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return model.CloneMessages(r.messages)
}

// Typing reports whether an assistant round-trip is running.
func (r *Repository) Typing() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.typing
}

// LastError returns the most recent failure, or nil.
func (r *Repository) LastError() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastErr
}

// ClearError forgets the last failure.
func (r *Repository) ClearError() {
	r.mu.Lock()
	r.lastErr = nil
	r.mu.Unlock()
	r.notify()
}

// =============================================================================
// OPERATIONS
// =============================================================================

// SetThread switches to threadID with seed as its current messages. An
// empty id clears the selection.
func (r *Repository) SetThread(threadID string, seed []model.Message) {
	r.mu.Lock()
	r.threadID = threadID
	r.messages = model.CloneMessages(seed)
	r.lastErr = nil
	r.mu.Unlock()
	r.notify()
}

// Load replaces the list with the thread's stored messages. On failure the
// current list is left untouched and the error returned.
func (r *Repository) Load(ctx context.Context) error {
	threadID := r.ThreadID()
	if threadID == "" {
		return ErrNoThread
	}

	var (
		msgs []model.Message
		err  error
	)
	if r.local() {
		msgs, err = r.store.LoadMessages(threadID)
	} else {
		msgs, err = r.remote.GetMessages(ctx, threadID)
	}
	if err != nil {
		err = fmt.Errorf("load messages: %w", err)
		r.logger.Warn("failed to load messages", "thread_id", threadID, "error", err)
		r.setError(err)
		return err
	}
	for _, m := range msgs {
		r.clock.Observe(m.CreatedAt)
	}

	r.mu.Lock()
	if r.threadID == threadID {
		r.messages = msgs
		r.lastErr = nil
	}
	r.mu.Unlock()
	r.notify()
	return nil
}

// Add builds a message with a fresh id and timestamp and appends it. It
// does not contact the remote service. While local, the list is saved to
// the fallback store and the append is undone if the save fails.
func (r *Repository) Add(role model.Role, content string, files []model.Attachment) (model.Message, error) {
	msg, err := model.NewMessage(role, content, files, r.clock)
	if err != nil {
		return model.Message{}, err
	}

	r.mu.Lock()
	threadID := r.threadID
	if threadID == "" {
		r.mu.Unlock()
		return model.Message{}, ErrNoThread
	}
	r.messages = appendMessage(r.messages, msg)
	snapshot := model.CloneMessages(r.messages)
	r.mu.Unlock()
	r.notify()

	if !r.local() {
		return msg, nil
	}
	if err := r.store.SaveMessages(threadID, snapshot); err != nil {
		err = fmt.Errorf("save message: %w", err)
		r.logger.Error("rolling back message", "thread_id", threadID, "message_id", msg.ID, "error", err)
		r.remove(threadID, msg.ID)
		r.setError(err)
		return model.Message{}, err
	}
	return msg, nil
}

// SendToAssistant sends content to the assistant and appends its reply.
// It waits the typing delay first. On failure nothing is appended and the
// error is returned. Only one round-trip runs at a time.
func (r *Repository) SendToAssistant(ctx context.Context, content string, metadata map[string]any) (model.Message, error) {
	r.mu.Lock()
	if r.typing {
		r.mu.Unlock()
		return model.Message{}, ErrBusy
	}
	threadID := r.threadID
	if threadID == "" {
		r.mu.Unlock()
		return model.Message{}, ErrNoThread
	}
	r.typing = true
	r.lastErr = nil
	r.mu.Unlock()
	r.notify()

	defer func() {
		r.mu.Lock()
		r.typing = false
		r.mu.Unlock()
		r.notify()
	}()

	if r.delay > 0 {
		select {
		case <-ctx.Done():
			return model.Message{}, ctx.Err()
		case <-time.After(r.delay):
		}
	}

	if r.remote == nil {
		err := fmt.Errorf("assistant: %w", api.ErrServiceUnavailable)
		r.setError(err)
		return model.Message{}, err
	}
	res, err := r.remote.SendMessage(ctx, threadID, content, metadata)
	if err != nil {
		err = fmt.Errorf("assistant: %w", err)
		r.logger.Warn("assistant round-trip failed", "thread_id", threadID, "error", err)
		r.setError(err)
		return model.Message{}, err
	}

	reply := model.Message{
		ID:        res.AssistantMessageID,
		Role:      model.RoleAssistant,
		Content:   res.Assistant.Content,
		CreatedAt: r.clock.Now(),
		Files:     []model.Attachment{},
	}
	if reply.ID == "" {
		reply.ID = model.NewID()
	}

	r.mu.Lock()
	if r.threadID != threadID {
		r.mu.Unlock()
		r.logger.Debug("thread switched during round-trip, reply not shown", "thread_id", threadID)
		return reply, nil
	}
	r.messages = appendMessage(r.messages, reply)
	snapshot := model.CloneMessages(r.messages)
	r.mu.Unlock()
	r.notify()

	r.logger.Info("assistant replied", "thread_id", threadID, "model", res.Assistant.Model)
	if r.local() {
		if err := r.store.SaveMessages(threadID, snapshot); err != nil {
			r.logger.Error("failed to persist assistant reply", "thread_id", threadID, "error", err)
		}
	}
	return reply, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// appendMessage returns a new slice; the old one may still be shared by a
// snapshot.
func appendMessage(list []model.Message, m model.Message) []model.Message {
	next := make([]model.Message, 0, len(list)+1)
	next = append(next, list...)
	return append(next, m)
}

func (r *Repository) remove(threadID, messageID string) {
	r.mu.Lock()
	if r.threadID == threadID {
		next := make([]model.Message, 0, len(r.messages))
		for _, m := range r.messages {
			if m.ID != messageID {
				next = append(next, m)
			}
		}
		r.messages = next
	}
	r.mu.Unlock()
	r.notify()
}

func (r *Repository) setError(err error) {
	r.mu.Lock()
	r.lastErr = err
	r.mu.Unlock()
	r.notify()
}

func (r *Repository) notify() {
	if r.onChange != nil {
		r.onChange()
	}
}
