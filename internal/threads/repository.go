// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package threads

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/jeranaias/threadchat/internal/api"
	"github.com/jeranaias/threadchat/internal/logging"
	"github.com/jeranaias/threadchat/internal/model"
	"github.com/jeranaias/threadchat/internal/storage"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrOffline is the degradation cause when offline mode is configured.
	ErrOffline = errors.New("offline mode enabled")

	// ErrNotFound is returned by Delete for an id that is not in the list.
	ErrNotFound = errors.New("thread not found")
)

// =============================================================================
// STATE
// =============================================================================

// State is the repository's lifecycle state.
type State int

const (
	StateUninitialized State = iota
	StateLoading
	StateReady
	StateDegraded
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateDegraded:
		return "degraded"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// =============================================================================
// DEPENDENCIES
// =============================================================================

// Remote is the part of the remote client the repository uses.
// *api.Client satisfies it.
type Remote interface {
	Health(ctx context.Context) error
	ListThreads(ctx context.Context) ([]model.Thread, error)
	CreateThread(ctx context.Context, title string) (api.CreatedThread, error)
	UpdateThreadTitle(ctx context.Context, threadID, title string) (api.TitleAck, error)
	DeleteThread(ctx context.Context, threadID string) (api.DeleteAck, error)
}

// Fallback is the part of the local store the repository uses.
// *storage.Store satisfies it.
type Fallback interface {
	LoadAllThreads() ([]model.Thread, error)
	SaveThread(t model.Thread) error
	SaveThreadWithMessages(t model.Thread) error
	DeleteThread(id string) error
}

// Options configures a Repository.
type Options struct {
	Remote Remote
	Store  Fallback
	Clock  *model.Clock
	Logger *slog.Logger

	// Offline skips the remote service entirely.
	Offline bool

	// DefaultTitle and WelcomeMessage shape seeded threads.
	DefaultTitle   string
	WelcomeMessage string

	// OnChange is called after every state or list change, outside the lock.
	OnChange func()
}

// =============================================================================
// REPOSITORY
// =============================================================================

// Repository is the single source of truth for the thread list. It is safe
// for concurrent use; the lock is never held across a network call and the
// list is replaced whole on every mutation.
type Repository struct {
	remote   Remote
	store    Fallback
	clock    *model.Clock
	logger   *slog.Logger
	offline  bool
	title    string
	welcome  string
	onChange func()

	mu      sync.RWMutex
	threads []model.Thread
	state   State
	lastErr error
}

// New creates a repository in StateUninitialized. A nil Store is replaced by
// an in-memory one; a nil Remote forces offline operation.
func New(opts Options) *Repository {
	logger := logging.OrDiscard(opts.Logger).With("component", "threads")
	store := opts.Store
	if store == nil {
		store = storage.NewStore(storage.NewMemoryKV(), logger)
	}
	clock := opts.Clock
	if clock == nil {
		clock = model.NewClock()
	}
	title := opts.DefaultTitle
	if strings.TrimSpace(title) == "" {
		title = model.DefaultTitle
	}
	welcome := opts.WelcomeMessage
	if welcome == "" {
		welcome = model.WelcomeMessage
	}

	return &Repository{
		remote:   opts.Remote,
		store:    store,
		clock:    clock,
		logger:   logger,
		offline:  opts.Offline || opts.Remote == nil,
		title:    title,
		welcome:  welcome,
		onChange: opts.OnChange,
		threads:  []model.Thread{},
	}
}

// =============================================================================
// ACCESSORS
// =============================================================================

// Threads returns a deep copy of the current list.
func (r *Repository) Threads() []model.Thread {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Thread, len(r.threads))
	for i, t := range r.threads {
		out[i] = t.Clone()
	}
	return out
}

// Get returns a copy of one thread.
func (r *Repository) Get(id string) (model.Thread, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if i := r.indexLocked(id); i >= 0 {
		return r.threads[i].Clone(), true
	}
	return model.Thread{}, false
}

// Len returns the number of threads.
func (r *Repository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.threads)
}

// State returns the lifecycle state.
func (r *Repository) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Degraded reports whether the fallback store is the source of truth.
func (r *Repository) Degraded() bool {
	return r.State() == StateDegraded
}

// Offline reports whether offline mode is configured.
func (r *Repository) Offline() bool {
	return r.offline
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

// Search returns threads whose title or message content contains query.
func (r *Repository) Search(query string) []model.Thread {
	return model.FilterThreads(r.Threads(), query)
}

// =============================================================================
// LOADING
// =============================================================================

// Init loads the thread list. It checks remote health and lists threads;
// on any failure it degrades to the fallback store, seeding one welcome
// thread if the store is empty. The returned error is the degradation cause
// and is never fatal: the list is usable either way.
func (r *Repository) Init(ctx context.Context) error {
	r.setState(StateLoading)

	if r.offline {
		return r.degrade(ErrOffline)
	}
	if err := r.remote.Health(ctx); err != nil {
		return r.degrade(fmt.Errorf("health check: %w", err))
	}
	list, err := r.remote.ListThreads(ctx)
	if err != nil {
		return r.degrade(fmt.Errorf("list threads: %w", err))
	}

	for i := range list {
		list[i].Normalize()
		r.clock.Observe(list[i].UpdatedAt)
	}

	r.mu.Lock()
	r.threads = list
	r.state = StateReady
	r.lastErr = nil
	r.mu.Unlock()

	r.logger.Info("threads loaded", "source", "remote", "count", len(list))
	r.notify()
	return nil
}

// Reload forces a full reload, as at startup.
func (r *Repository) Reload(ctx context.Context) error {
	return r.Init(ctx)
}

// ReloadLocal re-reads the fallback store while degraded, picking up writes
// from another process. It does nothing in any other state.
func (r *Repository) ReloadLocal() error {
	if !r.Degraded() {
		return nil
	}
	list, err := r.store.LoadAllThreads()
	if err != nil {
		return fmt.Errorf("reload fallback store: %w", err)
	}

	r.mu.Lock()
	r.threads = list
	r.mu.Unlock()

	r.logger.Debug("threads reloaded", "source", "fallback", "count", len(list))
	r.notify()
	return nil
}

func (r *Repository) degrade(cause error) error {
	r.logger.Warn("running from fallback store", "cause", cause)

	list, err := r.store.LoadAllThreads()
	if err != nil {
		r.logger.Error("failed to load fallback store", "error", err)
		cause = errors.Join(cause, fmt.Errorf("load fallback store: %w", err))
		list = nil
	}
	if len(list) == 0 {
		seed, err := r.seed()
		if err != nil {
			cause = errors.Join(cause, err)
		}
		list = []model.Thread{seed}
	}
	for _, t := range list {
		r.clock.Observe(t.UpdatedAt)
	}

	r.mu.Lock()
	r.threads = list
	r.state = StateDegraded
	r.lastErr = cause
	r.mu.Unlock()

	r.notify()
	return cause
}

// seed builds and persists the welcome thread used when the fallback store
// is empty. The thread is returned even when persisting fails.
func (r *Repository) seed() (model.Thread, error) {
	t := model.NewThread(r.title, r.clock)
	welcome, err := model.NewMessage(model.RoleAssistant, r.welcome, nil, r.clock)
	if err == nil {
		t.Messages = []model.Message{welcome}
		t.Touch(welcome.CreatedAt)
	}
	if err := r.store.SaveThreadWithMessages(t); err != nil {
		r.logger.Error("failed to persist seed thread", "thread_id", t.ID, "error", err)
		return t, fmt.Errorf("persist seed thread: %w", err)
	}
	return t, nil
}

// =============================================================================
// MUTATIONS
// =============================================================================

// Create creates a thread and prepends it to the list. The remote service is
// tried first; when it is unreachable the thread gets a local id, is
// persisted to the fallback store and the repository degrades. A request the
// service rejects (4xx) or a cancelled context fails the create instead. The
// returned thread has no messages.
func (r *Repository) Create(ctx context.Context, title string) (model.Thread, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = r.title
	}

	var (
		t         model.Thread
		remoteErr error
	)
	if !r.offline && r.State() != StateDegraded {
		created, err := r.remote.CreateThread(ctx, title)
		switch {
		case err == nil:
			t = model.Thread{ID: created.ID, Title: created.Title, UpdatedAt: r.clock.Now(), Messages: []model.Message{}}
		case !unreachable(err):
			r.logger.Warn("remote create rejected", "error", err)
			return model.Thread{}, fmt.Errorf("create thread: %w", err)
		default:
			remoteErr = err
			r.logger.Warn("remote create failed, creating locally", "error", err)
		}
	}

	local := t.ID == ""
	if local {
		t = model.NewThread(title, r.clock)
	}
	if local || r.Degraded() {
		if err := r.store.SaveThreadWithMessages(t); err != nil {
			return model.Thread{}, fmt.Errorf("create thread: %w", errors.Join(remoteErr, err))
		}
	}

	r.mu.Lock()
	next := make([]model.Thread, 0, len(r.threads)+1)
	next = append(next, t.Clone())
	next = append(next, r.threads...)
	r.threads = next
	r.mu.Unlock()

	if remoteErr != nil {
		r.markDegraded(fmt.Errorf("create thread: %w", remoteErr))
	}

	r.logger.Info("thread created", "thread_id", t.ID, "local", local)
	r.notify()
	return t, nil
}

// Update applies u to the thread with the given id and stamps UpdatedAt.
// A title change is pushed to the remote service first; a failed push is
// returned but does not block the local update. Unknown ids are a no-op.
func (r *Repository) Update(ctx context.Context, id string, u model.ThreadUpdate) error {
	if _, ok := r.Get(id); !ok {
		return nil
	}

	var pushErr error
	if u.Title != nil && r.State() == StateReady {
		if _, err := r.remote.UpdateThreadTitle(ctx, id, *u.Title); err != nil {
			pushErr = fmt.Errorf("update title: %w", err)
			r.logger.Warn("remote title update failed", "thread_id", id, "error", err)
		}
	}

	at := r.clock.Now()
	r.mu.Lock()
	i := r.indexLocked(id)
	if i < 0 {
		r.mu.Unlock()
		return pushErr
	}
	next := make([]model.Thread, len(r.threads))
	copy(next, r.threads)
	updated := next[i].Clone()
	updated.Apply(u, at)
	next[i] = updated
	r.threads = next
	if pushErr != nil {
		r.lastErr = pushErr
	}
	degraded := r.state == StateDegraded
	r.mu.Unlock()

	var persistErr error
	if degraded {
		persistErr = r.persist(updated, u.Messages != nil)
	}

	r.notify()
	return errors.Join(pushErr, persistErr)
}

// Delete removes a thread. While ready the remote service must confirm the
// delete; on failure the thread is kept and the error returned. While
// degraded the fallback store takes the remote's place.
func (r *Repository) Delete(ctx context.Context, id string) error {
	if _, ok := r.Get(id); !ok {
		return ErrNotFound
	}

	if r.Degraded() {
		if err := r.store.DeleteThread(id); err != nil && !errors.Is(err, storage.ErrNotFound) {
			r.setError(fmt.Errorf("delete thread: %w", err))
			return fmt.Errorf("delete thread: %w", err)
		}
	} else {
		if _, err := r.remote.DeleteThread(ctx, id); err != nil {
			r.logger.Warn("remote delete failed", "thread_id", id, "error", err)
			r.setError(fmt.Errorf("delete thread: %w", err))
			return fmt.Errorf("delete thread: %w", err)
		}
	}

	r.mu.Lock()
	next := make([]model.Thread, 0, len(r.threads))
	for _, t := range r.threads {
		if t.ID != id {
			next = append(next, t)
		}
	}
	r.threads = next
	r.mu.Unlock()

	r.logger.Info("thread deleted", "thread_id", id)
	r.notify()
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

// markDegraded switches a running repository to the fallback store after a
// demonstrated remote failure. The current list is written out so the store
// holds everything the user can see.
func (r *Repository) markDegraded(cause error) {
	r.mu.Lock()
	if r.state == StateDegraded {
		r.mu.Unlock()
		return
	}
	r.state = StateDegraded
	r.lastErr = cause
	snapshot := make([]model.Thread, len(r.threads))
	copy(snapshot, r.threads)
	r.mu.Unlock()

	r.logger.Warn("switching to fallback store", "cause", cause)
	for _, t := range snapshot {
		if err := r.store.SaveThreadWithMessages(t); err != nil {
			r.logger.Error("failed to persist thread", "thread_id", t.ID, "error", err)
		}
	}
}

func (r *Repository) persist(t model.Thread, withMessages bool) error {
	var err error
	if withMessages {
		err = r.store.SaveThreadWithMessages(t)
	} else {
		err = r.store.SaveThread(t)
	}
	if err != nil {
		r.logger.Error("failed to persist thread", "thread_id", t.ID, "error", err)
		return fmt.Errorf("persist thread: %w", err)
	}
	return nil
}

func (r *Repository) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
	r.notify()
}

func (r *Repository) setError(err error) {
	r.mu.Lock()
	r.lastErr = err
	r.mu.Unlock()
}

func (r *Repository) indexLocked(id string) int {
	for i, t := range r.threads {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func (r *Repository) notify() {
	if r.onChange != nil {
		r.onChange()
	}
}

// unreachable reports failures that mean the service cannot be used right
// now, as opposed to a request it answered and refused.
func unreachable(err error) bool {
	return api.IsRetryable(err) || errors.Is(err, api.ErrServiceUnavailable)
}
