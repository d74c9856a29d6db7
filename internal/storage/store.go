// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jeranaias/threadchat/internal/logging"
	"github.com/jeranaias/threadchat/internal/model"
)

// Key layout.
const (
	threadKeyPrefix   = "thread_"
	messagesKeySuffix = "_messages"
)

// ThreadKey returns the key of a thread's metadata record.
func ThreadKey(id string) string {
	return threadKeyPrefix + id
}

// MessagesKey returns the key of a thread's message list.
func MessagesKey(id string) string {
	return threadKeyPrefix + id + messagesKeySuffix
}

// threadRecord is the persisted form of a thread. Messages live under their
// own key so they can be rewritten without touching the metadata.
type threadRecord struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// =============================================================================
// STORE
// =============================================================================

// Store persists threads and messages through a KV backend.
type Store struct {
	kv     KV
	logger *slog.Logger

	mu        sync.Mutex
	lastWrite time.Time
}

// NewStore wraps kv. A nil logger discards output.
func NewStore(kv KV, logger *slog.Logger) *Store {
	return &Store{
		kv:     kv,
		logger: logging.OrDiscard(logger).With("component", "storage"),
	}
}

// Close closes the backend.
func (s *Store) Close() error {
	return s.kv.Close()
}

// LastWrite returns when this process last wrote to the store. Watchers use
// it to tell their own writes from another process's.
func (s *Store) LastWrite() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastWrite
}

// =============================================================================
// THREAD OPERATIONS
// =============================================================================

// SaveThread upserts the thread's metadata. Messages are not written; use
// SaveMessages.
func (s *Store) SaveThread(t model.Thread) error {
	if t.ID == "" {
		return errors.New("save thread: empty id")
	}
	return s.put(ThreadKey(t.ID), threadRecord{ID: t.ID, Title: t.Title, UpdatedAt: t.UpdatedAt})
}

// SaveThreadWithMessages writes the metadata and the full message list.
func (s *Store) SaveThreadWithMessages(t model.Thread) error {
	if err := s.SaveThread(t); err != nil {
		return err
	}
	return s.SaveMessages(t.ID, t.Messages)
}

// LoadThread returns one thread with its messages, or ErrNotFound.
func (s *Store) LoadThread(id string) (model.Thread, error) {
	data, err := s.kv.Get(ThreadKey(id))
	if err != nil {
		return model.Thread{}, err
	}
	var rec threadRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return model.Thread{}, fmt.Errorf("decode thread %s: %w", id, err)
	}
	msgs, err := s.LoadMessages(id)
	if err != nil {
		return model.Thread{}, err
	}
	return rec.thread(id, msgs), nil
}

// LoadAllThreads returns every stored thread with its messages, most
// recently updated first. Unreadable records are skipped and logged; they
// are left in place so nothing is lost.
func (s *Store) LoadAllThreads() ([]model.Thread, error) {
	keys, err := s.kv.Keys(threadKeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("list threads: %w", err)
	}

	present := make(map[string]bool, len(keys))
	for _, k := range keys {
		present[k] = true
	}

	threads := make([]model.Thread, 0, len(keys)/2)
	for _, key := range keys {
		if isMessagesKey(key, present) {
			continue
		}
		id := strings.TrimPrefix(key, threadKeyPrefix)

		data, err := s.kv.Get(key)
		if err != nil {
			s.logger.Warn("skipping unreadable thread record", "key", key, "error", err)
			continue
		}
		var rec threadRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			s.logger.Warn("skipping corrupt thread record", "key", key, "error", err)
			continue
		}
		msgs, err := s.LoadMessages(id)
		if err != nil {
			s.logger.Warn("skipping thread with corrupt messages", "key", key, "error", err)
			continue
		}
		threads = append(threads, rec.thread(id, msgs))
	}

	model.SortByUpdated(threads)
	return threads, nil
}

// UpdateThreadTitle rewrites the title of a stored thread and moves its
// UpdatedAt forward to at.
func (s *Store) UpdateThreadTitle(id, title string, at time.Time) (model.Thread, error) {
	t, err := s.LoadThread(id)
	if err != nil {
		return model.Thread{}, err
	}
	t.Apply(model.TitleUpdate(title), at)
	if err := s.SaveThread(t); err != nil {
		return model.Thread{}, err
	}
	return t, nil
}

// DeleteThread removes a thread and its messages. Returns ErrNotFound when
// neither record exists.
func (s *Store) DeleteThread(id string) error {
	_, errThread := s.kv.Get(ThreadKey(id))
	_, errMsgs := s.kv.Get(MessagesKey(id))
	if errors.Is(errThread, ErrNotFound) && errors.Is(errMsgs, ErrNotFound) {
		return ErrNotFound
	}

	if err := s.kv.Delete(MessagesKey(id)); err != nil {
		return fmt.Errorf("delete messages of %s: %w", id, err)
	}
	if err := s.kv.Delete(ThreadKey(id)); err != nil {
		return fmt.Errorf("delete thread %s: %w", id, err)
	}
	s.touch()
	return nil
}

// Search returns stored threads whose title or message content contains
// query, ignoring case.
func (s *Store) Search(query string) ([]model.Thread, error) {
	all, err := s.LoadAllThreads()
	if err != nil {
		return nil, err
	}
	return model.FilterThreads(all, query), nil
}

// =============================================================================
// MESSAGE OPERATIONS
// =============================================================================

// SaveMessages replaces the thread's message list as one unit.
func (s *Store) SaveMessages(threadID string, msgs []model.Message) error {
	if threadID == "" {
		return errors.New("save messages: empty thread id")
	}
	if msgs == nil {
		msgs = []model.Message{}
	}
	return s.put(MessagesKey(threadID), msgs)
}

// LoadMessages returns the thread's message list, or an empty list if none
// was stored.
func (s *Store) LoadMessages(threadID string) ([]model.Message, error) {
	data, err := s.kv.Get(MessagesKey(threadID))
	if errors.Is(err, ErrNotFound) {
		return []model.Message{}, nil
	}
	if err != nil {
		return nil, err
	}

	var msgs []model.Message
	if err := json.Unmarshal(data, &msgs); err != nil {
		return nil, fmt.Errorf("decode messages of %s: %w", threadID, err)
	}
	if msgs == nil {
		msgs = []model.Message{}
	}
	for i := range msgs {
		msgs[i].Normalize()
	}
	return msgs, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (s *Store) put(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.kv.Put(key, data); err != nil {
		return err
	}
	s.touch()
	return nil
}

func (s *Store) touch() {
	s.mu.Lock()
	s.lastWrite = time.Now()
	s.mu.Unlock()
}

// isMessagesKey reports whether key is a message list. A key ending in
// "_messages" is a thread key when no matching metadata record exists, so
// thread ids that themselves end in "_messages" still load.
func isMessagesKey(key string, present map[string]bool) bool {
	if !strings.HasSuffix(key, messagesKeySuffix) {
		return false
	}
	return present[strings.TrimSuffix(key, messagesKeySuffix)]
}

func (r threadRecord) thread(id string, msgs []model.Message) model.Thread {
	if r.ID == "" {
		r.ID = id
	}
	t := model.Thread{ID: r.ID, Title: r.Title, UpdatedAt: r.UpdatedAt, Messages: msgs}
	t.Normalize()
	return t
}
