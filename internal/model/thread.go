// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
)

const (
	// DefaultTitle is the placeholder title of a thread nobody has written in yet.
	DefaultTitle = "New Chat"

	// DefaultTitleMaxLength is how many characters of the first user message
	// become the thread title.
	DefaultTitleMaxLength = 50

	// WelcomeMessage is the assistant greeting seeded into new threads.
	WelcomeMessage = "Hello 👋\nI'm your AI assistant. Ask me anything!"
)

// =============================================================================
// THREAD TYPE
// =============================================================================

// Thread is a titled conversation. It owns its messages exclusively; the
// slice is in chronological (insertion) order.
type Thread struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	UpdatedAt time.Time `json:"updatedAt"`
	Messages  []Message `json:"messages"`
}

// ThreadUpdate is a partial update. Nil fields are left untouched; a non-nil
// empty Messages slice clears the list.
type ThreadUpdate struct {
	Title    *string
	Messages []Message
}

// TitleUpdate is a convenience constructor for a title-only update.
func TitleUpdate(title string) ThreadUpdate {
	return ThreadUpdate{Title: &title}
}

// MessagesUpdate is a convenience constructor for a messages-only update.
func MessagesUpdate(msgs []Message) ThreadUpdate {
	if msgs == nil {
		msgs = []Message{}
	}
	return ThreadUpdate{Messages: msgs}
}

// NewThread creates an empty thread with a fresh id.
func NewThread(title string, clock *Clock) Thread {
	if strings.TrimSpace(title) == "" {
		title = DefaultTitle
	}
	return Thread{
		ID:        NewID(),
		Title:     title,
		UpdatedAt: clock.Now(),
		Messages:  []Message{},
	}
}

// Touch moves UpdatedAt forward to at. It never moves it backwards.
func (t *Thread) Touch(at time.Time) {
	if at.After(t.UpdatedAt) {
		t.UpdatedAt = at
	}
}

// Apply merges u into the thread and touches it.
func (t *Thread) Apply(u ThreadUpdate, at time.Time) {
	if u.Title != nil {
		t.Title = *u.Title
	}
	if u.Messages != nil {
		t.Messages = CloneMessages(u.Messages)
	}
	t.Touch(at)
}

// Clone returns a deep copy of the thread.
func (t Thread) Clone() Thread {
	t.Messages = CloneMessages(t.Messages)
	return t
}

// Normalize fills nil slices so the JSON form always carries arrays.
func (t *Thread) Normalize() {
	if t.Messages == nil {
		t.Messages = []Message{}
	}
	for i := range t.Messages {
		t.Messages[i].Normalize()
	}
}

// HasUserMessage reports whether any message was written by the user.
func (t Thread) HasUserMessage() bool {
	for _, m := range t.Messages {
		if m.Role == RoleUser {
			return true
		}
	}
	return false
}

// LastMessage returns the most recent message, if any.
func (t Thread) LastMessage() (Message, bool) {
	if len(t.Messages) == 0 {
		return Message{}, false
	}
	return t.Messages[len(t.Messages)-1], true
}

// Matches reports whether query occurs in the title or in any message
// content, ignoring case. An empty query matches everything.
func (t Thread) Matches(query string) bool {
	query = strings.TrimSpace(query)
	if query == "" {
		return true
	}
	fold := cases.Fold()
	q := fold.String(query)
	if strings.Contains(fold.String(t.Title), q) {
		return true
	}
	for _, m := range t.Messages {
		if strings.Contains(fold.String(m.Content), q) {
			return true
		}
	}
	return false
}

// =============================================================================
// HELPERS
// =============================================================================

// SortByUpdated orders threads most recently updated first. The sort is
// stable so equal timestamps keep their incoming order.
func SortByUpdated(threads []Thread) {
	sort.SliceStable(threads, func(i, j int) bool {
		return threads[i].UpdatedAt.After(threads[j].UpdatedAt)
	})
}

// FilterThreads returns the threads matching query in their original order.
func FilterThreads(threads []Thread, query string) []Thread {
	out := make([]Thread, 0, len(threads))
	for _, t := range threads {
		if t.Matches(query) {
			out = append(out, t.Clone())
		}
	}
	return out
}

// TitleFromText derives a thread title from the first maxLen characters of
// text, with line breaks collapsed. "..." is appended when text is longer.
func TitleFromText(text string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = DefaultTitleMaxLength
	}
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}
	return string(runes[:maxLen]) + "..."
}

// AttachmentPlaceholder is the body sent when a message carries files but no
// text.
func AttachmentPlaceholder(n int) string {
	if n == 1 {
		return "Sent 1 file"
	}
	return "Sent " + strconv.Itoa(n) + " files"
}
