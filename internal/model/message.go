// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	case RoleSystem:
		return "System"
	default:
		return string(r)
	}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Attachment describes a file attached to a message. Only the descriptor is
// stored; file contents never leave the client.
type Attachment struct {
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	MimeType string `json:"mimeType"`
}

// Message is a single entry in a thread.
type Message struct {
	ID        string       `json:"id"`
	Role      Role         `json:"role"`
	Content   string       `json:"content"`
	CreatedAt time.Time    `json:"createdAt"`
	Files     []Attachment `json:"files"`
}

// ErrEmptyMessage is returned when a message has neither content nor files.
var ErrEmptyMessage = errors.New("message has no content and no files")

// ValidationError reports input rejected before any network call is made.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// Unwrap returns the underlying sentinel, if any.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewMessage creates a validated message with a fresh id and a timestamp from
// clock. A nil clock uses the wall clock.
func NewMessage(role Role, content string, files []Attachment, clock *Clock) (Message, error) {
	msg := Message{
		ID:      NewID(),
		Role:    role,
		Content: content,
		Files:   cloneAttachments(files),
	}
	if err := msg.Validate(); err != nil {
		return Message{}, err
	}
	msg.CreatedAt = clock.Now()
	return msg, nil
}

// Validate checks the role and the content/files requirement.
func (m Message) Validate() error {
	if !m.Role.Valid() {
		return &ValidationError{Field: "role", Message: fmt.Sprintf("unknown role %q", m.Role)}
	}
	if strings.TrimSpace(m.Content) == "" && len(m.Files) == 0 {
		return &ValidationError{Field: "content", Message: "content is empty and no files are attached", Err: ErrEmptyMessage}
	}
	return nil
}

// HasFiles reports whether the message carries attachments.
func (m Message) HasFiles() bool {
	return len(m.Files) > 0
}

// Preview returns the first maxLen runes of the content on a single line.
func (m Message) Preview(maxLen int) string {
	return TitleFromText(m.Content, maxLen)
}

// Clone returns a deep copy of the message.
func (m Message) Clone() Message {
	m.Files = cloneAttachments(m.Files)
	return m
}

// Normalize replaces a nil attachment list with an empty one so the JSON
// form is always an array.
func (m *Message) Normalize() {
	if m.Files == nil {
		m.Files = []Attachment{}
	}
}

// NewID generates a new unique identifier.
func NewID() string {
	return uuid.NewString()
}

// CloneMessages returns a deep copy of msgs. The result is never nil.
func CloneMessages(msgs []Message) []Message {
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		out[i] = m.Clone()
	}
	return out
}

func cloneAttachments(files []Attachment) []Attachment {
	out := make([]Attachment, len(files))
	copy(out, files)
	return out
}
