// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import "time"

// HealthStatus is the body of GET /health.
type HealthStatus struct {
	OK bool `json:"ok"`
}

// CreateThreadRequest is the body of POST /threads.
type CreateThreadRequest struct {
	Title string `json:"title"`
}

// CreatedThread is the response to POST /threads.
type CreatedThread struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
}

// SendMessageRequest is the body of POST /threads/{id}/messages.
type SendMessageRequest struct {
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
}

// Usage reports token accounting for an assistant reply.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens,omitempty"`
	CompletionTokens int `json:"completion_tokens,omitempty"`
	TotalTokens      int `json:"total_tokens,omitempty"`
}

// AssistantReply is the assistant part of a send response.
type AssistantReply struct {
	Content string `json:"content"`
	Model   string `json:"model,omitempty"`
	Usage   *Usage `json:"usage,omitempty"`
}

// SendResult is the response to POST /threads/{id}/messages.
type SendResult struct {
	ThreadID           string         `json:"thread_id"`
	UserMessageID      string         `json:"user_message_id"`
	AssistantMessageID string         `json:"assistant_message_id"`
	Assistant          AssistantReply `json:"assistant"`
}

// UpdateThreadRequest is the body of PUT /threads/{id}.
type UpdateThreadRequest struct {
	Title string `json:"title"`
}

// TitleAck is the response to PUT /threads/{id}.
type TitleAck struct {
	OK        bool      `json:"ok"`
	ThreadID  string    `json:"thread_id"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DeleteAck is the response to DELETE /threads/{id}.
type DeleteAck struct {
	OK        bool      `json:"ok"`
	ThreadID  string    `json:"thread_id"`
	DeletedAt time.Time `json:"deleted_at"`
}
