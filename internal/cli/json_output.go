// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// json_output.go - JSON output for scripting.
//
// Every command that honors --json writes exactly one JSONResponse to
// stdout. Human-readable notes go to stderr in JSON mode.
package cli

import (
	"encoding/json"
	"io"
	"time"

	"github.com/jeranaias/threadchat/internal/model"
)

// JSONResponse is the envelope of all --json output.
type JSONResponse struct {
	// Success indicates whether the command completed successfully
	Success bool `json:"success"`

	// Data contains the command-specific response data
	Data any `json:"data"`

	// Error contains the error message if Success is false, null otherwise
	Error *string `json:"error"`

	// Timestamp is the RFC3339 time the response was generated
	Timestamp string `json:"timestamp"`

	// Command is the command that was executed
	Command string `json:"command,omitempty"`
}

// NewJSONResponse creates a new successful JSON response.
func NewJSONResponse(command string, data any) *JSONResponse {
	return &JSONResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// NewJSONErrorResponse creates a new error JSON response.
func NewJSONErrorResponse(command string, err error) *JSONResponse {
	errStr := err.Error()
	return &JSONResponse{
		Success:   false,
		Error:     &errStr,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// Print writes the response as indented JSON.
func (r *JSONResponse) Print(w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(r)
}

// =============================================================================
// COMMAND-SPECIFIC DATA TYPES
// =============================================================================

// ThreadSummary is one row of the threads list.
type ThreadSummary struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
	LastMessage  string    `json:"last_message,omitempty"`
}

// ThreadsData is the --json form of threads list and search.
type ThreadsData struct {
	Threads  []ThreadSummary `json:"threads"`
	Degraded bool            `json:"degraded"`
	Query    string          `json:"query,omitempty"`
}

// SendData is the --json form of send.
type SendData struct {
	ThreadID string          `json:"thread_id"`
	Reply    *model.Message  `json:"reply"`
	Messages []model.Message `json:"messages"`
	Degraded bool            `json:"degraded"`
}

// HealthData is the --json form of health.
type HealthData struct {
	BaseURL   string `json:"base_url"`
	OK        bool   `json:"ok"`
	LatencyMS int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

// ExportData is the --json form of threads export.
type ExportData struct {
	ThreadID string `json:"thread_id"`
	Path     string `json:"path"`
	MimeType string `json:"mime_type"`
}

func summarize(t model.Thread) ThreadSummary {
	s := ThreadSummary{
		ID:           t.ID,
		Title:        t.Title,
		UpdatedAt:    t.UpdatedAt,
		MessageCount: len(t.Messages),
	}
	if last, ok := t.LastMessage(); ok {
		s.LastMessage = last.Preview(80)
	}
	return s
}

func summarizeAll(list []model.Thread) []ThreadSummary {
	out := make([]ThreadSummary, len(list))
	for i, t := range list {
		out[i] = summarize(t)
	}
	return out
}
