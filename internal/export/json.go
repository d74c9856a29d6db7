// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"time"

	"github.com/jeranaias/threadchat/internal/model"
)

// JSONExporter exports a thread in the same JSON shape the local store
// uses, wrapped with export metadata.
type JSONExporter struct {
	options *Options
}

// NewJSONExporter creates a new JSON exporter.
func NewJSONExporter(opts *Options) *JSONExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &JSONExporter{options: opts}
}

type jsonDocument struct {
	Generator  string       `json:"generator"`
	ExportedAt time.Time    `json:"exportedAt"`
	Thread     model.Thread `json:"thread"`
}

// Export converts a thread to indented JSON. Threads without messages are
// allowed here.
func (e *JSONExporter) Export(t model.Thread) ([]byte, error) {
	t.Normalize()
	return json.MarshalIndent(jsonDocument{
		Generator:  "threadchat",
		ExportedAt: e.options.now().UTC(),
		Thread:     t,
	}, "", "  ")
}

// FileExtension returns the file extension for JSON.
func (e *JSONExporter) FileExtension() string {
	return ".json"
}

// MimeType returns the MIME type for JSON.
func (e *JSONExporter) MimeType() string {
	return "application/json"
}
