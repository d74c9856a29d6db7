// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package export writes threads to files for sharing or archiving.

Three formats are supported, each an Exporter:

	MarkdownExporter - Markdown with YAML front matter (.md)
	JSONExporter     - the stored thread shape plus export metadata (.json)
	HTMLExporter     - a self-contained page with light/dark styling (.html)

Usage:

	exp, err := export.ForFormat("html", export.DefaultOptions())
	if err != nil {
		return err
	}
	path, err := export.ExportToFile(thread, exp, opts)
*/
package export
