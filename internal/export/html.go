// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/jeranaias/threadchat/internal/model"
)

// =============================================================================
// HTML EXPORTER
// =============================================================================

// HTMLExporter exports a thread as a single self-contained HTML page.
type HTMLExporter struct {
	options *Options
}

// NewHTMLExporter creates a new HTML exporter.
func NewHTMLExporter(opts *Options) *HTMLExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &HTMLExporter{options: opts}
}

// Export converts a thread to HTML. All user content is escaped.
func (e *HTMLExporter) Export(t model.Thread) ([]byte, error) {
	if err := validate(t); err != nil {
		return nil, err
	}

	theme := e.options.Theme
	if theme != "light" {
		theme = "dark"
	}

	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n")
	sb.WriteString("<html lang=\"en\">\n")
	sb.WriteString("<head>\n")
	sb.WriteString("    <meta charset=\"UTF-8\">\n")
	sb.WriteString("    <meta name=\"viewport\" content=\"width=device-width, initial-scale=1.0\">\n")
	fmt.Fprintf(&sb, "    <title>%s</title>\n", html.EscapeString(t.Title))
	sb.WriteString("    <meta name=\"generator\" content=\"threadchat\">\n")
	sb.WriteString(css)
	sb.WriteString("</head>\n")
	fmt.Fprintf(&sb, "<body class=\"%s-theme\">\n", theme)
	sb.WriteString("    <div class=\"container\">\n")

	fmt.Fprintf(&sb, "        <h1>%s</h1>\n", html.EscapeString(t.Title))
	if e.options.IncludeMetadata {
		fmt.Fprintf(&sb, "        <p class=\"meta\">%d messages · updated %s</p>\n",
			len(t.Messages), html.EscapeString(formatTimestamp(t.UpdatedAt)))
	}

	sb.WriteString("        <main>\n")
	for _, msg := range t.Messages {
		sb.WriteString(e.renderMessage(msg))
	}
	sb.WriteString("        </main>\n")

	fmt.Fprintf(&sb, "        <footer>Exported from threadchat on %s</footer>\n",
		html.EscapeString(e.options.now().Format("January 2, 2006 at 3:04 PM")))
	sb.WriteString("    </div>\n")
	sb.WriteString("</body>\n")
	sb.WriteString("</html>\n")

	return []byte(sb.String()), nil
}

// FileExtension returns the file extension for HTML.
func (e *HTMLExporter) FileExtension() string {
	return ".html"
}

// MimeType returns the MIME type for HTML.
func (e *HTMLExporter) MimeType() string {
	return "text/html"
}

func (e *HTMLExporter) renderMessage(msg model.Message) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "            <section class=\"message %s\">\n", roleClass(msg.Role))
	fmt.Fprintf(&sb, "                <header>%s", html.EscapeString(msg.Role.DisplayName()))
	if e.options.IncludeTimestamps && !msg.CreatedAt.IsZero() {
		fmt.Fprintf(&sb, " <time datetime=\"%s\">%s</time>",
			msg.CreatedAt.UTC().Format(time.RFC3339), html.EscapeString(formatShortTimestamp(msg.CreatedAt)))
	}
	sb.WriteString("</header>\n")
	fmt.Fprintf(&sb, "                <div class=\"content\">%s</div>\n", html.EscapeString(msg.Content))
	if msg.HasFiles() {
		sb.WriteString("                <ul class=\"files\">\n")
		for _, f := range msg.Files {
			fmt.Fprintf(&sb, "                    <li>📎 %s <span>(%d bytes, %s)</span></li>\n",
				html.EscapeString(f.Name), f.Size, html.EscapeString(f.MimeType))
		}
		sb.WriteString("                </ul>\n")
	}
	sb.WriteString("            </section>\n")
	return sb.String()
}

func roleClass(r model.Role) string {
	switch r {
	case model.RoleUser:
		return "user"
	case model.RoleAssistant:
		return "assistant"
	default:
		return "system"
	}
}

const css = `    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body { font-family: -apple-system, "Segoe UI", Roboto, sans-serif; line-height: 1.6; background: var(--bg); color: var(--fg); }
        .dark-theme { --bg: #1e1e2e; --fg: #f8fafc; --muted: #6c7086; --user: #1e3a5f; --assistant: #2e1065; --border: #45475a; }
        .light-theme { --bg: #f8fafc; --fg: #0f172a; --muted: #94a3b8; --user: #e0f2fe; --assistant: #f5f3ff; --border: #cbd5e1; }
        .container { max-width: 860px; margin: 0 auto; padding: 2rem 1rem; }
        h1 { margin-bottom: 0.25rem; }
        .meta, footer, time, .files span { color: var(--muted); font-size: 0.85rem; }
        main { margin: 1.5rem 0; }
        .message { border: 1px solid var(--border); border-radius: 8px; padding: 0.75rem 1rem; margin-bottom: 1rem; }
        .message.user { background: var(--user); }
        .message.assistant { background: var(--assistant); }
        .message.system { font-style: italic; }
        .message header { font-weight: 600; margin-bottom: 0.25rem; }
        .content { white-space: pre-wrap; word-wrap: break-word; }
        .files { list-style: none; margin-top: 0.5rem; }
    </style>
`
