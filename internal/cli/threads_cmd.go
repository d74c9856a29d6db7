// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// threads_cmd.go - The threads command.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jeranaias/threadchat/internal/export"
	"github.com/jeranaias/threadchat/internal/model"
	"github.com/jeranaias/threadchat/internal/threads"
	"github.com/jeranaias/threadchat/internal/util"
)

const (
	threadsUsage = "threadchat threads [list|new TITLE|show ID|rename ID TITLE|delete ID|search QUERY|export ID]"
	exportUsage  = "threadchat threads export ID [--format markdown|json|html] [--out DIR]"
)

// HandleThreads runs the threads command against a freshly opened Runtime.
func HandleThreads(ctx context.Context, args Args) error {
	rt, err := OpenRuntime(args)
	if err != nil {
		return err
	}
	defer rt.Close()
	return RunThreads(ctx, rt, args, os.Stdout, os.Stderr)
}

// RunThreads dispatches a threads subcommand. Output goes to out,
// notifications to errOut.
func RunThreads(ctx context.Context, rt *Runtime, args Args, out, errOut io.Writer) error {
	p := NewArgParser(args.Raw)
	sub := strings.ToLower(p.Subcommand())
	if sub == "" {
		sub = "list"
	}

	// Falling back to the local store is reported, not fatal.
	_ = rt.Coordinator.Init(ctx)
	defer drainNotifications(rt, errOut, args.Quiet)

	switch sub {
	case "list", "ls":
		return threadsList(rt, args, out)
	case "new", "create":
		return threadsNew(ctx, rt, args, strings.Join(p.PositionalFrom(1), " "), out)
	case "show", "cat":
		return threadsShow(ctx, rt, args, p.Positional(1), out)
	case "rename", "mv":
		return threadsRename(ctx, rt, args, p.Positional(1), strings.Join(p.PositionalFrom(2), " "), out)
	case "delete", "rm":
		return threadsDelete(ctx, rt, args, p.Positional(1), out)
	case "search", "find":
		return threadsSearch(rt, args, strings.Join(p.PositionalFrom(1), " "), out)
	case "export", "save":
		return threadsExport(ctx, rt, args, p.Positional(1), p.Flag("format", "f"), p.Flag("out", "o"), out)
	default:
		return &UsageError{Message: "unknown threads subcommand: " + sub, Usage: threadsUsage}
	}
}

// =============================================================================
// SUBCOMMANDS
// =============================================================================

func threadsList(rt *Runtime, args Args, out io.Writer) error {
	st := rt.Coordinator.State()
	if args.JSON {
		return NewJSONResponse("threads list", ThreadsData{
			Threads:  summarizeAll(st.Threads),
			Degraded: st.Degraded,
		}).Print(out)
	}

	header := fmt.Sprintf("Threads (%d)", len(st.Threads))
	if st.Degraded {
		header += " " + WarningStyle.Render("[offline]")
	}
	fmt.Fprintln(out, TitleStyle.Render(header))
	printThreadTable(out, st.Threads, time.Now())
	return nil
}

func threadsNew(ctx context.Context, rt *Runtime, args Args, title string, out io.Writer) error {
	t, err := rt.Coordinator.CreateThread(ctx)
	if err != nil {
		return wrap("threads", "new", err)
	}
	if title = strings.TrimSpace(title); title != "" {
		// A local-only rename is reported as a warning notification.
		_ = rt.Coordinator.RenameThread(ctx, t.ID, title)
	}
	if st := rt.Coordinator.State(); st.Active != nil {
		t = *st.Active
	}

	if args.JSON {
		return NewJSONResponse("threads new", summarize(t)).Print(out)
	}
	fmt.Fprintf(out, "%s %s  %s\n", SuccessStyle.Render("Created"), t.ID, t.Title)
	return nil
}

func threadsShow(ctx context.Context, rt *Runtime, args Args, ref string, out io.Writer) error {
	t, err := loadThread(ctx, rt, ref)
	if err != nil {
		return wrap("threads", "show", err)
	}
	if args.JSON {
		return NewJSONResponse("threads show", t).Print(out)
	}
	opts := export.DefaultOptions()
	opts.IncludeMetadata = false
	doc, err := export.NewMarkdownExporter(opts).Export(t)
	if errors.Is(err, export.ErrEmptyThread) {
		fmt.Fprintf(out, "# %s\n\n%s\n", t.Title, DimStyle.Render("No messages yet."))
		return nil
	}
	if err != nil {
		return wrap("threads", "show", err)
	}
	_, err = out.Write(doc)
	return err
}

func threadsExport(ctx context.Context, rt *Runtime, args Args, ref, format, dir string, out io.Writer) error {
	if ref == "" {
		return ErrMissingArgument("ID", exportUsage)
	}
	opts := export.DefaultOptions()
	if dir != "" {
		opts.OutputDir = dir
	}
	if strings.EqualFold(rt.Config.UI.Theme, "light") {
		opts.Theme = "light"
	}
	exp, err := export.ForFormat(format, opts)
	if err != nil {
		return &UsageError{Message: err.Error(), Usage: exportUsage}
	}

	t, err := loadThread(ctx, rt, ref)
	if err != nil {
		return wrap("threads", "export", err)
	}
	path, err := export.ExportToFile(t, exp, opts)
	if err != nil {
		return wrap("threads", "export", err)
	}

	if args.JSON {
		return NewJSONResponse("threads export", ExportData{ThreadID: t.ID, Path: path, MimeType: exp.MimeType()}).Print(out)
	}
	fmt.Fprintf(out, "%s %s\n", SuccessStyle.Render("Exported"), path)
	return nil
}

func threadsRename(ctx context.Context, rt *Runtime, args Args, ref, title string, out io.Writer) error {
	if strings.TrimSpace(title) == "" {
		return ErrMissingArgument("TITLE", "threadchat threads rename ID TITLE")
	}
	id, err := resolveThread(rt, ref)
	if err != nil {
		return wrap("threads", "rename", err)
	}
	renameErr := rt.Coordinator.RenameThread(ctx, id, title)

	t, _ := findThread(rt, id)
	if args.JSON {
		if renameErr != nil {
			return NewJSONErrorResponse("threads rename", renameErr).Print(out)
		}
		return NewJSONResponse("threads rename", summarize(t)).Print(out)
	}
	if renameErr != nil {
		// The title still changed locally.
		fmt.Fprintf(out, "%s %s  %s\n", WarningStyle.Render("Renamed locally"), t.ID, t.Title)
		return nil
	}
	fmt.Fprintf(out, "%s %s  %s\n", SuccessStyle.Render("Renamed"), t.ID, t.Title)
	return nil
}

func threadsDelete(ctx context.Context, rt *Runtime, args Args, ref string, out io.Writer) error {
	id, err := resolveThread(rt, ref)
	if err != nil {
		return wrap("threads", "delete", err)
	}
	if err := rt.Coordinator.DeleteThread(ctx, id); err != nil {
		return wrap("threads", "delete", err)
	}
	if args.JSON {
		return NewJSONResponse("threads delete", map[string]string{"id": id}).Print(out)
	}
	fmt.Fprintf(out, "%s %s\n", SuccessStyle.Render("Deleted"), id)
	return nil
}

func threadsSearch(rt *Runtime, args Args, query string, out io.Writer) error {
	query = strings.TrimSpace(query)
	if query == "" {
		return ErrMissingArgument("QUERY", "threadchat threads search QUERY")
	}
	found := rt.Coordinator.Search(query)
	if args.JSON {
		return NewJSONResponse("threads search", ThreadsData{
			Threads:  summarizeAll(found),
			Degraded: rt.Coordinator.State().Degraded,
			Query:    query,
		}).Print(out)
	}
	fmt.Fprintln(out, TitleStyle.Render(fmt.Sprintf("%d %s matching %q", len(found), util.Plural(len(found), "thread"), query)))
	printThreadTable(out, found, time.Now())
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

// resolveThread accepts a full thread id or an unambiguous prefix of one.
func resolveThread(rt *Runtime, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", ErrMissingArgument("ID", threadsUsage)
	}

	var matches []string
	for _, t := range rt.Coordinator.State().Threads {
		if t.ID == ref {
			return t.ID, nil
		}
		if strings.HasPrefix(t.ID, ref) {
			matches = append(matches, t.ID)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%w: %s", threads.ErrNotFound, ref)
	case 1:
		return matches[0], nil
	default:
		return "", &UsageError{Message: fmt.Sprintf("thread id %q is ambiguous (%d matches)", ref, len(matches))}
	}
}

func findThread(rt *Runtime, id string) (model.Thread, bool) {
	for _, t := range rt.Coordinator.State().Threads {
		if t.ID == id {
			return t, true
		}
	}
	return model.Thread{}, false
}

// loadThread selects the thread so its messages are fetched, and returns
// it with the message list the coordinator holds.
func loadThread(ctx context.Context, rt *Runtime, ref string) (model.Thread, error) {
	id, err := resolveThread(rt, ref)
	if err != nil {
		return model.Thread{}, err
	}
	if err := rt.Coordinator.SelectThread(ctx, id); err != nil {
		return model.Thread{}, err
	}
	st := rt.Coordinator.State()
	if st.Active == nil {
		return model.Thread{}, threads.ErrNotFound
	}
	t := st.Active.Clone()
	t.Messages = st.Messages
	return t, nil
}

const (
	idColumn    = 8
	titleColumn = 36
)

func printThreadTable(out io.Writer, list []model.Thread, now time.Time) {
	if len(list) == 0 {
		fmt.Fprintln(out, DimStyle.Render("  No threads."))
		return
	}
	for _, t := range list {
		id := t.ID
		if len(id) > idColumn {
			id = id[:idColumn]
		}
		title := util.PadWidth(util.TruncateWidth(util.SingleLine(t.Title), titleColumn), titleColumn)
		count := fmt.Sprintf("%d %s", len(t.Messages), util.Plural(len(t.Messages), "message"))
		fmt.Fprintf(out, "  %s  %s  %s  %s\n",
			DimStyle.Render(util.PadWidth(id, idColumn)),
			ValueStyle.Render(title),
			util.PadWidth(count, 12),
			DimStyle.Render(formatAge(t.UpdatedAt, now)))
	}
}

// formatAge renders how long ago t was, coarsely.
func formatAge(t, now time.Time) string {
	d := now.Sub(t)
	switch {
	case t.IsZero():
		return "never"
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	default:
		return t.Local().Format("2006-01-02")
	}
}
