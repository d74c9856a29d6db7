// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Line-oriented chat session.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/peterh/liner"

	"github.com/jeranaias/threadchat/internal/app"
	"github.com/jeranaias/threadchat/internal/config"
	"github.com/jeranaias/threadchat/internal/messages"
	"github.com/jeranaias/threadchat/internal/model"
	"github.com/jeranaias/threadchat/internal/util"
)

const chatHelp = `Commands:
  /new               Start a new chat
  /threads           List chats
  /switch ID         Switch to a chat (id or prefix)
  /rename TITLE      Rename the current chat
  /delete [ID]       Delete the current (or given) chat
  /attach [PATH]     Attach a file to the next message, or list attachments
  /detach            Drop pending attachments
  /search QUERY      Search chats
  /history           Show the current chat
  /retry             Reconnect to the chat service
  /help              Show this help
  /quit              Exit`

// =============================================================================
// INPUT HISTORY
// =============================================================================

// LineReader reads one line of user input.
type LineReader interface {
	ReadInput(prompt string) (string, error)
}

// ChatCLI provides input history and line editing for interactive chat.
type ChatCLI struct {
	line        *liner.State
	historyFile string
}

// NewChatCLI creates a ChatCLI and loads the saved history.
func NewChatCLI() *ChatCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	configDir, err := config.ConfigDir()
	if err != nil {
		configDir = os.TempDir()
	}
	c := &ChatCLI{
		line:        line,
		historyFile: filepath.Join(configDir, "chat_history"),
	}
	if f, err := os.Open(c.historyFile); err == nil {
		c.line.ReadHistory(f)
		f.Close()
	}
	return c
}

// ReadInput reads a line of input with the given prompt.
func (c *ChatCLI) ReadInput(prompt string) (string, error) {
	input, err := c.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		c.line.AppendHistory(input)
	}
	return input, nil
}

// SaveHistory persists the history with owner-only permissions.
func (c *ChatCLI) SaveHistory() {
	if err := os.MkdirAll(filepath.Dir(c.historyFile), 0700); err != nil {
		return
	}
	f, err := os.OpenFile(c.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return
	}
	defer f.Close()
	c.line.WriteHistory(f)
}

// Close saves history and restores the terminal.
func (c *ChatCLI) Close() {
	c.SaveHistory()
	c.line.Close()
}

// =============================================================================
// SESSION
// =============================================================================

// ChatSession drives the coordinator from typed lines.
type ChatSession struct {
	rt    *Runtime
	out   io.Writer
	quiet bool

	mu      sync.Mutex
	pending []model.Attachment
	cancel  context.CancelFunc
}

// NewChatSession creates a session writing to out.
func NewChatSession(rt *Runtime, out io.Writer, quiet bool) *ChatSession {
	return &ChatSession{rt: rt, out: out, quiet: quiet}
}

// HandleChat runs an interactive chat session on the terminal.
func HandleChat(ctx context.Context, args Args) error {
	rt, err := OpenRuntime(args)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if err := rt.WatchStore(ctx); err != nil {
		rt.Logger.Warn("store watch disabled", "error", err)
	}

	session := NewChatSession(rt, os.Stdout, args.Quiet)

	// Ctrl+C while waiting for the assistant cancels that request only.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case sig := <-sigCh:
				if !session.CancelSend() && sig == syscall.SIGTERM {
					cancel()
					return
				}
			}
		}
	}()

	p := NewArgParser(args.Raw)
	input := NewChatCLI()
	defer input.Close()
	return session.Run(ctx, input, p.Flag("thread", "t"))
}

// Run loads threads, optionally selects threadRef, then reads lines until
// /quit, EOF or ctx is done.
func (s *ChatSession) Run(ctx context.Context, in LineReader, threadRef string) error {
	c := s.rt.Coordinator
	_ = c.Init(ctx)

	fmt.Fprintln(s.out, TitleStyle.Render("threadchat")+DimStyle.Render("  type /help for commands"))
	if threadRef != "" {
		if err := s.switchTo(ctx, threadRef); err != nil {
			s.printError(err)
		}
	} else {
		s.printHistory()
	}
	s.flush()

	aborted := false
	for {
		if ctx.Err() != nil {
			return nil
		}
		line, err := in.ReadInput(s.prompt())
		if errors.Is(err, liner.ErrPromptAborted) {
			if aborted {
				return nil
			}
			aborted = true
			fmt.Fprintln(s.out, DimStyle.Render("(press Ctrl+C again or type /quit to exit)"))
			continue
		}
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(s.out)
			return nil
		}
		if err != nil {
			return err
		}
		aborted = false

		line = strings.TrimSpace(line)
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, "/"):
			if quit := s.command(ctx, line); quit {
				s.flush()
				return nil
			}
		default:
			s.send(ctx, line)
		}
		s.flush()
	}
}

// CancelSend aborts the in-flight send, reporting whether there was one.
func (s *ChatSession) CancelSend() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel == nil {
		return false
	}
	s.cancel()
	s.cancel = nil
	return true
}

// Pending returns the attachments queued for the next message.
func (s *ChatSession) Pending() []model.Attachment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Attachment(nil), s.pending...)
}

func (s *ChatSession) prompt() string {
	st := s.rt.Coordinator.State()
	title := "no chat"
	if st.Active != nil {
		title = util.TruncateWidth(util.SingleLine(st.Active.Title), 24)
	}
	var sb strings.Builder
	sb.WriteString(title)
	if st.Degraded {
		sb.WriteString(" (offline)")
	}
	if n := len(s.Pending()); n > 0 {
		sb.WriteString(fmt.Sprintf(" +%d %s", n, util.Plural(n, "file")))
	}
	sb.WriteString(" > ")
	return sb.String()
}

// =============================================================================
// ACTIONS
// =============================================================================

func (s *ChatSession) send(ctx context.Context, text string) {
	files := s.Pending()

	sendCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()
	defer s.CancelSend()

	fmt.Fprintln(s.out, DimStyle.Render("Assistant is typing..."))
	err := s.rt.Coordinator.Send(sendCtx, text, files)

	var validation *model.ValidationError
	if errors.As(err, &validation) {
		s.printError(err)
		return
	}
	if errors.Is(err, messages.ErrNoThread) {
		// Reported as a notification; keep the attachments for the retry.
		return
	}

	// The user message stays in the thread even when the reply failed.
	s.mu.Lock()
	s.pending = nil
	s.mu.Unlock()

	if err != nil {
		return
	}
	if reply := lastReply(s.rt.Coordinator.State().Messages); reply != nil {
		s.printMessage(*reply)
	}
}

// command runs a slash command and reports whether the session should end.
func (s *ChatSession) command(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	name := strings.ToLower(fields[0])
	rest := strings.TrimSpace(strings.TrimPrefix(line, fields[0]))
	c := s.rt.Coordinator

	switch name {
	case "/quit", "/exit", "/q":
		return true

	case "/help", "/?":
		fmt.Fprintln(s.out, chatHelp)

	case "/new":
		if _, err := c.CreateThread(ctx); err == nil {
			s.printHistory()
		}

	case "/threads", "/list":
		st := c.State()
		for _, t := range st.Threads {
			marker := "  "
			if t.ID == st.ActiveID {
				marker = UserStyle.Render("* ")
			}
			fmt.Fprint(s.out, marker)
			printThreadTable(s.out, []model.Thread{t}, time.Now())
		}
		if len(st.Threads) == 0 {
			fmt.Fprintln(s.out, DimStyle.Render("  No threads."))
		}

	case "/switch", "/open":
		if err := s.switchTo(ctx, rest); err != nil {
			s.printError(err)
		}

	case "/rename":
		id := c.ActiveID()
		if id == "" {
			s.printError(errors.New("no chat selected"))
			break
		}
		if rest == "" {
			s.printError(ErrMissingArgument("TITLE", "/rename TITLE"))
			break
		}
		_ = c.RenameThread(ctx, id, rest)

	case "/delete":
		ref := rest
		if ref == "" {
			ref = c.ActiveID()
		}
		id, err := resolveThread(s.rt, ref)
		if err != nil {
			s.printError(err)
			break
		}
		if err := c.DeleteThread(ctx, id); err == nil {
			s.printHistory()
		}

	case "/attach":
		if rest == "" {
			s.printPending()
			break
		}
		a, err := model.AttachmentFromFile(rest)
		if err != nil {
			s.printError(err)
			break
		}
		s.mu.Lock()
		s.pending = append(s.pending, a)
		s.mu.Unlock()
		fmt.Fprintf(s.out, "%s %s (%s)\n", InfoStyle.Render("Attached"), a.Name, a.MimeType)

	case "/detach":
		s.mu.Lock()
		s.pending = nil
		s.mu.Unlock()

	case "/search", "/find":
		if rest == "" {
			s.printError(ErrMissingArgument("QUERY", "/search QUERY"))
			break
		}
		found := c.Search(rest)
		fmt.Fprintln(s.out, TitleStyle.Render(fmt.Sprintf("%d %s matching %q", len(found), util.Plural(len(found), "thread"), rest)))
		printThreadTable(s.out, found, time.Now())

	case "/history":
		s.printHistory()

	case "/retry":
		if err := c.Retry(ctx); err == nil {
			s.printHistory()
		}

	default:
		s.printError(&UsageError{Message: "unknown command " + name + " (type /help)"})
	}
	return false
}

func (s *ChatSession) switchTo(ctx context.Context, ref string) error {
	id, err := resolveThread(s.rt, ref)
	if err != nil {
		return err
	}
	if err := s.rt.Coordinator.SelectThread(ctx, id); err != nil {
		return err
	}
	s.printHistory()
	return nil
}

// =============================================================================
// OUTPUT
// =============================================================================

func (s *ChatSession) printHistory() {
	st := s.rt.Coordinator.State()
	if st.Active == nil {
		fmt.Fprintln(s.out, DimStyle.Render("No chat selected. Type /new to start one."))
		return
	}
	fmt.Fprintln(s.out, RenderSeparator(lineWidth()-2))
	fmt.Fprintln(s.out, TitleStyle.Render(st.Active.Title))
	for _, m := range st.Messages {
		s.printMessage(m)
	}
}

func (s *ChatSession) printMessage(m model.Message) {
	prefix := UserStyle.Render(m.Role.DisplayName() + ":")
	if m.Role != model.RoleUser {
		prefix = AssistantStyle.Render(m.Role.DisplayName() + ":")
	}
	fmt.Fprintf(s.out, "%s %s\n", prefix, m.Content)
	for _, f := range m.Files {
		fmt.Fprintln(s.out, DimStyle.Render("  📎 "+f.Name))
	}
}

func (s *ChatSession) printPending() {
	files := s.Pending()
	if len(files) == 0 {
		fmt.Fprintln(s.out, DimStyle.Render("No attachments."))
		return
	}
	for _, f := range files {
		fmt.Fprintf(s.out, "  📎 %s (%d bytes, %s)\n", f.Name, f.Size, f.MimeType)
	}
}

func (s *ChatSession) printError(err error) {
	fmt.Fprintln(s.out, ErrorStyle.Render("Error: ")+errorText(err))
}

// errorText prefers the user-facing description of known failures.
func errorText(err error) string {
	var usage *UsageError
	if errors.As(err, &usage) {
		return usage.Message
	}
	if d := app.Describe(err); d != "Something went wrong." {
		return d
	}
	return err.Error()
}

func (s *ChatSession) flush() {
	drainNotifications(s.rt, s.out, s.quiet)
}
