// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/threadchat/internal/api"
	"github.com/jeranaias/threadchat/internal/api/apitest"
	"github.com/jeranaias/threadchat/internal/config"
	"github.com/jeranaias/threadchat/internal/model"
	"github.com/jeranaias/threadchat/internal/storage"
	"github.com/jeranaias/threadchat/internal/threads"
)

func testRuntime(t *testing.T, offline bool) (*apitest.Server, *Runtime) {
	t.Helper()
	srv := apitest.NewServer(t)

	cfg := config.Default()
	cfg.API.BaseURL = srv.URL
	cfg.API.RetryDelay = config.Duration{Duration: time.Millisecond}
	cfg.Chat.TypingDelay = config.Duration{}
	cfg.Offline.Enabled = offline
	cfg.Offline.Backend = config.BackendMemory

	rt := NewRuntime(cfg, nil, storage.NewMemoryKV())
	t.Cleanup(func() { rt.Close() })
	return srv, rt
}

func seedThread(srv *apitest.Server, id, title string, updated time.Time, contents ...string) {
	msgs := make([]model.Message, len(contents))
	for i, c := range contents {
		role := model.RoleUser
		if i%2 == 1 {
			role = model.RoleAssistant
		}
		msgs[i] = model.Message{ID: id + "-m" + string(rune('0'+i)), Role: role, Content: c, CreatedAt: updated}
	}
	srv.Seed(model.Thread{ID: id, Title: title, UpdatedAt: updated, Messages: msgs})
}

// decodeResponse parses a JSONResponse, decoding Data into data.
func decodeResponse(t *testing.T, out []byte, data any) JSONResponse {
	t.Helper()
	var raw struct {
		JSONResponse
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(out, &raw), "output: %s", out)
	if data != nil {
		require.NoError(t, json.Unmarshal(raw.Data, data))
	}
	return raw.JSONResponse
}

// =============================================================================
// THREADS
// =============================================================================

func TestRunThreads_ListJSON(t *testing.T) {
	srv, rt := testRuntime(t, false)
	now := time.Now().UTC()
	seedThread(srv, "aaa111", "Older", now.Add(-time.Hour), "hi", "hello")
	seedThread(srv, "bbb222", "Newer", now)

	var out, errOut bytes.Buffer
	err := RunThreads(context.Background(), rt, Args{JSON: true}, &out, &errOut)
	require.NoError(t, err)

	var data ThreadsData
	resp := decodeResponse(t, out.Bytes(), &data)
	assert.True(t, resp.Success)
	assert.Equal(t, "threads list", resp.Command)
	assert.False(t, data.Degraded)
	require.Len(t, data.Threads, 2)
	assert.Equal(t, "bbb222", data.Threads[0].ID)
	assert.Equal(t, 2, data.Threads[1].MessageCount)
	assert.Equal(t, "hello", data.Threads[1].LastMessage)
}

func TestRunThreads_ListHuman(t *testing.T) {
	srv, rt := testRuntime(t, false)
	seedThread(srv, "aaa111bbb", "Planning the trip", time.Now().UTC())

	var out, errOut bytes.Buffer
	require.NoError(t, RunThreads(context.Background(), rt, Args{}, &out, &errOut))
	assert.Contains(t, out.String(), "Threads (1)")
	assert.Contains(t, out.String(), "aaa111bb")
	assert.Contains(t, out.String(), "Planning the trip")
	assert.NotContains(t, out.String(), "[offline]")
}

func TestRunThreads_NewWithTitle(t *testing.T) {
	srv, rt := testRuntime(t, false)

	var out, errOut bytes.Buffer
	args := Args{JSON: true, Raw: []string{"new", "Trip", "ideas"}}
	require.NoError(t, RunThreads(context.Background(), rt, args, &out, &errOut))

	var data ThreadSummary
	decodeResponse(t, out.Bytes(), &data)
	assert.Equal(t, "Trip ideas", data.Title)
	assert.Equal(t, 1, data.MessageCount, "welcome message")

	remote, ok := srv.Thread(data.ID)
	require.True(t, ok)
	assert.Equal(t, "Trip ideas", remote.Title)
	assert.Contains(t, errOut.String(), "New chat created successfully!")
}

func TestRunThreads_ShowByPrefix(t *testing.T) {
	srv, rt := testRuntime(t, false)
	seedThread(srv, "abc123", "Recipes", time.Now().UTC(), "How long to boil an egg?", "About 9 minutes.")
	seedThread(srv, "xyz789", "Other", time.Now().UTC())

	var out, errOut bytes.Buffer
	args := Args{Raw: []string{"show", "abc"}}
	require.NoError(t, RunThreads(context.Background(), rt, args, &out, &errOut))
	assert.Contains(t, out.String(), "# Recipes")
	assert.Contains(t, out.String(), "About 9 minutes.")
}

func TestRunThreads_AmbiguousPrefix(t *testing.T) {
	srv, rt := testRuntime(t, false)
	seedThread(srv, "abc1", "One", time.Now().UTC())
	seedThread(srv, "abc2", "Two", time.Now().UTC())

	var out, errOut bytes.Buffer
	err := RunThreads(context.Background(), rt, Args{Raw: []string{"delete", "abc"}}, &out, &errOut)
	var usage *UsageError
	require.ErrorAs(t, err, &usage)
	assert.Contains(t, usage.Message, "ambiguous")
	assert.Len(t, srv.Threads(), 2)
}

func TestRunThreads_DeleteUnknown(t *testing.T) {
	_, rt := testRuntime(t, false)

	var out, errOut bytes.Buffer
	err := RunThreads(context.Background(), rt, Args{Raw: []string{"delete", "nope"}}, &out, &errOut)
	require.ErrorIs(t, err, threads.ErrNotFound)
	assert.Equal(t, ExitNotFoundError, GetExitCode(err))
}

func TestRunThreads_RenameAndDelete(t *testing.T) {
	srv, rt := testRuntime(t, false)
	seedThread(srv, "abc123", "Old", time.Now().UTC())
	ctx := context.Background()

	var out, errOut bytes.Buffer
	require.NoError(t, RunThreads(ctx, rt, Args{Raw: []string{"rename", "abc123", "Fresh", "name"}}, &out, &errOut))
	assert.Contains(t, out.String(), "Renamed")
	remote, _ := srv.Thread("abc123")
	assert.Equal(t, "Fresh name", remote.Title)

	out.Reset()
	require.NoError(t, RunThreads(ctx, rt, Args{Raw: []string{"delete", "abc123"}}, &out, &errOut))
	assert.Contains(t, out.String(), "Deleted abc123")
	assert.Empty(t, srv.Threads())
}

func TestRunThreads_Search(t *testing.T) {
	srv, rt := testRuntime(t, false)
	seedThread(srv, "a1", "Groceries", time.Now().UTC(), "buy MILK")
	seedThread(srv, "b2", "Work", time.Now().UTC(), "deadline friday")

	var out, errOut bytes.Buffer
	require.NoError(t, RunThreads(context.Background(), rt, Args{JSON: true, Raw: []string{"search", "milk"}}, &out, &errOut))

	var data ThreadsData
	decodeResponse(t, out.Bytes(), &data)
	assert.Equal(t, "milk", data.Query)
	require.Len(t, data.Threads, 1)
	assert.Equal(t, "a1", data.Threads[0].ID)
}

func TestRunThreads_Offline(t *testing.T) {
	srv, rt := testRuntime(t, true)

	var out, errOut bytes.Buffer
	require.NoError(t, RunThreads(context.Background(), rt, Args{}, &out, &errOut))
	assert.Contains(t, out.String(), "[offline]")
	assert.Contains(t, out.String(), model.DefaultTitle, "seeded thread")
	assert.Contains(t, errOut.String(), "Offline mode")
	assert.Zero(t, srv.TotalRequests())
}

func TestRunThreads_RemoteDownFallsBack(t *testing.T) {
	srv, rt := testRuntime(t, false)
	srv.SetDown(true)

	var out, errOut bytes.Buffer
	require.NoError(t, RunThreads(context.Background(), rt, Args{JSON: true}, &out, &errOut))

	var data ThreadsData
	decodeResponse(t, out.Bytes(), &data)
	assert.True(t, data.Degraded)
	assert.Len(t, data.Threads, 1)
	assert.Contains(t, errOut.String(), "Failed to load threads. Using offline mode.")
}

func TestRunThreads_Export(t *testing.T) {
	srv, rt := testRuntime(t, false)
	seedThread(srv, "abc123", "Recipes", time.Now().UTC(), "How long to boil an egg?", "About 9 minutes.")
	dir := t.TempDir()

	var out, errOut bytes.Buffer
	args := Args{JSON: true, Raw: []string{"export", "abc", "--format", "html", "--out", dir}}
	require.NoError(t, RunThreads(context.Background(), rt, args, &out, &errOut))

	var data ExportData
	decodeResponse(t, out.Bytes(), &data)
	assert.Equal(t, "abc123", data.ThreadID)
	assert.Equal(t, "text/html", data.MimeType)
	assert.Equal(t, dir, filepath.Dir(data.Path))
	assert.True(t, strings.HasSuffix(data.Path, ".html"), data.Path)

	body, err := os.ReadFile(data.Path)
	require.NoError(t, err)
	assert.Contains(t, string(body), "About 9 minutes.")
}

func TestRunThreads_ExportBadFormat(t *testing.T) {
	srv, rt := testRuntime(t, false)
	seedThread(srv, "abc123", "Recipes", time.Now().UTC())

	var out, errOut bytes.Buffer
	args := Args{Raw: []string{"export", "abc", "--format", "pdf", "--out", t.TempDir()}}
	err := RunThreads(context.Background(), rt, args, &out, &errOut)
	var usage *UsageError
	require.ErrorAs(t, err, &usage)
	assert.Equal(t, ExitUsageError, GetExitCode(err))
}

func TestRunThreads_UnknownSubcommand(t *testing.T) {
	_, rt := testRuntime(t, false)
	err := RunThreads(context.Background(), rt, Args{Raw: []string{"frob"}}, io.Discard, io.Discard)
	assert.Equal(t, ExitUsageError, GetExitCode(err))
}

// =============================================================================
// SEND
// =============================================================================

func TestRunSend(t *testing.T) {
	srv, rt := testRuntime(t, false)
	seedThread(srv, "abc123", model.DefaultTitle, time.Now().UTC())

	var out, errOut bytes.Buffer
	args := Args{Raw: []string{"abc", "what", "is", "Go?"}}
	require.NoError(t, RunSend(context.Background(), rt, args, &out, &errOut))
	assert.Equal(t, "Echo: what is Go?\n", out.String())

	remote, _ := srv.Thread("abc123")
	assert.Equal(t, "what is Go?", remote.Title)
	assert.Len(t, remote.Messages, 2)
}

func TestRunSend_JSONWithFile(t *testing.T) {
	srv, rt := testRuntime(t, false)
	seedThread(srv, "abc123", "Docs", time.Now().UTC())

	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("some notes"), 0600))

	var out, errOut bytes.Buffer
	args := Args{JSON: true, Raw: []string{"abc123", "--file", path}}
	require.NoError(t, RunSend(context.Background(), rt, args, &out, &errOut))

	var data SendData
	decodeResponse(t, out.Bytes(), &data)
	require.NotNil(t, data.Reply)
	assert.Equal(t, "Echo: Sent 1 file", data.Reply.Content)
	require.Len(t, data.Messages, 2)
	require.Len(t, data.Messages[0].Files, 1)
	assert.Equal(t, "notes.txt", data.Messages[0].Files[0].Name)

	md := srv.LastMetadata("abc123")
	files, ok := md["files"].([]any)
	require.True(t, ok, "metadata: %v", md)
	assert.Len(t, files, 1)
}

func TestRunSend_ServiceFailure(t *testing.T) {
	srv, rt := testRuntime(t, false)
	seedThread(srv, "abc123", "Docs", time.Now().UTC())
	srv.FailNext(apitest.RouteSendMessage, 3, 503)

	var out, errOut bytes.Buffer
	err := RunSend(context.Background(), rt, Args{Raw: []string{"abc123", "hello"}}, &out, &errOut)
	require.ErrorIs(t, err, api.ErrServiceUnavailable)
	assert.Equal(t, ExitNetworkError, GetExitCode(err))
	assert.Empty(t, out.String())
	assert.Contains(t, errOut.String(), "Failed to get AI response.")
}

func TestRunSend_Validation(t *testing.T) {
	srv, rt := testRuntime(t, false)
	seedThread(srv, "abc123", "Docs", time.Now().UTC())

	err := RunSend(context.Background(), rt, Args{Raw: []string{"abc123", "   "}}, io.Discard, io.Discard)
	assert.Equal(t, ExitUsageError, GetExitCode(err))
	assert.Zero(t, srv.Count(apitest.RouteSendMessage))

	err = RunSend(context.Background(), rt, Args{}, io.Discard, io.Discard)
	assert.Equal(t, ExitUsageError, GetExitCode(err))
}

func TestRunSend_MissingFile(t *testing.T) {
	_, rt := testRuntime(t, false)
	args := Args{Raw: []string{"abc123", "hi", "--file", filepath.Join(t.TempDir(), "missing")}}
	err := RunSend(context.Background(), rt, args, io.Discard, io.Discard)
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

// =============================================================================
// HEALTH
// =============================================================================

func TestRunHealth(t *testing.T) {
	_, rt := testRuntime(t, false)

	var out bytes.Buffer
	require.NoError(t, RunHealth(context.Background(), rt, Args{JSON: true}, &out))

	var data HealthData
	decodeResponse(t, out.Bytes(), &data)
	assert.True(t, data.OK)
	assert.Equal(t, rt.Client.BaseURL(), data.BaseURL)
}

func TestRunHealth_Down(t *testing.T) {
	srv, rt := testRuntime(t, false)
	srv.SetDown(true)

	var out bytes.Buffer
	err := RunHealth(context.Background(), rt, Args{}, &out)
	require.Error(t, err)
	assert.Equal(t, ExitNetworkError, GetExitCode(err))
	assert.Contains(t, out.String(), "[FAIL]")
	assert.Equal(t, 3, srv.Count(apitest.RouteHealth))

	// Already printed; DisplayError stays quiet.
	var shown bytes.Buffer
	DisplayError(&shown, "health", err, false)
	assert.Empty(t, shown.String())
}

func TestRunHealth_Offline(t *testing.T) {
	_, rt := testRuntime(t, true)
	err := RunHealth(context.Background(), rt, Args{}, io.Discard)
	assert.ErrorIs(t, err, ErrNoRemote)
}

// =============================================================================
// CONFIG
// =============================================================================

func TestRunConfig_InitShowPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.toml")
	args := Args{ConfigPath: path}

	var out bytes.Buffer
	require.NoError(t, RunConfig(Args{ConfigPath: path, Raw: []string{"init"}}, &out))
	assert.FileExists(t, path)

	err := RunConfig(Args{ConfigPath: path, Raw: []string{"init"}}, io.Discard)
	assert.Equal(t, ExitUsageError, GetExitCode(err), "refuses to overwrite")
	require.NoError(t, RunConfig(Args{ConfigPath: path, Raw: []string{"init", "--force"}}, io.Discard))

	out.Reset()
	require.NoError(t, RunConfig(args, &out))
	assert.Contains(t, out.String(), "base_url")
	assert.Contains(t, out.String(), path)

	out.Reset()
	args.JSON = true
	args.Raw = []string{"path"}
	require.NoError(t, RunConfig(args, &out))
	var info ConfigPathInfo
	decodeResponse(t, out.Bytes(), &info)
	assert.True(t, info.Exists)
	assert.Equal(t, path, info.ConfigFile)
}

func TestRunConfig_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[ui]\ntheme = \"neon\"\n"), 0600))

	err := RunConfig(Args{ConfigPath: path}, io.Discard)
	require.Error(t, err)
	assert.Equal(t, ExitConfigError, GetExitCode(err))
}

// =============================================================================
// CHAT SESSION
// =============================================================================

type scriptReader struct {
	lines   []string
	prompts []string
}

func (r *scriptReader) ReadInput(prompt string) (string, error) {
	r.prompts = append(r.prompts, prompt)
	if len(r.lines) == 0 {
		return "", io.EOF
	}
	line := r.lines[0]
	r.lines = r.lines[1:]
	return line, nil
}

func TestChatSession_Script(t *testing.T) {
	srv, rt := testRuntime(t, false)

	var out bytes.Buffer
	in := &scriptReader{lines: []string{
		"/new",
		"hello there",
		"/rename Greetings",
		"/threads",
		"/bogus",
		"/quit",
		"never read",
	}}
	s := NewChatSession(rt, &out, false)
	require.NoError(t, s.Run(context.Background(), in, ""))

	text := out.String()
	assert.Contains(t, text, "New chat created successfully!")
	assert.Contains(t, text, "Echo: hello there")
	assert.Contains(t, text, "Thread renamed successfully")
	assert.Contains(t, text, "unknown command /bogus")
	assert.Equal(t, []string{"never read"}, in.lines)

	list := srv.Threads()
	require.Len(t, list, 1)
	assert.Equal(t, "Greetings", list[0].Title)
	assert.True(t, strings.HasPrefix(in.prompts[len(in.prompts)-1], "Greetings"))
}

func TestChatSession_AttachAndSwitch(t *testing.T) {
	srv, rt := testRuntime(t, false)
	seedThread(srv, "abc123", "First", time.Now().UTC())
	seedThread(srv, "def456", "Second", time.Now().UTC().Add(-time.Hour))

	path := filepath.Join(t.TempDir(), "pic.png")
	require.NoError(t, os.WriteFile(path, []byte("\x89PNG\r\n\x1a\n"), 0600))

	var out bytes.Buffer
	in := &scriptReader{lines: []string{
		"/attach " + path,
		"/attach",
		"look at this",
	}}
	s := NewChatSession(rt, &out, false)
	require.NoError(t, s.Run(context.Background(), in, "def"))

	assert.Contains(t, out.String(), "Second")
	assert.Contains(t, out.String(), "pic.png (8 bytes, image/png)")
	assert.Empty(t, s.Pending(), "attachments are consumed by the send")

	remote, _ := srv.Thread("def456")
	require.Len(t, remote.Messages, 2)
	assert.Contains(t, in.prompts[2], "+1 file")
}

func TestChatSession_Offline(t *testing.T) {
	srv, rt := testRuntime(t, true)

	var out bytes.Buffer
	in := &scriptReader{lines: []string{"remember the milk", "/search milk"}}
	s := NewChatSession(rt, &out, false)
	require.NoError(t, s.Run(context.Background(), in, ""))

	assert.Contains(t, out.String(), "1 thread matching \"milk\"")
	assert.Zero(t, srv.TotalRequests())
	assert.Contains(t, in.prompts[0], "(offline)")

	stored, err := rt.Store.LoadAllThreads()
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "remember the milk", stored[0].Title)
}

// =============================================================================
// ERRORS
// =============================================================================

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"usage", ErrMissingArgument("ID", ""), ExitUsageError},
		{"validation", &model.ValidationError{Field: "content", Message: "empty"}, ExitUsageError},
		{"config", config.ValidateErrors{{Field: "ui.theme", Message: "bad"}}, ExitConfigError},
		{"not found", wrap("threads", "show", threads.ErrNotFound), ExitNotFoundError},
		{"http 404", &api.HTTPError{Op: "get", StatusCode: 404}, ExitNotFoundError},
		{"unavailable", &api.ServiceUnavailableError{Op: "health", Attempts: 3, Last: errors.New("x")}, ExitNetworkError},
		{"network", &api.NetworkError{Op: "list", Err: errors.New("refused")}, ExitNetworkError},
		{"deadline", context.DeadlineExceeded, ExitTimeoutError},
		{"reported", reported(&api.NetworkError{Op: "h", Err: errors.New("x")}), ExitNetworkError},
		{"other", errors.New("boom"), ExitGeneralError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetExitCode(tt.err))
		})
	}
}

func TestDisplayError_JSON(t *testing.T) {
	var out bytes.Buffer
	DisplayError(&out, "send", errors.New("boom"), true)

	resp := decodeResponse(t, out.Bytes(), nil)
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "boom", *resp.Error)
}
