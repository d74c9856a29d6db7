// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/threadchat/internal/api"
	"github.com/jeranaias/threadchat/internal/api/apitest"
	"github.com/jeranaias/threadchat/internal/config"
	"github.com/jeranaias/threadchat/internal/messages"
	"github.com/jeranaias/threadchat/internal/model"
	"github.com/jeranaias/threadchat/internal/storage"
	"github.com/jeranaias/threadchat/internal/threads"
)

func testConfig(offline bool) *config.Config {
	cfg := config.Default()
	cfg.Chat.TypingDelay = config.Duration{}
	cfg.Offline.Enabled = offline
	return cfg
}

func newCoordinator(t *testing.T, offline bool) (*apitest.Server, *storage.Store, *Coordinator) {
	t.Helper()
	srv := apitest.NewServer(t)
	store := storage.NewStore(storage.NewMemoryKV(), nil)
	client := api.New(api.Options{BaseURL: srv.URL, RetryAttempts: 3, RetryDelay: time.Millisecond})
	c := New(Options{Config: testConfig(offline), Remote: client, Store: store})
	return srv, store, c
}

func drain(c *Coordinator) []Notification {
	var out []Notification
	for {
		select {
		case n := <-c.Notifications():
			out = append(out, n)
		default:
			return out
		}
	}
}

func hasKind(notes []Notification, kind Kind) bool {
	for _, n := range notes {
		if n.Kind == kind {
			return true
		}
	}
	return false
}

// =============================================================================
// INIT / SELECTION
// =============================================================================

func TestInit_AutoSelectsFirstThread(t *testing.T) {
	srv, _, c := newCoordinator(t, false)
	now := time.Now().UTC()
	srv.Seed(model.Thread{ID: "older", Title: "Older", UpdatedAt: now.Add(-time.Minute)})
	srv.Seed(model.Thread{ID: "newer", Title: "Newer", UpdatedAt: now, Messages: []model.Message{
		{ID: "m1", Role: model.RoleAssistant, Content: "hi", CreatedAt: now},
	}})

	require.NoError(t, c.Init(context.Background()))
	st := c.State()
	assert.Equal(t, "newer", st.ActiveID)
	require.NotNil(t, st.Active)
	assert.Equal(t, "Newer", st.Active.Title)
	require.Len(t, st.Messages, 1)
	assert.Equal(t, threads.StateReady, st.Repo)
	assert.False(t, st.Degraded)
	assert.Empty(t, st.Error)
}

func TestInit_DegradedWarnsAndSeeds(t *testing.T) {
	srv, _, c := newCoordinator(t, false)
	srv.SetDown(true)

	err := c.Init(context.Background())
	require.Error(t, err)

	st := c.State()
	assert.True(t, st.Degraded)
	require.Len(t, st.Threads, 1)
	assert.Equal(t, st.Threads[0].ID, st.ActiveID)
	require.Len(t, st.Messages, 1)
	assert.Equal(t, model.WelcomeMessage, st.Messages[0].Content)
	assert.NotEmpty(t, st.Error)
	assert.NotContains(t, st.Error, "HTTP", "transport details are not shown")

	notes := drain(c)
	require.True(t, hasKind(notes, KindWarning))
}

func TestSelectThread_LoadsMessagesLazily(t *testing.T) {
	srv, _, c := newCoordinator(t, false)
	now := time.Now().UTC()
	srv.Seed(model.Thread{ID: "a", Title: "A", UpdatedAt: now})
	srv.Seed(model.Thread{ID: "b", Title: "B", UpdatedAt: now.Add(-time.Minute)})
	require.NoError(t, c.Init(context.Background()))
	require.Equal(t, "a", c.State().ActiveID)

	_, ok := c.threads.Get("b")
	require.True(t, ok)

	require.NoError(t, c.SelectThread(context.Background(), "b"))
	assert.Equal(t, "b", c.State().ActiveID)
	assert.Equal(t, 1, srv.Count(apitest.RouteGetMessages))

	assert.True(t, errors.Is(c.SelectThread(context.Background(), "ghost"), threads.ErrNotFound))
}

// =============================================================================
// CREATE
// =============================================================================

func TestCreateThread_SeedsWelcomeAndSelects(t *testing.T) {
	_, _, c := newCoordinator(t, false)
	require.NoError(t, c.Init(context.Background()))

	created, err := c.CreateThread(context.Background())
	require.NoError(t, err)

	st := c.State()
	assert.Equal(t, created.ID, st.ActiveID)
	assert.Equal(t, created.ID, st.Threads[0].ID)
	assert.Equal(t, model.DefaultTitle, st.Active.Title)
	require.Len(t, st.Messages, 1)
	assert.Equal(t, model.RoleAssistant, st.Messages[0].Role)
	assert.Equal(t, model.WelcomeMessage, st.Messages[0].Content)
	require.Len(t, st.Active.Messages, 1, "welcome message is stored on the thread")

	notes := drain(c)
	require.NotEmpty(t, notes)
	assert.Equal(t, KindSuccess, notes[len(notes)-1].Kind)
	assert.Equal(t, DefaultNotificationDuration, notes[len(notes)-1].Duration)
}

func TestCreateThread_RemoteFailureWarnsButSucceeds(t *testing.T) {
	srv, store, c := newCoordinator(t, false)
	require.NoError(t, c.Init(context.Background()))
	drain(c)
	srv.FailNext(apitest.RouteCreateThread, 1, http.StatusInternalServerError)

	created, err := c.CreateThread(context.Background())
	require.NoError(t, err)
	assert.True(t, c.State().Degraded)

	notes := drain(c)
	assert.True(t, hasKind(notes, KindWarning))
	assert.True(t, hasKind(notes, KindSuccess))

	stored, err := store.LoadThread(created.ID)
	require.NoError(t, err)
	require.Len(t, stored.Messages, 1, "welcome message is persisted in degraded mode")
}

// =============================================================================
// SEND
// =============================================================================

func TestSend_BlankIsNoop(t *testing.T) {
	srv, _, c := newCoordinator(t, false)
	require.NoError(t, c.Init(context.Background()))
	_, err := c.CreateThread(context.Background())
	require.NoError(t, err)

	before := len(c.State().Messages)
	requests := srv.TotalRequests()

	err = c.Send(context.Background(), "   \n", nil)
	var verr *model.ValidationError
	require.True(t, errors.As(err, &verr))

	assert.Len(t, c.State().Messages, before)
	assert.Equal(t, requests, srv.TotalRequests(), "no network call")
}

func TestSend_FirstMessageSetsTitle(t *testing.T) {
	srv, _, c := newCoordinator(t, false)
	require.NoError(t, c.Init(context.Background()))
	created, err := c.CreateThread(context.Background())
	require.NoError(t, err)
	before := c.State().Active.UpdatedAt

	require.NoError(t, c.Send(context.Background(), "Hello", nil))

	st := c.State()
	assert.Equal(t, "Hello", st.Active.Title)
	assert.False(t, st.Active.UpdatedAt.Before(before))
	require.Len(t, st.Messages, 3)
	assert.Equal(t, model.RoleAssistant, st.Messages[0].Role)
	assert.Equal(t, model.RoleUser, st.Messages[1].Role)
	assert.Equal(t, "Hello", st.Messages[1].Content)
	assert.Equal(t, model.RoleAssistant, st.Messages[2].Role)
	assert.Equal(t, "Echo: Hello", st.Messages[2].Content)
	assert.Len(t, st.Active.Messages, 3, "thread is synchronized after the round-trip")

	remote, ok := srv.Thread(created.ID)
	require.True(t, ok)
	assert.Equal(t, "Hello", remote.Title)

	require.NoError(t, c.Send(context.Background(), "Second question", nil))
	assert.Equal(t, "Hello", c.State().Active.Title, "only the first user message names the thread")
}

func TestSend_LongFirstMessageTruncated(t *testing.T) {
	_, _, c := newCoordinator(t, false)
	require.NoError(t, c.Init(context.Background()))
	_, err := c.CreateThread(context.Background())
	require.NoError(t, err)

	text := strings.Repeat("abcdefghij", 6)
	require.NoError(t, c.Send(context.Background(), text, nil))
	assert.Equal(t, text[:50]+"...", c.State().Active.Title)
}

func TestSend_CustomTitleKept(t *testing.T) {
	_, _, c := newCoordinator(t, false)
	require.NoError(t, c.Init(context.Background()))
	created, err := c.CreateThread(context.Background())
	require.NoError(t, err)
	require.NoError(t, c.RenameThread(context.Background(), created.ID, "My plans"))

	require.NoError(t, c.Send(context.Background(), "Hello", nil))
	assert.Equal(t, "My plans", c.State().Active.Title)
}

func TestSend_FailureKeepsUserMessage(t *testing.T) {
	srv, _, c := newCoordinator(t, false)
	require.NoError(t, c.Init(context.Background()))
	_, err := c.CreateThread(context.Background())
	require.NoError(t, err)
	drain(c)
	srv.FailNext(apitest.RouteSendMessage, 3, http.StatusServiceUnavailable)

	err = c.Send(context.Background(), "Hello", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, api.ErrServiceUnavailable))

	st := c.State()
	require.Len(t, st.Messages, 2)
	assert.Equal(t, model.RoleUser, st.Messages[1].Role)
	assert.Len(t, st.Active.Messages, 2, "thread is synchronized after a failed round-trip")
	assert.False(t, st.Typing)

	notes := drain(c)
	require.True(t, hasKind(notes, KindError))
	for _, n := range notes {
		assert.NotContains(t, n.Message, "HTTP")
	}
}

func TestSend_FilesOnlyUsesPlaceholder(t *testing.T) {
	srv, _, c := newCoordinator(t, false)
	require.NoError(t, c.Init(context.Background()))
	created, err := c.CreateThread(context.Background())
	require.NoError(t, err)

	files := []model.Attachment{
		{Name: "a.png", Size: 10, MimeType: "image/png"},
		{Name: "b.txt", Size: 3, MimeType: "text/plain"},
	}
	require.NoError(t, c.Send(context.Background(), "", files))

	st := c.State()
	require.Len(t, st.Messages, 3)
	assert.Equal(t, "Sent 2 files", st.Messages[1].Content)
	assert.Len(t, st.Messages[1].Files, 2)
	assert.Equal(t, model.DefaultTitle, st.Active.Title, "placeholder text does not name the thread")

	md := srv.LastMetadata(created.ID)
	require.NotNil(t, md)
	assert.Len(t, md["files"], 2)
}

func TestSend_BusyRejected(t *testing.T) {
	srv, _, c := newCoordinator(t, false)
	require.NoError(t, c.Init(context.Background()))
	_, err := c.CreateThread(context.Background())
	require.NoError(t, err)
	srv.SetLatency(150 * time.Millisecond)

	done := make(chan error, 1)
	go func() { done <- c.Send(context.Background(), "slow", nil) }()

	require.Eventually(t, func() bool { return c.State().Typing }, time.Second, 5*time.Millisecond)
	err = c.Send(context.Background(), "again", nil)
	assert.True(t, errors.Is(err, messages.ErrBusy))
	require.NoError(t, <-done)
	assert.Len(t, c.State().Messages, 3)
}

func TestSend_ConcurrentSecondSendIsNoop(t *testing.T) {
	srv, _, c := newCoordinator(t, false)
	require.NoError(t, c.Init(context.Background()))
	_, err := c.CreateThread(context.Background())
	require.NoError(t, err)
	srv.SetLatency(100 * time.Millisecond)

	start := make(chan struct{})
	errs := make(chan error, 2)
	for _, text := range []string{"first", "second"} {
		go func(text string) {
			<-start
			errs <- c.Send(context.Background(), text, nil)
		}(text)
	}
	close(start)

	var busy, ok int
	for i := 0; i < 2; i++ {
		switch err := <-errs; {
		case err == nil:
			ok++
		case errors.Is(err, messages.ErrBusy):
			busy++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, busy)

	st := c.State()
	users := 0
	for _, m := range st.Messages {
		if m.Role == model.RoleUser {
			users++
		}
	}
	assert.Equal(t, 1, users, "the rejected send adds nothing")
	assert.Len(t, st.Messages, 3)
	assert.Equal(t, 1, srv.Count(apitest.RouteSendMessage))
}

func TestSend_ReplyKeptWhenThreadSwitched(t *testing.T) {
	for _, degraded := range []bool{false, true} {
		t.Run(fmt.Sprintf("degraded=%v", degraded), func(t *testing.T) {
			srv := apitest.NewServer(t)
			store := storage.NewStore(storage.NewMemoryKV(), nil)
			client := api.New(api.Options{BaseURL: srv.URL, RetryAttempts: 1, RetryDelay: time.Millisecond})
			cfg := testConfig(false)
			cfg.Chat.TypingDelay = config.Duration{Duration: 200 * time.Millisecond}
			c := New(Options{Config: cfg, Remote: client, Store: store})

			if degraded {
				srv.SetDown(true)
				require.Error(t, c.Init(context.Background()))
				srv.SetDown(false)
			} else {
				require.NoError(t, c.Init(context.Background()))
			}
			orig, err := c.CreateThread(context.Background())
			require.NoError(t, err)
			if degraded {
				// The service came back but does not know the local thread yet.
				srv.Seed(model.Thread{ID: orig.ID, Title: orig.Title, UpdatedAt: orig.UpdatedAt})
			}

			done := make(chan error, 1)
			go func() { done <- c.Send(context.Background(), "Hello", nil) }()

			require.Eventually(t, c.messages.Typing, time.Second, 5*time.Millisecond)
			other, err := c.CreateThread(context.Background())
			require.NoError(t, err)
			require.NoError(t, <-done)

			st := c.State()
			assert.Equal(t, other.ID, st.ActiveID)
			require.Len(t, st.Messages, 1, "the new thread only shows its welcome message")

			require.NoError(t, c.SelectThread(context.Background(), orig.ID))
			st = c.State()
			require.Len(t, st.Messages, 3)
			assert.Equal(t, "Hello", st.Messages[1].Content)
			assert.Equal(t, model.RoleAssistant, st.Messages[2].Role)
			assert.Equal(t, "Echo: Hello", st.Messages[2].Content)
			assert.Equal(t, "Hello", st.Active.Title)

			if degraded {
				stored, err := store.LoadThread(orig.ID)
				require.NoError(t, err)
				require.Len(t, stored.Messages, 3, "the reply is saved to the fallback store")
				assert.Equal(t, "Echo: Hello", stored.Messages[2].Content)
			}
		})
	}
}

func TestSend_Offline(t *testing.T) {
	srv, store, c := newCoordinator(t, true)
	c.Init(context.Background())
	id := c.State().ActiveID
	require.NotEmpty(t, id)

	err := c.Send(context.Background(), "Hello", nil)
	require.Error(t, err, "no assistant is reachable offline")
	assert.Zero(t, srv.Count(apitest.RouteSendMessage))

	stored, err := store.LoadThread(id)
	require.NoError(t, err)
	require.Len(t, stored.Messages, 2)
	assert.Equal(t, "Hello", stored.Messages[1].Content)
	assert.Equal(t, "Hello", stored.Title)
}

// =============================================================================
// RENAME / DELETE
// =============================================================================

func TestRenameThread(t *testing.T) {
	_, _, c := newCoordinator(t, false)
	require.NoError(t, c.Init(context.Background()))
	created, err := c.CreateThread(context.Background())
	require.NoError(t, err)
	drain(c)

	require.NoError(t, c.RenameThread(context.Background(), created.ID, "   "))
	require.NoError(t, c.RenameThread(context.Background(), created.ID, model.DefaultTitle))
	assert.Empty(t, drain(c), "blank and unchanged titles are ignored")

	require.NoError(t, c.RenameThread(context.Background(), created.ID, "  Trip  "))
	assert.Equal(t, "Trip", c.State().Active.Title)
	assert.True(t, hasKind(drain(c), KindSuccess))
}

func TestDeleteThread_ActiveClearsSelection(t *testing.T) {
	_, _, c := newCoordinator(t, false)
	require.NoError(t, c.Init(context.Background()))
	first, err := c.CreateThread(context.Background())
	require.NoError(t, err)
	second, err := c.CreateThread(context.Background())
	require.NoError(t, err)
	require.Equal(t, second.ID, c.ActiveID())

	require.NoError(t, c.DeleteThread(context.Background(), second.ID))
	assert.Empty(t, c.ActiveID())

	st := c.State()
	assert.NotEqual(t, second.ID, st.ActiveID)
	assert.Equal(t, first.ID, st.ActiveID, "first remaining thread is auto-selected")
	for _, th := range st.Threads {
		assert.NotEqual(t, second.ID, th.ID)
	}
}

func TestDeleteThread_LastThread(t *testing.T) {
	_, _, c := newCoordinator(t, false)
	require.NoError(t, c.Init(context.Background()))
	only, err := c.CreateThread(context.Background())
	require.NoError(t, err)

	require.NoError(t, c.DeleteThread(context.Background(), only.ID))
	st := c.State()
	assert.Empty(t, st.ActiveID)
	assert.Nil(t, st.Active)
	assert.Empty(t, st.Messages)
}

func TestDeleteThread_FailureKeepsSelection(t *testing.T) {
	srv, _, c := newCoordinator(t, false)
	require.NoError(t, c.Init(context.Background()))
	created, err := c.CreateThread(context.Background())
	require.NoError(t, err)
	drain(c)
	srv.FailNext(apitest.RouteDeleteThread, 1, http.StatusInternalServerError)

	require.Error(t, c.DeleteThread(context.Background(), created.ID))
	assert.Equal(t, created.ID, c.ActiveID())
	assert.True(t, hasKind(drain(c), KindError))
}

// =============================================================================
// RETRY / EXTERNAL CHANGES / SEARCH
// =============================================================================

func TestRetry_Reconnects(t *testing.T) {
	srv, _, c := newCoordinator(t, false)
	srv.SetDown(true)
	require.Error(t, c.Init(context.Background()))
	drain(c)

	srv.SetDown(false)
	require.NoError(t, c.Retry(context.Background()))

	st := c.State()
	assert.False(t, st.Degraded)
	assert.Empty(t, st.Error)
	assert.True(t, hasKind(drain(c), KindSuccess))
}

func TestExternalChange(t *testing.T) {
	_, store, c := newCoordinator(t, true)
	c.Init(context.Background())

	other := model.Thread{ID: "other", Title: "From another window", UpdatedAt: time.Now().UTC().Add(time.Hour), Messages: []model.Message{}}
	require.NoError(t, store.SaveThreadWithMessages(other))

	require.NoError(t, c.ExternalChange(context.Background()))
	st := c.State()
	require.Len(t, st.Threads, 2)
	assert.Equal(t, "other", st.Threads[0].ID)
}

func TestSearch(t *testing.T) {
	srv, _, c := newCoordinator(t, false)
	srv.Seed(model.Thread{ID: "a", Title: "Recipes", UpdatedAt: time.Now().UTC()})
	srv.Seed(model.Thread{ID: "b", Title: "Work", UpdatedAt: time.Now().UTC()})
	require.NoError(t, c.Init(context.Background()))

	hits := c.Search("RECIPE")
	require.Len(t, hits, 1)
	assert.Equal(t, "a", hits[0].ID)
}

// =============================================================================
// NOTIFICATIONS
// =============================================================================

func TestNotification_Expired(t *testing.T) {
	at := time.Now()
	n := Notification{Duration: time.Second, At: at}
	assert.False(t, n.Expired(at.Add(500*time.Millisecond)))
	assert.True(t, n.Expired(at.Add(time.Second)))
	assert.False(t, Notification{At: at}.Expired(at.Add(time.Hour)), "zero duration never expires")
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{&api.ServiceUnavailableError{Op: "x", Attempts: 3, Last: &api.NetworkError{Op: "x", Err: errors.New("refused")}}, "The chat service is unavailable right now."},
		{&api.NetworkError{Op: "x", Err: errors.New("reset")}, "Could not reach the chat service."},
		{&api.HTTPError{StatusCode: 404}, "That chat was not found on the server."},
		{&api.HTTPError{StatusCode: 422, Body: &api.ErrorBody{Message: "content is required"}}, "The server rejected the request: content is required"},
		{fmt.Errorf("wrapped: %w", messages.ErrBusy), "Please wait for the assistant to finish."},
		{&model.ValidationError{Field: "content"}, "Type a message or attach a file."},
		{errors.New("boom"), "Something went wrong."},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Describe(tt.err))
	}
}

func TestUpdates_Coalesce(t *testing.T) {
	_, _, c := newCoordinator(t, true)
	c.Init(context.Background())

	select {
	case <-c.Updates():
	default:
		t.Fatal("expected an update signal")
	}
	select {
	case <-c.Updates():
		t.Fatal("updates should coalesce into one pending signal")
	default:
	}
}
