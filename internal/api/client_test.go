// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/threadchat/internal/api"
	"github.com/jeranaias/threadchat/internal/api/apitest"
	"github.com/jeranaias/threadchat/internal/model"
)

func newClient(baseURL string) *api.Client {
	return api.New(api.Options{
		BaseURL:       baseURL,
		Timeout:       2 * time.Second,
		RetryAttempts: 3,
		RetryDelay:    time.Millisecond,
	})
}

// =============================================================================
// HEALTH
// =============================================================================

func TestHealth_OK(t *testing.T) {
	srv := apitest.NewServer(t)
	require.NoError(t, newClient(srv.URL).Health(context.Background()))
	assert.Equal(t, 1, srv.Count(apitest.RouteHealth))
}

func TestHealth_RecoversWithinBudget(t *testing.T) {
	srv := apitest.NewServer(t)
	srv.FailNext(apitest.RouteHealth, 2, http.StatusInternalServerError)

	require.NoError(t, newClient(srv.URL).Health(context.Background()))
	assert.Equal(t, 3, srv.Count(apitest.RouteHealth))
}

func TestHealth_ExhaustedIsServiceUnavailable(t *testing.T) {
	srv := apitest.NewServer(t)
	srv.FailNext(apitest.RouteHealth, 3, http.StatusInternalServerError)

	err := newClient(srv.URL).Health(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, api.ErrServiceUnavailable))

	var unavailable *api.ServiceUnavailableError
	require.True(t, errors.As(err, &unavailable))
	assert.Equal(t, 3, unavailable.Attempts)
	assert.Equal(t, http.StatusInternalServerError, api.StatusCode(err), "last attempt's error stays reachable")
	assert.Equal(t, 3, srv.Count(apitest.RouteHealth))
}

func TestHealth_NotOKCountsAsFailure(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"ok":false}`))
	}))
	defer srv.Close()

	err := newClient(srv.URL).Health(context.Background())
	assert.True(t, errors.Is(err, api.ErrServiceUnavailable))
	assert.Equal(t, int32(3), calls.Load())
}

func TestHealth_LinearBackoff(t *testing.T) {
	srv := apitest.NewServer(t)
	srv.SetDown(true)

	client := api.New(api.Options{BaseURL: srv.URL, RetryAttempts: 3, RetryDelay: 40 * time.Millisecond})
	start := time.Now()
	err := client.Health(context.Background())
	elapsed := time.Since(start)

	require.Error(t, err)
	// 1*40ms + 2*40ms between the three attempts.
	assert.GreaterOrEqual(t, elapsed, 120*time.Millisecond)
}

func TestHealth_ContextCancelStopsRetrying(t *testing.T) {
	srv := apitest.NewServer(t)
	srv.SetDown(true)

	client := api.New(api.Options{BaseURL: srv.URL, RetryAttempts: 5, RetryDelay: time.Second})
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := client.Health(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Equal(t, 1, srv.Count(apitest.RouteHealth))
}

func TestHealth_NetworkErrorWhenNothingListens(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	err := newClient(url).Health(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, api.ErrServiceUnavailable))
	assert.True(t, api.IsNetwork(err))
}

// =============================================================================
// THREADS
// =============================================================================

func TestThreadLifecycle(t *testing.T) {
	srv := apitest.NewServer(t)
	client := newClient(srv.URL)
	ctx := context.Background()

	created, err := client.CreateThread(ctx, "New Chat")
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "New Chat", created.Title)
	assert.False(t, created.CreatedAt.IsZero())

	threads, err := client.ListThreads(ctx)
	require.NoError(t, err)
	require.Len(t, threads, 1)
	assert.Equal(t, created.ID, threads[0].ID)
	assert.NotNil(t, threads[0].Messages)

	ack, err := client.UpdateThreadTitle(ctx, created.ID, "Renamed")
	require.NoError(t, err)
	assert.True(t, ack.OK)
	assert.Equal(t, created.ID, ack.ThreadID)
	assert.False(t, ack.UpdatedAt.IsZero())

	del, err := client.DeleteThread(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, del.OK)

	_, err = client.DeleteThread(ctx, created.ID)
	require.Error(t, err)
	assert.True(t, api.IsNotFound(err))
}

func TestCreateThread_NoRetry(t *testing.T) {
	srv := apitest.NewServer(t)
	srv.FailNext(apitest.RouteCreateThread, 1, http.StatusServiceUnavailable)

	_, err := newClient(srv.URL).CreateThread(context.Background(), "x")
	require.Error(t, err)
	assert.Equal(t, 1, srv.Count(apitest.RouteCreateThread))
	assert.False(t, errors.Is(err, api.ErrServiceUnavailable))
}

// =============================================================================
// MESSAGES
// =============================================================================

func TestSendMessage(t *testing.T) {
	srv := apitest.NewServer(t)
	srv.Seed(model.Thread{ID: "t1", Title: "Chat", UpdatedAt: time.Now()})
	client := newClient(srv.URL)

	res, err := client.SendMessage(context.Background(), "t1", "Hello", map[string]any{"source": "test"})
	require.NoError(t, err)
	assert.Equal(t, "t1", res.ThreadID)
	assert.NotEmpty(t, res.UserMessageID)
	assert.NotEmpty(t, res.AssistantMessageID)
	assert.Equal(t, "Echo: Hello", res.Assistant.Content)
	assert.Equal(t, "fake-1", res.Assistant.Model)
	require.NotNil(t, res.Assistant.Usage)
	assert.Equal(t, "test", srv.LastMetadata("t1")["source"])

	msgs, err := client.GetMessages(context.Background(), "t1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, model.RoleUser, msgs[0].Role)
	assert.Equal(t, model.RoleAssistant, msgs[1].Role)
}

func TestSendMessage_RetriesServerErrors(t *testing.T) {
	srv := apitest.NewServer(t)
	srv.Seed(model.Thread{ID: "t1", UpdatedAt: time.Now()})
	srv.FailNext(apitest.RouteSendMessage, 1, http.StatusBadGateway)
	srv.DropNext(apitest.RouteSendMessage, 1)

	res, err := newClient(srv.URL).SendMessage(context.Background(), "t1", "hi", nil)
	require.NoError(t, err)
	assert.Equal(t, "Echo: hi", res.Assistant.Content)
	assert.Equal(t, 3, srv.Count(apitest.RouteSendMessage))
}

func TestSendMessage_ClientErrorIsNotRetried(t *testing.T) {
	srv := apitest.NewServer(t)

	_, err := newClient(srv.URL).SendMessage(context.Background(), "missing", "hi", nil)
	require.Error(t, err)
	assert.Equal(t, 1, srv.Count(apitest.RouteSendMessage))

	var httpErr *api.HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusNotFound, httpErr.StatusCode)
	require.NotNil(t, httpErr.Body)
	assert.Equal(t, "not_found", httpErr.Body.Code)
	assert.Equal(t, "Thread not found", httpErr.Message())
}

func TestSendMessage_Exhausted(t *testing.T) {
	srv := apitest.NewServer(t)
	srv.Seed(model.Thread{ID: "t1", UpdatedAt: time.Now()})
	srv.FailNext(apitest.RouteSendMessage, 3, http.StatusTooManyRequests)

	_, err := newClient(srv.URL).SendMessage(context.Background(), "t1", "hi", nil)
	assert.True(t, errors.Is(err, api.ErrServiceUnavailable))
	assert.Equal(t, 3, srv.Count(apitest.RouteSendMessage))
}

// =============================================================================
// ERROR DECODING
// =============================================================================

func TestHTTPError_RawBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "plain failure", http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := newClient(srv.URL).CreateThread(context.Background(), "x")
	var httpErr *api.HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Nil(t, httpErr.Body)
	assert.Equal(t, "plain failure", httpErr.Raw)
	assert.True(t, strings.Contains(err.Error(), "plain failure"))
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, api.IsRetryable(nil))
	assert.True(t, api.IsRetryable(&api.HTTPError{StatusCode: 500}))
	assert.True(t, api.IsRetryable(&api.HTTPError{StatusCode: 429}))
	assert.False(t, api.IsRetryable(&api.HTTPError{StatusCode: 404}))
	assert.True(t, api.IsRetryable(&api.NetworkError{Op: "x", Err: errors.New("reset")}))
	assert.False(t, api.IsRetryable(&api.NetworkError{Op: "x", Err: context.Canceled}))
}

func TestClient_PathEscapesIDs(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	_, err := newClient(srv.URL).GetMessages(context.Background(), "a/b c")
	require.NoError(t, err)
	assert.Equal(t, "/threads/a%2Fb%20c/messages", gotPath)
}

func TestClient_RateLimit(t *testing.T) {
	srv := apitest.NewServer(t)
	client := api.New(api.Options{BaseURL: srv.URL, RateLimit: 20, RateBurst: 1})

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, client.Health(context.Background()))
	}
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}
