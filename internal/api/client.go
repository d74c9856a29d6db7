// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/jeranaias/threadchat/internal/config"
	"github.com/jeranaias/threadchat/internal/logging"
	"github.com/jeranaias/threadchat/internal/model"
)

// Configuration defaults.
const (
	DefaultBaseURL       = "http://127.0.0.1:8000"
	DefaultTimeout       = 10 * time.Second
	DefaultRetryAttempts = 3
	DefaultRetryDelay    = time.Second

	// MaxResponseSize bounds how much of a response body is read.
	MaxResponseSize = 10 * 1024 * 1024

	// maxErrorText bounds the raw body kept on an HTTPError.
	maxErrorText = 512

	userAgent = "threadchat/1.0"
)

// Options configures a Client. Zero fields take defaults.
type Options struct {
	BaseURL       string
	Timeout       time.Duration
	RetryAttempts int
	RetryDelay    time.Duration

	// RateLimit caps requests per second; 0 means unlimited.
	RateLimit float64
	RateBurst int

	Logger     *slog.Logger
	HTTPClient *http.Client
}

// DefaultOptions returns the default client options.
func DefaultOptions() Options {
	return Options{
		BaseURL:       DefaultBaseURL,
		Timeout:       DefaultTimeout,
		RetryAttempts: DefaultRetryAttempts,
		RetryDelay:    DefaultRetryDelay,
		RateBurst:     1,
	}
}

// OptionsFromConfig maps the [api] config section onto client options.
func OptionsFromConfig(cfg *config.Config, logger *slog.Logger) Options {
	return Options{
		BaseURL:       cfg.API.BaseURL,
		Timeout:       cfg.API.Timeout.Duration,
		RetryAttempts: cfg.API.RetryAttempts,
		RetryDelay:    cfg.API.RetryDelay.Duration,
		RateLimit:     cfg.API.RateLimit,
		RateBurst:     cfg.API.RateBurst,
		Logger:        logger,
	}
}

// Client talks to the remote threads service. It is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	attempts   int
	retryDelay time.Duration
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// New creates a client from opts.
func New(opts Options) *Client {
	defaults := DefaultOptions()
	if opts.BaseURL == "" {
		opts.BaseURL = defaults.BaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaults.Timeout
	}
	if opts.RetryAttempts <= 0 {
		opts.RetryAttempts = defaults.RetryAttempts
	}
	if opts.RetryDelay < 0 {
		opts.RetryDelay = 0
	}
	if opts.RateBurst <= 0 {
		opts.RateBurst = defaults.RateBurst
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		}
	}

	limiter := rate.NewLimiter(rate.Inf, opts.RateBurst)
	if opts.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), opts.RateBurst)
	}

	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		httpClient: httpClient,
		attempts:   opts.RetryAttempts,
		retryDelay: opts.RetryDelay,
		limiter:    limiter,
		logger:     logging.OrDiscard(opts.Logger).With("component", "api"),
	}
}

// BaseURL returns the service root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// =============================================================================
// OPERATIONS
// =============================================================================

// Health checks GET /health, retrying with backoff. Any failure, including
// {"ok": false}, consumes an attempt. Returns a ServiceUnavailableError once
// the budget is spent.
func (c *Client) Health(ctx context.Context) error {
	return c.retry(ctx, "health", func(error) bool { return true }, func(ctx context.Context) error {
		var status HealthStatus
		if err := c.do(ctx, "health", http.MethodGet, "/health", nil, &status); err != nil {
			return err
		}
		if !status.OK {
			return errors.New("health: service reported not ok")
		}
		return nil
	})
}

// CreateThread creates a thread remotely. No retry, no fallback.
func (c *Client) CreateThread(ctx context.Context, title string) (CreatedThread, error) {
	var out CreatedThread
	err := c.do(ctx, "create thread", http.MethodPost, "/threads", CreateThreadRequest{Title: title}, &out)
	if err != nil {
		return CreatedThread{}, err
	}
	if out.ID == "" {
		return CreatedThread{}, errors.New("create thread: response has no id")
	}
	if out.Title == "" {
		out.Title = title
	}
	return out, nil
}

// ListThreads returns every thread with its messages, in service order.
func (c *Client) ListThreads(ctx context.Context) ([]model.Thread, error) {
	var out []model.Thread
	if err := c.do(ctx, "list threads", http.MethodGet, "/threads", nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []model.Thread{}
	}
	for i := range out {
		out[i].Normalize()
	}
	return out, nil
}

// GetMessages returns a thread's messages.
func (c *Client) GetMessages(ctx context.Context, threadID string) ([]model.Message, error) {
	var out []model.Message
	if err := c.do(ctx, "get messages", http.MethodGet, threadPath(threadID)+"/messages", nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []model.Message{}
	}
	for i := range out {
		out[i].Normalize()
	}
	return out, nil
}

// SendMessage posts a user message and returns the assistant's reply. It is
// retried on transport failures, 5xx and 429; other errors return at once.
func (c *Client) SendMessage(ctx context.Context, threadID, content string, metadata map[string]any) (SendResult, error) {
	if metadata == nil {
		metadata = map[string]any{}
	}
	body := SendMessageRequest{Content: content, Metadata: metadata}

	var out SendResult
	err := c.retry(ctx, "send message", IsRetryable, func(ctx context.Context) error {
		out = SendResult{}
		return c.do(ctx, "send message", http.MethodPost, threadPath(threadID)+"/messages", body, &out)
	})
	if err != nil {
		return SendResult{}, err
	}
	return out, nil
}

// UpdateThreadTitle renames a thread remotely.
func (c *Client) UpdateThreadTitle(ctx context.Context, threadID, title string) (TitleAck, error) {
	var out TitleAck
	if err := c.do(ctx, "update thread", http.MethodPut, threadPath(threadID), UpdateThreadRequest{Title: title}, &out); err != nil {
		return TitleAck{}, err
	}
	return out, nil
}

// DeleteThread deletes a thread remotely.
func (c *Client) DeleteThread(ctx context.Context, threadID string) (DeleteAck, error) {
	var out DeleteAck
	if err := c.do(ctx, "delete thread", http.MethodDelete, threadPath(threadID), nil, &out); err != nil {
		return DeleteAck{}, err
	}
	return out, nil
}

// =============================================================================
// RETRY WITH LINEAR BACKOFF
// =============================================================================

// retry runs fn up to c.attempts times. Before attempt i+1 it waits
// i*retryDelay. Non-retryable errors and cancellation end the loop early.
func (c *Client) retry(ctx context.Context, op string, retryable func(error) bool, fn func(context.Context) error) error {
	var last error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if !retryable(err) {
			return err
		}
		last = err

		if attempt == c.attempts {
			break
		}
		delay := time.Duration(attempt) * c.retryDelay
		c.logger.Warn("retrying", "op", op, "attempt", attempt, "delay", delay, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return &ServiceUnavailableError{Op: op, Attempts: c.attempts, Last: last}
}

// =============================================================================
// REQUEST HELPERS
// =============================================================================

// do performs one request. in is JSON-encoded when non-nil; the response is
// decoded into out when non-nil.
func (c *Client) do(ctx context.Context, op, method, path string, in, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: failed to marshal request: %w", op, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%s: failed to create request: %w", op, err)
	}
	requestID := logging.RequestID(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-Request-ID", requestID)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	log := c.logger.With("request_id", requestID)
	log.Debug("api request", "method", method, "path", path)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Warn("api request failed", "method", method, "path", path, "duration", time.Since(start), "error", err)
		return &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()
	log.Debug("api response", "method", method, "path", path, "status", resp.StatusCode, "duration", time.Since(start))

	data, err := readResponse(resp)
	if err != nil {
		return &NetworkError{Op: op, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return handleErrorResponse(op, resp.StatusCode, data)
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s: failed to parse response: %w", op, err)
	}
	return nil
}

// readResponse reads at most MaxResponseSize bytes of the body.
func readResponse(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if len(body) > MaxResponseSize {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)
	}
	return body, nil
}

// handleErrorResponse builds an HTTPError, parsing the service's JSON error
// document when there is one.
func handleErrorResponse(op string, status int, body []byte) error {
	raw := strings.TrimSpace(string(body))
	if r := []rune(raw); len(r) > maxErrorText {
		raw = string(r[:maxErrorText]) + "..."
	}
	httpErr := &HTTPError{Op: op, StatusCode: status, Raw: raw}

	var doc ErrorBody
	if err := json.Unmarshal(body, &doc); err == nil && (doc.Message != "" || doc.Code != "") {
		if doc.StatusCode == 0 {
			doc.StatusCode = status
		}
		httpErr.Body = &doc
	}
	return httpErr
}

func threadPath(id string) string {
	return "/threads/" + url.PathEscape(id)
}
