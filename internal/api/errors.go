// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrServiceUnavailable matches every ServiceUnavailableError.
var ErrServiceUnavailable = errors.New("service unavailable")

// NetworkError is a transport failure: no HTTP response was received.
type NetworkError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network error: %v", e.Op, e.Err)
}

// Unwrap returns the transport error.
func (e *NetworkError) Unwrap() error {
	return e.Err
}

// ErrorBody is the JSON error document returned by the service.
type ErrorBody struct {
	Code       string `json:"error"`
	Message    string `json:"message"`
	StatusCode int    `json:"status_code"`
	Details    any    `json:"details,omitempty"`
}

// HTTPError is a non-2xx response. Body is set when the response carried a
// JSON error document; Raw always holds the (size-limited) response text.
type HTTPError struct {
	Op         string
	StatusCode int
	Body       *ErrorBody
	Raw        string
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	if e.Body != nil && e.Body.Message != "" {
		if e.Body.Code != "" {
			return fmt.Sprintf("%s: HTTP %d [%s]: %s", e.Op, e.StatusCode, e.Body.Code, e.Body.Message)
		}
		return fmt.Sprintf("%s: HTTP %d: %s", e.Op, e.StatusCode, e.Body.Message)
	}
	if e.Raw != "" {
		return fmt.Sprintf("%s: HTTP %d: %s", e.Op, e.StatusCode, e.Raw)
	}
	return fmt.Sprintf("%s: HTTP %d %s", e.Op, e.StatusCode, http.StatusText(e.StatusCode))
}

// Message returns the service's human-readable message, if any.
func (e *HTTPError) Message() string {
	if e.Body != nil && e.Body.Message != "" {
		return e.Body.Message
	}
	return e.Raw
}

// ServiceUnavailableError is returned when every retry attempt failed.
type ServiceUnavailableError struct {
	Op       string
	Attempts int
	Last     error
}

// Error implements the error interface.
func (e *ServiceUnavailableError) Error() string {
	return fmt.Sprintf("%s: service unavailable after %d attempts: %v", e.Op, e.Attempts, e.Last)
}

// Unwrap exposes both ErrServiceUnavailable and the last attempt's error.
func (e *ServiceUnavailableError) Unwrap() []error {
	return []error{ErrServiceUnavailable, e.Last}
}

// IsRetryable reports whether err is worth another attempt: transport
// failures (including per-request timeouts), 5xx responses and 429.
// Cancellation never is.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode >= 500 || httpErr.StatusCode == http.StatusTooManyRequests
	}

	var netErr *NetworkError
	return errors.As(err, &netErr)
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}
	return 0
}

// IsNotFound reports whether the service answered 404.
func IsNotFound(err error) bool {
	return StatusCode(err) == http.StatusNotFound
}

// IsNetwork reports whether err is a transport failure.
func IsNetwork(err error) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr)
}
