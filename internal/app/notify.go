// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/jeranaias/threadchat/internal/api"
	"github.com/jeranaias/threadchat/internal/messages"
	"github.com/jeranaias/threadchat/internal/model"
	"github.com/jeranaias/threadchat/internal/threads"
)

// DefaultNotificationDuration is how long a notification stays visible.
const DefaultNotificationDuration = 5 * time.Second

// Kind classifies a notification.
type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
	KindWarning Kind = "warning"
	KindInfo    Kind = "info"
)

// Notification is a transient message for the user.
type Notification struct {
	Kind     Kind
	Message  string
	Duration time.Duration
	At       time.Time
}

// Expired reports whether the notification should no longer be shown.
func (n Notification) Expired(now time.Time) bool {
	return n.Duration > 0 && now.Sub(n.At) >= n.Duration
}

// Describe turns an error into text fit for the user. Transport details
// never reach the UI.
func Describe(err error) string {
	var (
		verr    *model.ValidationError
		httpErr *api.HTTPError
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled):
		return "Cancelled."
	case errors.As(err, &verr):
		return "Type a message or attach a file."
	case errors.Is(err, messages.ErrBusy):
		return "Please wait for the assistant to finish."
	case errors.Is(err, messages.ErrNoThread):
		return "Select or create a chat first."
	case errors.Is(err, threads.ErrNotFound):
		return "That chat no longer exists."
	case errors.Is(err, threads.ErrOffline):
		return "Offline mode is on. Chats are stored on this machine."
	case errors.Is(err, api.ErrServiceUnavailable):
		return "The chat service is unavailable right now."
	case errors.Is(err, context.DeadlineExceeded):
		return "The chat service took too long to answer."
	case api.IsNetwork(err):
		return "Could not reach the chat service."
	case errors.As(err, &httpErr):
		switch {
		case httpErr.StatusCode == http.StatusNotFound:
			return "That chat was not found on the server."
		case httpErr.StatusCode == http.StatusTooManyRequests:
			return "Too many requests. Please slow down."
		case httpErr.StatusCode >= 500:
			return "The chat service hit an error."
		case httpErr.Body != nil && httpErr.Body.Message != "":
			return "The server rejected the request: " + httpErr.Body.Message
		default:
			return "The server rejected the request."
		}
	default:
		return "Something went wrong."
	}
}

// failure prefixes an action's failure text to the described cause.
func failure(action string, err error) string {
	return action + " " + Describe(err)
}
