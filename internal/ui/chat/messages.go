// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/threadchat/internal/app"
	"github.com/jeranaias/threadchat/internal/model"
)

// =============================================================================
// MESSAGE TYPES
// =============================================================================

// StateChangedMsg is sent when the coordinator reports a state change.
type StateChangedMsg struct{}

// NotificationMsg carries one coordinator notification.
type NotificationMsg struct {
	Notification app.Notification
}

// Action names an asynchronous coordinator call.
type Action string

const (
	ActionInit   Action = "init"
	ActionRetry  Action = "retry"
	ActionSelect Action = "select"
	ActionCreate Action = "create"
	ActionSend   Action = "send"
	ActionRename Action = "rename"
	ActionDelete Action = "delete"
)

// ActionDoneMsg reports the end of an Action.
type ActionDoneMsg struct {
	Action Action
	Err    error

	// Set for ActionSend so a rejected send can be restored into the
	// composer.
	Text  string
	Files []model.Attachment
}

// toastTickMsg drives toast expiry.
type toastTickMsg time.Time

// =============================================================================
// COMMAND CREATORS
// =============================================================================

// waitForUpdate blocks until the coordinator signals a change.
func waitForUpdate(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return StateChangedMsg{}
	}
}

// waitForNotification blocks until the coordinator raises a notification.
func waitForNotification(ch <-chan app.Notification) tea.Cmd {
	return func() tea.Msg {
		n, ok := <-ch
		if !ok {
			return nil
		}
		return NotificationMsg{Notification: n}
	}
}

// runAction calls fn off the UI goroutine and reports the result.
func runAction(ctx context.Context, action Action, fn func(context.Context) error) tea.Cmd {
	return func() tea.Msg {
		return ActionDoneMsg{Action: action, Err: fn(ctx)}
	}
}

// sendCmd posts text and files to the active thread.
func sendCmd(ctx context.Context, coord *app.Coordinator, text string, files []model.Attachment) tea.Cmd {
	return func() tea.Msg {
		err := coord.Send(ctx, text, files)
		return ActionDoneMsg{Action: ActionSend, Err: err, Text: text, Files: files}
	}
}

func toastTick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return toastTickMsg(t)
	})
}
