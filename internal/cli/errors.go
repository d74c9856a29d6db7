// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// errors.go - Error types, display and exit codes for CLI commands.
//
// Commands always return errors; main decides how to display them and
// which exit code to use.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/jeranaias/threadchat/internal/api"
	"github.com/jeranaias/threadchat/internal/app"
	"github.com/jeranaias/threadchat/internal/config"
	"github.com/jeranaias/threadchat/internal/messages"
	"github.com/jeranaias/threadchat/internal/model"
	"github.com/jeranaias/threadchat/internal/threads"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	ExitSuccess       = 0
	ExitGeneralError  = 1
	ExitUsageError    = 2
	ExitConfigError   = 3
	ExitNetworkError  = 5
	ExitNotFoundError = 7
	ExitTimeoutError  = 8
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// UsageError is a malformed command line.
type UsageError struct {
	Message string
	Usage   string
}

func (e *UsageError) Error() string {
	if e.Usage != "" {
		return fmt.Sprintf("%s\nUsage: %s", e.Message, e.Usage)
	}
	return e.Message
}

// CommandError wraps the failure of one command action.
type CommandError struct {
	Command string // e.g. "threads"
	Action  string // e.g. "delete"
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s %s failed: %v", e.Command, e.Action, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// ReportedError is a failure the command already printed. It still
// determines the exit code.
type ReportedError struct {
	Err error
}

func (e *ReportedError) Error() string {
	return e.Err.Error()
}

func (e *ReportedError) Unwrap() error {
	return e.Err
}

func reported(err error) error {
	if err == nil {
		return nil
	}
	return &ReportedError{Err: err}
}

// ErrMissingArgument reports a required argument that was not given.
func ErrMissingArgument(argName, usage string) error {
	return &UsageError{Message: "missing required argument: " + argName, Usage: usage}
}

// ErrInvalidFormat reports a value that could not be parsed.
func ErrInvalidFormat(field, value, expected string) error {
	return &UsageError{Message: fmt.Sprintf("invalid %s %q: expected %s", field, value, expected)}
}

func wrap(command, action string, err error) error {
	if err == nil {
		return nil
	}
	return &CommandError{Command: command, Action: action, Err: err}
}

// =============================================================================
// DISPLAY
// =============================================================================

// DisplayError writes err for a human, or as a JSONResponse in JSON mode.
func DisplayError(w io.Writer, command string, err error, jsonMode bool) {
	var done *ReportedError
	if err == nil || errors.As(err, &done) {
		return
	}
	if jsonMode {
		_ = NewJSONErrorResponse(command, err).Print(w)
		return
	}
	fmt.Fprintln(w, ErrorStyle.Render("Error: ")+err.Error())
	if hint := errorHint(err); hint != "" {
		fmt.Fprintln(w, DimStyle.Render(hint))
	}
}

// errorHint returns the user-facing explanation for known failures.
func errorHint(err error) string {
	var usage *UsageError
	if errors.As(err, &usage) {
		return "Run 'threadchat help' for usage."
	}
	var cfgErr config.ValidateErrors
	if errors.As(err, &cfgErr) {
		return "Check the config file ('threadchat config path') and THREADCHAT_* variables."
	}
	return app.Describe(err)
}

// GetExitCode maps err to a process exit code.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var usage *UsageError
	var cfgErr config.ValidateErrors
	var validation *model.ValidationError
	switch {
	case errors.As(err, &usage), errors.As(err, &validation):
		return ExitUsageError
	case errors.As(err, &cfgErr):
		return ExitConfigError
	case errors.Is(err, threads.ErrNotFound), errors.Is(err, messages.ErrNoThread), api.IsNotFound(err):
		return ExitNotFoundError
	case errors.Is(err, context.DeadlineExceeded):
		return ExitTimeoutError
	case errors.Is(err, api.ErrServiceUnavailable), api.IsNetwork(err):
		return ExitNetworkError
	default:
		return ExitGeneralError
	}
}
