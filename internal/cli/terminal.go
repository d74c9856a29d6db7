// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// terminal.go - What the attached terminal can do.
package cli

import (
	"os"
	"sync"

	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// Line mode wraps separators to the terminal, within these bounds.
const (
	defaultLineWidth = 80
	minLineWidth     = 20
	maxLineWidth     = 100
)

// CanRunTUI reports whether the full-screen UI can take over: stdin and
// stdout must both be terminals and TERM must not be "dumb". Otherwise
// threadchat falls back to the line-oriented chat session.
func CanRunTUI() bool {
	if os.Getenv("TERM") == "dumb" {
		return false
	}
	return isTerminal(os.Stdin) && isTerminal(os.Stdout)
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// lineWidth is the width used for separators in the chat session.
func lineWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	return clampWidth(width, err)
}

func clampWidth(width int, err error) int {
	switch {
	case err != nil || width <= 0:
		return defaultLineWidth
	case width < minLineWidth:
		return minLineWidth
	case width > maxLineWidth:
		return maxLineWidth
	default:
		return width
	}
}

// outputProfile is the color profile for CLI output. termenv honors
// NO_COLOR and CLICOLOR_FORCE and drops to Ascii when stdout is piped, so
// --json and scripted runs get plain text.
var outputProfile = sync.OnceValue(termenv.EnvColorProfile)
