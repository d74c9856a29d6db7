// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"testing"
	"time"
)

// =============================================================================
// COMMAND PARSING TESTS (cli.go)
// =============================================================================

func TestParseArgs(t *testing.T) {
	tests := []struct {
		name     string
		argv     []string
		wantCmd  Command
		validate func(*testing.T, Args)
	}{
		{
			name:    "no arguments starts the TUI",
			argv:    nil,
			wantCmd: CmdTUI,
		},
		{
			name:    "threads with subcommand",
			argv:    []string{"threads", "list"},
			wantCmd: CmdThreads,
			validate: func(t *testing.T, a Args) {
				if a.Subcommand != "list" {
					t.Errorf("Subcommand = %q, want list", a.Subcommand)
				}
			},
		},
		{
			name:    "global flags anywhere",
			argv:    []string{"--json", "threads", "--offline", "search", "go"},
			wantCmd: CmdThreads,
			validate: func(t *testing.T, a Args) {
				if !a.JSON || !a.Offline {
					t.Errorf("JSON=%v Offline=%v, want both true", a.JSON, a.Offline)
				}
				if len(a.Raw) != 2 || a.Raw[0] != "search" || a.Raw[1] != "go" {
					t.Errorf("Raw = %q", a.Raw)
				}
			},
		},
		{
			name:    "config path with equals",
			argv:    []string{"--config=/tmp/tc.toml", "config", "show"},
			wantCmd: CmdConfig,
			validate: func(t *testing.T, a Args) {
				if a.ConfigPath != "/tmp/tc.toml" {
					t.Errorf("ConfigPath = %q", a.ConfigPath)
				}
			},
		},
		{
			name:    "config path as separate argument",
			argv:    []string{"--config", "/tmp/tc.toml", "health"},
			wantCmd: CmdHealth,
			validate: func(t *testing.T, a Args) {
				if a.ConfigPath != "/tmp/tc.toml" {
					t.Errorf("ConfigPath = %q", a.ConfigPath)
				}
			},
		},
		{
			name:    "send keeps its own flags",
			argv:    []string{"send", "abc", "hello", "--file", "a.txt", "-v"},
			wantCmd: CmdSend,
			validate: func(t *testing.T, a Args) {
				if !a.Verbose {
					t.Error("Verbose should be true")
				}
				if len(a.Raw) != 4 {
					t.Errorf("Raw = %q, want 4 items", a.Raw)
				}
			},
		},
		{
			name:    "aliases",
			argv:    []string{"t"},
			wantCmd: CmdThreads,
		},
		{
			name:    "version flag",
			argv:    []string{"--version"},
			wantCmd: CmdVersion,
		},
		{
			name:    "unknown command",
			argv:    []string{"frobnicate"},
			wantCmd: CmdHelp,
			validate: func(t *testing.T, a Args) {
				if a.Unknown != "frobnicate" {
					t.Errorf("Unknown = %q", a.Unknown)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, args := ParseArgs(tt.argv)
			if cmd != tt.wantCmd {
				t.Fatalf("command = %v, want %v", cmd, tt.wantCmd)
			}
			if tt.validate != nil {
				tt.validate(t, args)
			}
		})
	}
}

func TestCommand_String(t *testing.T) {
	if got := CmdThreads.String(); got != "threads" {
		t.Errorf("CmdThreads.String() = %q", got)
	}
	if got := Command(99).String(); got != "command(99)" {
		t.Errorf("Command(99).String() = %q", got)
	}
}

// =============================================================================
// ARG PARSER TESTS (args.go)
// =============================================================================

func TestArgParser(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		bools    []string
		wantSub  string
		validate func(*testing.T, *ArgParser)
	}{
		{
			name:    "simple subcommand",
			args:    []string{"list"},
			wantSub: "list",
		},
		{
			name:    "flag with value",
			args:    []string{"--thread", "abc"},
			wantSub: "",
			validate: func(t *testing.T, p *ArgParser) {
				if p.Flag("thread", "t") != "abc" {
					t.Errorf("Flag(thread) = %q", p.Flag("thread"))
				}
			},
		},
		{
			name:    "short alias",
			args:    []string{"-t", "abc"},
			validate: func(t *testing.T, p *ArgParser) {
				if p.Flag("thread", "t") != "abc" {
					t.Errorf("Flag(thread, t) = %q", p.Flag("thread", "t"))
				}
			},
		},
		{
			name:    "flag with equals",
			args:    []string{"show", "--limit=5"},
			wantSub: "show",
			validate: func(t *testing.T, p *ArgParser) {
				n, err := p.FlagInt("limit", 0)
				if err != nil || n != 5 {
					t.Errorf("FlagInt(limit) = %d, %v", n, err)
				}
			},
		},
		{
			name:    "boolean flag does not swallow positional",
			args:    []string{"init", "--force", "extra"},
			bools:   []string{"force"},
			wantSub: "init",
			validate: func(t *testing.T, p *ArgParser) {
				if !p.BoolFlag("force") {
					t.Error("BoolFlag(force) should be true")
				}
				if p.Positional(1) != "extra" {
					t.Errorf("Positional(1) = %q", p.Positional(1))
				}
			},
		},
		{
			name:    "repeatable flag",
			args:    []string{"id", "text", "--file", "a.txt", "-f", "b.txt"},
			wantSub: "id",
			validate: func(t *testing.T, p *ArgParser) {
				files := p.Flags("file", "f")
				if len(files) != 2 || files[0] != "a.txt" || files[1] != "b.txt" {
					t.Errorf("Flags(file, f) = %q", files)
				}
				if got := p.PositionalFrom(1); len(got) != 1 || got[0] != "text" {
					t.Errorf("PositionalFrom(1) = %q", got)
				}
			},
		},
		{
			name:    "double dash ends flags",
			args:    []string{"id", "--", "--not-a-flag"},
			wantSub: "id",
			validate: func(t *testing.T, p *ArgParser) {
				if p.HasFlag("not-a-flag") {
					t.Error("flag after -- should be positional")
				}
				if p.Positional(1) != "--not-a-flag" {
					t.Errorf("Positional(1) = %q", p.Positional(1))
				}
			},
		},
		{
			name: "explicit false",
			args: []string{"--force=false"},
			validate: func(t *testing.T, p *ArgParser) {
				if p.BoolFlag("force") {
					t.Error("BoolFlag(force) should be false")
				}
				if !p.HasFlag("force") {
					t.Error("HasFlag(force) should be true")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewArgParser(tt.args, tt.bools...)
			if got := p.Subcommand(); got != tt.wantSub {
				t.Errorf("Subcommand() = %q, want %q", got, tt.wantSub)
			}
			if tt.validate != nil {
				tt.validate(t, p)
			}
		})
	}
}

func TestArgParser_FlagIntInvalid(t *testing.T) {
	p := NewArgParser([]string{"--limit", "lots"})
	if _, err := p.FlagInt("limit", 0); err == nil {
		t.Fatal("expected error for non-integer value")
	}
	if n, _ := NewArgParser(nil).FlagInt("limit", 7); n != 7 {
		t.Errorf("default = %d, want 7", n)
	}
}

func TestArgParser_OutOfRange(t *testing.T) {
	p := NewArgParser([]string{"only"})
	if p.Positional(3) != "" || p.Positional(-1) != "" {
		t.Error("out-of-range Positional should be empty")
	}
	if p.PositionalFrom(5) != nil {
		t.Error("out-of-range PositionalFrom should be nil")
	}
	if p.FlagOrDefault("missing", "x") != "x" {
		t.Error("FlagOrDefault should return the default")
	}
}

// =============================================================================
// HELPERS
// =============================================================================

func TestFormatAge(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		at   time.Time
		want string
	}{
		{time.Time{}, "never"},
		{now.Add(-10 * time.Second), "just now"},
		{now.Add(-5 * time.Minute), "5m ago"},
		{now.Add(-3 * time.Hour), "3h ago"},
		{now.Add(-50 * time.Hour), "2d ago"},
	}
	for _, tt := range tests {
		if got := formatAge(tt.at, now); got != tt.want {
			t.Errorf("formatAge(%v) = %q, want %q", tt.at, got, tt.want)
		}
	}
}

// =============================================================================
// TERMINAL (terminal.go)
// =============================================================================

func TestCanRunTUI_DumbTerminal(t *testing.T) {
	t.Setenv("TERM", "dumb")
	if CanRunTUI() {
		t.Error("CanRunTUI() = true for TERM=dumb")
	}
}

func TestClampWidth(t *testing.T) {
	tests := []struct {
		width int
		err   error
		want  int
	}{
		{120, errors.New("not a terminal"), defaultLineWidth},
		{0, nil, defaultLineWidth},
		{10, nil, minLineWidth},
		{72, nil, 72},
		{300, nil, maxLineWidth},
	}
	for _, tt := range tests {
		if got := clampWidth(tt.width, tt.err); got != tt.want {
			t.Errorf("clampWidth(%d, %v) = %d, want %d", tt.width, tt.err, got, tt.want)
		}
	}
}
