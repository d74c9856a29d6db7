// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - Command parsing and usage text for threadchat.
package cli

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdTUI Command = iota
	CmdChat
	CmdThreads
	CmdSend
	CmdHealth
	CmdConfig
	CmdVersion
	CmdHelp
)

var commandNames = map[Command]string{
	CmdTUI:     "tui",
	CmdChat:    "chat",
	CmdThreads: "threads",
	CmdSend:    "send",
	CmdHealth:  "health",
	CmdConfig:  "config",
	CmdVersion: "version",
	CmdHelp:    "help",
}

// String returns the command name as typed on the command line.
func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return fmt.Sprintf("command(%d)", int(c))
}

// Args holds parsed CLI arguments.
type Args struct {
	// Global flags
	Quiet   bool
	Verbose bool
	JSON    bool // Output in JSON format
	Offline bool // Force offline mode for this run

	// ConfigPath overrides the config file location (--config).
	ConfigPath string

	// Subcommand is the first argument after the command, if any.
	Subcommand string

	// Raw holds everything after the command name, global flags removed.
	Raw []string

	// Unknown is set when the command name was not recognized.
	Unknown string
}

const usageText = `threadchat - chat threads with an AI assistant, online or off

USAGE:
  threadchat [global flags] [command] [arguments]

COMMANDS:
  tui                         Full-screen terminal UI (default)
  chat [--thread ID]          Line-oriented chat session
  threads [list]              List threads, most recent first
  threads new [TITLE]         Create a thread
  threads show ID             Print a thread as Markdown
  threads rename ID TITLE     Rename a thread
  threads delete ID           Delete a thread
  threads search QUERY        Search titles and messages
  threads export ID           Save a thread as Markdown, JSON or HTML
                              (--format FMT, --out DIR)
  send ID TEXT [--file PATH]  Send a message and print the reply
  health                      Check the chat service
  config [show|init|path]     Show, create or locate the config file
  version                     Show version information
  help                        Show this help

GLOBAL FLAGS:
  --json                      Machine-readable output
  --offline                   Use the local store only
  --config PATH               Config file (default ~/.threadchat/config.toml)
  -v, --verbose               Log to stderr at debug level
  -q, --quiet                 Suppress notifications

EXAMPLES:
  threadchat
  threadchat chat --thread 3f2c
  threadchat threads --json
  threadchat send 3f2c "Summarize this" --file notes.txt
  THREADCHAT_ENABLE_OFFLINE_MODE=1 threadchat threads new "Ideas"
`

// PrintUsage writes the usage text to w.
func PrintUsage(w io.Writer) {
	fmt.Fprint(w, usageText)
}

// PrintVersion writes version information to w.
func PrintVersion(w io.Writer) {
	fmt.Fprintf(w, "threadchat %s\n", Version)
	fmt.Fprintf(w, "  commit: %s\n", GitCommit)
	fmt.Fprintf(w, "  built:  %s\n", BuildDate)
	fmt.Fprintf(w, "  go:     %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// VersionInfo is the --json form of the version command.
type VersionInfo struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// HandleVersion prints version information.
func HandleVersion(args Args) error {
	if args.JSON {
		return NewJSONResponse("version", VersionInfo{
			Version:   Version,
			GitCommit: GitCommit,
			BuildDate: BuildDate,
			GoVersion: runtime.Version(),
			Platform:  runtime.GOOS + "/" + runtime.GOARCH,
		}).Print(os.Stdout)
	}
	PrintVersion(os.Stdout)
	return nil
}

// =============================================================================
// PARSING
// =============================================================================

// Parse parses os.Args.
func Parse() (Command, Args) {
	return ParseArgs(os.Args[1:])
}

// ParseArgs parses argv (without the program name). Global flags may appear
// anywhere. No command selects the TUI.
func ParseArgs(argv []string) (Command, Args) {
	remaining, args := parseGlobalFlags(argv)
	if len(remaining) == 0 {
		return CmdTUI, args
	}

	name := remaining[0]
	args.Raw = remaining[1:]
	for _, a := range args.Raw {
		if !strings.HasPrefix(a, "-") {
			args.Subcommand = a
			break
		}
	}

	switch strings.ToLower(name) {
	case "tui", "ui":
		return CmdTUI, args
	case "chat", "c":
		return CmdChat, args
	case "threads", "thread", "t":
		return CmdThreads, args
	case "send", "s":
		return CmdSend, args
	case "health", "ping":
		return CmdHealth, args
	case "config":
		return CmdConfig, args
	case "version", "--version", "-V":
		return CmdVersion, args
	case "help", "--help", "-h":
		return CmdHelp, args
	default:
		args.Unknown = name
		return CmdHelp, args
	}
}

func parseGlobalFlags(argv []string) ([]string, Args) {
	var remaining []string
	var args Args

	for i := 0; i < len(argv); i++ {
		arg := argv[i]

		switch arg {
		case "-q", "--quiet":
			args.Quiet = true
		case "-v", "--verbose":
			args.Verbose = true
		case "--json":
			args.JSON = true
		case "--offline":
			args.Offline = true
		case "--config":
			if i+1 < len(argv) {
				i++
				args.ConfigPath = argv[i]
			}
		case "--":
			remaining = append(remaining, argv[i:]...)
			return remaining, args
		default:
			if strings.HasPrefix(arg, "--config=") {
				args.ConfigPath = strings.TrimPrefix(arg, "--config=")
			} else {
				remaining = append(remaining, arg)
			}
		}
	}

	return remaining, args
}
