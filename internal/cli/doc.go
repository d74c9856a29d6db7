// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides command-line parsing and the non-interactive
// commands of threadchat.
//
// Every command runs against a Runtime: the loaded configuration, the log,
// the local store, the remote client and the application coordinator wired
// together. The terminal UI uses the same Runtime.
//
// # Key Types
//
//   - Command: Enumeration of all available CLI commands
//   - Args: Parsed global flags plus the raw command arguments
//   - ArgParser: Flag and positional parsing for a single command
//   - Runtime: Wired components shared by every command
//   - JSONResponse: Envelope for --json output
//
// # Usage
//
//	cmd, args := cli.Parse()
//	switch cmd {
//	case cli.CmdThreads:
//	    err = cli.HandleThreads(ctx, args)
//	case cli.CmdChat:
//	    err = cli.HandleChat(ctx, args)
//	// ... other commands
//	}
//
// # Commands Overview
//
//   - tui: Full-screen terminal UI (default)
//   - chat: Line-oriented chat session with history
//   - threads: List, create, rename, delete, search, show and export threads
//   - send: Send one message and print the reply
//   - health: Check the remote service
//   - config: Show, initialize or locate the configuration file
//
// All commands support --json for scripting.
package cli
