// threadchat - A terminal chat client that keeps working offline.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/threadchat/internal/cli"
	"github.com/jeranaias/threadchat/internal/ui/chat"
	"github.com/jeranaias/threadchat/internal/ui/styles"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func init() {
	// Sync version info with cli package
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
}

func main() {
	cmd, args := cli.Parse()

	var errOut io.Writer = os.Stderr
	if args.JSON {
		errOut = os.Stdout
	}

	if cmd == cli.CmdHelp && args.Unknown != "" {
		cli.DisplayError(errOut, "", &cli.UsageError{Message: "unknown command: " + args.Unknown}, args.JSON)
		os.Exit(cli.ExitUsageError)
	}

	if err := run(cmd, args); err != nil {
		cli.DisplayError(errOut, cmd.String(), err, args.JSON)
		os.Exit(cli.GetExitCode(err))
	}
}

// run routes to the command handler. One-shot commands are cancelled by
// SIGINT/SIGTERM; the TUI and the chat REPL handle Ctrl+C themselves.
func run(cmd cli.Command, args cli.Args) error {
	switch cmd {
	case cli.CmdTUI:
		return runTUI(args)
	case cli.CmdChat:
		return cli.HandleChat(context.Background(), args)
	case cli.CmdConfig:
		return cli.HandleConfig(args)
	case cli.CmdVersion:
		return cli.HandleVersion(args)
	case cli.CmdHelp:
		cli.PrintUsage(os.Stdout)
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case cli.CmdThreads:
		return cli.HandleThreads(ctx, args)
	case cli.CmdSend:
		return cli.HandleSend(ctx, args)
	case cli.CmdHealth:
		return cli.HandleHealth(ctx, args)
	default:
		cli.PrintUsage(os.Stderr)
		return nil
	}
}

// runTUI starts the full-screen interface, or the line REPL when stdin or
// stdout is not a terminal.
func runTUI(args cli.Args) error {
	if !cli.CanRunTUI() {
		return cli.HandleChat(context.Background(), args)
	}

	// Stderr belongs to the TUI; --verbose still goes to the log file.
	args.Verbose = false
	rt, err := cli.OpenRuntime(args)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := rt.WatchStore(ctx); err != nil {
		rt.Logger.Warn("store watch disabled", "error", err)
	}

	m := chat.New(chat.Options{
		Coordinator: rt.Coordinator,
		Theme:       styles.NewTheme(rt.Config.UI.Theme),
		Context:     ctx,
		Logger:      rt.Logger,
		Offline:     rt.Config.Offline.Enabled,
	})

	p := tea.NewProgram(
		m,
		tea.WithAltScreen(),       // Use alternate screen buffer
		tea.WithMouseCellMotion(), // Enable mouse wheel scrolling
	)
	if _, err := p.Run(); err != nil {
		rt.Logger.Error("tui exited with error", "error", err)
		return err
	}
	return nil
}
