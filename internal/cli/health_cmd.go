// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jeranaias/threadchat/internal/app"
)

// ErrNoRemote is returned by health in offline mode.
var ErrNoRemote = errors.New("offline mode is enabled; there is no chat service to check")

// HandleHealth runs the health command against a freshly opened Runtime.
func HandleHealth(ctx context.Context, args Args) error {
	rt, err := OpenRuntime(args)
	if err != nil {
		return err
	}
	defer rt.Close()
	return RunHealth(ctx, rt, args, os.Stdout)
}

// RunHealth checks the remote service, with the client's retry budget.
func RunHealth(ctx context.Context, rt *Runtime, args Args, out io.Writer) error {
	if rt.Client == nil {
		return ErrNoRemote
	}

	start := time.Now()
	err := rt.Client.Health(ctx)
	data := HealthData{
		BaseURL:   rt.Client.BaseURL(),
		OK:        err == nil,
		LatencyMS: time.Since(start).Milliseconds(),
	}
	if err != nil {
		data.Error = err.Error()
	}

	if args.JSON {
		if printErr := NewJSONResponse("health", data).Print(out); printErr != nil {
			return printErr
		}
		return reported(err)
	}

	fmt.Fprintf(out, "%s %s\n", RenderLabel("Service"), data.BaseURL)
	if err != nil {
		fmt.Fprintf(out, "%s %s %s\n", RenderLabel("Status"), ErrorStyle.Render("[FAIL]"), app.Describe(err))
		return reported(err)
	}
	fmt.Fprintf(out, "%s %s\n", RenderLabel("Status"), SuccessStyle.Render("[OK]"))
	fmt.Fprintf(out, "%s %dms\n", RenderLabel("Latency"), data.LatencyMS)
	return nil
}
