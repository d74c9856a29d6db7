// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// send_cmd.go - One-shot send.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jeranaias/threadchat/internal/model"
)

const sendUsage = "threadchat send ID TEXT [--file PATH]..."

// HandleSend runs the send command against a freshly opened Runtime.
func HandleSend(ctx context.Context, args Args) error {
	rt, err := OpenRuntime(args)
	if err != nil {
		return err
	}
	defer rt.Close()
	return RunSend(ctx, rt, args, os.Stdout, os.Stderr)
}

// RunSend sends one message to a thread and prints the assistant's reply.
// "-" as TEXT reads the message from stdin.
func RunSend(ctx context.Context, rt *Runtime, args Args, out, errOut io.Writer) error {
	p := NewArgParser(args.Raw)
	ref := p.Positional(0)
	if ref == "" {
		return ErrMissingArgument("ID", sendUsage)
	}
	text := strings.Join(p.PositionalFrom(1), " ")
	if text == "-" {
		data, err := io.ReadAll(io.LimitReader(os.Stdin, 1<<20))
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		text = string(data)
	}

	files, err := attachmentsFromPaths(p.Flags("file", "f"))
	if err != nil {
		return err
	}

	_ = rt.Coordinator.Init(ctx)
	defer drainNotifications(rt, errOut, args.Quiet)

	id, err := resolveThread(rt, ref)
	if err != nil {
		return wrap("send", "resolve", err)
	}
	if err := rt.Coordinator.SelectThread(ctx, id); err != nil {
		return wrap("send", "select", err)
	}

	sendErr := rt.Coordinator.Send(ctx, text, files)
	st := rt.Coordinator.State()
	reply := lastReply(st.Messages)

	if args.JSON {
		if sendErr != nil {
			return sendErr
		}
		return NewJSONResponse("send", SendData{
			ThreadID: id,
			Reply:    reply,
			Messages: st.Messages,
			Degraded: st.Degraded,
		}).Print(out)
	}
	if sendErr != nil {
		return sendErr
	}
	if reply != nil {
		fmt.Fprintln(out, reply.Content)
	}
	return nil
}

func attachmentsFromPaths(paths []string) ([]model.Attachment, error) {
	var files []model.Attachment
	for _, path := range paths {
		if strings.TrimSpace(path) == "" {
			return nil, ErrMissingArgument("--file PATH", sendUsage)
		}
		a, err := model.AttachmentFromFile(path)
		if err != nil {
			return nil, err
		}
		files = append(files, a)
	}
	return files, nil
}

// lastReply returns the final message if the assistant wrote it.
func lastReply(msgs []model.Message) *model.Message {
	if len(msgs) == 0 {
		return nil
	}
	last := msgs[len(msgs)-1]
	if last.Role != model.RoleAssistant {
		return nil
	}
	return &last
}
