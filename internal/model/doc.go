// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for threads and messages.
//
// This package defines the core domain types shared by the remote client,
// the local fallback store and the repositories.
//
// # Key Types
//
//   - Thread: A titled conversation owning an ordered message list
//   - Message: Single message with role, content, timestamp and attachments
//   - Attachment: Descriptor of a file attached to a message (no contents)
//   - Clock: Timestamp source that never repeats or goes backwards
//
// # Usage
//
//	clock := model.NewClock()
//	thread := model.NewThread(model.DefaultTitle, clock)
//	msg, err := model.NewMessage(model.RoleUser, "Hello", nil, clock)
//	if err != nil {
//	    return err
//	}
//	thread.Messages = append(thread.Messages, msg)
//	thread.Touch(clock.Now())
package model
