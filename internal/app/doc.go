// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package app is the state and action surface the presentation layer binds
// to. A Coordinator composes the thread and message repositories, tracks
// the active thread and turns failures into short notifications. It holds
// no business logic of its own.
//
// # Usage
//
//	coord := app.New(app.Options{Config: cfg, Remote: client, Store: store, Logger: logger})
//	coord.Init(ctx)
//	state := coord.State()
//	coord.Send(ctx, "Hello", nil)
//
// Presentation code reads State() whenever Updates() fires and drains
// Notifications() to show toasts.
package app
