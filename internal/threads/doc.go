// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package threads owns the in-memory thread list and reconciles the remote
// service with the local fallback store.
//
// A Repository moves through Uninitialized, Loading and then Ready or
// Degraded. Ready means the remote service answered the startup health check
// and listing; Degraded means it did not (or offline mode is configured) and
// the fallback store is the source of truth. Both states look the same to
// the presentation layer. In Degraded every mutation is also written to the
// fallback store.
//
// # Usage
//
//	repo := threads.New(threads.Options{
//	    Remote: client,
//	    Store:  store,
//	    Logger: logger,
//	})
//	if err := repo.Init(ctx); err != nil {
//	    // non-fatal: running from the fallback store
//	}
//	t, err := repo.Create(ctx, "")
package threads
