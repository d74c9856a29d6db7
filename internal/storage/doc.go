// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides the local fallback store for threads and messages.
//
// The store is used when the remote service is unreachable or offline mode
// is configured. Records are JSON documents in a flat key/value namespace:
//
//	thread_<id>           thread metadata (id, title, updatedAt)
//	thread_<id>_messages  the thread's full message array
//
// # Key Types
//
//   - KV: Minimal key/value backend (FileKV, SQLiteKV, MemoryKV)
//   - Store: Thread and message persistence on top of a KV
//   - Watch: Change notification for stores shared between processes
//
// # Usage
//
//	kv, err := storage.Open(storage.BackendSQLite, dataDir)
//	if err != nil {
//	    return err
//	}
//	store := storage.NewStore(kv, logger)
//	defer store.Close()
//
//	threads, err := store.LoadAllThreads()
package storage
