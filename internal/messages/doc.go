// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package messages holds the active thread's message list and runs the
// send/receive cycle with the assistant.
//
// Add appends optimistically. When the fallback store is the source of
// truth the list is saved right away and the append is rolled back if the
// save fails. SendToAssistant marks the repository as typing for the whole
// round-trip; a second send while typing returns ErrBusy.
package messages
