// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small filesystem and string helpers shared by the
// storage, CLI and UI packages.
//
//   - AtomicWriteFile: crash-safe file replacement (temp file, fsync, rename)
//   - IsTempFile: recognizes the temporary files AtomicWriteFile leaves behind
//   - TruncateRunes / TruncateWidth: Unicode-safe truncation for display
//   - SingleLine: collapses whitespace for one-line previews
package util
