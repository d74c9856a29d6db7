// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for threadchat.
//
// Settings come from a TOML file, an optional .env file and the process
// environment, on top of built-in defaults, and are validated once at
// startup.
//
// # Key Types
//
//   - Config: Main configuration structure
//   - APIConfig: Remote service endpoint, timeout and retry policy
//   - OfflineConfig: Local fallback store backend and offline mode
//   - ChatConfig: Composer behavior (typing delay, titles, welcome text)
//   - Duration: time.Duration that reads and writes as "1s", "600ms", ...
//
// # Configuration Precedence
//
// Highest first:
//   - Environment variables (THREADCHAT_*)
//   - .env in the working directory
//   - ~/.threadchat/config.toml (or the file named by THREADCHAT_CONFIG)
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	client := api.New(api.OptionsFromConfig(cfg))
package config
