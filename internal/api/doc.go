// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api is the HTTP client for the remote threads service.
//
// Every operation takes a context and performs JSON request/response
// exchanges. Health checks and message sends are retried with linear
// backoff (attempt i waits i*RetryDelay); everything else is single-shot
// and leaves fallback decisions to the caller.
//
// # Key Types
//
//   - Client: The service client
//   - Options: Endpoint, timeout, retry and pacing settings
//   - NetworkError: No response was received
//   - HTTPError: The service answered with a non-2xx status
//   - ServiceUnavailableError: The retry budget ran out
//
// # Usage
//
//	client := api.New(api.OptionsFromConfig(cfg, logger))
//	if err := client.Health(ctx); err != nil {
//	    // degrade to the local store
//	}
//	res, err := client.SendMessage(ctx, threadID, "Hello", nil)
package api
