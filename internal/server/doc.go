// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server is the HTTP host for the engine (inkwell serve).
//
// A client posts a document with an optional selection and cursor; the
// server runs the command against an in-memory copy and returns the
// resulting document. On failure the returned document is the original one,
// with the placeholder marker erased.
//
// # Endpoints
//
//   - GET  /health              - Liveness and Ollama reachability
//   - GET  /api/commands        - Stored commands with their ids
//   - GET  /api/models          - Installed model names
//   - POST /api/compose         - Composed request, nothing sent
//   - POST /api/invoke          - Run a command against a document
//   - GET  /api/history         - Recent invocations (when history is on)
//   - GET  /api/history/{id}    - One invocation
//   - GET  /metrics             - Prometheus exposition
//
// # Middleware
//
//   - Panic recovery with stack trace logging
//   - Request logging through slog
//   - Per-client token bucket rate limiting
//   - JSON content type on /api routes
//
// # Usage
//
//	srv := server.New(store, server.WithLogger(logger), server.WithHistory(hist))
//	if err := srv.ListenAndServe(ctx); err != nil {
//		return err
//	}
package server
