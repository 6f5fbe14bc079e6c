// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama provides the HTTP transport to an Ollama server and the
// decoder for its newline-delimited JSON generation stream.
//
// # Key Types
//
//   - Client: sends generation requests and lists installed models
//   - GenerateRequest: wire body for POST /api/generate
//   - GenerateResponse: one decoded line of the generation stream
//   - StreamReader: incremental decoder with the same ordering rules as
//     DecodeResponse
//   - ClientError: transport and configuration failures, by ErrorType
//   - MalformedStreamError: a stream line that is not a JSON object
//
// # Usage
//
// Buffered generation, decoding the whole body at once:
//
//	client := ollama.NewClient("http://localhost:11434")
//	text, err := client.Generate(ctx, composed)
//
// Incremental generation:
//
//	text, stats, err := client.GenerateStream(ctx, composed, func(ev ollama.GenerateResponse) {
//	    fmt.Print(ev.Response)
//	})
//
// Decoding a body obtained elsewhere:
//
//	text, err := ollama.DecodeResponse(body)
//
// # Errors
//
// Failures while generating are transport errors (IsTransport). Failures
// while listing models are configuration errors (IsConfiguration). Neither
// is retried.
package ollama
