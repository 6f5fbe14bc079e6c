// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package prompt turns a command and a piece of source text into the exact
// generation request sent to the model server.
//
// Composition happens in two pure steps:
//
//   - Resolve merges the command prompt with the configured prompt template
//     and model template, producing the final prompt and template strings.
//   - Build picks the model and temperature, falling back to the configured
//     defaults, and returns a ComposedRequest.
//
// # Key Types
//
//   - Command: a named, reusable prompt configuration
//   - Config: the engine settings snapshot used for one invocation
//   - Resolved: output of the template resolver
//   - ComposedRequest: the wire-ready request description
//
// # Usage
//
//	res := prompt.Resolve(cmd, cfg, text)
//	req := prompt.Build(res, cmd, cfg)
//
// Nothing in this package performs I/O; every function is safe for
// concurrent use.
package prompt
