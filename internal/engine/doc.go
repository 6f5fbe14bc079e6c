// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package engine runs one command against one document.
//
// An invocation reads the selection (or the whole document when nothing is
// selected), composes the request, drops a placeholder marker at the cursor,
// waits on the generator and then either replaces the marker with the
// decoded text or erases it. Every invocation owns its own marker, so any
// number may be in flight at once against the same document.
//
// The engine never talks to a user interface directly. Warnings and errors
// go through a Notifier, which the CLI prints and the HTTP host collects
// into the response.
//
// # Usage
//
//	eng := engine.New(ollama.NewClient(cfg.ServerURL),
//	    engine.WithLogger(logger),
//	    engine.WithRecorder(history),
//	)
//	inv, err := eng.Invoke(ctx, doc, cmd, cfg.Engine())
//
// A Session adds the ad-hoc "custom prompt" flow on top of an Engine: it
// remembers the last custom command so it can later be promoted to a stored
// command.
package engine
