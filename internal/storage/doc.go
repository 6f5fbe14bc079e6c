// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage keeps a history of engine invocations in SQLite.
//
// Each row records what was sent (command, model, prompt, template,
// temperature) and how the invocation ended (resolved text or error).
// The schema is managed by goose migrations embedded in the binary.
//
// # Usage
//
//	hist, err := storage.Open("~/.inkwell/history.db")
//	if err != nil {
//	    return err
//	}
//	defer hist.Close()
//
//	recent, err := hist.List(ctx, 20)
package storage
