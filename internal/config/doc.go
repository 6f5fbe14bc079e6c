// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads, validates and persists the inkwell configuration:
// the engine settings and the stored command list.
//
// # Key Types
//
//   - Config: the persisted settings and commands
//   - Store: holds the current Config; Snapshot for readers, Update for
//     writers (validated, saved atomically, then swapped in)
//   - ValidationError, ValidateErrors: rejected settings or commands
//   - Watcher: reloads a Store when its file changes
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (INKWELL_*), optionally from a .env file
//   - ~/.inkwell/config.toml (or INKWELL_CONFIG)
//   - Built-in defaults
//
// # Usage
//
//	store, err := config.Open(path)
//	if err != nil {
//	    return err
//	}
//	cfg := store.Snapshot()
//
//	err = store.Update(func(c *config.Config) error {
//	    return c.AddCommand(prompt.Command{Name: "Translate", Prompt: "Translate to French."})
//	})
package config
