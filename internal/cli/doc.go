// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the inkwell command tree.
//
// Documents come from a file or stdin; the result is printed, or written
// back with --write. The same engine backs the interactive shell and the
// HTTP host started by "inkwell serve".
//
// # Commands
//
//	inkwell run <command> [file]      Run a stored command
//	inkwell prompt <text> [file]      Run a custom prompt (--save NAME keeps it)
//	inkwell compose <command> [file]  Print the request without sending it
//	inkwell shell                     Interactive editing session
//	inkwell commands ...              Manage stored commands
//	inkwell models                    List installed models
//	inkwell config show|path|get|set  Inspect and edit settings
//	inkwell history ...               Browse past invocations
//	inkwell serve                     Start the HTTP host
//	inkwell version                   Print version information
//
// # Global flags
//
//	--config PATH   Config file (default ~/.inkwell/config.toml, or $INKWELL_CONFIG)
//	--verbose       Debug logging on stderr
//	--json          Machine-readable output where supported
package cli
