// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util holds small helpers shared by the config, storage and cli
// packages.
//
//   - AtomicWriteFile: crash-safe file replacement
//   - TruncateRunes, OneLine: display-safe previews of prompts and output
//   - PadRight: column alignment by terminal cell width
package util
