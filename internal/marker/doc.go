// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package marker implements the placeholder protocol that ties a pending
// generation to a spot in a host document.
//
// A Marker writes a single glyph (U+270D, one rune wide) at the invocation
// point. It then ends in exactly one of two ways:
//
//   - Resolve replaces the glyph with the generated text.
//   - Fail replaces the glyph with nothing, leaving the document as it was
//     before the marker was placed.
//
// Buffer is an in-memory Document used by the CLI, the HTTP server and
// tests. It tracks every glyph it places through later edits and swaps it
// under one lock, so a marker only ever replaces its own glyph. If an edit
// deleted that glyph the transition reports ErrMarkerLost and leaves the
// document untouched, even when other glyphs remain.
//
// Hosts with their own editor implement Document directly. For them the
// glyph is relocated by scanning outward from its recorded position for the
// nearest occurrence, and the scan and the edit are two steps. A glyph the
// user typed, or one inside another invocation's output, can be mistaken
// for the marker when its own glyph is gone.
package marker
