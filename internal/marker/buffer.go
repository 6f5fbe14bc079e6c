// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package marker

import (
	"sync"
	"unicode/utf8"
)

// Document is the host editor surface the engine works against.
type Document interface {
	// Selection returns the selected text, or "" when nothing is selected.
	Selection() string
	// Value returns the whole document.
	Value() string
	// Cursor returns the cursor position (the selection head).
	Cursor() Position
	// ReplaceRange replaces [from, to) with text.
	ReplaceRange(text string, from, to Position) error
}

// Buffer is a thread-safe in-memory Document.
//
// Edits collapse the selection. The cursor keeps its place in the text: it
// shifts with edits before it and lands after text inserted at it.
type Buffer struct {
	mu      sync.RWMutex
	text    string
	cursor  int // rune offset
	selFrom int
	selTo   int
	anchors []*anchor
}

// anchor follows a placed glyph through later edits. It dies when an edit
// removes the rune it points at.
type anchor struct {
	off  int
	live bool
}

// NewBuffer creates a buffer holding text with the cursor at the end.
func NewBuffer(text string) *Buffer {
	n := utf8.RuneCountInString(text)
	return &Buffer{text: text, cursor: n, selFrom: n, selTo: n}
}

// Value returns the whole document.
func (b *Buffer) Value() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.text
}

// Selection returns the selected text.
func (b *Buffer) Selection() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.selFrom == b.selTo {
		return ""
	}
	return b.text[byteIndex(b.text, b.selFrom):byteIndex(b.text, b.selTo)]
}

// Cursor returns the cursor position.
func (b *Buffer) Cursor() Position {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return PositionAt(b.text, b.cursor)
}

// SetCursor moves the cursor and clears the selection.
func (b *Buffer) SetCursor(p Position) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	off, err := OffsetOf(b.text, p)
	if err != nil {
		return err
	}
	b.cursor, b.selFrom, b.selTo = off, off, off
	return nil
}

// PlaceCursor moves the cursor and keeps the selection, so the marker can
// go somewhere other than the selection head.
func (b *Buffer) PlaceCursor(p Position) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	off, err := OffsetOf(b.text, p)
	if err != nil {
		return err
	}
	b.cursor = off
	return nil
}

// Select selects [from, to). The cursor moves to the head (to).
func (b *Buffer) Select(from, to Position) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	f, err := OffsetOf(b.text, from)
	if err != nil {
		return err
	}
	t, err := OffsetOf(b.text, to)
	if err != nil {
		return err
	}
	b.cursor = t
	if t < f {
		f, t = t, f
	}
	b.selFrom, b.selTo = f, t
	return nil
}

// ReplaceRange replaces [from, to) with text.
func (b *Buffer) ReplaceRange(text string, from, to Position) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	f, err := OffsetOf(b.text, from)
	if err != nil {
		return err
	}
	t, err := OffsetOf(b.text, to)
	if err != nil {
		return err
	}
	b.replace(text, f, t)
	return nil
}

// placeGlyph inserts the glyph at p and starts tracking it.
func (b *Buffer) placeGlyph(p Position) (*anchor, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	off, err := OffsetOf(b.text, p)
	if err != nil {
		return nil, err
	}
	b.replace(GlyphString, off, off)
	a := &anchor{off: off, live: true}
	b.anchors = append(b.anchors, a)
	return a, nil
}

// swapAnchored replaces the glyph a points at with text. Other glyphs in
// the buffer, typed by the user or echoed in generated text, are never
// taken for it.
func (b *Buffer) swapAnchored(a *anchor, text string) (Position, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !a.live || a.off >= utf8.RuneCountInString(b.text) {
		b.dropAnchor(a)
		return Position{}, ErrMarkerLost
	}
	pos := PositionAt(b.text, a.off)
	b.replace(text, a.off, a.off+1)
	b.dropAnchor(a)
	return pos, nil
}

func (b *Buffer) dropAnchor(a *anchor) {
	for i, x := range b.anchors {
		if x == a {
			b.anchors = append(b.anchors[:i], b.anchors[i+1:]...)
			return
		}
	}
}

// replace swaps rune offsets [f, t) for text. Callers hold the lock.
func (b *Buffer) replace(text string, f, t int) {
	if t < f {
		f, t = t, f
	}

	b.text = b.text[:byteIndex(b.text, f)] + text + b.text[byteIndex(b.text, t):]

	inserted := utf8.RuneCountInString(text)
	switch {
	case b.cursor >= t:
		b.cursor += inserted - (t - f)
	case b.cursor > f:
		b.cursor = f + inserted
	}
	for _, a := range b.anchors {
		switch {
		case !a.live:
		case a.off >= t:
			a.off += inserted - (t - f)
		case a.off >= f:
			a.live = false
		}
	}
	b.selFrom, b.selTo = b.cursor, b.cursor
}

// Append adds text at the end of the document.
func (b *Buffer) Append(text string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	atEnd := b.cursor == utf8.RuneCountInString(b.text)
	b.text += text
	if atEnd {
		b.cursor = utf8.RuneCountInString(b.text)
	}
	b.selFrom, b.selTo = b.cursor, b.cursor
}

// Reset replaces the whole document and moves the cursor to the end.
func (b *Buffer) Reset(text string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := utf8.RuneCountInString(text)
	b.text, b.cursor, b.selFrom, b.selTo = text, n, n, n
	for _, a := range b.anchors {
		a.live = false
	}
}
