// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package marker

import (
	"errors"
	"fmt"
	"sync"
)

// =============================================================================
// CONSTANTS AND ERRORS
// =============================================================================

// Glyph is the placeholder written at the invocation point.
const Glyph = '✍'

// GlyphString is Glyph as a string.
const GlyphString = string(Glyph)

var (
	// ErrMarkerLost means the glyph no longer exists in the document.
	ErrMarkerLost = errors.New("marker glyph not found in document")

	// ErrNotPending is returned for a transition out of a final state.
	ErrNotPending = errors.New("marker is not pending")
)

// =============================================================================
// STATE
// =============================================================================

// State is the lifecycle state of a marker.
type State int

const (
	// Pending: glyph inserted, request in flight.
	Pending State = iota
	// Resolved: glyph replaced by generated text.
	Resolved
	// Failed: glyph erased.
	Failed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Resolved:
		return "resolved"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// =============================================================================
// MARKER
// =============================================================================

// Marker tracks one placeholder glyph in a document.
// Each invocation owns its own marker; markers never coordinate.
type Marker struct {
	mu     sync.Mutex
	doc    Document
	pos    Position
	anchor *anchor
	state  State
}

// Place inserts the glyph at pos and returns a Pending marker.
func Place(doc Document, pos Position) (*Marker, error) {
	if ad, ok := doc.(anchoredDocument); ok {
		a, err := ad.placeGlyph(pos)
		if err != nil {
			return nil, fmt.Errorf("place marker at %s: %w", pos, err)
		}
		return &Marker{doc: doc, pos: pos, anchor: a}, nil
	}
	if err := doc.ReplaceRange(GlyphString, pos, pos); err != nil {
		return nil, fmt.Errorf("place marker at %s: %w", pos, err)
	}
	return &Marker{doc: doc, pos: pos}, nil
}

// State returns the current state.
func (m *Marker) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Position returns the position the glyph was last known at.
func (m *Marker) Position() Position {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pos
}

// Resolve replaces the glyph with text. If the glyph cannot be found the
// marker moves to Failed and ErrMarkerLost is returned.
func (m *Marker) Resolve(text string) error {
	return m.finish(text, Resolved)
}

// Fail erases the glyph. The document ends byte-identical to its state
// before Place, apart from edits made by others in the meantime.
func (m *Marker) Fail() error {
	return m.finish("", Failed)
}

func (m *Marker) finish(text string, to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != Pending {
		return fmt.Errorf("%w: %s", ErrNotPending, m.state)
	}

	if ad, ok := m.doc.(anchoredDocument); ok && m.anchor != nil {
		pos, err := ad.swapAnchored(m.anchor, text)
		if err != nil {
			m.state = Failed
			return err
		}
		m.pos = pos
		m.state = to
		return nil
	}

	pos, err := findGlyph(m.doc.Value(), m.pos)
	if err != nil {
		m.state = Failed
		return err
	}
	m.pos = pos

	end := Position{Line: pos.Line, Ch: pos.Ch + 1}
	if err := m.doc.ReplaceRange(text, pos, end); err != nil {
		m.state = Failed
		return fmt.Errorf("replace marker at %s: %w", pos, err)
	}
	m.state = to
	return nil
}

// anchoredDocument tracks each placed glyph through edits and swaps it in
// one step. Documents that do not implement it fall back to findGlyph: they
// are read and then edited, a concurrent edit between the two steps can
// move the glyph, and once the marker's own glyph is gone the scan can pick
// up any other U+270D in the text.
type anchoredDocument interface {
	placeGlyph(pos Position) (*anchor, error)
	swapAnchored(a *anchor, text string) (Position, error)
}

// findGlyph finds the glyph in value, preferring near and otherwise the
// nearest occurrence to it. Ties go to the later occurrence, since typing
// ahead of the marker pushes it right.
func findGlyph(value string, near Position) (Position, error) {
	runes := []rune(value)

	origin, err := OffsetOf(value, near)
	if err != nil {
		origin = len(runes)
	}
	if origin < len(runes) && runes[origin] == Glyph {
		return near, nil
	}

	for d := 1; origin+d < len(runes) || origin-d >= 0; d++ {
		if i := origin + d; i < len(runes) && runes[i] == Glyph {
			return PositionAt(value, i), nil
		}
		if i := origin - d; i >= 0 && i < len(runes) && runes[i] == Glyph {
			return PositionAt(value, i), nil
		}
	}
	return Position{}, ErrMarkerLost
}
