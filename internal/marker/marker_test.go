// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package marker

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// MARKER TESTS
// =============================================================================

func TestMarker_Resolve(t *testing.T) {
	buf := NewBuffer("Hello world\nsecond line")
	m, err := Place(buf, Position{Line: 0, Ch: 5})
	require.NoError(t, err)

	assert.Equal(t, "Hello✍ world\nsecond line", buf.Value())
	assert.Equal(t, Pending, m.State())

	require.NoError(t, m.Resolve(", dear"))
	assert.Equal(t, "Hello, dear world\nsecond line", buf.Value())
	assert.Equal(t, Resolved, m.State())
}

func TestMarker_FailLeavesDocumentIdentical(t *testing.T) {
	docs := []string{"", "plain", "héllo wörld ✍ already\nline two\n", "a\n\n\nb"}
	for _, original := range docs {
		buf := NewBuffer(original)
		m, err := Place(buf, buf.Cursor())
		require.NoError(t, err)
		assert.NotEqual(t, original, buf.Value())

		require.NoError(t, m.Fail())
		assert.Equal(t, original, buf.Value(), "document %q", original)
		assert.Equal(t, Failed, m.State())
	}
}

func TestMarker_NoSecondTransition(t *testing.T) {
	buf := NewBuffer("abc")
	m, err := Place(buf, Position{Ch: 1})
	require.NoError(t, err)
	require.NoError(t, m.Resolve("X"))

	err = m.Fail()
	assert.ErrorIs(t, err, ErrNotPending)
	err = m.Resolve("Y")
	assert.ErrorIs(t, err, ErrNotPending)
	assert.Equal(t, "aXbc", buf.Value())
}

func TestMarker_RelocatesAfterEditBefore(t *testing.T) {
	buf := NewBuffer("one two")
	m, err := Place(buf, Position{Ch: 4})
	require.NoError(t, err)

	// user types at the start of the line while pending
	require.NoError(t, buf.ReplaceRange(">> ", Position{}, Position{}))
	assert.Equal(t, ">> one ✍two", buf.Value())

	require.NoError(t, m.Resolve("2"))
	assert.Equal(t, ">> one 2two", buf.Value())
	assert.Equal(t, Position{Ch: 7}, m.Position())
}

func TestMarker_RelocatesAcrossLines(t *testing.T) {
	buf := NewBuffer("alpha\nbeta")
	m, err := Place(buf, Position{Line: 1, Ch: 4})
	require.NoError(t, err)

	require.NoError(t, buf.ReplaceRange("intro\n", Position{}, Position{}))
	require.NoError(t, m.Fail())
	assert.Equal(t, "intro\nalpha\nbeta", buf.Value())
}

func TestMarker_RelocatesWhenRecordedLineDeleted(t *testing.T) {
	buf := NewBuffer("a\nb\nc")
	m, err := Place(buf, Position{Line: 2, Ch: 0})
	require.NoError(t, err)

	// delete the first two lines; the recorded line 2 no longer exists
	require.NoError(t, buf.ReplaceRange("", Position{}, Position{Line: 2}))
	assert.Equal(t, "✍c", buf.Value())

	require.NoError(t, m.Resolve("Z"))
	assert.Equal(t, "Zc", buf.Value())
}

func TestMarker_Lost(t *testing.T) {
	buf := NewBuffer("text")
	m, err := Place(buf, Position{Ch: 4})
	require.NoError(t, err)

	buf.Reset("replaced entirely")

	err = m.Resolve("out")
	assert.True(t, errors.Is(err, ErrMarkerLost))
	assert.Equal(t, Failed, m.State())
	assert.Equal(t, "replaced entirely", buf.Value())
}

func TestMarker_IgnoresOtherGlyphs(t *testing.T) {
	tests := []struct {
		name string
		edit func(buf *Buffer)
		want string
	}{
		{
			name: "user glyph typed right before the marker",
			edit: func(buf *Buffer) {
				require.NoError(t, buf.ReplaceRange(GlyphString, Position{Ch: 3}, Position{Ch: 3}))
			},
			want: "abc✍OUTdef",
		},
		{
			name: "user glyph typed at the start",
			edit: func(buf *Buffer) {
				require.NoError(t, buf.ReplaceRange("✍ ", Position{}, Position{}))
			},
			want: "✍ abcOUTdef",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := NewBuffer("abcdef")
			m, err := Place(buf, Position{Ch: 3})
			require.NoError(t, err)

			tt.edit(buf)
			require.NoError(t, m.Resolve("OUT"))
			assert.Equal(t, tt.want, buf.Value())
		})
	}
}

func TestMarker_DeletedGlyphIsLostDespiteOthers(t *testing.T) {
	buf := NewBuffer("note ✍ here ")
	m, err := Place(buf, EndOf(buf.Value()))
	require.NoError(t, err)
	assert.Equal(t, "note ✍ here ✍", buf.Value())

	// the user deletes the pending glyph; only their own glyph remains
	require.NoError(t, buf.ReplaceRange("", Position{Ch: 12}, Position{Ch: 13}))

	assert.ErrorIs(t, m.Resolve("OUT"), ErrMarkerLost)
	assert.Equal(t, Failed, m.State())
	assert.Equal(t, "note ✍ here ", buf.Value())
}

func TestMarker_GlyphInOtherOutput(t *testing.T) {
	buf := NewBuffer("draft")
	first, err := Place(buf, Position{Ch: 0})
	require.NoError(t, err)
	second, err := Place(buf, EndOf(buf.Value()))
	require.NoError(t, err)

	// the first answer echoes the document, pending glyph included
	require.NoError(t, first.Resolve("draft✍"))
	assert.Equal(t, "draft✍draft✍", buf.Value())

	require.NoError(t, second.Resolve("!"))
	assert.Equal(t, "draft✍draft!", buf.Value())
}

func TestMarker_PlaceOutOfRange(t *testing.T) {
	buf := NewBuffer("short")
	_, err := Place(buf, Position{Line: 3})
	assert.ErrorIs(t, err, ErrOutOfRange)
	assert.Equal(t, "short", buf.Value())
}

func TestMarker_IndependentInvocations(t *testing.T) {
	buf := NewBuffer("start end")

	first, err := Place(buf, Position{Ch: 5})
	require.NoError(t, err)
	second, err := Place(buf, EndOf(buf.Value()))
	require.NoError(t, err)
	assert.Equal(t, "start✍ end✍", buf.Value())

	// second resolves first, shifting nothing before the first glyph
	require.NoError(t, second.Resolve("[B]"))
	require.NoError(t, first.Fail())
	assert.Equal(t, "start end[B]", buf.Value())
}

func TestMarker_ConcurrentMarkers(t *testing.T) {
	buf := NewBuffer("")
	const n = 20

	markers := make([]*Marker, n)
	for i := 0; i < n; i++ {
		buf.Append(fmt.Sprintf("line %02d ", i))
		m, err := Place(buf, EndOf(buf.Value()))
		require.NoError(t, err)
		markers[i] = m
		buf.Append("\n")
	}

	var wg sync.WaitGroup
	for i, m := range markers {
		wg.Add(1)
		go func(i int, m *Marker) {
			defer wg.Done()
			if i%2 == 0 {
				_ = m.Resolve("ok")
			} else {
				_ = m.Fail()
			}
		}(i, m)
	}
	wg.Wait()

	assert.NotContains(t, buf.Value(), GlyphString)
	for _, m := range markers {
		assert.NotEqual(t, Pending, m.State())
	}
}

// hostDoc hides Buffer's glyph tracking, like an external editor.
type hostDoc struct {
	Document
}

func TestMarker_HostDocument(t *testing.T) {
	buf := NewBuffer("one two")
	doc := hostDoc{Document: buf}

	m, err := Place(doc, Position{Ch: 3})
	require.NoError(t, err)
	require.NoError(t, buf.ReplaceRange(">> ", Position{}, Position{}))

	require.NoError(t, m.Resolve(" and"))
	assert.Equal(t, ">> one and two", buf.Value())
	assert.Equal(t, Position{Ch: 6}, m.Position())

	lost, err := Place(doc, EndOf(buf.Value()))
	require.NoError(t, err)
	buf.Reset("gone")
	assert.ErrorIs(t, lost.Fail(), ErrMarkerLost)
	assert.Equal(t, Failed, lost.State())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "pending", Pending.String())
	assert.Equal(t, "resolved", Resolved.String())
	assert.Equal(t, "failed", Failed.String())
	assert.Equal(t, "State(7)", State(7).String())
}

// =============================================================================
// BUFFER TESTS
// =============================================================================

func TestBuffer_SelectionAndCursor(t *testing.T) {
	buf := NewBuffer("héllo\nwörld")
	assert.Equal(t, Position{Line: 1, Ch: 5}, buf.Cursor())
	assert.Equal(t, "", buf.Selection())

	require.NoError(t, buf.Select(Position{Ch: 1}, Position{Line: 1, Ch: 2}))
	assert.Equal(t, "éllo\nwö", buf.Selection())
	assert.Equal(t, Position{Line: 1, Ch: 2}, buf.Cursor())

	// backwards selection keeps the head as cursor
	require.NoError(t, buf.Select(Position{Line: 1, Ch: 2}, Position{Ch: 1}))
	assert.Equal(t, "éllo\nwö", buf.Selection())
	assert.Equal(t, Position{Ch: 1}, buf.Cursor())
}

func TestBuffer_PlaceCursorKeepsSelection(t *testing.T) {
	buf := NewBuffer("one\ntwo\n")
	require.NoError(t, buf.Select(Position{Line: 1}, Position{Line: 1, Ch: 3}))
	require.NoError(t, buf.PlaceCursor(Position{}))

	assert.Equal(t, "two", buf.Selection())
	assert.Equal(t, Position{}, buf.Cursor())
	assert.ErrorIs(t, buf.PlaceCursor(Position{Line: 9}), ErrOutOfRange)
}

func TestBuffer_ReplaceRangeMovesCursor(t *testing.T) {
	buf := NewBuffer("abcdef")
	require.NoError(t, buf.SetCursor(Position{Ch: 3}))

	require.NoError(t, buf.ReplaceRange("XY", Position{Ch: 0}, Position{Ch: 1}))
	assert.Equal(t, "XYbcdef", buf.Value())
	assert.Equal(t, Position{Ch: 4}, buf.Cursor())

	require.NoError(t, buf.ReplaceRange("!", Position{Ch: 4}, Position{Ch: 4}))
	assert.Equal(t, "XYbc!def", buf.Value())
	assert.Equal(t, Position{Ch: 5}, buf.Cursor())

	require.NoError(t, buf.ReplaceRange("", Position{Ch: 3}, Position{Ch: 7}))
	assert.Equal(t, "XYbf", buf.Value())
	assert.Equal(t, Position{Ch: 3}, buf.Cursor())
}

func TestBuffer_Errors(t *testing.T) {
	buf := NewBuffer("ab\ncd")
	assert.ErrorIs(t, buf.SetCursor(Position{Line: 0, Ch: 3}), ErrOutOfRange)
	assert.ErrorIs(t, buf.ReplaceRange("x", Position{Line: 2}, Position{Line: 2}), ErrOutOfRange)
	assert.ErrorIs(t, buf.Select(Position{Line: -1}, Position{}), ErrOutOfRange)
}

// =============================================================================
// POSITION TESTS
// =============================================================================

func TestOffsetOf(t *testing.T) {
	text := "ab\nçd\n\nx"
	tests := []struct {
		pos  Position
		want int
	}{
		{Position{0, 0}, 0},
		{Position{0, 2}, 2},
		{Position{1, 0}, 3},
		{Position{1, 2}, 5},
		{Position{2, 0}, 6},
		{Position{3, 1}, 8},
	}
	for _, tt := range tests {
		got, err := OffsetOf(text, tt.pos)
		require.NoError(t, err, tt.pos.String())
		assert.Equal(t, tt.want, got, tt.pos.String())
		assert.Equal(t, tt.pos, PositionAt(text, got))
	}

	_, err := OffsetOf(text, Position{Line: 0, Ch: 3})
	assert.ErrorIs(t, err, ErrOutOfRange)
	_, err = OffsetOf(text, Position{Line: 4})
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestParsePosition(t *testing.T) {
	p, err := ParsePosition(" 3:14 ")
	require.NoError(t, err)
	assert.Equal(t, Position{Line: 3, Ch: 14}, p)
	assert.True(t, Position{Line: 1, Ch: 9}.Before(p))

	for _, bad := range []string{"", "3", "a:1", "1:b", "-1:0"} {
		_, err := ParsePosition(bad)
		assert.Error(t, err, bad)
	}
}

func TestEndOf(t *testing.T) {
	assert.Equal(t, Position{}, EndOf(""))
	assert.Equal(t, Position{Line: 1, Ch: 0}, EndOf("abc\n"))
	assert.Equal(t, Position{Line: 0, Ch: 2}, EndOf("✍✍"))
}
