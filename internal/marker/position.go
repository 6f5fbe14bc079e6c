// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package marker

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// ErrOutOfRange is returned for positions that do not exist in a document.
var ErrOutOfRange = errors.New("position out of range")

// Position addresses a document location by 0-based line and 0-based rune
// column within that line.
type Position struct {
	Line int `json:"line"`
	Ch   int `json:"ch"`
}

func (p Position) String() string {
	return strconv.Itoa(p.Line) + ":" + strconv.Itoa(p.Ch)
}

// Before reports whether p sorts strictly before o.
func (p Position) Before(o Position) bool {
	if p.Line != o.Line {
		return p.Line < o.Line
	}
	return p.Ch < o.Ch
}

// ParsePosition parses "line:ch".
func ParsePosition(s string) (Position, error) {
	line, ch, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return Position{}, fmt.Errorf("position %q: want line:ch", s)
	}
	l, err := strconv.Atoi(line)
	if err != nil || l < 0 {
		return Position{}, fmt.Errorf("position %q: bad line", s)
	}
	c, err := strconv.Atoi(ch)
	if err != nil || c < 0 {
		return Position{}, fmt.Errorf("position %q: bad column", s)
	}
	return Position{Line: l, Ch: c}, nil
}

// OffsetOf converts a position into a rune offset within text.
func OffsetOf(text string, p Position) (int, error) {
	if p.Line < 0 || p.Ch < 0 {
		return 0, ErrOutOfRange
	}
	offset := 0
	line := 0
	rest := text
	for line < p.Line {
		i := strings.IndexByte(rest, '\n')
		if i < 0 {
			return 0, ErrOutOfRange
		}
		offset += utf8.RuneCountInString(rest[:i]) + 1
		rest = rest[i+1:]
		line++
	}
	lineText := rest
	if i := strings.IndexByte(rest, '\n'); i >= 0 {
		lineText = rest[:i]
	}
	if p.Ch > utf8.RuneCountInString(lineText) {
		return 0, ErrOutOfRange
	}
	return offset + p.Ch, nil
}

// PositionAt converts a rune offset into a position, clamping to the end.
func PositionAt(text string, offset int) Position {
	var p Position
	i := 0
	for _, r := range text {
		if i >= offset {
			break
		}
		if r == '\n' {
			p.Line++
			p.Ch = 0
		} else {
			p.Ch++
		}
		i++
	}
	return p
}

// EndOf returns the position just past the last rune of text.
func EndOf(text string) Position {
	return PositionAt(text, utf8.RuneCountInString(text))
}

// byteIndex converts a rune offset to a byte index. The offset must be valid.
func byteIndex(text string, offset int) int {
	n := 0
	for i := range text {
		if n == offset {
			return i
		}
		n++
	}
	return len(text)
}
