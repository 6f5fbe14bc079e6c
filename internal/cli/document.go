// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/inkwell/internal/marker"
	"github.com/jeranaias/inkwell/internal/util"
)

// =============================================================================
// DOCUMENT FLAGS
// =============================================================================

// docFlags locate the text an invocation works on.
type docFlags struct {
	selection string
	cursor    string
}

func (f *docFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.selection, "selection", "", "selected range as L:C-L:C (0-based line, rune column)")
	cmd.Flags().StringVar(&f.cursor, "cursor", "", "insertion point as L:C (default: selection head, else end of document)")
}

// document is a loaded buffer plus where it came from.
type document struct {
	*marker.Buffer
	path string
	perm os.FileMode
}

// loadDocument reads path, or stdin when path is empty, and applies the
// selection and cursor flags.
func (a *App) loadDocument(path string, f docFlags) (*document, error) {
	doc := &document{path: path, perm: 0o644}

	var text []byte
	var err error
	if path == "" {
		if isTerminalReader(a.In) {
			return nil, &UsageError{
				Reason:  "no document: pass a file or pipe text on stdin",
				Example: "echo 'some text' | inkwell run summarize-selection",
			}
		}
		text, err = io.ReadAll(a.In)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
	} else {
		text, err = os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &NotFoundError{Resource: "file", ID: path, Err: err}
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		if info, err := os.Stat(path); err == nil {
			doc.perm = info.Mode().Perm()
		}
	}
	doc.Buffer = marker.NewBuffer(string(text))

	if f.selection != "" {
		from, to, err := parseRange(f.selection)
		if err != nil {
			return nil, err
		}
		if err := doc.Select(from, to); err != nil {
			return nil, &UsageError{Reason: fmt.Sprintf("selection %s: %v", f.selection, err)}
		}
	}
	if f.cursor != "" {
		pos, err := marker.ParsePosition(f.cursor)
		if err != nil {
			return nil, &UsageError{Reason: fmt.Sprintf("cursor: %v", err), Example: "--cursor 3:0"}
		}
		if err := doc.PlaceCursor(pos); err != nil {
			return nil, &UsageError{Reason: fmt.Sprintf("cursor %s: %v", f.cursor, err)}
		}
	}
	return doc, nil
}

// save writes the document back to its file.
func (d *document) save() error {
	if d.path == "" {
		return &UsageError{Reason: "--write needs a file argument"}
	}
	return util.AtomicWriteFile(d.path, []byte(d.Value()), d.perm)
}

// parseRange parses "L:C-L:C".
func parseRange(s string) (marker.Position, marker.Position, error) {
	a, b, ok := strings.Cut(s, "-")
	if !ok {
		return marker.Position{}, marker.Position{}, &UsageError{
			Reason:  fmt.Sprintf("invalid selection %q", s),
			Example: "--selection 0:0-2:10",
		}
	}
	from, err := marker.ParsePosition(strings.TrimSpace(a))
	if err != nil {
		return marker.Position{}, marker.Position{}, &UsageError{Reason: "selection start: " + err.Error()}
	}
	to, err := marker.ParsePosition(strings.TrimSpace(b))
	if err != nil {
		return marker.Position{}, marker.Position{}, &UsageError{Reason: "selection end: " + err.Error()}
	}
	return from, to, nil
}
