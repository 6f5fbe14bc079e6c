// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

// =============================================================================
// MALFORMED STREAM ERROR
// =============================================================================

// MalformedStreamError reports a non-empty stream line that is not a single
// JSON object. It fails the whole decode; no fragments are returned.
type MalformedStreamError struct {
	Line int    // 1-based line number in the raw body
	Raw  string // offending line, trimmed
	Err  error
}

func (e *MalformedStreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed stream at line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("malformed stream at line %d", e.Line)
}

func (e *MalformedStreamError) Unwrap() error {
	return e.Err
}

// IsMalformedStream reports whether err is or wraps a MalformedStreamError.
func IsMalformedStream(err error) bool {
	var mse *MalformedStreamError
	return errors.As(err, &mse)
}

var errNotObject = errors.New("line is not a JSON object")

// parseLine decodes one non-blank line. lineNo is only used for errors.
//
// Only the line's shape and its response field can fail the decode. The
// other fields are informational and are read one by one, keeping what
// parses and dropping the rest.
func parseLine(line []byte, lineNo int) (GenerateResponse, error) {
	var ev GenerateResponse
	trimmed := bytes.TrimSpace(line)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return ev, &MalformedStreamError{Line: lineNo, Raw: string(trimmed), Err: errNotObject}
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return ev, &MalformedStreamError{Line: lineNo, Raw: string(trimmed), Err: err}
	}
	if raw, ok := fields["response"]; ok {
		if err := json.Unmarshal(raw, &ev.Response); err != nil {
			return ev, &MalformedStreamError{Line: lineNo, Raw: string(trimmed), Err: fmt.Errorf("response: %w", err)}
		}
	}

	optional(fields, "done", &ev.Done)
	optional(fields, "model", &ev.Model)
	optional(fields, "created_at", &ev.CreatedAt)
	optional(fields, "done_reason", &ev.DoneReason)
	optional(fields, "total_duration", &ev.TotalDuration)
	optional(fields, "load_duration", &ev.LoadDuration)
	optional(fields, "prompt_eval_count", &ev.PromptEvalCount)
	optional(fields, "prompt_eval_duration", &ev.PromptEvalDuration)
	optional(fields, "eval_count", &ev.EvalCount)
	optional(fields, "eval_duration", &ev.EvalDuration)
	return ev, nil
}

// optional decodes fields[key] into dst when it fits dst's type and leaves
// dst at its zero value otherwise.
func optional[T any](fields map[string]json.RawMessage, key string, dst *T) {
	raw, ok := fields[key]
	if !ok {
		return
	}
	var v T
	if json.Unmarshal(raw, &v) == nil {
		*dst = v
	}
}

func isBlank(line []byte) bool {
	return len(bytes.TrimSpace(line)) == 0
}

// =============================================================================
// BUFFERED DECODE
// =============================================================================

// DecodeResponse assembles a complete /api/generate body into final text.
//
// The body is split on "\n"; blank lines are skipped and every other line
// must be one JSON object. The response fields are concatenated in line
// order and the result is trimmed. An empty body decodes to "".
func DecodeResponse(body []byte) (string, error) {
	var b strings.Builder
	for i, line := range bytes.Split(body, []byte("\n")) {
		if isBlank(line) {
			continue
		}
		ev, err := parseLine(line, i+1)
		if err != nil {
			return "", err
		}
		b.WriteString(ev.Response)
	}
	return strings.TrimSpace(b.String()), nil
}

// =============================================================================
// STREAM READER
// =============================================================================

// StreamCallback is called for each decoded event, in arrival order.
type StreamCallback func(ev GenerateResponse)

// StreamReader decodes a /api/generate body incrementally, line by line.
// It applies the same rules as DecodeResponse: fragments are accumulated in
// arrival order and a malformed line fails the read.
type StreamReader struct {
	reader *bufio.Reader
	// PERFORMANCE: strings.Builder avoids quadratic allocations
	accumulator strings.Builder
	lineNo      int
	fragments   int
	final       *GenerateResponse
	startTime   time.Time
	firstAt     time.Time
}

// NewStreamReader creates a new stream reader from an io.Reader.
func NewStreamReader(r io.Reader) *StreamReader {
	return &StreamReader{
		reader:    bufio.NewReader(r),
		startTime: time.Now(),
	}
}

// Next returns the next decoded event, skipping blank lines.
// It returns io.EOF once the input is exhausted.
func (s *StreamReader) Next() (GenerateResponse, error) {
	for {
		line, err := s.reader.ReadBytes('\n')
		if err != nil && (len(line) == 0 || !errors.Is(err, io.EOF)) {
			// a body cut off mid-line is a read failure, not a bad line
			return GenerateResponse{}, err
		}
		s.lineNo++

		if isBlank(line) {
			if err != nil {
				return GenerateResponse{}, err
			}
			continue
		}

		ev, perr := parseLine(line, s.lineNo)
		if perr != nil {
			return GenerateResponse{}, perr
		}

		if ev.Response != "" {
			if s.firstAt.IsZero() {
				s.firstAt = time.Now()
			}
			s.fragments++
		}
		s.accumulator.WriteString(ev.Response)
		if ev.Done {
			final := ev
			s.final = &final
		}
		return ev, nil
	}
}

// Process reads the stream to the end, calling callback for each event.
// Blocks until the stream is exhausted, a line is malformed, or the
// context is cancelled.
func (s *StreamReader) Process(ctx context.Context, callback StreamCallback) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		ev, err := s.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if callback != nil {
			callback(ev)
		}
	}
}

// Text returns the trimmed concatenation of all fragments read so far.
func (s *StreamReader) Text() string {
	return strings.TrimSpace(s.accumulator.String())
}

// Fragments returns the number of non-empty fragments read.
func (s *StreamReader) Fragments() int {
	return s.fragments
}

// Stats summarizes the stream. Server-reported figures are only present
// once the final event (done=true) has been read.
func (s *StreamReader) Stats() StreamStats {
	st := StreamStats{
		Fragments: s.fragments,
		Elapsed:   time.Since(s.startTime),
	}
	if !s.firstAt.IsZero() {
		st.TTFT = s.firstAt.Sub(s.startTime)
	}
	if s.final != nil {
		st.Model = s.final.Model
		st.DoneReason = s.final.DoneReason
		st.PromptTokens = s.final.PromptEvalCount
		st.CompletionTokens = s.final.EvalCount
		st.TotalDuration = time.Duration(s.final.TotalDuration)
		st.TokensPerSecond = s.final.TokensPerSecond()
	}
	return st
}

// =============================================================================
// STREAM STATISTICS
// =============================================================================

// StreamStats holds statistics collected during streaming.
type StreamStats struct {
	Model            string
	DoneReason       string
	Fragments        int
	PromptTokens     int
	CompletionTokens int
	TotalDuration    time.Duration // as reported by the server
	Elapsed          time.Duration // wall clock on this side
	TTFT             time.Duration // time to first fragment
	TokensPerSecond  float64
}

// Format returns a one-line summary.
func (s StreamStats) Format() string {
	return fmt.Sprintf("%.1fs | %d tokens | %.1f tok/s | TTFT %dms",
		s.Elapsed.Seconds(), s.CompletionTokens, s.TokensPerSecond, s.TTFT.Milliseconds())
}
