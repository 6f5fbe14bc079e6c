// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/inkwell/internal/marker"
	"github.com/jeranaias/inkwell/internal/metrics"
	"github.com/jeranaias/inkwell/internal/ollama"
	"github.com/jeranaias/inkwell/internal/prompt"
	"github.com/jeranaias/inkwell/internal/storage"
	"github.com/jeranaias/inkwell/internal/util"
)

// FallbackWarning is reported when the prompt template has no {prompt}
// placeholder and is appended after the command prompt instead.
const FallbackWarning = "Warning: your prompt template does not contain '{prompt}'. It was appended after the command prompt."

// =============================================================================
// COLLABORATORS
// =============================================================================

// Generator sends a composed request and returns the decoded text.
// *ollama.Client satisfies it.
type Generator interface {
	Generate(ctx context.Context, req prompt.ComposedRequest) (string, error)
}

// StreamGenerator is implemented by generators that can report per-fragment
// progress. The engine prefers it when available; the returned text must be
// identical to what Generate would return.
type StreamGenerator interface {
	GenerateStream(ctx context.Context, req prompt.ComposedRequest, cb ollama.StreamCallback) (string, ollama.StreamStats, error)
}

// Recorder persists finished invocations. *storage.History satisfies it.
type Recorder interface {
	Record(ctx context.Context, inv *storage.Invocation) error
}

// =============================================================================
// INVOCATION
// =============================================================================

// Invocation describes one finished run.
type Invocation struct {
	ID       string
	Command  prompt.Command
	Request  prompt.ComposedRequest
	Fallback bool
	Text     string
	State    marker.State
	Err      error
	Duration time.Duration
	Stats    *ollama.StreamStats
}

// Status returns the history status string for the final marker state.
func (i *Invocation) Status() string {
	if i.State == marker.Resolved {
		return storage.StatusResolved
	}
	return storage.StatusFailed
}

// =============================================================================
// ENGINE
// =============================================================================

// Engine runs invocations. It holds no per-invocation state and is safe for
// concurrent use.
type Engine struct {
	gen      Generator
	notifier Notifier
	recorder Recorder
	logger   *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithNotifier sets where warnings and errors are surfaced.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

// WithRecorder enables history recording.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// New creates an engine around gen.
func New(gen Generator, opts ...Option) *Engine {
	e := &Engine{gen: gen}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.notifier == nil {
		e.notifier = LogNotifier{Logger: e.logger}
	}
	return e
}

// SourceText returns the text an invocation operates on: the selection, or
// the whole document when the selection is empty.
func SourceText(doc marker.Document) string {
	if sel := doc.Selection(); sel != "" {
		return sel
	}
	return doc.Value()
}

// Compose builds the request an invocation would send, without touching
// the document or the network.
func Compose(doc marker.Document, cmd prompt.Command, cfg prompt.Config) (prompt.ComposedRequest, prompt.Resolved) {
	return prompt.Compose(cmd, cfg, SourceText(doc))
}

// Invoke runs cmd against doc. It returns the finished invocation together
// with its error; the invocation is nil only when the marker could not be
// placed, in which case nothing was sent and the document is unchanged.
//
// On any generation failure the marker is erased, the error is sent to the
// notifier and the document is left exactly as it was before the call.
func (e *Engine) Invoke(ctx context.Context, doc marker.Document, cmd prompt.Command, cfg prompt.Config) (*Invocation, error) {
	return e.InvokeWith(ctx, nil, doc, cmd, cfg)
}

// InvokeWith is Invoke with an additional notifier for this call only. The
// engine's own notifier still receives every message.
func (e *Engine) InvokeWith(ctx context.Context, extra Notifier, doc marker.Document, cmd prompt.Command, cfg prompt.Config) (*Invocation, error) {
	notifier := e.notifier
	if extra != nil {
		notifier = multiNotifier{e.notifier, extra}
	}

	req, res := Compose(doc, cmd, cfg)
	inv := &Invocation{
		ID:       uuid.New().String(),
		Command:  cmd,
		Request:  req,
		Fallback: res.Fallback,
	}
	log := e.logger.With("invocation", inv.ID, "command", cmd.Name, "model", req.Model)

	if res.Fallback {
		metrics.TemplateFallbacksTotal.Inc()
		log.Warn("prompt template has no {prompt} placeholder")
		notifier.Warn(FallbackWarning)
	}

	m, err := marker.Place(doc, doc.Cursor())
	if err != nil {
		return nil, fmt.Errorf("place marker: %w", err)
	}

	log.Debug("invocation started", "marker", m.Position().String(), "temperature", req.Temperature)
	start := time.Now()

	text, genErr := e.generate(ctx, req, inv)
	inv.Duration = time.Since(start)

	if genErr != nil {
		inv.Err = genErr
		if ferr := m.Fail(); ferr != nil {
			log.Error("failed to erase marker", "error", ferr)
			inv.Err = errors.Join(genErr, ferr)
		}
		inv.State = m.State()
		notifier.Error("Error while generating text: " + genErr.Error())
		log.Warn("invocation failed", "duration", inv.Duration, "error", genErr)
	} else if rerr := m.Resolve(text); rerr != nil {
		inv.Err = rerr
		inv.State = m.State()
		notifier.Error("Could not insert generated text: " + rerr.Error())
		log.Warn("marker lost before resolution", "error", rerr)
	} else {
		inv.Text = text
		inv.State = m.State()
		log.Info("invocation resolved", "duration", inv.Duration, "chars", len([]rune(text)))
	}

	metrics.ObserveInvocation(inv.Status(), inv.Duration)
	e.record(ctx, inv, log)
	return inv, inv.Err
}

func (e *Engine) generate(ctx context.Context, req prompt.ComposedRequest, inv *Invocation) (string, error) {
	sg, ok := e.gen.(StreamGenerator)
	if !ok {
		return e.gen.Generate(ctx, req)
	}

	text, stats, err := sg.GenerateStream(ctx, req, nil)
	metrics.StreamFragmentsTotal.Add(float64(stats.Fragments))
	inv.Stats = &stats
	return text, err
}

func (e *Engine) record(ctx context.Context, inv *Invocation, log *slog.Logger) {
	if e.recorder == nil {
		return
	}
	row := &storage.Invocation{
		ID:          inv.ID,
		Command:     inv.Command.Name,
		Model:       inv.Request.Model,
		Prompt:      inv.Request.Prompt,
		Template:    inv.Request.Template,
		Temperature: inv.Request.Temperature,
		Output:      inv.Text,
		Status:      inv.Status(),
		DurationMS:  inv.Duration.Milliseconds(),
	}
	if inv.Err != nil {
		row.Error = inv.Err.Error()
	}
	// History must not be lost because the caller's context ended.
	if err := e.recorder.Record(context.WithoutCancel(ctx), row); err != nil {
		log.Warn("failed to record invocation", "error", err, "prompt", util.Preview(inv.Request.Prompt, 60))
	}
}
