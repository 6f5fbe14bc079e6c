// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package engine

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/jeranaias/inkwell/internal/config"
	"github.com/jeranaias/inkwell/internal/marker"
	"github.com/jeranaias/inkwell/internal/prompt"
)

// ErrNoCustomPrompt is returned by Promote when no custom prompt has run in
// this session.
var ErrNoCustomPrompt = errors.New("no custom prompt to save")

// CustomCommandName labels ad-hoc commands until they are promoted.
const CustomCommandName = "Custom prompt"

// CustomCommand builds an unsaved command from free text.
func CustomCommand(text string) prompt.Command {
	return prompt.Command{Name: CustomCommandName, Prompt: strings.TrimSpace(text)}
}

// =============================================================================
// SESSION
// =============================================================================

// Session is per-user, unpersisted state on top of an Engine. It remembers
// the last custom command so it can be saved under a name later.
type Session struct {
	engine *Engine

	mu         sync.Mutex
	lastCustom *prompt.Command
}

// NewSession creates a session that runs invocations on e.
func NewSession(e *Engine) *Session {
	return &Session{engine: e}
}

// Engine returns the underlying engine.
func (s *Session) Engine() *Engine {
	return s.engine
}

// Run invokes a stored command.
func (s *Session) Run(ctx context.Context, doc marker.Document, cmd prompt.Command, cfg prompt.Config) (*Invocation, error) {
	return s.engine.Invoke(ctx, doc, cmd, cfg)
}

// RunCustom invokes an ad-hoc command and remembers it, whether or not the
// generation succeeds.
func (s *Session) RunCustom(ctx context.Context, doc marker.Document, cmd prompt.Command, cfg prompt.Config) (*Invocation, error) {
	if strings.TrimSpace(cmd.Prompt) == "" {
		return nil, errors.New("custom prompt is empty")
	}
	remembered := cmd.Clone()
	s.mu.Lock()
	s.lastCustom = &remembered
	s.mu.Unlock()

	return s.engine.Invoke(ctx, doc, cmd, cfg)
}

// LastCustom returns the remembered custom command, if any.
func (s *Session) LastCustom() (prompt.Command, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastCustom == nil {
		return prompt.Command{}, false
	}
	return s.lastCustom.Clone(), true
}

// Promote stores the last custom command under name. Name validation and the
// duplicate check happen here, not when the custom prompt ran. The session
// slot is cleared only when the store accepts the command.
func (s *Session) Promote(name string, store *config.Store) (prompt.Command, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lastCustom == nil {
		return prompt.Command{}, ErrNoCustomPrompt
	}
	cmd := s.lastCustom.Clone()
	cmd.Name = strings.TrimSpace(name)

	if err := store.Update(func(c *config.Config) error {
		return c.AddCommand(cmd)
	}); err != nil {
		return prompt.Command{}, err
	}
	s.lastCustom = nil
	return cmd, nil
}
