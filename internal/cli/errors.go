// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// errors.go - Error display and exit codes for all inkwell commands.
//
// Commands always return errors; Execute decides how to show them and
// which exit code to use.

package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/jeranaias/inkwell/internal/config"
	"github.com/jeranaias/inkwell/internal/engine"
	"github.com/jeranaias/inkwell/internal/marker"
	"github.com/jeranaias/inkwell/internal/ollama"
	"github.com/jeranaias/inkwell/internal/storage"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	ExitSuccess      = 0
	ExitGeneralError = 1
	// ExitUsageError indicates invalid command usage or arguments
	ExitUsageError = 2
	// ExitConfigError covers bad settings and an unreachable model list
	ExitConfigError = 3
	// ExitNetworkError indicates a failed generation request
	ExitNetworkError  = 5
	ExitNotFoundError = 7
	ExitTimeoutError  = 8
	// ExitStreamError indicates a malformed generation stream
	ExitStreamError = 9
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// UsageError is a bad flag or argument.
type UsageError struct {
	Reason  string
	Example string
}

func (e *UsageError) Error() string {
	if e.Example != "" {
		return e.Reason + "\nExample: " + e.Example
	}
	return e.Reason
}

// NotFoundError represents a missing command, file or history entry.
type NotFoundError struct {
	Resource string
	ID       string
	Err      error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return e.Err
}

// reportedError has already been shown to the user (by the engine's
// notifier); Execute only turns it into an exit code.
type reportedError struct {
	err error
}

func (e *reportedError) Error() string { return e.err.Error() }
func (e *reportedError) Unwrap() error { return e.err }

func reported(err error) error {
	if err == nil {
		return nil
	}
	return &reportedError{err: err}
}

// =============================================================================
// ERROR DISPLAY
// =============================================================================

// DisplayError writes err to w, as JSON in JSON mode.
func DisplayError(w io.Writer, err error, jsonMode bool) {
	if err == nil {
		return
	}
	if jsonMode {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.Encode(NewJSONErrorResponse(err))
		return
	}
	fmt.Fprintf(w, "%s %s\n", ErrorStyle.Render("Error:"), err.Error())
	if hint := errorHint(err); hint != "" {
		fmt.Fprintln(w, DimStyle.Render(hint))
	}
}

// errorHint suggests a next step for common failures.
func errorHint(err error) string {
	switch {
	case ollama.IsConfiguration(err):
		return "Check server_url with 'inkwell config show' and that Ollama is running."
	case ollama.IsModelNotFound(err):
		return "Pull the model with 'ollama pull <model>' or pick one from 'inkwell models'."
	case errors.Is(err, config.ErrCommandNotFound):
		return "List commands with 'inkwell commands list'."
	case errors.Is(err, engine.ErrNoCustomPrompt):
		return "Run a custom prompt first with /custom <prompt>."
	}
	return ""
}

// GetExitCode maps an error onto an exit code.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var usage *UsageError
	var notFound *NotFoundError
	switch {
	case errors.As(err, &usage):
		return ExitUsageError
	case errors.As(err, &notFound),
		errors.Is(err, config.ErrCommandNotFound),
		errors.Is(err, storage.ErrNotFound):
		return ExitNotFoundError
	case ollama.IsMalformedStream(err):
		return ExitStreamError
	case ollama.IsTimeout(err):
		return ExitTimeoutError
	case ollama.IsTransport(err):
		return ExitNetworkError
	case ollama.IsConfiguration(err), config.IsValidation(err):
		return ExitConfigError
	case errors.Is(err, marker.ErrOutOfRange):
		return ExitUsageError
	}
	return ExitGeneralError
}

// HandleError shows err unless it was already reported and returns the
// exit code.
func HandleError(w io.Writer, err error, jsonMode bool) int {
	if err == nil {
		return ExitSuccess
	}
	var rep *reportedError
	if !errors.As(err, &rep) || jsonMode {
		DisplayError(w, err, jsonMode)
	}
	return GetExitCode(err)
}
