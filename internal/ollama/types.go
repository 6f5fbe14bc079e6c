// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"strings"
	"time"

	"github.com/jeranaias/inkwell/internal/prompt"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// Options carries model parameters. Temperature is always sent because zero
// is a meaningful value.
type Options struct {
	Temperature float64 `json:"temperature"`
}

// GenerateRequest is the request body for the /api/generate endpoint.
// Stream is left unset so the server replies with newline-delimited JSON.
type GenerateRequest struct {
	Prompt   string  `json:"prompt"`
	Model    string  `json:"model"`
	Options  Options `json:"options"`
	Template string  `json:"template,omitempty"` // Empty lets the server use the model's template
}

// NewGenerateRequest converts a composed request into its wire form.
func NewGenerateRequest(req prompt.ComposedRequest) GenerateRequest {
	return GenerateRequest{
		Prompt:   req.Prompt,
		Model:    req.Model,
		Options:  Options{Temperature: req.Temperature},
		Template: req.Template,
	}
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// GenerateResponse is one line of the /api/generate stream.
// Only Response and Done matter for assembly; the rest is informational.
type GenerateResponse struct {
	Model              string    `json:"model"`
	CreatedAt          time.Time `json:"created_at"`
	Response           string    `json:"response"`
	Done               bool      `json:"done"`
	DoneReason         string    `json:"done_reason,omitempty"`
	TotalDuration      int64     `json:"total_duration,omitempty"`
	LoadDuration       int64     `json:"load_duration,omitempty"`
	PromptEvalCount    int       `json:"prompt_eval_count,omitempty"`
	PromptEvalDuration int64     `json:"prompt_eval_duration,omitempty"`
	EvalCount          int       `json:"eval_count,omitempty"`
	EvalDuration       int64     `json:"eval_duration,omitempty"`
}

// TokensPerSecond returns the generation speed reported on the final event.
func (r *GenerateResponse) TokensPerSecond() float64 {
	if r.EvalDuration <= 0 {
		return 0
	}
	return float64(r.EvalCount) / time.Duration(r.EvalDuration).Seconds()
}

// ModelInfo describes an installed model as returned by /api/tags.
type ModelInfo struct {
	Name       string       `json:"name"`
	ModifiedAt time.Time    `json:"modified_at"`
	Size       int64        `json:"size"`
	Digest     string       `json:"digest"`
	Details    ModelDetails `json:"details,omitempty"`
}

// DisplayName returns the model name without a ":latest" suffix.
func (m ModelInfo) DisplayName() string {
	return DisplayName(m.Name)
}

// ModelDetails contains detailed information about a model.
type ModelDetails struct {
	Format            string   `json:"format"`
	Family            string   `json:"family"`
	Families          []string `json:"families"`
	ParameterSize     string   `json:"parameter_size"`
	QuantizationLevel string   `json:"quantization_level"`
}

// ListModelsResponse is the response from /api/tags.
type ListModelsResponse struct {
	Models []ModelInfo `json:"models"`
}

// OllamaError is the error body returned on non-2xx responses.
type OllamaError struct {
	Error string `json:"error"`
}

// =============================================================================
// HELPERS
// =============================================================================

const latestSuffix = ":latest"

// DisplayName strips a trailing ":latest" tag from a model name.
func DisplayName(name string) string {
	return strings.TrimSuffix(name, latestSuffix)
}

// DisplayNames maps DisplayName over a model list, preserving order.
func DisplayNames(models []ModelInfo) []string {
	names := make([]string, 0, len(models))
	for _, m := range models {
		names = append(names, m.DisplayName())
	}
	return names
}
