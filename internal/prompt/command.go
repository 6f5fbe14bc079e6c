// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package prompt

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// DefaultTemperature is used when a command leaves temperature unset.
	DefaultTemperature = 0.2

	// DefaultModelSentinel is the model name meaning "use the configured default".
	DefaultModelSentinel = "Default"

	// PromptPlaceholder is replaced by the command prompt in the prompt template.
	PromptPlaceholder = "{prompt}"

	// TextPlaceholder is replaced by the source text in the model template.
	TextPlaceholder = "{text}"
)

// =============================================================================
// COMMAND
// =============================================================================

// Command is a named, reusable prompt configuration.
//
// Model and Temperature are optional: an empty Model (or the "Default"
// sentinel) selects Config.DefaultModel and a nil Temperature selects
// DefaultTemperature.
type Command struct {
	Name                 string   `toml:"name" json:"name" yaml:"name"`
	Prompt               string   `toml:"prompt" json:"prompt" yaml:"prompt"`
	Model                string   `toml:"model,omitempty" json:"model,omitempty" yaml:"model,omitempty"`
	Temperature          *float64 `toml:"temperature,omitempty" json:"temperature,omitempty" yaml:"temperature,omitempty"`
	IgnorePromptTemplate bool     `toml:"ignore_prompt_template,omitempty" json:"ignore_prompt_template,omitempty" yaml:"ignore_prompt_template,omitempty"`
}

// ID returns the kebab-case identifier derived from the command name.
func (c Command) ID() string {
	return CommandID(c.Name)
}

// HasModel reports whether the command overrides the default model.
func (c Command) HasModel() bool {
	return NormalizeModel(c.Model) != ""
}

// Clone returns a deep copy of the command.
func (c Command) Clone() Command {
	out := c
	if c.Temperature != nil {
		t := *c.Temperature
		out.Temperature = &t
	}
	return out
}

// WithOverrides returns a copy with the model and temperature replaced
// when given. An empty model keeps the command's own.
func (c Command) WithOverrides(model string, temperature *float64) Command {
	out := c.Clone()
	if m := NormalizeModel(model); m != "" {
		out.Model = m
	}
	if temperature != nil {
		t := *temperature
		out.Temperature = &t
	}
	return out
}

// Temp returns a pointer to t, for filling Command.Temperature.
func Temp(t float64) *float64 {
	return &t
}

// NormalizeModel maps the "Default" sentinel and blank names to "".
func NormalizeModel(model string) string {
	model = strings.TrimSpace(model)
	if strings.EqualFold(model, DefaultModelSentinel) {
		return ""
	}
	return model
}

// CommandID converts a command name into its kebab-case identifier.
//
// Letters are lower-cased and stripped of diacritics; every run of other
// characters becomes a single dash. "Rewrite selection (formal)" becomes
// "rewrite-selection-formal".
func CommandID(name string) string {
	// transform chains carry state, so build one per call
	stripMarks := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(stripMarks, name)
	if err != nil {
		folded = name
	}

	var b strings.Builder
	pendingDash := false
	for _, r := range strings.ToLower(folded) {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			pendingDash = true
			continue
		}
		if pendingDash && b.Len() > 0 {
			b.WriteByte('-')
		}
		pendingDash = false
		b.WriteRune(r)
	}
	return b.String()
}

// =============================================================================
// ENGINE CONFIG
// =============================================================================

// Config is the immutable engine configuration used for a single invocation.
type Config struct {
	ServerURL      string `json:"server_url"`
	DefaultModel   string `json:"default_model"`
	PromptTemplate string `json:"prompt_template"`
	ModelTemplate  string `json:"model_template"`
}
