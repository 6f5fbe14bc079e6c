// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// =============================================================================
// RESOLVE TESTS
// =============================================================================

func TestResolve_Scenarios(t *testing.T) {
	tests := []struct {
		name         string
		cfg          Config
		cmd          Command
		text         string
		wantPrompt   string
		wantTemplate string
		wantFallback bool
	}{
		{
			name:         "placeholder with empty model template",
			cfg:          Config{PromptTemplate: "Do X. {prompt}", ModelTemplate: ""},
			cmd:          Command{Prompt: "Summarize."},
			text:         "Hello world",
			wantPrompt:   "Do X. Summarize.\n\n\"Hello world\"",
			wantTemplate: "",
		},
		{
			name:         "no placeholder with text model template",
			cfg:          Config{PromptTemplate: "NoToken", ModelTemplate: "{text}"},
			cmd:          Command{Prompt: "Summarize."},
			text:         "Hi",
			wantPrompt:   "Summarize.\n\nNoToken",
			wantTemplate: "Hi",
			wantFallback: true,
		},
		{
			name:         "ignore prompt template",
			cfg:          Config{PromptTemplate: "Wrap {prompt} wrap", ModelTemplate: "[INST] {text} [/INST]"},
			cmd:          Command{Prompt: "Explain.", IgnorePromptTemplate: true},
			text:         "abc",
			wantPrompt:   "Explain.",
			wantTemplate: "[INST] abc [/INST]",
		},
		{
			name:         "model template without placeholder passes through",
			cfg:          Config{PromptTemplate: "{prompt}", ModelTemplate: "{{ .Prompt }}"},
			cmd:          Command{Prompt: "Expand."},
			text:         "t",
			wantPrompt:   "Expand.\n\n\"t\"",
			wantTemplate: "{{ .Prompt }}",
		},
		{
			name:         "only first placeholder is replaced",
			cfg:          Config{PromptTemplate: "{prompt} and {prompt}", ModelTemplate: "{text}|{text}"},
			cmd:          Command{Prompt: "P"},
			text:         "T",
			wantPrompt:   "P and {prompt}",
			wantTemplate: "T|{text}",
		},
		{
			name:         "empty prompt template falls back",
			cfg:          Config{},
			cmd:          Command{Prompt: "Go."},
			text:         "x",
			wantPrompt:   "Go.\n\n\n\n\"x\"",
			wantFallback: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resolve(tt.cmd, tt.cfg, tt.text)
			assert.Equal(t, tt.wantPrompt, got.Prompt)
			assert.Equal(t, tt.wantTemplate, got.Template)
			assert.Equal(t, tt.wantFallback, got.Fallback)
		})
	}
}

func TestResolve_PlaceholderSubstitutedOnce(t *testing.T) {
	cfg := Config{PromptTemplate: "Act as a writer. {prompt} Output only the text.", ModelTemplate: "{text}"}
	cmd := Command{Prompt: "Summarize the text."}

	got := Resolve(cmd, cfg, "body")

	assert.Equal(t, 1, strings.Count(got.Prompt, cmd.Prompt))
	assert.NotContains(t, got.Prompt, PromptPlaceholder)
	assert.Equal(t, "Act as a writer. Summarize the text. Output only the text.", got.Prompt)
}

func TestResolve_IgnorePromptTemplateKeepsPromptVerbatim(t *testing.T) {
	templates := []string{"", "{prompt}", "no token", "{prompt}{prompt}"}
	for _, tmpl := range templates {
		cfg := Config{PromptTemplate: tmpl, ModelTemplate: "{text}"}
		cmd := Command{Prompt: "Rewrite.", IgnorePromptTemplate: true}

		got := Resolve(cmd, cfg, "ignored")
		assert.Equal(t, "Rewrite.", got.Prompt, "template %q", tmpl)
		assert.False(t, got.Fallback)
	}
}

func TestResolve_DoesNotMutateConfig(t *testing.T) {
	cfg := Config{PromptTemplate: "{prompt}", ModelTemplate: "<{text}>"}
	_ = Resolve(Command{Prompt: "p"}, cfg, "text")
	assert.Equal(t, "<{text}>", cfg.ModelTemplate)
}

// =============================================================================
// BUILD TESTS
// =============================================================================

func TestBuild_Defaults(t *testing.T) {
	cfg := Config{DefaultModel: "llama2"}
	res := Resolved{Prompt: "p", Template: ""}

	got := Build(res, Command{Prompt: "p"}, cfg)

	assert.Equal(t, ComposedRequest{Prompt: "p", Template: "", Model: "llama2", Temperature: 0.2}, got)
}

func TestBuild_Overrides(t *testing.T) {
	cfg := Config{DefaultModel: "llama2"}
	cmd := Command{Prompt: "p", Model: "mistral", Temperature: Temp(0)}

	got := Build(Resolved{Prompt: "x", Template: "y"}, cmd, cfg)

	assert.Equal(t, "mistral", got.Model)
	assert.Equal(t, 0.0, got.Temperature)
	assert.Equal(t, "x", got.Prompt)
	assert.Equal(t, "y", got.Template)
}

func TestBuild_DefaultSentinel(t *testing.T) {
	cfg := Config{DefaultModel: "llama2"}
	for _, model := range []string{"Default", "default", "  ", ""} {
		got := Build(Resolved{}, Command{Model: model}, cfg)
		assert.Equal(t, "llama2", got.Model, "model %q", model)
	}
}

func TestCompose(t *testing.T) {
	cfg := Config{DefaultModel: "m", PromptTemplate: "Do X. {prompt}"}
	req, res := Compose(Command{Prompt: "Summarize."}, cfg, "Hello world")

	assert.False(t, res.Fallback)
	assert.Equal(t, "Do X. Summarize.\n\n\"Hello world\"", req.Prompt)
	assert.Equal(t, "m", req.Model)
}

// =============================================================================
// COMMAND TESTS
// =============================================================================

func TestCommandID(t *testing.T) {
	tests := map[string]string{
		"Summarize selection":               "summarize-selection",
		"Rewrite selection (formal)":        "rewrite-selection-formal",
		"Rewrite selection (bullet points)": "rewrite-selection-bullet-points",
		"  Café   Crème!! ":                 "cafe-creme",
		"ALLCAPS":                           "allcaps",
		"v2 draft":                          "v2-draft",
		"---":                               "",
	}
	for in, want := range tests {
		assert.Equal(t, want, CommandID(in), "input %q", in)
	}
}

func TestCommand_Clone(t *testing.T) {
	orig := Command{Name: "a", Prompt: "b", Temperature: Temp(0.5)}
	clone := orig.Clone()
	*clone.Temperature = 0.9

	assert.Equal(t, 0.5, *orig.Temperature)
	assert.Equal(t, "a", clone.ID())
}

func TestCommand_HasModel(t *testing.T) {
	assert.False(t, Command{}.HasModel())
	assert.False(t, Command{Model: "Default"}.HasModel())
	assert.True(t, Command{Model: "llama3"}.HasModel())
}

func TestCommand_WithOverrides(t *testing.T) {
	orig := Command{Name: "a", Prompt: "b", Model: "mistral", Temperature: Temp(0.5)}

	same := orig.WithOverrides("Default", nil)
	assert.Equal(t, "mistral", same.Model)
	assert.Equal(t, 0.5, *same.Temperature)

	t0 := 0.0
	over := orig.WithOverrides("llama3", &t0)
	assert.Equal(t, "llama3", over.Model)
	assert.Equal(t, 0.0, *over.Temperature)

	t0 = 0.7
	assert.Equal(t, 0.0, *over.Temperature, "override must not alias the argument")
	assert.Equal(t, 0.5, *orig.Temperature)
}
