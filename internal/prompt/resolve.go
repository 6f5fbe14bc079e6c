// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package prompt

import "strings"

// Resolved is the output of the template resolver.
type Resolved struct {
	// Prompt is the final prompt body.
	Prompt string

	// Template is the model template with the text substituted, or the
	// configured model template unchanged when it has no {text} placeholder.
	// Empty means the server uses the model's built-in template.
	Template string

	// Fallback is set when the prompt template had no {prompt} placeholder
	// and the command prompt was prepended instead. Callers surface this
	// as a warning.
	Fallback bool
}

// Resolve merges a command prompt, the configured templates, and the
// source text.
//
// The prompt body is the command prompt verbatim when the command ignores
// the prompt template. Otherwise the first {prompt} in the prompt template
// is replaced with the command prompt, or, with no placeholder present, the
// body becomes command prompt + "\n\n" + prompt template.
//
// If the model template contains {text}, the text is substituted into it
// and returned as Template. Otherwise the text is appended to the prompt
// body in double quotes and the model template passes through unchanged.
func Resolve(cmd Command, cfg Config, text string) Resolved {
	var res Resolved

	switch {
	case cmd.IgnorePromptTemplate:
		res.Prompt = cmd.Prompt
	case strings.Contains(cfg.PromptTemplate, PromptPlaceholder):
		res.Prompt = strings.Replace(cfg.PromptTemplate, PromptPlaceholder, cmd.Prompt, 1)
	default:
		res.Prompt = cmd.Prompt + "\n\n" + cfg.PromptTemplate
		res.Fallback = true
	}

	if strings.Contains(cfg.ModelTemplate, TextPlaceholder) {
		res.Template = strings.Replace(cfg.ModelTemplate, TextPlaceholder, text, 1)
		return res
	}

	res.Prompt = res.Prompt + "\n\n\"" + text + "\""
	res.Template = cfg.ModelTemplate
	return res
}
