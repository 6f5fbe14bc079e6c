// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package prompt

// ComposedRequest is the derived, never-persisted description of one
// generation request.
type ComposedRequest struct {
	Prompt      string  `json:"prompt"`
	Template    string  `json:"template"`
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
}

// Build combines resolver output with the command's model and temperature.
// Model existence is not checked here; an unknown model fails at transport
// time.
func Build(res Resolved, cmd Command, cfg Config) ComposedRequest {
	model := NormalizeModel(cmd.Model)
	if model == "" {
		model = cfg.DefaultModel
	}

	temperature := DefaultTemperature
	if cmd.Temperature != nil {
		temperature = *cmd.Temperature
	}

	return ComposedRequest{
		Prompt:      res.Prompt,
		Template:    res.Template,
		Model:       model,
		Temperature: temperature,
	}
}

// Compose runs Resolve and Build in sequence.
func Compose(cmd Command, cfg Config, text string) (ComposedRequest, Resolved) {
	res := Resolve(cmd, cfg, text)
	return Build(res, cmd, cfg), res
}
