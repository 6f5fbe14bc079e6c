// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jeranaias/inkwell/internal/ollama"
	"github.com/jeranaias/inkwell/internal/prompt"
	"github.com/jeranaias/inkwell/internal/util"
)

// modelRow is one entry of `inkwell models --json`.
type modelRow struct {
	Name       string `json:"name"`
	Size       int64  `json:"size,omitempty"`
	Family     string `json:"family,omitempty"`
	Parameters string `json:"parameters,omitempty"`
	Modified   string `json:"modified,omitempty"`
	Default    bool   `json:"default,omitempty"`
}

func newModelsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List models installed on the Ollama server",
		Long: `List models installed on the Ollama server.

The first entry is always "Default", which stands for the configured
default_model. Names are shown without the ":latest" tag.`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(c *cobra.Command, args []string) error {
			store, err := app.Store()
			if err != nil {
				return err
			}
			cfg := store.Snapshot()

			models, err := app.Client(cfg).ListModels(c.Context())
			if err != nil {
				return err
			}

			rows := make([]modelRow, 0, len(models)+1)
			rows = append(rows, modelRow{Name: prompt.DefaultModelSentinel, Family: cfg.DefaultModel, Default: true})
			for _, m := range models {
				rows = append(rows, modelRow{
					Name:       m.DisplayName(),
					Size:       m.Size,
					Family:     m.Details.Family,
					Parameters: m.Details.ParameterSize,
					Modified:   humanize.Time(m.ModifiedAt),
				})
			}
			if app.jsonOut {
				return writeJSON(app.Out, rows)
			}
			printModels(app, rows, cfg.DefaultModel, models)
			return nil
		},
	}
}

func printModels(app *App, rows []modelRow, defaultModel string, models []ollama.ModelInfo) {
	nameW := 7
	for _, r := range rows {
		nameW = max(nameW, len(r.Name))
	}
	fmt.Fprintln(app.Out, HeaderStyle.Render(fmt.Sprintf("%s  %-9s  %-8s  %s", util.PadRight("NAME", nameW), "SIZE", "PARAMS", "MODIFIED")))
	fmt.Fprintf(app.Out, "%s  %s\n", util.PadRight(prompt.DefaultModelSentinel, nameW), DimStyle.Render("→ "+defaultModel))
	for _, r := range rows[1:] {
		fmt.Fprintf(app.Out, "%s  %-9s  %-8s  %s\n",
			util.PadRight(r.Name, nameW),
			humanize.Bytes(uint64(max(r.Size, 0))),
			r.Parameters,
			DimStyle.Render(r.Modified))
	}
	if len(models) == 0 {
		fmt.Fprintln(app.Out, DimStyle.Render("No models installed. Pull one with 'ollama pull "+defaultModel+"'."))
	}
}
