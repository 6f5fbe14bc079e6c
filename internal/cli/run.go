// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// run.go - The run, prompt and compose commands.

package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeranaias/inkwell/internal/config"
	"github.com/jeranaias/inkwell/internal/engine"
	"github.com/jeranaias/inkwell/internal/prompt"
)

// =============================================================================
// SHARED FLAGS
// =============================================================================

// overrideFlags are the per-invocation model and temperature overrides.
type overrideFlags struct {
	model       string
	temperature float64
}

func (f *overrideFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.model, "model", "m", "", "model for this run only")
	cmd.Flags().Float64VarP(&f.temperature, "temperature", "t", prompt.DefaultTemperature, "temperature for this run only (0 to 1)")
}

// apply returns cmd with the overrides the user actually set.
func (f *overrideFlags) apply(c *cobra.Command, cmd prompt.Command) (prompt.Command, error) {
	var temp *float64
	if c.Flags().Changed("temperature") {
		if f.temperature < 0 || f.temperature > 1 {
			return cmd, &UsageError{Reason: fmt.Sprintf("temperature %.2f outside 0..1", f.temperature)}
		}
		temp = prompt.Temp(f.temperature)
	}
	return cmd.WithOverrides(f.model, temp), nil
}

// outputFlags choose what a successful run prints.
type outputFlags struct {
	write    bool
	raw      bool
	document bool
}

func (f *outputFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVarP(&f.write, "write", "w", false, "write the result back into the file")
	cmd.Flags().BoolVar(&f.raw, "raw", false, "print generated text without markdown rendering")
	cmd.Flags().BoolVar(&f.document, "document", false, "print the whole updated document instead of the generated text")
}

// runResult is the JSON shape of a finished invocation.
type runResult struct {
	ID         string  `json:"id"`
	Command    string  `json:"command"`
	Model      string  `json:"model"`
	Status     string  `json:"status"`
	Text       string  `json:"text"`
	Document   string  `json:"document,omitempty"`
	Fallback   bool    `json:"template_fallback,omitempty"`
	DurationMS int64   `json:"duration_ms"`
	Tokens     int     `json:"tokens,omitempty"`
	TokensPerS float64 `json:"tokens_per_second,omitempty"`
}

// =============================================================================
// RUN
// =============================================================================

func newRunCmd(app *App) *cobra.Command {
	var (
		df  docFlags
		ovr overrideFlags
		out outputFlags
	)
	cmd := &cobra.Command{
		Use:   "run <command> [file]",
		Short: "Run a stored command against a document",
		Long: `Run a stored command against a file, or stdin when no file is given.

The command is looked up by name or id. The selection (or the whole document)
is sent to the model and the answer is inserted at the cursor.`,
		Example: `  inkwell run summarize-selection notes.md --selection 4:0-12:0
  cat draft.md | inkwell run "Fix grammar"
  inkwell run continue-writing story.md --write`,
		Args: usageArgs(cobra.RangeArgs(1, 2)),
		RunE: func(c *cobra.Command, args []string) error {
			store, err := app.Store()
			if err != nil {
				return err
			}
			cfg := store.Snapshot()

			command, idx := cfg.FindCommand(args[0])
			if idx < 0 {
				return &NotFoundError{Resource: "command", ID: args[0], Err: config.ErrCommandNotFound}
			}
			if command, err = ovr.apply(c, command); err != nil {
				return err
			}

			doc, err := app.loadDocument(fileArg(args, 1), df)
			if err != nil {
				return err
			}

			inv, err := app.Engine(cfg).Invoke(c.Context(), doc, command, cfg.Engine())
			return app.finishRun(doc, inv, err, out)
		},
	}
	df.register(cmd)
	ovr.register(cmd)
	out.register(cmd)
	return cmd
}

// =============================================================================
// PROMPT
// =============================================================================

func newPromptCmd(app *App) *cobra.Command {
	var (
		df   docFlags
		ovr  overrideFlags
		out  outputFlags
		save string
	)
	cmd := &cobra.Command{
		Use:   "prompt <text> [file]",
		Short: "Run a one-off prompt, optionally saving it as a command",
		Example: `  inkwell prompt "Translate to French" letter.md
  inkwell prompt "Make it shorter" draft.md --save "Shorten"`,
		Args: usageArgs(cobra.RangeArgs(1, 2)),
		RunE: func(c *cobra.Command, args []string) error {
			store, err := app.Store()
			if err != nil {
				return err
			}
			cfg := store.Snapshot()

			custom, err := ovr.apply(c, engine.CustomCommand(args[0]))
			if err != nil {
				return err
			}
			if custom.Prompt == "" {
				return &UsageError{Reason: "prompt text is empty"}
			}

			doc, err := app.loadDocument(fileArg(args, 1), df)
			if err != nil {
				return err
			}

			session := engine.NewSession(app.Engine(cfg))
			inv, runErr := session.RunCustom(c.Context(), doc, custom, cfg.Engine())
			if err := app.finishRun(doc, inv, runErr, out); err != nil {
				return err
			}
			if save == "" {
				return nil
			}
			saved, err := session.Promote(save, store)
			if err != nil {
				return err
			}
			fmt.Fprintf(app.ErrOut, "%s saved as %q (%s)\n", SuccessStyle.Render("✓"), saved.Name, saved.ID())
			return nil
		},
	}
	df.register(cmd)
	ovr.register(cmd)
	out.register(cmd)
	cmd.Flags().StringVar(&save, "save", "", "store the prompt as a command with this name after a successful run")
	return cmd
}

// =============================================================================
// COMPOSE
// =============================================================================

// composeOutput is what compose prints: the exact request body plus whether
// the templates fell back.
type composeOutput struct {
	Command  string                 `json:"command"`
	Request  prompt.ComposedRequest `json:"request"`
	Fallback bool                   `json:"template_fallback"`
}

func newComposeCmd(app *App) *cobra.Command {
	var (
		df  docFlags
		ovr overrideFlags
	)
	cmd := &cobra.Command{
		Use:   "compose <command> [file]",
		Short: "Show the generation request a command would send, without sending it",
		Args:  usageArgs(cobra.RangeArgs(1, 2)),
		RunE: func(c *cobra.Command, args []string) error {
			store, err := app.Store()
			if err != nil {
				return err
			}
			cfg := store.Snapshot()

			command, idx := cfg.FindCommand(args[0])
			if idx < 0 {
				return &NotFoundError{Resource: "command", ID: args[0], Err: config.ErrCommandNotFound}
			}
			if command, err = ovr.apply(c, command); err != nil {
				return err
			}
			doc, err := app.loadDocument(fileArg(args, 1), df)
			if err != nil {
				return err
			}

			req, res := engine.Compose(doc, command, cfg.Engine())
			if res.Fallback {
				fmt.Fprintln(app.ErrOut, WarningStyle.Render(engine.FallbackWarning))
			}
			return writeJSON(app.Out, composeOutput{
				Command:  command.ID(),
				Request:  req,
				Fallback: res.Fallback,
			})
		},
	}
	df.register(cmd)
	ovr.register(cmd)
	return cmd
}

// =============================================================================
// HELPERS
// =============================================================================

func fileArg(args []string, i int) string {
	if len(args) > i {
		return args[i]
	}
	return ""
}

// finishRun prints or saves a finished invocation. Engine failures were
// already shown by the notifier.
func (a *App) finishRun(doc *document, inv *engine.Invocation, err error, out outputFlags) error {
	if inv == nil {
		return err
	}
	if err != nil {
		return reported(err)
	}

	if out.write {
		if err := doc.save(); err != nil {
			return err
		}
	}

	if a.jsonOut {
		res := runResult{
			ID:         inv.ID,
			Command:    inv.Command.Name,
			Model:      inv.Request.Model,
			Status:     inv.Status(),
			Text:       inv.Text,
			Fallback:   inv.Fallback,
			DurationMS: inv.Duration.Milliseconds(),
		}
		if out.document {
			res.Document = doc.Value()
		}
		if inv.Stats != nil {
			res.Tokens = inv.Stats.CompletionTokens
			res.TokensPerS = inv.Stats.TokensPerSecond
		}
		return writeJSON(a.Out, res)
	}

	switch {
	case out.document:
		fmt.Fprint(a.Out, doc.Value())
	case out.write:
		fmt.Fprintf(a.ErrOut, "%s wrote %s (%s)\n", SuccessStyle.Render("✓"), doc.path, inv.Duration.Round(time.Millisecond))
	default:
		a.printText(inv.Text, out.raw)
	}
	if inv.Stats != nil && a.verbose {
		fmt.Fprintln(a.ErrOut, DimStyle.Render(inv.Stats.Format()))
	}
	return nil
}

// printText writes generated text, rendered as markdown on a terminal.
func (a *App) printText(text string, raw bool) {
	if !raw && isTerminalWriter(a.Out) && ColorsEnabled() {
		fmt.Fprint(a.Out, renderMarkdown(text))
		return
	}
	fmt.Fprintln(a.Out, text)
}
