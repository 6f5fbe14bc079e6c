// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// commands_cmd.go - Manage the stored prompt commands.

package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/jeranaias/inkwell/internal/config"
	"github.com/jeranaias/inkwell/internal/prompt"
	"github.com/jeranaias/inkwell/internal/util"
)

func newCommandsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "commands",
		Aliases: []string{"cmd", "command"},
		Short:   "List and edit stored prompt commands",
	}
	cmd.AddCommand(
		newCommandsListCmd(app),
		newCommandsAddCmd(app),
		newCommandsUpdateCmd(app),
		newCommandsRemoveCmd(app),
		newCommandsUpdateDefaultsCmd(app),
		newCommandsResetCmd(app),
		newCommandsExportCmd(app),
		newCommandsImportCmd(app),
	)
	return cmd
}

// commandRow is the JSON form of a listed command.
type commandRow struct {
	ID string `json:"id"`
	prompt.Command
}

func newCommandsListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List stored commands",
		Args:    usageArgs(cobra.NoArgs),
		RunE: func(c *cobra.Command, args []string) error {
			store, err := app.Store()
			if err != nil {
				return err
			}
			cfg := store.Snapshot()

			if app.jsonOut {
				rows := make([]commandRow, 0, len(cfg.Commands))
				for _, cmd := range cfg.Commands {
					rows = append(rows, commandRow{ID: cmd.ID(), Command: cmd})
				}
				return writeJSON(app.Out, rows)
			}
			if len(cfg.Commands) == 0 {
				fmt.Fprintln(app.Out, DimStyle.Render("No commands. Restore the defaults with 'inkwell commands reset'."))
				return nil
			}
			printCommandTable(app.Out, cfg.Commands, cfg.DefaultModel)
			return nil
		},
	}
}

// printCommandTable prints commands in aligned columns. Widths are measured
// in terminal cells so wide names line up.
func printCommandTable(w io.Writer, cmds []prompt.Command, defaultModel string) {
	nameW, idW := len("NAME"), len("ID")
	for _, cmd := range cmds {
		nameW = max(nameW, runewidth.StringWidth(cmd.Name))
		idW = max(idW, runewidth.StringWidth(cmd.ID()))
	}
	promptW := max(GetTerminalWidth()-nameW-idW-24, 20)

	header := fmt.Sprintf("%s  %s  %-12s  %-5s  %s",
		util.PadRight("NAME", nameW), util.PadRight("ID", idW), "MODEL", "TEMP", "PROMPT")
	fmt.Fprintln(w, HeaderStyle.Render(header))
	for _, cmd := range cmds {
		model := prompt.NormalizeModel(cmd.Model)
		if model == "" {
			model = DimStyle.Render(util.PadRight(defaultModel, 12))
		} else {
			model = util.PadRight(runewidth.Truncate(model, 12, "…"), 12)
		}
		temp := fmt.Sprintf("%.2f", prompt.DefaultTemperature)
		if cmd.Temperature != nil {
			temp = fmt.Sprintf("%.2f", *cmd.Temperature)
		}
		fmt.Fprintf(w, "%s  %s  %s  %-5s  %s\n",
			util.PadRight(cmd.Name, nameW),
			DimStyle.Render(util.PadRight(cmd.ID(), idW)),
			model, temp,
			util.Preview(cmd.Prompt, promptW))
	}
}

// commandFlags hold the editable fields of a command.
type commandFlags struct {
	prompt         string
	model          string
	temperature    float64
	ignoreTemplate bool
}

func (f *commandFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.prompt, "prompt", "p", "", "prompt text")
	cmd.Flags().StringVarP(&f.model, "model", "m", "", "model name (\"Default\" uses the configured default)")
	cmd.Flags().Float64VarP(&f.temperature, "temperature", "t", prompt.DefaultTemperature, "temperature (0 to 1)")
	cmd.Flags().BoolVar(&f.ignoreTemplate, "ignore-template", false, "send the prompt without the prompt template")
}

// apply copies the flags the user set onto cmd.
func (f *commandFlags) apply(c *cobra.Command, cmd prompt.Command) prompt.Command {
	flags := c.Flags()
	if flags.Changed("prompt") {
		cmd.Prompt = f.prompt
	}
	if flags.Changed("model") {
		cmd.Model = f.model
	}
	if flags.Changed("temperature") {
		cmd.Temperature = prompt.Temp(f.temperature)
	}
	if flags.Changed("ignore-template") {
		cmd.IgnorePromptTemplate = f.ignoreTemplate
	}
	return cmd
}

func newCommandsAddCmd(app *App) *cobra.Command {
	var f commandFlags
	cmd := &cobra.Command{
		Use:     "add <name>",
		Short:   "Add a command",
		Example: `  inkwell commands add "Make formal" --prompt "Rewrite the text in a formal tone." --temperature 0.3`,
		Args:    usageArgs(cobra.ExactArgs(1)),
		RunE: func(c *cobra.Command, args []string) error {
			store, err := app.Store()
			if err != nil {
				return err
			}
			added := f.apply(c, prompt.Command{Name: args[0]})
			if err := store.Update(func(cfg *config.Config) error {
				return cfg.AddCommand(added)
			}); err != nil {
				return err
			}
			fmt.Fprintf(app.Out, "%s added %q (%s)\n", SuccessStyle.Render("✓"), strings.TrimSpace(added.Name), added.ID())
			return nil
		},
	}
	f.register(cmd)
	return cmd
}

func newCommandsUpdateCmd(app *App) *cobra.Command {
	var (
		f      commandFlags
		rename string
	)
	cmd := &cobra.Command{
		Use:   "update <name|id>",
		Short: "Change a command",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(c *cobra.Command, args []string) error {
			store, err := app.Store()
			if err != nil {
				return err
			}
			var updated prompt.Command
			err = store.Update(func(cfg *config.Config) error {
				cur, idx := cfg.FindCommand(args[0])
				if idx < 0 {
					return &NotFoundError{Resource: "command", ID: args[0], Err: config.ErrCommandNotFound}
				}
				updated = f.apply(c, cur.Clone())
				if rename != "" {
					updated.Name = rename
				}
				return cfg.UpdateCommand(idx, updated)
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(app.Out, "%s updated %q\n", SuccessStyle.Render("✓"), strings.TrimSpace(updated.Name))
			return nil
		},
	}
	f.register(cmd)
	cmd.Flags().StringVar(&rename, "rename", "", "new command name")
	return cmd
}

func newCommandsRemoveCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <name|id>",
		Aliases: []string{"rm"},
		Short:   "Delete a command",
		Args:    usageArgs(cobra.ExactArgs(1)),
		RunE: func(c *cobra.Command, args []string) error {
			store, err := app.Store()
			if err != nil {
				return err
			}
			if err := store.Update(func(cfg *config.Config) error {
				return cfg.RemoveCommand(args[0])
			}); err != nil {
				if errors.Is(err, config.ErrCommandNotFound) {
					return &NotFoundError{Resource: "command", ID: args[0], Err: err}
				}
				return err
			}
			fmt.Fprintf(app.Out, "%s removed %q\n", SuccessStyle.Render("✓"), args[0])
			return nil
		},
	}
}

func newCommandsUpdateDefaultsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "update-defaults",
		Short: "Refresh the built-in commands, keeping your own",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(c *cobra.Command, args []string) error {
			store, err := app.Store()
			if err != nil {
				return err
			}
			if err := store.Update(func(cfg *config.Config) error {
				cfg.UpdateDefaultCommands()
				return nil
			}); err != nil {
				return err
			}
			fmt.Fprintf(app.Out, "%s default commands updated\n", SuccessStyle.Render("✓"))
			return nil
		},
	}
}

func newCommandsResetCmd(app *App) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Replace every command with the built-in set",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(c *cobra.Command, args []string) error {
			if !yes && !app.confirm("Delete all custom commands and restore the defaults?") {
				fmt.Fprintln(app.Out, DimStyle.Render("Cancelled."))
				return nil
			}
			store, err := app.Store()
			if err != nil {
				return err
			}
			if err := store.Update(func(cfg *config.Config) error {
				cfg.ResetCommands()
				return nil
			}); err != nil {
				return err
			}
			fmt.Fprintf(app.Out, "%s commands reset to defaults\n", SuccessStyle.Render("✓"))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation")
	return cmd
}

func newCommandsExportCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "export [file]",
		Short: "Write commands as YAML to a file or stdout",
		Args:  usageArgs(cobra.MaximumNArgs(1)),
		RunE: func(c *cobra.Command, args []string) error {
			store, err := app.Store()
			if err != nil {
				return err
			}
			cmds := store.Snapshot().Commands

			if len(args) == 0 {
				return config.ExportCommands(app.Out, cmds)
			}
			var b strings.Builder
			if err := config.ExportCommands(&b, cmds); err != nil {
				return err
			}
			if err := util.AtomicWriteFile(args[0], []byte(b.String()), 0o644); err != nil {
				return err
			}
			fmt.Fprintf(app.ErrOut, "%s exported %d commands to %s\n", SuccessStyle.Render("✓"), len(cmds), args[0])
			return nil
		},
	}
}

func newCommandsImportCmd(app *App) *cobra.Command {
	var merge bool
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Load commands from a YAML export",
		Long: `Load commands from a YAML file written by 'inkwell commands export'.

By default the stored commands are replaced. With --merge, imported commands
are added and ones with an existing name overwrite it.`,
		Args: usageArgs(cobra.ExactArgs(1)),
		RunE: func(c *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if errors.Is(err, fs.ErrNotExist) {
				return &NotFoundError{Resource: "file", ID: args[0], Err: err}
			}
			if err != nil {
				return err
			}
			defer f.Close()

			cmds, err := config.ImportCommands(f)
			if err != nil {
				return err
			}
			store, err := app.Store()
			if err != nil {
				return err
			}
			if err := store.Update(func(cfg *config.Config) error {
				if merge {
					return cfg.MergeCommands(cmds)
				}
				cfg.Commands = cmds
				return nil
			}); err != nil {
				return err
			}
			fmt.Fprintf(app.Out, "%s imported %d commands\n", SuccessStyle.Render("✓"), len(cmds))
			return nil
		},
	}
	cmd.Flags().BoolVar(&merge, "merge", false, "merge into the stored commands instead of replacing them")
	return cmd
}

// confirm asks a yes/no question on the app streams. Anything but y/yes
// is a no, and a non-interactive stdin always answers no.
func (a *App) confirm(question string) bool {
	if !isTerminalReader(a.In) {
		return false
	}
	fmt.Fprintf(a.Out, "%s [y/N] ", question)
	line, err := bufio.NewReader(a.In).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}
