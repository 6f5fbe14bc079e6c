// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jeranaias/inkwell/internal/config"
)

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show and change settings",
		Long: `Show and change settings stored in the config file.

Keys use dotted names, for example server_url, default_model,
prompt_template, request_timeout or server.listen. Environment variables
(INKWELL_SERVER_URL, INKWELL_MODEL, ...) override the file at load time.`,
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the effective configuration",
			Args:  usageArgs(cobra.NoArgs),
			RunE: func(c *cobra.Command, args []string) error {
				store, err := app.Store()
				if err != nil {
					return err
				}
				cfg := store.Snapshot()
				if app.jsonOut {
					return writeJSON(app.Out, cfg)
				}
				data, err := cfg.MarshalTOML()
				if err != nil {
					return err
				}
				_, err = app.Out.Write(data)
				return err
			},
		},
		&cobra.Command{
			Use:   "path",
			Short: "Print the config file location",
			Args:  usageArgs(cobra.NoArgs),
			RunE: func(c *cobra.Command, args []string) error {
				path, err := app.ConfigPath()
				if err != nil {
					return err
				}
				fmt.Fprintln(app.Out, path)
				return nil
			},
		},
		&cobra.Command{
			Use:   "get <key>",
			Short: "Print one setting",
			Args:  usageArgs(cobra.ExactArgs(1)),
			ValidArgsFunction: func(c *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
				return config.Keys(), cobra.ShellCompDirectiveNoFileComp
			},
			RunE: func(c *cobra.Command, args []string) error {
				store, err := app.Store()
				if err != nil {
					return err
				}
				v, err := store.Snapshot().Get(args[0])
				if err != nil {
					return &UsageError{Reason: err.Error(), Example: "inkwell config get default_model"}
				}
				if app.jsonOut {
					return writeJSON(app.Out, map[string]any{args[0]: v})
				}
				fmt.Fprintln(app.Out, v)
				return nil
			},
		},
		&cobra.Command{
			Use:     "set <key> <value>",
			Short:   "Change one setting",
			Example: "  inkwell config set default_model mistral\n  inkwell config set request_timeout 90s",
			Args:    usageArgs(cobra.ExactArgs(2)),
			RunE: func(c *cobra.Command, args []string) error {
				store, err := app.Store()
				if err != nil {
					return err
				}
				if err := store.Update(func(cfg *config.Config) error {
					return cfg.Set(args[0], args[1])
				}); err != nil {
					return err
				}
				fmt.Fprintf(app.Out, "%s %s = %s\n", SuccessStyle.Render("✓"), args[0], args[1])
				return nil
			},
		},
	)
	return cmd
}
