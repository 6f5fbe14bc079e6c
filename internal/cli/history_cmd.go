// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jeranaias/inkwell/internal/storage"
	"github.com/jeranaias/inkwell/internal/util"
)

var errHistoryDisabled = errors.New("history is disabled (set history.enabled = true)")

func newHistoryCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Browse past invocations",
	}

	// openHistory is shared by the subcommands.
	openHistory := func() (*storage.History, error) {
		store, err := app.Store()
		if err != nil {
			return nil, err
		}
		h := app.History(store.Snapshot())
		if h == nil {
			return nil, errHistoryDisabled
		}
		return h, nil
	}

	var limit int
	list := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List recent invocations, newest first",
		Args:    usageArgs(cobra.NoArgs),
		RunE: func(c *cobra.Command, args []string) error {
			h, err := openHistory()
			if err != nil {
				return err
			}
			items, err := h.List(c.Context(), limit)
			if err != nil {
				return err
			}
			if app.jsonOut {
				return writeJSON(app.Out, items)
			}
			if len(items) == 0 {
				fmt.Fprintln(app.Out, DimStyle.Render("No invocations yet."))
				return nil
			}
			for _, inv := range items {
				fmt.Fprintf(app.Out, "%s  %s  %s  %s  %s\n",
					DimStyle.Render(shortID(inv.ID)),
					util.PadRight(humanize.Time(inv.CreatedAt), 14),
					RenderStatus(inv.Status),
					util.PadRight(inv.Command, 24),
					util.Preview(inv.Output+inv.Error, 50))
			}
			return nil
		},
	}
	list.Flags().IntVarP(&limit, "limit", "n", 20, "number of entries (0 for all)")

	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one invocation (an id prefix of 4+ characters works)",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(c *cobra.Command, args []string) error {
			h, err := openHistory()
			if err != nil {
				return err
			}
			inv, err := h.Get(c.Context(), args[0])
			if errors.Is(err, storage.ErrNotFound) {
				return &NotFoundError{Resource: "invocation", ID: args[0], Err: err}
			}
			if err != nil {
				return err
			}
			if app.jsonOut {
				return writeJSON(app.Out, inv)
			}
			fmt.Fprintln(app.Out, RenderLabel("ID")+inv.ID)
			fmt.Fprintln(app.Out, RenderLabel("When")+inv.CreatedAt.Local().Format("2006-01-02 15:04:05"))
			fmt.Fprintln(app.Out, RenderLabel("Command")+inv.Command)
			fmt.Fprintln(app.Out, RenderLabel("Model")+inv.Model)
			fmt.Fprintf(app.Out, "%s%.2f\n", RenderLabel("Temperature"), inv.Temperature)
			fmt.Fprintln(app.Out, RenderLabel("Status")+RenderStatus(inv.Status))
			fmt.Fprintln(app.Out, RenderLabel("Duration")+inv.Duration().String())
			fmt.Fprintln(app.Out, RenderSeparator())
			fmt.Fprintln(app.Out, HeaderStyle.Render("Prompt"))
			fmt.Fprintln(app.Out, inv.Prompt)
			if inv.Template != "" {
				fmt.Fprintln(app.Out, HeaderStyle.Render("Template"))
				fmt.Fprintln(app.Out, inv.Template)
			}
			fmt.Fprintln(app.Out, RenderSeparator())
			if inv.Error != "" {
				fmt.Fprintln(app.Out, ErrorStyle.Render(inv.Error))
				return nil
			}
			app.printText(inv.Output, false)
			return nil
		},
	}

	var keep int
	prune := &cobra.Command{
		Use:   "prune",
		Short: "Delete all but the newest invocations",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(c *cobra.Command, args []string) error {
			if keep < 0 {
				return &UsageError{Reason: "--keep must be 0 or more"}
			}
			h, err := openHistory()
			if err != nil {
				return err
			}
			n, err := h.Prune(c.Context(), keep)
			if err != nil {
				return err
			}
			fmt.Fprintf(app.Out, "%s removed %d invocations\n", SuccessStyle.Render("✓"), n)
			return nil
		},
	}
	prune.Flags().IntVar(&keep, "keep", 100, "number of newest entries to keep")

	cmd.AddCommand(list, show, prune)
	return cmd
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
