// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jeranaias/inkwell/internal/config"
	"github.com/jeranaias/inkwell/internal/server"
)

func newServeCmd(app *App) *cobra.Command {
	var (
		listen string
		watch  bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the engine over HTTP for editor integrations",
		Long: `Serve the engine over HTTP.

Endpoints:
  GET  /health               server and Ollama status
  GET  /metrics              Prometheus metrics
  GET  /api/commands         stored commands
  GET  /api/models           installed models
  POST /api/compose          build a request without sending it
  POST /api/invoke           run a command against a document
  GET  /api/history[/{id}]   past invocations

The config file is watched and reloaded on change unless --watch=false.`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(c *cobra.Command, args []string) error {
			store, err := app.Store()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(c.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger := app.Logger()
			if watch {
				if _, err := config.Watch(ctx, store, config.DefaultDebounce, logger); err != nil {
					logger.Warn("config watch disabled", "error", err)
				}
			}

			opts := []server.Option{
				server.WithLogger(logger),
				server.WithVersion(Version),
			}
			if listen != "" {
				opts = append(opts, server.WithAddr(listen))
			}
			if h := app.History(store.Snapshot()); h != nil {
				opts = append(opts, server.WithHistory(h))
			}

			return server.New(store, opts...).ListenAndServe(ctx)
		},
	}
	cmd.Flags().StringVarP(&listen, "listen", "l", "", "listen address (default from server.listen)")
	cmd.Flags().BoolVar(&watch, "watch", true, "reload the config file when it changes")
	return cmd
}
