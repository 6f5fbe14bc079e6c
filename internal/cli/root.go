// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"sync"

	"github.com/spf13/cobra"

	"github.com/jeranaias/inkwell/internal/config"
	"github.com/jeranaias/inkwell/internal/engine"
	"github.com/jeranaias/inkwell/internal/ollama"
	"github.com/jeranaias/inkwell/internal/storage"
)

// Version information (overridden at build time with -ldflags).
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// =============================================================================
// APP
// =============================================================================

// App carries the state shared by every command: streams, flags and the
// lazily opened config store and history.
type App struct {
	In     io.Reader
	Out    io.Writer
	ErrOut io.Writer

	configPath string
	verbose    bool
	jsonOut    bool

	logger *slog.Logger

	storeOnce sync.Once
	store     *config.Store
	storeErr  error

	histOnce sync.Once
	history  *storage.History
}

// NewApp creates an App bound to the process streams.
func NewApp() *App {
	return &App{In: os.Stdin, Out: os.Stdout, ErrOut: os.Stderr}
}

// Logger returns the structured logger configured by the global flags.
func (a *App) Logger() *slog.Logger {
	if a.logger == nil {
		a.setupLogger(slog.LevelWarn)
	}
	return a.logger
}

func (a *App) setupLogger(level slog.Level) {
	if a.verbose {
		level = slog.LevelDebug
	}
	a.logger = slog.New(slog.NewTextHandler(a.ErrOut, &slog.HandlerOptions{Level: level}))
}

// ConfigPath resolves the config file location.
func (a *App) ConfigPath() (string, error) {
	if a.configPath != "" {
		return a.configPath, nil
	}
	return config.DefaultPath()
}

// Store opens the config store on first use.
func (a *App) Store() (*config.Store, error) {
	a.storeOnce.Do(func() {
		path, err := a.ConfigPath()
		if err != nil {
			a.storeErr = err
			return
		}
		a.store, a.storeErr = config.Open(path)
	})
	return a.store, a.storeErr
}

// History opens invocation history when it is enabled. Failure to open it
// is logged and history is skipped; it never blocks an invocation.
func (a *App) History(cfg *config.Config) *storage.History {
	a.histOnce.Do(func() {
		if !cfg.History.Enabled {
			return
		}
		path, err := cfg.HistoryPath()
		if err != nil {
			a.Logger().Warn("history disabled", "error", err)
			return
		}
		h, err := storage.Open(path)
		if err != nil {
			a.Logger().Warn("history disabled", "path", path, "error", err)
			return
		}
		a.history = h
	})
	return a.history
}

// Client builds an Ollama client from cfg.
func (a *App) Client(cfg *config.Config) *ollama.Client {
	return ollama.NewClientWithConfig(&ollama.ClientConfig{
		BaseURL: cfg.ServerURL,
		Timeout: cfg.RequestTimeout,
	})
}

// Engine builds an engine that reports to the terminal.
func (a *App) Engine(cfg *config.Config) *engine.Engine {
	opts := []engine.Option{
		engine.WithLogger(a.Logger()),
		engine.WithNotifier(termNotifier{w: a.ErrOut}),
	}
	if h := a.History(cfg); h != nil {
		opts = append(opts, engine.WithRecorder(h))
	}
	return engine.New(a.Client(cfg), opts...)
}

// Close releases the history database.
func (a *App) Close() {
	if a.history != nil {
		a.history.Close()
	}
}

// =============================================================================
// ROOT COMMAND
// =============================================================================

// NewRootCmd builds the full command tree around app.
func NewRootCmd(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:   "inkwell",
		Short: "Rewrite, summarize and expand text with a local Ollama model",
		Long: `inkwell runs prompt commands against a document using a local Ollama server.

The selected text (or the whole document) is wrapped in your prompt template,
sent to the model, and the answer is inserted at the cursor.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadDotEnv(".env"); err != nil {
				return err
			}
			level := slog.LevelWarn
			if cmd.Name() == "serve" {
				level = slog.LevelInfo
			}
			app.setupLogger(level)
			return nil
		},
	}
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &UsageError{Reason: err.Error(), Example: cmd.UseLine()}
	})
	root.SetIn(app.In)
	root.SetOut(app.Out)
	root.SetErr(app.ErrOut)

	flags := root.PersistentFlags()
	flags.StringVar(&app.configPath, "config", "", "config file (default ~/.inkwell/config.toml)")
	flags.BoolVarP(&app.verbose, "verbose", "v", false, "debug logging on stderr")
	flags.BoolVar(&app.jsonOut, "json", false, "machine-readable output")

	root.AddCommand(
		newRunCmd(app),
		newPromptCmd(app),
		newComposeCmd(app),
		newShellCmd(app),
		newCommandsCmd(app),
		newModelsCmd(app),
		newConfigCmd(app),
		newHistoryCmd(app),
		newServeCmd(app),
		newVersionCmd(app),
	)
	return root
}

// Execute runs the CLI with os.Args and returns the process exit code.
func Execute(ctx context.Context) int {
	app := NewApp()
	defer app.Close()
	return app.Run(ctx, os.Args[1:])
}

// Run executes args against a fresh command tree and returns the exit code.
func (a *App) Run(ctx context.Context, args []string) int {
	root := NewRootCmd(a)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	return HandleError(a.ErrOut, err, a.jsonOut)
}

// usageArgs turns a positional-argument failure into a UsageError.
func usageArgs(v cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := v(cmd, args); err != nil {
			return &UsageError{Reason: err.Error(), Example: cmd.UseLine()}
		}
		return nil
	}
}

// =============================================================================
// VERSION
// =============================================================================

func newVersionCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			info := map[string]string{
				"version":    Version,
				"commit":     GitCommit,
				"build_date": BuildDate,
				"go":         runtime.Version(),
				"platform":   runtime.GOOS + "/" + runtime.GOARCH,
			}
			if app.jsonOut {
				return writeJSON(app.Out, info)
			}
			fmt.Fprintf(app.Out, "inkwell %s (commit %s, built %s, %s %s)\n",
				Version, GitCommit, BuildDate, info["go"], info["platform"])
			return nil
		},
	}
}

// =============================================================================
// TERMINAL NOTIFIER
// =============================================================================

// termNotifier prints engine notifications on stderr.
type termNotifier struct {
	w io.Writer
}

func (n termNotifier) Warn(msg string) {
	fmt.Fprintln(n.w, WarningStyle.Render(msg))
}

func (n termNotifier) Error(msg string) {
	fmt.Fprintln(n.w, ErrorStyle.Render(msg))
}
