// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// shell.go - Interactive shell around a working document.

package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/jeranaias/inkwell/internal/config"
	"github.com/jeranaias/inkwell/internal/engine"
	"github.com/jeranaias/inkwell/internal/marker"
	"github.com/jeranaias/inkwell/internal/util"
)

const shellHistoryFile = "shell_history"

// =============================================================================
// LINE INPUT
// =============================================================================

// lineReader reads one line of input per call.
type lineReader interface {
	ReadLine(prompt string) (string, error)
	Close()
}

// linerInput provides history and line editing on a terminal.
type linerInput struct {
	line        *liner.State
	historyFile string
}

func newLinerInput() *linerInput {
	l := &linerInput{line: liner.NewLiner()}
	l.line.SetCtrlCAborts(true)
	if dir, err := config.ConfigDir(); err == nil {
		l.historyFile = filepath.Join(dir, shellHistoryFile)
		if f, err := os.Open(l.historyFile); err == nil {
			l.line.ReadHistory(f)
			f.Close()
		}
	}
	return l
}

func (l *linerInput) ReadLine(prompt string) (string, error) {
	input, err := l.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		l.line.AppendHistory(input)
	}
	return input, nil
}

func (l *linerInput) SetCompleter(f func(string) []string) {
	l.line.SetCompleter(f)
}

// Close saves history (owner-only) and restores the terminal.
func (l *linerInput) Close() {
	if l.historyFile != "" {
		if err := os.MkdirAll(filepath.Dir(l.historyFile), 0o700); err == nil {
			if f, err := os.OpenFile(l.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600); err == nil {
				l.line.WriteHistory(f)
				f.Close()
			}
		}
	}
	l.line.Close()
}

// scannerInput reads piped input without prompting.
type scannerInput struct {
	scanner *bufio.Scanner
}

func (s *scannerInput) ReadLine(string) (string, error) {
	if !s.scanner.Scan() {
		if err := s.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return s.scanner.Text(), nil
}

func (s *scannerInput) Close() {}

// =============================================================================
// SHELL
// =============================================================================

// shell holds the state of one interactive session: a working document and
// the custom-prompt slot.
type shell struct {
	app         *App
	store       *config.Store
	session     *engine.Session
	doc         *marker.Buffer
	registry    *slashRegistry
	interactive bool
}

func newShellCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "shell [file]",
		Short: "Edit a document interactively with prompt commands",
		Long: `Start an interactive shell around a working document.

Lines you type are appended to the document. Lines starting with / are
commands; /help lists them. The document starts empty or with [file].`,
		Args: usageArgs(cobra.MaximumNArgs(1)),
		RunE: func(c *cobra.Command, args []string) error {
			store, err := app.Store()
			if err != nil {
				return err
			}
			sh := &shell{
				app:         app,
				store:       store,
				session:     engine.NewSession(app.Engine(store.Snapshot())),
				doc:         marker.NewBuffer(""),
				interactive: isTerminalReader(app.In),
			}
			sh.registry = newSlashRegistry(sh.builtins()...)
			if len(args) == 1 {
				if err := sh.open(args[0]); err != nil {
					return err
				}
			}
			return sh.loop(c.Context())
		},
	}
}

func (sh *shell) loop(ctx context.Context) error {
	var in lineReader
	if sh.interactive {
		li := newLinerInput()
		li.SetCompleter(sh.registry.complete)
		in = li
		fmt.Fprintln(sh.app.Out, TitleStyle.Render("inkwell shell")+" "+DimStyle.Render("type /help for commands, /quit to leave"))
	} else {
		in = &scannerInput{scanner: bufio.NewScanner(sh.app.In)}
	}
	defer in.Close()

	for {
		line, err := in.ReadLine(PromptStyle.Render("inkwell> "))
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
				return nil
			}
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
		if !isSlash(line) {
			sh.doc.Append(line + "\n")
			continue
		}
		if err := sh.dispatch(ctx, line); err != nil {
			var q quitSignal
			if errors.As(err, &q) {
				return nil
			}
			var rep *reportedError
			if !errors.As(err, &rep) {
				fmt.Fprintf(sh.app.ErrOut, "%s %v\n", ErrorStyle.Render("Error:"), err)
			}
		}
	}
}

func (sh *shell) dispatch(ctx context.Context, line string) error {
	in := parseSlash(line)
	cmd := sh.registry.get(in.Name)
	if cmd == nil {
		return fmt.Errorf("unknown command %s (try /help)", in.Name)
	}
	if len(in.Args) < cmd.MinArgs {
		return &UsageError{Reason: "missing argument", Example: cmd.Usage}
	}
	return cmd.Handler(ctx, sh, in)
}

// invokeContext cancels the generation on Ctrl+C without leaving the shell.
func (sh *shell) invokeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if !sh.interactive {
		return context.WithCancel(ctx)
	}
	return signal.NotifyContext(ctx, os.Interrupt)
}

func (sh *shell) report(inv *engine.Invocation, err error) error {
	if inv == nil {
		return err
	}
	if err != nil {
		return reported(err)
	}
	fmt.Fprintf(sh.app.ErrOut, "%s %s\n", SuccessStyle.Render("✓"),
		DimStyle.Render(fmt.Sprintf("%s inserted %d characters", inv.Request.Model, len([]rune(inv.Text)))))
	return nil
}

func (sh *shell) open(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	sh.doc.Reset(string(data))
	return nil
}

// =============================================================================
// BUILT-IN SLASH COMMANDS
// =============================================================================

func (sh *shell) builtins() []*slashCommand {
	return []*slashCommand{
		{
			Name:        "/run",
			Aliases:     []string{"/r"},
			Usage:       "/run <command>",
			Description: "Run a stored command on the selection or the whole document",
			MinArgs:     1,
			Handler: func(ctx context.Context, sh *shell, in slashInput) error {
				cfg := sh.store.Snapshot()
				cmd, idx := cfg.FindCommand(in.RawArgs)
				if idx < 0 {
					return &NotFoundError{Resource: "command", ID: in.RawArgs, Err: config.ErrCommandNotFound}
				}
				ctx, cancel := sh.invokeContext(ctx)
				defer cancel()
				return sh.report(sh.session.Run(ctx, sh.doc, cmd, cfg.Engine()))
			},
		},
		{
			Name:        "/custom",
			Aliases:     []string{"/c"},
			Usage:       "/custom <prompt>",
			Description: "Run a one-off prompt (save it afterwards with /save)",
			MinArgs:     1,
			Handler: func(ctx context.Context, sh *shell, in slashInput) error {
				cfg := sh.store.Snapshot()
				ctx, cancel := sh.invokeContext(ctx)
				defer cancel()
				return sh.report(sh.session.RunCustom(ctx, sh.doc, engine.CustomCommand(in.RawArgs), cfg.Engine()))
			},
		},
		{
			Name:        "/save",
			Usage:       "/save <name>",
			Description: "Store the last custom prompt as a command",
			MinArgs:     1,
			Handler: func(ctx context.Context, sh *shell, in slashInput) error {
				cmd, err := sh.session.Promote(in.RawArgs, sh.store)
				if err != nil {
					return err
				}
				fmt.Fprintf(sh.app.Out, "%s saved %q (%s)\n", SuccessStyle.Render("✓"), cmd.Name, cmd.ID())
				return nil
			},
		},
		{
			Name:        "/select",
			Usage:       "/select <L:C-L:C>",
			Description: "Select a range; the answer goes after it",
			MinArgs:     1,
			Handler: func(ctx context.Context, sh *shell, in slashInput) error {
				from, to, err := parseRange(in.RawArgs)
				if err != nil {
					return err
				}
				return sh.doc.Select(from, to)
			},
		},
		{
			Name:        "/cursor",
			Usage:       "/cursor <L:C>",
			Description: "Move the insertion point, keeping the selection",
			MinArgs:     1,
			Handler: func(ctx context.Context, sh *shell, in slashInput) error {
				pos, err := marker.ParsePosition(in.RawArgs)
				if err != nil {
					return &UsageError{Reason: err.Error(), Example: "/cursor 2:0"}
				}
				return sh.doc.PlaceCursor(pos)
			},
		},
		{
			Name:        "/show",
			Aliases:     []string{"/p"},
			Description: "Print the document",
			Handler: func(ctx context.Context, sh *shell, in slashInput) error {
				fmt.Fprintln(sh.app.Out, RenderSeparator())
				fmt.Fprint(sh.app.Out, sh.doc.Value())
				if v := sh.doc.Value(); v != "" && !strings.HasSuffix(v, "\n") {
					fmt.Fprintln(sh.app.Out)
				}
				fmt.Fprintln(sh.app.Out, RenderSeparator())
				if sel := sh.doc.Selection(); sel != "" {
					fmt.Fprintln(sh.app.Out, RenderLabel("Selection")+util.Preview(sel, 60))
				}
				fmt.Fprintln(sh.app.Out, RenderLabel("Cursor")+sh.doc.Cursor().String())
				return nil
			},
		},
		{
			Name:        "/open",
			Usage:       "/open <file>",
			Description: "Replace the document with a file's contents",
			MinArgs:     1,
			Handler: func(ctx context.Context, sh *shell, in slashInput) error {
				return sh.open(in.RawArgs)
			},
		},
		{
			Name:        "/write",
			Aliases:     []string{"/w"},
			Usage:       "/write <file>",
			Description: "Write the document to a file",
			MinArgs:     1,
			Handler: func(ctx context.Context, sh *shell, in slashInput) error {
				if err := util.AtomicWriteFile(in.RawArgs, []byte(sh.doc.Value()), 0o644); err != nil {
					return err
				}
				fmt.Fprintf(sh.app.Out, "%s wrote %s\n", SuccessStyle.Render("✓"), in.RawArgs)
				return nil
			},
		},
		{
			Name:        "/clear",
			Description: "Empty the document",
			Handler: func(ctx context.Context, sh *shell, in slashInput) error {
				sh.doc.Reset("")
				return nil
			},
		},
		{
			Name:        "/commands",
			Description: "List stored commands",
			Handler: func(ctx context.Context, sh *shell, in slashInput) error {
				cfg := sh.store.Snapshot()
				printCommandTable(sh.app.Out, cfg.Commands, cfg.DefaultModel)
				return nil
			},
		},
		{
			Name:        "/models",
			Description: "List installed models",
			Handler: func(ctx context.Context, sh *shell, in slashInput) error {
				cfg := sh.store.Snapshot()
				names, err := sh.app.Client(cfg).ModelNames(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintln(sh.app.Out, "Default "+DimStyle.Render("→ "+cfg.DefaultModel))
				for _, n := range names {
					fmt.Fprintln(sh.app.Out, n)
				}
				return nil
			},
		},
		{
			Name:        "/help",
			Aliases:     []string{"/h", "/?"},
			Description: "Show this help",
			Handler: func(ctx context.Context, sh *shell, in slashInput) error {
				for _, c := range sh.registry.all() {
					usage := c.Usage
					if usage == "" {
						usage = c.Name
					}
					fmt.Fprintf(sh.app.Out, "%s %s\n", util.PadRight(usage, 22), DimStyle.Render(c.Description))
				}
				return nil
			},
		},
		{
			Name:        "/quit",
			Aliases:     []string{"/q", "/exit"},
			Description: "Leave the shell",
			Handler: func(ctx context.Context, sh *shell, in slashInput) error {
				return quitSignal{}
			},
		},
	}
}
