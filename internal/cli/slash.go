// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// slash.go - Slash command parsing and registry for the shell.

package cli

import (
	"context"
	"sort"
	"strings"
	"unicode"
)

// =============================================================================
// SLASH COMMAND DEFINITION
// =============================================================================

// slashCommand is one shell command such as "/run".
type slashCommand struct {
	Name        string
	Aliases     []string
	Usage       string
	Description string
	// MinArgs is the number of required arguments.
	MinArgs int
	Handler func(ctx context.Context, sh *shell, in slashInput) error
}

// slashInput is a parsed shell line.
type slashInput struct {
	Name    string   // "/run"
	Args    []string // quote-aware tokens after the name
	RawArgs string   // everything after the name, trimmed
}

// quitSignal ends the shell loop.
type quitSignal struct{}

func (quitSignal) Error() string { return "quit" }

// =============================================================================
// REGISTRY
// =============================================================================

type slashRegistry struct {
	commands map[string]*slashCommand
	aliases  map[string]*slashCommand
}

func newSlashRegistry(cmds ...*slashCommand) *slashRegistry {
	r := &slashRegistry{
		commands: make(map[string]*slashCommand),
		aliases:  make(map[string]*slashCommand),
	}
	for _, c := range cmds {
		r.register(c)
	}
	return r
}

func (r *slashRegistry) register(cmd *slashCommand) {
	r.commands[cmd.Name] = cmd
	for _, alias := range cmd.Aliases {
		r.aliases[alias] = cmd
	}
}

// get finds a command by name or alias.
func (r *slashRegistry) get(name string) *slashCommand {
	if cmd, ok := r.commands[name]; ok {
		return cmd
	}
	return r.aliases[name]
}

// all returns the commands sorted by name.
func (r *slashRegistry) all() []*slashCommand {
	cmds := make([]*slashCommand, 0, len(r.commands))
	for _, cmd := range r.commands {
		cmds = append(cmds, cmd)
	}
	sort.Slice(cmds, func(i, j int) bool { return cmds[i].Name < cmds[j].Name })
	return cmds
}

// complete returns command names starting with prefix.
func (r *slashRegistry) complete(prefix string) []string {
	var out []string
	for _, cmd := range r.all() {
		if strings.HasPrefix(cmd.Name, prefix) {
			out = append(out, cmd.Name)
		}
	}
	return out
}

// =============================================================================
// PARSING
// =============================================================================

// isSlash reports whether a shell line is a command rather than text.
func isSlash(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), "/")
}

// parseSlash splits a command line into name and arguments.
func parseSlash(line string) slashInput {
	line = strings.TrimSpace(line)
	name, rest := line, ""
	if i := strings.IndexFunc(line, unicode.IsSpace); i >= 0 {
		name, rest = line[:i], line[i:]
	}
	return slashInput{
		Name:    strings.ToLower(name),
		Args:    splitCommandLine(rest),
		RawArgs: strings.TrimSpace(rest),
	}
}

// splitCommandLine splits input into tokens, honouring single and double
// quotes. A backslash escapes a quote or backslash inside quotes.
func splitCommandLine(input string) []string {
	var tokens []string
	var current strings.Builder
	var inSingle, inDouble, started bool

	runes := []rune(input)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '\'' && !inDouble:
			inSingle = !inSingle
			started = true
		case r == '"' && !inSingle:
			inDouble = !inDouble
			started = true
		case r == '\\' && i+1 < len(runes) && (inSingle || inDouble):
			next := runes[i+1]
			if next == '"' || next == '\'' || next == '\\' {
				current.WriteRune(next)
				i++
			} else {
				current.WriteRune(r)
			}
		case unicode.IsSpace(r) && !inSingle && !inDouble:
			if started {
				tokens = append(tokens, current.String())
				current.Reset()
				started = false
			}
		default:
			current.WriteRune(r)
			started = true
		}
	}
	if started {
		tokens = append(tokens, current.String())
	}
	return tokens
}
