// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jeranaias/inkwell/internal/prompt"
)

var (
	// ErrDuplicateCommand means a stored command already has the name.
	ErrDuplicateCommand = errors.New("duplicate command name")

	// ErrCommandNotFound means no stored command matches.
	ErrCommandNotFound = errors.New("command not found")
)

// =============================================================================
// DEFAULT COMMANDS
// =============================================================================

// DefaultCommands returns a fresh copy of the built-in commands.
func DefaultCommands() []prompt.Command {
	return []prompt.Command{
		{Name: "Summarize selection", Prompt: "Summarize the text in a few sentences highlighting the key takeaways."},
		{Name: "Explain selection", Prompt: "Explain the text in simple and concise terms keeping the same meaning."},
		{Name: "Expand selection", Prompt: "Expand the text by adding more details while keeping the same meaning."},
		{Name: "Rewrite selection (formal)", Prompt: "Rewrite the text in a more formal style while keeping the same meaning."},
		{Name: "Rewrite selection (casual)", Prompt: "Rewrite the text in a more casual style while keeping the same meaning."},
		{Name: "Rewrite selection (active voice)", Prompt: "Rewrite the text in with an active voice while keeping the same meaning."},
		{Name: "Rewrite selection (bullet points)", Prompt: "Rewrite the text into bullet points while keeping the same meaning."},
		{Name: "Caption selection", Prompt: "Create only one single heading for the whole text that is giving a good understanding of what the reader can expect. Your format should be ## Caption."},
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidateCommand checks a single command in isolation. Name uniqueness is
// checked by the methods that store commands.
func ValidateCommand(cmd prompt.Command) error {
	var errs ValidateErrors
	if strings.TrimSpace(cmd.Name) == "" {
		errs = append(errs, ValidationError{Field: "name", Message: "must not be empty"})
	}
	if strings.TrimSpace(cmd.Prompt) == "" {
		errs = append(errs, ValidationError{Field: "prompt", Message: "must not be empty"})
	}
	if t := cmd.Temperature; t != nil && (*t < 0 || *t > 1) {
		errs = append(errs, ValidationError{Field: "temperature", Message: fmt.Sprintf("%g is outside [0, 1]", *t)})
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// normalizeCommand trims the name and maps the "Default" model sentinel
// to an unset model.
func normalizeCommand(cmd prompt.Command) prompt.Command {
	cmd.Name = strings.TrimSpace(cmd.Name)
	cmd.Model = prompt.NormalizeModel(cmd.Model)
	return cmd
}

func duplicateError(name string) error {
	return ValidationError{
		Field:   "name",
		Message: fmt.Sprintf("a command named %q already exists", name),
		Err:     ErrDuplicateCommand,
	}
}

// =============================================================================
// LOOKUP
// =============================================================================

// FindCommand looks a command up by exact name, then by id.
// It returns the index into Commands, or -1.
func (c *Config) FindCommand(nameOrID string) (prompt.Command, int) {
	for i, cmd := range c.Commands {
		if cmd.Name == nameOrID {
			return cmd, i
		}
	}
	id := prompt.CommandID(nameOrID)
	if id == "" {
		return prompt.Command{}, -1
	}
	for i, cmd := range c.Commands {
		if cmd.ID() == id {
			return cmd, i
		}
	}
	return prompt.Command{}, -1
}

func (c *Config) indexOfName(name string) int {
	for i, cmd := range c.Commands {
		if cmd.Name == name {
			return i
		}
	}
	return -1
}

// =============================================================================
// MUTATIONS
// =============================================================================

// AddCommand validates cmd and appends it. Names must be unique.
func (c *Config) AddCommand(cmd prompt.Command) error {
	cmd = normalizeCommand(cmd)
	if err := ValidateCommand(cmd); err != nil {
		return err
	}
	if c.indexOfName(cmd.Name) >= 0 {
		return duplicateError(cmd.Name)
	}
	c.Commands = append(c.Commands, cmd)
	return nil
}

// UpdateCommand replaces the command at index. Renaming onto another
// command's name is rejected.
func (c *Config) UpdateCommand(index int, cmd prompt.Command) error {
	if index < 0 || index >= len(c.Commands) {
		return fmt.Errorf("%w: index %d", ErrCommandNotFound, index)
	}
	cmd = normalizeCommand(cmd)
	if err := ValidateCommand(cmd); err != nil {
		return err
	}
	if j := c.indexOfName(cmd.Name); j >= 0 && j != index {
		return duplicateError(cmd.Name)
	}
	c.Commands[index] = cmd
	return nil
}

// RemoveCommand deletes the command with the given name.
func (c *Config) RemoveCommand(name string) error {
	_, i := c.FindCommand(name)
	if i < 0 {
		return fmt.Errorf("%w: %q", ErrCommandNotFound, name)
	}
	c.Commands = append(c.Commands[:i], c.Commands[i+1:]...)
	return nil
}

// UpdateDefaultCommands refreshes built-in commands: a stored command
// sharing a default's name gets the default's prompt, model and
// temperature; missing defaults are appended. Other commands are kept.
func (c *Config) UpdateDefaultCommands() {
	for _, def := range DefaultCommands() {
		if i := c.indexOfName(def.Name); i >= 0 {
			c.Commands[i].Prompt = def.Prompt
			c.Commands[i].Model = def.Model
			c.Commands[i].Temperature = def.Temperature
			continue
		}
		c.Commands = append(c.Commands, def)
	}
}

// ResetCommands replaces the command list with the defaults.
func (c *Config) ResetCommands() {
	c.Commands = DefaultCommands()
}
