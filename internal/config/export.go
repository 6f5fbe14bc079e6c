// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/jeranaias/inkwell/internal/prompt"
)

// commandFile is the YAML layout for exported commands.
type commandFile struct {
	Commands []prompt.Command `yaml:"commands"`
}

// ExportCommands writes cmds as YAML.
func ExportCommands(w io.Writer, cmds []prompt.Command) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(commandFile{Commands: cmds}); err != nil {
		return fmt.Errorf("encode commands: %w", err)
	}
	return enc.Close()
}

// ImportCommands reads commands written by ExportCommands. Every command
// is validated and names must be unique within the file.
func ImportCommands(r io.Reader) ([]prompt.Command, error) {
	var file commandFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("decode commands: %w", err)
	}

	staged := &Config{}
	for _, cmd := range file.Commands {
		if err := staged.AddCommand(cmd); err != nil {
			return nil, fmt.Errorf("command %q: %w", cmd.Name, err)
		}
	}
	return staged.Commands, nil
}

// MergeCommands adds each imported command, replacing stored commands that
// share its name.
func (c *Config) MergeCommands(cmds []prompt.Command) error {
	for _, cmd := range cmds {
		if i := c.indexOfName(cmd.Name); i >= 0 {
			if err := c.UpdateCommand(i, cmd); err != nil {
				return err
			}
			continue
		}
		if err := c.AddCommand(cmd); err != nil {
			return err
		}
	}
	return nil
}
