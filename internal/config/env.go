// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

// envOverrides maps environment variables to setting keys.
var envOverrides = []struct {
	env string
	key string
}{
	{"INKWELL_SERVER_URL", "server_url"},
	{"INKWELL_DEFAULT_MODEL", "default_model"},
	{"INKWELL_PROMPT_TEMPLATE", "prompt_template"},
	{"INKWELL_MODEL_TEMPLATE", "model_template"},
	{"INKWELL_LISTEN", "server.listen"},
}

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - INKWELL_SERVER_URL: overrides server_url
//   - INKWELL_DEFAULT_MODEL: overrides default_model
//   - INKWELL_PROMPT_TEMPLATE: overrides prompt_template
//   - INKWELL_MODEL_TEMPLATE: overrides model_template
//   - INKWELL_LISTEN: overrides server.listen
func (c *Config) ApplyEnvOverrides() {
	for _, o := range envOverrides {
		if v, ok := os.LookupEnv(o.env); ok && v != "" {
			// every override targets a string field
			_ = c.Set(o.key, v)
		}
	}
}

// LoadDotEnv loads KEY=value pairs from path into the process environment
// without overriding variables that are already set. A missing file is
// not an error.
func LoadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("load %s: %w", path, err)
}
