// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/inkwell/internal/prompt"
	"github.com/jeranaias/inkwell/internal/util"
)

// =============================================================================
// CONFIG STRUCTURE
// =============================================================================

// Config is the persisted inkwell configuration: the engine settings plus
// the stored command list.
type Config struct {
	// ServerURL is the Ollama base URL.
	ServerURL string `toml:"server_url" json:"server_url"`

	// DefaultModel is used by commands without their own model.
	DefaultModel string `toml:"default_model" json:"default_model"`

	// PromptTemplate wraps every command prompt; "{prompt}" marks where.
	PromptTemplate string `toml:"prompt_template" json:"prompt_template"`

	// ModelTemplate is sent as the request template; "{text}" marks where
	// the source text goes. Empty uses the model's own template.
	ModelTemplate string `toml:"model_template" json:"model_template"`

	// RequestTimeout bounds each generation request. Zero disables it.
	RequestTimeout time.Duration `toml:"request_timeout" json:"request_timeout"`

	Server  ServerConfig  `toml:"server" json:"server"`
	History HistoryConfig `toml:"history" json:"history"`

	Commands []prompt.Command `toml:"commands" json:"commands"`
}

// ServerConfig configures `inkwell serve`.
type ServerConfig struct {
	Listen    string  `toml:"listen" json:"listen"`
	RateLimit float64 `toml:"rate_limit" json:"rate_limit"` // requests per second, 0 = unlimited
	Burst     int     `toml:"burst" json:"burst"`
}

// HistoryConfig configures the invocation history database.
type HistoryConfig struct {
	Enabled bool   `toml:"enabled" json:"enabled"`
	Path    string `toml:"path" json:"path"` // "~" expands to the home directory
}

// =============================================================================
// DEFAULTS
// =============================================================================

const (
	DefaultServerURL      = "http://localhost:11434"
	DefaultModel          = "llama2"
	DefaultPromptTemplate = "Act as a writer. {prompt} Output only the text and nothing else, do not chat, no preamble, get to the point."
	DefaultListen         = "127.0.0.1:8788"
	DefaultRequestTimeout = 2 * time.Minute
)

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		ServerURL:      DefaultServerURL,
		DefaultModel:   DefaultModel,
		PromptTemplate: DefaultPromptTemplate,
		ModelTemplate:  "",
		RequestTimeout: DefaultRequestTimeout,
		Server: ServerConfig{
			Listen:    DefaultListen,
			RateLimit: 5,
			Burst:     10,
		},
		History: HistoryConfig{
			Enabled: true,
			Path:    "~/.inkwell/history.db",
		},
		Commands: DefaultCommands(),
	}
}

// Engine returns the engine settings snapshot for one invocation.
func (c *Config) Engine() prompt.Config {
	return prompt.Config{
		ServerURL:      c.ServerURL,
		DefaultModel:   c.DefaultModel,
		PromptTemplate: c.PromptTemplate,
		ModelTemplate:  c.ModelTemplate,
	}
}

// HistoryPath returns History.Path with a leading "~" expanded.
func (c *Config) HistoryPath() (string, error) {
	return expandHome(c.History.Path)
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the inkwell configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".inkwell"), nil
}

// DefaultPath returns the config file path, honoring INKWELL_CONFIG.
func DefaultPath() (string, error) {
	if p := os.Getenv("INKWELL_CONFIG"); p != "" {
		return expandHome(p)
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

func expandHome(p string) (string, error) {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~")), nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load reads the config at path merged over the defaults, then applies
// environment overrides and validates. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); err == nil {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, err
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("stat config: %w", err)
	}

	cfg.ApplyEnvOverrides()
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadTOML decodes path over cfg. Keys absent from the file keep the
// values already in cfg. A [[commands]] list in the file replaces the
// current list as a whole.
func LoadTOML(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return decodeTOML(cfg, data)
}

func decodeTOML(cfg *Config, data []byte) error {
	commands := cfg.Commands
	cfg.Commands = nil

	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		cfg.Commands = commands
		return fmt.Errorf("failed to decode TOML: %w", err)
	}
	if !md.IsDefined("commands") {
		cfg.Commands = commands
	}
	return nil
}

// Normalize canonicalizes values that have several spellings.
func (c *Config) Normalize() {
	c.ServerURL = strings.TrimRight(strings.TrimSpace(c.ServerURL), "/")
	for i := range c.Commands {
		c.Commands[i] = normalizeCommand(c.Commands[i])
	}
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

const fileHeader = `# inkwell configuration file
# Written by inkwell on every settings change; comments are not preserved.
#
# {prompt} in prompt_template is replaced by the command prompt.
# {text} in model_template is replaced by the selected text.

`

// Save writes cfg to path atomically with 0600 permissions.
func Save(cfg *Config, path string) error {
	data, err := cfg.MarshalTOML()
	if err != nil {
		return err
	}
	if err := util.AtomicWriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// MarshalTOML encodes cfg with the file header.
func (c *Config) MarshalTOML() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(fileHeader)
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return buf.Bytes(), nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError reports one invalid setting or command.
type ValidationError struct {
	Field   string
	Message string
	Err     error // optional sentinel, e.g. ErrDuplicateCommand
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e ValidationError) Unwrap() error {
	return e.Err
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Unwrap exposes the individual errors to errors.Is and errors.As.
func (e ValidateErrors) Unwrap() []error {
	errs := make([]error, len(e))
	for i, v := range e {
		errs[i] = v
	}
	return errs
}

// IsValidation reports whether err is a ValidationError or ValidateErrors.
func IsValidation(err error) bool {
	var ve ValidationError
	var ves ValidateErrors
	return errors.As(err, &ve) || errors.As(err, &ves)
}

// Validate checks every setting and command.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if err := validateServerURL(c.ServerURL); err != nil {
		errs = append(errs, *err)
	}
	if strings.TrimSpace(c.DefaultModel) == "" {
		errs = append(errs, ValidationError{Field: "default_model", Message: "must not be empty"})
	}
	if c.RequestTimeout < 0 {
		errs = append(errs, ValidationError{Field: "request_timeout", Message: "must not be negative"})
	}
	if strings.TrimSpace(c.Server.Listen) == "" {
		errs = append(errs, ValidationError{Field: "server.listen", Message: "must not be empty"})
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, ValidationError{Field: "server.rate_limit", Message: "must not be negative"})
	}
	if c.Server.Burst < 0 {
		errs = append(errs, ValidationError{Field: "server.burst", Message: "must not be negative"})
	}
	if c.History.Enabled && strings.TrimSpace(c.History.Path) == "" {
		errs = append(errs, ValidationError{Field: "history.path", Message: "required when history is enabled"})
	}

	seen := make(map[string]int, len(c.Commands))
	for i, cmd := range c.Commands {
		field := fmt.Sprintf("commands[%d]", i)
		if err := ValidateCommand(cmd); err != nil {
			var ves ValidateErrors
			if errors.As(err, &ves) {
				for _, ve := range ves {
					ve.Field = field + "." + ve.Field
					errs = append(errs, ve)
				}
			}
			continue
		}
		if j, dup := seen[cmd.Name]; dup {
			errs = append(errs, ValidationError{
				Field:   field + ".name",
				Message: fmt.Sprintf("%q duplicates commands[%d]", cmd.Name, j),
				Err:     ErrDuplicateCommand,
			})
			continue
		}
		seen[cmd.Name] = i
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateServerURL(raw string) *ValidationError {
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return &ValidationError{Field: "server_url", Message: fmt.Sprintf("%q is not an absolute URL", raw)}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return &ValidationError{Field: "server_url", Message: fmt.Sprintf("scheme %q is not http or https", u.Scheme)}
	}
	return nil
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a setting by its TOML key in dot notation ("server.listen").
func (c *Config) Get(key string) (any, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set assigns a setting from its string form, by TOML key in dot notation.
// Commands are managed through the command methods, not Set.
func (c *Config) Set(key, value string) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	return setFieldValue(field, value)
}

// lookup walks toml tags, so keys match the file exactly.
func (c *Config) lookup(key string) (reflect.Value, error) {
	if strings.TrimSpace(key) == "" {
		return reflect.Value{}, errors.New("empty key")
	}
	parts := strings.Split(key, ".")

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		field, ok := fieldByTag(v, part)
		if !ok || part == "commands" {
			return reflect.Value{}, fmt.Errorf("unknown setting: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			return field, nil
		}
		if field.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("setting %q has no sub-keys", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return reflect.Value{}, fmt.Errorf("unknown setting: %s", key)
}

func fieldByTag(v reflect.Value, name string) (reflect.Value, bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		tag, _, _ := strings.Cut(t.Field(i).Tag.Get("toml"), ",")
		if tag == name {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

// setFieldValue parses value into field according to the field's type.
func setFieldValue(field reflect.Value, value string) error {
	if field.Type() == reflect.TypeOf(time.Duration(0)) {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration: %w", err)
		}
		field.SetInt(int64(d))
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int64:
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid integer value: %w", err)
		}
		field.SetInt(n)
	case reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid float value: %w", err)
		}
		field.SetFloat(f)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean value: %w", err)
		}
		field.SetBool(b)
	default:
		return fmt.Errorf("cannot set %s from a string", field.Type())
	}
	return nil
}

// Keys lists every settable key in dot notation.
func Keys() []string {
	var keys []string
	var walk func(t reflect.Type, prefix string)
	walk = func(t reflect.Type, prefix string) {
		for i := 0; i < t.NumField(); i++ {
			tag, _, _ := strings.Cut(t.Field(i).Tag.Get("toml"), ",")
			if tag == "" || tag == "commands" {
				continue
			}
			if ft := t.Field(i).Type; ft.Kind() == reflect.Struct && ft != reflect.TypeOf(time.Duration(0)) {
				walk(ft, prefix+tag+".")
				continue
			}
			keys = append(keys, prefix+tag)
		}
	}
	walk(reflect.TypeOf(Config{}), "")
	return keys
}

// =============================================================================
// COPYING
// =============================================================================

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	if c.Commands != nil {
		clone.Commands = make([]prompt.Command, len(c.Commands))
		for i, cmd := range c.Commands {
			clone.Commands[i] = cmd.Clone()
		}
	}
	return &clone
}

// String returns the configuration as indented JSON.
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}
