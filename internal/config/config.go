// Package config handles the optional sudohist configuration file.
//
// The host's plugin options always take precedence; the file only supplies
// values the host did not pass. TOML, JSON and YAML are accepted, chosen by
// file extension.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Version is the current configuration schema version.
const Version = 1

// DefaultPath is where the CLI looks for a config file when none is given.
const DefaultPath = "/etc/sudohist.toml"

// ErrUnknownFormat is returned when no decoder accepts the file.
var ErrUnknownFormat = errors.New("config: unable to parse config file (tried TOML, JSON, YAML)")

// Config holds the file-level configuration.
type Config struct {
	// Version is the configuration schema version.
	Version int `toml:"version" json:"version" yaml:"version"`

	// History configures the history file.
	History HistoryConfig `toml:"history" json:"history" yaml:"history"`

	// Logging configures diagnostics.
	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`

	// Index configures the optional SQLite history index.
	Index IndexConfig `toml:"index" json:"index" yaml:"index"`
}

// HistoryConfig holds history file settings.
type HistoryConfig struct {
	// Path is the history file template; "~" expands to the user's home.
	Path string `toml:"path" json:"path" yaml:"path"`

	// Prefix is written before every entry, after the comment marker.
	Prefix string `toml:"prefix" json:"prefix" yaml:"prefix"`

	// AsComment starts every entry with "# ".
	AsComment bool `toml:"as_comment" json:"as_comment" yaml:"as_comment"`
}

// LoggingConfig holds diagnostics settings.
type LoggingConfig struct {
	// Verbose emits debug diagnostics.
	Verbose bool `toml:"verbose" json:"verbose" yaml:"verbose"`

	// Level overrides the verbosity-derived level: debug, info, warn, error.
	Level string `toml:"level" json:"level" yaml:"level"`

	// Format is "text" or "json".
	Format string `toml:"format" json:"format" yaml:"format"`

	// Output is "stderr", "stdout", "file" or "both".
	Output string `toml:"output" json:"output" yaml:"output"`

	// FilePath is the diagnostics file when Output includes "file".
	FilePath string `toml:"file_path" json:"file_path" yaml:"file_path"`
}

// IndexConfig holds SQLite index settings.
type IndexConfig struct {
	// Enabled turns the index on.
	Enabled bool `toml:"enabled" json:"enabled" yaml:"enabled"`

	// Path is the database file.
	Path string `toml:"path" json:"path" yaml:"path"`

	// BusyTimeoutMs is the SQLite busy timeout in milliseconds.
	BusyTimeoutMs int `toml:"busy_timeout_ms" json:"busy_timeout_ms" yaml:"busy_timeout_ms"`
}

// DefaultConfig returns a configuration with every optional value unset.
func DefaultConfig() *Config {
	return &Config{
		Version: Version,
		Logging: LoggingConfig{
			Format: "text",
			Output: "stderr",
		},
		Index: IndexConfig{
			BusyTimeoutMs: 5000,
		},
	}
}

// Load reads configuration from path. A missing file yields the defaults.
// The file is checked against the embedded JSON Schema before decoding.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	if err := decode(path, data, cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	return cfg, nil
}

// decode validates the raw document against the schema, then decodes it into
// cfg according to the file extension.
func decode(path string, data []byte, cfg *Config) error {
	var (
		doc    map[string]any
		format string
	)

	switch filepath.Ext(path) {
	case ".toml":
		format = "TOML"
		if _, err := toml.Decode(string(data), &doc); err != nil {
			return fmt.Errorf("decode TOML: %w", err)
		}
	case ".json":
		format = "JSON"
		if err := json.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("decode JSON: %w", err)
		}
	case ".yaml", ".yml":
		format = "YAML"
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("decode YAML: %w", err)
		}
	default:
		var err error
		if format, err = autoDetect(data, &doc); err != nil {
			return err
		}
	}

	// Every format goes through JSON so that one schema and one set of field
	// rules apply.
	normalized, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("normalize %s: %w", format, err)
	}
	if err := validateSchema(normalized); err != nil {
		return err
	}

	dec := json.NewDecoder(bytes.NewReader(normalized))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("decode %s: %w", format, err)
	}
	return nil
}

// autoDetect tries each supported format in turn.
func autoDetect(data []byte, doc *map[string]any) (string, error) {
	if _, err := toml.Decode(string(data), doc); err == nil {
		return "TOML", nil
	}
	*doc = nil
	if err := json.Unmarshal(data, doc); err == nil {
		return "JSON", nil
	}
	*doc = nil
	if err := yaml.Unmarshal(data, doc); err == nil && *doc != nil {
		return "YAML", nil
	}
	return "", ErrUnknownFormat
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	return ValidateConfig(c)
}

// ApplyEnvOverrides applies SUDOHIST_* environment overrides. Only the CLI
// calls this: inside the plugin the environment belongs to the invoking
// user and must not redirect the audit trail.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("SUDOHIST_HISTFILE"); v != "" {
		c.History.Path = v
	}
	if v := os.Getenv("SUDOHIST_PREFIX"); v != "" {
		c.History.Prefix = v
	}
	if v := os.Getenv("SUDOHIST_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("SUDOHIST_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv("SUDOHIST_DATABASE"); v != "" {
		c.Index.Enabled = true
		c.Index.Path = v
	}
}
