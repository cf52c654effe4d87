package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg == nil {
		t.Fatal("DefaultConfig returned nil")
	}
	if cfg.Version != Version {
		t.Errorf("expected version %d, got %d", Version, cfg.Version)
	}
	if cfg.History.Path != "" {
		t.Errorf("expected unset history path, got %q", cfg.History.Path)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadNonexistent(t *testing.T) {
	cfg, err := Load("/nonexistent/path/sudohist.toml")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg == nil {
		t.Fatal("Load returned nil config")
	}
	if cfg.Index.BusyTimeoutMs != 5000 {
		t.Errorf("expected default busy timeout, got %d", cfg.Index.BusyTimeoutMs)
	}
}

func TestLoadTOML(t *testing.T) {
	path := writeConfig(t, "sudohist.toml", `
version = 1

[history]
path = "~/.sudo_history"
prefix = "audit:"
as_comment = true

[logging]
verbose = true
format = "json"

[index]
enabled = true
path = "/var/lib/sudohist/index.db"
busy_timeout_ms = 250
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.History.Path != "~/.sudo_history" {
		t.Errorf("unexpected history path %q", cfg.History.Path)
	}
	if cfg.History.Prefix != "audit:" || !cfg.History.AsComment {
		t.Errorf("unexpected history settings %+v", cfg.History)
	}
	if !cfg.Logging.Verbose || cfg.Logging.Format != "json" {
		t.Errorf("unexpected logging settings %+v", cfg.Logging)
	}
	if cfg.Logging.Output != "stderr" {
		t.Errorf("unset output should keep default, got %q", cfg.Logging.Output)
	}
	if !cfg.Index.Enabled || cfg.Index.BusyTimeoutMs != 250 {
		t.Errorf("unexpected index settings %+v", cfg.Index)
	}
}

func TestLoadJSON(t *testing.T) {
	path := writeConfig(t, "sudohist.json", `{"history": {"prefix": "#sudo"}, "index": {"busy_timeout_ms": 10}}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.History.Prefix != "#sudo" {
		t.Errorf("expected prefix #sudo, got %q", cfg.History.Prefix)
	}
	if cfg.Index.BusyTimeoutMs != 10 {
		t.Errorf("expected busy timeout 10, got %d", cfg.Index.BusyTimeoutMs)
	}
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, "sudohist.yaml", `
history:
  path: /var/log/sudo_history
logging:
  level: info
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.History.Path != "/var/log/sudo_history" {
		t.Errorf("unexpected history path %q", cfg.History.Path)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("unexpected level %q", cfg.Logging.Level)
	}
}

func TestLoadAutoDetect(t *testing.T) {
	path := writeConfig(t, "sudohist.conf", "[history]\nprefix = \"x\"\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.History.Prefix != "x" {
		t.Errorf("expected prefix x, got %q", cfg.History.Prefix)
	}
}

func TestLoadEmptyTOML(t *testing.T) {
	path := writeConfig(t, "sudohist.toml", "# nothing here\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Version != Version {
		t.Errorf("expected version %d, got %d", Version, cfg.Version)
	}
}

func TestLoadInvalidTOML(t *testing.T) {
	path := writeConfig(t, "sudohist.toml", "[history\npath = ")

	if _, err := Load(path); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, "sudohist.toml", "[history]\nfile = \"/tmp/x\"\n")

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected schema error for unknown key")
	}
	if !strings.Contains(err.Error(), "schema validation failed") {
		t.Errorf("expected schema error, got %v", err)
	}
}

func TestLoadRejectsWrongTypes(t *testing.T) {
	path := writeConfig(t, "sudohist.json", `{"history": {"as_comment": "yes"}}`)

	if _, err := Load(path); err == nil {
		t.Fatal("expected schema error for string boolean")
	}
}

func TestLoadRejectsBadEnum(t *testing.T) {
	path := writeConfig(t, "sudohist.yaml", "logging:\n  format: xml\n")

	if _, err := Load(path); err == nil {
		t.Fatal("expected schema error for unknown format")
	}
}

func TestValidateSemantic(t *testing.T) {
	tests := []struct {
		name  string
		mod   func(*Config)
		field string
	}{
		{"bad version", func(c *Config) { c.Version = 99 }, "version"},
		{"file output without path", func(c *Config) { c.Logging.Output = "file" }, "logging.file_path"},
		{"index without path", func(c *Config) { c.Index.Enabled = true }, "index.path"},
		{"negative timeout", func(c *Config) { c.Index.BusyTimeoutMs = -1 }, "index.busy_timeout_ms"},
		{"multiline prefix", func(c *Config) { c.History.Prefix = "a\nb" }, "history.prefix"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mod(cfg)

			err := cfg.Validate()
			var verrs ValidationErrors
			if !errors.As(err, &verrs) {
				t.Fatalf("expected ValidationErrors, got %v", err)
			}
			if verrs[0].Field != tc.field {
				t.Errorf("expected field %s, got %s", tc.field, verrs[0].Field)
			}
		})
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("SUDOHIST_HISTFILE", "/tmp/hist")
	t.Setenv("SUDOHIST_PREFIX", "env:")
	t.Setenv("SUDOHIST_LOG_LEVEL", "debug")
	t.Setenv("SUDOHIST_DATABASE", "/tmp/index.db")

	cfg := DefaultConfig()
	cfg.ApplyEnvOverrides()

	if cfg.History.Path != "/tmp/hist" {
		t.Errorf("unexpected path %q", cfg.History.Path)
	}
	if cfg.History.Prefix != "env:" {
		t.Errorf("unexpected prefix %q", cfg.History.Prefix)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("unexpected level %q", cfg.Logging.Level)
	}
	if !cfg.Index.Enabled || cfg.Index.Path != "/tmp/index.db" {
		t.Errorf("unexpected index %+v", cfg.Index)
	}
}
