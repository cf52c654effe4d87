package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
		hasError bool
	}{
		{"debug", LevelDebug, false},
		{"DEBUG", LevelDebug, false},
		{"info", LevelInfo, false},
		{"warn", LevelWarn, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"ERROR", LevelError, false},
		{"invalid", LevelError, true},
		{"", LevelError, true},
	}

	for _, test := range tests {
		t.Run(test.input, func(t *testing.T) {
			level, err := ParseLevel(test.input)
			if test.hasError && err == nil {
				t.Error("expected error, got nil")
			}
			if !test.hasError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if level != test.expected {
				t.Errorf("expected %v, got %v", test.expected, level)
			}
		})
	}
}

func TestLevelString(t *testing.T) {
	tests := []struct {
		level    Level
		expected string
	}{
		{LevelDebug, "debug"},
		{LevelInfo, "info"},
		{LevelWarn, "warn"},
		{LevelError, "error"},
	}

	for _, test := range tests {
		t.Run(test.expected, func(t *testing.T) {
			if result := LevelString(test.level); result != test.expected {
				t.Errorf("expected %q, got %q", test.expected, result)
			}
		})
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat("json"); err != nil || f != FormatJSON {
		t.Errorf("ParseFormat(json) = %v, %v", f, err)
	}
	if f, err := ParseFormat(""); err != nil || f != FormatText {
		t.Errorf("ParseFormat(\"\") = %v, %v", f, err)
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("expected error for xml")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != LevelError {
		t.Errorf("expected default level Error, got %v", cfg.Level)
	}
	if cfg.Format != FormatText {
		t.Errorf("expected default format Text, got %v", cfg.Format)
	}
	if cfg.Output != "stderr" {
		t.Errorf("expected default output stderr, got %s", cfg.Output)
	}
}

func TestForVerbosity(t *testing.T) {
	if ForVerbosity(true) != LevelDebug {
		t.Error("verbose should map to debug")
	}
	if ForVerbosity(false) != LevelError {
		t.Error("quiet should map to error")
	}
}

func TestVerbosityFiltersDebug(t *testing.T) {
	for _, verbose := range []bool{false, true} {
		var buf bytes.Buffer
		logger, err := New(&Config{Level: ForVerbosity(verbose), Writer: &buf})
		if err != nil {
			t.Fatalf("failed to create logger: %v", err)
		}

		logger.Debug("EXEC ls")
		logger.Error("cannot write history file")

		gotDebug := strings.Contains(buf.String(), "EXEC ls")
		if gotDebug != verbose {
			t.Errorf("verbose=%v: debug present=%v\n%s", verbose, gotDebug, buf.String())
		}
		if !strings.Contains(buf.String(), "cannot write history file") {
			t.Errorf("verbose=%v: error line missing", verbose)
		}
	}
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer

	logger, err := New(&Config{
		Level:     LevelInfo,
		Format:    FormatJSON,
		Component: "test",
		Writer:    &buf,
	})
	if err != nil {
		t.Fatalf("failed to create JSON logger: %v", err)
	}

	logger.Info("hello", "user", "alice")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}
	if entry["component"] != "test" {
		t.Errorf("expected component test, got %v", entry["component"])
	}
	if entry["user"] != "alice" {
		t.Errorf("expected user alice, got %v", entry["user"])
	}
}

func TestShouldRedact(t *testing.T) {
	tests := []struct {
		key      string
		expected bool
	}{
		{"password", true},
		{"SUDO_PASSWORD", true},
		{"secret", true},
		{"api_key", true},
		{"GITHUB_TOKEN", true},
		{"credential", true},
		{"private_key", true},
		{"cookie", true},
		{"session", false},
		{"user", false},
		{"Histfile", false},
		{"PATH", false},
	}

	for _, test := range tests {
		t.Run(test.key, func(t *testing.T) {
			if result := IsSensitiveKey(test.key); result != test.expected {
				t.Errorf("IsSensitiveKey(%q) = %v, expected %v", test.key, result, test.expected)
			}
		})
	}
}

func TestRedactionInsideGroups(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&Config{Level: LevelDebug, Writer: &buf})
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}

	logger.Debug("INIT", slog.Group("user_env",
		slog.String("HOME", "/root"),
		slog.String("GITHUB_TOKEN", "ghp_abc"),
	))

	out := buf.String()
	if strings.Contains(out, "ghp_abc") {
		t.Errorf("token leaked: %s", out)
	}
	if !strings.Contains(out, "user_env.HOME=/root") {
		t.Errorf("expected grouped HOME attribute: %s", out)
	}
}

func TestLoggerWithSessionAndComponent(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&Config{Level: LevelInfo, Writer: &buf})
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}

	logger.WithSession("abc-123").WithComponent("linebuf").Info("x")

	out := buf.String()
	if !strings.Contains(out, "session=abc-123") {
		t.Errorf("missing session attribute: %s", out)
	}
	if !strings.Contains(out, "component=linebuf") {
		t.Errorf("missing component attribute: %s", out)
	}
}

func TestFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sudohist.log")

	logger, err := New(&Config{Level: LevelInfo, Output: "file", FilePath: path})
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	logger.Info("written to file")
	if err := logger.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "written to file") {
		t.Errorf("log file missing entry: %s", data)
	}
}

func TestFileOutputWithoutPath(t *testing.T) {
	if _, err := New(&Config{Output: "file"}); err == nil {
		t.Error("expected error for file output without path")
	}
}

func TestDiscard(t *testing.T) {
	l := Discard()
	l.Error("nothing")
	if err := l.Close(); err != nil {
		t.Errorf("close: %v", err)
	}
}

func TestCommandLoggerPipedIsJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewCommandLogger(&buf, LevelInfo)
	logger.Info("imported", "entries", 3, "password", "x")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}
	if entry["entries"] != float64(3) {
		t.Errorf("expected entries 3, got %v", entry["entries"])
	}
	if entry["password"] != "[REDACTED]" {
		t.Errorf("password not redacted: %v", entry["password"])
	}
}
