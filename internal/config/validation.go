package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema.json
var schemaJSON []byte

const schemaURL = "sudohist-config.schema.json"

var (
	compiledSchema *jsonschema.Schema
	compileErr     error
	compileOnce    sync.Once
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

func schema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
			compileErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		compiledSchema, compileErr = compiler.Compile(schemaURL)
	})
	return compiledSchema, compileErr
}

// validateSchema checks a JSON-encoded config document against the embedded
// schema.
func validateSchema(doc []byte) error {
	s, err := schema()
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(doc))
	dec.UseNumber()
	var instance any
	if err := dec.Decode(&instance); err != nil {
		return fmt.Errorf("decode config document: %w", err)
	}
	if instance == nil {
		return nil
	}

	if err := s.Validate(instance); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}

// ValidateConfig performs semantic checks the schema cannot express.
func ValidateConfig(c *Config) error {
	var errs ValidationErrors

	if c.Version < 1 || c.Version > Version {
		errs = append(errs, ValidationError{
			Field:   "version",
			Message: fmt.Sprintf("unsupported version %d (current: %d)", c.Version, Version),
		})
	}

	out := strings.ToLower(c.Logging.Output)
	if (out == "file" || out == "both") && c.Logging.FilePath == "" {
		errs = append(errs, ValidationError{
			Field:   "logging.file_path",
			Message: fmt.Sprintf("required when output is %q", c.Logging.Output),
		})
	}

	if c.Index.Enabled && c.Index.Path == "" {
		errs = append(errs, ValidationError{
			Field:   "index.path",
			Message: "required when the index is enabled",
		})
	}
	if c.Index.BusyTimeoutMs < 0 {
		errs = append(errs, ValidationError{
			Field:   "index.busy_timeout_ms",
			Message: "must not be negative",
		})
	}

	if strings.ContainsAny(c.History.Prefix, "\r\n") {
		errs = append(errs, ValidationError{
			Field:   "history.prefix",
			Message: "must not contain line breaks",
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
