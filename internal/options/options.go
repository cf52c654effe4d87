// Package options turns the host's key=value vectors into typed plugin
// settings.
package options

import (
	"sort"
	"strings"
)

// Recognized plugin option keys.
const (
	KeyHistfile  = "Histfile"
	KeyAsComment = "AsComment"
	KeyPrefix    = "Prefix"
	KeyVerbose   = "Verbose"
	KeyConfig    = "Config"
	KeyDatabase  = "Database"
	KeyLogFormat = "LogFormat"
)

// DefaultHistfile is used when no Histfile option is given.
const DefaultHistfile = ".sudo_history"

// CommentMarker starts the prefix when AsComment is set.
const CommentMarker = "# "

// Map is a parsed key=value vector.
type Map map[string]string

// Parse splits each "key=value" entry at the first '='. Entries without '='
// are presence flags and map to the empty string. Later entries win.
func Parse(vec []string) Map {
	m := make(Map, len(vec))
	for _, kv := range vec {
		if kv == "" {
			continue
		}
		key, value, _ := strings.Cut(kv, "=")
		m[key] = value
	}
	return m
}

// Has reports whether key is present, with or without a value.
func (m Map) Has(key string) bool {
	_, ok := m[key]
	return ok
}

// Get returns the value for key, or def when the key is absent.
func (m Map) Get(key, def string) string {
	if v, ok := m[key]; ok {
		return v
	}
	return def
}

// Keys returns the keys in sorted order.
func (m Map) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Options are the typed plugin settings.
type Options struct {
	// Histfile is the history path template; "~" expands to the user's home.
	Histfile string

	// AsComment starts every line with CommentMarker.
	AsComment bool

	// Prefix is appended after the comment marker.
	Prefix string

	// Verbose lowers the diagnostics threshold to debug.
	Verbose bool

	// Config is an optional config file overlaid under the plugin options.
	Config string

	// Database is an optional SQLite index mirroring every history line.
	Database string

	// LogFormat selects "text" or "json" diagnostics.
	LogFormat string

	// set records which fields came from the host rather than defaults.
	set map[string]bool
}

// Defaults returns the settings used when the host passes no options.
func Defaults() Options {
	return Options{Histfile: DefaultHistfile, LogFormat: "text"}
}

// FromMap builds Options from parsed plugin options.
func FromMap(m Map) Options {
	o := Defaults()
	o.set = make(map[string]bool)

	if v, ok := m[KeyHistfile]; ok {
		o.Histfile = v
		o.set[KeyHistfile] = true
	}
	if m.Has(KeyAsComment) {
		o.AsComment = true
		o.set[KeyAsComment] = true
	}
	if v, ok := m[KeyPrefix]; ok {
		o.Prefix = v
		o.set[KeyPrefix] = true
	}
	if m.Has(KeyVerbose) {
		o.Verbose = true
		o.set[KeyVerbose] = true
	}
	if v, ok := m[KeyConfig]; ok {
		o.Config = v
		o.set[KeyConfig] = true
	}
	if v, ok := m[KeyDatabase]; ok {
		o.Database = v
		o.set[KeyDatabase] = true
	}
	if v, ok := m[KeyLogFormat]; ok {
		o.LogFormat = v
		o.set[KeyLogFormat] = true
	}
	return o
}

// IsSet reports whether the host supplied key explicitly.
func (o Options) IsSet(key string) bool {
	return o.set[key]
}

// LinePrefix returns the prefix written before every history entry.
func (o Options) LinePrefix() string {
	if o.AsComment {
		return CommentMarker + o.Prefix
	}
	return o.Prefix
}
