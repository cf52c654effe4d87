// Package pathresolve expands the home-directory placeholder in configured
// file paths for the invoking user.
package pathresolve

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/user"
	"strings"
)

// Placeholder is replaced by the user's home directory.
const Placeholder = "~"

// ErrUnknownUser is returned when the user database has no entry for the name.
var ErrUnknownUser = errors.New("pathresolve: user does not exist")

// LookupFunc returns the home directory of the named user.
type LookupFunc func(name string) (string, error)

// SystemLookup queries the system user database.
func SystemLookup(name string) (string, error) {
	u, err := user.Lookup(name)
	if err != nil {
		var unknown user.UnknownUserError
		if errors.As(err, &unknown) {
			return "", fmt.Errorf("%w: %s", ErrUnknownUser, name)
		}
		return "", fmt.Errorf("lookup user %s: %w", name, err)
	}
	return u.HomeDir, nil
}

// Result is the outcome of a resolution. When Expanded is false, Path is the
// input left untouched and Err says why.
type Result struct {
	Path     string
	Expanded bool
	Err      error
}

// Resolver expands placeholders using a lookup function.
type Resolver struct {
	lookup LookupFunc
	logger *slog.Logger
}

// New creates a Resolver. A nil lookup uses SystemLookup, a nil logger
// discards diagnostics.
func New(lookup LookupFunc, logger *slog.Logger) *Resolver {
	if lookup == nil {
		lookup = SystemLookup
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Resolver{lookup: lookup, logger: logger}
}

// Resolve replaces every placeholder in path with the home directory of
// username. Lookup failures are reported and leave the path unmodified.
func (r *Resolver) Resolve(path, username string) Result {
	if !strings.Contains(path, Placeholder) {
		return Result{Path: path}
	}

	home, err := r.lookup(username)
	if err == nil && home == "" {
		err = fmt.Errorf("%w: %s has no home directory", ErrUnknownUser, username)
	}
	if err != nil {
		r.logger.Error("user does not exist?", "user", username, "error", err)
		return Result{Path: path, Err: err}
	}

	return Result{
		Path:     strings.ReplaceAll(path, Placeholder, home),
		Expanded: true,
	}
}
