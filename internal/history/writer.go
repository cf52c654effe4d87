// Package history appends reconstructed command lines to the audit history
// file.
//
// Each entry is a single line of the form "<prefix> <content>\n". The file is
// opened in append mode for every entry and written with one Write call, so
// concurrent sessions rely on the operating system's append semantics rather
// than on locking. Failures are reported through the diagnostics logger and
// never returned to the caller: a broken history file must not stop a
// privileged command from running.
package history

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"
)

// FileMode is the permission used when the history file is created.
const FileMode os.FileMode = 0600

// ErrShortWrite is recorded when the file accepted fewer bytes than the entry.
var ErrShortWrite = errors.New("history: short write")

// Entry is one logical history line.
type Entry struct {
	Prefix  string
	Content string
	Time    time.Time
}

// Line returns the entry in its on-disk form.
func (e Entry) Line() string {
	return e.Prefix + " " + e.Content + "\n"
}

// Mirror receives every entry after it has been appended to the file.
type Mirror interface {
	Record(e Entry) error
}

// Writer appends entries to one history file.
type Writer struct {
	path   string
	prefix string
	logger *slog.Logger
	mirror Mirror
	now    func() time.Time

	mu      sync.Mutex
	lastErr error
}

// Option configures a Writer.
type Option func(*Writer)

// WithLogger sets the diagnostics logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Writer) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithMirror forwards every appended entry to m.
func WithMirror(m Mirror) Option {
	return func(w *Writer) { w.mirror = m }
}

// WithClock overrides the entry timestamp source.
func WithClock(now func() time.Time) Option {
	return func(w *Writer) {
		if now != nil {
			w.now = now
		}
	}
}

// NewWriter creates a Writer for path using prefix on every line.
func NewWriter(path, prefix string, opts ...Option) *Writer {
	w := &Writer{
		path:   path,
		prefix: prefix,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Path returns the resolved history file path.
func (w *Writer) Path() string { return w.path }

// Prefix returns the line prefix.
func (w *Writer) Prefix() string { return w.prefix }

// Append writes content as one history line. It reports whether the line
// reached the file.
func (w *Writer) Append(content string) bool {
	entry := Entry{Prefix: w.prefix, Content: content, Time: w.now()}

	err := w.write(entry)
	w.mu.Lock()
	w.lastErr = err
	w.mu.Unlock()

	if err != nil {
		w.logger.Error("cannot write history file", "path", w.path, "error", err)
		return false
	}

	if w.mirror != nil {
		if err := w.mirror.Record(entry); err != nil {
			w.logger.Error("cannot record history entry in index", "path", w.path, "error", err)
		}
	}
	return true
}

// LastError returns the failure of the most recent Append, or nil.
func (w *Writer) LastError() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastErr
}

func (w *Writer) write(e Entry) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("history: write panicked: %v", r)
		}
	}()

	f, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, FileMode)
	if err != nil {
		return fmt.Errorf("open history file: %w", err)
	}

	line := []byte(e.Line())
	n, werr := f.Write(line)
	cerr := f.Close()

	switch {
	case werr != nil:
		return fmt.Errorf("write history file: %w", werr)
	case n < len(line):
		return fmt.Errorf("%w: %d of %d bytes", ErrShortWrite, n, len(line))
	case cerr != nil:
		return fmt.Errorf("close history file: %w", cerr)
	}
	return nil
}
