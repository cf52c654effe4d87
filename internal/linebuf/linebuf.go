// Package linebuf rebuilds the command line a user typed from raw terminal
// input.
//
// The reconstructor sees keystrokes before the terminal renders them, so it
// works even when local echo is off. It only understands backspace (DEL) and
// carriage return; escape sequences such as arrow keys cannot be replayed
// without emulating the shell's line editor, so input starting with ESC is
// refused instead of corrupting the line.
package linebuf

import "unicode/utf8"

// Control units with special meaning.
const (
	ESC byte = 0x1b
	DEL byte = 0x7f
	CR  byte = '\r'
)

// Sink receives every completed line.
type Sink interface {
	Append(line string) bool
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(line string) bool

// Append calls f(line).
func (f SinkFunc) Append(line string) bool { return f(line) }

// Reconstructor holds the in-progress line of one session. It is not safe for
// concurrent use.
type Reconstructor struct {
	sink Sink
	buf  []byte
}

// New returns an empty Reconstructor that hands completed lines to sink.
func New(sink Sink) *Reconstructor {
	return &Reconstructor{sink: sink}
}

// Feed consumes one input event. It returns false, leaving the line
// untouched, when the event starts with ESC. Otherwise every unit is applied
// in order and Feed returns true.
func (r *Reconstructor) Feed(event []byte) bool {
	if len(event) > 0 && event[0] == ESC {
		return false
	}

	for _, c := range event {
		switch c {
		case DEL:
			r.backspace()
		case CR:
			r.complete()
		case ESC:
			// ESC after the first unit is accepted but never stored.
		default:
			r.buf = append(r.buf, c)
		}
	}
	return true
}

// Line returns the in-progress line.
func (r *Reconstructor) Line() string {
	return string(r.buf)
}

// Len returns the in-progress line length in bytes.
func (r *Reconstructor) Len() int {
	return len(r.buf)
}

// Reset discards the in-progress line.
func (r *Reconstructor) Reset() {
	r.buf = r.buf[:0]
}

// backspace drops the last character, or the last byte if the tail is not
// valid UTF-8.
func (r *Reconstructor) backspace() {
	if len(r.buf) == 0 {
		return
	}
	_, size := utf8.DecodeLastRune(r.buf)
	r.buf = r.buf[:len(r.buf)-size]
}

func (r *Reconstructor) complete() {
	line := string(r.buf)
	r.Reset()
	if r.sink != nil {
		r.sink.Append(line)
	}
}
