// Package plugin implements the sudo I/O plugin callbacks that record every
// privileged command line to the history file.
//
// The host creates one Session per elevated command with Initialize and then
// drives it through OnCommandStart, any number of OnInput and OnOutput
// events, and finally OnSessionEnd. Calls are strictly sequential. The
// session never denies a command; the only negative verdict is Reject for
// terminal input that starts with an escape sequence.
package plugin

import "fmt"

// Result is the verdict returned to the host for a callback.
type Result int

// Verdicts, numbered like the sudo plugin API return codes.
const (
	Error  Result = -1
	Reject Result = 0
	Accept Result = 1
)

func (r Result) String() string {
	switch r {
	case Accept:
		return "ACCEPT"
	case Reject:
		return "REJECT"
	case Error:
		return "ERROR"
	default:
		return fmt.Sprintf("Result(%d)", int(r))
	}
}

// Observer is the callback surface the host drives for one session.
type Observer interface {
	// OnCommandStart is called once the command has been resolved to argv.
	OnCommandStart(argv []string, commandInfo []string) Result

	// OnInput is called with every chunk read from the user's terminal.
	OnInput(buf []byte) Result

	// OnOutput is called with every chunk written to the user's terminal.
	OnOutput(buf []byte) Result

	// OnSessionEnd is called after the command exits or fails to start.
	// errno is zero when the command ran.
	OnSessionEnd(exitStatus int, errno int)
}

var _ Observer = (*Session)(nil)
