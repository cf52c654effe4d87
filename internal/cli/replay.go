package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"sudohist/internal/linebuf"
	"sudohist/internal/plugin"
)

const (
	keyInterrupt = 0x03
	keyEOF       = 0x04
)

func newReplayCmd(a *app) *cobra.Command {
	var extra []string

	cmd := &cobra.Command{
		Use:   "replay [--option key=value]... [file|-]",
		Short: "Feed keystrokes to the session observer",
		Long: `Feed raw keystrokes to the line reconstructor and append completed lines to
the history file.

With a file (or "-" for a non-interactive standard input) the recorded bytes
are split into terminal events and fed in order. Without one, the terminal
is put in raw mode and keys are fed as typed until Ctrl-D.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return a.replayFile(args[0], extra)
			}
			if f, ok := a.stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
				return a.replayTerminal(f, extra)
			}
			return a.replayFile("-", extra)
		},
	}
	cmd.Flags().StringArrayVarP(&extra, "option", "o", nil, "Plugin option as key=value (repeatable)")
	return cmd
}

// replaySummary is what a replay did.
type replaySummary struct {
	Events   int
	Rejected int
	Path     string
}

func (a *app) replayFile(path string, extra []string) error {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(a.stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return fmt.Errorf("read keystrokes: %w", err)
	}

	h, err := a.startSession(extra)
	if err != nil {
		return err
	}

	sum := replaySummary{Path: h.session.HistoryPath()}
	for _, ev := range splitEvents(data) {
		sum.Events++
		if h.input(ev) != plugin.Accept {
			sum.Rejected++
			a.logger.Debug("input rejected", "event", fmt.Sprintf("%q", ev))
		}
	}
	h.end(0, 0)

	fmt.Fprintf(a.stdout, "events: %d, rejected: %d\nhistory: %s\n", sum.Events, sum.Rejected, sum.Path)
	return nil
}

func (a *app) replayTerminal(f *os.File, extra []string) error {
	h, err := a.startSession(extra)
	if err != nil {
		return err
	}
	defer h.end(0, 0)

	fd := int(f.Fd())
	state, err := term.MakeRaw(fd)
	if err != nil {
		return fmt.Errorf("enter raw mode: %w", err)
	}
	defer term.Restore(fd, state)

	fmt.Fprintf(a.stdout, "recording to %s, Ctrl-D to finish\r\n", h.session.HistoryPath())

	buf := make([]byte, 256)
	for {
		n, err := f.Read(buf)
		if err != nil || n == 0 {
			return nil
		}
		chunk := buf[:n]
		if chunk[0] == keyEOF || chunk[0] == keyInterrupt {
			fmt.Fprint(a.stdout, "\r\n")
			return nil
		}
		if h.input(chunk) != plugin.Accept {
			fmt.Fprint(a.stdout, "\a")
			continue
		}
		echo(a.stdout, chunk)
	}
}

// echo renders accepted input the way a cooked terminal would.
func echo(w io.Writer, chunk []byte) {
	for _, b := range chunk {
		switch b {
		case linebuf.CR:
			fmt.Fprint(w, "\r\n")
		case linebuf.DEL:
			fmt.Fprint(w, "\b \b")
		case linebuf.ESC:
		default:
			w.Write([]byte{b})
		}
	}
}
