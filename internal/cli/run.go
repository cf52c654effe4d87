package cli

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os/exec"
	"os/user"
	"syscall"

	"github.com/spf13/cobra"

	"sudohist/internal/plugin"
)

// Exit codes used when the command cannot be launched, as in POSIX shells.
const (
	exitNotExecutable = 126
	exitNotFound      = 127
)

func newRunCmd(a *app) *cobra.Command {
	var extra []string

	cmd := &cobra.Command{
		Use:   "run [--option key=value]... -- command [args...]",
		Short: "Run a command under the session observer",
		Long: `Run a command the way the sudo front end would, with the observer attached.

The invoked command line is appended to the history file, standard input is
fed to the line reconstructor before it reaches the command, and the exit
status or launch failure is reported when the command finishes. Input the
observer rejects is not forwarded.

Examples:
  sudohist run -- id
  sudohist run -o Histfile=/tmp/hist -o Prefix=ops -- sh`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd.Context(), extra, args)
		},
	}
	cmd.Flags().StringArrayVarP(&extra, "option", "o", nil, "Plugin option as key=value (repeatable)")
	cmd.Flags().SetInterspersed(false)
	return cmd
}

func (a *app) run(ctx context.Context, extra, argv []string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	h, err := a.startSession(extra)
	if err != nil {
		return err
	}

	path, lookErr := exec.LookPath(argv[0])
	if path == "" {
		path = argv[0]
	}
	h.commandStart(argv, commandInfo(path))

	if lookErr != nil {
		h.end(0, errnoOf(lookErr))
		a.logger.Error("cannot execute command", "command", argv[0], "error", lookErr)
		return &exitError{code: exitNotFound}
	}

	c := exec.CommandContext(ctx, path, argv[1:]...)
	c.Args[0] = argv[0]
	c.Stdout = &observedWriter{w: a.stdout, h: h}
	c.Stderr = a.stderr

	stdin, err := c.StdinPipe()
	if err != nil {
		h.end(0, errnoOf(err))
		return err
	}

	if err := c.Start(); err != nil {
		h.end(0, errnoOf(err))
		a.logger.Error("cannot execute command", "command", argv[0], "error", err)
		return &exitError{code: exitNotExecutable}
	}

	go a.pumpInput(h, stdin)

	status := 0
	if err := c.Wait(); err != nil {
		var ee *exec.ExitError
		if !errors.As(err, &ee) {
			h.end(0, errnoOf(err))
			return err
		}
		status = ee.ExitCode()
		if status < 0 {
			status = 1
		}
	}

	h.end(status, 0)
	if status != 0 {
		return &exitError{code: status}
	}
	return nil
}

// pumpInput copies standard input to the command through the observer.
func (a *app) pumpInput(h *host, stdin io.WriteCloser) {
	defer stdin.Close()

	buf := make([]byte, 4096)
	for {
		n, err := a.stdin.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			if h.input(chunk) == plugin.Accept {
				if _, werr := stdin.Write(chunk); werr != nil {
					return
				}
			} else {
				a.logger.Debug("input rejected", "bytes", n)
			}
		}
		if err != nil {
			return
		}
	}
}

// observedWriter shows command output to the observer before passing it on.
type observedWriter struct {
	w io.Writer
	h *host
}

func (o *observedWriter) Write(p []byte) (int, error) {
	o.h.output(p)
	return o.w.Write(p)
}

func commandInfo(path string) []string {
	info := []string{"command=" + path}
	if u, err := user.Current(); err == nil {
		info = append(info, "runas_user="+u.Username, "runas_uid="+u.Uid)
	}
	return info
}

// errnoOf extracts the system error number from a launch failure.
func errnoOf(err error) int {
	var errno syscall.Errno
	switch {
	case errors.As(err, &errno):
		return int(errno)
	case errors.Is(err, exec.ErrNotFound), errors.Is(err, fs.ErrNotExist):
		return int(syscall.ENOENT)
	case errors.Is(err, fs.ErrPermission):
		return int(syscall.EACCES)
	default:
		return int(syscall.EINVAL)
	}
}
