package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"os/user"
	"syscall"

	"github.com/spf13/cobra"

	"sudohist/internal/history"
	"sudohist/internal/options"
	"sudohist/internal/pathresolve"
)

func newTailCmd(a *app) *cobra.Command {
	var (
		follow      bool
		contentOnly bool
	)

	cmd := &cobra.Command{
		Use:   "tail [history-file]",
		Short: "Print a history file",
		Long: `Print a history file, by default the configured one for the current user.

With --follow, lines appended afterwards are printed as they arrive until
interrupted.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, prefix, err := a.historyTarget(args)
			if err != nil {
				return err
			}
			if follow {
				ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
				defer stop()
				return a.follow(ctx, path, prefix, contentOnly)
			}
			return a.printHistory(path, prefix, contentOnly)
		},
	}
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing appended lines")
	cmd.Flags().BoolVar(&contentOnly, "content", false, "Strip the configured prefix from each line")
	return cmd
}

// historyTarget returns the history file to read and the prefix its lines
// were written with.
func (a *app) historyTarget(args []string) (string, string, error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return "", "", err
	}
	prefix := options.Options{AsComment: cfg.History.AsComment, Prefix: cfg.History.Prefix}.LinePrefix()

	if len(args) == 1 {
		return args[0], prefix, nil
	}

	path := cfg.History.Path
	if path == "" {
		path = options.DefaultHistfile
	}
	return a.resolveForCurrentUser(path), prefix, nil
}

// resolveForCurrentUser expands "~" in path for the invoking user.
func (a *app) resolveForCurrentUser(path string) string {
	u, err := user.Current()
	if err != nil {
		a.logger.Warn("cannot determine current user", "error", err)
		return path
	}
	return pathresolve.New(nil, a.logger).Resolve(path, u.Username).Path
}

func (a *app) printHistory(path, prefix string, contentOnly bool) error {
	if !contentOnly {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open history file: %w", err)
		}
		defer f.Close()
		_, err = io.Copy(a.stdout, f)
		return err
	}

	entries, err := history.ReadFile(path, prefix)
	if err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Fprintln(a.stdout, e.Content)
	}
	return nil
}

func (a *app) follow(ctx context.Context, path, prefix string, contentOnly bool) error {
	a.logger.Debug("following history file", "path", path)
	return history.Follow(ctx, path, true, func(line string) {
		if contentOnly {
			line = history.ParseLine(line, prefix).Content
		}
		fmt.Fprintln(a.stdout, line)
	})
}
