// Package cli implements the sudohist command, a standalone host for the
// session observer and a set of tools for working with history files.
package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"sudohist/internal/config"
	"sudohist/internal/logging"
)

// app holds the state shared by every subcommand.
type app struct {
	configPath string
	verbose    bool
	logLevel   string

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	cfg    *config.Config
	logger *slog.Logger
}

// exitError carries a child command's exit code out of Execute.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("command exited with status %d", e.code)
}

func newApp() *app {
	return &app{
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "sudohist",
		Short: "Record typed commands of privileged sessions",
		Long: `sudohist reconstructs the command lines typed during a privileged session
and appends them to a per-user history file.

The same observer that runs inside the sudo I/O plugin can be hosted here
around any command, fed recorded keystrokes, and its history files can be
followed, indexed and searched.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := logging.LevelWarn
			if a.logLevel != "" {
				lvl, err := logging.ParseLevel(a.logLevel)
				if err != nil {
					return err
				}
				level = lvl
			}
			if a.verbose {
				level = logging.LevelDebug
			}
			a.logger = logging.NewCommandLogger(a.stderr, level)
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Path to config file (default "+config.DefaultPath+")")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug diagnostics")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Diagnostics level: debug, info, warn, error")

	root.SetIn(a.stdin)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	root.AddCommand(newRunCmd(a))
	root.AddCommand(newReplayCmd(a))
	root.AddCommand(newTailCmd(a))
	root.AddCommand(newIndexCmd(a))
	root.AddCommand(newConfigCmd(a))
	return root
}

// loadConfig reads the config file once, with environment overrides
// applied. A missing file yields the defaults.
func (a *app) loadConfig() (*config.Config, error) {
	if a.cfg != nil {
		return a.cfg, nil
	}
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config after environment overrides: %w", err)
	}
	a.cfg = cfg
	return cfg, nil
}

// configFile returns the config path to hand to the observer, or "" when
// there is no file to read.
func (a *app) configFile() string {
	path := a.configPath
	if path == "" {
		path = config.DefaultPath
	}
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

// Execute runs the root command and returns the process exit code.
func Execute(version string) int {
	a := newApp()
	root := newRootCmd(a)
	root.Version = version

	if err := root.Execute(); err != nil {
		var ee *exitError
		if errors.As(err, &ee) {
			return ee.code
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}
