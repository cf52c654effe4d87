package cli

import (
	"fmt"
	"os"
	"os/user"
	"strconv"
	"sync"

	"sudohist/internal/config"
	"sudohist/internal/options"
	"sudohist/internal/plugin"
)

// hostVersion is reported to the observer as the host API version.
const hostVersion = "sudohist-cli/1"

// host drives a plugin session from the CLI. Callbacks are serialized because
// input arrives on its own goroutine.
type host struct {
	mu      sync.Mutex
	session *plugin.Session
	ended   bool
}

// startSession initializes an observer for the current user with the
// effective options.
func (a *app) startSession(extra []string) (*host, error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, err
	}

	info, err := userInfo()
	if err != nil {
		return nil, err
	}

	opts := pluginOptions(cfg, a.configFile(), extra)
	a.logger.Debug("starting session", "plugin_options", opts)

	s := plugin.Initialize(
		os.Environ(),
		[]string{"progname=sudohist", "plugin_path=builtin"},
		hostVersion,
		info,
		opts,
		plugin.WithLogWriter(a.stderr),
	)
	return &host{session: s}, nil
}

// pluginOptions turns the loaded configuration into plugin options. The
// config file is passed along for the settings options cannot express, and
// values derived from cfg, which includes environment overrides, win over
// it. Entries in extra are applied last.
func pluginOptions(cfg *config.Config, cfgFile string, extra []string) []string {
	var opts []string
	if cfgFile != "" {
		opts = append(opts, options.KeyConfig+"="+cfgFile)
	}
	if cfg.History.Path != "" {
		opts = append(opts, options.KeyHistfile+"="+cfg.History.Path)
	}
	if cfg.History.AsComment {
		opts = append(opts, options.KeyAsComment)
	}
	if cfg.History.Prefix != "" {
		opts = append(opts, options.KeyPrefix+"="+cfg.History.Prefix)
	}
	if cfg.Logging.Verbose {
		opts = append(opts, options.KeyVerbose)
	}
	if cfg.Logging.Format != "" {
		opts = append(opts, options.KeyLogFormat+"="+cfg.Logging.Format)
	}
	if cfg.Index.Enabled && cfg.Index.Path != "" {
		opts = append(opts, options.KeyDatabase+"="+cfg.Index.Path)
	}
	return append(opts, extra...)
}

// userInfo describes the invoking user the way the sudo front end does.
func userInfo() ([]string, error) {
	u, err := user.Current()
	if err != nil {
		return nil, fmt.Errorf("look up current user: %w", err)
	}
	info := []string{
		"user=" + u.Username,
		"uid=" + u.Uid,
		"gid=" + u.Gid,
		"pid=" + strconv.Itoa(os.Getpid()),
	}
	if cwd, err := os.Getwd(); err == nil {
		info = append(info, "cwd="+cwd)
	}
	return info, nil
}

func (h *host) commandStart(argv, commandInfo []string) plugin.Result {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.session.OnCommandStart(argv, commandInfo)
}

// input feeds one event. After the session has ended every event is
// rejected.
func (h *host) input(buf []byte) plugin.Result {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ended {
		return plugin.Reject
	}
	return h.session.OnInput(buf)
}

func (h *host) output(buf []byte) plugin.Result {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.session.OnOutput(buf)
}

func (h *host) end(exitStatus, errno int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ended {
		return
	}
	h.ended = true
	h.session.OnSessionEnd(exitStatus, errno)
}
