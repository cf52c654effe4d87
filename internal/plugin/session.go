package plugin

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"sudohist/internal/config"
	"sudohist/internal/history"
	"sudohist/internal/linebuf"
	"sudohist/internal/logging"
	"sudohist/internal/options"
	"sudohist/internal/pathresolve"
	"sudohist/internal/store"
)

// Session observes one privileged command invocation. It is not safe for
// concurrent use.
type Session struct {
	id       string
	user     string
	settings Settings

	logger *logging.Logger
	writer *history.Writer
	line   *linebuf.Reconstructor
	index  *store.Store
	now    func() time.Time
	ended  bool
}

// Settings are the effective values after merging plugin options over the
// optional config file.
type Settings struct {
	Options      options.Options
	HistoryPath  string
	LinePrefix   string
	LogLevel     logging.Level
	LogFormat    logging.Format
	LogOutput    string
	LogFile      string
	IndexPath    string
	IndexTimeout time.Duration
}

type initConfig struct {
	lookup    pathresolve.LookupFunc
	logWriter io.Writer
	logger    *slog.Logger
	now       func() time.Time
	newID     func() string
}

// InitOption customizes Initialize.
type InitOption func(*initConfig)

// WithLookup replaces the system user database lookup.
func WithLookup(fn pathresolve.LookupFunc) InitOption {
	return func(c *initConfig) { c.lookup = fn }
}

// WithLogWriter sends diagnostics to w instead of stderr. The verbosity and
// format still come from the options.
func WithLogWriter(w io.Writer) InitOption {
	return func(c *initConfig) { c.logWriter = w }
}

// WithLogger injects a ready-made diagnostics logger, ignoring the logging
// options entirely.
func WithLogger(l *slog.Logger) InitOption {
	return func(c *initConfig) { c.logger = l }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) InitOption {
	return func(c *initConfig) { c.now = now }
}

// WithSessionID overrides the session id generator.
func WithSessionID(fn func() string) InitOption {
	return func(c *initConfig) { c.newID = fn }
}

// Initialize creates a session from the host's key=value vectors. It never
// fails: every problem is reported as a diagnostic and a safe fallback is
// used, so that auditing can never block a command.
func Initialize(userEnv, settings []string, version string, userInfo, pluginOptions []string, opts ...InitOption) *Session {
	ic := initConfig{
		now:   time.Now,
		newID: func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(&ic)
	}

	envMap := options.Parse(userEnv)
	settingsMap := options.Parse(settings)
	infoMap := options.Parse(userInfo)
	pluginMap := options.Parse(pluginOptions)

	opt := options.FromMap(pluginMap)

	var (
		cfg    *config.Config
		cfgErr error
	)
	if opt.Config != "" {
		cfg, cfgErr = config.Load(opt.Config)
	}
	eff := merge(opt, cfg)

	s := &Session{
		id:       ic.newID(),
		user:     infoMap["user"],
		settings: eff,
		now:      ic.now,
	}

	s.logger = buildLogger(eff, ic)
	s.logger = s.logger.WithSession(s.id)
	log := s.logger.Logger

	if cfgErr != nil {
		log.Error("ignoring config file", "path", opt.Config, "error", cfgErr)
	}

	log.Debug("INIT", "version", version)
	log.Debug("INIT user_env", mapGroup("user_env", envMap))
	log.Debug("INIT settings", mapGroup("settings", settingsMap))
	log.Debug("INIT user_info", mapGroup("user_info", infoMap))
	log.Debug("INIT plugin_options", mapGroup("plugin_options", pluginMap))

	if s.user == "" {
		log.Error("user_info has no user entry; history path will not be expanded")
	}

	resolver := pathresolve.New(ic.lookup, log)
	s.settings.HistoryPath = resolver.Resolve(eff.Options.Histfile, s.user).Path

	var mirror history.Mirror
	if eff.IndexPath != "" {
		s.settings.IndexPath = resolver.Resolve(eff.IndexPath, s.user).Path
		mirror = s.openIndex()
	}

	wopts := []history.Option{history.WithLogger(log), history.WithClock(s.now)}
	if mirror != nil {
		wopts = append(wopts, history.WithMirror(mirror))
	}
	s.writer = history.NewWriter(s.settings.HistoryPath, eff.LinePrefix, wopts...)
	s.line = linebuf.New(s.writer)

	log.Debug("INIT history", "path", s.settings.HistoryPath, "prefix", eff.LinePrefix)
	return s
}

// merge lays the plugin options over the config file values. Options the
// host passed explicitly always win.
func merge(o options.Options, cfg *config.Config) Settings {
	eff := Settings{
		LogOutput:    "stderr",
		IndexTimeout: store.DefaultBusyTimeout,
	}

	if cfg != nil {
		if !o.IsSet(options.KeyHistfile) && cfg.History.Path != "" {
			o.Histfile = cfg.History.Path
		}
		if !o.IsSet(options.KeyAsComment) {
			o.AsComment = cfg.History.AsComment
		}
		if !o.IsSet(options.KeyPrefix) {
			o.Prefix = cfg.History.Prefix
		}
		if !o.IsSet(options.KeyVerbose) {
			o.Verbose = cfg.Logging.Verbose
		}
		if !o.IsSet(options.KeyLogFormat) && cfg.Logging.Format != "" {
			o.LogFormat = cfg.Logging.Format
		}
		if !o.IsSet(options.KeyDatabase) && cfg.Index.Enabled {
			o.Database = cfg.Index.Path
		}
		if cfg.Logging.Output != "" {
			eff.LogOutput = cfg.Logging.Output
		}
		eff.LogFile = cfg.Logging.FilePath
		if cfg.Index.BusyTimeoutMs > 0 {
			eff.IndexTimeout = time.Duration(cfg.Index.BusyTimeoutMs) * time.Millisecond
		}
	}

	eff.Options = o
	eff.LinePrefix = o.LinePrefix()
	eff.IndexPath = o.Database
	eff.LogLevel = logging.ForVerbosity(o.Verbose)
	if cfg != nil && cfg.Logging.Level != "" && !o.IsSet(options.KeyVerbose) {
		if lvl, err := logging.ParseLevel(cfg.Logging.Level); err == nil {
			eff.LogLevel = lvl
		}
	}
	eff.LogFormat, _ = logging.ParseFormat(o.LogFormat)
	return eff
}

func buildLogger(eff Settings, ic initConfig) *logging.Logger {
	if ic.logger != nil {
		return logging.Wrap(ic.logger)
	}

	lc := &logging.Config{
		Level:     eff.LogLevel,
		Format:    eff.LogFormat,
		Output:    eff.LogOutput,
		FilePath:  eff.LogFile,
		Component: "sudohist",
		Writer:    ic.logWriter,
	}
	l, err := logging.New(lc)
	if err == nil {
		return l
	}

	lc.Output = "stderr"
	fallback, ferr := logging.New(lc)
	if ferr != nil {
		return logging.Discard()
	}
	fallback.Error("cannot open diagnostics output, using stderr", "error", err)
	return fallback
}

// openIndex opens the SQLite index and registers the session. Failures
// leave the session without an index.
func (s *Session) openIndex() history.Mirror {
	log := s.logger.Logger

	idx, err := store.Open(s.settings.IndexPath, s.settings.IndexTimeout)
	if err != nil {
		log.Error("cannot open history index", "path", s.settings.IndexPath, "error", err)
		return nil
	}

	err = idx.InsertSession(&store.Session{
		ID:        s.id,
		User:      s.user,
		Histfile:  s.settings.HistoryPath,
		StartedNs: s.now().UnixNano(),
	})
	if err != nil {
		log.Error("cannot register session in history index", "path", s.settings.IndexPath, "error", err)
		idx.Close()
		return nil
	}

	s.index = idx
	return idx.Mirror(s.id)
}

// OnCommandStart records the invoked command line. The command is always
// accepted.
func (s *Session) OnCommandStart(argv []string, commandInfo []string) (res Result) {
	defer s.recoverCallback("OnCommandStart", &res)

	line := strings.Join(argv, " ")
	log := s.logger.Logger
	log.Debug("EXEC " + line)
	if log.Enabled(context.Background(), logging.LevelDebug) {
		info, _ := json.MarshalIndent(redactedMap(options.Parse(commandInfo)), "", "    ")
		log.Debug("EXEC info " + string(info))
	}

	s.writer.Append(line)
	return Accept
}

// OnInput feeds terminal input to the line reconstructor. Input starting with
// ESC is rejected; everything else is accepted.
func (s *Session) OnInput(buf []byte) (res Result) {
	defer s.recoverCallback("OnInput", &res)

	if !s.line.Feed(buf) {
		s.logger.Debug("rejecting escape sequence input", "bytes", len(buf))
		return Reject
	}
	return Accept
}

// OnOutput accepts terminal output without looking at it.
func (s *Session) OnOutput(buf []byte) Result {
	return Accept
}

// OnSessionEnd reports how the command finished and releases the session's
// resources. Nothing is written to the history file.
func (s *Session) OnSessionEnd(exitStatus int, errno int) {
	defer s.recoverCallback("OnSessionEnd", nil)
	if s.ended {
		return
	}
	s.ended = true

	log := s.logger.Logger
	if errno == 0 {
		log.Debug("CLOSE command returned", "status", exitStatus)
	} else {
		log.Debug("CLOSE failed to execute, execve returned", "errno", errno, "name", ErrnoName(errno))
	}
	if n := s.line.Len(); n > 0 {
		log.Debug("discarding unterminated input", "bytes", n)
	}

	if s.index != nil {
		if err := s.index.EndSession(s.id, s.now().UnixNano(), exitStatus, errno); err != nil {
			log.Error("cannot close session in history index", "error", err)
		}
		s.index.Close()
		s.index = nil
	}
	s.logger.Close()
}

// recoverCallback turns a panic into a diagnostic. A panicking callback
// still accepts, so a bug here never blocks the command.
func (s *Session) recoverCallback(name string, res *Result) {
	r := recover()
	if r == nil {
		return
	}
	s.logger.Error("internal error in callback", "callback", name, "panic", r)
	if res != nil {
		*res = Accept
	}
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// User returns the invoking user's name.
func (s *Session) User() string { return s.user }

// Settings returns the effective settings.
func (s *Session) Settings() Settings { return s.settings }

// HistoryPath returns the resolved history file path.
func (s *Session) HistoryPath() string { return s.settings.HistoryPath }

// PendingLine returns the input typed since the last carriage return.
func (s *Session) PendingLine() string { return s.line.Line() }

// LastWriteError returns the failure of the most recent history write.
func (s *Session) LastWriteError() error { return s.writer.LastError() }

func mapGroup(name string, m options.Map) slog.Attr {
	attrs := make([]any, 0, len(m))
	for _, k := range m.Keys() {
		attrs = append(attrs, slog.String(k, m[k]))
	}
	return slog.Group(name, attrs...)
}

// redactedMap copies m, masking values whose keys look sensitive.
func redactedMap(m options.Map) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		if logging.IsSensitiveKey(k) {
			v = "[REDACTED]"
		}
		out[k] = v
	}
	return out
}
