package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/nvimui/internal/config"
	"github.com/dshills/nvimui/internal/config/loader"
	"github.com/dshills/nvimui/internal/config/watcher"
	"github.com/dshills/nvimui/internal/logging"
	"github.com/dshills/nvimui/internal/rpc"
	"github.com/dshills/nvimui/internal/session"
	"github.com/dshills/nvimui/internal/trace"
	"github.com/dshills/nvimui/internal/ui/reconcile"
)

// DefaultShutdownTimeout bounds the detach request sent on shutdown.
const DefaultShutdownTimeout = 2 * time.Second

// Options configures the application. Non-zero fields override the
// resolved configuration.
type Options struct {
	// ConfigPath is the configuration file. Empty uses defaults and the
	// environment only.
	ConfigPath string

	// WatchConfig reloads the log level when ConfigPath changes.
	WatchConfig bool

	// Server is a socket path or host:port of a listening editor.
	Server string

	// LogLevel overrides the configured log level.
	LogLevel string

	// Record writes the inbound stream to this trace file.
	Record string

	// Replay plays a recorded trace instead of connecting to an editor.
	Replay string

	// Args are appended to the embedded editor's arguments, typically
	// files to open.
	Args []string

	// Width and Height override the attach size.
	Width  int
	Height int

	// LogOutput receives log output when no log file is configured.
	// Defaults to os.Stderr.
	LogOutput io.Writer

	// Transport, when set, is used instead of dialing or spawning.
	Transport rpc.Transport

	// Environ is the environment read for NVIMUI_* settings. Nil means
	// the process environment.
	Environ []string

	// ShutdownTimeout bounds detach on shutdown. Zero means
	// DefaultShutdownTimeout.
	ShutdownTimeout time.Duration
}

// Application is one UI connected to one editor.
type Application struct {
	opts Options

	cfgMu sync.RWMutex
	cfg   *config.Config

	log     *logging.Logger
	logFile io.Closer
	metrics *Metrics

	id        string
	target    string
	replaying bool

	recorder *trace.Recorder
	client   *rpc.Client
	session  *session.Session
	watcher  *watcher.Watcher

	running      atomic.Bool
	shutdownOnce sync.Once
	shutdownErr  error
}

// New resolves configuration and connects the transport. The returned
// application has not started reading; call Run.
func New(ctx context.Context, opts Options) (*Application, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, initError("config", err)
	}

	log, logFile, err := newLogger(cfg.Logging, opts.LogOutput)
	if err != nil {
		return nil, initError("logging", err)
	}

	app := &Application{
		opts:    opts,
		cfg:     cfg,
		log:     log,
		logFile: logFile,
		metrics: NewMetrics(),
		id:      uuid.NewString(),
	}

	if err := app.init(ctx); err != nil {
		app.closeResources()
		return nil, err
	}
	return app, nil
}

func (a *Application) init(ctx context.Context) error {
	cfg := a.cfg
	log := a.log.WithComponent("app")

	transport, err := a.connect(ctx)
	if err != nil {
		return initError("transport", err)
	}

	clientOpts := []rpc.Option{rpc.WithLogger(a.log)}
	if cfg.Trace.Record != "" && !a.replaying {
		rec, err := trace.Create(cfg.Trace.Record, a.id)
		if err != nil {
			transport.Close()
			return initError("trace", err)
		}
		a.recorder = rec
		clientOpts = append(clientOpts, rpc.WithTrace(rec))
		log.Info("recording to %s", cfg.Trace.Record)
	}
	a.client = rpc.New(transport, clientOpts...)

	a.session = session.New(a.client, session.Options{
		ID:           a.id,
		Width:        cfg.UI.Width,
		Height:       cfg.UI.Height,
		ExtMultigrid: cfg.UI.ExtMultigrid,
		ExtCmdline:   cfg.UI.ExtCmdline,
		ExtMessages:  cfg.UI.ExtMessages,
		RGB:          cfg.UI.RGB,
		Screen: reconcile.Options{
			ForceCloseOnDestroy: cfg.UI.ForceCloseOnDestroy,
			CellWidth:           cfg.UI.CellWidth,
			CellHeight:          cfg.UI.CellHeight,
			Logger:              a.log,
		},
		Logger:  a.log,
		OnFlush: a.metrics.RecordFlush,
		OnNotification: func(*rpc.Notification) {
			a.metrics.RecordNotification()
		},
	})

	if a.opts.WatchConfig && a.opts.ConfigPath != "" {
		w, err := watcher.New(a.opts.ConfigPath, watcher.WithErrorHandler(func(err error) {
			log.Warn("config watcher: %v", err)
		}))
		if err != nil {
			return initError("config watcher", err)
		}
		w.OnChange(a.reload)
		a.watcher = w
	}
	return nil
}

// loadConfig resolves the file and environment layers, then the
// overrides in opts.
func loadConfig(opts Options) (*config.Config, error) {
	environ := opts.Environ
	if environ == nil {
		environ = os.Environ()
	}
	cfg, err := config.LoadWith(loader.DefaultFS(), opts.ConfigPath,
		loader.NewEnvFrom(config.EnvPrefix, environ))
	if err != nil {
		return nil, err
	}
	applyOverrides(cfg, opts)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyOverrides(cfg *config.Config, opts Options) {
	if opts.Server != "" {
		cfg.Remote.Address = opts.Server
	}
	if opts.LogLevel != "" {
		cfg.Logging.Level = opts.LogLevel
	}
	if opts.Record != "" {
		cfg.Trace.Record = opts.Record
	}
	if len(opts.Args) > 0 {
		cfg.Remote.Args = append(slices.Clone(cfg.Remote.Args), opts.Args...)
	}
	if opts.Width > 0 {
		cfg.UI.Width = opts.Width
	}
	if opts.Height > 0 {
		cfg.UI.Height = opts.Height
	}
}

// connect opens the transport: an injected one, a replayed trace, a
// socket, or an embedded process, in that order of preference.
func (a *Application) connect(ctx context.Context) (rpc.Transport, error) {
	remote := a.cfg.Remote

	switch {
	case a.opts.Transport != nil:
		a.target = "transport"
		return a.opts.Transport, nil

	case a.opts.Replay != "":
		rep, err := trace.Open(a.opts.Replay)
		if err != nil {
			return nil, NewOperationError("replay", a.opts.Replay, err)
		}
		a.target = a.opts.Replay
		a.replaying = true
		a.log.Info("replaying session %s recorded %s", rep.Header.SessionID, rep.Header.Started.Format(time.RFC3339))
		return rep, nil

	case remote.Address != "":
		t, err := rpc.Dial(ctx, remote.Address)
		if err != nil {
			return nil, NewOperationError("connect", remote.Address, err)
		}
		a.target = remote.Address
		return t, nil

	default:
		t, err := rpc.StartProcess(context.Background(), rpc.ProcessConfig{
			Command: remote.Command,
			Args:    remote.Args,
			Env:     envMap(remote.Env),
			WorkDir: remote.WorkDir,
		})
		if err != nil {
			return nil, NewOperationError("spawn", remote.Command, err)
		}
		a.target = remote.Command
		return t, nil
	}
}

// envMap converts KEY=VALUE pairs. Entries without '=' are dropped.
func envMap(pairs []string) map[string]string {
	if len(pairs) == 0 {
		return nil
	}
	m := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			continue
		}
		m[k] = v
	}
	return m
}

// reload re-reads the configuration file after a change. Only settings
// that can change on a live session are applied.
func (a *Application) reload(ev watcher.Event) {
	log := a.log.WithComponent("app")

	cfg, err := loadConfig(a.opts)
	if err != nil {
		log.Warn("reload %s (%s): %v", ev.Path, ev.Op, err)
		return
	}

	a.cfgMu.Lock()
	old := a.cfg
	a.cfg = cfg
	a.cfgMu.Unlock()

	if cfg.Logging.Level != old.Logging.Level {
		a.log.SetLevel(logging.ParseLevel(cfg.Logging.Level))
		log.Info("log level %s", cfg.Logging.Level)
	}
}

// Config returns the current configuration.
func (a *Application) Config() *config.Config {
	a.cfgMu.RLock()
	defer a.cfgMu.RUnlock()
	return a.cfg
}

// Session returns the UI session.
func (a *Application) Session() *session.Session {
	return a.session
}

// Screen returns the session's screen model.
func (a *Application) Screen() *reconcile.Screen {
	return a.session.Screen()
}

// Metrics returns the application metrics.
func (a *Application) Metrics() *Metrics {
	return a.metrics
}

// Logger returns the root logger.
func (a *Application) Logger() *logging.Logger {
	return a.log
}

// Replaying reports whether the application plays a recorded trace.
func (a *Application) Replaying() bool {
	return a.replaying
}

// IsRunning reports whether Run is in progress.
func (a *Application) IsRunning() bool {
	return a.running.Load()
}

// Run starts the client, attaches the UI and consumes redraws until ctx
// is done or the editor goes away. An editor closing the stream is a
// normal exit and returns nil.
func (a *Application) Run(ctx context.Context) error {
	if !a.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer a.running.Store(false)

	if err := a.client.Start(ctx); err != nil {
		return NewOperationError("start", a.target, err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- a.session.Run(runCtx)
	}()

	if !a.replaying {
		if err := a.session.Attach(ctx); err != nil {
			cancel()
			<-done
			return NewOperationError("attach", a.target, err)
		}
	}

	err := <-done
	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		return nil
	case errors.Is(err, io.EOF), errors.Is(err, rpc.ErrClosed):
		return nil
	default:
		return NewOperationError("run", a.target, err)
	}
}

// Input sends keys to the editor.
func (a *Application) Input(keys string) error {
	if err := a.session.Input(keys); err != nil {
		a.metrics.RecordInputDropped()
		return err
	}
	a.metrics.RecordInput()
	return nil
}

// Resize asks the editor for a new UI size.
func (a *Application) Resize(ctx context.Context, width, height int) error {
	return a.session.Resize(ctx, width, height)
}

// DumpScreen writes the text of every grid to w in grid id order.
func (a *Application) DumpScreen(w io.Writer) error {
	screen := a.session.Screen()
	ids := screen.GridIDs()
	slices.Sort(ids)
	for _, id := range ids {
		g, ok := screen.GetGrid(id)
		if !ok {
			continue
		}
		if _, err := fmt.Fprintf(w, "--- grid %d (%dx%d)\n", id, g.Width, g.Height); err != nil {
			return err
		}
		for row := range g.Cells {
			if _, err := fmt.Fprintln(w, strings.TrimRight(g.Text(row), " ")); err != nil {
				return err
			}
		}
	}
	return nil
}

// Shutdown detaches the UI and releases every resource. It is safe to
// call more than once; later calls return the first result.
func (a *Application) Shutdown(ctx context.Context) error {
	a.shutdownOnce.Do(func() {
		a.shutdownErr = a.shutdown(ctx)
	})
	return a.shutdownErr
}

func (a *Application) shutdown(ctx context.Context) error {
	log := a.log.WithComponent("app")

	var detachErr error
	if a.session.Attached() && a.client.Connected() {
		timeout := a.opts.ShutdownTimeout
		if timeout <= 0 {
			timeout = DefaultShutdownTimeout
		}
		dctx, cancel := context.WithTimeout(ctx, timeout)
		err := a.session.Detach(dctx)
		cancel()
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			detachErr = fmt.Errorf("%w: %w", ErrShutdownTimeout, err)
		case err != nil && !errors.Is(err, rpc.ErrDisconnected):
			detachErr = err
		}
	}

	snap := a.metrics.Snapshot()
	screen := a.session.Screen().Stats()
	log.Info("session %s: %d batches in %d flushes, %d events, %d soft errors, avg apply %s, uptime %s",
		a.id, snap.BatchCount, snap.FlushCount, screen.Events, screen.SoftErrors,
		snap.AvgFlushTime(), snap.Uptime.Round(time.Millisecond))

	return errors.Join(detachErr, a.closeResources())
}

// closeResources closes whatever New managed to create.
func (a *Application) closeResources() error {
	var errs []error
	if a.watcher != nil {
		if err := a.watcher.Close(); !errors.Is(err, watcher.ErrClosed) {
			errs = append(errs, err)
		}
	}
	if a.client != nil {
		errs = append(errs, a.client.Close())
	}
	if a.recorder != nil {
		errs = append(errs, a.recorder.Close())
	}
	if a.logFile != nil {
		errs = append(errs, a.logFile.Close())
	}
	return errors.Join(errs...)
}
