// Package session attaches to a remote editor as an external UI and runs
// the consumer loop that turns redraw notifications into screen state.
//
// A Session owns one rpc.Client and one reconcile.Screen. Run is the only
// goroutine that decodes, batches and reconciles; the Screen's read
// surface may be used from any goroutine.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/nvimui/internal/logging"
	"github.com/dshills/nvimui/internal/redraw"
	"github.com/dshills/nvimui/internal/rpc"
	"github.com/dshills/nvimui/internal/ui/batch"
	"github.com/dshills/nvimui/internal/ui/reconcile"
)

// Remote API methods used by the session.
const (
	MethodAttach    = "nvim_ui_attach"
	MethodDetach    = "nvim_ui_detach"
	MethodTryResize = "nvim_ui_try_resize"
	MethodInput     = "nvim_input"

	notificationRedraw = "redraw"
)

// ErrNotAttached is returned by operations that need an attached UI.
var ErrNotAttached = errors.New("session not attached")

// Options configures a Session.
type Options struct {
	// ID identifies the session in logs and recordings. Empty means a
	// fresh random id.
	ID string

	Width  int
	Height int

	// UI extensions requested on attach.
	ExtMultigrid bool
	ExtCmdline   bool
	ExtMessages  bool
	RGB          bool

	Screen reconcile.Options
	Logger *logging.Logger

	// OnFlush runs on the consumer goroutine after each group of batches
	// is applied, with the time the apply took.
	OnFlush func(batches int, elapsed time.Duration)

	// OnNotification receives notifications other than redraw.
	OnNotification func(n *rpc.Notification)
}

// DefaultOptions returns an 80x24 multigrid RGB session.
func DefaultOptions() Options {
	return Options{
		Width:        80,
		Height:       24,
		ExtMultigrid: true,
		RGB:          true,
		Screen:       reconcile.DefaultOptions(),
	}
}

// Stats counts consumer-side work.
type Stats struct {
	Notifications atomic.Uint64
	Redraws       atomic.Uint64
	Batches       atomic.Uint64
	Requests      atomic.Uint64
	Continuations atomic.Uint64
}

// Session is one attached UI.
type Session struct {
	id      string
	client  *rpc.Client
	decoder *redraw.Decoder
	batcher *batch.Batcher
	screen  *reconcile.Screen
	log     *logging.Logger
	opts    Options

	attached atomic.Bool
	stats    Stats
}

// New creates a session over a started client.
func New(client *rpc.Client, opts Options) *Session {
	id := opts.ID
	if id == "" {
		id = uuid.NewString()
	}
	log := logging.OrNull(opts.Logger).WithComponent("session").WithField("session", id)
	if opts.Screen.Logger == nil {
		opts.Screen.Logger = opts.Logger
	}
	return &Session{
		id:      id,
		client:  client,
		decoder: redraw.NewDecoder(opts.Logger),
		batcher: batch.New(),
		screen:  reconcile.NewScreen(opts.Screen),
		log:     log,
		opts:    opts,
	}
}

// ID returns the session's unique id.
func (s *Session) ID() string {
	return s.id
}

// Screen returns the screen model.
func (s *Session) Screen() *reconcile.Screen {
	return s.screen
}

// Client returns the underlying RPC client.
func (s *Session) Client() *rpc.Client {
	return s.client
}

// Decoder returns the redraw decoder, for its counters.
func (s *Session) Decoder() *redraw.Decoder {
	return s.decoder
}

// Stats returns the session counters.
func (s *Session) Stats() *Stats {
	return &s.stats
}

// Attached reports whether the UI is attached.
func (s *Session) Attached() bool {
	return s.attached.Load()
}

func (s *Session) attachOptions() map[string]any {
	return map[string]any{
		"rgb":           s.opts.RGB,
		"ext_linegrid":  true,
		"ext_multigrid": s.opts.ExtMultigrid,
		"ext_cmdline":   s.opts.ExtCmdline,
		"ext_messages":  s.opts.ExtMessages,
	}
}

// Attach registers this session as a UI of the remote editor. Redraw
// notifications start arriving once it succeeds; Run must be consuming
// them.
func (s *Session) Attach(ctx context.Context) error {
	if s.attached.Load() {
		return nil
	}
	f := s.client.Call(MethodAttach, s.opts.Width, s.opts.Height, s.attachOptions())
	if _, err := f.Wait(ctx); err != nil {
		return fmt.Errorf("attach %dx%d: %w", s.opts.Width, s.opts.Height, err)
	}
	s.attached.Store(true)
	s.log.Info("attached %dx%d", s.opts.Width, s.opts.Height)
	return nil
}

// Resize asks the editor to resize the UI.
func (s *Session) Resize(ctx context.Context, width, height int) error {
	if !s.attached.Load() {
		return ErrNotAttached
	}
	if _, err := s.client.Call(MethodTryResize, width, height).Wait(ctx); err != nil {
		return fmt.Errorf("resize %dx%d: %w", width, height, err)
	}
	return nil
}

// Input sends keys in the editor's key notation. It does not wait for the
// editor.
func (s *Session) Input(keys string) error {
	if !s.attached.Load() {
		return ErrNotAttached
	}
	return s.client.Send(MethodInput, keys)
}

// Detach unregisters the UI.
func (s *Session) Detach(ctx context.Context) error {
	if !s.attached.Swap(false) {
		return ErrNotAttached
	}
	if _, err := s.client.Call(MethodDetach).Wait(ctx); err != nil {
		return fmt.Errorf("detach: %w", err)
	}
	s.log.Info("detached")
	return nil
}

// Run consumes inbound traffic until ctx is done or the client
// disconnects. Traffic queued before the disconnect is still processed.
// The returned error wraps rpc.ErrDisconnected or ctx.Err().
func (s *Session) Run(ctx context.Context) error {
	notifications := s.client.Notifications()
	requests := s.client.Requests()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.client.Done():
			s.drain()
			s.attached.Store(false)
			return fmt.Errorf("session %s: %w", s.id, s.client.Err())
		case <-notifications.Ready():
		case <-requests.Ready():
		case <-s.client.Continuations():
		}
		s.drain()
	}
}

// drain processes everything currently queued.
func (s *Session) drain() {
	for {
		n, ok := s.client.Notifications().Pop()
		if !ok {
			break
		}
		s.handleNotification(n)
	}
	for {
		req, ok := s.client.Requests().Pop()
		if !ok {
			break
		}
		s.handleRequest(req)
	}
	if ran := s.client.RunContinuations(); ran > 0 {
		s.stats.Continuations.Add(uint64(ran))
	}
}

func (s *Session) handleNotification(n *rpc.Notification) {
	s.stats.Notifications.Add(1)
	if n.Method != notificationRedraw {
		s.log.Debug("notification %s", n.Method)
		if s.opts.OnNotification != nil {
			s.opts.OnNotification(n)
		}
		return
	}

	s.stats.Redraws.Add(1)
	s.batcher.AddAll(s.decoder.Decode(n.Params))
	if s.batcher.Ready() == 0 {
		return
	}
	batches := s.batcher.Drain()
	start := time.Now()
	s.screen.Apply(batches...)
	s.stats.Batches.Add(uint64(len(batches)))
	if s.opts.OnFlush != nil {
		s.opts.OnFlush(len(batches), time.Since(start))
	}
}

// handleRequest answers requests from the editor. A UI serves no methods.
func (s *Session) handleRequest(req *rpc.Request) {
	s.stats.Requests.Add(1)
	s.log.Warn("unsupported request %s", req.Method)
	payload := []any{0, fmt.Sprintf("method not supported: %s", req.Method)}
	if err := s.client.Respond(req.ID, payload, nil); err != nil {
		s.log.Debug("respond to %d: %v", req.ID, err)
	}
}
