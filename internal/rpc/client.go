package rpc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/dshills/nvimui/internal/logging"
)

// Client owns a Transport, correlates responses to pending calls and
// queues inbound traffic for a consumer.
type Client struct {
	transport Transport
	log       *logging.Logger
	trace     io.Writer

	nextID atomic.Uint64

	pendingMu sync.Mutex
	pending   map[uint64]*Future

	outbound      *Queue[[]byte]
	requests      *Queue[*Request]
	notifications *Queue[*Notification]
	continuations *Queue[func()]

	started   atomic.Bool
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	errMu sync.RWMutex
	err   error

	stats Stats
}

// Stats counts client-side protocol events.
type Stats struct {
	FramesIn        atomic.Uint64
	FramesOut       atomic.Uint64
	MalformedFrames atomic.Uint64
	UnknownIDs      atomic.Uint64
	TraceFailures   atomic.Uint64
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the client logger.
func WithLogger(l *logging.Logger) Option {
	return func(c *Client) {
		c.log = logging.OrNull(l).WithComponent("rpc")
	}
}

// WithTrace copies every inbound byte to w before decoding. A write error
// stops the recording; the session carries on.
func WithTrace(w io.Writer) Option {
	return func(c *Client) {
		c.trace = w
	}
}

// New creates a client over t. Call Start to begin I/O.
func New(t Transport, opts ...Option) *Client {
	c := &Client{
		transport:     t,
		log:           logging.Null,
		pending:       make(map[uint64]*Future),
		outbound:      NewQueue[[]byte](),
		requests:      NewQueue[*Request](),
		notifications: NewQueue[*Notification](),
		continuations: NewQueue[func()](),
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start launches the read and write loops. Cancelling ctx closes the client.
func (c *Client) Start(ctx context.Context) error {
	if c.started.Swap(true) {
		return ErrAlreadyStarted
	}

	c.wg.Add(2)
	go c.readLoop()
	go c.writeLoop()

	go func() {
		select {
		case <-ctx.Done():
			c.disconnect(ctx.Err())
		case <-c.done:
		}
	}()
	return nil
}

// Close disconnects the client and waits for the I/O loops to exit.
func (c *Client) Close() error {
	c.disconnect(ErrClosed)
	if c.started.Load() {
		c.wg.Wait()
	}
	return nil
}

// Done is closed once the client is disconnected.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err returns the disconnection error, or nil while connected.
func (c *Client) Err() error {
	c.errMu.RLock()
	defer c.errMu.RUnlock()
	return c.err
}

// Connected reports whether the client is still usable.
func (c *Client) Connected() bool {
	select {
	case <-c.done:
		return false
	default:
		return true
	}
}

// Stats returns the client's protocol counters.
func (c *Client) Stats() *Stats {
	return &c.stats
}

// Requests is the queue of inbound requests. Each must be answered with
// Respond.
func (c *Client) Requests() *Queue[*Request] {
	return c.requests
}

// Notifications is the queue of inbound notifications.
func (c *Client) Notifications() *Queue[*Notification] {
	return c.notifications
}

// Continuations signals when Future continuations are waiting to run.
func (c *Client) Continuations() <-chan struct{} {
	return c.continuations.Ready()
}

// RunContinuations runs every queued continuation on the calling goroutine
// and returns how many ran.
func (c *Client) RunContinuations() int {
	fns := c.continuations.PopAll()
	for _, fn := range fns {
		fn()
	}
	return len(fns)
}

// Pending returns the number of calls awaiting a response.
func (c *Client) Pending() int {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	return len(c.pending)
}

// Send enqueues a notification. It never waits for the remote.
func (c *Client) Send(method string, args ...any) error {
	if err := c.Err(); err != nil {
		return err
	}
	data, err := encodeNotification(method, args)
	if err != nil {
		return fmt.Errorf("encode notification %s: %w", method, err)
	}
	if !c.outbound.Push(data) {
		return c.disconnectedErr()
	}
	return nil
}

// Call enqueues a request and returns a Future resolved by the matching
// response. The Future is always resolved exactly once: by the response,
// by an encode failure, or by disconnection.
func (c *Client) Call(method string, args ...any) *Future {
	id := c.nextID.Add(1)
	f := newFuture(c, id, method)

	c.pendingMu.Lock()
	if !c.Connected() {
		c.pendingMu.Unlock()
		f.resolve(nil, c.disconnectedErr())
		return f
	}
	c.pending[id] = f
	c.pendingMu.Unlock()

	data, err := encodeRequest(id, method, args)
	if err != nil {
		c.takePending(id)
		f.resolve(nil, fmt.Errorf("encode request %s: %w", method, err))
		return f
	}

	if !c.outbound.Push(data) {
		if c.takePending(id) != nil {
			f.resolve(nil, c.disconnectedErr())
		}
	}
	return f
}

// Respond answers an inbound request. errPayload nil means success.
func (c *Client) Respond(id uint64, errPayload, result any) error {
	if err := c.Err(); err != nil {
		return err
	}
	data, err := encodeResponse(id, errPayload, result)
	if err != nil {
		return fmt.Errorf("encode response %d: %w", id, err)
	}
	if !c.outbound.Push(data) {
		return c.disconnectedErr()
	}
	return nil
}

func (c *Client) takePending(id uint64) *Future {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	f, ok := c.pending[id]
	if !ok {
		return nil
	}
	delete(c.pending, id)
	return f
}

func (c *Client) readLoop() {
	defer c.wg.Done()

	var r io.Reader = c.transport
	if c.trace != nil {
		r = io.TeeReader(r, &traceSink{w: c.trace, log: c.log, stats: &c.stats})
	}
	dec := NewDecoder(r)

	for {
		msg, err := dec.Next()
		if err != nil {
			if errors.Is(err, ErrMalformedFrame) {
				c.stats.MalformedFrames.Add(1)
				c.log.Warn("dropping frame: %v", err)
				continue
			}
			if !c.Connected() {
				return
			}
			if errors.Is(err, io.EOF) {
				c.log.Info("remote closed the stream")
			} else {
				c.log.Error("read failed: %v", err)
			}
			c.disconnect(err)
			return
		}

		c.stats.FramesIn.Add(1)
		c.dispatch(msg)
	}
}

// traceSink forwards reads to the trace writer until its first error.
// It always reports success so the tee never fails a read.
type traceSink struct {
	w     io.Writer
	log   *logging.Logger
	stats *Stats
	err   error
}

func (s *traceSink) Write(p []byte) (int, error) {
	if s.err != nil {
		return len(p), nil
	}
	if _, err := s.w.Write(p); err != nil {
		s.err = err
		s.stats.TraceFailures.Add(1)
		s.log.Error("trace write failed, recording stopped: %v", err)
	}
	return len(p), nil
}

func (c *Client) dispatch(msg Message) {
	switch m := msg.(type) {
	case *Request:
		c.log.Debug("request %d %s", m.ID, m.Method)
		c.requests.Push(m)
	case *Notification:
		c.notifications.Push(m)
	case *Response:
		f := c.takePending(m.ID)
		if f == nil {
			c.stats.UnknownIDs.Add(1)
			c.log.Warn("response for unknown id %d dropped", m.ID)
			return
		}
		if m.Error != nil {
			f.resolve(nil, &RemoteError{Method: f.Method, Payload: m.Error})
			return
		}
		f.resolve(m.Result, nil)
	}
}

func (c *Client) writeLoop() {
	defer c.wg.Done()

	for {
		select {
		case <-c.done:
			return
		case <-c.outbound.Ready():
		}

		// One frame in flight at a time, in enqueue order.
		for {
			frame, ok := c.outbound.Pop()
			if !ok {
				break
			}
			if _, err := c.transport.Write(frame); err != nil {
				if c.Connected() {
					c.log.Error("write failed: %v", err)
				}
				c.disconnect(err)
				return
			}
			c.stats.FramesOut.Add(1)
		}
	}
}

func (c *Client) disconnectedErr() error {
	if err := c.Err(); err != nil {
		return err
	}
	return ErrDisconnected
}

// disconnect tears down the client once. Every pending call is resolved
// with an error wrapping ErrDisconnected and cause.
func (c *Client) disconnect(cause error) {
	c.closeOnce.Do(func() {
		err := fmt.Errorf("%w: %w", ErrDisconnected, cause)

		c.errMu.Lock()
		c.err = err
		c.errMu.Unlock()

		c.pendingMu.Lock()
		close(c.done)
		pending := c.pending
		c.pending = make(map[uint64]*Future)
		c.pendingMu.Unlock()

		c.outbound.Close()
		c.requests.Close()
		c.notifications.Close()

		for _, f := range pending {
			f.resolve(nil, err)
		}

		if n := len(pending); n > 0 {
			c.log.Warn("failed %d pending calls: %v", n, cause)
		}

		if cerr := c.transport.Close(); cerr != nil {
			c.log.Debug("transport close: %v", cerr)
		}
	})
}
