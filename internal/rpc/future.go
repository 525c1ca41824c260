package rpc

import (
	"context"
	"fmt"
	"sync"

	"github.com/vmihailenco/msgpack/v5"
)

// Future is the handle returned by Call. Dropping a Future before it is
// resolved is allowed; the client still resolves it on response or
// disconnect.
type Future struct {
	ID     uint64
	Method string

	client *Client
	done   chan struct{}

	mu       sync.Mutex
	resolved bool
	result   any
	err      error
	thens    []func(any, error)
}

func newFuture(c *Client, id uint64, method string) *Future {
	return &Future{
		ID:     id,
		Method: method,
		client: c,
		done:   make(chan struct{}),
	}
}

// Done is closed when the future is resolved.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Peek returns the outcome without blocking. resolved is false while the
// call is pending.
func (f *Future) Peek() (result any, resolved bool, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.result, f.resolved, f.err
}

// Wait blocks until the future resolves or ctx is done.
func (f *Future) Wait(ctx context.Context) (any, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-f.done:
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.result, f.err
}

// Decode waits for the result and decodes it into out.
func (f *Future) Decode(ctx context.Context, out any) error {
	res, err := f.Wait(ctx)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	data, err := msgpack.Marshal(res)
	if err != nil {
		return fmt.Errorf("re-encode %s result: %w", f.Method, err)
	}
	if err := msgpack.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s result: %w", f.Method, err)
	}
	return nil
}

// Then registers fn to run after resolution. fn is queued on the client's
// continuation queue and runs during Client.RunContinuations, never on an
// I/O goroutine.
func (f *Future) Then(fn func(result any, err error)) {
	f.mu.Lock()
	if !f.resolved {
		f.thens = append(f.thens, fn)
		f.mu.Unlock()
		return
	}
	result, err := f.result, f.err
	f.mu.Unlock()

	f.schedule(fn, result, err)
}

func (f *Future) resolve(result any, err error) {
	f.mu.Lock()
	if f.resolved {
		f.mu.Unlock()
		return
	}
	f.resolved = true
	f.result = result
	f.err = err
	thens := f.thens
	f.thens = nil
	f.mu.Unlock()

	close(f.done)

	for _, fn := range thens {
		f.schedule(fn, result, err)
	}
}

func (f *Future) schedule(fn func(any, error), result any, err error) {
	f.client.continuations.Push(func() { fn(result, err) })
}
