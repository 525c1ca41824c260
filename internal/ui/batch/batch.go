// Package batch groups decoded redraw events into flush-terminated batches.
package batch

import (
	"sync"

	"github.com/dshills/nvimui/internal/redraw"
)

// Batch is the ordered events between two flushes. The closing Flush is
// not included.
type Batch struct {
	Seq    uint64
	Events []redraw.Event
}

// Batcher accumulates events into the batch under construction and queues
// each batch closed by a Flush.
type Batcher struct {
	mu      sync.Mutex
	current []redraw.Event
	ready   []Batch
	flushes uint64
	seq     uint64
}

// New creates an empty batcher.
func New() *Batcher {
	return &Batcher{}
}

// Add appends ev to the current batch. A Flush closes the batch and
// reports true.
func (b *Batcher) Add(ev redraw.Event) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := ev.(redraw.Flush); ok {
		b.seq++
		b.ready = append(b.ready, Batch{Seq: b.seq, Events: b.current})
		b.current = nil
		b.flushes++
		return true
	}

	b.current = append(b.current, ev)
	return false
}

// AddAll adds events in order and returns how many batches they closed.
func (b *Batcher) AddAll(events []redraw.Event) int {
	closed := 0
	for _, ev := range events {
		if b.Add(ev) {
			closed++
		}
	}
	return closed
}

// Ready returns the number of complete batches waiting to be drained. It
// equals the number of flushes seen since the last Drain.
func (b *Batcher) Ready() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.ready)
}

// Drain removes and returns every complete batch in creation order. Events
// after the last flush stay in the open batch.
func (b *Batcher) Drain() []Batch {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := b.ready
	b.ready = nil
	return out
}

// Pending returns the number of events in the open batch.
func (b *Batcher) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.current)
}

// Flushes returns the total number of flushes observed.
func (b *Batcher) Flushes() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.flushes
}
