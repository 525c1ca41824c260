package batch

import (
	"testing"

	"github.com/dshills/nvimui/internal/redraw"
)

func TestBatcher_FlushClosesBatch(t *testing.T) {
	b := New()

	if b.Add(redraw.GridResize{Grid: 1, Width: 80, Height: 24}) {
		t.Error("non-flush event closed a batch")
	}
	b.Add(redraw.GridClear{Grid: 1})
	if b.Ready() != 0 {
		t.Errorf("Ready() = %d before flush", b.Ready())
	}
	if !b.Add(redraw.Flush{}) {
		t.Error("flush did not close the batch")
	}

	batches := b.Drain()
	if len(batches) != 1 {
		t.Fatalf("Drain() returned %d batches, want 1", len(batches))
	}
	if len(batches[0].Events) != 2 {
		t.Errorf("batch has %d events, want 2", len(batches[0].Events))
	}
	if b.Ready() != 0 || len(b.Drain()) != 0 {
		t.Error("drained batches still reported")
	}
}

func TestBatcher_DrainsExactlyFlushCount(t *testing.T) {
	b := New()
	events := []redraw.Event{
		redraw.GridClear{Grid: 1}, redraw.Flush{},
		redraw.GridClear{Grid: 2}, redraw.GridClear{Grid: 3}, redraw.Flush{},
		redraw.Flush{},
		redraw.GridClear{Grid: 4},
	}

	if closed := b.AddAll(events); closed != 3 {
		t.Errorf("AddAll() closed %d, want 3", closed)
	}
	if b.Ready() != 3 {
		t.Errorf("Ready() = %d, want 3", b.Ready())
	}

	batches := b.Drain()
	if len(batches) != 3 {
		t.Fatalf("Drain() = %d batches, want 3", len(batches))
	}
	wantLens := []int{1, 2, 0}
	for i, batch := range batches {
		if len(batch.Events) != wantLens[i] {
			t.Errorf("batch %d has %d events, want %d", i, len(batch.Events), wantLens[i])
		}
		if i > 0 && batch.Seq <= batches[i-1].Seq {
			t.Errorf("batch %d seq %d not after %d", i, batch.Seq, batches[i-1].Seq)
		}
	}

	if b.Pending() != 1 {
		t.Errorf("Pending() = %d, want the unflushed event", b.Pending())
	}
	if b.Flushes() != 3 {
		t.Errorf("Flushes() = %d, want 3", b.Flushes())
	}
}

func TestBatcher_OrderPreserved(t *testing.T) {
	b := New()
	b.Add(redraw.WinPos{Grid: 2})
	b.Add(redraw.GridResize{Grid: 2, Width: 10, Height: 5})
	b.Add(redraw.Flush{})

	batch := b.Drain()[0]
	if _, ok := batch.Events[0].(redraw.WinPos); !ok {
		t.Errorf("first event = %T, want WinPos", batch.Events[0])
	}
	if _, ok := batch.Events[1].(redraw.GridResize); !ok {
		t.Errorf("second event = %T, want GridResize", batch.Events[1])
	}
}
