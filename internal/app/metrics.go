package app

import (
	"sync/atomic"
	"time"
)

// Metrics tracks redraw throughput and apply latency.
type Metrics struct {
	// Flushes (groups of batches applied together)
	flushCount   atomic.Uint64
	flushTotalNs atomic.Int64
	flushMinNs   atomic.Int64
	flushMaxNs   atomic.Int64
	lastFlushNs  atomic.Int64
	batchCount   atomic.Uint64

	// Input sent to the editor
	inputCount   atomic.Uint64
	inputDropped atomic.Uint64

	// Notifications other than redraw
	otherNotifications atomic.Uint64

	startTime time.Time
}

// NewMetrics creates a new metrics tracker.
func NewMetrics() *Metrics {
	m := &Metrics{
		startTime: time.Now(),
	}
	// Initialize min to max int64 so the first flush will be smaller
	m.flushMinNs.Store(1<<63 - 1)
	return m
}

// RecordFlush records one group of applied batches and how long the
// apply took.
func (m *Metrics) RecordFlush(batches int, duration time.Duration) {
	ns := duration.Nanoseconds()

	m.flushCount.Add(1)
	m.batchCount.Add(uint64(batches))
	m.flushTotalNs.Add(ns)
	m.lastFlushNs.Store(ns)

	for {
		old := m.flushMinNs.Load()
		if ns >= old || m.flushMinNs.CompareAndSwap(old, ns) {
			break
		}
	}
	for {
		old := m.flushMaxNs.Load()
		if ns <= old || m.flushMaxNs.CompareAndSwap(old, ns) {
			break
		}
	}
}

// RecordInput records keys sent to the editor.
func (m *Metrics) RecordInput() {
	m.inputCount.Add(1)
}

// RecordInputDropped records input that could not be sent.
func (m *Metrics) RecordInputDropped() {
	m.inputDropped.Add(1)
}

// RecordNotification records a non-redraw notification.
func (m *Metrics) RecordNotification() {
	m.otherNotifications.Add(1)
}

// Snapshot returns a snapshot of current metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	flushCount := m.flushCount.Load()

	var avgFlushNs int64
	if flushCount > 0 {
		avgFlushNs = m.flushTotalNs.Load() / int64(flushCount)
	}

	minFlushNs := m.flushMinNs.Load()
	if flushCount == 0 {
		minFlushNs = 0
	}

	return MetricsSnapshot{
		FlushCount:         flushCount,
		BatchCount:         m.batchCount.Load(),
		AvgFlushTimeNs:     avgFlushNs,
		MinFlushTimeNs:     minFlushNs,
		MaxFlushTimeNs:     m.flushMaxNs.Load(),
		LastFlushNs:        m.lastFlushNs.Load(),
		InputCount:         m.inputCount.Load(),
		InputDropped:       m.inputDropped.Load(),
		OtherNotifications: m.otherNotifications.Load(),
		Uptime:             time.Since(m.startTime),
	}
}

// Reset clears all counters and restarts the uptime clock.
func (m *Metrics) Reset() {
	m.flushCount.Store(0)
	m.flushTotalNs.Store(0)
	m.flushMinNs.Store(1<<63 - 1)
	m.flushMaxNs.Store(0)
	m.lastFlushNs.Store(0)
	m.batchCount.Store(0)
	m.inputCount.Store(0)
	m.inputDropped.Store(0)
	m.otherNotifications.Store(0)
	m.startTime = time.Now()
}

// MetricsSnapshot is a point-in-time snapshot of metrics.
type MetricsSnapshot struct {
	FlushCount     uint64
	BatchCount     uint64
	AvgFlushTimeNs int64
	MinFlushTimeNs int64
	MaxFlushTimeNs int64
	LastFlushNs    int64

	InputCount   uint64
	InputDropped uint64

	OtherNotifications uint64

	Uptime time.Duration
}

// AvgFlushTime returns the average apply time as a Duration.
func (s MetricsSnapshot) AvgFlushTime() time.Duration {
	return time.Duration(s.AvgFlushTimeNs)
}

// BatchesPerFlush returns the mean number of batches applied per flush.
func (s MetricsSnapshot) BatchesPerFlush() float64 {
	if s.FlushCount == 0 {
		return 0
	}
	return float64(s.BatchCount) / float64(s.FlushCount)
}
