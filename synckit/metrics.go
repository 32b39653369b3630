package synckit

import (
	"sync"
	"sync/atomic"
	"time"
)

// MetricsCollector provides hooks for collecting sync run metrics
type MetricsCollector interface {
	// RecordSyncDuration records how long a sync run took
	RecordSyncDuration(operation string, duration time.Duration)

	// RecordSubmissions records the outcome counts of one run
	RecordSubmissions(succeeded, failed, skipped int)

	// RecordSyncErrors records run-level errors by type
	RecordSyncErrors(operation string, errorType string)

	// RecordQueueDepth records the owner's queue length seen by a run
	RecordQueueDepth(ownerID int64, depth int)
}

// NoOpMetricsCollector is a default implementation that does nothing
type NoOpMetricsCollector struct{}

func (n *NoOpMetricsCollector) RecordSyncDuration(operation string, duration time.Duration) {}
func (n *NoOpMetricsCollector) RecordSubmissions(succeeded, failed, skipped int)            {}
func (n *NoOpMetricsCollector) RecordSyncErrors(operation string, errorType string)         {}
func (n *NoOpMetricsCollector) RecordQueueDepth(ownerID int64, depth int)                   {}

// CounterMetrics is an in-memory MetricsCollector backed by atomic
// counters. It is safe for concurrent use.
type CounterMetrics struct {
	Runs      atomic.Int64
	Succeeded atomic.Int64
	Failed    atomic.Int64
	Skipped   atomic.Int64
	Errors    atomic.Int64

	// total run time in nanoseconds
	durationNanos atomic.Int64

	mu     sync.Mutex
	depths map[int64]int
}

// NewCounterMetrics returns an empty CounterMetrics.
func NewCounterMetrics() *CounterMetrics {
	return &CounterMetrics{depths: make(map[int64]int)}
}

func (c *CounterMetrics) RecordSyncDuration(operation string, duration time.Duration) {
	c.Runs.Add(1)
	c.durationNanos.Add(int64(duration))
}

func (c *CounterMetrics) RecordSubmissions(succeeded, failed, skipped int) {
	c.Succeeded.Add(int64(succeeded))
	c.Failed.Add(int64(failed))
	c.Skipped.Add(int64(skipped))
}

func (c *CounterMetrics) RecordSyncErrors(operation string, errorType string) {
	c.Errors.Add(1)
}

func (c *CounterMetrics) RecordQueueDepth(ownerID int64, depth int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.depths == nil {
		c.depths = make(map[int64]int)
	}
	c.depths[ownerID] = depth
}

// QueueDepth returns the last depth recorded for ownerID.
func (c *CounterMetrics) QueueDepth(ownerID int64) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.depths[ownerID]
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	Runs          int64         `json:"runs"`
	Succeeded     int64         `json:"succeeded"`
	Failed        int64         `json:"failed"`
	Skipped       int64         `json:"skipped"`
	Errors        int64         `json:"errors"`
	TotalDuration time.Duration `json:"total_duration"`
}

// Snapshot copies the counters.
func (c *CounterMetrics) Snapshot() Snapshot {
	return Snapshot{
		Runs:          c.Runs.Load(),
		Succeeded:     c.Succeeded.Load(),
		Failed:        c.Failed.Load(),
		Skipped:       c.Skipped.Load(),
		Errors:        c.Errors.Load(),
		TotalDuration: time.Duration(c.durationNanos.Load()),
	}
}
