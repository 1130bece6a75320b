package metrics

import (
	"sync"
	"sync/atomic"
)

// MetricKey is a strongly typed metric identifier.
type MetricKey string

// Metric keys (centralized)
const (
	// Enumeration
	KeysEnumeratedTotal    MetricKey = "keys_enumerated_total"
	EnumerationErrorsTotal MetricKey = "enumeration_errors_total"

	// Per-key outcomes
	KeysCopiedTotal  MetricKey = "keys_copied_total"
	KeysSkippedTotal MetricKey = "keys_skipped_total"
	KeysFailedTotal  MetricKey = "keys_failed_total"

	// Retries
	ReadRetriesTotal  MetricKey = "read_retries_total"
	WriteRetriesTotal MetricKey = "write_retries_total"

	// Reporting
	ReporterErrorsTotal MetricKey = "reporter_errors_total"

	// Endpoint heartbeats
	HeartbeatRunsTotal     MetricKey = "heartbeat_runs_total"
	HeartbeatFailuresTotal MetricKey = "heartbeat_failures_total"
	EndpointsUnhealthy     MetricKey = "endpoints_unhealthy"

	// In-memory target
	MemorySweepRunsTotal   MetricKey = "memory_sweep_runs_total"
	MemoryKeysExpiredTotal MetricKey = "memory_keys_expired_total"
)

// Registry stores all metrics.
type Registry struct {
	mu       sync.RWMutex
	counters map[MetricKey]*int64
}

// NewRegistry creates a metrics registry.
func NewRegistry() *Registry {
	return &Registry{
		counters: make(map[MetricKey]*int64),
	}
}

// Inc increments a metric by 1.
func (r *Registry) Inc(key MetricKey) {
	r.Add(key, 1)
}

// Add increments a metric by delta.
func (r *Registry) Add(key MetricKey, delta int64) {
	r.mu.RLock()
	ptr, ok := r.counters[key]
	r.mu.RUnlock()

	if ok {
		atomic.AddInt64(ptr, delta)
		return
	}

	// Slow path: metric not yet initialized
	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check after acquiring write lock
	if ptr, ok = r.counters[key]; ok {
		atomic.AddInt64(ptr, delta)
		return
	}

	var val int64
	r.counters[key] = &val
	atomic.AddInt64(&val, delta)
}
