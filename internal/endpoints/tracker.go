package endpoints

import (
	"sort"
	"sync"

	"kv-migrator/internal/metrics"
)

// State represents the health state of an endpoint.
type State int

const (
	Healthy State = iota
	Unhealthy
)

func (s State) String() string {
	if s == Healthy {
		return "healthy"
	}
	return "unhealthy"
}

// Endpoint tracks the health-related state of one store.
type Endpoint struct {
	Name         string
	State        State
	FailureCount int
	SuccessCount int
}

// Tracker manages the health state of the migration endpoints.
type Tracker struct {
	mu        sync.RWMutex
	endpoints map[string]*Endpoint
	policy    Policy
	metrics   *metrics.Registry
}

// NewTracker creates a new Tracker.
func NewTracker(policy Policy, reg *metrics.Registry) *Tracker {
	return &Tracker{
		endpoints: make(map[string]*Endpoint),
		policy:    policy,
		metrics:   reg,
	}
}

// Add registers an endpoint, healthy until proven otherwise.
func (t *Tracker) Add(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.endpoints[name]; !exists {
		t.endpoints[name] = &Endpoint{
			Name:  name,
			State: Healthy,
		}
	}
}

// MarkFailure records a failed check. It reports whether the endpoint
// just became unhealthy.
func (t *Tracker) MarkFailure(name string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	ep, ok := t.endpoints[name]
	if !ok {
		return false
	}
	t.metrics.Inc(metrics.HeartbeatFailuresTotal)

	ep.FailureCount++
	ep.SuccessCount = 0
	if ep.State == Healthy && ep.FailureCount >= t.policy.FailureThreshold {
		ep.State = Unhealthy
		t.metrics.Inc(metrics.EndpointsUnhealthy)
		return true
	}
	return false
}

// MarkSuccess records a successful check. It reports whether the
// endpoint just recovered.
func (t *Tracker) MarkSuccess(name string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	ep, ok := t.endpoints[name]
	if !ok {
		return false
	}
	ep.SuccessCount++
	ep.FailureCount = 0
	if ep.State == Unhealthy && ep.SuccessCount >= t.policy.SuccessThreshold {
		ep.State = Healthy
		t.metrics.Add(metrics.EndpointsUnhealthy, -1)
		return true
	}
	return false
}

func (t *Tracker) IsHealthy(name string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	ep, ok := t.endpoints[name]
	return ok && ep.State == Healthy
}

// Names returns the registered endpoints in sorted order.
func (t *Tracker) Names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]string, 0, len(t.endpoints))
	for name := range t.endpoints {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Unhealthy returns the unhealthy endpoints in sorted order.
func (t *Tracker) Unhealthy() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []string
	for name, ep := range t.endpoints {
		if ep.State == Unhealthy {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
