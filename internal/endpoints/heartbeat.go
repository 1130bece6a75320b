package endpoints

import (
	"context"

	"kv-migrator/internal/logs"
	"kv-migrator/internal/metrics"

	"github.com/jonboulle/clockwork"
)

// Pinger is implemented by stores that can check their connection.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Heartbeat periodically pings every tracked endpoint.
type Heartbeat struct {
	tracker *Tracker
	targets map[string]Pinger
	policy  Policy
	clock   clockwork.Clock
	logger  *logs.Logger
	metrics *metrics.Registry
}

// NewHeartbeat creates a heartbeat for targets, registering each name
// with tracker. clock may be nil.
func NewHeartbeat(
	tracker *Tracker,
	targets map[string]Pinger,
	policy Policy,
	clock clockwork.Clock,
	logger *logs.Logger,
	reg *metrics.Registry,
) *Heartbeat {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	for name := range targets {
		tracker.Add(name)
	}
	return &Heartbeat{
		tracker: tracker,
		targets: targets,
		policy:  policy,
		clock:   clock,
		logger:  logger,
		metrics: reg,
	}
}

// Start begins the heartbeat loop.
// Stops immediately when the ctx is cancelled
func (hb *Heartbeat) Start(ctx context.Context) {
	ticker := hb.clock.NewTicker(hb.policy.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			hb.runOnce(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (hb *Heartbeat) runOnce(ctx context.Context) {
	hb.metrics.Inc(metrics.HeartbeatRunsTotal)

	for _, name := range hb.tracker.Names() {
		p, ok := hb.targets[name]
		if !ok {
			continue
		}

		pingCtx, cancel := context.WithTimeout(ctx, hb.policy.Timeout)
		err := p.Ping(pingCtx)
		cancel()

		if err != nil {
			if hb.tracker.MarkFailure(name) {
				hb.logger.Error("endpoint unhealthy", "endpoint", name, "error", err)
			}
			continue
		}
		if hb.tracker.MarkSuccess(name) {
			hb.logger.Info("endpoint recovered", "endpoint", name)
		}
	}
}
