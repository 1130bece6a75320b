package store

import (
	"context"
	"time"

	"kv-migrator/internal/logs"
	"kv-migrator/internal/metrics"

	"github.com/jonboulle/clockwork"
)

// Expirer is the part of a store the sweeper needs.
type Expirer interface {
	RemoveExpired() int
}

// Sweeper periodically removes expired keys so an in-memory target does
// not hold on to keys that died during a long run.
type Sweeper struct {
	store    Expirer
	interval time.Duration
	clock    clockwork.Clock
	logger   *logs.Logger
	metrics  *metrics.Registry
}

// NewSweeper creates a new Sweeper. clock may be nil.
func NewSweeper(
	store Expirer,
	interval time.Duration,
	clock clockwork.Clock,
	logger *logs.Logger,
	reg *metrics.Registry,
) *Sweeper {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Sweeper{
		store:    store,
		interval: interval,
		clock:    clock,
		logger:   logger,
		metrics:  reg,
	}
}

// Start runs the sweep loop until ctx is cancelled. It blocks.
func (s *Sweeper) Start(ctx context.Context) {
	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			s.runOnce()
		case <-ctx.Done():
			s.logger.Debug("memory sweeper stopped")
			return
		}
	}
}

func (s *Sweeper) runOnce() {
	s.metrics.Inc(metrics.MemorySweepRunsTotal)

	removed := s.store.RemoveExpired()
	if removed > 0 {
		s.metrics.Add(metrics.MemoryKeysExpiredTotal, int64(removed))
		s.logger.Debug("memory sweeper removed expired keys", "removed", removed)
	}
}
