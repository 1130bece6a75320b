package store

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"kv-migrator/internal/kv"
	"kv-migrator/internal/logs"
	"kv-migrator/internal/metrics"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
)

/* ---------------- Mock Expirer ---------------- */

type mockExpirer struct {
	calls int32
}

func (m *mockExpirer) RemoveExpired() int {
	return int(atomic.AddInt32(&m.calls, 1))
}

/* ---------------- Tests ---------------- */

func TestSweeper_RunOnce_RemovesExpiredAndUpdatesMetrics(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := NewStore(clock)
	s.Put("old", []byte("1"), kv.Expiring(time.Second))
	s.Put("new", []byte("2"), kv.Expiring(time.Minute))
	s.Put("keep", []byte("3"), kv.Persistent())
	clock.Advance(2 * time.Second)

	reg := metrics.NewRegistry()
	sweeper := NewSweeper(s, time.Second, clock, logs.NewLogger(10, logs.DEBUG), reg)

	sweeper.runOnce()

	snap := reg.Snapshot()
	assert.Equal(t, int64(1), snap[string(metrics.MemorySweepRunsTotal)])
	assert.Equal(t, int64(1), snap[string(metrics.MemoryKeysExpiredTotal)])
	assert.Equal(t, 2, s.Len())
}

func TestSweeper_Start_RunsOnEveryTick(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := &mockExpirer{}
	reg := metrics.NewRegistry()

	sweeper := NewSweeper(store, 5*time.Second, clock, logs.NewLogger(10, logs.DEBUG), reg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sweeper.Start(ctx)

	clock.BlockUntil(1)
	for i := 0; i < 2; i++ {
		clock.Advance(5 * time.Second)
		want := int32(i + 1)
		assert.Eventually(t, func() bool {
			return atomic.LoadInt32(&store.calls) == want
		}, time.Second, time.Millisecond)
	}
}

func TestSweeper_Start_StopsOnContextCancel(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := &mockExpirer{}
	logger := logs.NewLogger(10, logs.DEBUG)

	sweeper := NewSweeper(store, time.Second, clock, logger, metrics.NewRegistry())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Start(ctx)
		close(done)
	}()

	cancel()
	assert.Eventually(t, func() bool {
		select {
		case <-done:
			return true
		default:
			return false
		}
	}, time.Second, time.Millisecond)

	entries := logger.GetLast(1)
	if assert.Len(t, entries, 1) {
		assert.Equal(t, "memory sweeper stopped", entries[0].Message)
	}
}
