package migrate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"kv-migrator/internal/enumerate"
	"kv-migrator/internal/kv"
	"kv-migrator/internal/logs"
	"kv-migrator/internal/metrics"
	"kv-migrator/internal/retry"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Reporter receives per-key outcomes and the final summary. KeyDone may
// be called from several workers at once.
type Reporter interface {
	KeyDone(rec Record)
	Finished(summary Summary)
}

// Starter is an optional Reporter extension. Started is called once,
// before any key, when the size of the listing is known up front.
type Starter interface {
	Started(keys int)
}

type nopReporter struct{}

func (nopReporter) KeyDone(Record)   {}
func (nopReporter) Finished(Summary) {}

// Options tunes a Driver.
type Options struct {
	// Workers is the number of keys migrated concurrently. 1 processes
	// keys strictly one after another.
	Workers int
	// MaxFailureDetails caps Summary.Failures.
	MaxFailureDetails int
	// Retry applies to each GetValue, GetTimeToLive and SetValue call.
	// Only connectivity errors are retried unless Retry.ShouldRetry says
	// otherwise.
	Retry retry.Policy
	// Rate limits dispatch to that many keys per second. 0 is unlimited.
	Rate float64
	// Clock measures elapsed time. nil uses the wall clock.
	Clock clockwork.Clock
}

// DefaultOptions is sequential, without retries or rate limit.
func DefaultOptions() Options {
	return Options{
		Workers:           1,
		MaxFailureDetails: 100,
		Retry:             retry.None(),
	}
}

// Driver copies every key of a source handle into a target handle,
// preserving expiry.
type Driver struct {
	source     kv.Handle
	target     kv.Handle
	opts       Options
	enumerator *enumerate.Enumerator
	reporter   Reporter
	logger     *logs.Logger
	metrics    *metrics.Registry
	clock      clockwork.Clock
	limiter    *rate.Limiter

	mu      sync.Mutex
	current *tally
	started time.Time
}

// NewDriver creates a new Driver. reporter may be nil.
func NewDriver(
	source kv.Handle,
	target kv.Handle,
	opts Options,
	reporter Reporter,
	logger *logs.Logger,
	reg *metrics.Registry,
) *Driver {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.MaxFailureDetails < 0 {
		opts.MaxFailureDetails = 0
	}
	if reporter == nil {
		reporter = nopReporter{}
	}
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	var limiter *rate.Limiter
	if opts.Rate > 0 {
		burst := int(opts.Rate)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.Rate), burst)
	}

	return &Driver{
		source:     source,
		target:     target,
		opts:       opts,
		enumerator: enumerate.NewEnumerator(logger, reg),
		reporter:   reporter,
		logger:     logger,
		metrics:    reg,
		clock:      clock,
		limiter:    limiter,
	}
}

// Run enumerates the source and migrates every key. An enumeration
// failure aborts the run before any key is read.
func (d *Driver) Run(ctx context.Context) (Summary, error) {
	keys, err := d.enumerator.Enumerate(ctx, d.source)
	if err != nil {
		return Summary{}, err
	}
	return d.Migrate(ctx, keys)
}

// Migrate migrates the keys yielded by keys.
//
// Cancelling ctx stops dispatching new keys; keys already handed to a
// worker run to completion and are counted in the summary. A key's
// failure never stops the run. The returned error is non-nil only when
// the key listing itself failed part way, in which case the summary
// covers the keys dispatched before that.
func (d *Driver) Migrate(ctx context.Context, keys kv.KeyIterator) (Summary, error) {
	t := newTally(d.opts.MaxFailureDetails)
	start := d.clock.Now()

	d.mu.Lock()
	d.current = t
	d.started = start
	d.mu.Unlock()

	d.logger.Info("migration started", "workers", d.opts.Workers)
	if sz, ok := keys.(kv.Sizer); ok {
		if n, known := sz.Size(); known {
			if st, ok := d.reporter.(Starter); ok {
				d.report(func() { st.Started(n) })
			}
		}
	}

	// In-flight keys must finish even after ctx is cancelled.
	work := context.WithoutCancel(ctx)

	var g errgroup.Group
	g.SetLimit(d.opts.Workers)

	var listErr error
	interrupted := false
	for {
		if ctx.Err() != nil {
			interrupted = true
			break
		}
		if d.limiter != nil {
			if err := d.limiter.Wait(ctx); err != nil {
				interrupted = true
				break
			}
		}

		key, ok, err := keys.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				interrupted = true
			} else {
				listErr = err
			}
			break
		}
		if !ok {
			break
		}

		t.dispatched()
		g.Go(func() error {
			d.migrateKey(work, key, t)
			return nil
		})
	}
	_ = g.Wait()

	summary := t.snapshot()
	summary.Elapsed = d.clock.Since(start)
	summary.Interrupted = interrupted

	if interrupted {
		d.logger.Warn("migration interrupted, in-flight keys drained", "dispatched", summary.Total)
	}
	d.report(func() { d.reporter.Finished(summary) })

	if listErr != nil {
		return summary, listErr
	}
	return summary, nil
}

// Progress returns the counters of the current or last run.
func (d *Driver) Progress() Summary {
	d.mu.Lock()
	t, started := d.current, d.started
	d.mu.Unlock()

	if t == nil {
		return Summary{}
	}
	s := t.snapshot()
	s.Elapsed = d.clock.Since(started)
	return s
}

func (d *Driver) migrateKey(ctx context.Context, key string, t *tally) {
	rec := d.process(ctx, key)
	t.record(rec)

	switch rec.Outcome {
	case Copied:
		d.metrics.Inc(metrics.KeysCopiedTotal)
	case Skipped:
		d.metrics.Inc(metrics.KeysSkippedTotal)
	case Failed:
		d.metrics.Inc(metrics.KeysFailedTotal)
	}
	d.report(func() { d.reporter.KeyDone(rec) })
}

// process runs the read value, read ttl, write sequence for one key.
func (d *Driver) process(ctx context.Context, key string) Record {
	var (
		value []byte
		found bool
	)
	err := d.call(ctx, metrics.ReadRetriesTotal, func() error {
		var err error
		value, found, err = d.source.GetValue(ctx, key)
		return err
	})
	if err != nil {
		return failed(key, errors.Wrap(err, "read value"))
	}
	if !found {
		return Record{Key: key, Outcome: Skipped, Reason: ReasonValueMissing}
	}

	var ttl kv.TTL
	err = d.call(ctx, metrics.ReadRetriesTotal, func() error {
		var err error
		ttl, err = d.source.GetTimeToLive(ctx, key)
		return err
	})
	if err != nil {
		return failed(key, errors.Wrap(err, "read ttl"))
	}

	switch {
	case ttl.Kind == kv.TTLMissing:
		return Record{Key: key, Outcome: Skipped, Reason: ReasonTTLMissing, TTL: ttl}
	case !ttl.Writable():
		return Record{Key: key, Outcome: Skipped, Reason: ReasonExpired, TTL: ttl}
	}

	// The target's expiry clock restarts now: time spent between the TTL
	// read and this write is not subtracted.
	err = d.call(ctx, metrics.WriteRetriesTotal, func() error {
		return d.target.SetValue(ctx, key, value, ttl)
	})
	if err != nil {
		rec := failed(key, errors.Wrap(err, "write value"))
		rec.TTL = ttl
		return rec
	}
	return Record{Key: key, Outcome: Copied, TTL: ttl}
}

func failed(key string, err error) Record {
	return Record{Key: key, Outcome: Failed, Err: err}
}

func (d *Driver) call(ctx context.Context, counter metrics.MetricKey, fn func() error) error {
	policy := d.opts.Retry
	if policy.MaxRetries <= 0 {
		return fn()
	}
	if policy.ShouldRetry == nil {
		policy.ShouldRetry = kv.IsConnectivity
	}
	onRetry := policy.OnRetry
	policy.OnRetry = func(attempt int, err error) {
		d.metrics.Inc(counter)
		d.logger.Debug("retrying store call", "attempt", attempt, "error", err)
		if onRetry != nil {
			onRetry(attempt, err)
		}
	}
	return retry.Do(ctx, policy, fn)
}

// report shields the run from a misbehaving reporter.
func (d *Driver) report(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			d.metrics.Inc(metrics.ReporterErrorsTotal)
			d.logger.Debug("progress reporter failed", "panic", fmt.Sprint(r))
		}
	}()
	fn()
}
