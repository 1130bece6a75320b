package progress

import (
	"kv-migrator/internal/logs"
	"kv-migrator/internal/migrate"
)

// LogReporter writes one structured log entry per key and one for the
// summary. Skips are informational, failures are warnings and copies are
// only visible at debug level.
type LogReporter struct {
	logger *logs.Logger
}

var _ migrate.Reporter = (*LogReporter)(nil)

// NewLogReporter creates a new LogReporter.
func NewLogReporter(logger *logs.Logger) *LogReporter {
	return &LogReporter{logger: logger}
}

func (r *LogReporter) KeyDone(rec migrate.Record) {
	switch rec.Outcome {
	case migrate.Copied:
		r.logger.Debug("key copied", "key", rec.Key, "ttl", rec.TTL.String())
	case migrate.Skipped:
		r.logger.Info("key skipped", "key", rec.Key, "reason", rec.Reason)
	case migrate.Failed:
		r.logger.Warn("key failed", "key", rec.Key, "error", rec.Err)
	}
}

func (r *LogReporter) Finished(s migrate.Summary) {
	keyvals := []interface{}{
		"total", s.Total,
		"copied", s.Copied,
		"skipped", s.Skipped,
		"failed", s.Failed,
		"elapsed", s.Elapsed.String(),
	}
	if s.FailuresDropped > 0 {
		keyvals = append(keyvals, "failures_dropped", s.FailuresDropped)
	}
	if s.Interrupted {
		keyvals = append(keyvals, "interrupted", true)
	}

	if s.Clean() {
		r.logger.Info("migration finished", keyvals...)
		return
	}
	r.logger.Warn("migration finished with failures", keyvals...)
}

// multi fans every event out to several reporters.
type multi []migrate.Reporter

// Multi returns a reporter that forwards to each of reporters in order.
// A panicking reporter does not keep the event from the ones after it;
// the first panic is raised again once every reporter has run.
func Multi(reporters ...migrate.Reporter) migrate.Reporter {
	return multi(reporters)
}

var _ migrate.Starter = multi(nil)

func (m multi) Started(keys int) {
	m.each(func(r migrate.Reporter) {
		if st, ok := r.(migrate.Starter); ok {
			st.Started(keys)
		}
	})
}

func (m multi) KeyDone(rec migrate.Record) {
	m.each(func(r migrate.Reporter) { r.KeyDone(rec) })
}

func (m multi) Finished(s migrate.Summary) {
	m.each(func(r migrate.Reporter) { r.Finished(s) })
}

func (m multi) each(fn func(migrate.Reporter)) {
	var first interface{}
	for _, r := range m {
		func() {
			defer func() {
				if p := recover(); p != nil && first == nil {
					first = p
				}
			}()
			fn(r)
		}()
	}
	if first != nil {
		panic(first)
	}
}
