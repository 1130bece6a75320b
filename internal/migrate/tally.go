package migrate

import "sync"

// tally is the concurrency-safe accumulator behind a Summary.
type tally struct {
	mu          sync.Mutex
	summary     Summary
	maxFailures int
}

func newTally(maxFailures int) *tally {
	return &tally{maxFailures: maxFailures}
}

// dispatched counts a key handed to a worker.
func (t *tally) dispatched() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.summary.Total++
}

func (t *tally) record(rec Record) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch rec.Outcome {
	case Copied:
		t.summary.Copied++
	case Skipped:
		t.summary.Skipped++
	case Failed:
		t.summary.Failed++
		if len(t.summary.Failures) < t.maxFailures {
			msg := "unknown error"
			if rec.Err != nil {
				msg = rec.Err.Error()
			}
			t.summary.Failures = append(t.summary.Failures, Failure{Key: rec.Key, Error: msg})
		} else {
			t.summary.FailuresDropped++
		}
	}
}

// snapshot returns a copy that does not share the failure slice.
func (t *tally) snapshot() Summary {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := t.summary
	if len(t.summary.Failures) > 0 {
		out.Failures = make([]Failure, len(t.summary.Failures))
		copy(out.Failures, t.summary.Failures)
	}
	return out
}
