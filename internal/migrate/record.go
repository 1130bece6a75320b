package migrate

import (
	"time"

	"kv-migrator/internal/kv"
)

// Outcome is what happened to a single key.
type Outcome string

const (
	Copied  Outcome = "copied"
	Skipped Outcome = "skipped"
	Failed  Outcome = "failed"
)

// Reasons attached to skipped records.
const (
	ReasonValueMissing = "value missing"
	ReasonTTLMissing   = "ttl missing"
	ReasonExpired      = "expired"
)

// Record is the outcome of migrating one key. Records are handed to the
// reporter and then dropped.
type Record struct {
	Key     string
	Outcome Outcome
	// Reason explains a skip.
	Reason string
	// TTL is the expiry read from the source, when it got that far.
	TTL kv.TTL
	// Err is set for failed records.
	Err error
}

// Failure is a failed key kept in the summary.
type Failure struct {
	Key   string `json:"key"`
	Error string `json:"error"`
}

// Summary aggregates a migration run.
type Summary struct {
	Total   int `json:"total"`
	Copied  int `json:"copied"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`

	// Failures holds at most Options.MaxFailureDetails entries;
	// FailuresDropped counts the rest.
	Failures        []Failure `json:"failures,omitempty"`
	FailuresDropped int       `json:"failures_dropped,omitempty"`

	Elapsed time.Duration `json:"elapsed_ns"`
	// Interrupted is set when cancellation stopped dispatch before the
	// key listing was exhausted.
	Interrupted bool `json:"interrupted,omitempty"`
}

// Clean reports whether no key failed.
func (s Summary) Clean() bool {
	return s.Failed == 0
}

// Processed is the number of keys with a recorded outcome.
func (s Summary) Processed() int {
	return s.Copied + s.Skipped + s.Failed
}
