package retry

import "time"

// Policy controls retry behavior for store operations
type Policy struct {
	MaxRetries  int           //max retry attempts, 0 disables retries
	BaseBackoff time.Duration //initial backoff duration
	MaxBackoff  time.Duration // upper bound on backoff
	JitterFn    func(time.Duration) time.Duration

	// ShouldRetry decides whether an error is transient. nil retries
	// every error.
	ShouldRetry func(error) bool
	// OnRetry is called before each backoff wait with the attempt number
	// (starting at 1) and the error that caused it.
	OnRetry func(attempt int, err error)
}

// None is the default policy: a single failed call is terminal.
func None() Policy {
	return Policy{}
}

// DefaultPolicy retries a few times with exponential backoff.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:  3,
		BaseBackoff: 100 * time.Millisecond,
		MaxBackoff:  2 * time.Second,
		JitterFn:    func(d time.Duration) time.Duration { return d / 2 }, //default jitter:50%
	}
}
