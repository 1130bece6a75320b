package endpoints

import "time"

// Policy defines when an endpoint is considered healthy or recovered, and
// how often it is checked.
type Policy struct {
	FailureThreshold int //consecutive failures to mark unhealthy
	SuccessThreshold int //consecutive successes to mark healthy again

	Interval time.Duration
	Timeout  time.Duration // per ping
}

func DefaultPolicy() Policy {
	return Policy{
		FailureThreshold: 3,
		SuccessThreshold: 2,
		Interval:         5 * time.Second,
		Timeout:          1 * time.Second,
	}
}
