package engine

import "time"

// RetryPolicy governs retries of cart store calls that fail as rate
// limited. It applies uniformly to every persistence call the engine makes;
// validation failures are never retried.
type RetryPolicy struct {
	// MaxAttempts is the number of retry attempts after the initial call.
	MaxAttempts int
	// BaseDelay scales the linear backoff: the n-th retry waits n × BaseDelay.
	BaseDelay time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
	}
}

// Backoff returns the wait before the n-th retry (1-based).
func (p RetryPolicy) Backoff(n int) time.Duration {
	return time.Duration(n) * p.BaseDelay
}
