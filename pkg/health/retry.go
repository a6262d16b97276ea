package health

import "time"

// RetryPolicy computes reconnect delays with linear growth and a cap
type RetryPolicy struct {
	// Step is multiplied by the attempt number
	Step time.Duration
	// MaxDelay caps the computed delay
	MaxDelay time.Duration
	// MaxAttempts is the number of consecutive failures tolerated; 0 means unlimited
	MaxAttempts int
}

// CacheRetryPolicy is the reconnect policy for the cache store:
// attempt × 100ms capped at 3s, abandoned after 10 attempts.
func CacheRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Step:        100 * time.Millisecond,
		MaxDelay:    3 * time.Second,
		MaxAttempts: 10,
	}
}

// DatabaseRetryPolicy keeps probing the database forever; the pool
// reconnects on its own once the server is back.
func DatabaseRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Step:     500 * time.Millisecond,
		MaxDelay: 5 * time.Second,
	}
}

// Delay returns the wait before the given attempt (1-based), or false
// once the attempt budget is exhausted.
func (p RetryPolicy) Delay(attempt int) (time.Duration, bool) {
	if attempt < 1 {
		attempt = 1
	}
	if p.MaxAttempts > 0 && attempt > p.MaxAttempts {
		return 0, false
	}

	delay := time.Duration(attempt) * p.Step
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	return delay, true
}
