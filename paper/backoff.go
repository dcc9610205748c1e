package paper

import "time"

const (
	baseDelay = 1 * time.Second
	maxDelay  = 60 * time.Second
)

// backoff returns the delay before retry number attempt (0-based):
// baseDelay * 2^attempt, capped at maxDelay.
func backoff(attempt int) time.Duration {
	if attempt < 0 {
		return baseDelay
	}
	if attempt > 30 {
		return maxDelay
	}
	d := baseDelay * time.Duration(1<<attempt)
	if d > maxDelay {
		return maxDelay
	}
	return d
}
