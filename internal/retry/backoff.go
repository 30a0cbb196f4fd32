package retry

import "time"

// maxBackoff bounds the delay so late redeliveries don't sleep for
// minutes.
const maxBackoff = 30 * time.Second

// ExponentialBackoff returns the delay for an attempt number: the base
// doubles with each attempt, capped at maxBackoff.
func ExponentialBackoff(attempt int, base time.Duration) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := base * (1 << attempt)
	if d > maxBackoff || d <= 0 {
		return maxBackoff
	}
	return d
}
