package stream

import "time"

const (
	DefaultMaxRetries = 5
	DefaultBaseDelay  = time.Second
	DefaultMaxDelay   = 16 * time.Second
)

// backoffDelay returns base * 2^attempt, capped at max. attempt counts from 0.
func backoffDelay(base, max time.Duration, attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}
