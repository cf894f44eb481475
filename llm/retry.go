package llm

import (
	"math/rand/v2"
	"time"
)

// RetryConfig controls retries against a single endpoint.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts per endpoint.
	MaxAttempts int

	// BackoffBase is the delay before the first retry.
	BackoffBase time.Duration

	// BackoffMultiplier grows the delay on each retry.
	BackoffMultiplier float64

	// MaxBackoff caps the delay.
	MaxBackoff time.Duration
}

// DefaultRetryConfig returns the default retry policy.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		BackoffBase:       2 * time.Second,
		BackoffMultiplier: 2.0,
		MaxBackoff:        30 * time.Second,
	}
}

// backoff returns the delay after the given failed attempt (1-based), with
// +/-25% jitter.
func (c RetryConfig) backoff(attempt int) time.Duration {
	d := float64(c.BackoffBase)
	for i := 1; i < attempt; i++ {
		d *= c.BackoffMultiplier
	}
	if limit := float64(c.MaxBackoff); c.MaxBackoff > 0 && d > limit {
		d = limit
	}
	jitter := d * 0.25 * (rand.Float64()*2 - 1)
	return time.Duration(d + jitter)
}
