package llm

import "time"

// RetryConfig bounds how hard the client retries a gateway request.
// Retries sit inside the caller's per-call timeout, so an evaluation
// with a 120s budget gets at most MaxAttempts tries within it.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// BackoffBase is the delay before the first retry.
	BackoffBase time.Duration

	// BackoffMultiplier scales the delay on each subsequent retry.
	BackoffMultiplier float64

	// MaxBackoff caps the delay between attempts.
	MaxBackoff time.Duration
}

// DefaultRetryConfig returns the retry policy used for council
// inference calls: three attempts with 2s/4s backoff, capped at 30s.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		BackoffBase:       2 * time.Second,
		BackoffMultiplier: 2.0,
		MaxBackoff:        30 * time.Second,
	}
}
