package resilience

import (
	"time"
)

// FromSeconds builds a stage retry policy from whole-second config values.
// Zero or negative values fall back to the defaults.
func FromSeconds(attempts, initialSecs, maxSecs int, jitter float64) RetryConfig {
	cfg := StageRetryConfig(3, 5*time.Second, 60*time.Second)
	if attempts > 0 {
		cfg.MaxAttempts = attempts
	}
	if initialSecs > 0 {
		cfg.InitialBackoff = time.Duration(initialSecs) * time.Second
	}
	if maxSecs > 0 {
		cfg.MaxBackoff = time.Duration(maxSecs) * time.Second
	}
	if jitter > 0 {
		cfg.JitterFraction = jitter
	}
	return cfg
}
