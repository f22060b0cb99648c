package client

import (
	"fmt"
	"time"
)

// Config tunes a single Fetch call. It is passed by value, never
// mutated by the client, and two concurrent fetches may use different
// configs against the same client.
type Config struct {
	// MaxRetries is how many additional attempts follow a retryable
	// failure. Zero means one attempt total.
	MaxRetries int
	// BackoffBase is the delay before the first retry; each further
	// retry doubles it. Zero picks the default.
	BackoffBase time.Duration
	// MaxBackoff caps a single backoff sleep. Zero picks the default.
	MaxBackoff time.Duration
	// FailFastOnRateLimit returns the rate-limit error immediately
	// instead of waiting out the source's hint.
	FailFastOnRateLimit bool
	// DefaultRateLimitWait is the wait used when a 429 carries no
	// usable Retry-After hint. Zero picks the default.
	DefaultRateLimitWait time.Duration
}

// DefaultConfig is the tuning used when the caller has no opinion:
// three retries on a 300ms base, one minute cap, one minute rate-limit
// wait.
func DefaultConfig() Config {
	return Config{
		MaxRetries:           3,
		BackoffBase:          300 * time.Millisecond,
		MaxBackoff:           60 * time.Second,
		DefaultRateLimitWait: 60 * time.Second,
	}
}

// withDefaults fills unset knobs and rejects impossible ones.
func (c Config) withDefaults() (Config, error) {
	if c.MaxRetries < 0 {
		return c, fmt.Errorf("max retries must be >= 0, got %d", c.MaxRetries)
	}
	if c.BackoffBase < 0 {
		return c, fmt.Errorf("backoff base must be positive, got %s", c.BackoffBase)
	}
	def := DefaultConfig()
	if c.BackoffBase == 0 {
		c.BackoffBase = def.BackoffBase
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = def.MaxBackoff
	}
	if c.DefaultRateLimitWait <= 0 {
		c.DefaultRateLimitWait = def.DefaultRateLimitWait
	}
	return c, nil
}
