package client

import (
	"time"

	"pricefeed/internal/quote"
)

// rateLimitDecision is what the engine does with remote backpressure:
// give up now and surface the hint, or wait and spend the single
// deferred attempt.
type rateLimitDecision struct {
	failFast   bool
	wait       time.Duration
	retryAfter time.Duration
}

// resolveRateLimit interprets a backpressure signal under cfg. The wait
// is the source's Retry-After hint when usable, the configured default
// otherwise. In fail-fast mode no sleep happens, but the resolved wait
// is still surfaced so the caller can schedule its own retry.
func resolveRateLimit(sig *quote.RateLimitSignal, cfg Config) rateLimitDecision {
	wait := cfg.DefaultRateLimitWait
	if sig != nil && sig.RetryAfter > 0 {
		wait = sig.RetryAfter
	}
	if cfg.FailFastOnRateLimit {
		return rateLimitDecision{failFast: true, retryAfter: wait}
	}
	return rateLimitDecision{wait: wait, retryAfter: wait}
}
