package quote

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceRecord is the validated result of one successful fetch.
// Price is a decimal so exchange payloads survive without float rounding.
type PriceRecord struct {
	Symbol     string          `json:"symbol"`
	Price      decimal.Decimal `json:"price"`
	Source     string          `json:"source"`
	ObservedAt time.Time       `json:"observed_at"`
}

// RateLimitSignal reports remote backpressure alongside a 429 status.
// RetryAfter is zero when the source gave no usable hint.
type RateLimitSignal struct {
	RetryAfter time.Duration
}

// RawResult is a quote response exactly as the transport saw it: status
// code, body bytes and any backpressure hint. Deciding what the body
// means is the engine's job, not the transport's.
type RawResult struct {
	StatusCode int
	Body       []byte
	RateLimit  *RateLimitSignal
}
