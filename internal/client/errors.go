package client

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"pricefeed/internal/quote"
	"pricefeed/internal/validate"
)

// Kind classifies a fetch failure and fixes the policy that follows
// from it: whether another attempt may be made and whether the last
// cached price may stand in for the result.
//
// The split is the load-bearing decision of this package. Infrastructure
// trouble may be masked by a cached value; anything suggesting the data
// itself is wrong must never be, because a stale-but-valid price is
// safer than a corrupted fresh one.
type Kind uint8

const (
	// KindTransient covers network errors, timeouts and unexpected
	// remote statuses other than 429.
	KindTransient Kind = iota + 1
	// KindIncomplete covers structurally valid payloads with no usable
	// price: the field is missing or explicitly null.
	KindIncomplete
	// KindDataIntegrity covers malformed payloads, non-numeric or
	// non-positive prices and symbol mismatches.
	KindDataIntegrity
	// KindRateLimited covers remote backpressure.
	KindRateLimited
	// KindInvalidInput covers caller mistakes, rejected before any
	// transport activity.
	KindInvalidInput
)

func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindIncomplete:
		return "incomplete"
	case KindDataIntegrity:
		return "data_integrity"
	case KindRateLimited:
		return "rate_limited"
	case KindInvalidInput:
		return "invalid_input"
	default:
		return "unknown"
	}
}

// Retryable reports whether another attempt may fix a failure of this
// kind.
func (k Kind) Retryable() bool {
	return k == KindTransient || k == KindIncomplete
}

// CacheFallback reports whether the last known good price may stand in
// for a failure of this kind.
func (k Kind) CacheFallback() bool {
	return k == KindTransient || k == KindIncomplete
}

// ErrNoData marks a fetch that exhausted its attempts with no cached
// value to fall back on. Check for it with errors.Is.
var ErrNoData = errors.New("no price data available")

var (
	errEmptySymbol = errors.New("symbol must not be empty")
	errRateLimited = errors.New("rate limited by quote source")
)

// Error is the typed failure returned by Client.Fetch. It carries what
// a caller needs to decide between halting, alerting and degraded
// operation.
type Error struct {
	// Op is the operation that failed, currently always "fetch".
	Op string
	// Symbol is the requested asset symbol.
	Symbol string
	// Kind tells the caller which policy bucket the failure landed in.
	Kind Kind
	// Attempts is how many transport round trips were made.
	Attempts int
	// RetryAfter is the wait the source asked for; set only when Kind
	// is KindRateLimited.
	RetryAfter time.Duration
	// HadCache reports whether a cached record existed when the fetch
	// gave up. A data-integrity failure with HadCache true means the
	// cached value was deliberately not used.
	HadCache bool
	// Err is the underlying cause.
	Err error

	// signal is the raw transport hint before resolution.
	signal *quote.RateLimitSignal
}

func (e *Error) Error() string {
	head := e.Op
	if e.Symbol != "" {
		head += " " + e.Symbol
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", head, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", head, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the Kind from err, or zero when err did not come from
// this package.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return 0
}

// classifyStatus maps a non-2xx HTTP status onto the policy table. 429
// is backpressure; everything else, 5xx and stray 4xx alike, is
// infrastructure trouble rather than bad data, so the cache may mask it.
func classifyStatus(status int) Kind {
	if status == http.StatusTooManyRequests {
		return KindRateLimited
	}
	return KindTransient
}

// classifyViolation maps a validator finding onto the policy table: a
// payload that is well-formed but has no usable price is incomplete,
// anything else means the data itself cannot be trusted.
func classifyViolation(v *validate.Violation) Kind {
	switch v.Code {
	case validate.CodeMissingPrice, validate.CodeNullPrice:
		return KindIncomplete
	default:
		return KindDataIntegrity
	}
}

// retryableFetchErr is the retry predicate for fetch attempts: only
// failures whose kind allows another attempt qualify. Context errors and
// other foreign errors never do.
func retryableFetchErr(err error) bool {
	var fe *Error
	return errors.As(err, &fe) && fe.Kind.Retryable()
}
