// Package throttle paces outbound quote requests with a token bucket.
// This is client-side pacing to stay under a source's published limits;
// reacting to server-side 429 responses is the fetch client's job.
package throttle

import (
	"context"

	"golang.org/x/time/rate"

	"pricefeed/internal/quote"
	"pricefeed/internal/transport"
)

// Gate wraps a transport and blocks each request until the limiter grants
// a token.
type Gate struct {
	next    transport.Transport
	limiter *rate.Limiter
}

// New creates a gate allowing rps requests per second with the given burst.
func New(next transport.Transport, rps float64, burst int) *Gate {
	return &Gate{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// Name returns the wrapped transport's name.
func (g *Gate) Name() string {
	return g.next.Name()
}

// RequestQuote waits for a token, then delegates. The wait aborts with the
// context's error when the context ends first.
func (g *Gate) RequestQuote(ctx context.Context, symbol string) (*quote.RawResult, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return g.next.RequestQuote(ctx, symbol)
}
