// Package coalesce deduplicates concurrent same-symbol quote requests.
package coalesce

import (
	"context"

	"golang.org/x/sync/singleflight"

	"pricefeed/internal/quote"
	"pricefeed/internal/transport"
)

// Group wraps a transport so concurrent RequestQuote calls for the same
// symbol share one upstream call. Strictly opt-in: coalescing changes how
// many transport calls concurrent fetches make, and the first caller's
// context drives the shared call, so its cancellation reaches every waiter.
type Group struct {
	next transport.Transport
	sf   singleflight.Group
}

// New creates a coalescing wrapper around a transport.
func New(next transport.Transport) *Group {
	return &Group{next: next}
}

// Name returns the wrapped transport's name.
func (g *Group) Name() string {
	return g.next.Name()
}

// RequestQuote delegates, sharing in-flight calls keyed by symbol.
func (g *Group) RequestQuote(ctx context.Context, symbol string) (*quote.RawResult, error) {
	v, err, _ := g.sf.Do(symbol, func() (any, error) {
		return g.next.RequestQuote(ctx, symbol)
	})
	if err != nil {
		return nil, err
	}
	return v.(*quote.RawResult), nil
}
