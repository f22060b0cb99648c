// Package hyperliquid adapts the Hyperliquid public Info API to the quote
// transport. Mids are keyed by base coin (e.g. "BTC"); the whole map comes
// back in one call, so a symbol miss is visible without a second request.
package hyperliquid

import (
	"context"

	"github.com/pkg/errors"
	hyperliquid "github.com/sonirico/go-hyperliquid"

	"pricefeed/internal/quote"
	"pricefeed/internal/transport"
)

const sourceName = "hyperliquid"

// Adapter fetches mid prices from the Hyperliquid public Info API.
type Adapter struct {
	info *hyperliquid.Info
}

// New creates an adapter around an Info client.
func New(info *hyperliquid.Info) *Adapter {
	return &Adapter{info: info}
}

// Name returns the source name.
func (a *Adapter) Name() string {
	return sourceName
}

// RequestQuote fetches all mids and normalizes the entry for the symbol.
func (a *Adapter) RequestQuote(ctx context.Context, symbol string) (*quote.RawResult, error) {
	if a.info == nil {
		return nil, errors.New("hyperliquid info client is nil")
	}

	mids, err := a.info.AllMids(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "hyperliquid mids failed for %s", symbol)
	}

	return transport.Normalize(symbol, mids[symbol])
}
