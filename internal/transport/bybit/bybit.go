// Package bybit adapts the Bybit V5 spot ticker API to the quote transport.
package bybit

import (
	"context"

	"github.com/hirokisan/bybit/v2"
	"github.com/pkg/errors"

	"pricefeed/internal/quote"
	"pricefeed/internal/transport"
)

const sourceName = "bybit"

// Adapter fetches spot tickers from the Bybit V5 API.
type Adapter struct {
	client *bybit.Client
}

// New creates an adapter around a Bybit client.
func New(client *bybit.Client) *Adapter {
	return &Adapter{client: client}
}

// Name returns the source name.
func (a *Adapter) Name() string {
	return sourceName
}

// RequestQuote fetches the spot ticker for the symbol and normalizes its
// last price.
func (a *Adapter) RequestQuote(_ context.Context, symbol string) (*quote.RawResult, error) {
	sym := bybit.SymbolV5(symbol)

	result, err := a.client.V5().Market().GetTickers(bybit.V5GetTickersParam{
		Category: "spot",
		Symbol:   &sym,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "bybit tickers failed for %s", symbol)
	}
	if len(result.Result.Spot.List) == 0 {
		return transport.Normalize(symbol, "")
	}

	return transport.Normalize(symbol, result.Result.Spot.List[0].LastPrice)
}
