// Package binance adapts the Binance spot ticker API to the quote transport.
package binance

import (
	"context"

	binance "github.com/adshao/go-binance/v2"
	"github.com/pkg/errors"

	"pricefeed/internal/quote"
	"pricefeed/internal/transport"
)

const sourceName = "binance"

// Adapter fetches spot prices from the Binance API.
type Adapter struct {
	client *binance.Client
}

// New creates an adapter around a Binance client. Public price data needs
// no credentials; binance.NewClient("", "") is a valid client for it.
func New(client *binance.Client) *Adapter {
	return &Adapter{client: client}
}

// Name returns the source name.
func (a *Adapter) Name() string {
	return sourceName
}

// RequestQuote fetches the listed price for the symbol and normalizes it.
func (a *Adapter) RequestQuote(ctx context.Context, symbol string) (*quote.RawResult, error) {
	prices, err := a.client.NewListPricesService().Symbol(symbol).Do(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "binance list prices failed for %s", symbol)
	}
	if len(prices) == 0 {
		return transport.Normalize(symbol, "")
	}

	return transport.Normalize(symbol, prices[0].Price)
}
