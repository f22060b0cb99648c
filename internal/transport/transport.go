package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"pricefeed/internal/quote"
)

// Transport retrieves the raw quote payload for a single symbol.
//
// Implementations hand the remote response back verbatim and attach a
// RateLimitSignal when the source pushes back. They never interpret or
// repair the payload; validation happens in one place, above them.
type Transport interface {
	Name() string
	RequestQuote(ctx context.Context, symbol string) (*quote.RawResult, error)
}

type payload struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price,omitempty"`
}

// Normalize wraps an SDK-delivered price string into the canonical quote
// payload. The price stays the raw string the SDK returned; an empty price
// marks a lookup miss and produces a payload without a price entry, which
// the validator reports as incomplete.
func Normalize(symbol, price string) (*quote.RawResult, error) {
	body, err := json.Marshal(payload{Symbol: symbol, Price: price})
	if err != nil {
		return nil, fmt.Errorf("encoding quote payload: %w", err)
	}
	return &quote.RawResult{
		StatusCode: http.StatusOK,
		Body:       body,
	}, nil
}
