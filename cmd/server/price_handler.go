package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"pricefeed/internal/client"
)

type priceResponse struct {
	Symbol     string    `json:"symbol"`
	Price      string    `json:"price"`
	Source     string    `json:"source,omitempty"`
	ObservedAt time.Time `json:"observed_at"`
	Degraded   bool      `json:"degraded,omitempty"`
	Attempts   int       `json:"attempts"`
}

type quotesResponse struct {
	Quotes []priceResponse `json:"quotes"`
	Errors []string        `json:"errors,omitempty"`
}

func toResponse(res client.Result) priceResponse {
	return priceResponse{
		Symbol:     res.Record.Symbol,
		Price:      res.Record.Price.String(),
		Source:     res.Record.Source,
		ObservedAt: res.Record.ObservedAt,
		Degraded:   res.Degraded,
		Attempts:   res.Attempts,
	}
}

// writePrice fetches one symbol and writes the result or a mapped error.
func writePrice(w http.ResponseWriter, rctx context.Context, c *client.Client, cfg client.Config, symbol string) {
	ctx, cancel := context.WithTimeout(rctx, requestBudget(cfg))
	defer cancel()

	res, err := c.Fetch(ctx, symbol, cfg)
	if err != nil {
		writeFetchError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.Encode(toResponse(res))
}

// writeQuotes fetches several symbols concurrently and writes partial
// results; it fails the request only when every symbol failed.
func writeQuotes(w http.ResponseWriter, rctx context.Context, c *client.Client, cfg client.Config, symbols []string) {
	ctx, cancel := context.WithTimeout(rctx, requestBudget(cfg))
	defer cancel()

	quotes := make([]*priceResponse, len(symbols))
	fetchErrs := make([]error, len(symbols))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, symbol := range symbols {
		g.Go(func() error {
			res, err := c.Fetch(ctx, symbol, cfg)
			if err != nil {
				fetchErrs[i] = err
				return nil
			}
			pr := toResponse(res)
			quotes[i] = &pr
			return nil
		})
	}
	_ = g.Wait()

	var resp quotesResponse
	for i := range symbols {
		if fetchErrs[i] != nil {
			resp.Errors = append(resp.Errors, fetchErrs[i].Error())
			continue
		}
		resp.Quotes = append(resp.Quotes, *quotes[i])
	}
	if len(resp.Quotes) == 0 && len(resp.Errors) > 0 {
		http.Error(w, strings.Join(resp.Errors, "; "), http.StatusBadGateway)
		return
	}
	w.WriteHeader(http.StatusOK)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.Encode(resp)
}

// requestBudget caps a request's total time. The worst case sits out a full
// rate-limit wait and then makes one more attempt, so the budget must carry
// headroom over the configured wait.
func requestBudget(cfg client.Config) time.Duration {
	budget := 15 * time.Second
	if cfg.DefaultRateLimitWait > 0 {
		budget += cfg.DefaultRateLimitWait
	}
	return budget
}

func writeFetchError(w http.ResponseWriter, err error) {
	var fe *client.Error
	if !errors.As(err, &fe) {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	status := http.StatusBadGateway
	switch fe.Kind {
	case client.KindInvalidInput:
		status = http.StatusBadRequest
	case client.KindRateLimited:
		status = http.StatusTooManyRequests
		if fe.RetryAfter > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(int(fe.RetryAfter/time.Second)))
		}
	}
	http.Error(w, err.Error(), status)
}
