// Package client implements the fetch/validate/retry/cache-fallback
// decision engine on top of a quote transport.
package client

//go:generate mockgen -package=client -destination=mock_transport_test.go pricefeed/internal/transport Transport

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"pricefeed/internal/cache"
	"pricefeed/internal/quote"
	"pricefeed/internal/retry"
	"pricefeed/internal/transport"
	"pricefeed/internal/validate"
)

const opFetch = "fetch"

// Client fetches validated prices through a Transport, retries
// transient trouble with exponential backoff and falls back to the last
// known good value when the failure kind allows it.
//
// A Client is safe for concurrent use; fetches for different symbols
// never contend beyond the cache's own locking.
type Client struct {
	tr     transport.Transport
	source string
	store  *cache.Store
	log    *zap.Logger

	// sleep performs the rate-limit wait; stubbed in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// Option configures a Client.
type Option func(*Client)

// WithCache makes the client use an existing store, e.g. one shared
// with another client. By default every client owns an isolated store.
func WithCache(s *cache.Store) Option {
	return func(c *Client) {
		if s != nil {
			c.store = s
		}
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// New builds a Client on top of tr.
func New(tr transport.Transport, opts ...Option) *Client {
	c := &Client{
		tr:     tr,
		source: tr.Name(),
		store:  cache.New(),
		log:    zap.NewNop(),
		sleep:  sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Cache exposes the client's store, e.g. to pre-warm it or share it
// with another client via WithCache.
func (c *Client) Cache() *cache.Store { return c.store }

// Result is a successful fetch. Degraded reports that Record came from
// the cache instead of a fresh response; Record.ObservedAt then says
// how old the value is, and staleness policy stays the caller's
// decision.
type Result struct {
	Record   quote.PriceRecord
	Degraded bool
	Attempts int
}

// Price is shorthand for Record.Price.
func (r Result) Price() decimal.Decimal { return r.Record.Price }

// Fetch retrieves a validated price for symbol under cfg.
//
// Empty symbols fail with KindInvalidInput before any transport call.
// Transient and incomplete failures are retried up to cfg.MaxRetries
// extra times and may then be masked by the cache; data-integrity
// failures fail immediately and never touch the cache. Backpressure is
// waited out at most once per call, or surfaced immediately when
// cfg.FailFastOnRateLimit is set. All sleeps abort when ctx does.
func (c *Client) Fetch(ctx context.Context, symbol string, cfg Config) (Result, error) {
	if strings.TrimSpace(symbol) == "" {
		return c.fail(&Error{Op: opFetch, Symbol: symbol, Kind: KindInvalidInput, Err: errEmptySymbol}, 0)
	}
	cfg, err := cfg.withDefaults()
	if err != nil {
		return c.fail(&Error{Op: opFetch, Symbol: symbol, Kind: KindInvalidInput, Err: err}, 0)
	}

	log := c.log.With(
		zap.String("fetch_id", uuid.NewString()),
		zap.String("symbol", symbol),
		zap.String("source", c.source),
	)

	ctrl := retry.New(
		retry.WithMaxRetries(cfg.MaxRetries),
		retry.WithBackoffBase(cfg.BackoffBase),
		retry.WithMaxBackoff(cfg.MaxBackoff),
		retry.WithRetryIf(retryableFetchErr),
		retry.WithLogger(log),
	)

	attempts := 0
	op := func(ctx context.Context) (quote.PriceRecord, error) {
		attempts++
		return c.attemptOnce(ctx, symbol)
	}

	rateLimitSpent := false
	for {
		rec, err := retry.DoWithData(ctrl, ctx, op)
		if err == nil {
			c.store.Put(rec)
			log.Info("price fetched",
				zap.String("price", rec.Price.String()),
				zap.Int("attempts", attempts))
			return Result{Record: rec, Attempts: attempts}, nil
		}

		var fe *Error
		if !errors.As(err, &fe) {
			// Context cancellation surfaced by the retry loop; there is
			// nothing to classify or mask.
			return Result{}, err
		}

		if fe.Kind == KindRateLimited {
			dec := resolveRateLimit(fe.signal, cfg)
			fe.RetryAfter = dec.retryAfter
			if dec.failFast {
				log.Warn("rate limited, failing fast",
					zap.Duration("retry_after", dec.retryAfter))
				return c.fail(fe, attempts)
			}
			if rateLimitSpent {
				log.Warn("rate limited again after waiting, giving up",
					zap.Duration("retry_after", dec.retryAfter))
				return c.fail(fe, attempts)
			}
			rateLimitSpent = true
			log.Info("rate limited, waiting before one more attempt",
				zap.Duration("wait", dec.wait))
			if serr := c.sleep(ctx, dec.wait); serr != nil {
				return Result{}, serr
			}
			continue
		}

		if fe.Kind.CacheFallback() {
			if rec, ok := c.store.Get(symbol); ok {
				log.Warn("serving last known good price",
					zap.String("price", rec.Price.String()),
					zap.Time("observed_at", rec.ObservedAt),
					zap.Error(fe))
				return Result{Record: rec, Degraded: true, Attempts: attempts}, nil
			}
			fe.Err = fmt.Errorf("%w: %w", ErrNoData, fe.Err)
		}

		log.Error("fetch failed",
			zap.String("kind", fe.Kind.String()),
			zap.Int("attempts", attempts),
			zap.Error(fe.Err))
		return c.fail(fe, attempts)
	}
}

// attemptOnce performs one transport round trip plus validation and
// classifies whatever goes wrong.
func (c *Client) attemptOnce(ctx context.Context, symbol string) (quote.PriceRecord, error) {
	res, err := c.tr.RequestQuote(ctx, symbol)
	if err != nil {
		if ctx.Err() != nil {
			return quote.PriceRecord{}, ctx.Err()
		}
		return quote.PriceRecord{}, &Error{Op: opFetch, Symbol: symbol, Kind: KindTransient, Err: err}
	}
	if res == nil {
		return quote.PriceRecord{}, &Error{Op: opFetch, Symbol: symbol, Kind: KindTransient, Err: errors.New("transport returned no result")}
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		kind := classifyStatus(res.StatusCode)
		fe := &Error{
			Op:     opFetch,
			Symbol: symbol,
			Kind:   kind,
			Err:    fmt.Errorf("unexpected status %d", res.StatusCode),
		}
		if kind == KindRateLimited {
			fe.Err = errRateLimited
			fe.signal = res.RateLimit
		}
		return quote.PriceRecord{}, fe
	}

	price, verr := validate.Price(res.Body, symbol)
	if verr != nil {
		kind := KindDataIntegrity
		var v *validate.Violation
		if errors.As(verr, &v) {
			kind = classifyViolation(v)
		}
		return quote.PriceRecord{}, &Error{Op: opFetch, Symbol: symbol, Kind: kind, Err: verr}
	}

	return quote.PriceRecord{
		Symbol:     symbol,
		Price:      price,
		Source:     c.source,
		ObservedAt: time.Now(),
	}, nil
}

// fail finalizes fe with cache visibility before it propagates.
func (c *Client) fail(fe *Error, attempts int) (Result, error) {
	fe.Attempts = attempts
	_, fe.HadCache = c.store.Get(fe.Symbol)
	return Result{}, fe
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	select {
	case <-ctx.Done():
		timer.Stop()
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
