package retry

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const (
	defaultMaxRetries  = 3
	defaultBackoffBase = 300 * time.Millisecond
	defaultMaxBackoff  = 60 * time.Second
)

// Controller reruns an operation with exponential backoff.
//
// Only errors accepted by the retry predicate are retried; anything else
// aborts the loop and is returned as-is. Backoff sleeps are cancellable
// through the context, and the last failure is always surfaced, never
// swallowed.
type Controller struct {
	maxRetries  int
	backoffBase time.Duration
	maxBackoff  time.Duration
	retryIf     func(error) bool
	log         *zap.Logger
}

// Option defines a function to configure the Controller.
type Option func(*Controller)

// WithMaxRetries sets how many additional attempts follow the first.
func WithMaxRetries(n int) Option {
	return func(c *Controller) {
		c.maxRetries = n
	}
}

// WithBackoffBase sets the delay before the first retry; later retries
// double it.
func WithBackoffBase(d time.Duration) Option {
	return func(c *Controller) {
		c.backoffBase = d
	}
}

// WithMaxBackoff caps a single backoff sleep.
func WithMaxBackoff(d time.Duration) Option {
	return func(c *Controller) {
		c.maxBackoff = d
	}
}

// WithRetryIf sets the predicate deciding whether an error is worth
// another attempt. The default retries everything.
func WithRetryIf(fn func(error) bool) Option {
	return func(c *Controller) {
		if fn != nil {
			c.retryIf = fn
		}
	}
}

// WithLogger sets the logger for retry events.
func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.log = l
		}
	}
}

// New creates a Controller with default values and optional overrides.
func New(opts ...Option) *Controller {
	c := &Controller{
		maxRetries:  defaultMaxRetries,
		backoffBase: defaultBackoffBase,
		maxBackoff:  defaultMaxBackoff,
		retryIf:     func(error) bool { return true },
		log:         zap.NewNop(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Do executes fn until it succeeds, fails with an error the predicate
// rejects, exhausts maxRetries additional attempts, or ctx is done. For
// maxRetries N the operation runs at most N+1 times.
func (c *Controller) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	var err error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			wait := c.Backoff(attempt - 1)
			c.log.Debug("retrying after failure",
				zap.Int("attempt", attempt),
				zap.Duration("backoff", wait),
				zap.Error(err))

			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		err = fn(ctx)
		if err == nil {
			return nil
		}
		if !c.retryIf(err) {
			return err
		}
	}

	return err
}

// Backoff returns the sleep that follows failed attempt attemptIndex
// (zero-based): the base delay doubled attemptIndex times, capped at the
// maximum.
func (c *Controller) Backoff(attemptIndex int) time.Duration {
	if attemptIndex < 0 {
		attemptIndex = 0
	}
	// Past 30 doublings the shift would overflow any sane base.
	if attemptIndex > 30 {
		return c.maxBackoff
	}
	d := c.backoffBase << uint(attemptIndex)
	if d <= 0 || d > c.maxBackoff {
		return c.maxBackoff
	}
	return d
}

// DoWithData executes fn with retries and returns its value.
func DoWithData[T any](c *Controller, ctx context.Context, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := c.Do(ctx, func(ctx context.Context) error {
		var e error
		result, e = fn(ctx)
		return e
	})
	return result, err
}
