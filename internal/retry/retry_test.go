package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestControllerDo(t *testing.T) {
	t.Run("success on first attempt", func(t *testing.T) {
		c := New()
		attempts := 0
		err := c.Do(context.Background(), func(ctx context.Context) error {
			attempts++
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 1, attempts)
	})

	t.Run("success after retries", func(t *testing.T) {
		c := New(WithMaxRetries(3), WithBackoffBase(1*time.Millisecond))
		attempts := 0
		err := c.Do(context.Background(), func(ctx context.Context) error {
			attempts++
			if attempts < 3 {
				return errors.New("flaky")
			}
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 3, attempts)
	})

	t.Run("exactly maxRetries plus one attempts", func(t *testing.T) {
		c := New(WithMaxRetries(2), WithBackoffBase(1*time.Millisecond))
		attempts := 0
		wantErr := errors.New("down")
		err := c.Do(context.Background(), func(ctx context.Context) error {
			attempts++
			return wantErr
		})
		assert.ErrorIs(t, err, wantErr)
		assert.Equal(t, 3, attempts) // 1 initial + 2 retries
	})

	t.Run("zero retries means single attempt", func(t *testing.T) {
		c := New(WithMaxRetries(0))
		attempts := 0
		err := c.Do(context.Background(), func(ctx context.Context) error {
			attempts++
			return errors.New("down")
		})
		assert.Error(t, err)
		assert.Equal(t, 1, attempts)
	})

	t.Run("rejected error aborts immediately", func(t *testing.T) {
		fatal := errors.New("bad data")
		c := New(
			WithMaxRetries(5),
			WithBackoffBase(1*time.Millisecond),
			WithRetryIf(func(err error) bool { return !errors.Is(err, fatal) }),
		)
		attempts := 0
		err := c.Do(context.Background(), func(ctx context.Context) error {
			attempts++
			return fatal
		})
		assert.ErrorIs(t, err, fatal)
		assert.Equal(t, 1, attempts)
	})

	t.Run("context cancellation stops the backoff sleep", func(t *testing.T) {
		c := New(WithMaxRetries(5), WithBackoffBase(100*time.Millisecond))
		ctx, cancel := context.WithCancel(context.Background())

		attempts := 0
		start := time.Now()
		err := c.Do(ctx, func(ctx context.Context) error {
			attempts++
			if attempts == 2 {
				cancel()
			}
			return errors.New("down")
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 2, attempts)
		// The remaining sleeps (200ms, 400ms, ...) must not have run.
		assert.Less(t, time.Since(start), 500*time.Millisecond)
	})
}

func TestControllerBackoff(t *testing.T) {
	c := New(WithBackoffBase(300*time.Millisecond), WithMaxBackoff(60*time.Second))

	assert.Equal(t, 300*time.Millisecond, c.Backoff(0))
	assert.Equal(t, 600*time.Millisecond, c.Backoff(1))
	assert.Equal(t, 1200*time.Millisecond, c.Backoff(2))
	assert.Equal(t, 2400*time.Millisecond, c.Backoff(3))

	// Doubling is capped, never overflowed.
	assert.Equal(t, 60*time.Second, c.Backoff(10))
	assert.Equal(t, 60*time.Second, c.Backoff(63))
	assert.Equal(t, 300*time.Millisecond, c.Backoff(-1))
}

func TestDoWithData(t *testing.T) {
	t.Run("success returns data", func(t *testing.T) {
		c := New()
		val, err := DoWithData(c, context.Background(), func(ctx context.Context) (string, error) {
			return "45000.50", nil
		})
		assert.NoError(t, err)
		assert.Equal(t, "45000.50", val)
	})

	t.Run("fail returns last value and error", func(t *testing.T) {
		c := New(WithMaxRetries(1), WithBackoffBase(1*time.Millisecond))
		val, err := DoWithData(c, context.Background(), func(ctx context.Context) (string, error) {
			return "partial", errors.New("down")
		})
		assert.Error(t, err)
		assert.Equal(t, "partial", val)
	})
}
