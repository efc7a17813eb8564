package reliability

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestBreaker(clock *fakeClock, opts ...CircuitBreakerOption) *CircuitBreaker {
	cb := NewCircuitBreaker(append([]CircuitBreakerOption{
		WithName("test"),
		WithFailureThreshold(2),
		WithTimeout(time.Second),
	}, opts...)...)
	cb.now = clock.Now
	return cb
}

func TestCircuitBreaker(t *testing.T) {
	boom := errors.New("broker down")
	fail := func(context.Context) error { return boom }
	ok := func(context.Context) error { return nil }

	t.Run("opens after consecutive failures", func(t *testing.T) {
		cb := newTestBreaker(&fakeClock{now: time.Now()})

		assert.ErrorIs(t, cb.Execute(context.Background(), fail), boom)
		assert.Equal(t, StateClosed, cb.State())
		assert.ErrorIs(t, cb.Execute(context.Background(), fail), boom)
		assert.Equal(t, StateOpen, cb.State())

		called := false
		err := cb.Execute(context.Background(), func(context.Context) error {
			called = true
			return nil
		})
		assert.ErrorIs(t, err, ErrCircuitOpen)
		assert.False(t, called)
	})

	t.Run("success resets the failure count", func(t *testing.T) {
		cb := newTestBreaker(&fakeClock{now: time.Now()})

		_ = cb.Execute(context.Background(), fail)
		require.NoError(t, cb.Execute(context.Background(), ok))
		_ = cb.Execute(context.Background(), fail)

		assert.Equal(t, StateClosed, cb.State())
	})

	t.Run("non-retryable errors do not count", func(t *testing.T) {
		cb := newTestBreaker(&fakeClock{now: time.Now()})
		permanent := func(context.Context) error { return Permanent(boom) }

		for i := 0; i < 5; i++ {
			_ = cb.Execute(context.Background(), permanent)
		}
		assert.Equal(t, StateClosed, cb.State())
	})

	t.Run("probe after timeout closes the circuit", func(t *testing.T) {
		clock := &fakeClock{now: time.Now()}
		cb := newTestBreaker(clock)
		_ = cb.Execute(context.Background(), fail)
		_ = cb.Execute(context.Background(), fail)
		require.Equal(t, StateOpen, cb.State())

		clock.Advance(2 * time.Second)
		require.NoError(t, cb.Execute(context.Background(), ok))

		assert.Equal(t, StateClosed, cb.State())
	})

	t.Run("failed probe reopens the circuit", func(t *testing.T) {
		clock := &fakeClock{now: time.Now()}
		cb := newTestBreaker(clock)
		_ = cb.Execute(context.Background(), fail)
		_ = cb.Execute(context.Background(), fail)

		clock.Advance(2 * time.Second)
		assert.ErrorIs(t, cb.Execute(context.Background(), fail), boom)

		assert.Equal(t, StateOpen, cb.State())
		assert.ErrorIs(t, cb.Execute(context.Background(), ok), ErrCircuitOpen)
	})

	t.Run("half-open admits a limited number of probes", func(t *testing.T) {
		clock := &fakeClock{now: time.Now()}
		cb := newTestBreaker(clock)
		_ = cb.Execute(context.Background(), fail)
		_ = cb.Execute(context.Background(), fail)
		clock.Advance(2 * time.Second)

		probing := make(chan struct{})
		release := make(chan struct{})
		done := make(chan error, 1)
		go func() {
			done <- cb.Execute(context.Background(), func(context.Context) error {
				close(probing)
				<-release
				return nil
			})
		}()
		<-probing

		err := cb.Execute(context.Background(), ok)
		var cbErr *CircuitBreakerError
		require.ErrorAs(t, err, &cbErr)
		assert.Equal(t, StateHalfOpen, cbErr.State)

		close(release)
		require.NoError(t, <-done)
		assert.Equal(t, StateClosed, cb.State())
	})

	t.Run("reset closes the circuit", func(t *testing.T) {
		cb := newTestBreaker(&fakeClock{now: time.Now()})
		_ = cb.Execute(context.Background(), fail)
		_ = cb.Execute(context.Background(), fail)

		cb.Reset()

		assert.Equal(t, StateClosed, cb.State())
		assert.NoError(t, cb.Execute(context.Background(), ok))
	})
}
