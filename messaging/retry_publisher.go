package messaging

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/glimte/svcbus-go/internal/reliability"
)

// RetryingPublisher retries failed publishes of the wrapped publisher
// according to a retry policy and, optionally, stops calling it while a
// circuit breaker is open. Serialization failures, nil messages and closed
// publishers are never retried.
type RetryingPublisher[T any] struct {
	inner   Publisher[T]
	policy  reliability.RetryPolicy
	breaker *reliability.CircuitBreaker
	logger  *slog.Logger
}

// RetryOption configures the RetryingPublisher
type RetryOption func(*retryOptions)

type retryOptions struct {
	breaker *reliability.CircuitBreaker
	logger  *slog.Logger
}

// WithCircuitBreaker guards the wrapped publisher with cb
func WithCircuitBreaker(cb *reliability.CircuitBreaker) RetryOption {
	return func(o *retryOptions) {
		o.breaker = cb
	}
}

// WithRetryLogger sets the logger
func WithRetryLogger(logger *slog.Logger) RetryOption {
	return func(o *retryOptions) {
		o.logger = logger
	}
}

// NewRetryingPublisher wraps inner. A nil policy retries three times with
// exponential backoff starting at 100ms.
func NewRetryingPublisher[T any](inner Publisher[T], policy reliability.RetryPolicy, options ...RetryOption) *RetryingPublisher[T] {
	o := retryOptions{logger: slog.Default()}
	for _, opt := range options {
		opt(&o)
	}
	if policy == nil {
		policy = reliability.NewExponentialBackoff(defaultRetryInterval, defaultRetryMaxInterval, 2, 3)
	}

	return &RetryingPublisher[T]{
		inner:   inner,
		policy:  policy,
		breaker: o.breaker,
		logger:  o.logger,
	}
}

// Publish implements Publisher
func (p *RetryingPublisher[T]) Publish(ctx context.Context, msg T) error {
	attempt := func(ctx context.Context) error {
		err := p.publishOnce(ctx, msg)
		if errors.Is(err, ErrPublisherClosed) || errors.Is(err, ErrNilMessage) {
			return reliability.Permanent(err)
		}
		return err
	}

	err := reliability.Retry(ctx, p.policy, attempt)
	if err != nil {
		p.logger.Warn("publish failed", "error", err)
	}
	return err
}

func (p *RetryingPublisher[T]) publishOnce(ctx context.Context, msg T) error {
	if p.breaker == nil {
		return p.inner.Publish(ctx, msg)
	}
	return p.breaker.Execute(ctx, func(ctx context.Context) error {
		return p.inner.Publish(ctx, msg)
	})
}

// Close closes the wrapped publisher
func (p *RetryingPublisher[T]) Close() error {
	return p.inner.Close()
}

const (
	defaultRetryInterval    = 100 * time.Millisecond
	defaultRetryMaxInterval = 5 * time.Second
)
