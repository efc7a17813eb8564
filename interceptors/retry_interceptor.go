package interceptors

import (
	"context"
	"log/slog"

	"github.com/glimte/svcbus-go/contracts"
	"github.com/glimte/svcbus-go/internal/reliability"
)

// RetryInterceptor retries failed handlers according to a retry policy
type RetryInterceptor struct {
	retryPolicy reliability.RetryPolicy
	logger      *slog.Logger
}

// NewRetryInterceptor creates a new retry interceptor
func NewRetryInterceptor(retryPolicy reliability.RetryPolicy) *RetryInterceptor {
	return &RetryInterceptor{
		retryPolicy: retryPolicy,
		logger:      slog.Default(),
	}
}

// WithLogger sets the logger for the retry interceptor
func (r *RetryInterceptor) WithLogger(logger *slog.Logger) *RetryInterceptor {
	r.logger = logger
	return r
}

// Intercept implements the Interceptor interface
func (r *RetryInterceptor) Intercept(ctx context.Context, msg contracts.Message, next MessageHandler) error {
	attempt := 0
	err := reliability.Retry(ctx, r.retryPolicy, func(ctx context.Context) error {
		attempt++
		if attempt > 1 {
			r.logger.Debug("retrying handler", "typeName", contracts.TypeName(msg), "attempt", attempt)
		}
		return next.Handle(ctx, msg)
	})
	if err != nil && attempt > 1 {
		r.logger.Warn("handler failed after retries", "typeName", contracts.TypeName(msg), "attempts", attempt, "error", err)
	}
	return err
}

// Name returns the interceptor name
func (r *RetryInterceptor) Name() string {
	return "RetryInterceptor"
}

// CircuitBreakerInterceptor runs handlers through a circuit breaker
type CircuitBreakerInterceptor struct {
	breaker *reliability.CircuitBreaker
}

// NewCircuitBreakerInterceptor creates a new circuit breaker interceptor
func NewCircuitBreakerInterceptor(breaker *reliability.CircuitBreaker) *CircuitBreakerInterceptor {
	return &CircuitBreakerInterceptor{breaker: breaker}
}

// Intercept implements the Interceptor interface. While the circuit is open
// the handler is not called and the *reliability.CircuitBreakerError is returned.
func (c *CircuitBreakerInterceptor) Intercept(ctx context.Context, msg contracts.Message, next MessageHandler) error {
	return c.breaker.Execute(ctx, func(ctx context.Context) error {
		return next.Handle(ctx, msg)
	})
}

// Name returns the interceptor name
func (c *CircuitBreakerInterceptor) Name() string {
	return "CircuitBreakerInterceptor"
}
