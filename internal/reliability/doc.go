// Package reliability provides the retry and circuit breaker policies used to
// harden publishing.
//
// Retry policies decide, per attempt, whether an error is worth another try
// and how long to wait first (fixed or exponential backoff with jitter).
// Errors opt out of retries by implementing IsRetryable() bool or by
// wrapping ErrNonRetryable.
//
// The circuit breaker stops calls to a failing dependency after a number of
// consecutive failures and lets a limited number of probes through once its
// open timeout expires.
//
// Example usage:
//
//	cb := NewCircuitBreaker(
//	    WithFailureThreshold(5),
//	    WithTimeout(30 * time.Second),
//	)
//
//	err := Retry(ctx, NewExponentialBackoff(100*time.Millisecond, 5*time.Second, 2, 4), func(ctx context.Context) error {
//	    return cb.Execute(ctx, publish)
//	})
package reliability
