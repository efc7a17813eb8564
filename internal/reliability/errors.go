package reliability

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrCircuitOpen is matched by calls rejected by an open circuit
	ErrCircuitOpen = errors.New("circuit breaker: circuit is open")

	// ErrNonRetryable marks an error that must not be retried
	ErrNonRetryable = errors.New("retry: error is not retryable")
)

// CircuitBreakerError reports a call rejected by the circuit breaker
type CircuitBreakerError struct {
	Name             string
	State            State
	Failures         int
	FailureThreshold int
	NextRetry        time.Time
}

func (e *CircuitBreakerError) Error() string {
	if e.State == StateOpen {
		retryIn := time.Until(e.NextRetry).Round(time.Millisecond)
		return fmt.Sprintf("circuit breaker %s open: call blocked (failures=%d/%d, retry in %v)",
			e.Name, e.Failures, e.FailureThreshold, retryIn)
	}
	return fmt.Sprintf("circuit breaker %s %s: probe limit reached", e.Name, e.State)
}

// Is makes the error match ErrCircuitOpen
func (e *CircuitBreakerError) Is(target error) bool {
	return target == ErrCircuitOpen
}

// IsRetryable reports whether waiting may let the call through
func (e *CircuitBreakerError) IsRetryable() bool {
	return true
}

// RetryError reports an operation that kept failing until the policy gave up
type RetryError struct {
	Attempts  int
	LastError error
	Duration  time.Duration
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("retry failed after %d attempts over %v: %v",
		e.Attempts, e.Duration.Round(time.Millisecond), e.LastError)
}

func (e *RetryError) Unwrap() error {
	return e.LastError
}

// RetryableError wraps an error with an explicit retry decision
type RetryableError struct {
	Err       error
	Retryable bool
}

func (r RetryableError) Error() string {
	return r.Err.Error()
}

// IsRetryable reports the wrapped decision
func (r RetryableError) IsRetryable() bool {
	return r.Retryable
}

func (r RetryableError) Unwrap() error {
	return r.Err
}

// Permanent marks err as not retryable
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return RetryableError{Err: err, Retryable: false}
}

type retryable interface {
	IsRetryable() bool
}

// IsRetryableError reports whether err is worth another attempt. The first
// error in the chain that implements IsRetryable decides; cancellation and
// ErrNonRetryable never retry; anything else does.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNonRetryable) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var r retryable
	if errors.As(err, &r) {
		return r.IsRetryable()
	}
	return true
}
