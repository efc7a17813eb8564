package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/glimte/svcbus-go/contracts"
	"github.com/glimte/svcbus-go/internal/reliability"
	"github.com/glimte/svcbus-go/messaging"
)

var (
	// ErrTooManyPending is returned when the pending request limit is reached
	ErrTooManyPending = errors.New("bridge: too many pending requests")
	// ErrBridgeClosed is returned by SendAndWait after Close
	ErrBridgeClosed = errors.New("bridge: closed")
	// ErrTimeout is returned when no response arrives in time
	ErrTimeout = errors.New("bridge: request timed out")
)

// RequestSender sends requests; ServiceEndpointClient implements it
type RequestSender interface {
	SendRequest(ctx context.Context, req contracts.Request) error
}

type pendingRequest struct {
	responses chan contracts.Response
}

// SyncAsyncBridge enables synchronous request-response over async messaging
type SyncAsyncBridge struct {
	sender         RequestSender
	subscription   messaging.Subscription
	circuitBreaker *reliability.CircuitBreaker
	retryPolicy    reliability.RetryPolicy
	maxPending     int
	defaultTimeout time.Duration
	logger         *slog.Logger

	mu      sync.Mutex
	pending map[string]*pendingRequest
	closed  bool
}

// BridgeOption configures the sync-async bridge
type BridgeOption func(*SyncAsyncBridge)

// WithBridgeCircuitBreaker sends requests through a circuit breaker
func WithBridgeCircuitBreaker(cb *reliability.CircuitBreaker) BridgeOption {
	return func(b *SyncAsyncBridge) {
		b.circuitBreaker = cb
	}
}

// WithRetryPolicy retries failed sends
func WithRetryPolicy(policy reliability.RetryPolicy) BridgeOption {
	return func(b *SyncAsyncBridge) {
		b.retryPolicy = policy
	}
}

// WithMaxPendingRequests limits concurrent outstanding requests
func WithMaxPendingRequests(max int) BridgeOption {
	return func(b *SyncAsyncBridge) {
		b.maxPending = max
	}
}

// WithDefaultTimeout is used when SendAndWait gets a zero timeout
func WithDefaultTimeout(timeout time.Duration) BridgeOption {
	return func(b *SyncAsyncBridge) {
		b.defaultTimeout = timeout
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) BridgeOption {
	return func(b *SyncAsyncBridge) {
		b.logger = logger
	}
}

// NewSyncAsyncBridge subscribes to responses and returns a bridge sending
// through sender. The subscription lives until Close or until ctx ends.
func NewSyncAsyncBridge(ctx context.Context, sender RequestSender, responses messaging.Source[contracts.Response], opts ...BridgeOption) (*SyncAsyncBridge, error) {
	if sender == nil {
		return nil, fmt.Errorf("sender cannot be nil")
	}
	if responses == nil {
		return nil, fmt.Errorf("responses cannot be nil")
	}

	b := &SyncAsyncBridge{
		sender:         sender,
		maxPending:     1000,
		defaultTimeout: 30 * time.Second,
		logger:         slog.Default(),
		pending:        make(map[string]*pendingRequest),
	}
	for _, opt := range opts {
		opt(b)
	}

	sub, err := responses.Subscribe(ctx, b.handleResponse)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to responses: %w", err)
	}
	b.subscription = sub
	return b, nil
}

// SendAndWait sends req and waits for the first response carrying its request ID
func (b *SyncAsyncBridge) SendAndWait(ctx context.Context, req contracts.Request, timeout time.Duration) (contracts.Response, error) {
	if req == nil {
		return nil, messaging.ErrNilMessage
	}
	if timeout <= 0 {
		timeout = b.defaultTimeout
	}
	requestID := req.GetRequestID()

	pending := &pendingRequest{responses: make(chan contracts.Response, 1)}

	b.mu.Lock()
	switch {
	case b.closed:
		b.mu.Unlock()
		return nil, ErrBridgeClosed
	case len(b.pending) >= b.maxPending:
		b.mu.Unlock()
		return nil, ErrTooManyPending
	}
	b.pending[requestID] = pending
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		delete(b.pending, requestID)
		b.mu.Unlock()
	}()

	requestCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := b.send(requestCtx, req); err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	select {
	case resp := <-pending.responses:
		return resp, nil
	case <-b.subscription.Done():
		return nil, fmt.Errorf("response subscription ended: %w", errors.Join(ErrBridgeClosed, b.subscription.Err()))
	case <-requestCtx.Done():
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w after %s", ErrTimeout, timeout)
	}
}

func (b *SyncAsyncBridge) send(ctx context.Context, req contracts.Request) error {
	send := func(ctx context.Context) error {
		if b.retryPolicy == nil {
			return b.sender.SendRequest(ctx, req)
		}
		return reliability.Retry(ctx, b.retryPolicy, func(ctx context.Context) error {
			return b.sender.SendRequest(ctx, req)
		})
	}
	if b.circuitBreaker != nil {
		return b.circuitBreaker.Execute(ctx, send)
	}
	return send(ctx)
}

func (b *SyncAsyncBridge) handleResponse(_ context.Context, resp contracts.Response) error {
	requestID := resp.GetRequestID()

	b.mu.Lock()
	pending, exists := b.pending[requestID]
	b.mu.Unlock()

	if !exists {
		// late, or meant for another client
		b.logger.Debug("no pending request for response", "requestId", requestID)
		return nil
	}

	select {
	case pending.responses <- resp:
	default:
		b.logger.Debug("duplicate response dropped", "requestId", requestID)
	}
	return nil
}

// PendingRequests returns the number of requests waiting for a response
func (b *SyncAsyncBridge) PendingRequests() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Close ends the response subscription. Waiting callers return ErrBridgeClosed.
func (b *SyncAsyncBridge) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	if err := b.subscription.Unsubscribe(); err != nil {
		return err
	}
	return b.subscription.Wait()
}

// RequestTyped sends req and asserts the response type
func RequestTyped[R contracts.Response](ctx context.Context, b *SyncAsyncBridge, req contracts.Request, timeout time.Duration) (R, error) {
	var zero R
	resp, err := b.SendAndWait(ctx, req, timeout)
	if err != nil {
		return zero, err
	}
	typed, ok := resp.(R)
	if !ok {
		return zero, fmt.Errorf("unexpected response type %s", contracts.TypeName(resp))
	}
	return typed, nil
}
