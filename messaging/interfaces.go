package messaging

import (
	"context"
	"time"
)

// Publisher publishes messages to one destination
type Publisher[T any] interface {
	// Publish sends msg, connecting to the broker on first use
	Publish(ctx context.Context, msg T) error

	// Close releases the broker connection
	Close() error
}

// MessageHandler processes a received message. In ClientAcknowledge mode a
// nil return acknowledges the message.
type MessageHandler[T any] func(ctx context.Context, msg T) error

// Source is a subscribable stream of inbound messages
type Source[T any] interface {
	// Subscribe starts delivering messages to handler until the returned
	// subscription is unsubscribed, ctx is done or the stream fails
	Subscribe(ctx context.Context, handler MessageHandler[T]) (Subscription, error)
}

// Subscription is an active subscription to a Source
type Subscription interface {
	// Unsubscribe stops delivery and waits for the subscription to finish
	Unsubscribe() error

	// Done is closed when the subscription has finished
	Done() <-chan struct{}

	// Err returns the error that terminated the subscription, or nil if it
	// was unsubscribed or is still running
	Err() error

	// Wait blocks until the subscription finishes and returns Err
	Wait() error
}

// MetricsCollector collects messaging metrics
type MetricsCollector interface {
	// RecordPublish records a publish attempt
	RecordPublish(typeName string, destination string, duration time.Duration, success bool)

	// RecordReceive records a delivered inbound message
	RecordReceive(typeName string, destination string)

	// RecordError records an error metric
	RecordError(component string, errorType string)
}

// NoOpMetricsCollector is a no-op implementation of MetricsCollector
type NoOpMetricsCollector struct{}

// RecordPublish does nothing
func (n *NoOpMetricsCollector) RecordPublish(typeName string, destination string, duration time.Duration, success bool) {
}

// RecordReceive does nothing
func (n *NoOpMetricsCollector) RecordReceive(typeName string, destination string) {}

// RecordError does nothing
func (n *NoOpMetricsCollector) RecordError(component string, errorType string) {}
