package health

import (
	"context"
	"log/slog"
	"time"

	"github.com/glimte/svcbus-go/messaging"
)

// PublisherState is implemented by messaging.MessagePublisher
type PublisherState interface {
	State() messaging.ConnectionState
	Destination() messaging.Destination
}

// PublisherChecker reports the connection state of a publisher. A closed
// publisher is unhealthy, one that is still connecting is degraded.
type PublisherChecker struct {
	name      string
	publisher PublisherState
}

// NewPublisherChecker creates a checker named after the publisher's destination
func NewPublisherChecker(publisher PublisherState) *PublisherChecker {
	return &PublisherChecker{name: "publisher:" + publisher.Destination().Name, publisher: publisher}
}

func (c *PublisherChecker) Name() string {
	return c.name
}

func (c *PublisherChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	state := c.publisher.State()

	result := CheckResult{
		Name:      c.name,
		Timestamp: start,
		Details: map[string]interface{}{
			"destination": c.publisher.Destination().String(),
			"state":       state.String(),
		},
	}

	switch state {
	case messaging.Closed:
		result.Status = StatusUnhealthy
		result.Message = "publisher is closed"
	case messaging.Connecting:
		result.Status = StatusDegraded
		result.Message = "publisher is connecting"
	case messaging.Connected:
		result.Status = StatusHealthy
		result.Message = "publisher is connected"
	default:
		// publishers connect lazily
		result.Status = StatusHealthy
		result.Message = "publisher has not connected yet"
	}

	result.Duration = time.Since(start)
	return result
}

// SubscriptionChecker reports whether a subscription is still receiving
type SubscriptionChecker struct {
	name string
	sub  messaging.Subscription
}

// NewSubscriptionChecker creates a checker for sub
func NewSubscriptionChecker(name string, sub messaging.Subscription) *SubscriptionChecker {
	return &SubscriptionChecker{name: name, sub: sub}
}

func (c *SubscriptionChecker) Name() string {
	return c.name
}

func (c *SubscriptionChecker) Check(ctx context.Context) CheckResult {
	result := CheckResult{Name: c.name, Timestamp: time.Now(), Status: StatusHealthy, Message: "subscription active"}

	select {
	case <-c.sub.Done():
		result.Status = StatusUnhealthy
		result.Message = "subscription ended"
		if err := c.sub.Err(); err != nil {
			result.Error = err.Error()
		}
	default:
	}

	result.Duration = time.Since(result.Timestamp)
	return result
}

// BrokerChecker opens and closes a broker connection
type BrokerChecker struct {
	name    string
	factory messaging.ConnectionFactory
	logger  *slog.Logger
}

// NewBrokerChecker creates a connectivity checker. A nil logger uses slog.Default.
func NewBrokerChecker(name string, factory messaging.ConnectionFactory, logger *slog.Logger) *BrokerChecker {
	if logger == nil {
		logger = slog.Default()
	}
	return &BrokerChecker{name: name, factory: factory, logger: logger}
}

func (c *BrokerChecker) Name() string {
	return c.name
}

func (c *BrokerChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	result := CheckResult{Name: c.name, Timestamp: start}

	conn, err := c.factory.CreateConnection(ctx)
	if err != nil {
		result.Status = StatusUnhealthy
		result.Message = "failed to connect"
		result.Error = err.Error()
		result.Duration = time.Since(start)
		return result
	}

	if err := conn.Close(); err != nil {
		c.logger.Warn("health check connection close failed", "checker", c.name, "error", err)
		result.Status = StatusDegraded
		result.Message = "connection close failed"
		result.Error = err.Error()
	} else {
		result.Status = StatusHealthy
		result.Message = "broker reachable"
	}

	result.Duration = time.Since(start)
	return result
}
