package health

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/glimte/svcbus-go/messaging"
	"github.com/glimte/svcbus-go/transports/memory"
)

type fakePublisher struct {
	state messaging.ConnectionState
}

func (p fakePublisher) State() messaging.ConnectionState { return p.state }
func (p fakePublisher) Destination() messaging.Destination {
	return messaging.NewTopic("Orders.Events")
}

func TestPublisherChecker(t *testing.T) {
	tests := []struct {
		state messaging.ConnectionState
		want  Status
	}{
		{messaging.Disconnected, StatusHealthy},
		{messaging.Connecting, StatusDegraded},
		{messaging.Connected, StatusHealthy},
		{messaging.Closed, StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			c := NewPublisherChecker(fakePublisher{state: tt.state})
			result := c.Check(context.Background())

			assert.Equal(t, "publisher:Orders.Events", c.Name())
			assert.Equal(t, tt.want, result.Status)
			assert.Equal(t, tt.state.String(), result.Details["state"])
			assert.Equal(t, "topic://Orders.Events", result.Details["destination"])
		})
	}
}

type fakeSubscription struct {
	done chan struct{}
	err  error
}

func (s *fakeSubscription) Unsubscribe() error    { return nil }
func (s *fakeSubscription) Done() <-chan struct{} { return s.done }
func (s *fakeSubscription) Err() error            { return s.err }
func (s *fakeSubscription) Wait() error           { <-s.done; return s.err }

func TestSubscriptionChecker(t *testing.T) {
	sub := &fakeSubscription{done: make(chan struct{})}
	c := NewSubscriptionChecker("orders-commands", sub)

	assert.Equal(t, StatusHealthy, c.Check(context.Background()).Status)

	sub.err = errors.New("consumer cancelled")
	close(sub.done)

	result := c.Check(context.Background())
	assert.Equal(t, StatusUnhealthy, result.Status)
	assert.Equal(t, "consumer cancelled", result.Error)
}

func TestBrokerChecker(t *testing.T) {
	broker := memory.NewBroker()
	c := NewBrokerChecker("memory", broker, nil)

	assert.Equal(t, StatusHealthy, c.Check(context.Background()).Status)

	_ = broker.Close()
	result := c.Check(context.Background())
	assert.Equal(t, StatusUnhealthy, result.Status)
	assert.Contains(t, result.Error, "closed")
}
