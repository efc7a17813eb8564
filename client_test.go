package svcbus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glimte/svcbus-go/contracts"
	"github.com/glimte/svcbus-go/messaging"
	"github.com/glimte/svcbus-go/monitor"
	"github.com/glimte/svcbus-go/serialization"
	"github.com/glimte/svcbus-go/transports/memory"
)

type billingMessage interface {
	contracts.Message
	billing()
}

type chargeCard struct {
	contracts.BaseCommand
	Amount int64 `json:"amount"`
}

func (*chargeCard) billing() {}

type cardCharged struct {
	contracts.BaseEvent
	Amount int64 `json:"amount"`
}

func (*cardCharged) billing() {}

func TestConfigure_Validation(t *testing.T) {
	_, err := Configure[billingMessage]().UsingBroker(memory.NewBroker()).AsServer()
	assert.ErrorIs(t, err, messaging.ErrInvalidConfiguration)

	_, err = Configure[billingMessage]().Named("Billing").AsClient()
	assert.ErrorIs(t, err, messaging.ErrInvalidConfiguration)
}

func TestConfigure_RegistrationErrorIsKept(t *testing.T) {
	_, err := Configure[billingMessage]().
		Named("Billing").
		UsingBroker(memory.NewBroker()).
		WithMessageTypes(nil).
		WithMessageTypes(&chargeCard{}).
		AsServer()
	assert.Error(t, err)
}

func TestConfigure_Destinations(t *testing.T) {
	provider, err := Configure[billingMessage]().
		Named("Billing").
		UsingBroker(memory.NewBroker()).
		WithQueueRoles(contracts.RoleCommand, contracts.RoleRequest).
		Provider()
	require.NoError(t, err)

	assert.Equal(t, messaging.NewQueue("Billing.Commands"), provider.Destination(contracts.RoleCommand))
	assert.Equal(t, messaging.NewQueue("Billing.Requests"), provider.Destination(contracts.RoleRequest))
	assert.Equal(t, messaging.NewTopic("Billing.Events"), provider.Destination(contracts.RoleEvent))
	assert.Equal(t, messaging.NewTopic("Billing.Responses"), provider.Destination(contracts.RoleResponse))
}

func TestAsClientAndServer(t *testing.T) {
	broker := memory.NewBroker()
	defer broker.Close()
	metrics := monitor.NewSimpleMetricsCollector()

	zstdSerializer, err := serialization.NewZstdSerializer(serialization.NewJSONSerializer())
	require.NoError(t, err)
	zstdDeserializers, err := serialization.NewZstdDeserializerFactory(serialization.JSONDeserializerFactory{})
	require.NoError(t, err)

	svc, err := Configure[billingMessage]().
		Named("Billing").
		UsingBroker(broker).
		WithMessageTypes(&chargeCard{}, &cardCharged{}).
		WithQueueRoles(contracts.RoleCommand).
		SerializedWith(zstdSerializer, zstdDeserializers).
		WithAckMode(messaging.ClientAcknowledge).
		WithMetrics(metrics).
		AsClientAndServer()
	require.NoError(t, err)
	defer svc.Close()

	events := make(chan contracts.Event, 1)
	eventSub, err := svc.Client.Events().Subscribe(context.Background(), func(_ context.Context, e contracts.Event) error {
		events <- e
		return nil
	})
	require.NoError(t, err)
	defer eventSub.Unsubscribe()

	cmdSub, err := svc.Server.Commands().Subscribe(context.Background(), func(ctx context.Context, cmd contracts.Command) error {
		charge := cmd.(*chargeCard)
		return svc.Server.Publish(ctx, &cardCharged{BaseEvent: contracts.NewBaseEvent(charge.GetID(), 1), Amount: charge.Amount})
	})
	require.NoError(t, err)
	defer cmdSub.Unsubscribe()

	cmd := &chargeCard{BaseCommand: contracts.NewBaseCommand("Billing"), Amount: 1250}
	require.NoError(t, svc.Client.Send(context.Background(), cmd))

	select {
	case e := <-events:
		charged, ok := e.(*cardCharged)
		require.True(t, ok)
		assert.Equal(t, int64(1250), charged.Amount)
		assert.Equal(t, cmd.GetID(), charged.GetAggregateID())
	case <-time.After(2 * time.Second):
		t.Fatal("event not received")
	}

	assert.Eventually(t, func() bool {
		summary := metrics.GetMetricsSummary()
		return summary.Published["chargeCard"] == 1 && summary.Published["cardCharged"] == 1
	}, time.Second, 10*time.Millisecond)
	assert.True(t, svc.Client.CanHandle(cmd))
}
