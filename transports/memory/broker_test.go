package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glimte/svcbus-go/messaging"
)

func open(t *testing.T, b *Broker, mode messaging.AckMode) (messaging.Connection, messaging.Session) {
	t.Helper()
	conn, err := b.CreateConnection(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	session, err := conn.CreateSession(mode)
	require.NoError(t, err)
	return conn, session
}

func receiveText(t *testing.T, c messaging.Consumer) string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	msg, err := c.Receive(ctx)
	require.NoError(t, err)
	return msg.(messaging.TextMessage).Text()
}

func TestQueueDeliversToOneConsumer(t *testing.T) {
	b := NewBroker()
	dest := messaging.NewQueue("Orders.Commands")

	conn, session := open(t, b, messaging.AutoAcknowledge)
	first, err := session.CreateConsumer(dest)
	require.NoError(t, err)
	second, err := session.CreateConsumer(dest)
	require.NoError(t, err)
	require.NoError(t, conn.Start())

	_, pubSession := open(t, b, messaging.AutoAcknowledge)
	producer, err := pubSession.CreateProducer(dest)
	require.NoError(t, err)
	for _, text := range []string{"a", "b"} {
		require.NoError(t, producer.Send(context.Background(), messaging.NewTextMessage(text)))
	}

	got := []string{receiveText(t, first), receiveText(t, second)}
	assert.ElementsMatch(t, []string{"a", "b"}, got)
	assert.Equal(t, 0, b.Depth("Orders.Commands"))
	assert.Equal(t, int64(2), b.Stats().Delivered)
}

func TestQueueKeepsMessagesWithoutConsumers(t *testing.T) {
	b := NewBroker()
	dest := messaging.NewQueue("Orders.Commands")

	_, session := open(t, b, messaging.AutoAcknowledge)
	producer, err := session.CreateProducer(dest)
	require.NoError(t, err)
	require.NoError(t, producer.Send(context.Background(), messaging.NewTextMessage("early")))
	assert.Equal(t, 1, b.Depth("Orders.Commands"))

	conn, consumerSession := open(t, b, messaging.AutoAcknowledge)
	consumer, err := consumerSession.CreateConsumer(dest)
	require.NoError(t, err)
	require.NoError(t, conn.Start())
	assert.Equal(t, "early", receiveText(t, consumer))
}

func TestTopicFansOut(t *testing.T) {
	b := NewBroker()
	dest := messaging.NewTopic("Orders.Events")

	conn, session := open(t, b, messaging.AutoAcknowledge)
	first, err := session.CreateConsumer(dest)
	require.NoError(t, err)
	second, err := session.CreateConsumer(dest)
	require.NoError(t, err)
	require.NoError(t, conn.Start())

	producer, err := session.CreateProducer(dest)
	require.NoError(t, err)
	msg := messaging.NewTextMessage("placed")
	msg.Properties().SetString("TypeName", "orderPlaced")
	require.NoError(t, producer.Send(context.Background(), msg))

	assert.Equal(t, "placed", receiveText(t, first))
	assert.Equal(t, "placed", receiveText(t, second))

	// closed subscribers no longer receive copies
	require.NoError(t, second.Close())
	require.NoError(t, producer.Send(context.Background(), messaging.NewTextMessage("again")))
	assert.Equal(t, "again", receiveText(t, first))
	assert.Len(t, b.subscribers("Orders.Events"), 1)
}

func TestTopicWithoutSubscribersDropsMessages(t *testing.T) {
	b := NewBroker()
	_, session := open(t, b, messaging.AutoAcknowledge)
	producer, err := session.CreateProducer(messaging.NewTopic("Orders.Events"))
	require.NoError(t, err)

	require.NoError(t, producer.Send(context.Background(), messaging.NewTextMessage("lost")))
	assert.Equal(t, int64(1), b.Stats().Sent)
}

func TestDeliveredMessagesAreCopies(t *testing.T) {
	b := NewBroker()
	dest := messaging.NewTopic("Orders.Events")
	conn, session := open(t, b, messaging.AutoAcknowledge)
	consumer, err := session.CreateConsumer(dest)
	require.NoError(t, err)
	require.NoError(t, conn.Start())

	data := []byte{1, 2, 3}
	msg := messaging.NewBytesMessage(data)
	msg.Properties().SetInt("Priority", 1)
	producer, err := session.CreateProducer(dest)
	require.NoError(t, err)
	require.NoError(t, producer.Send(context.Background(), msg))

	data[0] = 9
	msg.Properties().SetInt("Priority", 2)

	got, err := consumer.Receive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, got.(messaging.BytesMessage).Bytes())
	priority, _ := got.Properties().Get("Priority")
	n, _ := priority.Int()
	assert.Equal(t, int32(1), n)
}

func TestReceiveWaitsForStart(t *testing.T) {
	b := NewBroker()
	dest := messaging.NewQueue("Orders.Commands")
	conn, session := open(t, b, messaging.AutoAcknowledge)
	consumer, err := session.CreateConsumer(dest)
	require.NoError(t, err)
	producer, err := session.CreateProducer(dest)
	require.NoError(t, err)
	require.NoError(t, producer.Send(context.Background(), messaging.NewTextMessage("held")))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = consumer.Receive(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, conn.Start())
	assert.Equal(t, "held", receiveText(t, consumer))
}

func TestClientAcknowledge(t *testing.T) {
	b := NewBroker()
	dest := messaging.NewQueue("Orders.Commands")
	conn, session := open(t, b, messaging.ClientAcknowledge)
	consumer, err := session.CreateConsumer(dest)
	require.NoError(t, err)
	require.NoError(t, conn.Start())
	producer, err := session.CreateProducer(dest)
	require.NoError(t, err)
	require.NoError(t, producer.Send(context.Background(), messaging.NewTextMessage("ack me")))

	msg, err := consumer.Receive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), b.Stats().Acknowledged)

	text, ok := msg.(messaging.TextMessage)
	require.True(t, ok)
	assert.Equal(t, "ack me", text.Text())

	ack, ok := msg.(messaging.Acknowledger)
	require.True(t, ok)
	require.NoError(t, ack.Acknowledge())
	require.NoError(t, ack.Acknowledge())
	assert.Equal(t, int64(1), b.Stats().Acknowledged)
}

func TestSendBlocksOnFullBuffer(t *testing.T) {
	b := NewBroker(WithBufferSize(1))
	_, session := open(t, b, messaging.AutoAcknowledge)
	producer, err := session.CreateProducer(messaging.NewQueue("Orders.Commands"))
	require.NoError(t, err)

	require.NoError(t, producer.Send(context.Background(), messaging.NewTextMessage("1")))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, producer.Send(ctx, messaging.NewTextMessage("2")), context.DeadlineExceeded)
}

func TestCloseUnblocksReceivers(t *testing.T) {
	b := NewBroker()
	conn, session := open(t, b, messaging.AutoAcknowledge)
	consumer, err := session.CreateConsumer(messaging.NewQueue("Orders.Commands"))
	require.NoError(t, err)
	require.NoError(t, conn.Start())

	errs := make(chan error, 1)
	go func() {
		_, err := consumer.Receive(context.Background())
		errs <- err
	}()

	require.NoError(t, conn.Close())
	select {
	case err := <-errs:
		assert.ErrorIs(t, err, ErrConnectionClosed)
	case <-time.After(time.Second):
		t.Fatal("receive did not return after close")
	}

	_, err = conn.CreateSession(messaging.AutoAcknowledge)
	assert.ErrorIs(t, err, ErrConnectionClosed)
}

func TestBrokerClose(t *testing.T) {
	b := NewBroker()
	_, session := open(t, b, messaging.AutoAcknowledge)
	producer, err := session.CreateProducer(messaging.NewQueue("Orders.Commands"))
	require.NoError(t, err)

	require.NoError(t, b.Close())
	require.NoError(t, b.Close())

	_, err = b.CreateConnection(context.Background())
	assert.ErrorIs(t, err, ErrBrokerClosed)
	assert.ErrorIs(t, producer.Send(context.Background(), messaging.NewTextMessage("x")), ErrBrokerClosed)
}

func TestDestinationNameRequired(t *testing.T) {
	_, session := open(t, NewBroker(), messaging.AutoAcknowledge)

	_, err := session.CreateProducer(messaging.Destination{})
	assert.Error(t, err)
	_, err = session.CreateConsumer(messaging.Destination{})
	assert.Error(t, err)
}
