package nats

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glimte/svcbus-go/messaging"
)

type subscription struct {
	subject string
	group   string
	ch      chan *nats.Msg
}

type fakeClient struct {
	mu        sync.Mutex
	published []*nats.Msg
	subs      []subscription
	closed    bool
	drained   bool
	pubErr    error
}

func (c *fakeClient) PublishMsg(msg *nats.Msg) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pubErr != nil {
		return c.pubErr
	}
	c.published = append(c.published, msg)
	return nil
}

func (c *fakeClient) ChanSubscribe(subject string, ch chan *nats.Msg) (*nats.Subscription, error) {
	return c.ChanQueueSubscribe(subject, "", ch)
}

func (c *fakeClient) ChanQueueSubscribe(subject, group string, ch chan *nats.Msg) (*nats.Subscription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs = append(c.subs, subscription{subject: subject, group: group, ch: ch})
	return nil, nil
}

func (c *fakeClient) Drain() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.drained = true
	c.closed = true
	return nil
}

func (c *fakeClient) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func factoryWith(nc client, err error) *ConnectionFactory {
	f := NewConnectionFactory(Config{URL: "nats://localhost:4222"})
	f.connect = func(Config) (client, error) { return nc, err }
	return f
}

func TestCreateConnection(t *testing.T) {
	t.Run("requires url", func(t *testing.T) {
		_, err := NewConnectionFactory(Config{}).CreateConnection(context.Background())
		assert.Error(t, err)
	})

	t.Run("wraps dial errors", func(t *testing.T) {
		_, err := factoryWith(nil, nats.ErrNoServers).CreateConnection(context.Background())
		assert.ErrorIs(t, err, nats.ErrNoServers)
	})

	t.Run("honours context", func(t *testing.T) {
		nc := &fakeClient{}
		f := NewConnectionFactory(Config{URL: "nats://localhost:4222"})
		release := make(chan struct{})
		f.connect = func(Config) (client, error) {
			<-release
			return nc, nil
		}

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, err := f.CreateConnection(ctx)
		assert.ErrorIs(t, err, context.DeadlineExceeded)

		close(release)
		assert.Eventually(t, nc.IsClosed, time.Second, 5*time.Millisecond)
	})
}

func TestProducerSend(t *testing.T) {
	nc := &fakeClient{}
	conn, err := factoryWith(nc, nil).CreateConnection(context.Background())
	require.NoError(t, err)

	session, err := conn.CreateSession(messaging.ClientAcknowledge)
	require.NoError(t, err)
	producer, err := session.CreateProducer(messaging.NewQueue("Orders.Commands"))
	require.NoError(t, err)

	wire := session.CreateTextMessage("hello")
	wire.Properties().SetString("TypeName", "placeOrder")
	require.NoError(t, producer.Send(context.Background(), wire))

	require.Len(t, nc.published, 1)
	assert.Equal(t, "Orders.Commands", nc.published[0].Subject)
	assert.Equal(t, []byte("hello"), nc.published[0].Data)
	assert.Equal(t, "s:placeOrder", nc.published[0].Header.Get("TypeName"))

	nc.pubErr = errors.New("slow consumer")
	assert.Error(t, producer.Send(context.Background(), wire))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, producer.Send(ctx, wire), context.Canceled)
}

func TestConsumerSubscriptions(t *testing.T) {
	nc := &fakeClient{}
	conn, err := factoryWith(nc, nil).CreateConnection(context.Background())
	require.NoError(t, err)
	session, err := conn.CreateSession(messaging.AutoAcknowledge)
	require.NoError(t, err)

	_, err = session.CreateConsumer(messaging.NewQueue("Orders.Commands"))
	require.NoError(t, err)
	_, err = session.CreateConsumer(messaging.NewTopic("Orders.Events"))
	require.NoError(t, err)

	require.Len(t, nc.subs, 2)
	assert.Equal(t, "Orders.Commands", nc.subs[0].group)
	assert.Empty(t, nc.subs[1].group)
	assert.Equal(t, "Orders.Events", nc.subs[1].subject)
}

func TestConsumerReceiveWaitsForStart(t *testing.T) {
	nc := &fakeClient{}
	conn, err := factoryWith(nc, nil).CreateConnection(context.Background())
	require.NoError(t, err)
	session, err := conn.CreateSession(messaging.AutoAcknowledge)
	require.NoError(t, err)
	consumer, err := session.CreateConsumer(messaging.NewTopic("Orders.Events"))
	require.NoError(t, err)

	msg, err := msgFrom("Orders.Events", messaging.NewTextMessage("shipped"))
	require.NoError(t, err)
	nc.subs[0].ch <- msg

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = consumer.Receive(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, conn.Start())
	wire, err := consumer.Receive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "shipped", wire.(messaging.TextMessage).Text())

	require.NoError(t, consumer.Close())
	require.NoError(t, consumer.Close())
	_, err = consumer.Receive(context.Background())
	assert.ErrorIs(t, err, nats.ErrBadSubscription)
}

func TestConnectionClose(t *testing.T) {
	nc := &fakeClient{}
	conn, err := factoryWith(nc, nil).CreateConnection(context.Background())
	require.NoError(t, err)

	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())
	assert.True(t, nc.drained)

	_, err = conn.CreateSession(messaging.AutoAcknowledge)
	assert.ErrorIs(t, err, nats.ErrConnectionClosed)
	assert.ErrorIs(t, conn.Start(), nats.ErrConnectionClosed)
}
