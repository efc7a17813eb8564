package rabbitmq

import (
	"context"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/glimte/svcbus-go/messaging"
)

// Session wraps one AMQP channel and implements messaging.Session
type Session struct {
	ch      amqpChannel
	ackMode messaging.AckMode
	started <-chan struct{}
	logger  *slog.Logger

	// AMQP channels must not be used for concurrent publishes
	publishMu sync.Mutex

	closeOnce sync.Once
	closeErr  error
}

func newSession(ch amqpChannel, mode messaging.AckMode, started <-chan struct{}, logger *slog.Logger) *Session {
	return &Session{ch: ch, ackMode: mode, started: started, logger: logger}
}

// CreateProducer implements messaging.Session
func (s *Session) CreateProducer(dest messaging.Destination) (messaging.Producer, error) {
	r, err := declareProducer(s.ch, dest)
	if err != nil {
		return nil, err
	}
	return &Producer{session: s, route: r}, nil
}

// CreateConsumer implements messaging.Session
func (s *Session) CreateConsumer(dest messaging.Destination) (messaging.Consumer, error) {
	queue, err := declareConsumer(s.ch, dest)
	if err != nil {
		return nil, err
	}

	autoAck := s.ackMode == messaging.AutoAcknowledge
	deliveries, err := s.ch.Consume(queue, "", autoAck, false, false, false, nil)
	if err != nil {
		return nil, &ChannelError{Op: "consume " + queue, Err: err, Timestamp: time.Now()}
	}

	s.logger.Debug("consumer created", "destination", dest.String(), "queue", queue, "autoAck", autoAck)
	return &Consumer{deliveries: deliveries, started: s.started}, nil
}

// CreateTextMessage implements messaging.Session
func (s *Session) CreateTextMessage(text string) messaging.TextMessage {
	return messaging.NewTextMessage(text)
}

// CreateBytesMessage implements messaging.Session
func (s *Session) CreateBytesMessage(data []byte) messaging.BytesMessage {
	return messaging.NewBytesMessage(data)
}

// Close implements messaging.Session
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		if err := s.ch.Close(); err != nil && err != amqp.ErrClosed {
			s.closeErr = &ChannelError{Op: "close channel", Err: err, Timestamp: time.Now()}
		}
	})
	return s.closeErr
}

// Producer publishes to one exchange and routing key
type Producer struct {
	session *Session
	route   route
}

// Send implements messaging.Producer
func (p *Producer) Send(ctx context.Context, msg messaging.WireMessage) error {
	publishing, err := publishingFrom(msg, p.route.persistent)
	if err != nil {
		return err
	}
	publishing.Timestamp = time.Now()

	p.session.publishMu.Lock()
	defer p.session.publishMu.Unlock()

	if err := p.session.ch.PublishWithContext(ctx, p.route.exchange, p.route.routingKey, false, false, publishing); err != nil {
		return &PublishError{Exchange: p.route.exchange, RoutingKey: p.route.routingKey, Err: err, Timestamp: time.Now()}
	}
	return nil
}

// Close implements messaging.Producer. The channel is closed with its session.
func (p *Producer) Close() error {
	return nil
}

// Consumer reads deliveries of one AMQP consumer
type Consumer struct {
	deliveries <-chan amqp.Delivery
	started    <-chan struct{}
}

// Receive implements messaging.Consumer. It blocks until the connection has
// been started.
func (c *Consumer) Receive(ctx context.Context) (messaging.WireMessage, error) {
	select {
	case <-c.started:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case d, ok := <-c.deliveries:
		if !ok {
			return nil, ErrConsumerClosed
		}
		return wireFrom(d), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close implements messaging.Consumer. Deliveries stop when the session closes.
func (c *Consumer) Close() error {
	return nil
}
