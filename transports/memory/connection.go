package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/glimte/svcbus-go/messaging"
)

// Connection is a connection to a Broker
type Connection struct {
	broker *Broker

	startOnce sync.Once
	started   chan struct{}

	closeOnce sync.Once
	done      chan struct{}
}

// Start implements messaging.Connection
func (c *Connection) Start() error {
	select {
	case <-c.done:
		return ErrConnectionClosed
	default:
	}
	c.startOnce.Do(func() { close(c.started) })
	return nil
}

// CreateSession implements messaging.Connection
func (c *Connection) CreateSession(mode messaging.AckMode) (messaging.Session, error) {
	select {
	case <-c.done:
		return nil, ErrConnectionClosed
	default:
	}
	return &Session{conn: c, mode: mode}, nil
}

// Close implements messaging.Connection. Blocked receivers return
// ErrConnectionClosed.
func (c *Connection) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		c.broker.forget(c)
	})
	return nil
}

// Session implements messaging.Session
type Session struct {
	conn *Connection
	mode messaging.AckMode
}

// CreateProducer implements messaging.Session
func (s *Session) CreateProducer(dest messaging.Destination) (messaging.Producer, error) {
	if dest.Name == "" {
		return nil, fmt.Errorf("memory: destination name required")
	}
	return &Producer{conn: s.conn, dest: dest}, nil
}

// CreateConsumer implements messaging.Session
func (s *Session) CreateConsumer(dest messaging.Destination) (messaging.Consumer, error) {
	if dest.Name == "" {
		return nil, fmt.Errorf("memory: destination name required")
	}

	c := &Consumer{session: s, dest: dest, done: make(chan struct{})}
	if dest.Kind == messaging.Queue {
		c.ch = s.conn.broker.queue(dest.Name)
	} else {
		c.sub = s.conn.broker.subscribe(dest.Name)
		c.ch = c.sub.ch
	}
	return c, nil
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
	return nil
}

// Producer sends to a queue or topic
type Producer struct {
	conn *Connection
	dest messaging.Destination
}

// Send implements messaging.Producer. It blocks while the destination
// buffer is full.
func (p *Producer) Send(ctx context.Context, msg messaging.WireMessage) error {
	broker := p.conn.broker
	if broker.isClosed() {
		return ErrBrokerClosed
	}

	var targets []chan messaging.WireMessage
	if p.dest.Kind == messaging.Queue {
		targets = []chan messaging.WireMessage{broker.queue(p.dest.Name)}
	} else {
		for _, sub := range broker.subscribers(p.dest.Name) {
			targets = append(targets, sub.ch)
		}
	}

	for _, ch := range targets {
		copied, err := clone(msg)
		if err != nil {
			return err
		}
		select {
		case ch <- copied:
		case <-p.conn.done:
			return ErrConnectionClosed
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	broker.sent.Add(1)
	return nil
}

// Close implements messaging.Producer
func (p *Producer) Close() error {
	return nil
}

// Consumer receives from a queue or a topic subscription
type Consumer struct {
	session *Session
	dest    messaging.Destination
	ch      chan messaging.WireMessage
	sub     *topicSubscriber

	closeOnce sync.Once
	done      chan struct{}
}

// Receive implements messaging.Consumer. Nothing is delivered before the
// connection is started.
func (c *Consumer) Receive(ctx context.Context) (messaging.WireMessage, error) {
	conn := c.session.conn
	select {
	case <-conn.started:
	case <-c.done:
		return nil, ErrConsumerClosed
	case <-conn.done:
		return nil, ErrConnectionClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case msg := <-c.ch:
		conn.broker.delivered.Add(1)
		if c.session.mode == messaging.ClientAcknowledge {
			return wrapAck(msg, conn.broker), nil
		}
		conn.broker.acked.Add(1)
		return msg, nil
	case <-c.done:
		return nil, ErrConsumerClosed
	case <-conn.done:
		return nil, ErrConnectionClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close implements messaging.Consumer
func (c *Consumer) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.sub != nil {
			c.session.conn.broker.unsubscribe(c.dest.Name, c.sub)
		}
	})
	return nil
}

type ackState struct {
	once   sync.Once
	broker *Broker
}

func (a *ackState) Acknowledge() error {
	a.once.Do(func() { a.broker.acked.Add(1) })
	return nil
}

type textDelivery struct {
	messaging.TextMessage
	*ackState
}

type bytesDelivery struct {
	messaging.BytesMessage
	*ackState
}

func wrapAck(msg messaging.WireMessage, broker *Broker) messaging.WireMessage {
	state := &ackState{broker: broker}
	switch m := msg.(type) {
	case messaging.TextMessage:
		return textDelivery{TextMessage: m, ackState: state}
	case messaging.BytesMessage:
		return bytesDelivery{BytesMessage: m, ackState: state}
	default:
		return msg
	}
}
