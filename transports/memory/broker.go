package memory

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/glimte/svcbus-go/messaging"
)

var (
	// ErrBrokerClosed is returned once the broker has been closed
	ErrBrokerClosed = errors.New("memory: broker closed")
	// ErrConnectionClosed is returned by operations on a closed connection
	ErrConnectionClosed = errors.New("memory: connection closed")
	// ErrConsumerClosed is returned by Receive on a closed consumer
	ErrConsumerClosed = errors.New("memory: consumer closed")

	errUnsupportedMessage = errors.New("memory: wire message is neither text nor bytes")
)

const defaultBufferSize = 1024

// Stats counts broker traffic
type Stats struct {
	Sent         int64
	Delivered    int64
	Acknowledged int64
}

// Broker is an in-memory message broker. It implements
// messaging.ConnectionFactory.
type Broker struct {
	bufferSize int
	logger     *slog.Logger

	mu     sync.Mutex
	queues map[string]chan messaging.WireMessage
	topics map[string]map[*topicSubscriber]struct{}
	conns  map[*Connection]struct{}
	closed bool

	sent      atomic.Int64
	delivered atomic.Int64
	acked     atomic.Int64
}

// Option configures a Broker
type Option func(*Broker)

// WithBufferSize sets the capacity of each queue and topic subscriber
func WithBufferSize(size int) Option {
	return func(b *Broker) {
		if size > 0 {
			b.bufferSize = size
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(b *Broker) {
		b.logger = logger
	}
}

// NewBroker creates an empty broker
func NewBroker(options ...Option) *Broker {
	b := &Broker{
		bufferSize: defaultBufferSize,
		logger:     slog.Default(),
		queues:     make(map[string]chan messaging.WireMessage),
		topics:     make(map[string]map[*topicSubscriber]struct{}),
		conns:      make(map[*Connection]struct{}),
	}
	for _, opt := range options {
		opt(b)
	}
	return b
}

// CreateConnection implements messaging.ConnectionFactory
func (b *Broker) CreateConnection(ctx context.Context) (messaging.Connection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrBrokerClosed
	}

	conn := &Connection{broker: b, started: make(chan struct{}), done: make(chan struct{})}
	b.conns[conn] = struct{}{}
	return conn, nil
}

// Stats returns a snapshot of the traffic counters
func (b *Broker) Stats() Stats {
	return Stats{
		Sent:         b.sent.Load(),
		Delivered:    b.delivered.Load(),
		Acknowledged: b.acked.Load(),
	}
}

// Depth returns the number of messages waiting on a queue
func (b *Broker) Depth(queue string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.queues[queue]; ok {
		return len(ch)
	}
	return 0
}

// Close closes every connection. Messages still queued are discarded.
func (b *Broker) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	conns := make([]*Connection, 0, len(b.conns))
	for c := range b.conns {
		conns = append(conns, c)
	}
	b.mu.Unlock()

	for _, c := range conns {
		_ = c.Close()
	}
	b.logger.Debug("memory broker closed", "connections", len(conns))
	return nil
}

func (b *Broker) queue(name string) chan messaging.WireMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch, ok := b.queues[name]
	if !ok {
		ch = make(chan messaging.WireMessage, b.bufferSize)
		b.queues[name] = ch
	}
	return ch
}

func (b *Broker) subscribe(name string) *topicSubscriber {
	sub := &topicSubscriber{ch: make(chan messaging.WireMessage, b.bufferSize)}

	b.mu.Lock()
	defer b.mu.Unlock()
	subs, ok := b.topics[name]
	if !ok {
		subs = make(map[*topicSubscriber]struct{})
		b.topics[name] = subs
	}
	subs[sub] = struct{}{}
	return sub
}

func (b *Broker) unsubscribe(name string, sub *topicSubscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.topics[name], sub)
}

func (b *Broker) subscribers(name string) []*topicSubscriber {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := make([]*topicSubscriber, 0, len(b.topics[name]))
	for s := range b.topics[name] {
		subs = append(subs, s)
	}
	return subs
}

func (b *Broker) forget(c *Connection) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.conns, c)
}

func (b *Broker) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

type topicSubscriber struct {
	ch chan messaging.WireMessage
}

// clone copies a wire message so consumers never share property bags
func clone(msg messaging.WireMessage) (messaging.WireMessage, error) {
	var out messaging.WireMessage
	switch m := msg.(type) {
	case messaging.TextMessage:
		out = messaging.NewTextMessage(m.Text())
	case messaging.BytesMessage:
		out = messaging.NewBytesMessage(append([]byte(nil), m.Bytes()...))
	default:
		return nil, errUnsupportedMessage
	}
	messaging.CopyProperties(out.Properties(), msg.Properties())
	return out, nil
}
