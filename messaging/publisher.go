package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/glimte/svcbus-go/contracts"
	"github.com/glimte/svcbus-go/serialization"
	"golang.org/x/sync/singleflight"
)

// ConnectionState is the lifecycle state of a publisher's broker connection
type ConnectionState int

const (
	Disconnected ConnectionState = iota
	Connecting
	Connected
	Closed
)

func (s ConnectionState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// MessagePublisher publishes typed messages to one destination. The broker
// connection, session and producer are created on the first Publish and
// shared by every later call; Close releases them.
type MessagePublisher[T contracts.Message] struct {
	factory     ConnectionFactory
	destination Destination
	serializer  serialization.Serializer
	properties  PropertyProvider[T]
	ackMode     AckMode
	logger      *slog.Logger
	metrics     MetricsCollector

	gate singleflight.Group

	// mu guards the fields below. Sends hold the read lock so that Close,
	// which takes the write lock, waits for them.
	mu       sync.RWMutex
	state    ConnectionState
	conn     Connection
	session  Session
	producer Producer
}

// PublisherOption configures the MessagePublisher
type PublisherOption func(*publisherOptions)

type publisherOptions struct {
	logger  *slog.Logger
	metrics MetricsCollector
	ackMode AckMode
}

// WithPublisherLogger sets the logger
func WithPublisherLogger(logger *slog.Logger) PublisherOption {
	return func(o *publisherOptions) {
		o.logger = logger
	}
}

// WithPublisherMetrics sets the metrics collector
func WithPublisherMetrics(metrics MetricsCollector) PublisherOption {
	return func(o *publisherOptions) {
		o.metrics = metrics
	}
}

// WithPublisherAckMode sets the acknowledgement mode of the session
func WithPublisherAckMode(mode AckMode) PublisherOption {
	return func(o *publisherOptions) {
		o.ackMode = mode
	}
}

// NewMessagePublisher creates a new message publisher. No broker I/O happens
// until the first Publish.
func NewMessagePublisher[T contracts.Message](
	factory ConnectionFactory,
	destination Destination,
	serializer serialization.Serializer,
	properties PropertyProvider[T],
	options ...PublisherOption,
) *MessagePublisher[T] {
	o := publisherOptions{
		logger:  slog.Default(),
		metrics: &NoOpMetricsCollector{},
		ackMode: AutoAcknowledge,
	}
	for _, opt := range options {
		opt(&o)
	}
	if properties == nil {
		properties = DefaultPropertyProvider[T]{}
	}

	return &MessagePublisher[T]{
		factory:     factory,
		destination: destination,
		serializer:  serializer,
		properties:  properties,
		ackMode:     o.ackMode,
		logger:      o.logger.With("destination", destination.String()),
		metrics:     o.metrics,
	}
}

// Destination returns the destination messages are published to
func (p *MessagePublisher[T]) Destination() Destination {
	return p.destination
}

// State returns the current connection state
func (p *MessagePublisher[T]) State() ConnectionState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// Publish serializes msg, attaches its properties and sends it. The first
// call connects to the broker; concurrent callers wait for that connection
// attempt and share its outcome.
func (p *MessagePublisher[T]) Publish(ctx context.Context, msg T) error {
	start := time.Now()
	typeName := contracts.TypeName(msg)

	err := p.publish(ctx, msg, typeName)

	p.metrics.RecordPublish(typeName, p.destination.Name, time.Since(start), err == nil)
	if err != nil {
		p.metrics.RecordError("publisher", fmt.Sprintf("%T", err))
	}
	return err
}

func (p *MessagePublisher[T]) publish(ctx context.Context, msg T, typeName string) error {
	if any(msg) == nil {
		return ErrNilMessage
	}

	if err := p.connect(ctx); err != nil {
		return err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.state != Connected {
		return ErrPublisherClosed
	}

	payload, err := p.serializer.Serialize(msg)
	if err != nil {
		return &SerializationError{Op: opSerialize, TypeName: typeName, Err: err, Timestamp: time.Now()}
	}

	var wire WireMessage
	if payload.IsBinary() {
		wire = p.session.CreateBytesMessage(payload.Bytes())
	} else {
		wire = p.session.CreateTextMessage(payload.Text())
	}

	p.applyProperties(wire.Properties(), msg, typeName)

	if err := p.producer.Send(ctx, wire); err != nil {
		return &SendError{Destination: p.destination, TypeName: typeName, Err: err, Timestamp: time.Now()}
	}

	p.logger.Debug("message published", "typeName", typeName)
	return nil
}

// applyProperties writes the provider's properties, then TypeName unless
// the provider already supplied one
func (p *MessagePublisher[T]) applyProperties(props Properties, msg T, typeName string) {
	supplied := p.properties.GetProperties(msg)
	for name, value := range supplied {
		value.ApplyTo(props, name)
	}
	if _, ok := supplied[PropertyTypeName]; !ok {
		props.SetString(PropertyTypeName, typeName)
	}
}

// connect runs the connect sequence once. Callers arriving while it is in
// flight wait for its result; a failed attempt leaves the publisher
// disconnected so that a later Publish can try again.
func (p *MessagePublisher[T]) connect(ctx context.Context) error {
	p.mu.RLock()
	state := p.state
	p.mu.RUnlock()

	switch state {
	case Connected:
		return nil
	case Closed:
		return ErrPublisherClosed
	}

	// the attempt is shared, so it must not die with the first caller's ctx
	connectCtx := context.WithoutCancel(ctx)
	result := p.gate.DoChan("connect", func() (interface{}, error) {
		return nil, p.establish(connectCtx)
	})

	select {
	case r := <-result:
		return r.Err
	case <-ctx.Done():
		return &ConnectionError{Op: opConnect, Destination: p.destination, Err: ctx.Err(), Timestamp: time.Now()}
	}
}

func (p *MessagePublisher[T]) establish(ctx context.Context) error {
	p.mu.Lock()
	switch p.state {
	case Connected:
		// an earlier flight finished between the state check and DoChan
		p.mu.Unlock()
		return nil
	case Closed:
		p.mu.Unlock()
		return ErrPublisherClosed
	}
	p.state = Connecting
	p.mu.Unlock()

	conn, session, producer, err := p.open(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()

	if err != nil {
		if p.state == Connecting {
			p.state = Disconnected
		}
		p.logger.Error("failed to connect publisher", "error", err)
		return err
	}

	if p.state == Closed {
		// Close ran while we were connecting
		if closeErr := conn.Close(); closeErr != nil {
			p.logger.Error("failed to close connection opened during shutdown", "error", closeErr)
		}
		return ErrPublisherClosed
	}

	p.conn = conn
	p.session = session
	p.producer = producer
	p.state = Connected

	p.logger.Info("publisher connected")
	return nil
}

// open performs create connection -> start -> create session -> create producer
func (p *MessagePublisher[T]) open(ctx context.Context) (Connection, Session, Producer, error) {
	fail := func(op string, err error) error {
		return &ConnectionError{Op: op, Destination: p.destination, Err: err, Timestamp: time.Now()}
	}

	conn, err := p.factory.CreateConnection(ctx)
	if err != nil {
		return nil, nil, nil, fail(opCreateConnection, err)
	}

	if err := conn.Start(); err != nil {
		_ = conn.Close()
		return nil, nil, nil, fail(opStart, err)
	}

	session, err := conn.CreateSession(p.ackMode)
	if err != nil {
		_ = conn.Close()
		return nil, nil, nil, fail(opCreateSession, err)
	}

	producer, err := session.CreateProducer(p.destination)
	if err != nil {
		_ = conn.Close()
		return nil, nil, nil, fail(opCreateProducer, err)
	}

	return conn, session, producer, nil
}

// Close closes the broker connection if one was opened. It waits for
// in-flight sends, is idempotent and always leaves the publisher closed,
// even when closing the connection fails.
func (p *MessagePublisher[T]) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == Closed {
		return nil
	}

	conn := p.conn
	p.state = Closed
	p.conn, p.session, p.producer = nil, nil, nil

	if conn == nil {
		return nil
	}

	if err := conn.Close(); err != nil {
		p.logger.Error("failed to close publisher connection", "error", err)
		return &ConnectionError{Op: opClose, Destination: p.destination, Err: err, Timestamp: time.Now()}
	}

	p.logger.Info("publisher closed")
	return nil
}
