package messaging

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/glimte/svcbus-go/contracts"
	"github.com/glimte/svcbus-go/serialization"
)

// MessageSource receives messages from one destination and deserializes
// them with the deserializer registered for their TypeName property.
// Messages without a matching deserializer, or whose type is not a T, are
// skipped. Each subscription opens its own broker connection.
type MessageSource[T contracts.Message] struct {
	factory       ConnectionFactory
	destination   Destination
	deserializers map[string]serialization.Deserializer
	ackMode       AckMode
	logger        *slog.Logger
	metrics       MetricsCollector
}

// SourceOption configures the MessageSource
type SourceOption func(*sourceOptions)

type sourceOptions struct {
	logger  *slog.Logger
	metrics MetricsCollector
	ackMode AckMode
}

// WithSourceLogger sets the logger
func WithSourceLogger(logger *slog.Logger) SourceOption {
	return func(o *sourceOptions) {
		o.logger = logger
	}
}

// WithSourceMetrics sets the metrics collector
func WithSourceMetrics(metrics MetricsCollector) SourceOption {
	return func(o *sourceOptions) {
		o.metrics = metrics
	}
}

// WithAckMode sets the acknowledgement mode used by subscriptions
func WithAckMode(mode AckMode) SourceOption {
	return func(o *sourceOptions) {
		o.ackMode = mode
	}
}

// NewMessageSource creates a source over destination. The deserializer set
// is shared read-only by every subscription.
func NewMessageSource[T contracts.Message](
	factory ConnectionFactory,
	deserializers []serialization.Deserializer,
	destination Destination,
	options ...SourceOption,
) *MessageSource[T] {
	o := sourceOptions{
		logger:  slog.Default(),
		metrics: &NoOpMetricsCollector{},
		ackMode: AutoAcknowledge,
	}
	for _, opt := range options {
		opt(&o)
	}

	byName := make(map[string]serialization.Deserializer, len(deserializers))
	for _, d := range deserializers {
		byName[d.TypeName()] = d
	}

	return &MessageSource[T]{
		factory:       factory,
		destination:   destination,
		deserializers: byName,
		ackMode:       o.ackMode,
		logger:        o.logger.With("destination", destination.String()),
		metrics:       o.metrics,
	}
}

// Destination returns the destination messages are received from
func (s *MessageSource[T]) Destination() Destination {
	return s.destination
}

// TypeNames returns the type names this source can deserialize
func (s *MessageSource[T]) TypeNames() []string {
	names := make([]string, 0, len(s.deserializers))
	for name := range s.deserializers {
		names = append(names, name)
	}
	return names
}

// Subscribe connects to the broker and delivers messages to handler on a
// dedicated goroutine until the subscription ends
func (s *MessageSource[T]) Subscribe(ctx context.Context, handler MessageHandler[T]) (Subscription, error) {
	fail := func(op string, err error) error {
		return &ConnectionError{Op: op, Destination: s.destination, Err: err, Timestamp: time.Now()}
	}

	conn, err := s.factory.CreateConnection(ctx)
	if err != nil {
		return nil, fail(opCreateConnection, err)
	}

	session, err := conn.CreateSession(s.ackMode)
	if err != nil {
		_ = conn.Close()
		return nil, fail(opCreateSession, err)
	}

	consumer, err := session.CreateConsumer(s.destination)
	if err != nil {
		_ = conn.Close()
		return nil, fail(opCreateConsumer, err)
	}

	if err := conn.Start(); err != nil {
		_ = conn.Close()
		return nil, fail(opStart, err)
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := newSubscription(cancel)

	s.logger.Info("subscribed", "types", len(s.deserializers))

	go func() {
		err := s.receive(subCtx, consumer, handler)
		if closeErr := conn.Close(); closeErr != nil {
			s.logger.Error("failed to close source connection", "error", closeErr)
		}
		if err != nil {
			s.logger.Error("subscription terminated", "error", err)
		} else {
			s.logger.Info("unsubscribed")
		}
		sub.finish(err)
	}()

	return sub, nil
}

func (s *MessageSource[T]) receive(ctx context.Context, consumer Consumer, handler MessageHandler[T]) error {
	for {
		wire, err := consumer.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.metrics.RecordError("source", "receive")
			return &ConnectionError{Op: opReceive, Destination: s.destination, Err: err, Timestamp: time.Now()}
		}

		msg, ok, err := s.decode(wire)
		if err != nil {
			s.metrics.RecordError("source", "deserialize")
			return err
		}
		if !ok {
			// unknown types are settled so they are not redelivered
			s.acknowledge(wire, "")
			continue
		}

		typeName := contracts.TypeName(msg)
		s.metrics.RecordReceive(typeName, s.destination.Name)

		if err := handler(ctx, msg); err != nil {
			s.logger.Error("message handler failed", "typeName", typeName, "error", err)
			continue
		}

		s.acknowledge(wire, typeName)
	}
}

func (s *MessageSource[T]) acknowledge(wire WireMessage, typeName string) {
	if s.ackMode != ClientAcknowledge {
		return
	}
	if ack, ok := wire.(Acknowledger); ok {
		if err := ack.Acknowledge(); err != nil {
			s.logger.Error("failed to acknowledge message", "typeName", typeName, "error", err)
		}
	}
}

// decode selects the deserializer by TypeName. ok is false for messages
// that should be skipped.
func (s *MessageSource[T]) decode(wire WireMessage) (msg T, ok bool, err error) {
	typeName, found := StringProperty(wire.Properties(), PropertyTypeName)
	if !found {
		s.logger.Debug("skipping message without type name")
		return msg, false, nil
	}

	d, found := s.deserializers[typeName]
	if !found {
		s.logger.Debug("skipping message of unknown type", "typeName", typeName)
		return msg, false, nil
	}

	payload, found := PayloadOf(wire)
	if !found {
		return msg, false, &SerializationError{
			Op:        opDeserialize,
			TypeName:  typeName,
			Err:       errors.New("wire message carries no text or bytes payload"),
			Timestamp: time.Now(),
		}
	}

	decoded, err := d.Deserialize(payload)
	if err != nil {
		return msg, false, &SerializationError{Op: opDeserialize, TypeName: typeName, Err: err, Timestamp: time.Now()}
	}

	msg, ok = decoded.(T)
	if !ok {
		s.logger.Debug("skipping message not handled by this source", "typeName", typeName)
	}
	return msg, ok, nil
}
