package messaging

import (
	"context"
	"fmt"
)

// DestinationKind selects point-to-point or broadcast delivery
type DestinationKind int

const (
	// Topic delivers every message to every consumer
	Topic DestinationKind = iota
	// Queue delivers every message to exactly one consumer
	Queue
)

func (k DestinationKind) String() string {
	switch k {
	case Topic:
		return "topic"
	case Queue:
		return "queue"
	default:
		return fmt.Sprintf("DestinationKind(%d)", int(k))
	}
}

// Destination is a named queue or topic on the broker
type Destination struct {
	Name string
	Kind DestinationKind
}

// NewQueue returns a queue destination
func NewQueue(name string) Destination {
	return Destination{Name: name, Kind: Queue}
}

// NewTopic returns a topic destination
func NewTopic(name string) Destination {
	return Destination{Name: name, Kind: Topic}
}

func (d Destination) String() string {
	return d.Kind.String() + "://" + d.Name
}

// AckMode controls how consumed messages are acknowledged
type AckMode int

const (
	// AutoAcknowledge acknowledges messages as they are received
	AutoAcknowledge AckMode = iota
	// ClientAcknowledge acknowledges messages after the handler succeeds
	ClientAcknowledge
)

func (m AckMode) String() string {
	switch m {
	case AutoAcknowledge:
		return "auto"
	case ClientAcknowledge:
		return "client"
	default:
		return fmt.Sprintf("AckMode(%d)", int(m))
	}
}

// ConnectionFactory creates broker connections
type ConnectionFactory interface {
	CreateConnection(ctx context.Context) (Connection, error)
}

// ConnectionFactoryFunc adapts a function to ConnectionFactory
type ConnectionFactoryFunc func(ctx context.Context) (Connection, error)

// CreateConnection implements ConnectionFactory
func (f ConnectionFactoryFunc) CreateConnection(ctx context.Context) (Connection, error) {
	return f(ctx)
}

// Connection is a live broker connection
type Connection interface {
	// Start begins message delivery to consumers of this connection
	Start() error

	// CreateSession opens a session with the given acknowledgement mode
	CreateSession(mode AckMode) (Session, error)

	// Close closes the connection and every session created from it
	Close() error
}

// Session creates producers, consumers and wire messages
type Session interface {
	CreateProducer(destination Destination) (Producer, error)
	CreateConsumer(destination Destination) (Consumer, error)
	CreateTextMessage(text string) TextMessage
	CreateBytesMessage(data []byte) BytesMessage
	Close() error
}

// Producer sends messages to the destination it was created for. Send may be
// called concurrently.
type Producer interface {
	Send(ctx context.Context, msg WireMessage) error
	Close() error
}

// Consumer receives messages from the destination it was created for
type Consumer interface {
	// Receive blocks until a message arrives, the consumer is closed or ctx is done
	Receive(ctx context.Context) (WireMessage, error)
	Close() error
}

// Acknowledger is implemented by wire messages that need explicit
// acknowledgement in ClientAcknowledge mode
type Acknowledger interface {
	Acknowledge() error
}

// Properties is the typed property bag of a wire message
type Properties interface {
	SetInt(name string, value int32)
	SetLong(name string, value int64)
	SetDouble(name string, value float64)
	SetBool(name string, value bool)
	SetString(name string, value string)

	// Get returns the property stored under name
	Get(name string) (PropertyValue, bool)

	// Names returns the property names in sorted order
	Names() []string
}

// WireMessage is the broker-native message carrying payload and properties
type WireMessage interface {
	Properties() Properties
}

// TextMessage carries a text payload
type TextMessage interface {
	WireMessage
	Text() string
}

// BytesMessage carries a binary payload
type BytesMessage interface {
	WireMessage
	Bytes() []byte
}
