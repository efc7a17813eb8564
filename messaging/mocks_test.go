package messaging

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/glimte/svcbus-go/contracts"
	"github.com/glimte/svcbus-go/serialization"
)

// Test messages of an "Orders" service
type orderMessage interface {
	contracts.Message
	orders()
}

type placeOrder struct {
	contracts.BaseCommand
	OrderID string `json:"orderId"`
}

func (*placeOrder) orders() {}

type getOrder struct {
	contracts.BaseRequest
	OrderID string `json:"orderId"`
}

func (*getOrder) orders() {}

type orderPlaced struct {
	contracts.BaseEvent
	OrderID string `json:"orderId"`
}

func (*orderPlaced) orders() {}

type orderDetails struct {
	contracts.BaseResponse
	OrderID string `json:"orderId"`
}

func (*orderDetails) orders() {}

// shipParcel belongs to another service
type shipParcel struct {
	contracts.BaseCommand
	ParcelID string `json:"parcelId"`
}

func newOrderRegistry() *serialization.TypeRegistry {
	return serialization.NewTypeRegistry().MustRegister(
		&placeOrder{}, &getOrder{}, &orderPlaced{}, &orderDetails{}, &shipParcel{},
	)
}

// Mock broker, following the mock.Mock style used throughout the package tests

type mockConnectionFactory struct {
	mock.Mock
}

func (m *mockConnectionFactory) CreateConnection(ctx context.Context) (Connection, error) {
	args := m.Called(ctx)
	if conn := args.Get(0); conn != nil {
		return conn.(Connection), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockConnection struct {
	mock.Mock
}

func (m *mockConnection) Start() error {
	args := m.Called()
	return args.Error(0)
}

func (m *mockConnection) CreateSession(mode AckMode) (Session, error) {
	args := m.Called(mode)
	if s := args.Get(0); s != nil {
		return s.(Session), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockConnection) Close() error {
	args := m.Called()
	return args.Error(0)
}

type mockSession struct {
	mock.Mock
}

func (m *mockSession) CreateProducer(destination Destination) (Producer, error) {
	args := m.Called(destination)
	if p := args.Get(0); p != nil {
		return p.(Producer), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockSession) CreateConsumer(destination Destination) (Consumer, error) {
	args := m.Called(destination)
	if c := args.Get(0); c != nil {
		return c.(Consumer), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockSession) CreateTextMessage(text string) TextMessage {
	return NewTextMessage(text)
}

func (m *mockSession) CreateBytesMessage(data []byte) BytesMessage {
	return NewBytesMessage(data)
}

func (m *mockSession) Close() error {
	args := m.Called()
	return args.Error(0)
}

// recordingProducer keeps every sent message
type recordingProducer struct {
	mu      sync.Mutex
	sent    []WireMessage
	sendErr error
}

func (p *recordingProducer) Send(ctx context.Context, msg WireMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sendErr != nil {
		return p.sendErr
	}
	p.sent = append(p.sent, msg)
	return nil
}

func (p *recordingProducer) Close() error { return nil }

func (p *recordingProducer) messages() []WireMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]WireMessage(nil), p.sent...)
}

// channelConsumer delivers whatever is pushed onto its channel
type channelConsumer struct {
	deliveries chan WireMessage
	failures   chan error
}

func newChannelConsumer() *channelConsumer {
	return &channelConsumer{
		deliveries: make(chan WireMessage, 16),
		failures:   make(chan error, 1),
	}
}

func (c *channelConsumer) Receive(ctx context.Context) (WireMessage, error) {
	select {
	case msg, ok := <-c.deliveries:
		if !ok {
			return nil, errors.New("consumer closed")
		}
		return msg, nil
	case err := <-c.failures:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *channelConsumer) Close() error { return nil }

// brokerWith wires a mocked connection and session that hand out producer
// and consumer for any destination
func brokerWith(producer Producer, consumer Consumer) (*mockConnectionFactory, *mockConnection, *mockSession) {
	factory := &mockConnectionFactory{}
	conn := &mockConnection{}
	session := &mockSession{}

	factory.On("CreateConnection", mock.Anything).Return(conn, nil)
	conn.On("Start").Return(nil)
	conn.On("CreateSession", mock.Anything).Return(session, nil)
	conn.On("Close").Return(nil)
	if producer != nil {
		session.On("CreateProducer", mock.Anything).Return(producer, nil)
	}
	if consumer != nil {
		session.On("CreateConsumer", mock.Anything).Return(consumer, nil)
	}
	return factory, conn, session
}

// textWire builds an inbound text message the way a transport would
func textWire(t testing.TB, msg contracts.Message) TextMessage {
	t.Helper()
	payload, err := serialization.NewJSONSerializer().Serialize(msg)
	require.NoError(t, err)
	wire := NewTextMessage(payload.Text())
	wire.Properties().SetString(PropertyTypeName, contracts.TypeName(msg))
	return wire
}

// ackingMessage records acknowledgements
type ackingMessage struct {
	TextMessage
	mu    sync.Mutex
	acked int
}

func (m *ackingMessage) Acknowledge() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.acked++
	return nil
}

func (m *ackingMessage) ackCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.acked
}

// recordingPublisher is an in-process Publisher
type recordingPublisher[T any] struct {
	mu        sync.Mutex
	published []T
	err       error
	closed    int
}

func (p *recordingPublisher[T]) Publish(ctx context.Context, msg T) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, msg)
	return nil
}

func (p *recordingPublisher[T]) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed++
	return nil
}

func (p *recordingPublisher[T]) messages() []T {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]T(nil), p.published...)
}

// staticSource replays a fixed list of messages on every subscription and
// then ends it with err
func staticSource[T any](err error, msgs ...T) Source[T] {
	return SourceFunc[T](func(ctx context.Context, handler MessageHandler[T]) (Subscription, error) {
		subCtx, cancel := context.WithCancel(ctx)
		sub := newSubscription(cancel)
		go func() {
			for _, msg := range msgs {
				if subCtx.Err() != nil {
					break
				}
				_ = handler(subCtx, msg)
			}
			sub.finish(err)
		}()
		return sub, nil
	})
}

// blockingSource delivers nothing and stays open until unsubscribed
func blockingSource[T any]() Source[T] {
	return SourceFunc[T](func(ctx context.Context, handler MessageHandler[T]) (Subscription, error) {
		subCtx, cancel := context.WithCancel(ctx)
		sub := newSubscription(cancel)
		go func() {
			<-subCtx.Done()
			sub.finish(nil)
		}()
		return sub, nil
	})
}

// failingSource cannot be subscribed to
func failingSource[T any](err error) Source[T] {
	return SourceFunc[T](func(ctx context.Context, handler MessageHandler[T]) (Subscription, error) {
		return nil, err
	})
}
