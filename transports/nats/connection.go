package nats

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/glimte/svcbus-go/messaging"
)

// client is the subset of *nats.Conn used by the transport
type client interface {
	PublishMsg(msg *nats.Msg) error
	ChanSubscribe(subject string, ch chan *nats.Msg) (*nats.Subscription, error)
	ChanQueueSubscribe(subject, group string, ch chan *nats.Msg) (*nats.Subscription, error)
	Drain() error
	IsClosed() bool
	Close()
}

// Config holds the NATS connection settings
type Config struct {
	URL           string
	Name          string
	ConnTimeout   time.Duration
	MaxReconnects int
	// BufferSize is the number of messages buffered per consumer
	BufferSize int
}

// ConnectionFactory connects to NATS and implements messaging.ConnectionFactory
type ConnectionFactory struct {
	cfg     Config
	logger  *slog.Logger
	connect func(cfg Config) (client, error)
}

// FactoryOption configures the ConnectionFactory
type FactoryOption func(*ConnectionFactory)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) FactoryOption {
	return func(f *ConnectionFactory) {
		f.logger = logger
	}
}

// NewConnectionFactory creates a factory for cfg
func NewConnectionFactory(cfg Config, options ...FactoryOption) *ConnectionFactory {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 256
	}
	f := &ConnectionFactory{
		cfg:     cfg,
		logger:  slog.Default(),
		connect: dial,
	}
	for _, opt := range options {
		opt(f)
	}
	return f
}

func dial(cfg Config) (client, error) {
	opts := []nats.Option{}
	if cfg.Name != "" {
		opts = append(opts, nats.Name(cfg.Name))
	}
	if cfg.ConnTimeout > 0 {
		opts = append(opts, nats.Timeout(cfg.ConnTimeout))
	}
	if cfg.MaxReconnects != 0 {
		opts = append(opts, nats.MaxReconnects(cfg.MaxReconnects))
	}
	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, err
	}
	return nc, nil
}

// CreateConnection implements messaging.ConnectionFactory
func (f *ConnectionFactory) CreateConnection(ctx context.Context) (messaging.Connection, error) {
	if f.cfg.URL == "" {
		return nil, fmt.Errorf("nats: url required")
	}

	type dialResult struct {
		nc  client
		err error
	}
	result := make(chan dialResult, 1)
	go func() {
		nc, err := f.connect(f.cfg)
		result <- dialResult{nc: nc, err: err}
	}()

	select {
	case r := <-result:
		if r.err != nil {
			return nil, fmt.Errorf("nats connect: %w", r.err)
		}
		f.logger.Info("connected to NATS", "url", f.cfg.URL)
		return newConnection(r.nc, f.cfg.BufferSize), nil
	case <-ctx.Done():
		go func() {
			if r := <-result; r.nc != nil {
				r.nc.Close()
			}
		}()
		return nil, fmt.Errorf("nats connect: %w", ctx.Err())
	}
}

// Connection wraps a NATS connection
type Connection struct {
	nc         client
	bufferSize int

	started   chan struct{}
	startOnce sync.Once

	mu     sync.Mutex
	closed bool
}

func newConnection(nc client, bufferSize int) *Connection {
	return &Connection{nc: nc, bufferSize: bufferSize, started: make(chan struct{})}
}

// Start implements messaging.Connection
func (c *Connection) Start() error {
	if c.nc.IsClosed() {
		return nats.ErrConnectionClosed
	}
	c.startOnce.Do(func() { close(c.started) })
	return nil
}

// CreateSession implements messaging.Connection
func (c *Connection) CreateSession(messaging.AckMode) (messaging.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, nats.ErrConnectionClosed
	}
	return &Session{conn: c}, nil
}

// Close implements messaging.Connection. Pending messages are flushed first.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	if c.nc.IsClosed() {
		return nil
	}
	err := c.nc.Drain()
	if err != nil {
		c.nc.Close()
	}
	return err
}

// Session implements messaging.Session
type Session struct {
	conn *Connection
}

// CreateProducer implements messaging.Session
func (s *Session) CreateProducer(dest messaging.Destination) (messaging.Producer, error) {
	return &Producer{nc: s.conn.nc, subject: dest.Name}, nil
}

// CreateConsumer implements messaging.Session
func (s *Session) CreateConsumer(dest messaging.Destination) (messaging.Consumer, error) {
	ch := make(chan *nats.Msg, s.conn.bufferSize)

	var (
		sub *nats.Subscription
		err error
	)
	if dest.Kind == messaging.Queue {
		sub, err = s.conn.nc.ChanQueueSubscribe(dest.Name, dest.Name, ch)
	} else {
		sub, err = s.conn.nc.ChanSubscribe(dest.Name, ch)
	}
	if err != nil {
		return nil, fmt.Errorf("nats subscribe %s: %w", dest, err)
	}

	return &Consumer{sub: sub, msgs: ch, started: s.conn.started, done: make(chan struct{})}, nil
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

// Producer publishes to one subject
type Producer struct {
	nc      client
	subject string
}

// Send implements messaging.Producer
func (p *Producer) Send(ctx context.Context, wire messaging.WireMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg, err := msgFrom(p.subject, wire)
	if err != nil {
		return err
	}
	if err := p.nc.PublishMsg(msg); err != nil {
		return fmt.Errorf("nats publish %s: %w", p.subject, err)
	}
	return nil
}

// Close implements messaging.Producer
func (p *Producer) Close() error {
	return nil
}

// Consumer reads one subscription
type Consumer struct {
	sub     *nats.Subscription
	msgs    chan *nats.Msg
	started <-chan struct{}

	closeOnce sync.Once
	done      chan struct{}
}

// Receive implements messaging.Consumer
func (c *Consumer) Receive(ctx context.Context) (messaging.WireMessage, error) {
	select {
	case <-c.started:
	case <-c.done:
		return nil, nats.ErrBadSubscription
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case msg := <-c.msgs:
		return wireFrom(msg), nil
	case <-c.done:
		return nil, nats.ErrBadSubscription
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close implements messaging.Consumer
func (c *Consumer) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		if c.sub != nil {
			err = c.sub.Unsubscribe()
		}
	})
	return err
}
