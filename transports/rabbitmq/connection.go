package rabbitmq

import (
	"context"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/glimte/svcbus-go/messaging"
)

// ConnectionFactory dials RabbitMQ and implements messaging.ConnectionFactory
type ConnectionFactory struct {
	url           string
	dialTimeout   time.Duration
	heartbeat     time.Duration
	prefetchCount int
	logger        *slog.Logger
}

// FactoryOption configures the ConnectionFactory
type FactoryOption func(*ConnectionFactory)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) FactoryOption {
	return func(f *ConnectionFactory) {
		f.logger = logger
	}
}

// WithDialTimeout bounds how long dialing may take
func WithDialTimeout(timeout time.Duration) FactoryOption {
	return func(f *ConnectionFactory) {
		f.dialTimeout = timeout
	}
}

// WithHeartbeat sets the AMQP heartbeat interval
func WithHeartbeat(interval time.Duration) FactoryOption {
	return func(f *ConnectionFactory) {
		f.heartbeat = interval
	}
}

// WithPrefetchCount sets the per-consumer prefetch count
func WithPrefetchCount(count int) FactoryOption {
	return func(f *ConnectionFactory) {
		f.prefetchCount = count
	}
}

// NewConnectionFactory creates a factory for the given amqp:// URL
func NewConnectionFactory(url string, options ...FactoryOption) *ConnectionFactory {
	f := &ConnectionFactory{
		url:           url,
		dialTimeout:   30 * time.Second,
		heartbeat:     10 * time.Second,
		prefetchCount: 10,
		logger:        slog.Default(),
	}
	for _, opt := range options {
		opt(f)
	}
	return f
}

// CreateConnection implements messaging.ConnectionFactory
func (f *ConnectionFactory) CreateConnection(ctx context.Context) (messaging.Connection, error) {
	connCtx, cancel := context.WithTimeout(ctx, f.dialTimeout)
	defer cancel()

	type dialResult struct {
		conn *amqp.Connection
		err  error
	}
	result := make(chan dialResult, 1)

	go func() {
		conn, err := amqp.DialConfig(f.url, amqp.Config{
			Heartbeat: f.heartbeat,
			Locale:    "en_US",
			Dial:      amqp.DefaultDial(f.dialTimeout),
		})
		result <- dialResult{conn: conn, err: err}
	}()

	select {
	case r := <-result:
		if r.err != nil {
			return nil, &ConnectionError{Op: "connect", URL: SanitizeURL(f.url), Err: r.err, Timestamp: time.Now()}
		}
		f.logger.Info("connected to RabbitMQ", "url", SanitizeURL(f.url))
		return newConnection(r.conn, f.prefetchCount, f.logger), nil

	case <-connCtx.Done():
		// close whatever the dial goroutine eventually returns
		go func() {
			if r := <-result; r.conn != nil {
				_ = r.conn.Close()
			}
		}()
		err := connCtx.Err()
		if ctx.Err() == nil {
			err = ErrConnectionTimeout
		}
		return nil, &ConnectionError{Op: "connect", URL: SanitizeURL(f.url), Err: err, Timestamp: time.Now()}
	}
}

// Connection wraps an AMQP connection. Consumers receive nothing until
// Start is called.
type Connection struct {
	conn          *amqp.Connection
	prefetchCount int
	logger        *slog.Logger

	started   chan struct{}
	startOnce sync.Once

	mu       sync.Mutex
	sessions []*Session
	closed   bool
}

func newConnection(conn *amqp.Connection, prefetchCount int, logger *slog.Logger) *Connection {
	return &Connection{
		conn:          conn,
		prefetchCount: prefetchCount,
		logger:        logger,
		started:       make(chan struct{}),
	}
}

// Start implements messaging.Connection
func (c *Connection) Start() error {
	if c.conn.IsClosed() {
		return ErrConnectionClosed
	}
	c.startOnce.Do(func() { close(c.started) })
	return nil
}

// CreateSession implements messaging.Connection. Each session owns one AMQP channel.
func (c *Connection) CreateSession(mode messaging.AckMode) (messaging.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrConnectionClosed
	}

	ch, err := c.conn.Channel()
	if err != nil {
		return nil, &ChannelError{Op: "open channel", Err: err, Timestamp: time.Now()}
	}

	if err := ch.Qos(c.prefetchCount, 0, false); err != nil {
		_ = ch.Close()
		return nil, &ChannelError{Op: "set qos", Err: err, Timestamp: time.Now()}
	}

	s := newSession(ch, mode, c.started, c.logger)
	c.sessions = append(c.sessions, s)
	return s, nil
}

// Close implements messaging.Connection
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	for _, s := range c.sessions {
		_ = s.Close()
	}
	c.sessions = nil

	if err := c.conn.Close(); err != nil && err != amqp.ErrClosed {
		return &ConnectionError{Op: "close", Err: err, Timestamp: time.Now()}
	}
	return nil
}
