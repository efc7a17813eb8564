package interceptors

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/glimte/svcbus-go/contracts"
	"github.com/glimte/svcbus-go/messaging"
)

// MessageHandler represents a message handler in the interceptor chain
type MessageHandler interface {
	Handle(ctx context.Context, msg contracts.Message) error
}

// MessageHandlerFunc is a function adapter for MessageHandler
type MessageHandlerFunc func(ctx context.Context, msg contracts.Message) error

// Handle implements MessageHandler
func (f MessageHandlerFunc) Handle(ctx context.Context, msg contracts.Message) error {
	return f(ctx, msg)
}

// Interceptor processes messages before they reach the final handler
type Interceptor interface {
	// Intercept processes a message and calls the next handler in the chain
	Intercept(ctx context.Context, msg contracts.Message, next MessageHandler) error

	// Name returns the interceptor name for logging and debugging
	Name() string
}

// InterceptorFunc is a function adapter for Interceptor
type InterceptorFunc struct {
	name string
	fn   func(ctx context.Context, msg contracts.Message, next MessageHandler) error
}

// NewInterceptorFunc creates a new function-based interceptor
func NewInterceptorFunc(name string, fn func(ctx context.Context, msg contracts.Message, next MessageHandler) error) *InterceptorFunc {
	return &InterceptorFunc{name: name, fn: fn}
}

// Intercept implements Interceptor
func (i *InterceptorFunc) Intercept(ctx context.Context, msg contracts.Message, next MessageHandler) error {
	return i.fn(ctx, msg, next)
}

// Name implements Interceptor
func (i *InterceptorFunc) Name() string {
	return i.name
}

// InterceptorChain runs interceptors in the order they were added
type InterceptorChain struct {
	interceptors []Interceptor
	logger       *slog.Logger
}

// NewInterceptorChain creates an empty chain. A nil logger uses slog.Default.
func NewInterceptorChain(logger *slog.Logger) *InterceptorChain {
	if logger == nil {
		logger = slog.Default()
	}
	return &InterceptorChain{logger: logger}
}

// Add appends an interceptor to the chain
func (c *InterceptorChain) Add(interceptor Interceptor) *InterceptorChain {
	c.interceptors = append(c.interceptors, interceptor)
	return c
}

// Names returns the interceptor names in execution order
func (c *InterceptorChain) Names() []string {
	names := make([]string, len(c.interceptors))
	for i, interceptor := range c.interceptors {
		names[i] = interceptor.Name()
	}
	return names
}

// Execute runs msg through the chain and then finalHandler
func (c *InterceptorChain) Execute(ctx context.Context, msg contracts.Message, finalHandler MessageHandler) error {
	handler := finalHandler
	for i := len(c.interceptors) - 1; i >= 0; i-- {
		interceptor := c.interceptors[i]
		next := handler
		handler = MessageHandlerFunc(func(ctx context.Context, msg contracts.Message) error {
			return interceptor.Intercept(ctx, msg, next)
		})
	}
	return handler.Handle(ctx, msg)
}

// Wrap turns a typed source handler into one that runs through chain
func Wrap[T contracts.Message](chain *InterceptorChain, handler messaging.MessageHandler[T]) messaging.MessageHandler[T] {
	final := MessageHandlerFunc(func(ctx context.Context, msg contracts.Message) error {
		typed, ok := msg.(T)
		if !ok {
			return fmt.Errorf("interceptors: message %s does not match handler type", contracts.TypeName(msg))
		}
		return handler(ctx, typed)
	})
	return func(ctx context.Context, msg T) error {
		return chain.Execute(ctx, msg, final)
	}
}

// LoggingInterceptor logs message processing
type LoggingInterceptor struct {
	logger *slog.Logger
}

// NewLoggingInterceptor creates a new logging interceptor
func NewLoggingInterceptor(logger *slog.Logger) *LoggingInterceptor {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingInterceptor{logger: logger}
}

// Intercept implements Interceptor
func (i *LoggingInterceptor) Intercept(ctx context.Context, msg contracts.Message, next MessageHandler) error {
	start := time.Now()
	typeName := contracts.TypeName(msg)

	i.logger.Debug("processing message",
		"messageId", msg.GetID(),
		"typeName", typeName,
		"correlationId", msg.GetCorrelationID(),
	)

	err := next.Handle(ctx, msg)
	duration := time.Since(start)

	if err != nil {
		i.logger.Error("message processing failed",
			"messageId", msg.GetID(),
			"typeName", typeName,
			"duration", duration,
			"error", err,
		)
	} else {
		i.logger.Info("message processed",
			"messageId", msg.GetID(),
			"typeName", typeName,
			"duration", duration,
		)
	}
	return err
}

// Name implements Interceptor
func (i *LoggingInterceptor) Name() string {
	return "LoggingInterceptor"
}

// MetricsInterceptor records handler failures with a messaging.MetricsCollector
type MetricsInterceptor struct {
	collector messaging.MetricsCollector
}

// NewMetricsInterceptor creates a new metrics interceptor
func NewMetricsInterceptor(collector messaging.MetricsCollector) *MetricsInterceptor {
	return &MetricsInterceptor{collector: collector}
}

// Intercept implements Interceptor
func (i *MetricsInterceptor) Intercept(ctx context.Context, msg contracts.Message, next MessageHandler) error {
	err := next.Handle(ctx, msg)
	if err != nil {
		i.collector.RecordError("handler", contracts.TypeName(msg))
	}
	return err
}

// Name implements Interceptor
func (i *MetricsInterceptor) Name() string {
	return "MetricsInterceptor"
}

// PanicError is returned when a handler panics
type PanicError struct {
	TypeName string
	Value    interface{}
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("handler panicked on %s: %v", e.TypeName, e.Value)
}

// RecoveryInterceptor converts handler panics into *PanicError
type RecoveryInterceptor struct{}

// NewRecoveryInterceptor creates a new recovery interceptor
func NewRecoveryInterceptor() *RecoveryInterceptor {
	return &RecoveryInterceptor{}
}

// Intercept implements Interceptor
func (i *RecoveryInterceptor) Intercept(ctx context.Context, msg contracts.Message, next MessageHandler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{TypeName: contracts.TypeName(msg), Value: r}
		}
	}()
	return next.Handle(ctx, msg)
}

// Name implements Interceptor
func (i *RecoveryInterceptor) Name() string {
	return "RecoveryInterceptor"
}

// TimeoutInterceptor bounds the handler with a deadline
type TimeoutInterceptor struct {
	timeout time.Duration
}

// NewTimeoutInterceptor creates a new timeout interceptor
func NewTimeoutInterceptor(timeout time.Duration) *TimeoutInterceptor {
	return &TimeoutInterceptor{timeout: timeout}
}

// Intercept implements Interceptor. The handler must observe ctx.
func (i *TimeoutInterceptor) Intercept(ctx context.Context, msg contracts.Message, next MessageHandler) error {
	ctx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()
	return next.Handle(ctx, msg)
}

// Name implements Interceptor
func (i *TimeoutInterceptor) Name() string {
	return "TimeoutInterceptor"
}
