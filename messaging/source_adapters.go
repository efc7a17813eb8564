package messaging

import (
	"context"

	"github.com/glimte/svcbus-go/contracts"
)

// SourceFunc adapts a subscribe function to Source
type SourceFunc[T any] func(ctx context.Context, handler MessageHandler[T]) (Subscription, error)

// Subscribe implements Source
func (f SourceFunc[T]) Subscribe(ctx context.Context, handler MessageHandler[T]) (Subscription, error) {
	return f(ctx, handler)
}

// Widen exposes a source of a specific message type as a source of
// contracts.Message, so sources of different roles can be merged
func Widen[T contracts.Message](src Source[T]) Source[contracts.Message] {
	return SourceFunc[contracts.Message](func(ctx context.Context, handler MessageHandler[contracts.Message]) (Subscription, error) {
		return src.Subscribe(ctx, func(ctx context.Context, msg T) error {
			return handler(ctx, msg)
		})
	})
}

// Filter returns a source that only delivers messages accepted by keep
func Filter[T any](src Source[T], keep func(T) bool) Source[T] {
	return SourceFunc[T](func(ctx context.Context, handler MessageHandler[T]) (Subscription, error) {
		return src.Subscribe(ctx, func(ctx context.Context, msg T) error {
			if !keep(msg) {
				return nil
			}
			return handler(ctx, msg)
		})
	})
}
