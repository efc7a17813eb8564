package messaging

import (
	"context"
	"sync"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

// MergedMessageSource presents several sources as one stream. Every
// subscription subscribes to all children; each child's messages reach the
// handler in the order that child delivers them, with no ordering across
// children. Handler calls are serialized per subscription. The first child
// to fail terminates the merged subscription and unsubscribes the others.
type MergedMessageSource[T any] struct {
	sources []Source[T]
}

// NewMergedMessageSource merges the given sources
func NewMergedMessageSource[T any](sources ...Source[T]) *MergedMessageSource[T] {
	return &MergedMessageSource[T]{sources: append([]Source[T](nil), sources...)}
}

// Sources returns the child sources
func (m *MergedMessageSource[T]) Sources() []Source[T] {
	return append([]Source[T](nil), m.sources...)
}

// Subscribe subscribes to every child source. If any child cannot be
// subscribed, the children already subscribed are unsubscribed again.
func (m *MergedMessageSource[T]) Subscribe(ctx context.Context, handler MessageHandler[T]) (Subscription, error) {
	mergedCtx, cancel := context.WithCancel(ctx)
	group, groupCtx := errgroup.WithContext(mergedCtx)

	var mu sync.Mutex
	serialized := func(ctx context.Context, msg T) error {
		mu.Lock()
		defer mu.Unlock()
		return handler(ctx, msg)
	}

	children := make([]Subscription, 0, len(m.sources))
	for i, src := range m.sources {
		child, err := src.Subscribe(groupCtx, serialized)
		if err != nil {
			cancel()
			var unsubErr error
			for _, c := range children {
				unsubErr = multierr.Append(unsubErr, c.Unsubscribe())
			}
			return nil, multierr.Append(&MergeSourceError{Index: i, Err: err, Timestamp: time.Now()}, unsubErr)
		}
		children = append(children, child)
	}

	sub := newSubscription(cancel)

	for i, child := range children {
		i, child := i, child
		group.Go(func() error {
			if err := child.Wait(); err != nil {
				return &MergeSourceError{Index: i, Err: err, Timestamp: time.Now()}
			}
			return nil
		})
	}

	go func() {
		err := group.Wait()
		for _, child := range children {
			_ = child.Unsubscribe()
		}
		sub.finish(err)
	}()

	return sub, nil
}
