package messaging

import (
	"context"
	"sync"
)

// subscription is the Subscription returned by the sources in this package
type subscription struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once

	mu  sync.Mutex
	err error
}

func newSubscription(cancel context.CancelFunc) *subscription {
	return &subscription{
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// finish records the terminal error and releases waiters; later calls are ignored
func (s *subscription) finish(err error) {
	s.once.Do(func() {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		s.cancel()
		close(s.done)
	})
}

func (s *subscription) Unsubscribe() error {
	s.cancel()
	<-s.done
	return nil
}

func (s *subscription) Done() <-chan struct{} {
	return s.done
}

func (s *subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *subscription) Wait() error {
	<-s.done
	return s.Err()
}
