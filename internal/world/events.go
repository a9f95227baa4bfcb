package world

import (
	"sort"
	"sync"
)

// Source is the subscribe side of a Stream.
type Source[T any] interface {
	Subscribe(fn func(T)) *Subscription
}

// Subscription is a registered handler. Unsubscribe is safe to call more
// than once.
type Subscription struct {
	once   sync.Once
	cancel func()
}

// Unsubscribe removes the handler. It does not wait for an in-flight call.
func (s *Subscription) Unsubscribe() {
	if s == nil {
		return
	}
	s.once.Do(s.cancel)
}

// Stream fans events of one type out to its subscribers, in subscription
// order, on the publishing goroutine.
type Stream[T any] struct {
	mu       sync.RWMutex
	next     int
	handlers map[int]func(T)
}

// NewStream creates a stream with no subscribers.
func NewStream[T any]() *Stream[T] {
	return &Stream[T]{handlers: make(map[int]func(T))}
}

// Subscribe registers fn.
func (s *Stream[T]) Subscribe(fn func(T)) *Subscription {
	s.mu.Lock()
	id := s.next
	s.next++
	s.handlers[id] = fn
	s.mu.Unlock()

	return &Subscription{cancel: func() {
		s.mu.Lock()
		delete(s.handlers, id)
		s.mu.Unlock()
	}}
}

// Publish delivers ev to every current subscriber. Handlers run without the
// stream lock held, so they may subscribe or unsubscribe.
func (s *Stream[T]) Publish(ev T) {
	s.mu.RLock()
	ids := make([]int, 0, len(s.handlers))
	for id := range s.handlers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(T), len(ids))
	for i, id := range ids {
		fns[i] = s.handlers[id]
	}
	s.mu.RUnlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// Len returns the number of subscribers.
func (s *Stream[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.handlers)
}
