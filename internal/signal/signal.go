// Package signal provides a typed, in-process broadcaster with
// synchronous fan-out. It is the building block behind the inbox-changed
// bus and the role preview change notification.
//
// Delivery is synchronous: Emit calls every handler registered at the
// moment of the call, in registration order, on the caller's goroutine,
// and returns after the last one. Nothing is queued, so a handler
// registered after an emission never observes it, and one removed
// while an emission is under way is skipped if its turn has not come.
package signal

import (
	"sync"
	"sync/atomic"
)

// Broadcaster fans a value out to its subscribers. The zero value is
// ready to use.
type Broadcaster[T any] struct {
	mu       sync.Mutex
	nextID   uint64
	handlers []*subscription[T]
}

type subscription[T any] struct {
	id      uint64
	handler func(T)
	active  atomic.Bool
}

// Subscribe registers handler and returns a function that removes it.
// The returned function is idempotent and safe to call from inside a
// handler.
func (b *Broadcaster[T]) Subscribe(handler func(T)) (unsubscribe func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	sub := &subscription[T]{id: id, handler: handler}
	sub.active.Store(true)
	b.handlers = append(b.handlers, sub)
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			sub.active.Store(false)
			b.remove(id)
		})
	}
}

// Emit delivers value to every current subscriber. Handlers run without
// the broadcaster's lock held, so they may subscribe, unsubscribe or
// emit again. A subscriber is checked when its turn comes, so one
// unsubscribed by an earlier handler is not called.
func (b *Broadcaster[T]) Emit(value T) {
	b.mu.Lock()
	snapshot := make([]*subscription[T], len(b.handlers))
	copy(snapshot, b.handlers)
	b.mu.Unlock()

	for _, s := range snapshot {
		if s.active.Load() {
			s.handler(value)
		}
	}
}

// Len returns the number of live subscribers.
func (b *Broadcaster[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.handlers)
}

func (b *Broadcaster[T]) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, s := range b.handlers {
		if s.id == id {
			b.handlers = append(b.handlers[:i], b.handlers[i+1:]...)
			return
		}
	}
}
