// Package pubsub is the in-process publish/subscribe primitive behind the
// client's observable state: identity, profile, selector and thread updates.
package pubsub

import (
	"sync"
	"sync/atomic"
)

// Topic fans a value out to every registered handler. Handlers run
// synchronously on the publishing goroutine, in registration order, and
// never under the topic's lock, so a handler may unsubscribe itself.
// The zero value is ready to use.
type Topic[T any] struct {
	mu       sync.Mutex
	next     uint64
	handlers map[uint64]*handler[T]
	order    []uint64
}

type handler[T any] struct {
	fn      func(T)
	removed atomic.Bool
}

// Subscribe registers fn and returns an idempotent unsubscribe func. Once
// unsubscribe returns, no new call of fn starts; a call already running on
// another publishing goroutine is allowed to finish.
func (t *Topic[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	h := &handler[T]{fn: fn}

	t.mu.Lock()
	if t.handlers == nil {
		t.handlers = make(map[uint64]*handler[T])
	}
	t.next++
	id := t.next
	t.handlers[id] = h
	t.order = append(t.order, id)
	t.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.removed.Store(true)
			t.remove(id)
		})
	}
}

func (t *Topic[T]) remove(id uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.handlers, id)
	for i, v := range t.order {
		if v == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
}

// Publish delivers v to the handlers registered at the time of the call
// that have not unsubscribed by the time their turn comes.
func (t *Topic[T]) Publish(v T) {
	t.mu.Lock()
	hs := make([]*handler[T], 0, len(t.order))
	for _, id := range t.order {
		hs = append(hs, t.handlers[id])
	}
	t.mu.Unlock()

	for _, h := range hs {
		if h.removed.Load() {
			continue
		}
		h.fn(v)
	}
}

// Len reports the number of registered handlers.
func (t *Topic[T]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.order)
}
