// Package notify provides a synchronous observer registry with explicit unsubscription.
package notify

import (
	"context"
	"sync"
)

// Handler receives a published value
type Handler[T any] func(ctx context.Context, value T)

// Registry holds the subscribers for one kind of notification.
// The zero value is ready to use.
type Registry[T any] struct {
	mu       sync.RWMutex
	nextID   uint64
	handlers map[uint64]Handler[T]
	order    []uint64
}

// Subscribe registers a handler and returns the function that unregisters it.
// The returned function is safe to call more than once.
func (r *Registry[T]) Subscribe(h Handler[T]) (unsubscribe func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.handlers == nil {
		r.handlers = make(map[uint64]Handler[T])
	}
	id := r.nextID
	r.nextID++
	r.handlers[id] = h
	r.order = append(r.order, id)

	var once sync.Once
	return func() {
		once.Do(func() { r.remove(id) })
	}
}

// Publish calls every handler in subscription order.
// Handlers run after the registry lock is released, so they may subscribe or unsubscribe.
func (r *Registry[T]) Publish(ctx context.Context, value T) {
	r.mu.RLock()
	handlers := make([]Handler[T], 0, len(r.order))
	for _, id := range r.order {
		handlers = append(handlers, r.handlers[id])
	}
	r.mu.RUnlock()

	for _, h := range handlers {
		h(ctx, value)
	}
}

// Len returns the number of subscribed handlers
func (r *Registry[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers)
}

func (r *Registry[T]) remove(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.handlers, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}
