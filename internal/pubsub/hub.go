package pubsub

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// Handler consumes one published item. Errors are logged by the hub and
// never affect other handlers.
type Handler[T any] func(ctx context.Context, item T) error

// Subscription deregisters a handler when cancelled. Cancel is
// idempotent.
type Subscription struct {
	once   sync.Once
	cancel func()
}

// Cancel removes the subscription from its hub.
func (s *Subscription) Cancel() {
	s.once.Do(s.cancel)
}

// Hub is an in-process publish/subscribe fan-out. Every registered
// handler receives every published item; handlers run concurrently and
// Publish returns once all of them finished.
type Hub[T any] struct {
	logger zerolog.Logger

	mu     sync.RWMutex
	nextID uint64
	subs   map[uint64]subscriber[T]
}

type subscriber[T any] struct {
	owner   any
	handler Handler[T]
}

// NewHub creates an empty hub.
func NewHub[T any](logger zerolog.Logger) *Hub[T] {
	return &Hub[T]{
		logger: logger,
		subs:   make(map[uint64]subscriber[T]),
	}
}

// Subscribe registers an anonymous handler.
func (h *Hub[T]) Subscribe(handler Handler[T]) *Subscription {
	return h.SubscribeAs(nil, handler)
}

// SubscribeAs registers a handler on behalf of the given subscriber
// identity. The identity only shows up in logs.
func (h *Hub[T]) SubscribeAs(owner any, handler Handler[T]) *Subscription {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = subscriber[T]{owner: owner, handler: handler}
	h.mu.Unlock()

	return &Subscription{cancel: func() {
		h.mu.Lock()
		delete(h.subs, id)
		h.mu.Unlock()
	}}
}

// Publish delivers every item to every currently registered handler and
// waits until all deliveries completed or failed. A failing handler
// does not prevent delivery to the others. Handlers registered while a
// publish is in flight are not invoked by it.
func (h *Hub[T]) Publish(ctx context.Context, items []T) {
	h.mu.RLock()
	handlers := make([]subscriber[T], 0, len(h.subs))
	for _, s := range h.subs {
		handlers = append(handlers, s)
	}
	h.mu.RUnlock()

	if len(handlers) == 0 || len(items) == 0 {
		return
	}

	var wg sync.WaitGroup
	for _, item := range items {
		for _, sub := range handlers {
			wg.Add(1)
			go func(sub subscriber[T], item T) {
				defer wg.Done()
				h.invoke(ctx, sub, item)
			}(sub, item)
		}
	}
	wg.Wait()
}

func (h *Hub[T]) invoke(ctx context.Context, sub subscriber[T], item T) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error().Interface("panic", r).Interface("subscriber", sub.owner).
				Msg("pubsub handler panicked")
		}
	}()
	if err := sub.handler(ctx, item); err != nil {
		h.logger.Warn().Err(err).Interface("subscriber", sub.owner).
			Msg("pubsub handler failed")
	}
}
