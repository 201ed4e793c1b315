package pubsub

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// TopicHub is a publish/subscribe fan-out keyed by exact topic
// equality. Publishing to a topic nobody subscribed to is a silent
// no-op.
type TopicHub[T any] struct {
	logger zerolog.Logger

	mu     sync.RWMutex
	nextID uint64
	topics map[string]map[uint64]Handler[T]
}

// NewTopicHub creates an empty topic hub.
func NewTopicHub[T any](logger zerolog.Logger) *TopicHub[T] {
	return &TopicHub[T]{
		logger: logger,
		topics: make(map[string]map[uint64]Handler[T]),
	}
}

// Subscribe registers a handler on each of the given topics.
func (h *TopicHub[T]) Subscribe(topics []string, handler Handler[T]) *Subscription {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	for _, topic := range topics {
		if h.topics[topic] == nil {
			h.topics[topic] = make(map[uint64]Handler[T])
		}
		h.topics[topic][id] = handler
	}
	h.mu.Unlock()

	subscribed := make([]string, len(topics))
	copy(subscribed, topics)

	return &Subscription{cancel: func() {
		h.mu.Lock()
		for _, topic := range subscribed {
			delete(h.topics[topic], id)
			if len(h.topics[topic]) == 0 {
				delete(h.topics, topic)
			}
		}
		h.mu.Unlock()
	}}
}

// Publish delivers every item to every handler subscribed to exactly
// this topic, concurrently, and waits for all of them.
func (h *TopicHub[T]) Publish(ctx context.Context, topic string, items []T) {
	h.mu.RLock()
	handlers := make([]Handler[T], 0, len(h.topics[topic]))
	for _, handler := range h.topics[topic] {
		handlers = append(handlers, handler)
	}
	h.mu.RUnlock()

	if len(handlers) == 0 {
		// No adapter is listening on this topic. Accepted, not an error.
		return
	}

	var wg sync.WaitGroup
	for _, item := range items {
		for _, handler := range handlers {
			wg.Add(1)
			go func(handler Handler[T], item T) {
				defer wg.Done()
				defer func() {
					if r := recover(); r != nil {
						h.logger.Error().Interface("panic", r).Str("topic", topic).
							Msg("pubsub topic handler panicked")
					}
				}()
				if err := handler(ctx, item); err != nil {
					h.logger.Warn().Err(err).Str("topic", topic).
						Msg("pubsub topic handler failed")
				}
			}(handler, item)
		}
	}
	wg.Wait()
}
