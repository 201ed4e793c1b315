package pubsub

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubFanOut(t *testing.T) {
	hub := NewHub[int](zerolog.Nop())

	var mu sync.Mutex
	got := make(map[string][]int)
	record := func(name string) Handler[int] {
		return func(_ context.Context, item int) error {
			mu.Lock()
			got[name] = append(got[name], item)
			mu.Unlock()
			return nil
		}
	}

	hub.Subscribe(record("a"))
	hub.Subscribe(record("b"))

	hub.Publish(context.Background(), []int{1, 2})

	assert.ElementsMatch(t, []int{1, 2}, got["a"])
	assert.ElementsMatch(t, []int{1, 2}, got["b"])
}

func TestHubFailingHandlerDoesNotBlockOthers(t *testing.T) {
	hub := NewHub[string](zerolog.Nop())

	var delivered atomic.Int32
	hub.Subscribe(func(context.Context, string) error {
		return errors.New("boom")
	})
	hub.Subscribe(func(context.Context, string) error {
		panic("boom")
	})
	hub.Subscribe(func(context.Context, string) error {
		delivered.Add(1)
		return nil
	})

	// Publish must return normally with the healthy handler served.
	hub.Publish(context.Background(), []string{"x"})
	assert.Equal(t, int32(1), delivered.Load())
}

func TestHubPublishWaitsForAllHandlers(t *testing.T) {
	hub := NewHub[int](zerolog.Nop())

	var done atomic.Int32
	for i := 0; i < 3; i++ {
		hub.Subscribe(func(context.Context, int) error {
			done.Add(1)
			return nil
		})
	}

	hub.Publish(context.Background(), []int{1})
	require.Equal(t, int32(3), done.Load())
}

func TestHubCancelDeregisters(t *testing.T) {
	hub := NewHub[int](zerolog.Nop())

	var calls atomic.Int32
	sub := hub.Subscribe(func(context.Context, int) error {
		calls.Add(1)
		return nil
	})

	hub.Publish(context.Background(), []int{1})
	require.Equal(t, int32(1), calls.Load())

	sub.Cancel()
	sub.Cancel() // idempotent

	hub.Publish(context.Background(), []int{2})
	assert.Equal(t, int32(1), calls.Load())
}

func TestHubPublishWithoutSubscribers(t *testing.T) {
	hub := NewHub[int](zerolog.Nop())
	hub.Publish(context.Background(), []int{1, 2, 3})
}
