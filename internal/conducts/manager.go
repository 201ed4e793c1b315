// Package conducts routes outbound commands to the protocol adapter
// owning their channel.
package conducts

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"homehub/internal/models"
	"homehub/internal/pubsub"
)

// Manager fans conducts out to channel subscribers. Delivery is fire
// and forget: a conduct for a channel without a running adapter is
// dropped.
type Manager struct {
	hub    *pubsub.TopicHub[models.Conduct]
	logger zerolog.Logger
}

// NewManager creates a conduct manager with its own topic hub.
func NewManager(logger zerolog.Logger) *Manager {
	return &Manager{
		hub:    pubsub.NewTopicHub[models.Conduct](logger),
		logger: logger,
	}
}

// Subscribe registers a protocol adapter's handler for one channel.
func (m *Manager) Subscribe(channel string, handler pubsub.Handler[models.Conduct]) *pubsub.Subscription {
	return m.hub.Subscribe([]string{channel}, handler)
}

// Publish groups the conducts by target channel and publishes all
// groups concurrently, returning once every group completed.
func (m *Manager) Publish(ctx context.Context, conducts []models.Conduct) {
	groups := make(map[string][]models.Conduct)
	for _, conduct := range conducts {
		groups[conduct.Target.Channel] = append(groups[conduct.Target.Channel], conduct)
	}

	var wg sync.WaitGroup
	for channel, group := range groups {
		wg.Add(1)
		go func(channel string, group []models.Conduct) {
			defer wg.Done()
			m.hub.Publish(ctx, channel, group)
		}(channel, group)
	}
	wg.Wait()

	m.logger.Debug().Int("count", len(conducts)).Int("channels", len(groups)).
		Msg("conducts published")
}
