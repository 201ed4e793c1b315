package conducts

import (
	"context"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"homehub/internal/models"
	"homehub/internal/values"
)

func conduct(channel, identifier string, value values.Value) models.Conduct {
	return models.Conduct{
		Target: models.DeviceTarget{Channel: channel, Identifier: identifier, Contact: "state"},
		Value:  value,
	}
}

func TestPublishGroupsByChannel(t *testing.T) {
	m := NewManager(zerolog.Nop())

	var mu sync.Mutex
	received := make(map[string][]models.Conduct)
	record := func(channel string) {
		m.Subscribe(channel, func(_ context.Context, c models.Conduct) error {
			mu.Lock()
			received[channel] = append(received[channel], c)
			mu.Unlock()
			return nil
		})
	}
	record("zigbee2mqtt")
	record("philipshue")

	m.Publish(context.Background(), []models.Conduct{
		conduct("zigbee2mqtt", "plug-1", values.Bool(true)),
		conduct("philipshue", "lamp-1", values.Number(80)),
		conduct("zigbee2mqtt", "plug-2", values.Bool(false)),
	})

	require.Len(t, received["zigbee2mqtt"], 2)
	require.Len(t, received["philipshue"], 1)
	assert.ElementsMatch(t, []string{"plug-1", "plug-2"}, []string{
		received["zigbee2mqtt"][0].Target.Identifier,
		received["zigbee2mqtt"][1].Target.Identifier,
	})
}

func TestPublishUnsubscribedChannelIsDropped(t *testing.T) {
	m := NewManager(zerolog.Nop())

	var got int
	m.Subscribe("zigbee2mqtt", func(context.Context, models.Conduct) error {
		got++
		return nil
	})

	// The orphan conduct is dropped without affecting the other group.
	m.Publish(context.Background(), []models.Conduct{
		conduct("zigbee2mqtt", "plug-1", values.Bool(true)),
		conduct("nobody", "x", values.Bool(true)),
	})
	assert.Equal(t, 1, got)
}

func TestPublishEmpty(t *testing.T) {
	m := NewManager(zerolog.Nop())
	m.Publish(context.Background(), nil)
}
