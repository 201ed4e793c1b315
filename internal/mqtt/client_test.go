package mqtt

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestDispatchRoutesByPattern(t *testing.T) {
	c := &Client{logger: zerolog.Nop()}

	var wildcard, exact, other []string
	c.subs = []subscription{
		{pattern: "zigbee2mqtt/#", handler: func(_ context.Context, msg Message) error {
			wildcard = append(wildcard, msg.Topic)
			return nil
		}},
		{pattern: "zigbee2mqtt/bridge/devices", handler: func(_ context.Context, msg Message) error {
			exact = append(exact, msg.Topic)
			return nil
		}},
		{pattern: "philipshue/#", handler: func(_ context.Context, msg Message) error {
			other = append(other, msg.Topic)
			return nil
		}},
	}

	c.Dispatch(context.Background(), Message{Topic: "zigbee2mqtt/bridge/devices"})
	c.Dispatch(context.Background(), Message{Topic: "zigbee2mqtt/sensor"})

	assert.Equal(t, []string{"zigbee2mqtt/bridge/devices", "zigbee2mqtt/sensor"}, wildcard)
	assert.Equal(t, []string{"zigbee2mqtt/bridge/devices"}, exact)
	assert.Empty(t, other)
}

func TestDispatchHandlerErrorDoesNotStopOthers(t *testing.T) {
	c := &Client{logger: zerolog.Nop()}

	var delivered int
	c.subs = []subscription{
		{pattern: "#", handler: func(context.Context, Message) error {
			return errors.New("boom")
		}},
		{pattern: "#", handler: func(context.Context, Message) error {
			delivered++
			return nil
		}},
	}

	c.Dispatch(context.Background(), Message{Topic: "a/b"})
	assert.Equal(t, 1, delivered)
}
