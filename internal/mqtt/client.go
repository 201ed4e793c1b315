// Package mqtt wraps the paho client with pattern-based dispatch of
// inbound messages to registered subscriptions.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"homehub/internal/pubsub"
)

// Message is one inbound MQTT message.
type Message struct {
	Topic   string
	Payload []byte
}

// Handler consumes one inbound message.
type Handler func(ctx context.Context, msg Message) error

// Client is a broker connection. All inbound messages go through a
// single handler which dispatches to subscriptions by topic pattern.
type Client struct {
	client paho.Client
	logger zerolog.Logger

	mu   sync.RWMutex
	subs []subscription
}

type subscription struct {
	pattern string
	handler Handler
}

// Connect creates a client and connects it to the broker. The
// connection auto-reconnects and re-subscribes after broker restarts.
func Connect(broker, clientID string, logger zerolog.Logger) (*Client, error) {
	c := &Client{logger: logger}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetMaxReconnectInterval(30 * time.Second).
		SetCleanSession(false).
		SetDefaultPublishHandler(c.dispatch)
	opts.OnConnect = func(paho.Client) {
		logger.Info().Str("broker", broker).Msg("mqtt connected")
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		logger.Warn().Err(err).Str("broker", broker).Msg("mqtt connection lost")
	}

	c.client = paho.NewClient(opts)
	if token := c.client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt: connect %s: %w", broker, token.Error())
	}
	return c, nil
}

// Subscribe registers a handler for a topic pattern ("+" and "#"
// wildcards supported).
func (c *Client) Subscribe(pattern string, handler Handler) error {
	c.mu.Lock()
	c.subs = append(c.subs, subscription{pattern: pattern, handler: handler})
	c.mu.Unlock()

	// nil callback routes matching messages to the default handler.
	if token := c.client.Subscribe(pattern, 1, nil); token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqtt: subscribe %s: %w", pattern, token.Error())
	}
	c.logger.Debug().Str("pattern", pattern).Msg("mqtt subscribed")
	return nil
}

// Publish sends a payload to a topic. Strings and byte slices go out
// as-is, anything else is JSON encoded; nil publishes an empty payload.
func (c *Client) Publish(topic string, payload any, retain bool) error {
	var data []byte
	switch p := payload.(type) {
	case nil:
	case string:
		data = []byte(p)
	case []byte:
		data = p
	default:
		encoded, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("mqtt: marshal payload for %s: %w", topic, err)
		}
		data = encoded
	}

	if token := c.client.Publish(topic, 1, retain, data); token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqtt: publish %s: %w", topic, token.Error())
	}
	return nil
}

// Disconnect closes the broker connection.
func (c *Client) Disconnect() {
	c.client.Disconnect(250)
}

func (c *Client) dispatch(_ paho.Client, msg paho.Message) {
	c.Dispatch(context.Background(), Message{Topic: msg.Topic(), Payload: msg.Payload()})
}

// Dispatch routes one message to every subscription whose pattern
// matches its topic.
func (c *Client) Dispatch(ctx context.Context, msg Message) {
	c.mu.RLock()
	subs := make([]subscription, len(c.subs))
	copy(subs, c.subs)
	c.mu.RUnlock()

	for _, sub := range subs {
		if !pubsub.Matches(msg.Topic, sub.pattern) {
			continue
		}
		if err := sub.handler(ctx, msg); err != nil {
			c.logger.Warn().Err(err).Str("topic", msg.Topic).
				Msg("mqtt handler failed")
		}
	}
}
