// Package zigbee2mqtt bridges zigbee2mqtt devices into the hub: wire
// state in through the state manager, conducts out through the broker.
package zigbee2mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"homehub/internal/conducts"
	"homehub/internal/models"
	"homehub/internal/mqtt"
	"homehub/internal/pubsub"
	"homehub/internal/state"
)

// Channel is the conduct channel name this adapter serves.
const Channel = "zigbee2mqtt"

const (
	topicSubscription = "zigbee2mqtt/#"
	topicBridge       = "zigbee2mqtt/bridge"
)

// Broker is the MQTT connection the adapter talks through.
type Broker interface {
	Subscribe(pattern string, handler mqtt.Handler) error
	Publish(topic string, payload any, retain bool) error
}

// Registry is the device registry slice the adapter needs: resolving
// inbound aliases and registering discovered devices.
type Registry interface {
	GetDevice(ctx context.Context, identifier string) (*models.DeviceConfiguration, error)
	GetByAlias(ctx context.Context, alias string) (*models.DeviceConfiguration, error)
	GetAll(ctx context.Context) ([]models.DeviceConfiguration, error)
	Upsert(ctx context.Context, device models.DeviceConfiguration) error
}

// Service is the zigbee2mqtt protocol adapter.
type Service struct {
	broker   Broker
	states   *state.Manager
	registry Registry
	logger   zerolog.Logger

	sub *pubsub.Subscription
}

// New creates the adapter.
func New(broker Broker, states *state.Manager, registry Registry, logger zerolog.Logger) *Service {
	return &Service{
		broker:   broker,
		states:   states,
		registry: registry,
		logger:   logger,
	}
}

// Start subscribes to the zigbee2mqtt topic tree, asks the bridge for
// its device list and registers for conducts on this adapter's channel.
func (s *Service) Start(ctx context.Context, conductManager *conducts.Manager) error {
	if err := s.broker.Subscribe(topicSubscription, s.handleMessage); err != nil {
		return err
	}

	if err := s.broker.Publish("zigbee2mqtt/bridge/config/devices/get", nil, false); err != nil {
		return err
	}
	if err := s.broker.Publish("zigbee2mqtt/bridge/config/permit_join", "false", false); err != nil {
		return err
	}

	s.sub = conductManager.Subscribe(Channel, s.handleConduct)
	s.logger.Info().Msg("zigbee2mqtt adapter started")
	return nil
}

// Stop deregisters the conduct subscription.
func (s *Service) Stop() {
	if s.sub != nil {
		s.sub.Cancel()
		s.sub = nil
	}
}

func (s *Service) handleMessage(ctx context.Context, msg mqtt.Message) error {
	if strings.HasPrefix(msg.Topic, topicBridge+"/logging") {
		return nil
	}
	if msg.Topic == topicBridge+"/devices" {
		return s.handleBridgeDevices(ctx, msg.Payload)
	}
	return s.handleDeviceTopic(ctx, msg)
}

// handleDeviceTopic applies a device state publication: resolve the
// alias, then set state for every payload property that maps to a
// readable contact.
func (s *Service) handleDeviceTopic(ctx context.Context, msg mqtt.Message) error {
	segments := strings.Split(msg.Topic, "/")
	if len(segments) < 2 {
		return nil
	}
	alias := segments[1]
	if alias == "" || alias == "bridge" {
		return nil
	}

	device, err := s.registry.GetByAlias(ctx, alias)
	if err != nil {
		return fmt.Errorf("zigbee2mqtt: resolve alias %q: %w", alias, err)
	}
	if device == nil {
		s.logger.Debug().Str("alias", alias).Msg("device not registered, state ignored")
		return nil
	}

	var properties map[string]any
	if err := json.Unmarshal(msg.Payload, &properties); err != nil {
		return fmt.Errorf("zigbee2mqtt: payload for %q: %w", alias, err)
	}

	for name, raw := range properties {
		contact := device.Contact(Channel, name)
		if contact == nil || !contact.Access.Has(models.AccessRead) && !contact.Access.Has(models.AccessGet) {
			continue
		}
		// An empty non-string value carries no data.
		if str, ok := raw.(string); ok && str == "" && contact.DataType != models.DataTypeString {
			continue
		}

		target := models.DeviceTarget{Channel: Channel, Identifier: device.Identifier, Contact: name}
		if err := s.states.SetState(ctx, target, raw); err != nil {
			s.logger.Warn().Err(err).Stringer("target", target).Msg("failed to set device state")
		}
	}
	return nil
}

func (s *Service) handleConduct(ctx context.Context, conduct models.Conduct) error {
	device, err := s.registry.GetDevice(ctx, conduct.Target.Identifier)
	if err != nil {
		return fmt.Errorf("zigbee2mqtt: resolve conduct device: %w", err)
	}
	if device == nil {
		return fmt.Errorf("zigbee2mqtt: conduct for unknown device %q", conduct.Target.Identifier)
	}

	// zigbee2mqtt expects ON/OFF for binary contacts.
	value := conduct.Value.Native()
	if b, ok := conduct.Value.AsBool(); ok {
		if b {
			value = "ON"
		} else {
			value = "OFF"
		}
	}

	topic := fmt.Sprintf("zigbee2mqtt/%s/set", device.Alias)
	return s.broker.Publish(topic, map[string]any{conduct.Target.Contact: value}, false)
}

// Poll asks the bridge for fresh values of every gettable contact.
// Driven by the scheduler.
func (s *Service) Poll(ctx context.Context) {
	devices, err := s.registry.GetAll(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("poll skipped, registry unavailable")
		return
	}

	for _, device := range devices {
		request := make(map[string]string)
		for _, endpoint := range device.Endpoints {
			if endpoint.Channel != Channel {
				continue
			}
			for _, contact := range endpoint.Contacts {
				if contact.Access.Has(models.AccessGet) {
					request[contact.Name] = ""
				}
			}
		}
		if len(request) == 0 {
			continue
		}

		topic := fmt.Sprintf("zigbee2mqtt/%s/get", device.Alias)
		if err := s.broker.Publish(topic, request, false); err != nil {
			s.logger.Warn().Err(err).Str("device", device.Identifier).Msg("poll request failed")
		}
	}
}
