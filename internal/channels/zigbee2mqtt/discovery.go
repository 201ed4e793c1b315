package zigbee2mqtt

import (
	"context"
	"encoding/json"
	"fmt"

	"homehub/internal/models"
)

// bridgeDevice is one entry of the zigbee2mqtt bridge device list.
type bridgeDevice struct {
	IeeeAddress  string `json:"ieee_address"`
	FriendlyName string `json:"friendly_name"`
	Definition   *struct {
		Model   string         `json:"model"`
		Vendor  string         `json:"vendor"`
		Exposes []bridgeExpose `json:"exposes"`
	} `json:"definition"`
}

type bridgeExpose struct {
	Type     string         `json:"type"`
	Property string         `json:"property"`
	Access   int            `json:"access"`
	Features []bridgeExpose `json:"features"`
}

// zigbee2mqtt expose access bits.
const (
	accessPublished = 1
	accessSet       = 2
	accessGet       = 4
)

// handleBridgeDevices registers every device the bridge reports.
// Devices must be registered before their state is trusted.
func (s *Service) handleBridgeDevices(ctx context.Context, payload []byte) error {
	var devices []bridgeDevice
	if err := json.Unmarshal(payload, &devices); err != nil {
		return fmt.Errorf("zigbee2mqtt: bridge device list: %w", err)
	}

	for _, device := range devices {
		if device.IeeeAddress == "" {
			s.logger.Warn().Str("name", device.FriendlyName).
				Msg("device without IEEE address skipped")
			continue
		}
		if err := s.registerDevice(ctx, device); err != nil {
			s.logger.Warn().Err(err).Str("name", device.FriendlyName).
				Str("address", device.IeeeAddress).Msg("failed to register device")
		}
	}
	return nil
}

func (s *Service) registerDevice(ctx context.Context, device bridgeDevice) error {
	alias := device.FriendlyName
	if alias == "" {
		alias = device.IeeeAddress
	}

	config := models.DeviceConfiguration{
		Alias:      alias,
		Identifier: fmt.Sprintf("%s/%s", Channel, device.IeeeAddress),
	}

	var contacts []models.DeviceContact
	if device.Definition != nil {
		config.Model = device.Definition.Model
		config.Manufacturer = device.Definition.Vendor
		for _, expose := range device.Definition.Exposes {
			contacts = appendContacts(contacts, expose)
		}
	}
	config.Endpoints = []models.DeviceEndpoint{{Channel: Channel, Contacts: contacts}}

	if err := s.registry.Upsert(ctx, config); err != nil {
		return err
	}
	s.logger.Debug().Str("alias", alias).Str("identifier", config.Identifier).
		Int("contacts", len(contacts)).Msg("device registered")
	return nil
}

// appendContacts flattens an expose entry (and one level of composite
// features) into device contacts.
func appendContacts(contacts []models.DeviceContact, expose bridgeExpose) []models.DeviceContact {
	for _, feature := range expose.Features {
		contacts = appendContacts(contacts, feature)
	}
	if expose.Property == "" || expose.Type == "" {
		return contacts
	}

	dataType := mapDataType(expose.Type)
	if dataType == "" {
		return contacts
	}

	var access models.ContactAccess
	if expose.Access&accessPublished != 0 {
		access |= models.AccessRead
	}
	if expose.Access&accessSet != 0 {
		access |= models.AccessWrite
	}
	if expose.Access&accessGet != 0 {
		access |= models.AccessGet
	}

	return append(contacts, models.DeviceContact{
		Name:     expose.Property,
		DataType: dataType,
		Access:   access,
	})
}

func mapDataType(exposeType string) string {
	switch exposeType {
	case "numeric":
		return models.DataTypeDouble
	case "binary":
		return models.DataTypeBool
	case "enum", "text":
		return models.DataTypeString
	default:
		return ""
	}
}
