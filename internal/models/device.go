package models

import "fmt"

// ContactTarget identifies a single device property without the owning
// channel. Used as the state cache key and for history lookups.
type ContactTarget struct {
	Identifier string `json:"identifier"`
	Contact    string `json:"contact"`
}

// DeviceTarget identifies a single device property including the owning
// channel. Used as the trigger matching key.
type DeviceTarget struct {
	Channel    string `json:"channel"`
	Identifier string `json:"identifier"`
	Contact    string `json:"contact"`
}

// ContactTarget narrows the target to its channel-less form.
func (t DeviceTarget) ContactTarget() ContactTarget {
	return ContactTarget{Identifier: t.Identifier, Contact: t.Contact}
}

// Valid reports whether all three target components are present.
func (t DeviceTarget) Valid() bool {
	return t.Channel != "" && t.Identifier != "" && t.Contact != ""
}

func (t DeviceTarget) String() string {
	return fmt.Sprintf("%s/%s/%s", t.Channel, t.Identifier, t.Contact)
}

// ContactAccess is a bitmask describing how a contact can be used.
type ContactAccess uint8

const (
	AccessNone  ContactAccess = 0
	AccessRead  ContactAccess = 1 << 0
	AccessWrite ContactAccess = 1 << 1
	AccessGet   ContactAccess = 1 << 2
)

// Has reports whether all bits of flag are set.
func (a ContactAccess) Has(flag ContactAccess) bool {
	return a&flag == flag
}

// Contact data types. Advisory only, used for parsing and noise
// filtering, not enforced on stored values.
const (
	DataTypeString = "string"
	DataTypeBool   = "bool"
	DataTypeDouble = "double"
)

// DeviceContact describes one addressable property of a device.
type DeviceContact struct {
	Name                string        `json:"name"`
	DataType            string        `json:"dataType"`
	Access              ContactAccess `json:"access"`
	NoiseReductionDelta *float64      `json:"noiseReductionDelta,omitempty"`
}

// IsNumeric reports whether the contact carries numeric values.
func (c DeviceContact) IsNumeric() bool {
	return c.DataType == DataTypeDouble
}

// DeviceEndpoint groups the contacts a device exposes on one channel.
type DeviceEndpoint struct {
	Channel  string          `json:"channel"`
	Contacts []DeviceContact `json:"contacts"`
}

// DeviceConfiguration describes a registered device. Owned by the
// device registry; the engine only reads it.
type DeviceConfiguration struct {
	ID           string           `json:"id"`
	Alias        string           `json:"alias"`
	Identifier   string           `json:"identifier"`
	Manufacturer string           `json:"manufacturer,omitempty"`
	Model        string           `json:"model,omitempty"`
	Endpoints    []DeviceEndpoint `json:"endpoints"`
}

// Contact looks up a contact by channel and name, or nil when the
// device does not expose it.
func (d *DeviceConfiguration) Contact(channel, name string) *DeviceContact {
	for ei := range d.Endpoints {
		if d.Endpoints[ei].Channel != channel {
			continue
		}
		for ci := range d.Endpoints[ei].Contacts {
			if d.Endpoints[ei].Contacts[ci].Name == name {
				return &d.Endpoints[ei].Contacts[ci]
			}
		}
	}
	return nil
}
