package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"homehub/internal/values"
)

func sampleCondition() Comparable {
	return BooleanGroup{
		Operator: OpAnd,
		Operands: []Comparable{
			ValueComparison{
				Left:     DeviceStateValue{Target: &DeviceTarget{Channel: "zigbee2mqtt", Identifier: "sensor-1", Contact: "temperature"}},
				Operator: OpGreaterThan,
				Right:    StaticValue{Value: values.Number(20.5)},
			},
			BooleanGroup{
				Operator: OpOr,
				Operands: []Comparable{
					ValueComparison{
						Left:     DeviceStateValue{Target: &DeviceTarget{Channel: "zigbee2mqtt", Identifier: "switch-1", Contact: "state"}},
						Operator: OpEqual,
						Right:    StaticValue{Value: values.Bool(true)},
					},
				},
			},
		},
	}
}

func TestComparableRoundTrip(t *testing.T) {
	original := sampleCondition()

	data, err := MarshalComparable(original)
	require.NoError(t, err)

	back, err := UnmarshalComparable(data)
	require.NoError(t, err)
	assert.Equal(t, original, back)
}

func TestUnmarshalComparableUnknownType(t *testing.T) {
	_, err := UnmarshalComparable([]byte(`{"type":"mystery"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown condition node type")

	_, err = UnmarshalComparable([]byte(`{"type":"comparison","op":"eq","left":{"type":"nope"},"right":{"type":"static","value":1}}`))
	assert.Error(t, err)
}

func TestDeriveTriggers(t *testing.T) {
	triggers := DeriveTriggers(sampleCondition())
	assert.Equal(t, []DeviceTarget{
		{Channel: "zigbee2mqtt", Identifier: "sensor-1", Contact: "temperature"},
		{Channel: "zigbee2mqtt", Identifier: "switch-1", Contact: "state"},
	}, triggers)
}

func TestDeriveTriggersDeduplicates(t *testing.T) {
	target := &DeviceTarget{Channel: "c", Identifier: "d", Contact: "x"}
	condition := BooleanGroup{
		Operator: OpAnd,
		Operands: []Comparable{
			ValueComparison{Left: DeviceStateValue{Target: target}, Operator: OpGreaterThan, Right: StaticValue{Value: values.Number(1)}},
			ValueComparison{Left: DeviceStateValue{Target: target}, Operator: OpLessThan, Right: StaticValue{Value: values.Number(9)}},
		},
	}
	assert.Len(t, DeriveTriggers(condition), 1)
}

func TestProcessRoundTrip(t *testing.T) {
	original := Process{
		Name:      "warm evening",
		Triggers:  []DeviceTarget{{Channel: "zigbee2mqtt", Identifier: "sensor-1", Contact: "temperature"}},
		Condition: sampleCondition(),
		Conducts: []Conduct{
			{Target: DeviceTarget{Channel: "zigbee2mqtt", Identifier: "plug-1", Contact: "state"}, Value: values.Bool(true)},
		},
	}

	data, err := json.Marshal(original)
	require.NoError(t, err)

	var back Process
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, original, back)
}

func TestProcessTriggerFallback(t *testing.T) {
	// A document without an explicit trigger list derives triggers from
	// the condition's device state operands.
	doc := `{
		"name": "derived",
		"condition": {
			"type": "comparison",
			"op": "gt",
			"left": {"type": "deviceState", "target": {"channel": "zigbee2mqtt", "identifier": "sensor-1", "contact": "temperature"}},
			"right": {"type": "static", "value": 20.5}
		},
		"conducts": []
	}`

	var p Process
	require.NoError(t, json.Unmarshal([]byte(doc), &p))
	assert.Equal(t, []DeviceTarget{
		{Channel: "zigbee2mqtt", Identifier: "sensor-1", Contact: "temperature"},
	}, p.Triggers)
	assert.True(t, p.TriggeredBy(DeviceTarget{Channel: "zigbee2mqtt", Identifier: "sensor-1", Contact: "temperature"}))
	assert.False(t, p.TriggeredBy(DeviceTarget{Channel: "zigbee2mqtt", Identifier: "sensor-2", Contact: "temperature"}))
}

func TestContactAccess(t *testing.T) {
	access := AccessRead | AccessGet
	assert.True(t, access.Has(AccessRead))
	assert.True(t, access.Has(AccessGet))
	assert.False(t, access.Has(AccessWrite))
	assert.True(t, AccessNone.Has(AccessNone))
}

func TestDeviceTargetValid(t *testing.T) {
	assert.True(t, DeviceTarget{Channel: "c", Identifier: "i", Contact: "x"}.Valid())
	assert.False(t, DeviceTarget{Identifier: "i", Contact: "x"}.Valid())
	assert.Equal(t, "c/i/x", DeviceTarget{Channel: "c", Identifier: "i", Contact: "x"}.String())
}

func TestDeviceConfigurationContact(t *testing.T) {
	device := DeviceConfiguration{
		Endpoints: []DeviceEndpoint{{
			Channel: "zigbee2mqtt",
			Contacts: []DeviceContact{
				{Name: "temperature", DataType: DataTypeDouble},
				{Name: "state", DataType: DataTypeBool},
			},
		}},
	}

	contact := device.Contact("zigbee2mqtt", "temperature")
	require.NotNil(t, contact)
	assert.True(t, contact.IsNumeric())

	assert.Nil(t, device.Contact("zigbee2mqtt", "humidity"))
	assert.Nil(t, device.Contact("other", "temperature"))
}
