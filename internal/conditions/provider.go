package conditions

import (
	"context"
	"fmt"

	"homehub/internal/models"
	"homehub/internal/values"
)

// StateReader is the slice of the state cache the provider needs.
type StateReader interface {
	GetState(target models.ContactTarget) values.Value
}

// StateValueProvider resolves operands against the live state cache.
type StateValueProvider struct {
	states StateReader
}

// NewStateValueProvider creates a provider reading from states.
func NewStateValueProvider(states StateReader) *StateValueProvider {
	return &StateValueProvider{states: states}
}

// Resolve returns static operands as-is and looks device state operands
// up in the cache. An unassigned device state target resolves to null.
func (p *StateValueProvider) Resolve(_ context.Context, operand models.ConditionValue) (values.Value, error) {
	switch v := operand.(type) {
	case models.StaticValue:
		return v.Value, nil
	case models.DeviceStateValue:
		if v.Target == nil {
			return values.Null, nil
		}
		return p.states.GetState(v.Target.ContactTarget()), nil
	default:
		return values.Null, fmt.Errorf("conditions: unsupported condition value %T", operand)
	}
}
