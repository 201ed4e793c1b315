package models

import (
	"encoding/json"
	"fmt"

	"homehub/internal/values"
)

// Conduct is an outbound command produced by a fired process: set the
// target contact to the given value.
type Conduct struct {
	Target DeviceTarget `json:"target"`
	Value  values.Value `json:"value"`
}

// Process is an automation rule: when a trigger target changes and the
// condition holds, the conducts are published. Immutable once loaded.
type Process struct {
	Name      string
	Triggers  []DeviceTarget
	Condition Comparable
	Conducts  []Conduct
}

// TriggeredBy reports whether target is one of the process triggers.
func (p *Process) TriggeredBy(target DeviceTarget) bool {
	for _, t := range p.Triggers {
		if t == target {
			return true
		}
	}
	return false
}

type processDoc struct {
	Name      string          `json:"name"`
	Triggers  []DeviceTarget  `json:"triggers,omitempty"`
	Condition json.RawMessage `json:"condition"`
	Conducts  []Conduct       `json:"conducts"`
}

// MarshalJSON encodes the process as a stored rule document.
func (p Process) MarshalJSON() ([]byte, error) {
	condition, err := MarshalComparable(p.Condition)
	if err != nil {
		return nil, err
	}
	return json.Marshal(processDoc{
		Name:      p.Name,
		Triggers:  p.Triggers,
		Condition: condition,
		Conducts:  p.Conducts,
	})
}

// UnmarshalJSON decodes a stored rule document. Documents without an
// explicit trigger list fall back to triggers derived from the
// condition tree's device state operands.
func (p *Process) UnmarshalJSON(data []byte) error {
	var doc processDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("models: process document: %w", err)
	}
	condition, err := UnmarshalComparable(doc.Condition)
	if err != nil {
		return fmt.Errorf("models: process %q: %w", doc.Name, err)
	}
	triggers := doc.Triggers
	if len(triggers) == 0 {
		triggers = DeriveTriggers(condition)
	}
	*p = Process{
		Name:      doc.Name,
		Triggers:  triggers,
		Condition: condition,
		Conducts:  doc.Conducts,
	}
	return nil
}
