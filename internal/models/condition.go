package models

import (
	"encoding/json"
	"fmt"

	"homehub/internal/values"
)

// ComparisonOperator compares two resolved condition values.
type ComparisonOperator string

const (
	OpEqual          ComparisonOperator = "eq"
	OpNotEqual       ComparisonOperator = "neq"
	OpGreaterThan    ComparisonOperator = "gt"
	OpGreaterOrEqual ComparisonOperator = "gte"
	OpLessThan       ComparisonOperator = "lt"
	OpLessOrEqual    ComparisonOperator = "lte"
)

// LogicalOperator combines the results of a group's operands.
type LogicalOperator string

const (
	OpAnd LogicalOperator = "and"
	OpOr  LogicalOperator = "or"
)

// Comparable is a node of a condition tree: either a ValueComparison
// leaf or a BooleanGroup. The set is closed; the evaluator rejects
// anything else.
type Comparable interface {
	isComparable()
}

// ConditionValue is a comparison operand: a static value or a live
// device state reference. The set is closed.
type ConditionValue interface {
	isConditionValue()
}

// StaticValue is a constant operand.
type StaticValue struct {
	Value values.Value `json:"value"`
}

// DeviceStateValue references the live state of a device contact. A nil
// target always resolves to null.
type DeviceStateValue struct {
	Target *DeviceTarget `json:"target"`
}

// ValueComparison compares two operands with an operator.
type ValueComparison struct {
	Left     ConditionValue     `json:"left"`
	Operator ComparisonOperator `json:"op"`
	Right    ConditionValue     `json:"right"`
}

// BooleanGroup combines operands with a logical operator. An empty
// "and" group is true, an empty "or" group is false.
type BooleanGroup struct {
	Operator LogicalOperator `json:"op"`
	Operands []Comparable    `json:"operands"`
}

func (StaticValue) isConditionValue()      {}
func (DeviceStateValue) isConditionValue() {}
func (ValueComparison) isComparable()      {}
func (BooleanGroup) isComparable()         {}

// Condition documents are stored as JSON with a "type" discriminator on
// every polymorphic node.
const (
	typeComparison  = "comparison"
	typeGroup       = "group"
	typeStatic      = "static"
	typeDeviceState = "deviceState"
)

type comparisonDoc struct {
	Type     string             `json:"type"`
	Left     json.RawMessage    `json:"left"`
	Operator ComparisonOperator `json:"op"`
	Right    json.RawMessage    `json:"right"`
}

type groupDoc struct {
	Type     string            `json:"type"`
	Operator LogicalOperator   `json:"op"`
	Operands []json.RawMessage `json:"operands"`
}

type valueDoc struct {
	Type   string        `json:"type"`
	Value  values.Value  `json:"value,omitempty"`
	Target *DeviceTarget `json:"target,omitempty"`
}

// MarshalComparable encodes a condition tree with type discriminators.
func MarshalComparable(c Comparable) ([]byte, error) {
	switch n := c.(type) {
	case ValueComparison:
		left, err := marshalConditionValue(n.Left)
		if err != nil {
			return nil, err
		}
		right, err := marshalConditionValue(n.Right)
		if err != nil {
			return nil, err
		}
		return json.Marshal(comparisonDoc{
			Type:     typeComparison,
			Left:     left,
			Operator: n.Operator,
			Right:    right,
		})
	case BooleanGroup:
		operands := make([]json.RawMessage, 0, len(n.Operands))
		for _, op := range n.Operands {
			raw, err := MarshalComparable(op)
			if err != nil {
				return nil, err
			}
			operands = append(operands, raw)
		}
		return json.Marshal(groupDoc{Type: typeGroup, Operator: n.Operator, Operands: operands})
	default:
		return nil, fmt.Errorf("models: cannot marshal condition node %T", c)
	}
}

func marshalConditionValue(v ConditionValue) (json.RawMessage, error) {
	switch n := v.(type) {
	case StaticValue:
		return json.Marshal(valueDoc{Type: typeStatic, Value: n.Value})
	case DeviceStateValue:
		return json.Marshal(valueDoc{Type: typeDeviceState, Target: n.Target})
	default:
		return nil, fmt.Errorf("models: cannot marshal condition value %T", v)
	}
}

// UnmarshalComparable decodes a condition tree encoded by
// MarshalComparable.
func UnmarshalComparable(data []byte) (Comparable, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("models: condition node: %w", err)
	}
	switch head.Type {
	case typeComparison:
		var doc comparisonDoc
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("models: comparison node: %w", err)
		}
		left, err := unmarshalConditionValue(doc.Left)
		if err != nil {
			return nil, err
		}
		right, err := unmarshalConditionValue(doc.Right)
		if err != nil {
			return nil, err
		}
		return ValueComparison{Left: left, Operator: doc.Operator, Right: right}, nil
	case typeGroup:
		var doc groupDoc
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("models: group node: %w", err)
		}
		operands := make([]Comparable, 0, len(doc.Operands))
		for _, raw := range doc.Operands {
			op, err := UnmarshalComparable(raw)
			if err != nil {
				return nil, err
			}
			operands = append(operands, op)
		}
		return BooleanGroup{Operator: doc.Operator, Operands: operands}, nil
	default:
		return nil, fmt.Errorf("models: unknown condition node type %q", head.Type)
	}
}

func unmarshalConditionValue(data []byte) (ConditionValue, error) {
	var doc valueDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("models: condition value: %w", err)
	}
	switch doc.Type {
	case typeStatic:
		return StaticValue{Value: doc.Value}, nil
	case typeDeviceState:
		return DeviceStateValue{Target: doc.Target}, nil
	default:
		return nil, fmt.Errorf("models: unknown condition value type %q", doc.Type)
	}
}

// DeriveTriggers collects the device targets referenced by DeviceState
// operands of a condition tree. Used for rule documents that carry no
// explicit trigger list.
func DeriveTriggers(c Comparable) []DeviceTarget {
	seen := make(map[DeviceTarget]bool)
	var out []DeviceTarget
	var walk func(Comparable)
	collect := func(v ConditionValue) {
		ds, ok := v.(DeviceStateValue)
		if !ok || ds.Target == nil || seen[*ds.Target] {
			return
		}
		seen[*ds.Target] = true
		out = append(out, *ds.Target)
	}
	walk = func(node Comparable) {
		switch n := node.(type) {
		case ValueComparison:
			collect(n.Left)
			collect(n.Right)
		case BooleanGroup:
			for _, op := range n.Operands {
				walk(op)
			}
		}
	}
	walk(c)
	return out
}
