package values

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Kind enumerates the closed set of value kinds a device contact can carry.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
)

// Value is a device contact value. The zero Value is null.
type Value struct {
	kind Kind
	b    bool
	n    float64
	s    string
}

// Null is the absent/unset value.
var Null = Value{}

// Bool wraps a boolean value.
func Bool(b bool) Value {
	return Value{kind: KindBool, b: b}
}

// Number wraps a numeric value.
func Number(n float64) Value {
	return Value{kind: KindNumber, n: n}
}

// String wraps a string value.
func String(s string) Value {
	return Value{kind: KindString, s: s}
}

// Parse coerces a raw wire value into a typed Value. Numeric parse is
// attempted first, then boolean ("true"/"false", case-insensitive),
// otherwise the value stays a string. The order matters: "1" becomes
// the number 1, never the boolean true.
func Parse(raw any) Value {
	switch v := raw.(type) {
	case nil:
		return Null
	case Value:
		return v
	case bool:
		return Bool(v)
	case float64:
		return Number(v)
	case float32:
		return Number(float64(v))
	case int:
		return Number(float64(v))
	case int64:
		return Number(float64(v))
	case json.Number:
		return parseString(v.String())
	case string:
		return parseString(v)
	case []byte:
		return parseString(string(v))
	default:
		return parseString(fmt.Sprint(raw))
	}
}

func parseString(s string) Value {
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return Number(n)
	}
	if strings.EqualFold(s, "true") {
		return Bool(true)
	}
	if strings.EqualFold(s, "false") {
		return Bool(false)
	}
	return String(s)
}

// Kind returns the value kind.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether the value is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsBool returns the boolean value, if the value is a boolean.
func (v Value) AsBool() (bool, bool) {
	return v.b, v.kind == KindBool
}

// AsNumber returns the numeric value, if the value is a number.
func (v Value) AsNumber() (float64, bool) {
	return v.n, v.kind == KindNumber
}

// AsString returns the string value, if the value is a string.
func (v Value) AsString() (string, bool) {
	return v.s, v.kind == KindString
}

// Numeric returns the value as a float64 when the value is a number or
// a string that parses as one. Used by ordering comparisons.
func (v Value) Numeric() (float64, bool) {
	switch v.kind {
	case KindNumber:
		return v.n, true
	case KindString:
		n, err := strconv.ParseFloat(v.s, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

// String formats the value for logs and wire payloads.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindNumber:
		return strconv.FormatFloat(v.n, 'f', -1, 64)
	default:
		return v.s
	}
}

// Native returns the value as its native Go representation.
func (v Value) Native() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		return v.n
	case KindString:
		return v.s
	default:
		return nil
	}
}

// Equal compares two values by value. Strings are normalized against
// the other operand's kind where possible, so Number(21) equals
// String("21"). Null equals only null.
func Equal(a, b Value) bool {
	if a.kind == KindNull || b.kind == KindNull {
		return a.kind == b.kind
	}
	if a.kind != b.kind {
		if a.kind == KindString {
			a = parseString(a.s)
		}
		if b.kind == KindString {
			b = parseString(b.s)
		}
		if a.kind != b.kind {
			return false
		}
	}
	switch a.kind {
	case KindBool:
		return a.b == b.b
	case KindNumber:
		return a.n == b.n
	default:
		return a.s == b.s
	}
}

// MarshalJSON encodes the value as its native JSON scalar.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Native())
}

// UnmarshalJSON decodes any JSON scalar; composite values are rejected.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch t := raw.(type) {
	case nil:
		*v = Null
	case bool:
		*v = Bool(t)
	case float64:
		*v = Number(t)
	case string:
		*v = String(t)
	default:
		return fmt.Errorf("values: unsupported JSON value %T", raw)
	}
	return nil
}
