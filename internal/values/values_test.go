package values

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCoercionOrder(t *testing.T) {
	// Numeric parse wins over boolean: "1" is the number 1, not true.
	v := Parse("1")
	n, ok := v.AsNumber()
	require.True(t, ok)
	assert.Equal(t, 1.0, n)

	v = Parse("21.5")
	n, ok = v.AsNumber()
	require.True(t, ok)
	assert.Equal(t, 21.5, n)

	v = Parse("true")
	b, ok := v.AsBool()
	require.True(t, ok)
	assert.True(t, b)

	v = Parse("FALSE")
	b, ok = v.AsBool()
	require.True(t, ok)
	assert.False(t, b)

	v = Parse("ON")
	s, ok := v.AsString()
	require.True(t, ok)
	assert.Equal(t, "ON", s)
}

func TestParseNativeTypes(t *testing.T) {
	assert.Equal(t, KindNull, Parse(nil).Kind())
	assert.Equal(t, KindBool, Parse(true).Kind())
	assert.Equal(t, KindNumber, Parse(3.14).Kind())
	assert.Equal(t, KindNumber, Parse(42).Kind())
	assert.Equal(t, KindNumber, Parse(json.Number("7")).Kind())
	assert.Equal(t, KindString, Parse([]byte("hello")).Kind())

	// A Value passes through untouched.
	assert.Equal(t, Number(5), Parse(Number(5)))
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(Null, Null))
	assert.False(t, Equal(Null, Number(0)))
	assert.False(t, Equal(Bool(false), Null))

	assert.True(t, Equal(Number(21), Number(21)))
	assert.False(t, Equal(Number(21), Number(21.5)))

	// A stored string normalizes against the other operand's kind.
	assert.True(t, Equal(Number(21), String("21")))
	assert.True(t, Equal(String("true"), Bool(true)))
	assert.False(t, Equal(String("on"), Bool(true)))

	assert.True(t, Equal(String("open"), String("open")))
	assert.False(t, Equal(Bool(true), Number(1)))
}

func TestNumeric(t *testing.T) {
	n, ok := Number(2.5).Numeric()
	require.True(t, ok)
	assert.Equal(t, 2.5, n)

	n, ok = String("2.5").Numeric()
	require.True(t, ok)
	assert.Equal(t, 2.5, n)

	_, ok = String("warm").Numeric()
	assert.False(t, ok)
	_, ok = Bool(true).Numeric()
	assert.False(t, ok)
	_, ok = Null.Numeric()
	assert.False(t, ok)
}

func TestString(t *testing.T) {
	assert.Equal(t, "null", Null.String())
	assert.Equal(t, "true", Bool(true).String())
	assert.Equal(t, "21.5", Number(21.5).String())
	assert.Equal(t, "21", Number(21).String())
	assert.Equal(t, "open", String("open").String())
}

func TestJSONRoundTrip(t *testing.T) {
	for _, v := range []Value{Null, Bool(true), Number(21.5), String("open")} {
		data, err := json.Marshal(v)
		require.NoError(t, err)

		var back Value
		require.NoError(t, json.Unmarshal(data, &back))
		assert.Equal(t, v, back)
	}

	var v Value
	assert.Error(t, json.Unmarshal([]byte(`{"nested":1}`), &v))
	assert.Error(t, json.Unmarshal([]byte(`[1,2]`), &v))
}
