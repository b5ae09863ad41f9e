package jsontree

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeKeepsKeyOrder(t *testing.T) {
	v, err := Decode([]byte(`{"zeta": 1, "alpha": {"b": true, "a": null}, "mid": ["x"]}`))
	require.NoError(t, err)

	obj, ok := v.(*Object)
	require.True(t, ok)
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, obj.Keys())

	inner, ok := obj.Get("alpha")
	require.True(t, ok)
	assert.Equal(t, []string{"b", "a"}, inner.(*Object).Keys())

	zeta, _ := obj.Get("zeta")
	assert.Equal(t, json.Number("1"), zeta)

	mid, _ := obj.Get("mid")
	assert.Equal(t, []any{"x"}, mid)
}

func TestDecodeScalarsAndArrays(t *testing.T) {
	v, err := Decode([]byte(`["a", 2.5, false, null, []]`))
	require.NoError(t, err)
	assert.Equal(t, []any{"a", json.Number("2.5"), false, nil, []any{}}, v)
}

func TestDecodeDuplicateKeyKeepsFirstPosition(t *testing.T) {
	v, err := Decode([]byte(`{"a": 1, "b": 2, "a": 3}`))
	require.NoError(t, err)

	obj := v.(*Object)
	assert.Equal(t, []string{"a", "b"}, obj.Keys())
	a, _ := obj.Get("a")
	assert.Equal(t, json.Number("3"), a)
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "empty", data: ""},
		{name: "truncated object", data: `{"a": 1`},
		{name: "trailing data", data: `{"a": 1} {"b": 2}`},
		{name: "invalid literal", data: `[nope]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestObjectMarshalRoundTrip(t *testing.T) {
	src := `{"url":"https://x.test/a?b=1&c=2","id":"1","nested":{"z":[1,2],"a":null}}`
	v, err := Decode([]byte(src))
	require.NoError(t, err)

	out, err := Encode(v)
	require.NoError(t, err)
	assert.Equal(t, src, string(out))
}

func TestNilObject(t *testing.T) {
	var o *Object
	assert.Equal(t, 0, o.Len())
	assert.Nil(t, o.Keys())
	_, ok := o.Get("a")
	assert.False(t, ok)

	out, err := o.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, "null", string(out))
}
