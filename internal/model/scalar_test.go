package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestScalar_JSONRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		in   string
	}{
		{"integer", `100`},
		{"decimal", `1.6`},
		{"string", `"PVC-U"`},
		{"numeric string stays string", `"DN100"`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var s Scalar
			require.NoError(t, json.Unmarshal([]byte(tc.in), &s))
			out, err := json.Marshal(s)
			require.NoError(t, err)
			assert.Equal(t, tc.in, string(out))
		})
	}
}

func TestScalar_YAMLRoundTrip(t *testing.T) {
	var s Scalar
	require.NoError(t, yaml.Unmarshal([]byte(`1.6`), &s))
	assert.True(t, s.IsNum)
	assert.Equal(t, 1.6, s.Num)

	// Quoted numerics stay strings.
	require.NoError(t, yaml.Unmarshal([]byte(`"1.6"`), &s))
	assert.False(t, s.IsNum)
	assert.Equal(t, "1.6", s.Str)
}

func TestScalar_String(t *testing.T) {
	assert.Equal(t, "100", NumScalar(100).String())
	assert.Equal(t, "5.3", NumScalar(5.3).String())
	assert.Equal(t, "S5", StrScalar("S5").String())
}

func TestScalar_Float(t *testing.T) {
	f, ok := NumScalar(1.6).Float()
	require.True(t, ok)
	assert.Equal(t, 1.6, f)

	// String scalars that parse as numbers count as numeric.
	f, ok = StrScalar("1.6").Float()
	require.True(t, ok)
	assert.Equal(t, 1.6, f)

	_, ok = StrScalar("S5").Float()
	assert.False(t, ok)
}

func TestScalar_Equal(t *testing.T) {
	assert.True(t, NumScalar(100).Equal(NumScalar(100)))
	assert.True(t, StrScalar("S5").Equal(StrScalar("S5")))
	assert.False(t, NumScalar(100).Equal(StrScalar("100")))
	assert.False(t, NumScalar(100).Equal(NumScalar(110)))
}

func TestScalar_IsZero(t *testing.T) {
	assert.True(t, Scalar{}.IsZero())
	assert.False(t, NumScalar(0).IsZero())
	assert.False(t, StrScalar("x").IsZero())
}
