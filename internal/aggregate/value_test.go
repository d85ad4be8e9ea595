package aggregate

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseValue(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  float64
	}{
		{"integer string", "5", 5},
		{"number", float64(3), 3},
		{"int", 7, 7},
		{"decimal string", "2.5", 2.5},
		{"leading space", "  42", 42},
		{"trailing garbage", "5abc", 5},
		{"leading dot", ".5", 0.5},
		{"trailing dot", "5.", 5},
		{"exponent", "2.5e1x", 25},
		{"incomplete exponent", "1e", 1},
		{"negative", "-3", -3},
		{"infinity", "Infinity", math.Inf(1)},
		{"hex is not parsed", "0x10", 0},
		{"non-numeric", "abc", 0},
		{"empty", "", 0},
		{"sign only", "-", 0},
		{"dot only", ".", 0},
		{"nil", nil, 0},
		{"bool", true, 0},
		{"NaN", math.NaN(), 0},
		{"json number", json.Number("12.5"), 12.5},
		{"map", map[string]any{"a": 1}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseValue(tt.input))
		})
	}
}

func TestIsNumeric(t *testing.T) {
	assert.True(t, IsNumeric("5"))
	assert.True(t, IsNumeric(" 2.5 "))
	assert.True(t, IsNumeric(float64(0)))
	assert.True(t, IsNumeric(3))
	assert.False(t, IsNumeric("5abc"))
	assert.False(t, IsNumeric(""))
	assert.False(t, IsNumeric("   "))
	assert.False(t, IsNumeric(nil))
	assert.False(t, IsNumeric(math.NaN()))
	assert.False(t, IsNumeric(true))
}

func TestIsNumeric_RadixLiterals(t *testing.T) {
	for _, s := range []string{"0x10", "0XfF", "0o17", "0b101", " 0x1a "} {
		assert.True(t, IsNumeric(s), s)
		assert.Zero(t, ParseValue(s), "%s sums as its leading zero", s)
	}
	for _, s := range []string{"0x", "0xg", "0o8", "0b2", "-0x10", "+0x10", "1x10"} {
		assert.False(t, IsNumeric(s), s)
	}
}

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "8", FormatNumber(8))
	assert.Equal(t, "2.5", FormatNumber(2.5))
	assert.Equal(t, "-3", FormatNumber(-3))
	assert.Equal(t, "0", FormatNumber(0))
	a, b := 0.1, 0.2
	assert.Equal(t, "0.30000000000000004", FormatNumber(a+b))
	assert.Equal(t, "1e+21", FormatNumber(1e21))
	assert.Equal(t, "1e-7", FormatNumber(1e-7))
	assert.Equal(t, "Infinity", FormatNumber(math.Inf(1)))
}
