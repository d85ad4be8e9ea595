package aggregate

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// ParseValue converts a stored field value to a number the way a browser's
// parseFloat(v) || 0 does: strings contribute their longest leading decimal
// literal, anything that is not a number contributes 0.
func ParseValue(v any) float64 {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case int32:
		f = float64(x)
	case json.Number:
		f = parseFloatPrefix(string(x))
	case string:
		f = parseFloatPrefix(x)
	default:
		return 0
	}
	if math.IsNaN(f) || f == 0 {
		return 0
	}
	return f
}

// IsNumeric reports whether v is entirely a number: a non-NaN number, or a
// string that is a complete decimal literal or an unsigned 0x, 0o or 0b
// integer once surrounding space is trimmed. Radix literals count as numbers
// here but ParseValue still reads them as 0.
func IsNumeric(v any) bool {
	switch x := v.(type) {
	case float64:
		return !math.IsNaN(x)
	case float32:
		return !math.IsNaN(float64(x))
	case int, int64, int32:
		return true
	case json.Number:
		return IsNumeric(string(x))
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return false
		}
		return floatPrefixLen(s) == len(s) || isRadixInteger(s)
	}
	return false
}

func isRadixInteger(s string) bool {
	if len(s) < 3 || s[0] != '0' {
		return false
	}
	var base byte
	switch s[1] {
	case 'x', 'X':
		base = 16
	case 'o', 'O':
		base = 8
	case 'b', 'B':
		base = 2
	default:
		return false
	}
	for i := 2; i < len(s); i++ {
		if digitValue(s[i]) >= base {
			return false
		}
	}
	return true
}

func digitValue(c byte) byte {
	switch {
	case isDigit(c):
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	}
	return 255
}

func parseFloatPrefix(s string) float64 {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	n := floatPrefixLen(s)
	if n == 0 {
		return math.NaN()
	}
	f, err := strconv.ParseFloat(s[:n], 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return math.NaN()
	}
	return f
}

// floatPrefixLen returns the length of the longest prefix of s that is a
// decimal literal: [sign] (Infinity | digits [. digits] | . digits) [e [sign] digits].
func floatPrefixLen(s string) int {
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	if strings.HasPrefix(s[i:], "Infinity") {
		return i + len("Infinity")
	}

	digits := 0
	for i < len(s) && isDigit(s[i]) {
		i++
		digits++
	}
	if i < len(s) && s[i] == '.' {
		j := i + 1
		frac := 0
		for j < len(s) && isDigit(s[j]) {
			j++
			frac++
		}
		if digits > 0 || frac > 0 {
			i = j
			digits += frac
		}
	}
	if digits == 0 {
		return 0
	}

	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		j := i + 1
		if j < len(s) && (s[j] == '+' || s[j] == '-') {
			j++
		}
		exp := 0
		for j < len(s) && isDigit(s[j]) {
			j++
			exp++
		}
		if exp > 0 {
			i = j
		}
	}
	return i
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// FormatNumber renders a total the way the host displays numbers:
// integers without a fraction, other values in their shortest form.
func FormatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		return "0"
	}

	abs := math.Abs(f)
	if abs >= 1e21 || abs < 1e-6 {
		s := strconv.FormatFloat(f, 'e', -1, 64)
		// 1e-07 -> 1e-7
		mantissa, exp, _ := strings.Cut(s, "e")
		sign := exp[:1]
		exp = strings.TrimLeft(exp[1:], "0")
		return mantissa + "e" + sign + exp
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
