package client

import (
	"fmt"
	"math"
	"strings"

	"github.com/spf13/cast"
)

// ParamType is the native type a bound value is coerced to.
type ParamType int

const (
	// ParamStr is the default for unknown tags.
	ParamStr ParamType = iota
	ParamNull
	ParamBool
	ParamInt
)

// String returns the type tag.
func (t ParamType) String() string {
	switch t {
	case ParamNull:
		return "null"
	case ParamBool:
		return "bool"
	case ParamInt:
		return "int"
	default:
		return "str"
	}
}

// ParseParamType maps "null", "bool", "int" and "str" to a ParamType.
// Anything else is ParamStr.
func ParseParamType(tag string) ParamType {
	switch strings.ToLower(strings.TrimSpace(tag)) {
	case "null":
		return ParamNull
	case "bool":
		return ParamBool
	case "int":
		return ParamInt
	default:
		return ParamStr
	}
}

// Param is one (name, value, type tag) triple passed to Prepare.
type Param struct {
	Name  string
	Value interface{}
	Type  string
}

// Coerce converts v to the Go value handed to the driver for this type.
// nil stays nil for every type.
func (t ParamType) Coerce(v interface{}) (interface{}, error) {
	if v == nil || t == ParamNull {
		return nil, nil
	}
	if b, ok := v.([]byte); ok {
		v = string(b)
	}

	switch t {
	case ParamBool:
		return coerceBool(v)
	case ParamInt:
		return coerceInt(v)
	default:
		return coerceString(v), nil
	}
}

func coerceBool(v interface{}) (bool, error) {
	if str, ok := v.(string); ok {
		str = strings.TrimSpace(str)
		if str == "" {
			return false, nil
		}
		v = str
	}
	return cast.ToBoolE(v)
}

// coerceInt reads strings as base-10 and rejects fractions and uint64
// overflow, which cast would accept as octal, truncate or wrap.
func coerceInt(v interface{}) (int64, error) {
	switch x := v.(type) {
	case string:
		v = decimalDigits(x)
	case float32:
		if float64(x) != math.Trunc(float64(x)) {
			return 0, fmt.Errorf("%v is not an integer", x)
		}
	case float64:
		if x != math.Trunc(x) || x > math.MaxInt64 || x < math.MinInt64 {
			return 0, fmt.Errorf("%v is not an integer", x)
		}
	case uint:
		if uint64(x) > math.MaxInt64 {
			return 0, fmt.Errorf("%d overflows int64", x)
		}
	case uint64:
		if x > math.MaxInt64 {
			return 0, fmt.Errorf("%d overflows int64", x)
		}
	}
	return cast.ToInt64E(v)
}

// decimalDigits trims blanks and leading zeros so "010" stays ten.
func decimalDigits(s string) string {
	s = strings.TrimSpace(s)
	sign := ""
	if strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
		sign, s = s[:1], s[1:]
	}
	digits := strings.TrimLeft(s, "0")
	if digits == "" && s != "" {
		digits = "0"
	}
	if sign == "+" {
		sign = ""
	}
	return sign + digits
}

// coerceString renders booleans as "1" and "". Values cast cannot convert
// fall back to their default format.
func coerceString(v interface{}) string {
	if b, ok := v.(bool); ok {
		if b {
			return "1"
		}
		return ""
	}
	str, err := cast.ToStringE(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return str
}
