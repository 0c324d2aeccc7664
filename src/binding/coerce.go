package binding

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/spf13/cast"

	"github.com/RAIL-Suite/RAIL-sub001/src/json"
	"github.com/RAIL-Suite/RAIL-sub001/src/protocol"
)

// coerce converts a decoded JSON value to T. Primitive targets go through
// cast so "5", 5 and 5.0 all bind to an int; everything else is re-encoded
// and decoded into T.
func coerce[T any](v any) (T, error) {
	var zero T
	if t, ok := v.(T); ok {
		return t, nil
	}
	var (
		out any
		err error
	)
	switch any(zero).(type) {
	case string:
		out, err = cast.ToStringE(v)
	case bool:
		out, err = cast.ToBoolE(v)
	case int:
		out, err = toSigned[int](v)
	case int8:
		out, err = toSigned[int8](v)
	case int16:
		out, err = toSigned[int16](v)
	case int32:
		out, err = toSigned[int32](v)
	case int64:
		out, err = toSigned[int64](v)
	case uint:
		out, err = toUnsigned[uint](v)
	case uint8:
		out, err = toUnsigned[uint8](v)
	case uint16:
		out, err = toUnsigned[uint16](v)
	case uint32:
		out, err = toUnsigned[uint32](v)
	case uint64:
		out, err = toUnsigned[uint64](v)
	case float32:
		out, err = cast.ToFloat32E(v)
	case float64:
		out, err = cast.ToFloat64E(v)
	default:
		if v == nil {
			return zero, nil
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return zero, err
		}
		if err := json.Unmarshal(raw, &zero); err != nil {
			return zero, err
		}
		return zero, nil
	}
	if err != nil {
		return zero, err
	}
	return out.(T), nil
}

// toSigned reads v as a whole number that fits in T. Fractions and
// out-of-range values are errors, never truncated.
func toSigned[T int | int8 | int16 | int32 | int64](v any) (T, error) {
	var n int64
	var err error
	switch x := v.(type) {
	case float64:
		n, err = floatToInt64(x)
	case float32:
		n, err = floatToInt64(float64(x))
	case uint64:
		if x > math.MaxInt64 {
			return 0, fmt.Errorf("%d overflows %s", x, typeName[T]())
		}
		n = int64(x)
	case uint:
		if uint64(x) > math.MaxInt64 {
			return 0, fmt.Errorf("%d overflows %s", x, typeName[T]())
		}
		n = int64(x)
	default:
		n, err = cast.ToInt64E(v)
	}
	if err != nil {
		return 0, err
	}
	if int64(T(n)) != n {
		return 0, fmt.Errorf("%d overflows %s", n, typeName[T]())
	}
	return T(n), nil
}

// toUnsigned is toSigned for unsigned targets; negative values are errors.
func toUnsigned[T uint | uint8 | uint16 | uint32 | uint64](v any) (T, error) {
	var n uint64
	var err error
	switch x := v.(type) {
	case float64:
		n, err = floatToUint64(x)
	case float32:
		n, err = floatToUint64(float64(x))
	default:
		n, err = cast.ToUint64E(v)
	}
	if err != nil {
		return 0, err
	}
	if uint64(T(n)) != n {
		return 0, fmt.Errorf("%d overflows %s", n, typeName[T]())
	}
	return T(n), nil
}

func floatToInt64(f float64) (int64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, fmt.Errorf("%v is not a whole number", f)
	}
	if f < math.MinInt64 || f >= -math.MinInt64 {
		return 0, fmt.Errorf("%v overflows int64", f)
	}
	return int64(f), nil
}

func floatToUint64(f float64) (uint64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, fmt.Errorf("%v is not a whole number", f)
	}
	if f < 0 {
		return 0, fmt.Errorf("%v is negative", f)
	}
	if f >= math.MaxUint64 {
		return 0, fmt.Errorf("%v overflows uint64", f)
	}
	return uint64(f), nil
}

func arg[T any](params []ParamSpec, args []any, i int) (T, error) {
	v, err := coerce[T](args[i])
	if err != nil {
		return v, protocol.Wrap(protocol.KindArgumentError, err, "argument %q: cannot convert %s to %s",
			params[i].Name, describeValue(args[i]), typeName[T]())
	}
	return v, nil
}

func receiver[R any](method string, v any) (R, error) {
	r, ok := v.(R)
	if !ok {
		return r, protocol.Errorf(protocol.KindInvocationError, "%s: instance is %T, not %s", method, v, typeName[R]())
	}
	return r, nil
}

// bindArgs lays the JSON arguments out in declaration order. Arguments may be
// a named object (keys are parameter names, or arg0..argN), a positional
// array, or a single scalar for a one-parameter method.
func bindArgs(params []ParamSpec, raw json.RawMessage) ([]any, error) {
	var decoded any
	if trimmed := strings.TrimSpace(string(raw)); trimmed != "" {
		if err := json.DecodeNumbers([]byte(trimmed), &decoded); err != nil {
			return nil, protocol.Wrap(protocol.KindArgumentError, err, "arguments are not valid JSON")
		}
	}
	decoded = normalizeNumbers(decoded)

	values := make([]any, len(params))
	present := make([]bool, len(params))

	switch a := decoded.(type) {
	case nil:
	case map[string]any:
		for i, p := range params {
			if v, ok := a[p.Name]; ok && v != nil {
				values[i], present[i] = v, true
				continue
			}
			if v, ok := a[fmt.Sprintf("arg%d", i)]; ok && v != nil {
				values[i], present[i] = v, true
			}
		}
	case []any:
		if len(a) > len(params) {
			return nil, protocol.Errorf(protocol.KindArgumentError, "too many arguments: got %d, want at most %d", len(a), len(params))
		}
		for i, v := range a {
			if v != nil {
				values[i], present[i] = v, true
			}
		}
	default:
		if len(params) != 1 {
			return nil, protocol.Errorf(protocol.KindArgumentError, "arguments must be an object or an array")
		}
		values[0], present[0] = a, true
	}

	for i, p := range params {
		if present[i] {
			continue
		}
		if p.Required {
			return nil, protocol.Errorf(protocol.KindArgumentError, "missing required argument %q", p.Name)
		}
		values[i] = p.Default
	}
	return values, nil
}

// normalizeNumbers replaces json.Number literals with int64 when integral,
// uint64 when integral but above the int64 range, and float64 otherwise.
func normalizeNumbers(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if u, err := strconv.ParseUint(t.String(), 10, 64); err == nil {
			return u
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case map[string]any:
		for k, e := range t {
			t[k] = normalizeNumbers(e)
		}
		return t
	case []any:
		for i, e := range t {
			t[i] = normalizeNumbers(e)
		}
		return t
	default:
		return v
	}
}

func describeValue(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return fmt.Sprintf("%q", v)
	case map[string]any:
		return "object"
	case []any:
		return "array"
	default:
		return fmt.Sprintf("%v", v)
	}
}
