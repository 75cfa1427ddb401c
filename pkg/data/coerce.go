package data

import (
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Coerce converts v to the target schema.
//
// The conversion table is total: each (source, target) pair either succeeds
// or returns a *DataError.
//
//   - identity and null sources always succeed (null becomes a typed null)
//   - numeric widening INT16 -> INT32 -> INT64 -> FLOAT32 -> FLOAT64
//   - numeric narrowing only when the value fits the target (integral for
//     integer targets, in range for FLOAT32)
//   - STRING parses into any primitive and any primitive formats to STRING
//   - STRING <-> BYTES through UTF-8
//   - ARRAY and MAP coerce element-wise, STRUCT passes through
//   - BOOLEAN <-> numeric and composite <-> scalar are undefined
func Coerce(v TypedValue, target Schema) (TypedValue, error) {
	if target == nil {
		target = NoneSchema()
	}
	src, dst := v.Type(), target.Type()
	if v.IsNull() {
		return Null(target), nil
	}
	if dst == TypeNull {
		return TypedValue{}, dataErrorf("cannot coerce %s to NULL", src)
	}
	switch {
	case src.IsPrimitive() && dst.IsPrimitive():
		if src == dst {
			return TypedValue{target, v.value}, nil
		}
		out, err := coercePrimitive(v.value, src, dst)
		if err != nil {
			return TypedValue{}, err
		}
		return TypedValue{target, out}, nil
	case src == TypeArray && dst == TypeArray:
		return coerceArray(v, target.(*ArraySchema))
	case src == TypeMap && dst == TypeMap:
		return coerceMap(v, target.(*MapSchema))
	case src == TypeStruct && dst == TypeStruct:
		return v, nil
	}
	return TypedValue{}, dataErrorf("cannot coerce %s to %s", src, dst)
}

func coerceArray(v TypedValue, target *ArraySchema) (TypedValue, error) {
	items := v.value.([]TypedValue)
	elem := target.Elem()
	if elem.Type() == TypeNull || elem.Type() == v.Schema().(*ArraySchema).Elem().Type() {
		return v, nil
	}
	out := make([]TypedValue, len(items))
	for i, it := range items {
		c, err := Coerce(it, elem)
		if err != nil {
			return TypedValue{}, &DataError{Msg: "array element " + strconv.Itoa(i), Err: err}
		}
		out[i] = c
	}
	return TypedValue{target, out}, nil
}

func coerceMap(v TypedValue, target *MapSchema) (TypedValue, error) {
	entries := v.value.(map[string]TypedValue)
	want := target.Value()
	if want.Type() == TypeNull || want.Type() == v.Schema().(*MapSchema).Value().Type() {
		return v, nil
	}
	out := make(map[string]TypedValue, len(entries))
	for k, it := range entries {
		c, err := Coerce(it, want)
		if err != nil {
			return TypedValue{}, &DataError{Msg: "map entry " + strconv.Quote(k), Err: err}
		}
		out[k] = c
	}
	return TypedValue{target, out}, nil
}

func coercePrimitive(val any, src, dst Type) (any, error) {
	switch dst {
	case TypeString:
		return formatPrimitive(val, src)
	case TypeBytes:
		if s, ok := val.(string); ok {
			return []byte(s), nil
		}
	case TypeBoolean:
		if s, ok := val.(string); ok {
			b, ok := parseBool(s)
			if !ok {
				return nil, dataErrorf("cannot parse %q as BOOLEAN", s)
			}
			return b, nil
		}
	case TypeInt16, TypeInt32, TypeInt64, TypeFloat32, TypeFloat64:
		if s, ok := val.(string); ok {
			return parseNumber(strings.TrimSpace(s), dst)
		}
		if src.IsNumber() {
			return convertNumber(val, src, dst)
		}
	}
	return nil, dataErrorf("cannot coerce %s to %s", src, dst)
}

func formatPrimitive(val any, src Type) (any, error) {
	switch x := val.(type) {
	case string:
		return x, nil
	case bool:
		return strconv.FormatBool(x), nil
	case []byte:
		if !utf8.Valid(x) {
			return nil, dataErrorf("BYTES value is not valid UTF-8")
		}
		return string(x), nil
	case int16:
		return strconv.FormatInt(int64(x), 10), nil
	case int32:
		return strconv.FormatInt(int64(x), 10), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32), nil
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64), nil
	}
	return nil, dataErrorf("cannot format %s as STRING", src)
}

// parseBool accepts the usual spellings case-insensitively.
func parseBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "t", "true", "yes", "y", "on":
		return true, true
	case "0", "f", "false", "no", "n", "off":
		return false, true
	}
	return false, false
}

func parseNumber(s string, dst Type) (any, error) {
	switch dst {
	case TypeFloat32:
		f, err := strconv.ParseFloat(s, 32)
		if err != nil {
			return nil, &DataError{Msg: "cannot parse " + strconv.Quote(s) + " as FLOAT32", Err: err}
		}
		return float32(f), nil
	case TypeFloat64:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, &DataError{Msg: "cannot parse " + strconv.Quote(s) + " as FLOAT64", Err: err}
		}
		return f, nil
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return convertNumber(i, TypeInt64, dst)
	}
	// "42.0" style integral floats are accepted for integer targets.
	if strings.IndexByte(s, '.') >= 0 {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return convertNumber(f, TypeFloat64, dst)
		}
	}
	return nil, dataErrorf("cannot parse %q as %s", s, dst)
}

func convertNumber(val any, src, dst Type) (any, error) {
	var (
		i     int64
		f     float64
		isInt bool
	)
	switch x := val.(type) {
	case int16:
		i, isInt = int64(x), true
	case int32:
		i, isInt = int64(x), true
	case int64:
		i, isInt = x, true
	case float32:
		f = float64(x)
	case float64:
		f = x
	default:
		return nil, dataErrorf("cannot coerce %s to %s", src, dst)
	}

	switch dst {
	case TypeFloat64:
		if isInt {
			return float64(i), nil
		}
		return f, nil
	case TypeFloat32:
		if isInt {
			return float32(i), nil
		}
		if !math.IsInf(f, 0) && !math.IsNaN(f) && math.Abs(f) > math.MaxFloat32 {
			return nil, dataErrorf("%v overflows FLOAT32", f)
		}
		return float32(f), nil
	}

	if !isInt {
		if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
			return nil, dataErrorf("%v is not an integral value for %s", f, dst)
		}
		if f < -9.223372036854775808e18 || f >= 9.223372036854775808e18 {
			return nil, dataErrorf("%v overflows %s", f, dst)
		}
		i = int64(f)
	}
	switch dst {
	case TypeInt16:
		if i < math.MinInt16 || i > math.MaxInt16 {
			return nil, dataErrorf("%d overflows INT16", i)
		}
		return int16(i), nil
	case TypeInt32:
		if i < math.MinInt32 || i > math.MaxInt32 {
			return nil, dataErrorf("%d overflows INT32", i)
		}
		return int32(i), nil
	case TypeInt64:
		return i, nil
	}
	return nil, dataErrorf("cannot coerce %s to %s", src, dst)
}

// Widens reports whether src converts to dst along the widening path
// without a range check.
func Widens(src, dst Type) bool {
	return src.rank() >= 0 && dst.rank() >= 0 && src.rank() <= dst.rank()
}
