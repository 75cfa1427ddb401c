package data

import (
	"encoding/json"
	"math"
	"sort"
)

// ValueOf infers a TypedValue from a Go value. Nested map[string]any values
// become structs with fields in sorted key order; []any values become arrays
// whose element schema is the one of the first non-null element.
func ValueOf(v any) (TypedValue, error) {
	switch x := v.(type) {
	case nil:
		return None(), nil
	case TypedValue:
		return x, nil
	case *TypedStruct:
		if x == nil {
			return None(), nil
		}
		return Struct(x), nil
	case string:
		return String(x), nil
	case bool:
		return Bool(x), nil
	case []byte:
		if x == nil {
			return None(), nil
		}
		return Bytes(x), nil
	case int8:
		return Int16(int16(x)), nil
	case uint8:
		return Int16(int16(x)), nil
	case int16:
		return Int16(x), nil
	case uint16:
		return Int32(int32(x)), nil
	case int32:
		return Int32(x), nil
	case uint32:
		return Int64(int64(x)), nil
	case int:
		return Int64(int64(x)), nil
	case int64:
		return Int64(x), nil
	case uint:
		if uint64(x) > math.MaxInt64 {
			return TypedValue{}, dataErrorf("%d overflows INT64", x)
		}
		return Int64(int64(x)), nil
	case uint64:
		if x > math.MaxInt64 {
			return TypedValue{}, dataErrorf("%d overflows INT64", x)
		}
		return Int64(int64(x)), nil
	case float32:
		return Float32(x), nil
	case float64:
		return Float64(x), nil
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return Int64(i), nil
		}
		f, err := x.Float64()
		if err != nil {
			return TypedValue{}, &DataError{Msg: "invalid JSON number " + x.String(), Err: err}
		}
		return Float64(f), nil
	case []TypedValue:
		return Array(nil, x)
	case []string:
		items := make([]TypedValue, len(x))
		for i, s := range x {
			items[i] = String(s)
		}
		return Array(StringSchema(), items)
	case []int64:
		items := make([]TypedValue, len(x))
		for i, n := range x {
			items[i] = Int64(n)
		}
		return Array(Int64Schema(), items)
	case []any:
		return arrayOf(x)
	case map[string]TypedValue:
		return Map(nil, x)
	case map[string]string:
		entries := make(map[string]TypedValue, len(x))
		for k, s := range x {
			entries[k] = String(s)
		}
		return Map(StringSchema(), entries)
	case map[string]any:
		st, err := StructOf(x)
		if err != nil {
			return TypedValue{}, err
		}
		return Struct(st), nil
	}
	return TypedValue{}, dataErrorf("unsupported Go type %T", v)
}

func arrayOf(in []any) (TypedValue, error) {
	items := make([]TypedValue, len(in))
	var elem Schema
	for i, raw := range in {
		it, err := ValueOf(raw)
		if err != nil {
			return TypedValue{}, &DataError{Msg: "array element", Err: err}
		}
		if it.IsNull() {
			items[i] = it
			continue
		}
		if elem == nil {
			elem = it.Schema()
		} else if it.Type() != elem.Type() {
			// Mixed element types: widen numbers, otherwise convert to the
			// first element's type.
			if Widens(elem.Type(), it.Type()) {
				elem = it.Schema()
			}
		}
		items[i] = it
	}
	if elem == nil {
		elem = NoneSchema()
	}
	for i, it := range items {
		if it.IsNull() {
			items[i] = Null(elem)
			continue
		}
		c, err := Coerce(it, elem)
		if err != nil {
			return TypedValue{}, &DataError{Msg: "array element", Err: err}
		}
		items[i] = c
	}
	return NewTypedValue(NewArraySchema(elem), items)
}

// StructOf builds a struct from a map. Keys are inserted in sorted order.
func StructOf(m map[string]any) (*TypedStruct, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	st := NewStruct()
	for _, k := range keys {
		if err := st.Put(k, m[k]); err != nil {
			return nil, err
		}
	}
	return st, nil
}
