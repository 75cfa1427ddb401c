package data

import (
	"bytes"
	"fmt"
	"unicode/utf8"
)

// TypedValue is an immutable (schema, payload) pair. Payloads use one Go
// representation per Type:
//
//	STRING  string             INT16   int16
//	BOOLEAN bool               INT32   int32
//	BYTES   []byte             INT64   int64
//	FLOAT32 float32            FLOAT64 float64
//	ARRAY   []TypedValue       MAP     map[string]TypedValue
//	STRUCT  *TypedStruct       NULL    nil
//
// A nil payload is a typed null and is valid for every schema.
type TypedValue struct {
	schema Schema
	value  any
}

// NewTypedValue pairs v with s after checking that v uses the payload
// representation of s.Type().
func NewTypedValue(s Schema, v any) (TypedValue, error) {
	if s == nil {
		s = NoneSchema()
	}
	v = normalizeNil(v)
	if v == nil {
		return TypedValue{schema: s}, nil
	}
	ok := false
	switch s.Type() {
	case TypeString:
		_, ok = v.(string)
	case TypeBoolean:
		_, ok = v.(bool)
	case TypeBytes:
		_, ok = v.([]byte)
	case TypeInt16:
		_, ok = v.(int16)
	case TypeInt32:
		_, ok = v.(int32)
	case TypeInt64:
		_, ok = v.(int64)
	case TypeFloat32:
		_, ok = v.(float32)
	case TypeFloat64:
		_, ok = v.(float64)
	case TypeArray:
		var items []TypedValue
		if items, ok = v.([]TypedValue); ok {
			elem := s.(*ArraySchema).Elem().Type()
			for i, it := range items {
				if !it.IsNull() && it.Type() != elem {
					return TypedValue{}, dataErrorf("array element %d is %s, want %s", i, it.Type(), elem)
				}
			}
		}
	case TypeMap:
		var entries map[string]TypedValue
		if entries, ok = v.(map[string]TypedValue); ok {
			want := s.(*MapSchema).Value().Type()
			for k, it := range entries {
				if !it.IsNull() && it.Type() != want {
					return TypedValue{}, dataErrorf("map entry %q is %s, want %s", k, it.Type(), want)
				}
			}
		}
	case TypeStruct:
		_, ok = v.(*TypedStruct)
	case TypeNull:
		ok = false
	}
	if !ok {
		return TypedValue{}, dataErrorf("value of Go type %T does not match schema %s", v, s.Type())
	}
	return TypedValue{schema: s, value: v}, nil
}

func normalizeNil(v any) any {
	switch x := v.(type) {
	case *TypedStruct:
		if x == nil {
			return nil
		}
	case []TypedValue:
		if x == nil {
			return nil
		}
	case map[string]TypedValue:
		if x == nil {
			return nil
		}
	case []byte:
		if x == nil {
			return nil
		}
	}
	return v
}

func String(v string) TypedValue   { return TypedValue{StringSchema(), v} }
func Bool(v bool) TypedValue       { return TypedValue{BooleanSchema(), v} }
func Int16(v int16) TypedValue     { return TypedValue{Int16Schema(), v} }
func Int32(v int32) TypedValue     { return TypedValue{Int32Schema(), v} }
func Int64(v int64) TypedValue     { return TypedValue{Int64Schema(), v} }
func Float32(v float32) TypedValue { return TypedValue{Float32Schema(), v} }
func Float64(v float64) TypedValue { return TypedValue{Float64Schema(), v} }

func Bytes(v []byte) TypedValue {
	if v == nil {
		return Null(BytesSchema())
	}
	return TypedValue{BytesSchema(), v}
}

// Array builds an ARRAY value. When elem is nil the element schema is taken
// from the first non-null item.
func Array(elem Schema, items []TypedValue) (TypedValue, error) {
	if elem == nil {
		for _, it := range items {
			if !it.IsNull() {
				elem = it.Schema()
				break
			}
		}
	}
	if items == nil {
		items = []TypedValue{}
	}
	return NewTypedValue(NewArraySchema(elem), items)
}

// Map builds a MAP value. When valueSchema is nil it is taken from any
// non-null entry.
func Map(valueSchema Schema, entries map[string]TypedValue) (TypedValue, error) {
	if valueSchema == nil {
		for _, it := range entries {
			if !it.IsNull() {
				valueSchema = it.Schema()
				break
			}
		}
	}
	if entries == nil {
		entries = map[string]TypedValue{}
	}
	return NewTypedValue(NewMapSchema(valueSchema), entries)
}

func Struct(s *TypedStruct) TypedValue {
	if s == nil {
		return Null(NewStructSchema())
	}
	return TypedValue{s.schema, s}
}

// Null returns a typed null of schema s.
func Null(s Schema) TypedValue { return TypedValue{schema: s} }

// None returns the value stored for absent fields.
func None() TypedValue { return TypedValue{schema: NoneSchema()} }

func (v TypedValue) Schema() Schema {
	if v.schema == nil {
		return NoneSchema()
	}
	return v.schema
}

func (v TypedValue) Type() Type   { return v.Schema().Type() }
func (v TypedValue) Value() any   { return v.value }
func (v TypedValue) IsNull() bool { return v.value == nil }

// IsNone reports whether v is the absent value.
func (v TypedValue) IsNone() bool { return v.Type() == TypeNull }

func (v TypedValue) String() string {
	if v.IsNull() {
		return "null"
	}
	switch x := v.value.(type) {
	case *TypedStruct:
		return x.String()
	case []byte:
		if utf8.Valid(x) {
			return string(x)
		}
	}
	if s, err := v.AsString(); err == nil {
		return s
	}
	b, err := encodeJSON(v)
	if err != nil {
		return fmt.Sprintf("%v", v.value)
	}
	return string(b)
}

// Len returns the number of elements of an ARRAY or MAP, the number of
// runes of a STRING and the number of bytes of BYTES.
func (v TypedValue) Len() (int, error) {
	switch x := v.value.(type) {
	case []TypedValue:
		return len(x), nil
	case map[string]TypedValue:
		return len(x), nil
	case string:
		return utf8.RuneCountInString(x), nil
	case []byte:
		return len(x), nil
	case nil:
		return 0, nil
	}
	return 0, dataErrorf("length is not defined for %s", v.Type())
}

// Equal reports structural equality. Struct fields are compared regardless
// of insertion order.
func (v TypedValue) Equal(o TypedValue) bool {
	if v.Type() != o.Type() {
		return false
	}
	if v.IsNull() || o.IsNull() {
		return v.IsNull() && o.IsNull()
	}
	switch x := v.value.(type) {
	case []byte:
		return bytes.Equal(x, o.value.([]byte))
	case []TypedValue:
		y := o.value.([]TypedValue)
		if len(x) != len(y) {
			return false
		}
		for i := range x {
			if !x[i].Equal(y[i]) {
				return false
			}
		}
		return true
	case map[string]TypedValue:
		y := o.value.(map[string]TypedValue)
		if len(x) != len(y) {
			return false
		}
		for k, xv := range x {
			yv, ok := y[k]
			if !ok || !xv.Equal(yv) {
				return false
			}
		}
		return true
	case *TypedStruct:
		return x.Equal(o.value.(*TypedStruct))
	}
	return v.value == o.value
}

func (v TypedValue) AsString() (string, error) {
	c, err := Coerce(v, StringSchema())
	if err != nil {
		return "", err
	}
	s, _ := c.value.(string)
	return s, nil
}

func (v TypedValue) AsBool() (bool, error) {
	c, err := Coerce(v, BooleanSchema())
	if err != nil {
		return false, err
	}
	b, _ := c.value.(bool)
	return b, nil
}

func (v TypedValue) AsBytes() ([]byte, error) {
	c, err := Coerce(v, BytesSchema())
	if err != nil {
		return nil, err
	}
	b, _ := c.value.([]byte)
	return b, nil
}

func (v TypedValue) AsInt16() (int16, error) {
	c, err := Coerce(v, Int16Schema())
	if err != nil {
		return 0, err
	}
	n, _ := c.value.(int16)
	return n, nil
}

func (v TypedValue) AsInt32() (int32, error) {
	c, err := Coerce(v, Int32Schema())
	if err != nil {
		return 0, err
	}
	n, _ := c.value.(int32)
	return n, nil
}

func (v TypedValue) AsInt64() (int64, error) {
	c, err := Coerce(v, Int64Schema())
	if err != nil {
		return 0, err
	}
	n, _ := c.value.(int64)
	return n, nil
}

func (v TypedValue) AsFloat32() (float32, error) {
	c, err := Coerce(v, Float32Schema())
	if err != nil {
		return 0, err
	}
	f, _ := c.value.(float32)
	return f, nil
}

func (v TypedValue) AsFloat64() (float64, error) {
	c, err := Coerce(v, Float64Schema())
	if err != nil {
		return 0, err
	}
	f, _ := c.value.(float64)
	return f, nil
}

func (v TypedValue) AsArray() ([]TypedValue, error) {
	if v.Type() != TypeArray {
		return nil, dataErrorf("cannot read %s as ARRAY", v.Type())
	}
	items, _ := v.value.([]TypedValue)
	return items, nil
}

func (v TypedValue) AsMap() (map[string]TypedValue, error) {
	if v.Type() != TypeMap {
		return nil, dataErrorf("cannot read %s as MAP", v.Type())
	}
	entries, _ := v.value.(map[string]TypedValue)
	return entries, nil
}

func (v TypedValue) AsStruct() (*TypedStruct, error) {
	if v.Type() != TypeStruct {
		return nil, dataErrorf("cannot read %s as STRUCT", v.Type())
	}
	s, _ := v.value.(*TypedStruct)
	return s, nil
}
