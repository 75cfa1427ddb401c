package data

import (
	"bytes"
	"encoding/json"
	"sort"
)

// MarshalJSON encodes the struct as a JSON object with fields in insertion
// order.
func (s *TypedStruct) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range s.schema.fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		b, err := encodeJSON(s.values[f.Name])
		if err != nil {
			return nil, err
		}
		buf.Write(b)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalJSON encodes the payload of v.
func (v TypedValue) MarshalJSON() ([]byte, error) { return encodeJSON(v) }

func encodeJSON(v TypedValue) ([]byte, error) {
	if v.IsNull() {
		return []byte("null"), nil
	}
	return VisitValue[[]byte](v, jsonMapper{})
}

// jsonMapper renders values as JSON. BYTES use the encoding/json base64 form.
type jsonMapper struct{}

func (jsonMapper) MapSimple(_ *SimpleSchema, v any) ([]byte, error) {
	if v == nil {
		return []byte("null"), nil
	}
	return json.Marshal(v)
}

func (jsonMapper) MapStruct(_ *StructSchema, v *TypedStruct) ([]byte, error) {
	if v == nil {
		return []byte("null"), nil
	}
	return v.MarshalJSON()
}

func (jsonMapper) MapArray(_ *ArraySchema, items []TypedValue) ([]byte, error) {
	if items == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, it := range items {
		if i > 0 {
			buf.WriteByte(',')
		}
		b, err := encodeJSON(it)
		if err != nil {
			return nil, err
		}
		buf.Write(b)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

func (jsonMapper) MapMap(_ *MapSchema, entries map[string]TypedValue) ([]byte, error) {
	if entries == nil {
		return []byte("null"), nil
	}
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		b, err := encodeJSON(entries[k])
		if err != nil {
			return nil, err
		}
		buf.Write(b)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// ToNative converts v to plain Go values: primitives as-is, arrays as []any,
// maps and structs as map[string]any.
func ToNative(v TypedValue) any {
	if v.IsNull() {
		return nil
	}
	out, err := VisitValue[any](v, nativeMapper{})
	if err != nil {
		return nil
	}
	return out
}

type nativeMapper struct{}

func (nativeMapper) MapSimple(_ *SimpleSchema, v any) (any, error) { return v, nil }

func (nativeMapper) MapStruct(_ *StructSchema, v *TypedStruct) (any, error) {
	if v == nil {
		return nil, nil
	}
	out := make(map[string]any, v.Len())
	for _, f := range v.schema.fields {
		out[f.Name] = ToNative(v.values[f.Name])
	}
	return out, nil
}

func (nativeMapper) MapArray(_ *ArraySchema, items []TypedValue) (any, error) {
	out := make([]any, len(items))
	for i, it := range items {
		out[i] = ToNative(it)
	}
	return out, nil
}

func (nativeMapper) MapMap(_ *MapSchema, entries map[string]TypedValue) (any, error) {
	out := make(map[string]any, len(entries))
	for k, it := range entries {
		out[k] = ToNative(it)
	}
	return out, nil
}
