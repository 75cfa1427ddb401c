package data

import (
	"errors"
	"fmt"
)

// TypedStruct is a mutable record of named fields. Field order follows
// insertion order; equality does not depend on it.
//
// A TypedStruct is not safe for concurrent use. A filter stage owns the
// structs it receives and must Clone before emitting a struct more than once.
type TypedStruct struct {
	schema *StructSchema
	values map[string]TypedValue
}

func NewStruct() *TypedStruct {
	return &TypedStruct{
		schema: NewStructSchema(),
		values: make(map[string]TypedValue),
	}
}

// PutValue writes v to field. A new field adopts v's schema. An existing
// field keeps its declared type and v is coerced to it; fields declared NULL
// adopt the schema of the first non-null value written.
func (s *TypedStruct) PutValue(field string, v TypedValue) error {
	if field == "" {
		return dataErrorf("field name must not be empty")
	}
	declared, ok := s.schema.Lookup(field)
	if !ok || declared.Type() == TypeNull {
		s.schema.set(field, v.Schema())
		s.values[field] = v
		return nil
	}
	c, err := Coerce(v, declared)
	if err != nil {
		return fmt.Errorf("put field %q: %w", field, err)
	}
	s.schema.set(field, c.Schema())
	s.values[field] = c
	return nil
}

// Put infers the type of v and writes it with PutValue.
func (s *TypedStruct) Put(field string, v any) error {
	tv, err := ValueOf(v)
	if err != nil {
		return fmt.Errorf("put field %q: %w", field, err)
	}
	return s.PutValue(field, tv)
}

// PutTyped writes v declared as the primitive type t. Values whose Go type
// does not match t are converted through Coerce.
func (s *TypedStruct) PutTyped(field string, t Type, v any) error {
	sc, err := PrimitiveSchema(t)
	if err != nil {
		return fmt.Errorf("put field %q: %w", field, err)
	}
	tv, err := NewTypedValue(sc, v)
	if err != nil {
		inferred, ierr := ValueOf(v)
		if ierr != nil {
			return fmt.Errorf("put field %q: %w", field, ierr)
		}
		if tv, err = Coerce(inferred, sc); err != nil {
			return fmt.Errorf("put field %q: %w", field, err)
		}
	}
	return s.PutValue(field, tv)
}

// Replace writes v to field without coercion, replacing the declared schema.
func (s *TypedStruct) Replace(field string, v TypedValue) {
	s.schema.set(field, v.Schema())
	s.values[field] = v
}

func (s *TypedStruct) PutString(field, v string) error          { return s.PutValue(field, String(v)) }
func (s *TypedStruct) PutBool(field string, v bool) error       { return s.PutValue(field, Bool(v)) }
func (s *TypedStruct) PutBytes(field string, v []byte) error    { return s.PutValue(field, Bytes(v)) }
func (s *TypedStruct) PutInt16(field string, v int16) error     { return s.PutValue(field, Int16(v)) }
func (s *TypedStruct) PutInt32(field string, v int32) error     { return s.PutValue(field, Int32(v)) }
func (s *TypedStruct) PutInt64(field string, v int64) error     { return s.PutValue(field, Int64(v)) }
func (s *TypedStruct) PutFloat32(field string, v float32) error { return s.PutValue(field, Float32(v)) }
func (s *TypedStruct) PutFloat64(field string, v float64) error { return s.PutValue(field, Float64(v)) }
func (s *TypedStruct) PutStruct(field string, v *TypedStruct) error {
	return s.PutValue(field, Struct(v))
}

func (s *TypedStruct) PutArray(field string, elem Schema, items []TypedValue) error {
	v, err := Array(elem, items)
	if err != nil {
		return fmt.Errorf("put field %q: %w", field, err)
	}
	return s.PutValue(field, v)
}

func (s *TypedStruct) PutMap(field string, valueSchema Schema, entries map[string]TypedValue) error {
	v, err := Map(valueSchema, entries)
	if err != nil {
		return fmt.Errorf("put field %q: %w", field, err)
	}
	return s.PutValue(field, v)
}

// Get returns the value of field, or None when the field is absent.
func (s *TypedStruct) Get(field string) TypedValue {
	if v, ok := s.values[field]; ok {
		return v
	}
	return None()
}

// Find returns the value of field or an error wrapping ErrFieldNotFound.
func (s *TypedStruct) Find(field string) (TypedValue, error) {
	if v, ok := s.values[field]; ok {
		return v, nil
	}
	return TypedValue{}, fmt.Errorf("data: %q: %w", field, ErrFieldNotFound)
}

func (s *TypedStruct) GetString(field string) (string, error) {
	v, err := s.Find(field)
	if err != nil {
		return "", err
	}
	return v.AsString()
}

func (s *TypedStruct) GetBool(field string) (bool, error) {
	v, err := s.Find(field)
	if err != nil {
		return false, err
	}
	return v.AsBool()
}

func (s *TypedStruct) GetInt32(field string) (int32, error) {
	v, err := s.Find(field)
	if err != nil {
		return 0, err
	}
	return v.AsInt32()
}

func (s *TypedStruct) GetInt64(field string) (int64, error) {
	v, err := s.Find(field)
	if err != nil {
		return 0, err
	}
	return v.AsInt64()
}

func (s *TypedStruct) GetFloat64(field string) (float64, error) {
	v, err := s.Find(field)
	if err != nil {
		return 0, err
	}
	return v.AsFloat64()
}

func (s *TypedStruct) GetArray(field string) ([]TypedValue, error) {
	v, err := s.Find(field)
	if err != nil {
		return nil, err
	}
	return v.AsArray()
}

func (s *TypedStruct) GetStruct(field string) (*TypedStruct, error) {
	v, err := s.Find(field)
	if err != nil {
		return nil, err
	}
	return v.AsStruct()
}

func (s *TypedStruct) Has(field string) bool {
	_, ok := s.values[field]
	return ok
}

// Remove deletes field and reports whether it was present.
func (s *TypedStruct) Remove(field string) bool {
	if _, ok := s.values[field]; !ok {
		return false
	}
	delete(s.values, field)
	s.schema.remove(field)
	return true
}

// Rename moves field old to name, keeping its position.
func (s *TypedStruct) Rename(old, name string) error {
	v, ok := s.values[old]
	if !ok {
		return fmt.Errorf("data: rename %q: %w", old, ErrFieldNotFound)
	}
	if old == name {
		return nil
	}
	if _, exists := s.values[name]; exists {
		return fmt.Errorf("data: rename %q to %q: %w", old, name, ErrDuplicateField)
	}
	delete(s.values, old)
	s.values[name] = v
	s.schema.rename(old, name)
	return nil
}

// Fields returns the field names in insertion order.
func (s *TypedStruct) Fields() []string {
	out := make([]string, 0, len(s.schema.fields))
	for _, f := range s.schema.fields {
		out = append(out, f.Name)
	}
	return out
}

func (s *TypedStruct) Len() int              { return len(s.values) }
func (s *TypedStruct) Schema() *StructSchema { return s.schema }

// Clone returns a deep copy. Nested structs, arrays, maps and byte slices
// are copied as well.
func (s *TypedStruct) Clone() *TypedStruct {
	out := NewStruct()
	for _, f := range s.schema.fields {
		v := cloneValue(s.values[f.Name])
		out.schema.set(f.Name, v.Schema())
		out.values[f.Name] = v
	}
	return out
}

func cloneValue(v TypedValue) TypedValue {
	switch x := v.value.(type) {
	case *TypedStruct:
		return Struct(x.Clone())
	case []TypedValue:
		items := make([]TypedValue, len(x))
		for i, it := range x {
			items[i] = cloneValue(it)
		}
		return TypedValue{v.schema, items}
	case map[string]TypedValue:
		entries := make(map[string]TypedValue, len(x))
		for k, it := range x {
			entries[k] = cloneValue(it)
		}
		return TypedValue{v.schema, entries}
	case []byte:
		b := make([]byte, len(x))
		copy(b, x)
		return TypedValue{v.schema, b}
	}
	return v
}

// Equal reports whether both structs hold the same fields with equal values,
// regardless of insertion order.
func (s *TypedStruct) Equal(o *TypedStruct) bool {
	if s == nil || o == nil {
		return s == o
	}
	if len(s.values) != len(o.values) {
		return false
	}
	for k, v := range s.values {
		ov, ok := o.values[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}

func (s *TypedStruct) String() string {
	b, err := s.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("TypedStruct(%d fields)", s.Len())
	}
	return string(b)
}

// IsFieldNotFound reports whether err is a missing-field error.
func IsFieldNotFound(err error) bool { return errors.Is(err, ErrFieldNotFound) }
