package data

import "fmt"

// Schema describes the shape of a TypedValue. The set of implementations is
// closed: *SimpleSchema, *StructSchema, *ArraySchema, *MapSchema and the
// none schema returned by NoneSchema.
type Schema interface {
	Type() Type
	sealed()
}

// SimpleSchema describes a primitive type. There is exactly one instance per
// primitive Type.
type SimpleSchema struct{ t Type }

func (s *SimpleSchema) Type() Type { return s.t }
func (*SimpleSchema) sealed()      {}

var simpleSchemas = map[Type]*SimpleSchema{
	TypeString:  {TypeString},
	TypeBoolean: {TypeBoolean},
	TypeBytes:   {TypeBytes},
	TypeInt16:   {TypeInt16},
	TypeInt32:   {TypeInt32},
	TypeInt64:   {TypeInt64},
	TypeFloat32: {TypeFloat32},
	TypeFloat64: {TypeFloat64},
}

func StringSchema() *SimpleSchema  { return simpleSchemas[TypeString] }
func BooleanSchema() *SimpleSchema { return simpleSchemas[TypeBoolean] }
func BytesSchema() *SimpleSchema   { return simpleSchemas[TypeBytes] }
func Int16Schema() *SimpleSchema   { return simpleSchemas[TypeInt16] }
func Int32Schema() *SimpleSchema   { return simpleSchemas[TypeInt32] }
func Int64Schema() *SimpleSchema   { return simpleSchemas[TypeInt64] }
func Float32Schema() *SimpleSchema { return simpleSchemas[TypeFloat32] }
func Float64Schema() *SimpleSchema { return simpleSchemas[TypeFloat64] }

// PrimitiveSchema returns the shared schema for a primitive type.
func PrimitiveSchema(t Type) (*SimpleSchema, error) {
	s, ok := simpleSchemas[t]
	if !ok {
		return nil, fmt.Errorf("data: %s is not a primitive type: %w", t, ErrUnsupportedOperation)
	}
	return s, nil
}

type noneSchema struct{}

func (noneSchema) Type() Type { return TypeNull }
func (noneSchema) sealed()    {}

// NoneSchema is the schema of absent values. It cannot be visited.
func NoneSchema() Schema { return noneSchema{} }

// ArraySchema describes a homogeneous list.
type ArraySchema struct{ elem Schema }

func NewArraySchema(elem Schema) *ArraySchema {
	if elem == nil {
		elem = NoneSchema()
	}
	return &ArraySchema{elem: elem}
}

func (*ArraySchema) Type() Type     { return TypeArray }
func (*ArraySchema) sealed()        {}
func (s *ArraySchema) Elem() Schema { return s.elem }

// MapSchema describes a string-keyed map with homogeneous values.
type MapSchema struct{ value Schema }

func NewMapSchema(value Schema) *MapSchema {
	if value == nil {
		value = NoneSchema()
	}
	return &MapSchema{value: value}
}

func (*MapSchema) Type() Type      { return TypeMap }
func (*MapSchema) sealed()         {}
func (s *MapSchema) Value() Schema { return s.value }

// FieldSchema is one named entry of a StructSchema.
type FieldSchema struct {
	Name   string
	Schema Schema
}

// StructSchema is an ordered list of named fields.
type StructSchema struct {
	fields []FieldSchema
	index  map[string]int
}

func NewStructSchema() *StructSchema {
	return &StructSchema{index: make(map[string]int)}
}

func (*StructSchema) Type() Type { return TypeStruct }
func (*StructSchema) sealed()    {}

// Field declares a new field. It fails with ErrDuplicateField if name is
// already declared.
func (s *StructSchema) Field(name string, fs Schema) error {
	if _, ok := s.index[name]; ok {
		return fmt.Errorf("data: field %q: %w", name, ErrDuplicateField)
	}
	s.set(name, fs)
	return nil
}

// MergeField declares name or merges fs into the existing declaration.
func (s *StructSchema) MergeField(name string, fs Schema) error {
	cur, ok := s.Lookup(name)
	if !ok {
		s.set(name, fs)
		return nil
	}
	merged, err := mergeSchema(name, cur, fs)
	if err != nil {
		return err
	}
	s.set(name, merged)
	return nil
}

// Lookup returns the schema declared for name.
func (s *StructSchema) Lookup(name string) (Schema, bool) {
	i, ok := s.index[name]
	if !ok {
		return nil, false
	}
	return s.fields[i].Schema, true
}

// Fields returns the declared fields in insertion order.
func (s *StructSchema) Fields() []FieldSchema {
	out := make([]FieldSchema, len(s.fields))
	copy(out, s.fields)
	return out
}

func (s *StructSchema) Len() int { return len(s.fields) }

func (s *StructSchema) set(name string, fs Schema) {
	if fs == nil {
		fs = NoneSchema()
	}
	if i, ok := s.index[name]; ok {
		s.fields[i].Schema = fs
		return
	}
	s.index[name] = len(s.fields)
	s.fields = append(s.fields, FieldSchema{Name: name, Schema: fs})
}

func (s *StructSchema) remove(name string) {
	i, ok := s.index[name]
	if !ok {
		return
	}
	s.fields = append(s.fields[:i], s.fields[i+1:]...)
	delete(s.index, name)
	for j := i; j < len(s.fields); j++ {
		s.index[s.fields[j].Name] = j
	}
}

func (s *StructSchema) rename(old, name string) {
	i, ok := s.index[old]
	if !ok {
		return
	}
	delete(s.index, old)
	s.fields[i].Name = name
	s.index[name] = i
}

// MergeStructSchemas returns a new schema holding a's fields in order followed
// by the fields of b that a does not declare. Fields declared on both sides
// must agree on their Type; nested structs, arrays and maps merge recursively.
func MergeStructSchemas(a, b *StructSchema) (*StructSchema, error) {
	out := NewStructSchema()
	for _, f := range a.fields {
		out.set(f.Name, f.Schema)
	}
	for _, f := range b.fields {
		if err := out.MergeField(f.Name, f.Schema); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func mergeSchema(field string, a, b Schema) (Schema, error) {
	if a.Type() == TypeNull {
		return b, nil
	}
	if b.Type() == TypeNull {
		return a, nil
	}
	if a.Type() != b.Type() {
		return nil, &SchemaError{Field: field, Left: a.Type(), Right: b.Type()}
	}
	switch as := a.(type) {
	case *StructSchema:
		return MergeStructSchemas(as, b.(*StructSchema))
	case *ArraySchema:
		elem, err := mergeSchema(field+"[]", as.elem, b.(*ArraySchema).elem)
		if err != nil {
			return nil, err
		}
		return NewArraySchema(elem), nil
	case *MapSchema:
		val, err := mergeSchema(field+"{}", as.value, b.(*MapSchema).value)
		if err != nil {
			return nil, err
		}
		return NewMapSchema(val), nil
	}
	return a, nil
}
