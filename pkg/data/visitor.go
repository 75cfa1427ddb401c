package data

import "fmt"

// SchemaMapper converts a schema into an external representation. There is
// one method per visitable variant; the none schema has none.
type SchemaMapper[T any] interface {
	MapSimple(s *SimpleSchema) (T, error)
	MapStruct(s *StructSchema) (T, error)
	MapArray(s *ArraySchema) (T, error)
	MapMap(s *MapSchema) (T, error)
}

// ValueMapper is the value-carrying form of SchemaMapper. Payloads may be nil
// for typed nulls.
type ValueMapper[T any] interface {
	MapSimple(s *SimpleSchema, v any) (T, error)
	MapStruct(s *StructSchema, v *TypedStruct) (T, error)
	MapArray(s *ArraySchema, v []TypedValue) (T, error)
	MapMap(s *MapSchema, v map[string]TypedValue) (T, error)
}

// VisitSchema dispatches s to the matching method of m. Visiting the none
// schema fails with ErrUnsupportedOperation.
func VisitSchema[T any](s Schema, m SchemaMapper[T]) (T, error) {
	var zero T
	switch v := s.(type) {
	case *SimpleSchema:
		return m.MapSimple(v)
	case *StructSchema:
		return m.MapStruct(v)
	case *ArraySchema:
		return m.MapArray(v)
	case *MapSchema:
		return m.MapMap(v)
	case noneSchema:
		return zero, fmt.Errorf("data: visit none schema: %w", ErrUnsupportedOperation)
	default:
		return zero, fmt.Errorf("data: visit %T: %w", s, ErrUnsupportedOperation)
	}
}

// VisitValue dispatches v to the matching method of m.
func VisitValue[T any](v TypedValue, m ValueMapper[T]) (T, error) {
	var zero T
	switch s := v.Schema().(type) {
	case *SimpleSchema:
		return m.MapSimple(s, v.value)
	case *StructSchema:
		st, _ := v.value.(*TypedStruct)
		return m.MapStruct(s, st)
	case *ArraySchema:
		items, _ := v.value.([]TypedValue)
		return m.MapArray(s, items)
	case *MapSchema:
		entries, _ := v.value.(map[string]TypedValue)
		return m.MapMap(s, entries)
	case noneSchema:
		return zero, fmt.Errorf("data: visit none value: %w", ErrUnsupportedOperation)
	default:
		return zero, fmt.Errorf("data: visit %T: %w", s, ErrUnsupportedOperation)
	}
}
