// Package data implements the dynamically typed, self-describing value model
// that flows through the pipeline.
//
// Every value carries its schema (TypedValue). Records are TypedStruct
// values: ordered, named fields whose declared types drive coercion on write.
// The set of types is closed (Type); every switch over it is exhaustive and
// composite schemas are visited through SchemaMapper/ValueMapper rather than
// through reflection.
package data

import (
	"fmt"
	"strings"
)

// Type is the closed set of value kinds.
type Type int

const (
	TypeString Type = iota
	TypeBoolean
	TypeBytes
	TypeInt16
	TypeInt32
	TypeInt64
	TypeFloat32
	TypeFloat64
	TypeArray
	TypeMap
	TypeStruct
	TypeNull
)

var typeNames = [...]string{
	TypeString:  "STRING",
	TypeBoolean: "BOOLEAN",
	TypeBytes:   "BYTES",
	TypeInt16:   "INT16",
	TypeInt32:   "INT32",
	TypeInt64:   "INT64",
	TypeFloat32: "FLOAT32",
	TypeFloat64: "FLOAT64",
	TypeArray:   "ARRAY",
	TypeMap:     "MAP",
	TypeStruct:  "STRUCT",
	TypeNull:    "NULL",
}

func (t Type) String() string {
	if t < 0 || int(t) >= len(typeNames) {
		return fmt.Sprintf("Type(%d)", int(t))
	}
	return typeNames[t]
}

// IsPrimitive reports whether t is a scalar type.
func (t Type) IsPrimitive() bool {
	switch t {
	case TypeString, TypeBoolean, TypeBytes,
		TypeInt16, TypeInt32, TypeInt64, TypeFloat32, TypeFloat64:
		return true
	}
	return false
}

// IsNumber reports whether t is one of the integer or floating point types.
func (t Type) IsNumber() bool {
	return t.IsInteger() || t == TypeFloat32 || t == TypeFloat64
}

// IsInteger reports whether t is INT16, INT32 or INT64.
func (t Type) IsInteger() bool {
	return t == TypeInt16 || t == TypeInt32 || t == TypeInt64
}

// rank orders numeric types along the widening path. Non-numeric types rank -1.
func (t Type) rank() int {
	switch t {
	case TypeInt16:
		return 0
	case TypeInt32:
		return 1
	case TypeInt64:
		return 2
	case TypeFloat32:
		return 3
	case TypeFloat64:
		return 4
	}
	return -1
}

var typeAliases = map[string]Type{
	"INT":    TypeInt32,
	"SHORT":  TypeInt16,
	"LONG":   TypeInt64,
	"FLOAT":  TypeFloat32,
	"DOUBLE": TypeFloat64,
	"BOOL":   TypeBoolean,
}

// ParseType resolves a case-insensitive type name such as "int64" or "long".
func ParseType(s string) (Type, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	for i, n := range typeNames {
		if n == name {
			return Type(i), nil
		}
	}
	if t, ok := typeAliases[name]; ok {
		return t, nil
	}
	return 0, fmt.Errorf("data: unknown type %q", s)
}
