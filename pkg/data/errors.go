package data

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedOperation is returned when an operation is not defined for
	// a schema variant, e.g. visiting the none schema.
	ErrUnsupportedOperation = errors.New("unsupported operation")

	// ErrFieldNotFound is returned by lookups on absent struct fields.
	ErrFieldNotFound = errors.New("field not found")

	// ErrDuplicateField is returned when a struct schema already declares a field.
	ErrDuplicateField = errors.New("duplicate field")
)

// DataError reports a value that is incompatible with the requested type.
// It is local to the record being processed.
type DataError struct {
	Msg string
	Err error
}

func (e *DataError) Error() string {
	if e.Err != nil {
		return "data: " + e.Msg + ": " + e.Err.Error()
	}
	return "data: " + e.Msg
}

func (e *DataError) Unwrap() error { return e.Err }

func dataErrorf(format string, args ...any) *DataError {
	return &DataError{Msg: fmt.Sprintf(format, args...)}
}

// SchemaError reports two schemas that cannot be merged.
type SchemaError struct {
	Field       string
	Left, Right Type
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema: cannot merge field %q: %s is incompatible with %s", e.Field, e.Left, e.Right)
}
