// Package expression defines the contract of value functions used by filters
// and the registry of built-in functions.
//
// A Function is bound once at configuration time (Prepare) and then applied
// to many values. Apply is only called for values the function Accepts.
package expression

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"fileflow/pkg/data"
)

var (
	// ErrNotAccepted is returned when a bound function is evaluated on a
	// value type it does not support.
	ErrNotAccepted = errors.New("value type not accepted")

	// ErrUnknownFunction is returned by Bind for unregistered names.
	ErrUnknownFunction = errors.New("unknown function")
)

// Arguments holds the prepared, validated arguments of a bound function.
type Arguments []data.TypedValue

// Function is a named, pure transformation of a TypedValue.
type Function interface {
	Name() string
	// Prepare validates raw arguments at configuration time. Failures are
	// returned as *ConfigError.
	Prepare(args []data.TypedValue) (Arguments, error)
	// Accept reports whether v has a type the function supports.
	Accept(v data.TypedValue) bool
	// Apply computes the result. It must not modify v.
	Apply(v data.TypedValue, args Arguments) (data.TypedValue, error)
}

// ConfigError reports invalid function arguments.
type ConfigError struct {
	Function string
	Msg      string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("function %s: %s", e.Function, e.Msg)
}

func configErrorf(fn, format string, args ...any) *ConfigError {
	return &ConfigError{Function: fn, Msg: fmt.Sprintf(format, args...)}
}

var (
	mu        sync.RWMutex
	functions = map[string]Function{}
)

// Register adds (or replaces) a function under its name.
func Register(fn Function) {
	mu.Lock()
	defer mu.Unlock()
	functions[fn.Name()] = fn
}

// Lookup returns the function registered under name.
func Lookup(name string) (Function, bool) {
	mu.RLock()
	defer mu.RUnlock()
	fn, ok := functions[name]
	return fn, ok
}

// Names lists the registered function names in sorted order.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(functions))
	for n := range functions {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Bound is a function with prepared arguments. It is safe for concurrent use
// because functions are pure.
type Bound struct {
	fn   Function
	args Arguments
}

// Bind resolves name and prepares its arguments.
func Bind(name string, args ...data.TypedValue) (*Bound, error) {
	fn, ok := Lookup(name)
	if !ok {
		return nil, fmt.Errorf("function %q: %w", name, ErrUnknownFunction)
	}
	prepared, err := fn.Prepare(args)
	if err != nil {
		return nil, err
	}
	return &Bound{fn: fn, args: prepared}, nil
}

func (b *Bound) Name() string { return b.fn.Name() }

// Eval checks Accept and applies the function. Unsupported input types fail
// with a *data.DataError wrapping ErrNotAccepted.
func (b *Bound) Eval(v data.TypedValue) (data.TypedValue, error) {
	if !b.fn.Accept(v) {
		return data.TypedValue{}, &data.DataError{
			Msg: fmt.Sprintf("function %s cannot be applied to %s", b.fn.Name(), v.Type()),
			Err: ErrNotAccepted,
		}
	}
	return b.fn.Apply(v, b.args)
}

func expectArgs(fn string, args []data.TypedValue, n int) error {
	if len(args) != n {
		return configErrorf(fn, "expected %d argument(s), got %d", n, len(args))
	}
	return nil
}
