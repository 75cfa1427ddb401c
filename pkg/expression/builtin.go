package expression

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/zeebo/xxh3"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"fileflow/pkg/data"
)

func init() {
	Register(Length{})
	Register(stringFunc{name: "uppercase", fn: strings.ToUpper})
	Register(stringFunc{name: "lowercase", fn: strings.ToLower})
	Register(stringFunc{name: "trim", fn: strings.TrimSpace})
	Register(stringFunc{name: "unaccent", fn: Unaccent})
	Register(Hash{})
	Register(Converts{})
	Register(Nlv{})
	Register(affixFunc{name: "starts_with", fn: strings.HasPrefix})
	Register(affixFunc{name: "ends_with", fn: strings.HasSuffix})
}

// Length returns the number of elements of an ARRAY or the number of
// characters of a STRING as INT32. A null input gives a null INT32.
type Length struct{}

func (Length) Name() string { return "length" }

func (l Length) Prepare(args []data.TypedValue) (Arguments, error) {
	if err := expectArgs(l.Name(), args, 0); err != nil {
		return nil, err
	}
	return nil, nil
}

func (Length) Accept(v data.TypedValue) bool {
	return v.Type() == data.TypeArray || v.Type() == data.TypeString
}

func (Length) Apply(v data.TypedValue, _ Arguments) (data.TypedValue, error) {
	if v.IsNull() {
		return data.Null(data.Int32Schema()), nil
	}
	n, err := v.Len()
	if err != nil {
		return data.TypedValue{}, err
	}
	return data.Int32(int32(n)), nil
}

// stringFunc maps a STRING through fn. Nulls pass through.
type stringFunc struct {
	name string
	fn   func(string) string
}

func (f stringFunc) Name() string { return f.name }

func (f stringFunc) Prepare(args []data.TypedValue) (Arguments, error) {
	return nil, expectArgs(f.name, args, 0)
}

func (stringFunc) Accept(v data.TypedValue) bool { return v.Type() == data.TypeString }

func (f stringFunc) Apply(v data.TypedValue, _ Arguments) (data.TypedValue, error) {
	if v.IsNull() {
		return v, nil
	}
	s, err := v.AsString()
	if err != nil {
		return data.TypedValue{}, err
	}
	return data.String(f.fn(s)), nil
}

// Unaccent strips combining marks, e.g. "Žluťoučký" becomes "Zlutoucky".
func Unaccent(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Hash returns the xxh3 hash of the formatted value as 16 hex digits.
type Hash struct{}

func (Hash) Name() string { return "hash" }

func (h Hash) Prepare(args []data.TypedValue) (Arguments, error) {
	return nil, expectArgs(h.Name(), args, 0)
}

func (Hash) Accept(v data.TypedValue) bool { return v.Type().IsPrimitive() }

func (Hash) Apply(v data.TypedValue, _ Arguments) (data.TypedValue, error) {
	if v.IsNull() {
		return data.Null(data.StringSchema()), nil
	}
	if b, ok := v.Value().([]byte); ok {
		return data.String(fmt.Sprintf("%016x", xxh3.Hash(b))), nil
	}
	s, err := v.AsString()
	if err != nil {
		return data.TypedValue{}, err
	}
	return data.String(fmt.Sprintf("%016x", xxh3.HashString(s))), nil
}

// Converts coerces a primitive value to the type named by its argument.
type Converts struct{}

func (Converts) Name() string { return "converts" }

func (c Converts) Prepare(args []data.TypedValue) (Arguments, error) {
	if err := expectArgs(c.Name(), args, 1); err != nil {
		return nil, err
	}
	name, err := args[0].AsString()
	if err != nil {
		return nil, configErrorf(c.Name(), "type argument must be a string")
	}
	t, err := data.ParseType(name)
	if err != nil || !t.IsPrimitive() {
		return nil, configErrorf(c.Name(), "unsupported target type %q", name)
	}
	return Arguments{data.String(t.String())}, nil
}

func (Converts) Accept(v data.TypedValue) bool { return v.Type().IsPrimitive() }

func (Converts) Apply(v data.TypedValue, args Arguments) (data.TypedValue, error) {
	name, _ := args[0].AsString()
	t, err := data.ParseType(name)
	if err != nil {
		return data.TypedValue{}, err
	}
	s, err := data.PrimitiveSchema(t)
	if err != nil {
		return data.TypedValue{}, err
	}
	return data.Coerce(v, s)
}

// Nlv returns its argument when the value is null.
type Nlv struct{}

func (Nlv) Name() string { return "nlv" }

func (n Nlv) Prepare(args []data.TypedValue) (Arguments, error) {
	if err := expectArgs(n.Name(), args, 1); err != nil {
		return nil, err
	}
	return Arguments{args[0]}, nil
}

func (Nlv) Accept(data.TypedValue) bool { return true }

func (Nlv) Apply(v data.TypedValue, args Arguments) (data.TypedValue, error) {
	if v.IsNull() {
		return args[0], nil
	}
	return v, nil
}

// affixFunc tests a STRING against its single STRING argument.
type affixFunc struct {
	name string
	fn   func(s, affix string) bool
}

func (f affixFunc) Name() string { return f.name }

func (f affixFunc) Prepare(args []data.TypedValue) (Arguments, error) {
	if err := expectArgs(f.name, args, 1); err != nil {
		return nil, err
	}
	s, err := args[0].AsString()
	if err != nil {
		return nil, configErrorf(f.name, "argument must be a string")
	}
	return Arguments{data.String(s)}, nil
}

func (affixFunc) Accept(v data.TypedValue) bool { return v.Type() == data.TypeString }

func (f affixFunc) Apply(v data.TypedValue, args Arguments) (data.TypedValue, error) {
	s, err := v.AsString()
	if err != nil {
		return data.TypedValue{}, err
	}
	affix, _ := args[0].AsString()
	return data.Bool(f.fn(s, affix)), nil
}
