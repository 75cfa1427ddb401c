package builtin

import (
	"fileflow/internal/config"
	"fileflow/internal/filter"
	"fileflow/pkg/data"
	"fileflow/pkg/expression"
)

func init() { filter.Register("function", func() filter.Filter { return &Function{} }) }

// Function evaluates an expression function on a field and stores the
// result in target (default: the field itself).
//
// Options: function (required), field (required), target, args (list of
// string arguments).
type Function struct {
	field  string
	target string
	bound  *expression.Bound
}

func (f *Function) Configure(s config.Settings) error {
	name, err := s.Required("function")
	if err != nil {
		return err
	}
	if f.field, err = s.Required("field"); err != nil {
		return err
	}
	f.target = s.String("target", f.field)

	var args []data.TypedValue
	for _, a := range s.List("args") {
		args = append(args, data.String(a))
	}
	if f.bound, err = expression.Bind(name, args...); err != nil {
		return &config.ConfigError{Key: "function", Msg: err.Error()}
	}
	return nil
}

// Apply reads a missing field as null.
func (f *Function) Apply(_ *filter.Context, rec *data.TypedStruct, _ bool) ([]*data.TypedStruct, error) {
	v := rec.Get(f.field)
	if v.IsNone() {
		v = data.Null(data.StringSchema())
	}
	out, err := f.bound.Eval(v)
	if err != nil {
		return nil, err
	}
	rec.Replace(f.target, out)
	return []*data.TypedStruct{rec}, nil
}
