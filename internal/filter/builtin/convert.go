// Package builtin contains the filters shipped with fileflow. Each filter
// registers itself with the filter package at init time.
package builtin

import (
	"fmt"

	"fileflow/internal/config"
	"fileflow/internal/filter"
	"fileflow/pkg/data"
)

func init() { filter.Register("convert", func() filter.Filter { return &Convert{} }) }

// Convert coerces one field to a primitive type using the data coercion
// rules. Values that cannot be converted fail the step.
type Convert struct {
	field         string
	to            *data.SimpleSchema
	ignoreMissing bool
}

func (c *Convert) Configure(s config.Settings) error {
	var err error
	if c.field, err = s.Required("field"); err != nil {
		return err
	}
	to, err := s.Required("to")
	if err != nil {
		return err
	}
	t, err := data.ParseType(to)
	if err != nil {
		return &config.ConfigError{Key: "to", Msg: err.Error()}
	}
	if c.to, err = data.PrimitiveSchema(t); err != nil {
		return &config.ConfigError{Key: "to", Msg: fmt.Sprintf("%s is not a primitive type", t)}
	}
	c.ignoreMissing, err = s.Bool("ignore_missing", false)
	return err
}

func (c *Convert) Apply(_ *filter.Context, rec *data.TypedStruct, _ bool) ([]*data.TypedStruct, error) {
	v, err := rec.Find(c.field)
	if err != nil {
		if c.ignoreMissing {
			return []*data.TypedStruct{rec}, nil
		}
		return nil, err
	}
	out, err := data.Coerce(v, c.to)
	if err != nil {
		return nil, fmt.Errorf("convert %q to %s: %w", c.field, c.to.Type(), err)
	}
	rec.Replace(c.field, out)
	return []*data.TypedStruct{rec}, nil
}
