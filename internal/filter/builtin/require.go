package builtin

import (
	"fmt"
	"strings"

	"fileflow/internal/config"
	"fileflow/internal/filter"
	"fileflow/pkg/data"
)

func init() { filter.Register("require", func() filter.Filter { return &Require{} }) }

// Require fails records that lack a value for any of the configured fields.
// Null values and empty strings count as missing.
type Require struct {
	fields []string
}

func (r *Require) Configure(s config.Settings) error {
	r.fields = s.List("fields")
	if len(r.fields) == 0 {
		return &config.ConfigError{Key: "fields", Msg: "is required"}
	}
	return nil
}

func (r *Require) Apply(_ *filter.Context, rec *data.TypedStruct, _ bool) ([]*data.TypedStruct, error) {
	var missing []string
	for _, f := range r.fields {
		v := rec.Get(f)
		if v.IsNull() || v.Value() == "" {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required fields: %s", strings.Join(missing, ", "))
	}
	return []*data.TypedStruct{rec}, nil
}
