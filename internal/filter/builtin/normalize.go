package builtin

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"fileflow/internal/config"
	"fileflow/internal/filter"
	"fileflow/pkg/data"
	"fileflow/pkg/expression"
)

func init() { filter.Register("normalize", func() filter.Filter { return &Normalize{} }) }

// Normalize cleans string fields: NFC normalization, the "Â " mojibake of a
// non-breaking space, and optionally trimming, accent folding and lower
// casing. Null and non-string fields are left alone.
//
// Options: fields (all string fields), trim (true), unaccent (false),
// lowercase (false).
type Normalize struct {
	fields    []string
	trim      bool
	unaccent  bool
	lowercase bool
	lower     cases.Caser
}

func (n *Normalize) Configure(s config.Settings) error {
	var err error
	n.fields = s.List("fields")
	if n.trim, err = s.Bool("trim", true); err != nil {
		return err
	}
	if n.unaccent, err = s.Bool("unaccent", false); err != nil {
		return err
	}
	if n.lowercase, err = s.Bool("lowercase", false); err != nil {
		return err
	}
	n.lower = cases.Lower(language.Und)
	return nil
}

func (n *Normalize) Apply(_ *filter.Context, rec *data.TypedStruct, _ bool) ([]*data.TypedStruct, error) {
	fields := n.fields
	if len(fields) == 0 {
		fields = rec.Fields()
	}
	for _, f := range fields {
		v := rec.Get(f)
		if v.Type() != data.TypeString || v.IsNull() {
			continue
		}
		s, _ := v.Value().(string)
		rec.Replace(f, data.String(n.clean(s)))
	}
	return []*data.TypedStruct{rec}, nil
}

func (n *Normalize) clean(s string) string {
	s = norm.NFC.String(strings.ReplaceAll(s, "Â ", " "))
	if n.trim {
		s = strings.TrimSpace(s)
	}
	if n.unaccent {
		s = expression.Unaccent(s)
	}
	if n.lowercase {
		s = n.lower.String(s)
	}
	return s
}
