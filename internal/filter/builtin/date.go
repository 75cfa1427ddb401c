package builtin

import (
	"fmt"
	"time"

	"golang.org/x/text/language"

	"fileflow/internal/config"
	"fileflow/internal/filter"
	"fileflow/pkg/data"
)

func init() { filter.Register("date", func() filter.Filter { return &Date{} }) }

// Date parses a date string into epoch milliseconds (INT64). The formats are
// Go time layouts tried in order; layouts without a zone use timezone.
//
// Options: field (required), target ("timestamp"), formats (RFC 3339),
// timezone ("UTC"), locale ("en").
type Date struct {
	field   string
	target  string
	formats []string
	loc     *time.Location
}

func (d *Date) Configure(s config.Settings) error {
	var err error
	if d.field, err = s.Required("field"); err != nil {
		return err
	}
	d.target = s.String("target", "timestamp")
	d.formats = s.List("formats")
	if len(d.formats) == 0 {
		d.formats = []string{time.RFC3339Nano}
	}
	tz := s.String("timezone", "UTC")
	if d.loc, err = time.LoadLocation(tz); err != nil {
		return &config.ConfigError{Key: "timezone", Msg: err.Error()}
	}
	// Layouts only know English month and day names.
	tag, err := language.Parse(s.String("locale", "en"))
	if err != nil {
		return &config.ConfigError{Key: "locale", Msg: err.Error()}
	}
	if base, _ := tag.Base(); base.String() != "en" {
		return &config.ConfigError{Key: "locale", Msg: fmt.Sprintf("%s is not supported", tag)}
	}
	return nil
}

func (d *Date) Apply(_ *filter.Context, rec *data.TypedStruct, _ bool) ([]*data.TypedStruct, error) {
	raw, err := rec.GetString(d.field)
	if err != nil {
		return nil, err
	}
	for _, layout := range d.formats {
		t, err := time.ParseInLocation(layout, raw, d.loc)
		if err != nil {
			continue
		}
		rec.Replace(d.target, data.Int64(t.UnixMilli()))
		return []*data.TypedStruct{rec}, nil
	}
	return nil, fmt.Errorf("date: %q matches none of %d formats", raw, len(d.formats))
}
