package builtin

import (
	"fmt"
	"regexp"
	"strings"

	"fileflow/internal/config"
	"fileflow/internal/filter"
	"fileflow/internal/source"
	"fileflow/pkg/data"
)

func init() { filter.Register("multirow", func() filter.Filter { return &MultiRow{} }) }

// MultiRow joins physical lines into logical records, e.g. a log line and
// the stack trace lines that follow it.
//
// pattern matches continuation lines; with negate it matches the lines that
// start a new record instead. A line that starts a record flushes whatever
// is buffered. The emitted record is the first fragment with its field set
// to all fragments joined by separator.
//
// Options: pattern (required), negate (false), separator ("\n"),
// field ("message"), max_lines (0 = unlimited).
type MultiRow struct {
	pattern   *regexp.Regexp
	negate    bool
	separator string
	field     string
	maxLines  int

	first    *data.TypedStruct
	firstOff source.RecordOffset
	lines    []string
}

var _ filter.Buffering = (*MultiRow)(nil)

func (m *MultiRow) Configure(s config.Settings) error {
	if _, err := s.Required("pattern"); err != nil {
		return err
	}
	var err error
	if m.pattern, err = s.Regexp("pattern"); err != nil {
		return err
	}
	if m.negate, err = s.Bool("negate", false); err != nil {
		return err
	}
	if m.maxLines, err = s.Int("max_lines", 0); err != nil {
		return err
	}
	m.separator = s.Raw("separator", "\n")
	m.field = s.String("field", "message")
	return nil
}

// startsRecord reports whether line begins a new logical record.
func (m *MultiRow) startsRecord(line string) bool {
	matched := m.pattern.MatchString(line)
	if m.negate {
		return matched
	}
	return !matched
}

func (m *MultiRow) Apply(ctx *filter.Context, rec *data.TypedStruct, hasNext bool) ([]*data.TypedStruct, error) {
	line, err := rec.GetString(m.field)
	if err != nil {
		// A record without the field ends the current group, so the group is
		// emitted ahead of it whatever the stage policy does with it.
		var out []*data.TypedStruct
		if m.first != nil {
			out = append(out, m.emit())
		}
		return out, fmt.Errorf("multirow: %w", err)
	}

	var out []*data.TypedStruct
	if m.first != nil && (m.startsRecord(line) || (m.maxLines > 0 && len(m.lines) >= m.maxLines)) {
		out = append(out, m.emit())
	}
	if m.first == nil {
		m.first = rec
		m.firstOff = ctx.Offset
	} else {
		ctx.Absorb(m.first, rec)
	}
	m.lines = append(m.lines, line)

	if !hasNext {
		out = append(out, m.emit())
	}
	return out, nil
}

func (m *MultiRow) Pending() (source.RecordOffset, bool) {
	if m.first == nil {
		return nil, false
	}
	return m.firstOff, true
}

func (m *MultiRow) Flush(*filter.Context) []*data.TypedStruct {
	if m.first == nil {
		return nil
	}
	return []*data.TypedStruct{m.emit()}
}

// emit returns the buffered record and goes back to idle.
func (m *MultiRow) emit() *data.TypedStruct {
	rec := m.first
	rec.Replace(m.field, data.String(strings.Join(m.lines, m.separator)))
	m.first, m.firstOff, m.lines = nil, nil, m.lines[:0]
	return rec
}
