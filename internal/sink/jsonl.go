package sink

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"fileflow/internal/config"
	"fileflow/internal/filter"
	"fileflow/internal/source"
	"fileflow/pkg/data"
)

// JSONL writes one JSON object per record:
//
//	{"source":"/var/log/app.log","offset":{"start":0,"end":42},"value":{...},"errors":[...]}
//
// Path "-" writes to stdout. Options:
//   - include_offset (default true)
//   - include_errors (default true)
//   - append (default true); false truncates the file on open
type JSONL struct {
	mu            sync.Mutex
	w             *bufio.Writer
	c             io.Closer
	includeOffset bool
	includeErrors bool
}

type jsonlOffset struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
	Row   int64 `json:"row,omitempty"`
}

type jsonlLine struct {
	Source string               `json:"source"`
	Offset *jsonlOffset         `json:"offset,omitempty"`
	Value  *data.TypedStruct    `json:"value"`
	Errors []filter.FilterError `json:"errors,omitempty"`
}

// NewJSONL wraps w. c is closed by Close when non-nil.
func NewJSONL(w io.Writer, c io.Closer) *JSONL {
	return &JSONL{w: bufio.NewWriterSize(w, 64*1024), c: c, includeOffset: true, includeErrors: true}
}

func openJSONL(cfg config.Sink) (Sink, error) {
	s := cfg.Options.Flatten()
	includeOffset, err := s.Bool("include_offset", true)
	if err != nil {
		return nil, err
	}
	includeErrors, err := s.Bool("include_errors", true)
	if err != nil {
		return nil, err
	}
	appendMode, err := s.Bool("append", true)
	if err != nil {
		return nil, err
	}

	var j *JSONL
	switch cfg.Path {
	case "":
		return nil, &config.ConfigError{Key: "path", Msg: "is required"}
	case "-":
		j = NewJSONL(os.Stdout, nil)
	default:
		flags := os.O_CREATE | os.O_WRONLY | os.O_APPEND
		if !appendMode {
			flags = os.O_CREATE | os.O_WRONLY | os.O_TRUNC
		}
		f, err := os.OpenFile(cfg.Path, flags, 0o644)
		if err != nil {
			return nil, fmt.Errorf("jsonl: open %s: %w", cfg.Path, err)
		}
		j = NewJSONL(f, f)
	}
	j.includeOffset = includeOffset
	j.includeErrors = includeErrors
	return j, nil
}

func offsetOf(o source.RecordOffset) *jsonlOffset {
	if o == nil || o.IsEmpty() {
		return nil
	}
	out := &jsonlOffset{Start: o.Rewind().Position, End: o.ToSourceOffset().Position}
	if r, ok := o.(source.RowRecordOffset); ok {
		out.Row = r.Row
	}
	return out
}

// Write encodes the batch and flushes it to the underlying writer.
func (j *JSONL) Write(ctx context.Context, recs []Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	enc := json.NewEncoder(j.w)
	enc.SetEscapeHTML(false)
	for _, r := range recs {
		ln := jsonlLine{Source: r.Source.Path, Value: r.Value}
		if j.includeOffset {
			ln.Offset = offsetOf(r.Offset)
		}
		if j.includeErrors && len(r.Errors) > 0 {
			ln.Errors = r.Errors
		}
		if err := enc.Encode(ln); err != nil {
			return fmt.Errorf("jsonl: encode %s: %w", r.Source.Path, err)
		}
	}
	if err := j.w.Flush(); err != nil {
		return fmt.Errorf("jsonl: flush: %w", err)
	}
	return nil
}

func (j *JSONL) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	err := j.w.Flush()
	if j.c != nil {
		if cerr := j.c.Close(); err == nil {
			err = cerr
		}
		j.c = nil
	}
	return err
}

func init() {
	Register("jsonl", openJSONL)
}
