package reader

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"unicode/utf8"

	"fileflow/internal/config"
	"fileflow/internal/source"
	"fileflow/pkg/data"
)

func init() { Register("csv", func() Reader { return &CSVReader{} }) }

// utf8BOM is stripped from the first header cell if present.
const utf8BOM = "\uFEFF"

// skipLogLimit caps the number of skipped-row log lines per iterator.
const skipLogLimit = 400

// CSVReader emits one record per CSV row keyed by the normalized header.
//
// Options:
//   - comma: field delimiter (default ",")
//   - has_header: first row holds column names (default true)
//   - trim_space: trim values (default false)
//   - expected_fields: fixed row width when there is no header
//   - header_map: "Source Name=key;Other=key2" renames applied to headers
type CSVReader struct {
	Base
	comma          rune
	hasHeader      bool
	trimSpace      bool
	expectedFields int
	headerMap      map[string]string
}

func (r *CSVReader) Configure(s config.Settings) error {
	var err error
	comma := s.Raw("comma", ",")
	if utf8.RuneCountInString(comma) != 1 {
		return &config.ConfigError{Key: "comma", Msg: fmt.Sprintf("%q must be a single character", comma)}
	}
	r.comma, _ = utf8.DecodeRuneInString(comma)
	if r.hasHeader, err = s.Bool("has_header", true); err != nil {
		return err
	}
	if r.trimSpace, err = s.Bool("trim_space", false); err != nil {
		return err
	}
	if r.expectedFields, err = s.Int("expected_fields", 0); err != nil {
		return err
	}
	if r.headerMap, err = s.Map("header_map"); err != nil {
		return err
	}
	r.factory = r.open
	return nil
}

func (r *CSVReader) open(ctx context.Context, sc source.Context) (Iterator, error) {
	return open(ctx, sc, func(c *cursor) (*csvIterator, error) {
		it := &csvIterator{cursor: c, opt: r}
		it.reset(0)
		switch {
		case r.hasHeader:
			h, err := it.cr.Read()
			if err == io.EOF {
				it.done = true
				return it, nil
			}
			if err != nil {
				return nil, fmt.Errorf("read csv header %s: %w", sc.Metadata.Path, err)
			}
			it.headers = normalizeHeaders(h, r.headerMap)
			it.dataStart = it.cr.InputOffset()
		case r.expectedFields > 0:
			it.headers = make([]string, r.expectedFields)
			for i := range it.headers {
				it.headers[i] = fmt.Sprintf("col_%d", i)
			}
		}
		return it, nil
	})
}

type csvIterator struct {
	*cursor
	opt       *CSVReader
	cr        *csv.Reader
	base      int64
	dataStart int64
	headers   []string
	row       int64
}

func (it *csvIterator) reset(pos int64) {
	it.cr = csv.NewReader(it.rc)
	it.cr.Comma = it.opt.comma
	it.cr.FieldsPerRecord = -1
	it.base = pos
}

func (it *csvIterator) Next() bool {
	if !it.enter() {
		return false
	}
	defer it.leave()
	for it.ready() {
		start := it.base + it.cr.InputOffset()
		row, err := it.cr.Read()
		if err == io.EOF {
			it.done = true
			return false
		}
		end := it.base + it.cr.InputOffset()
		if err != nil {
			var pe *csv.ParseError
			if !errors.As(err, &pe) {
				it.err = fmt.Errorf("read %s: %w", it.sc.Metadata.Path, err)
				return false
			}
			it.row++
			it.skip("%v", err)
			continue
		}
		it.row++

		if len(it.headers) > 0 && len(row) != len(it.headers) {
			it.skip("incorrect number of fields (expected %d, got %d)", len(it.headers), len(row))
			continue
		}

		v := data.NewStruct()
		for i, val := range row {
			if it.opt.trimSpace {
				val = strings.TrimSpace(val)
			}
			key := keyFor(i, it.headers)
			if val == "" {
				err = v.PutValue(key, data.Null(data.StringSchema()))
			} else {
				err = v.PutString(key, val)
			}
			if err != nil {
				it.err = err
				return false
			}
		}
		it.rec = Record{Value: v, Offset: source.NewRowRecordOffset(start, end, it.row)}
		return true
	}
	return false
}

func (it *csvIterator) skip(format string, args ...any) {
	if it.skipped < skipLogLimit {
		log.Printf("csv reader: %s: skipping row %d: %s", it.sc.Metadata.Path, it.row, fmt.Sprintf(format, args...))
	}
	it.skipped++
}

// Seek never moves before the header. Rows restarts from off.Rows when the
// offset carries a row count.
func (it *csvIterator) Seek(off source.SourceOffset) error {
	pos := off.Position
	if pos < it.dataStart {
		pos = it.dataStart
	}
	if err := it.seekTo(pos); err != nil {
		return err
	}
	it.reset(pos)
	it.row = 0
	if off.Rows > 0 && off.Position >= it.dataStart {
		it.row = off.Rows
	}
	return nil
}

// keyFor returns the column key for idx, using headers when available,
// otherwise synthesizing a "col_N" name.
func keyFor(idx int, headers []string) string {
	if idx < len(headers) && headers[idx] != "" {
		return headers[idx]
	}
	return fmt.Sprintf("col_%d", idx)
}

// normalizeHeaders produces canonical header keys using headerMap (when
// provided) and simple normalization (lowercase, spaces to underscores).
func normalizeHeaders(h []string, headerMap map[string]string) []string {
	res := make([]string, len(h))
	for i, col := range h {
		c := strings.TrimSpace(col)
		if i == 0 {
			c = strings.TrimPrefix(c, utf8BOM)
		}
		if m, ok := headerMap[c]; ok {
			res[i] = m
			continue
		}
		res[i] = strings.ReplaceAll(strings.ToLower(c), " ", "_")
	}
	return res
}
