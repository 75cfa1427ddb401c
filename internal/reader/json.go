package reader

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"

	"fileflow/internal/config"
	"fileflow/internal/source"
	"fileflow/pkg/data"
)

func init() { Register("json", func() Reader { return &JSONReader{} }) }

// JSONReader reads newline-delimited JSON objects, one record per object.
// Numbers keep their literal form until typed: integers become INT64 and
// everything else FLOAT64. Top-level values that are not objects are
// skipped.
type JSONReader struct {
	Base
}

func (r *JSONReader) Configure(config.Settings) error {
	r.factory = r.open
	return nil
}

func (r *JSONReader) open(ctx context.Context, sc source.Context) (Iterator, error) {
	return open(ctx, sc, func(c *cursor) (*jsonIterator, error) {
		it := &jsonIterator{cursor: c}
		it.reset(0)
		return it, nil
	})
}

type jsonIterator struct {
	*cursor
	dec  *json.Decoder
	base int64
}

func (it *jsonIterator) reset(pos int64) {
	it.dec = json.NewDecoder(it.rc)
	it.dec.UseNumber()
	it.base = pos
}

func (it *jsonIterator) Next() bool {
	if !it.enter() {
		return false
	}
	defer it.leave()
	for it.ready() {
		start := it.base + it.dec.InputOffset()
		var raw any
		if err := it.dec.Decode(&raw); err != nil {
			if err == io.EOF {
				it.done = true
				return false
			}
			it.err = fmt.Errorf("json reader: decode %s: %w", it.sc.Metadata.Path, err)
			return false
		}
		end := it.base + it.dec.InputOffset()

		obj, ok := raw.(map[string]any)
		if !ok {
			it.skip(start, "top-level %T is not an object", raw)
			continue
		}
		v, err := data.StructOf(obj)
		if err != nil {
			it.skip(start, "%v", err)
			continue
		}
		it.rec = Record{Value: v, Offset: source.NewBytesRecordOffset(start, end)}
		return true
	}
	return false
}

func (it *jsonIterator) skip(pos int64, format string, args ...any) {
	if it.skipped < skipLogLimit {
		log.Printf("json reader: %s: skipping value at %d: %s", it.sc.Metadata.Path, pos, fmt.Sprintf(format, args...))
	}
	it.skipped++
}

func (it *jsonIterator) Seek(off source.SourceOffset) error {
	pos := off.Position
	if pos < 0 {
		pos = 0
	}
	if err := it.seekTo(pos); err != nil {
		return err
	}
	it.reset(pos)
	return nil
}
