package reader

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"

	"fileflow/internal/config"
	"fileflow/internal/source"
	"fileflow/pkg/data"
)

func init() { Register("line", func() Reader { return &LineReader{} }) }

const defaultBufferSize = 64 * 1024

// LineReader emits one record per physical line: {message: "<line>"}.
//
// Options:
//   - field: name of the output field (default "message")
//   - skip_headers: number of leading lines to drop when reading from the start
//   - buffer_size: read buffer in bytes (default 64 KiB)
type LineReader struct {
	Base
	field      string
	skip       int
	bufferSize int
}

func (r *LineReader) Configure(s config.Settings) error {
	var err error
	r.field = s.String("field", "message")
	if r.skip, err = s.Int("skip_headers", 0); err != nil {
		return err
	}
	if r.skip < 0 {
		return &config.ConfigError{Key: "skip_headers", Msg: "must be >= 0"}
	}
	if r.bufferSize, err = s.Int("buffer_size", defaultBufferSize); err != nil {
		return err
	}
	if r.bufferSize <= 0 {
		return &config.ConfigError{Key: "buffer_size", Msg: "must be > 0"}
	}
	r.factory = r.open
	return nil
}

func (r *LineReader) open(ctx context.Context, sc source.Context) (Iterator, error) {
	return open(ctx, sc, func(c *cursor) (*lineIterator, error) {
		return &lineIterator{
			cursor:  c,
			br:      bufio.NewReaderSize(c.rc, r.bufferSize),
			field:   r.field,
			headers: r.skip,
			skip:    r.skip,
		}, nil
	})
}

type lineIterator struct {
	*cursor
	br      *bufio.Reader
	field   string
	pos     int64
	headers int
	skip    int
}

func (it *lineIterator) Next() bool {
	if !it.enter() {
		return false
	}
	defer it.leave()
	for it.ready() {
		start := it.pos
		line, err := it.br.ReadBytes('\n')
		if err != nil && err != io.EOF {
			it.err = fmt.Errorf("read %s: %w", it.sc.Metadata.Path, err)
			return false
		}
		if err == io.EOF {
			it.done = true
			if len(line) == 0 {
				return false
			}
		}
		it.pos += int64(len(line))
		if it.skip > 0 {
			it.skip--
			continue
		}

		v := data.NewStruct()
		if err := v.PutString(it.field, string(trimEOL(line))); err != nil {
			it.err = err
			return false
		}
		it.rec = Record{Value: v, Offset: source.NewBytesRecordOffset(start, it.pos)}
		return true
	}
	return false
}

// Seek discards any buffered input. Header lines are only skipped when the
// iterator reads from the start of the file.
func (it *lineIterator) Seek(off source.SourceOffset) error {
	pos := off.Position
	if pos < 0 {
		pos = 0
	}
	if err := it.seekTo(pos); err != nil {
		return err
	}
	it.br.Reset(it.rc)
	it.skip = 0
	if pos == 0 {
		it.skip = it.headers
	}
	it.pos = pos
	return nil
}

func trimEOL(b []byte) []byte {
	b = bytes.TrimSuffix(b, []byte("\n"))
	return bytes.TrimSuffix(b, []byte("\r"))
}
