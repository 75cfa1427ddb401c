package reader

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"fileflow/internal/config"
	"fileflow/internal/source"
	"fileflow/pkg/data"
)

func init() { Register("xml", func() Reader { return &XMLReader{} }) }

// XMLReader emits one record per record_tag element.
//
// Options:
//   - record_tag: element name of a record (required)
//   - fields: "out=Path/To/Elem;..." single-valued fields, first match wins
//   - lists: same syntax, every match is collected into an array
//
// Paths are relative to the record element and the last segment may carry
// an attribute predicate, e.g. "Ids/Id[@type='doi']". Without fields or
// lists every child element of the record becomes a string field.
//
// Only fully closed records are emitted. Input that ends inside a record,
// typically a file still being written, stops the iterator before that
// record so the next run picks it up whole.
type XMLReader struct {
	Base
	tag    string
	byLast map[string][]xmlMatcher
}

func (r *XMLReader) Configure(s config.Settings) error {
	tag, err := s.Required("record_tag")
	if err != nil {
		return err
	}
	fields, err := s.Map("fields")
	if err != nil {
		return err
	}
	lists, err := s.Map("lists")
	if err != nil {
		return err
	}
	if r.byLast, err = compileXMLPaths(fields, lists); err != nil {
		return &config.ConfigError{Key: "fields", Msg: err.Error()}
	}
	r.tag = tag
	r.factory = r.open
	return nil
}

func (r *XMLReader) open(ctx context.Context, sc source.Context) (Iterator, error) {
	return open(ctx, sc, func(c *cursor) (*xmlIterator, error) {
		it := &xmlIterator{cursor: c, r: r}
		it.reset(0)
		return it, nil
	})
}

type xmlIterator struct {
	*cursor
	r    *XMLReader
	dec  *xml.Decoder
	base int64
}

func (it *xmlIterator) reset(pos int64) {
	it.dec = xml.NewDecoder(it.rc)
	it.dec.Strict = false
	it.base = pos
}

func (it *xmlIterator) Next() bool {
	if !it.enter() {
		return false
	}
	defer it.leave()
	for it.ready() {
		start := it.base + it.dec.InputOffset()
		tok, err := it.dec.Token()
		if err != nil {
			it.stop(start, err)
			return false
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != it.r.tag {
			continue
		}
		fields, err := it.r.collect(it.dec)
		if err != nil {
			it.stop(start, err)
			return false
		}
		end := it.base + it.dec.InputOffset()
		v, err := data.StructOf(fields)
		if err != nil {
			it.skipped++
			log.Printf("xml reader: %s: skipping record at %d: %v", it.sc.Metadata.Path, start, err)
			continue
		}
		it.rec = Record{Value: v, Offset: source.NewBytesRecordOffset(start, end)}
		return true
	}
	return false
}

// stop ends iteration. A syntax error ends the readable part of the input:
// closing tags of the enclosing document after a resume, or a record cut
// off at the end of a file that is still growing.
func (it *xmlIterator) stop(pos int64, err error) {
	var se *xml.SyntaxError
	switch {
	case err == io.EOF:
	case errors.Is(err, io.ErrUnexpectedEOF), errors.As(err, &se):
		// Unmatched end elements are expected after resuming inside a
		// document.
		if se == nil || !strings.HasPrefix(se.Msg, "unexpected end element") {
			log.Printf("xml reader: %s: stopping at %d: %v", it.sc.Metadata.Path, pos, err)
		}
	default:
		it.err = fmt.Errorf("xml reader: decode %s: %w", it.sc.Metadata.Path, err)
		return
	}
	it.done = true
}

type xmlCapture struct {
	field  string
	isList bool
	depth  int
	text   []byte
}

// collect reads the tokens of one record, up to and including its end
// element, and returns the captured fields.
func (r *XMLReader) collect(dec *xml.Decoder) (map[string]any, error) {
	out := make(map[string]any, 8)
	var (
		rel  []string
		caps []xmlCapture
	)
	for {
		tok, err := dec.Token()
		if err != nil {
			if err == io.EOF {
				return nil, io.ErrUnexpectedEOF
			}
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			rel = append(rel, t.Name.Local)
			caps = r.startCaptures(caps, rel, t)
		case xml.CharData:
			for i := range caps {
				caps[i].text = append(caps[i].text, t...)
			}
		case xml.EndElement:
			if len(rel) == 0 {
				return out, nil
			}
			caps = commitCaptures(out, caps, len(rel))
			rel = rel[:len(rel)-1]
		}
	}
}

// startCaptures starts a capture for every matcher whose path ends at el.
func (r *XMLReader) startCaptures(caps []xmlCapture, rel []string, el xml.StartElement) []xmlCapture {
	if len(r.byLast) == 0 {
		if len(rel) == 1 {
			caps = append(caps, xmlCapture{field: el.Name.Local, depth: 1})
		}
		return caps
	}
	for _, m := range r.byLast[el.Name.Local] {
		if !tailMatches(rel, m.path) || !attrMatches(el, m.path.last()) {
			continue
		}
		caps = append(caps, xmlCapture{field: m.field, isList: m.isList, depth: len(rel)})
	}
	return caps
}

func attrMatches(el xml.StartElement, s pathSeg) bool {
	if s.attrName == "" {
		return true
	}
	for _, a := range el.Attr {
		if a.Name.Local == s.attrName && a.Value == s.attrVal {
			return true
		}
	}
	return false
}

// commitCaptures stores the captures that close at depth and returns the
// ones still open.
func commitCaptures(out map[string]any, caps []xmlCapture, depth int) []xmlCapture {
	w := 0
	for _, c := range caps {
		if c.depth != depth {
			caps[w] = c
			w++
			continue
		}
		val := string(bytes.TrimSpace(c.text))
		if val == "" {
			continue
		}
		if c.isList {
			arr, _ := out[c.field].([]string)
			out[c.field] = append(arr, val)
		} else if _, exists := out[c.field]; !exists {
			out[c.field] = val
		}
	}
	return caps[:w]
}

func (it *xmlIterator) Seek(off source.SourceOffset) error {
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
