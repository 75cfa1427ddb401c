package source

import (
	"encoding/json"
	"path/filepath"
	"testing"
)

func TestEmptyBytesOffsetIsDistinguishable(t *testing.T) {
	t.Parallel()

	empty := EmptyBytesOffset()
	if !empty.IsEmpty() {
		t.Fatalf("EmptyBytesOffset().IsEmpty() = false")
	}
	if empty.Start != -1 || empty.End != -1 {
		t.Fatalf("empty offset = %+v; want (-1,-1)", empty)
	}
	if empty.TS <= 0 {
		t.Fatalf("empty offset timestamp = %d; want now", empty.TS)
	}
	for _, o := range []BytesRecordOffset{NewBytesRecordOffset(0, 0), NewBytesRecordOffset(0, 10)} {
		if o.IsEmpty() {
			t.Fatalf("%v reported as empty", o)
		}
	}
}

func TestBytesRecordOffsetConversions(t *testing.T) {
	t.Parallel()

	o := BytesRecordOffset{Start: 10, End: 25, TS: 7}
	if got := o.ToSourceOffset(); got != (SourceOffset{Position: 25, Rows: -1, Timestamp: 7}) {
		t.Fatalf("ToSourceOffset() = %+v", got)
	}
	if got := o.Rewind(); got.Position != 10 {
		t.Fatalf("Rewind().Position = %d; want 10", got.Position)
	}
}

func TestRowRecordOffsetKeepsRowNumber(t *testing.T) {
	t.Parallel()

	o := RowRecordOffset{BytesRecordOffset: BytesRecordOffset{Start: 5, End: 9, TS: 1}, Row: 3}
	var ro RecordOffset = o
	if got := ro.ToSourceOffset(); got.Position != 9 || got.Rows != 3 {
		t.Fatalf("ToSourceOffset() = %+v; want position 9 rows 3", got)
	}
	if got := ro.Rewind(); got.Position != 5 || got.Rows != 2 {
		t.Fatalf("Rewind() = %+v; want position 5 rows 2", got)
	}
}

func TestSourceOffsetJSON(t *testing.T) {
	t.Parallel()

	in := SourceOffset{Position: 42, Rows: 3, Timestamp: 1700000000000}
	b, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"position":42,"rows":3,"timestamp":1700000000000}` {
		t.Fatalf("json = %s", b)
	}
	var out SourceOffset
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out != in {
		t.Fatalf("round trip = %+v; want %+v", out, in)
	}
	if !StartOffset().Before(in) || in.Before(in) {
		t.Fatalf("Before ordering is wrong")
	}
}

func TestMetadataKey(t *testing.T) {
	t.Parallel()

	if got := (Metadata{Path: "https://host/logs/app.log"}).Key(); got != "https://host/logs/app.log" {
		t.Fatalf("URL key = %q", got)
	}
	abs := Metadata{Path: "/var/log/app.log"}.Key()
	rel := Metadata{Path: "app.log"}.Key()
	if abs != "/var/log/app.log" || !filepath.IsAbs(rel) || filepath.Base(rel) != "app.log" {
		t.Fatalf("path keys = %q, %q", abs, rel)
	}
}
