package sink

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"fileflow/internal/config"
	"fileflow/internal/filter"
	"fileflow/internal/source"
	"fileflow/pkg/data"
)

func message(t *testing.T, msg string) *data.TypedStruct {
	t.Helper()
	s := data.NewStruct()
	if err := s.PutString("message", msg); err != nil {
		t.Fatalf("PutString: %v", err)
	}
	return s
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	kinds := strings.Join(Kinds(), ",")
	if !strings.Contains(kinds, "discard") || !strings.Contains(kinds, "jsonl") {
		t.Fatalf("Kinds() = %s", kinds)
	}
	if _, err := New(config.Sink{Kind: "kafka"}); err == nil || err.Error() != "unsupported sink.kind=kafka" {
		t.Fatalf("New(kafka) error = %v", err)
	}
}

/*
TestJSONLWrite checks the line layout: source, offset, value, then errors,
with the value fields in insertion order.
*/
func TestJSONLWrite(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	j := NewJSONL(&buf, nil)
	md := source.Metadata{Path: "/var/log/app.log"}

	recs := []Record{
		{Source: md, Offset: source.NewBytesRecordOffset(0, 12), Value: message(t, "hello")},
		{
			Source: md,
			Offset: source.NewRowRecordOffset(12, 30, 2),
			Value:  message(t, "second"),
			Errors: []filter.FilterError{{Message: "missing required fields: level", Filter: "require"}},
		},
		{Source: md, Offset: source.EmptyBytesOffset(), Value: message(t, "flushed")},
	}
	if err := j.Write(context.Background(), recs); err != nil {
		t.Fatalf("Write: %v", err)
	}

	want := []string{
		`{"source":"/var/log/app.log","offset":{"start":0,"end":12},"value":{"message":"hello"}}`,
		`{"source":"/var/log/app.log","offset":{"start":12,"end":30,"row":2},"value":{"message":"second"},"errors":[{"message":"missing required fields: level","filter":"require"}]}`,
		`{"source":"/var/log/app.log","value":{"message":"flushed"}}`,
	}
	got := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(got) != len(want) {
		t.Fatalf("got %d lines:\n%s", len(got), buf.String())
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("line %d:\n got %s\nwant %s", i, got[i], want[i])
		}
	}
}

func TestJSONLOptions(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "out.jsonl")
	if err := os.WriteFile(path, []byte("old\n"), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}

	s, err := New(config.Sink{Kind: "jsonl", Path: path, Options: config.Options{
		"include_offset": false,
		"include_errors": false,
		"append":         false,
	}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	rec := Record{
		Source: source.Metadata{Path: "a"},
		Offset: source.NewBytesRecordOffset(0, 1),
		Value:  message(t, "x"),
		Errors: []filter.FilterError{{Message: "m", Filter: "f"}},
	}
	if err := s.Write(context.Background(), []Record{rec}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got, want := string(b), `{"source":"a","value":{"message":"x"}}`+"\n"; got != want {
		t.Fatalf("file = %q, want %q", got, want)
	}
}

func TestJSONLConfigErrors(t *testing.T) {
	t.Parallel()

	_, err := New(config.Sink{Kind: "jsonl"})
	var ce *config.ConfigError
	if !errors.As(err, &ce) || ce.Key != "path" {
		t.Fatalf("New(no path) error = %v; want ConfigError on path", err)
	}
	_, err = New(config.Sink{Kind: "jsonl", Path: "-", Options: config.Options{"append": "sometimes"}})
	if !errors.As(err, &ce) || ce.Key != "append" {
		t.Fatalf("New(bad append) error = %v; want ConfigError on append", err)
	}
}

func TestJSONLCanceled(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	j := NewJSONL(&buf, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := j.Write(ctx, []Record{{Value: data.NewStruct()}}); !errors.Is(err, context.Canceled) {
		t.Fatalf("Write(canceled) error = %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("canceled write produced output %q", buf.String())
	}
}

func TestDiscardCounts(t *testing.T) {
	t.Parallel()

	s, err := New(config.Sink{Kind: "discard"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	d := s.(*Discard)
	for i := 0; i < 3; i++ {
		if err := d.Write(context.Background(), make([]Record, 4)); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if d.Count() != 12 {
		t.Fatalf("Count() = %d, want 12", d.Count())
	}
}
