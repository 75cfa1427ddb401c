// Package reader turns source files into iterators of typed records with
// per-record offsets. Concrete readers (line, csv, json, xml) register themselves
// by kind at init time.
package reader

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"fileflow/internal/config"
	"fileflow/internal/datasource"
	// Plain paths and file:// locations.
	_ "fileflow/internal/datasource/file"
	"fileflow/internal/source"
	"fileflow/pkg/data"
)

// Record is one logical record read from a source together with its
// position.
type Record struct {
	Value  *data.TypedStruct
	Offset source.RecordOffset
}

// Iterator is a forward-only cursor over the records of one source.
//
//	for it.Next() {
//		rec := it.Record()
//	}
//	if err := it.Err(); err != nil { ... }
//
// Close is safe to call more than once.
type Iterator interface {
	Next() bool
	Record() Record
	Err() error
	// Seek moves the cursor so that the next record starts at or after
	// off.Position.
	Seek(off source.SourceOffset) error
	Close() error
	Context() source.Context
}

// SkipCounter is implemented by iterators that drop input they cannot
// parse. Every built-in iterator implements it.
type SkipCounter interface {
	Skipped() int
}

// IteratorFactory opens an iterator positioned at sc.Offset.
type IteratorFactory func(ctx context.Context, sc source.Context) (Iterator, error)

// Reader creates iterators for sources and owns them until Close.
type Reader interface {
	Configure(s config.Settings) error
	NewIterator(ctx context.Context, sc source.Context) (Iterator, error)
	Close() error
}

// Factory returns an unconfigured Reader.
type Factory func() Reader

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register makes a reader kind available to New. It is called from init.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[kind] = f
}

// New returns a configured reader of the given kind.
func New(kind string, s config.Settings) (Reader, error) {
	mu.RLock()
	f, ok := factories[kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown reader kind %q", kind)
	}
	r := f()
	if err := r.Configure(s); err != nil {
		return nil, fmt.Errorf("reader %s: %w", kind, err)
	}
	return r, nil
}

// Kinds lists the registered reader kinds in sorted order.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// openSource is swapped in tests.
var openSource = func(ctx context.Context, location string) (io.ReadSeekCloser, error) {
	src, err := datasource.For(location)
	if err != nil {
		return nil, err
	}
	return src.Open(ctx)
}
