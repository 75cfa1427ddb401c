// Package sink delivers filtered records to their destination. The task
// runner writes records in batches and checkpoints offsets only after Write
// returned, so a Sink must have made the batch durable (or at least handed it
// off) by then.
package sink

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"fileflow/internal/config"
	"fileflow/internal/filter"
	"fileflow/internal/source"
	"fileflow/pkg/data"
)

// Record is one emitted record with its provenance.
type Record struct {
	Source source.Metadata
	// Offset is the offset of the input record this one was built from; for
	// records joined from several inputs it is the first of them.
	Offset source.RecordOffset
	Value  *data.TypedStruct
	// Errors are the filter failures tagged onto this record or onto the
	// inputs merged into it.
	Errors []filter.FilterError
}

// Sink receives batches of records. Write may be called from several
// goroutines at once.
type Sink interface {
	Write(ctx context.Context, recs []Record) error
	Close() error
}

// Factory builds a Sink from its configuration.
type Factory func(cfg config.Sink) (Sink, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register installs (or replaces) the factory for kind.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[kind] = f
}

// New builds the sink named by cfg.Kind.
func New(cfg config.Sink) (Sink, error) {
	mu.RLock()
	f, ok := factories[cfg.Kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported sink.kind=%s", cfg.Kind)
	}
	return f(cfg)
}

// Kinds returns the registered sink kinds, sorted.
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
