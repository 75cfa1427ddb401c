// Package storage contains the backend-agnostic offset store contract and the
// factory that selects a backend by kind. Backends register themselves from
// init; import fileflow/internal/storage/all to enable every built-in one.
package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"fileflow/internal/source"
)

// DefaultTable is the offsets table used when Config.Table is empty.
const DefaultTable = "fileflow_offsets"

// Config selects and parameterizes an offset store backend.
type Config struct {
	Kind  string
	DSN   string
	Table string
}

// Repository persists one resume point per source key.
type Repository interface {
	// LoadOffset returns the stored offset for key. ok is false when nothing
	// was stored yet; the returned offset is then source.StartOffset().
	LoadOffset(ctx context.Context, key string) (off source.SourceOffset, ok bool, err error)
	// SaveOffset stores off for key, replacing any previous value.
	SaveOffset(ctx context.Context, key string, off source.SourceOffset) error
	// Exec runs a backend statement, typically DDL.
	Exec(ctx context.Context, sql string) error
	Close()
}

// Factory opens a Repository for cfg.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

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

// New opens the backend named by cfg.Kind.
func New(ctx context.Context, cfg Config) (Repository, error) {
	mu.RLock()
	f, ok := factories[cfg.Kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported storage.kind=%s", cfg.Kind)
	}
	if strings.TrimSpace(cfg.Table) == "" {
		cfg.Table = DefaultTable
	}
	return f(ctx, cfg)
}

// ListKinds returns the registered kinds, sorted. The slice is a copy.
func ListKinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
