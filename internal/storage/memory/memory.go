// Package memory is an in-process offset store. Offsets are lost when the
// process exits; it backs tests and pipelines with offsets.kind "none".
package memory

import (
	"context"
	"sync"

	"fileflow/internal/source"
	"fileflow/internal/storage"
)

// Repository keeps offsets in a map guarded by a mutex.
type Repository struct {
	mu      sync.Mutex
	offsets map[string]source.SourceOffset
}

var _ storage.Repository = (*Repository)(nil)

func New() *Repository {
	return &Repository{offsets: make(map[string]source.SourceOffset)}
}

func (r *Repository) LoadOffset(_ context.Context, key string) (source.SourceOffset, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	off, ok := r.offsets[key]
	if !ok {
		return source.StartOffset(), false, nil
	}
	return off, true, nil
}

func (r *Repository) SaveOffset(_ context.Context, key string, off source.SourceOffset) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.offsets[key] = off
	return nil
}

// Exec accepts and ignores any statement.
func (r *Repository) Exec(context.Context, string) error { return nil }

func (r *Repository) Close() {}

// Len returns the number of stored keys.
func (r *Repository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.offsets)
}

func init() {
	for _, kind := range []string{"memory", "none"} {
		storage.Register(kind, func(context.Context, storage.Config) (storage.Repository, error) {
			return New(), nil
		})
		storage.RegisterDDL(kind, func(context.Context, storage.Repository, string) error { return nil })
	}
}
