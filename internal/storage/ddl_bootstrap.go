package storage

import (
	"context"
	"fmt"
	"sync"
)

// DDLBootstrapper creates the offsets table for one backend through
// repo.Exec. Backends register theirs from init.
type DDLBootstrapper func(ctx context.Context, repo Repository, table string) error

var (
	ddlMu  sync.RWMutex
	ddlFns = map[string]DDLBootstrapper{}
)

// RegisterDDL registers (or replaces) the DDLBootstrapper for kind.
func RegisterDDL(kind string, fn DDLBootstrapper) {
	ddlMu.Lock()
	defer ddlMu.Unlock()
	ddlFns[kind] = fn
}

// EnsureOffsetTable creates the offsets table named by cfg if it does not
// exist yet. Callers pass the already-open Repository and stay
// backend-agnostic.
func EnsureOffsetTable(ctx context.Context, cfg Config, repo Repository) error {
	ddlMu.RLock()
	fn, ok := ddlFns[cfg.Kind]
	ddlMu.RUnlock()
	if !ok {
		return fmt.Errorf("no DDL bootstrapper registered for storage.kind=%q", cfg.Kind)
	}
	table := cfg.Table
	if table == "" {
		table = DefaultTable
	}
	if err := fn(ctx, repo, table); err != nil {
		return fmt.Errorf("ensure offsets table %s: %w", table, err)
	}
	return nil
}
