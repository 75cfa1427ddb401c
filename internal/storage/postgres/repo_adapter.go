// Package postgres wires the Postgres backend into the storage-agnostic
// factory by registering a constructor and a DDL bootstrapper at init time.
// Callers obtain a Repository via storage.New(...) without importing this
// package directly.
package postgres

import (
	"context"

	"fileflow/internal/storage"
)

// newRepository is a test hook that points to NewRepository by default.
// Tests may replace this variable to avoid real DB connections.
var newRepository = NewRepository

// wrappedRepo implements storage.Repository by delegating to the concrete
// *postgres.Repository while providing a Close method that calls the close
// function returned by NewRepository.
type wrappedRepo struct {
	*Repository
	closeFn func()
}

// Ensure wrappedRepo satisfies storage.Repository at compile time.
var _ storage.Repository = (*wrappedRepo)(nil)

// Close implements storage.Repository.Close.
func (w *wrappedRepo) Close() {
	if w.closeFn != nil {
		w.closeFn()
	}
}

// init registers the "postgres" backend with the storage factory and a DDL
// bootstrapper for storage.Kind == "postgres".
//
// Typical usage:
//
//	repo, err := storage.New(ctx, storage.Config{Kind: "postgres", DSN: dsn})
//	defer repo.Close()
//
//	if p.Offsets.AutoCreateTable {
//	    if err := storage.EnsureOffsetTable(ctx, cfg, repo); err != nil {
//	        // handle DDL error
//	    }
//	}
func init() {
	storage.Register("postgres", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		r, closeFn, err := newRepository(ctx, Config{DSN: cfg.DSN, Table: cfg.Table})
		if err != nil {
			return nil, err
		}
		return &wrappedRepo{Repository: r, closeFn: closeFn}, nil
	})

	storage.RegisterDDL("postgres", func(ctx context.Context, repo storage.Repository, table string) error {
		return repo.Exec(ctx, render(table).create)
	})
}
