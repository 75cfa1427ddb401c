// Package mssql wires the SQL Server backend into the storage factory.
package mssql

import (
	"context"

	"fileflow/internal/storage"
)

// newRepository is a test hook that points to NewRepository by default.
// Tests may replace this variable to avoid real DB connections.
var newRepository = NewRepository

var _ storage.Repository = (*wrappedRepo)(nil)

func init() {
	storage.Register("mssql", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		r, closeFn, err := newRepository(ctx, Config{DSN: cfg.DSN, Table: cfg.Table})
		if err != nil {
			return nil, err
		}
		return &wrappedRepo{Repository: r, closeFn: closeFn}, nil
	})

	storage.RegisterDDL("mssql", func(ctx context.Context, repo storage.Repository, table string) error {
		return repo.Exec(ctx, dialect.Render(table).Create)
	})
}

// wrappedRepo adapts *mssql.Repository to storage.Repository and provides Close.
type wrappedRepo struct {
	*Repository
	closeFn func()
}

func (w *wrappedRepo) Close() {
	if w.closeFn != nil {
		w.closeFn()
	}
}
