// Package sqlite implements the offset store on SQLite through the pure-Go
// modernc.org/sqlite driver. Offsets are upserted with ON CONFLICT.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"fileflow/internal/storage/sqlrepo"

	_ "modernc.org/sqlite"
)

// Config holds SQLite repository configuration derived from storage.Config.
type Config struct {
	// DSN is a SQLite connection string or file path, e.g.:
	//   "file:offsets.db?_pragma=busy_timeout(5000)"
	//   "offsets.db"
	DSN string

	// Table is the offsets table name.
	Table string
}

var dialect = sqlrepo.Dialect{
	Name:  "sqlite",
	Bind:  sqlrepo.QuestionBind,
	Ident: func(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` },
	CreateTable: func(table string) string {
		return "CREATE TABLE IF NOT EXISTS " + table + ` (
  source_key TEXT PRIMARY KEY,
  position   INTEGER NOT NULL,
  rows_read  INTEGER NOT NULL,
  read_ts    INTEGER NOT NULL
)`
	},
	Upsert: func(d sqlrepo.Dialect, table string) string {
		return "INSERT INTO " + table + " (source_key, position, rows_read, read_ts) VALUES (" + d.Binds(4) + ")" +
			" ON CONFLICT(source_key) DO UPDATE SET position = excluded.position," +
			" rows_read = excluded.rows_read, read_ts = excluded.read_ts"
	},
}

// Repository is a SQLite-backed offset store.
type Repository struct {
	*sqlrepo.Repository
}

// NewRepository opens a SQLite database using the provided DSN and returns
// a Repository plus a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, nil, fmt.Errorf("sqlite: DSN must not be empty")
	}

	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("sqlite: open: %w", err)
	}
	// One writer; ":memory:" databases are also per connection.
	db.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("sqlite: ping: %w", err)
	}

	_, _ = db.ExecContext(ctx, "PRAGMA busy_timeout = 5000;")

	closeFn := func() { db.Close() }
	return &Repository{Repository: sqlrepo.New(db, dialect, cfg.Table)}, closeFn, nil
}
