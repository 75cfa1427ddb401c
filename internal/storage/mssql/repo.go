// Package mssql implements the offset store on Microsoft SQL Server through
// github.com/microsoft/go-mssqldb. Offsets are upserted with MERGE.
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/microsoft/go-mssqldb"
	"github.com/microsoft/go-mssqldb/msdsn"

	"fileflow/internal/storage/sqlrepo"
)

// Config holds MSSQL repository configuration.
type Config struct {
	DSN   string
	Table string
}

// msIdent safely quotes a SQL Server identifier using [brackets], escaping ].
func msIdent(id string) string { return `[` + strings.ReplaceAll(id, `]`, `]]`) + `]` }

// msBind is the @pN placeholder style of go-mssqldb.
func msBind(n int) string { return fmt.Sprintf("@p%d", n) }

var dialect = sqlrepo.Dialect{
	Name:  "mssql",
	Bind:  msBind,
	Ident: msIdent,
	CreateTable: func(table string) string {
		// NVARCHAR(450) is the widest key that fits the 900-byte index limit.
		return "IF OBJECT_ID(N'" + strings.ReplaceAll(table, "'", "''") + "', N'U') IS NULL\n" +
			"CREATE TABLE " + table + ` (
  source_key NVARCHAR(450) NOT NULL PRIMARY KEY,
  position   BIGINT NOT NULL,
  rows_read  BIGINT NOT NULL,
  read_ts    BIGINT NOT NULL
)`
	},
	Upsert: func(d sqlrepo.Dialect, table string) string {
		return "MERGE INTO " + table + " WITH (HOLDLOCK) AS T\n" +
			"USING (SELECT " + d.Bind(1) + " AS source_key, " + d.Bind(2) + " AS position, " +
			d.Bind(3) + " AS rows_read, " + d.Bind(4) + " AS read_ts) AS S\n" +
			"ON T.source_key = S.source_key\n" +
			"WHEN MATCHED THEN UPDATE SET T.position = S.position, T.rows_read = S.rows_read, T.read_ts = S.read_ts\n" +
			"WHEN NOT MATCHED THEN INSERT (source_key, position, rows_read, read_ts)" +
			" VALUES (S.source_key, S.position, S.rows_read, S.read_ts);"
	},
}

// Repository is an MSSQL-backed offset store.
type Repository struct {
	*sqlrepo.Repository
}

// NewRepository constructs a Repository and returns a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	// Validate DSN early to fail fast on obvious mistakes.
	if _, err := msdsn.Parse(cfg.DSN); err != nil {
		return nil, nil, fmt.Errorf("mssql dsn: %w", err)
	}
	db, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("sql.Open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ping: %w", err)
	}
	close := func() { _ = db.Close() }
	return &Repository{Repository: sqlrepo.New(db, dialect, cfg.Table)}, close, nil
}
