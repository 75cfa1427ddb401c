// Package mysql implements the offset store on MySQL through
// github.com/go-sql-driver/mysql. Offsets are upserted with
// ON DUPLICATE KEY UPDATE.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"fileflow/internal/storage/sqlrepo"
)

// Config holds MySQL repository configuration.
type Config struct {
	// DSN uses the driver format, e.g. "user:pass@tcp(db:3306)/etl".
	DSN   string
	Table string
}

// myIdent quotes a MySQL identifier with backticks.
func myIdent(id string) string { return "`" + strings.ReplaceAll(id, "`", "``") + "`" }

var dialect = sqlrepo.Dialect{
	Name:  "mysql",
	Bind:  sqlrepo.QuestionBind,
	Ident: myIdent,
	CreateTable: func(table string) string {
		// 512 utf8mb4 characters stay under the InnoDB index key limit.
		return "CREATE TABLE IF NOT EXISTS " + table + ` (
  source_key VARCHAR(512) NOT NULL PRIMARY KEY,
  position   BIGINT NOT NULL,
  rows_read  BIGINT NOT NULL,
  read_ts    BIGINT NOT NULL
) DEFAULT CHARSET=utf8mb4`
	},
	Upsert: func(d sqlrepo.Dialect, table string) string {
		return "INSERT INTO " + table + " (source_key, position, rows_read, read_ts) VALUES (" + d.Binds(4) + ")" +
			" ON DUPLICATE KEY UPDATE position = VALUES(position)," +
			" rows_read = VALUES(rows_read), read_ts = VALUES(read_ts)"
	},
}

// Repository is a MySQL-backed offset store.
type Repository struct {
	*sqlrepo.Repository
}

// parseDSN validates dsn and applies the connection defaults.
func parseDSN(dsn string) (*mysql.Config, error) {
	mc, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("mysql dsn: %w", err)
	}
	if mc.Timeout == 0 {
		mc.Timeout = 5 * time.Second
	}
	return mc, nil
}

// NewRepository connects and returns a Repository plus a Close function.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	mc, err := parseDSN(cfg.DSN)
	if err != nil {
		return nil, nil, err
	}
	conn, err := mysql.NewConnector(mc)
	if err != nil {
		return nil, nil, fmt.Errorf("mysql connector: %w", err)
	}
	db := sql.OpenDB(conn)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ping: %w", err)
	}
	closeFn := func() { _ = db.Close() }
	return &Repository{Repository: sqlrepo.New(db, dialect, cfg.Table)}, closeFn, nil
}
