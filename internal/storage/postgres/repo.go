// Package postgres implements the offset store on Postgres using pgx v5.
// Offsets are upserted with INSERT ... ON CONFLICT.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"fileflow/internal/source"
)

// Config holds Postgres repository configuration.
type Config struct {
	DSN   string // connection string for pgxpool
	Table string // possibly schema-qualified offsets table, e.g. "etl.fileflow_offsets"
}

// Repository is a Postgres-backed offset store.
type Repository struct {
	pool  *pgxpool.Pool
	cfg   Config
	stmts statements
}

type statements struct {
	create, load, save string
}

func render(table string) statements {
	fq := pgFQN(table)
	return statements{
		create: "CREATE TABLE IF NOT EXISTS " + fq + ` (
  source_key TEXT PRIMARY KEY,
  position   BIGINT NOT NULL,
  rows_read  BIGINT NOT NULL,
  read_ts    BIGINT NOT NULL
)`,
		load: "SELECT position, rows_read, read_ts FROM " + fq + " WHERE source_key = $1",
		save: "INSERT INTO " + fq + " (source_key, position, rows_read, read_ts) VALUES ($1, $2, $3, $4)" +
			" ON CONFLICT (source_key) DO UPDATE SET " + strings.Join(updateColumns([]string{"position", "rows_read", "read_ts"}), ", "),
	}
}

// NewRepository constructs a Repository and returns a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("pgxpool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping: %w", err)
	}
	close := func() { pool.Close() }
	return &Repository{pool: pool, cfg: cfg, stmts: render(cfg.Table)}, close, nil
}

// updateColumns generates a list of column updates in the format: "col = EXCLUDED.col"
func updateColumns(cols []string) []string {
	var updates []string
	for _, col := range cols {
		updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", pgIdent(col), pgIdent(col)))
	}
	return updates
}

// pgIdent safely quotes a single identifier segment for Postgres.
func pgIdent(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }

// pgFQN quotes a possibly schema-qualified name like "public.offsets" to
// "public"."offsets". If no dot is present, returns a single quoted ident.
func pgFQN(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = pgIdent(p)
	}
	return strings.Join(parts, ".")
}

// LoadOffset implements storage.Repository.LoadOffset.
func (r *Repository) LoadOffset(ctx context.Context, key string) (source.SourceOffset, bool, error) {
	var off source.SourceOffset
	err := r.pool.QueryRow(ctx, r.stmts.load, key).Scan(&off.Position, &off.Rows, &off.Timestamp)
	if errors.Is(err, pgx.ErrNoRows) {
		return source.StartOffset(), false, nil
	}
	if err != nil {
		return source.StartOffset(), false, fmt.Errorf("postgres: load offset %s: %w", key, err)
	}
	return off, true, nil
}

// SaveOffset implements storage.Repository.SaveOffset.
func (r *Repository) SaveOffset(ctx context.Context, key string, off source.SourceOffset) error {
	if _, err := r.pool.Exec(ctx, r.stmts.save, key, off.Position, off.Rows, off.Timestamp); err != nil {
		return fmt.Errorf("postgres: save offset %s: %w", key, err)
	}
	return nil
}

// Exec implements storage.Repository.Exec for Postgres.
func (r *Repository) Exec(ctx context.Context, sql string) error {
	_, err := r.pool.Exec(ctx, sql)
	return err
}
