// Package sqlrepo implements the offset store on top of database/sql. The
// SQLite, MySQL and SQL Server backends share it and differ only by Dialect.
//
// The offsets table has four columns:
//
//	source_key  text, primary key
//	position    bigint
//	rows_read   bigint
//	read_ts     bigint (unix milliseconds)
package sqlrepo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"fileflow/internal/source"
)

// Dialect captures the SQL differences between backends.
type Dialect struct {
	Name string
	// Bind returns the placeholder of the n-th (1-based) argument.
	Bind func(n int) string
	// Ident quotes one identifier segment.
	Ident func(id string) string
	// CreateTable returns the idempotent DDL for the quoted table name.
	CreateTable func(table string) string
	// Upsert returns the statement storing (source_key, position, rows_read,
	// read_ts), bound in that order.
	Upsert func(d Dialect, table string) string
}

// FQN quotes a possibly schema-qualified name segment by segment.
func (d Dialect) FQN(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = d.Ident(p)
	}
	return strings.Join(parts, ".")
}

// Binds returns n placeholders joined by ", ".
func (d Dialect) Binds(n int) string {
	out := make([]string, n)
	for i := range out {
		out[i] = d.Bind(i + 1)
	}
	return strings.Join(out, ", ")
}

// QuestionBind is the "?" placeholder style of SQLite and MySQL.
func QuestionBind(int) string { return "?" }

// Statements are the rendered SQL of one table.
type Statements struct {
	Create string
	Select string
	Upsert string
}

// Render builds the statements for table.
func (d Dialect) Render(table string) Statements {
	fq := d.FQN(table)
	return Statements{
		Create: d.CreateTable(fq),
		Select: fmt.Sprintf("SELECT position, rows_read, read_ts FROM %s WHERE source_key = %s", fq, d.Bind(1)),
		Upsert: d.Upsert(d, fq),
	}
}

// Repository is a database/sql offset store.
type Repository struct {
	db      *sql.DB
	dialect Dialect
	stmts   Statements
}

// New wraps an open database. The caller keeps ownership of db.
func New(db *sql.DB, d Dialect, table string) *Repository {
	return &Repository{db: db, dialect: d, stmts: d.Render(table)}
}

// Statements returns the rendered SQL.
func (r *Repository) Statements() Statements { return r.stmts }

func (r *Repository) LoadOffset(ctx context.Context, key string) (source.SourceOffset, bool, error) {
	var off source.SourceOffset
	err := r.db.QueryRowContext(ctx, r.stmts.Select, key).Scan(&off.Position, &off.Rows, &off.Timestamp)
	if errors.Is(err, sql.ErrNoRows) {
		return source.StartOffset(), false, nil
	}
	if err != nil {
		return source.StartOffset(), false, fmt.Errorf("%s: load offset %s: %w", r.dialect.Name, key, err)
	}
	return off, true, nil
}

func (r *Repository) SaveOffset(ctx context.Context, key string, off source.SourceOffset) error {
	if _, err := r.db.ExecContext(ctx, r.stmts.Upsert, key, off.Position, off.Rows, off.Timestamp); err != nil {
		return fmt.Errorf("%s: save offset %s: %w", r.dialect.Name, key, err)
	}
	return nil
}

// Exec executes an arbitrary statement. Blank statements are ignored.
func (r *Repository) Exec(ctx context.Context, stmt string) error {
	if strings.TrimSpace(stmt) == "" {
		return nil
	}
	if _, err := r.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("%s: exec: %w", r.dialect.Name, err)
	}
	return nil
}

// EnsureTable runs the CREATE statement of the table.
func (r *Repository) EnsureTable(ctx context.Context) error {
	return r.Exec(ctx, r.stmts.Create)
}
