package sqlite

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"fileflow/internal/source"
	"fileflow/internal/storage"
)

/*
Package-level test helpers (TB-aware)
*/

func newRepo(tb testing.TB, dsn string) *Repository {
	tb.Helper()
	r, closeFn, err := NewRepository(context.Background(), Config{DSN: dsn, Table: "offsets"})
	if err != nil {
		tb.Fatalf("NewRepository(%q): %v", dsn, err)
	}
	tb.Cleanup(closeFn)
	if err := r.EnsureTable(context.Background()); err != nil {
		tb.Fatalf("EnsureTable: %v", err)
	}
	return r
}

func tempDSN(tb testing.TB) string {
	tb.Helper()
	return filepath.Join(tb.TempDir(), "offsets.db")
}

/*
Unit tests
*/

// TestOffsetRoundTrip stores, overwrites and reloads offsets in a real
// database file.
func TestOffsetRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r := newRepo(t, tempDSN(t))

	off, ok, err := r.LoadOffset(ctx, "/var/log/a.log")
	if err != nil || ok || off != source.StartOffset() {
		t.Fatalf("LoadOffset(unknown) = %+v, %v, %v; want start, false, nil", off, ok, err)
	}

	first := source.SourceOffset{Position: 64, Rows: -1, Timestamp: 1700000000000}
	second := source.SourceOffset{Position: 128, Rows: -1, Timestamp: 1700000000500}
	for _, o := range []source.SourceOffset{first, second} {
		if err := r.SaveOffset(ctx, "/var/log/a.log", o); err != nil {
			t.Fatalf("SaveOffset(%v): %v", o, err)
		}
	}
	if err := r.SaveOffset(ctx, "/var/log/b.csv", source.SourceOffset{Position: 10, Rows: 3}); err != nil {
		t.Fatalf("SaveOffset(b): %v", err)
	}

	got, ok, err := r.LoadOffset(ctx, "/var/log/a.log")
	if err != nil || !ok || got != second {
		t.Fatalf("LoadOffset(a) = %+v, %v, %v; want %+v", got, ok, err, second)
	}
	got, _, _ = r.LoadOffset(ctx, "/var/log/b.csv")
	if got.Rows != 3 || got.Position != 10 {
		t.Fatalf("LoadOffset(b) = %+v", got)
	}
}

// TestOffsetsSurviveReopen checks that a second process sees the checkpoint.
func TestOffsetsSurviveReopen(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dsn := tempDSN(t)

	want := source.SourceOffset{Position: 4096, Rows: 17, Timestamp: 5}
	{
		r, closeFn, err := NewRepository(ctx, Config{DSN: dsn, Table: "offsets"})
		if err != nil {
			t.Fatalf("NewRepository: %v", err)
		}
		if err := r.EnsureTable(ctx); err != nil {
			t.Fatalf("EnsureTable: %v", err)
		}
		if err := r.SaveOffset(ctx, "k", want); err != nil {
			t.Fatalf("SaveOffset: %v", err)
		}
		closeFn()
	}

	r := newRepo(t, dsn)
	got, ok, err := r.LoadOffset(ctx, "k")
	if err != nil || !ok || got != want {
		t.Fatalf("LoadOffset after reopen = %+v, %v, %v; want %+v", got, ok, err, want)
	}
}

// TestConcurrentSaves runs one writer per key, the way the task runner does.
func TestConcurrentSaves(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r := newRepo(t, tempDSN(t))

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			key := fmt.Sprintf("src-%d", w)
			for i := 1; i <= 25; i++ {
				if err := r.SaveOffset(ctx, key, source.SourceOffset{Position: int64(i)}); err != nil {
					t.Errorf("SaveOffset(%s): %v", key, err)
					return
				}
			}
		}(w)
	}
	wg.Wait()

	for w := 0; w < 4; w++ {
		got, ok, err := r.LoadOffset(ctx, fmt.Sprintf("src-%d", w))
		if err != nil || !ok || got.Position != 25 {
			t.Fatalf("src-%d = %+v, %v, %v; want position 25", w, got, ok, err)
		}
	}
}

func TestDialectStatements(t *testing.T) {
	t.Parallel()

	st := dialect.Render("main.offsets")
	if !strings.HasPrefix(st.Create, `CREATE TABLE IF NOT EXISTS "main"."offsets"`) {
		t.Fatalf("Create = %q", st.Create)
	}
	if !strings.Contains(st.Upsert, "VALUES (?, ?, ?, ?) ON CONFLICT(source_key) DO UPDATE") {
		t.Fatalf("Upsert = %q", st.Upsert)
	}
	if st.Select != `SELECT position, rows_read, read_ts FROM "main"."offsets" WHERE source_key = ?` {
		t.Fatalf("Select = %q", st.Select)
	}
}

func TestNewRepositoryRejectsEmptyDSN(t *testing.T) {
	t.Parallel()

	if _, _, err := NewRepository(context.Background(), Config{DSN: "  "}); err == nil {
		t.Fatalf("NewRepository(blank DSN) error = nil")
	}
}

// TestDDLBootstrapRegistered goes through the backend-agnostic entry points.
func TestDDLBootstrapRegistered(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r, closeFn, err := NewRepository(ctx, Config{DSN: tempDSN(t), Table: "ff"})
	if err != nil {
		t.Fatalf("NewRepository: %v", err)
	}
	defer closeFn()

	repo := &wrappedRepo{Repository: r}
	cfg := storage.Config{Kind: "sqlite", Table: "ff"}
	for i := 0; i < 2; i++ {
		if err := storage.EnsureOffsetTable(ctx, cfg, repo); err != nil {
			t.Fatalf("EnsureOffsetTable #%d: %v", i+1, err)
		}
	}
	if err := repo.SaveOffset(ctx, "x", source.SourceOffset{Position: 1}); err != nil {
		t.Fatalf("SaveOffset after bootstrap: %v", err)
	}
}
