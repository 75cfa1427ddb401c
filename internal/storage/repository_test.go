package storage

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"fileflow/internal/source"
)

// fakeRepo is a minimal Repository implementation for tests.
type fakeRepo struct {
	closed bool
	execs  []string
}

func (f *fakeRepo) LoadOffset(ctx context.Context, key string) (source.SourceOffset, bool, error) {
	return source.StartOffset(), false, nil
}
func (f *fakeRepo) SaveOffset(ctx context.Context, key string, off source.SourceOffset) error {
	return nil
}
func (f *fakeRepo) Close() { f.closed = true }

func (f *fakeRepo) Exec(ctx context.Context, sql string) error {
	f.execs = append(f.execs, sql)
	return nil
}

// TestRegisterAndNew_Success verifies that registering a backend enables New()
// to return the corresponding repository.
func TestRegisterAndNew_Success(t *testing.T) {
	t.Parallel()

	kind := "fake"
	Register(kind, func(ctx context.Context, cfg Config) (Repository, error) {
		return &fakeRepo{}, nil
	})

	repo, err := New(context.Background(), Config{Kind: kind})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if repo == nil {
		t.Fatalf("New returned nil repo")
	}

	// Ensure ListKinds contains the registered kind.
	kinds := ListKinds()
	found := false
	for _, k := range kinds {
		if k == kind {
			found = true
			break
		}
	}
	if !found {
		t.Fatalf("registered kind %q not present in ListKinds: %v", kind, kinds)
	}
}

// TestNew_Unsupported verifies that unsupported kinds return a helpful error.
func TestNew_Unsupported(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), Config{Kind: "does-not-exist"})
	if err == nil {
		t.Fatalf("expected error for unsupported kind")
	}
	if got, want := err.Error(), "unsupported storage.kind=does-not-exist"; got != want {
		t.Fatalf("error = %q, want %q", got, want)
	}
}

// TestRegister_Override verifies that re-registering a kind overrides the
// previous factory (useful for tests and dynamic wiring).
func TestRegister_Override(t *testing.T) {
	t.Parallel()

	kind := "override"
	calls := 0

	Register(kind, func(ctx context.Context, cfg Config) (Repository, error) {
		calls++
		return &fakeRepo{}, nil
	})
	Register(kind, func(ctx context.Context, cfg Config) (Repository, error) {
		calls += 10
		return &fakeRepo{}, nil
	})

	_, err := New(context.Background(), Config{Kind: kind})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if calls != 10 { // only the second factory should have been used
		t.Fatalf("factory call count = %d, want 10", calls)
	}
}

// TestListKinds_Snapshot performs a shallow sanity check that ListKinds returns
// a copy (mutations by caller do not affect internal registry).
func TestListKinds_Snapshot(t *testing.T) {
	t.Parallel()

	k := "snap"
	Register(k, func(ctx context.Context, cfg Config) (Repository, error) { return &fakeRepo{}, nil })

	a := ListKinds()
	if len(a) == 0 {
		t.Fatalf("ListKinds empty after registration")
	}
	// Mutate the returned slice; registry should be unaffected.
	a[0] = "mutated"

	b := ListKinds()
	if reflect.DeepEqual(a, b) {
		t.Fatalf("ListKinds returned same slice; want snapshot copy")
	}
}

// TestRegister_AllowsErrors shows factories can return errors that bubble up.
func TestRegister_AllowsErrors(t *testing.T) {
	t.Parallel()

	kind := "errkind"
	want := errors.New("boom")

	Register(kind, func(ctx context.Context, cfg Config) (Repository, error) {
		return nil, want
	})

	_, err := New(context.Background(), Config{Kind: kind})
	if !errors.Is(err, want) {
		t.Fatalf("want %v, got %v", want, err)
	}
}

// TestNew_DefaultTable verifies an empty table name is replaced before the
// factory runs.
func TestNew_DefaultTable(t *testing.T) {
	t.Parallel()

	kind := "default-table"
	var got Config
	Register(kind, func(ctx context.Context, cfg Config) (Repository, error) {
		got = cfg
		return &fakeRepo{}, nil
	})

	if _, err := New(context.Background(), Config{Kind: kind, DSN: "x"}); err != nil {
		t.Fatalf("New error: %v", err)
	}
	if got.Table != DefaultTable || got.DSN != "x" {
		t.Fatalf("factory cfg = %+v; want table %q", got, DefaultTable)
	}
}

// TestEnsureOffsetTable covers the registered and unregistered paths.
func TestEnsureOffsetTable(t *testing.T) {
	t.Parallel()

	RegisterDDL("ddl-fake", func(ctx context.Context, repo Repository, table string) error {
		return repo.Exec(ctx, "CREATE "+table)
	})
	repo := &fakeRepo{}
	if err := EnsureOffsetTable(context.Background(), Config{Kind: "ddl-fake"}, repo); err != nil {
		t.Fatalf("EnsureOffsetTable error: %v", err)
	}
	if len(repo.execs) != 1 || repo.execs[0] != "CREATE "+DefaultTable {
		t.Fatalf("execs = %v", repo.execs)
	}

	err := EnsureOffsetTable(context.Background(), Config{Kind: "ddl-missing"}, repo)
	if err == nil || !strings.Contains(err.Error(), "ddl-missing") {
		t.Fatalf("err = %v; want unregistered kind error", err)
	}

	boom := errors.New("boom")
	RegisterDDL("ddl-err", func(ctx context.Context, repo Repository, table string) error { return boom })
	if err := EnsureOffsetTable(context.Background(), Config{Kind: "ddl-err", Table: "t"}, repo); !errors.Is(err, boom) {
		t.Fatalf("err = %v; want wrapped boom", err)
	}
}
