// Package file implements a local filesystem-backed data source.
package file

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"fileflow/internal/datasource"
	"fileflow/internal/source"
)

// Local is a filesystem data source that opens files from the local disk.
type Local struct{ path string }

var _ datasource.Source = (*Local)(nil)

func init() {
	datasource.Register("file", func(loc string) datasource.Source {
		return NewLocal(strings.TrimPrefix(loc, "file://"))
	})
}

// NewLocal returns a new Local data source bound to the provided filesystem
// path. The returned value is safe for concurrent use by multiple goroutines.
func NewLocal(path string) *Local { return &Local{path: path} }

// Open opens the configured path for sequential reading.
//
// Behavior:
//   - If the context is already canceled or its deadline exceeded at the time
//     of the call, Open returns the context error without touching the
//     filesystem.
//   - Any filesystem error is wrapped with the path while still permitting
//     errors.Is checks (e.g. errors.Is(err, os.ErrNotExist)).
//   - On Linux the kernel is told to expect sequential access.
func (l *Local) Open(ctx context.Context) (io.ReadSeekCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", l.path, err)
	}
	adviseSequential(f)
	return f, nil
}

// Stat describes the file without opening it.
func (l *Local) Stat(ctx context.Context) (source.Metadata, error) {
	if err := ctx.Err(); err != nil {
		return source.Metadata{}, err
	}
	fi, err := os.Stat(l.path)
	if err != nil {
		return source.Metadata{}, fmt.Errorf("stat %s: %w", l.path, err)
	}
	if fi.IsDir() {
		return source.Metadata{}, fmt.Errorf("stat %s: is a directory", l.path)
	}
	return source.Metadata{
		Name:    filepath.Base(l.path),
		Path:    l.path,
		Size:    fi.Size(),
		ModTime: fi.ModTime(),
	}, nil
}
