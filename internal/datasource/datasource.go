// Package datasource abstracts where source bytes come from. Locations are
// plain paths or URLs; the scheme selects the implementation.
package datasource

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"fileflow/internal/source"
)

// Source opens one input for reading. Readers seek the returned stream to
// the stored resume point, so it must support io.Seeker.
type Source interface {
	Open(ctx context.Context) (io.ReadSeekCloser, error)
	Stat(ctx context.Context) (source.Metadata, error)
}

// Factory binds a Source to a location.
type Factory func(location string) Source

var (
	mu      sync.RWMutex
	schemes = map[string]Factory{}
)

// Register installs (or replaces) the factory for scheme. Locations without
// a scheme use "file".
func Register(scheme string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	schemes[strings.ToLower(scheme)] = f
}

// Scheme returns the lower-cased scheme of location, "file" for plain paths.
func Scheme(location string) string {
	if i := strings.Index(location, "://"); i > 0 {
		return strings.ToLower(location[:i])
	}
	return "file"
}

// For returns the Source for location.
func For(location string) (Source, error) {
	scheme := Scheme(location)
	mu.RLock()
	f, ok := schemes[scheme]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("datasource: unsupported scheme %q in %s", scheme, location)
	}
	return f(location), nil
}

// Schemes lists the registered schemes, sorted.
func Schemes() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(schemes))
	for s := range schemes {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
