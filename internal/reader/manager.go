package reader

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"fileflow/internal/source"
)

// ErrClosed is returned when an iterator is requested from a closed reader.
var ErrClosed = errors.New("reader: closed")

// Manager tracks the iterators a reader has handed out so they can all be
// released at shutdown. The zero value is ready to use.
type Manager struct {
	mu     sync.Mutex
	open   map[*managed]source.Context
	closed atomic.Bool
}

// managed closes the wrapped iterator once and unregisters it.
type managed struct {
	Iterator
	m    *Manager
	once sync.Once
	err  error
}

func (w *managed) Skipped() int {
	if sc, ok := w.Iterator.(SkipCounter); ok {
		return sc.Skipped()
	}
	return 0
}

func (w *managed) Close() error {
	w.once.Do(func() {
		w.err = w.Iterator.Close()
		w.m.remove(w)
	})
	return w.err
}

// Register tracks it under sc. A closed manager closes it and returns
// ErrClosed.
func (m *Manager) Register(sc source.Context, it Iterator) (Iterator, error) {
	m.mu.Lock()
	if m.closed.Load() {
		m.mu.Unlock()
		_ = it.Close()
		return nil, ErrClosed
	}
	if m.open == nil {
		m.open = make(map[*managed]source.Context)
	}
	w := &managed{Iterator: it, m: m}
	m.open[w] = sc
	m.mu.Unlock()
	return w, nil
}

func (m *Manager) remove(w *managed) {
	m.mu.Lock()
	delete(m.open, w)
	m.mu.Unlock()
}

// Len is the number of registered iterators that are still open.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.open)
}

// Closed reports whether CloseAll has been called.
func (m *Manager) Closed() bool { return m.closed.Load() }

// CloseAll closes every open iterator. Only the first call does any work;
// failures are logged and joined into its result.
func (m *Manager) CloseAll() error {
	if !m.closed.CompareAndSwap(false, true) {
		return nil
	}

	m.mu.Lock()
	snapshot := make(map[*managed]source.Context, len(m.open))
	for w, sc := range m.open {
		snapshot[w] = sc
	}
	m.mu.Unlock()

	var errs []error
	for w, sc := range snapshot {
		if err := w.Close(); err != nil {
			log.Printf("reader: close iterator %s: %v", sc.Metadata.Path, err)
			errs = append(errs, fmt.Errorf("close %s: %w", sc.Metadata.Path, err))
		}
	}
	return errors.Join(errs...)
}

// Base provides NewIterator and Close for readers built on an
// IteratorFactory. Concrete readers embed it and set the factory in
// Configure.
type Base struct {
	Manager
	factory IteratorFactory
}

func (b *Base) NewIterator(ctx context.Context, sc source.Context) (Iterator, error) {
	if b.Closed() {
		return nil, ErrClosed
	}
	if b.factory == nil {
		return nil, errors.New("reader: not configured")
	}
	it, err := b.factory(ctx, sc)
	if err != nil {
		return nil, err
	}
	return b.Register(sc, it)
}

func (b *Base) Close() error { return b.CloseAll() }
