package reader

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync"
	"sync/atomic"

	"fileflow/internal/source"
)

// cursor is the state every file-backed iterator shares.
//
// Close may run on another goroutine than Next, e.g. when a reader is shut
// down under a running task. While Next or Seek is using rc, Close only
// marks the cursor closed and the call in progress releases rc on its way
// out.
type cursor struct {
	ctx  context.Context
	sc   source.Context
	rc   io.ReadSeekCloser
	rec  Record
	err  error
	done bool
	// skipped counts input the iterator could not turn into a record.
	skipped int

	mu       sync.Mutex
	busy     bool
	rcClosed bool
	closed   atomic.Bool
}

func (c *cursor) Record() Record          { return c.rec }
func (c *cursor) Err() error              { return c.err }
func (c *cursor) Context() source.Context { return c.sc }
func (c *cursor) Skipped() int            { return c.skipped }

func (c *cursor) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed.CompareAndSwap(false, true) || c.busy {
		return nil
	}
	c.rcClosed = true
	return c.rc.Close()
}

// enter claims rc for one Next or Seek call. It fails once the cursor is
// closed.
func (c *cursor) enter() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed.Load() {
		return false
	}
	c.busy = true
	return true
}

// leave releases rc and closes it if Close ran in the meantime.
func (c *cursor) leave() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.busy = false
	if c.closed.Load() && !c.rcClosed {
		c.rcClosed = true
		if err := c.rc.Close(); err != nil {
			log.Printf("reader: close %s: %v", c.sc.Metadata.Path, err)
		}
	}
}

// ready reports whether Next may read another record.
func (c *cursor) ready() bool {
	if c.err != nil || c.done || c.closed.Load() {
		return false
	}
	if err := c.ctx.Err(); err != nil {
		c.err = err
		return false
	}
	return true
}

func (c *cursor) seekTo(pos int64) error {
	if !c.enter() {
		return ErrClosed
	}
	defer c.leave()
	if _, err := c.rc.Seek(pos, io.SeekStart); err != nil {
		return fmt.Errorf("seek %s to %d: %w", c.sc.Metadata.Path, pos, err)
	}
	c.done = false
	c.err = nil
	return nil
}

// open opens the source of sc and seeks the new iterator to the stored
// offset when there is one.
func open[T Iterator](ctx context.Context, sc source.Context, build func(*cursor) (T, error)) (Iterator, error) {
	rc, err := openSource(ctx, sc.Metadata.Path)
	if err != nil {
		return nil, err
	}
	it, err := build(&cursor{ctx: ctx, sc: sc, rc: rc})
	if err != nil {
		_ = rc.Close()
		return nil, err
	}
	if !sc.Offset.IsStart() {
		if err := it.Seek(sc.Offset); err != nil {
			_ = it.Close()
			return nil, err
		}
	}
	return it, nil
}
