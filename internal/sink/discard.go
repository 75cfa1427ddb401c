package sink

import (
	"context"
	"sync/atomic"

	"fileflow/internal/config"
)

// Discard drops every record and counts them.
type Discard struct {
	n atomic.Int64
}

func (d *Discard) Write(_ context.Context, recs []Record) error {
	d.n.Add(int64(len(recs)))
	return nil
}

func (d *Discard) Close() error { return nil }

// Count returns the number of records written so far.
func (d *Discard) Count() int64 { return d.n.Load() }

func init() {
	Register("discard", func(config.Sink) (Sink, error) { return &Discard{}, nil })
}
