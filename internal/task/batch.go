package task

import (
	"context"
	"fmt"
	"log"
	"time"

	"fileflow/internal/metrics"
	"fileflow/internal/sink"
	"fileflow/internal/source"
	"fileflow/internal/storage"
)

// batcher accumulates the records emitted for one source and commits them:
// the batch is written to the sink first and the checkpoint is saved only
// after the write returned. A crash between the two replays the batch, so
// delivery is at-least-once and no input byte is skipped.
type batcher struct {
	job     string
	key     string
	size    int
	verbose bool
	sink    sink.Sink
	store   storage.Repository
	c       *counters

	recs   []sink.Record
	inputs int

	saved      source.SourceOffset // last persisted checkpoint
	checkpoint source.SourceOffset // checkpoint covering everything in recs

	batches     int64
	written     int64
	start       time.Time
	lastFlushTS time.Time
}

func newBatcher(job, key string, size int, verbose bool, s sink.Sink, store storage.Repository, c *counters, from source.SourceOffset) *batcher {
	now := time.Now()
	return &batcher{
		job: job, key: key, size: size, verbose: verbose,
		sink: s, store: store, c: c,
		recs:  make([]sink.Record, 0, size),
		saved: from, checkpoint: from,
		start: now, lastFlushTS: now,
	}
}

func (b *batcher) add(recs ...sink.Record) { b.recs = append(b.recs, recs...) }

// advance moves the pending checkpoint forward; it never moves backwards.
func (b *batcher) advance(off source.SourceOffset) {
	b.inputs++
	if b.checkpoint.Before(off) {
		b.checkpoint = off
	}
}

// full reports whether enough records or inputs have accumulated to commit.
func (b *batcher) full() bool {
	return len(b.recs) >= b.size || b.inputs >= b.size
}

// flush writes pending records and persists the checkpoint.
func (b *batcher) flush(ctx context.Context) error {
	n := len(b.recs)
	if n > 0 {
		if err := b.sink.Write(ctx, b.recs); err != nil {
			log.Printf("task: sink write failed key=%s records=%d err=%v", b.key, n, err)
			return fmt.Errorf("write batch: %w", err)
		}
		b.batches++
		b.written += int64(n)
		b.c.emitted.Add(int64(n))
		b.c.batches.Add(1)
		metrics.RecordRow(b.job, "emitted", int64(n))
		metrics.RecordBatches(b.job, 1)
		b.logProgress(n)
	}
	b.recs = b.recs[:0]
	b.inputs = 0

	if b.saved.Before(b.checkpoint) {
		if err := b.store.SaveOffset(ctx, b.key, b.checkpoint); err != nil {
			return fmt.Errorf("save offset: %w", err)
		}
		b.saved = b.checkpoint
	}
	return nil
}

func (b *batcher) logProgress(n int) {
	now := time.Now()
	sinceLast := now.Sub(b.lastFlushTS)
	rps := float64(0)
	if sinceLast > 0 {
		rps = float64(n) / sinceLast.Seconds()
	}
	b.lastFlushTS = now
	if !b.verbose {
		return
	}
	log.Printf(
		"batch #%d: key=%s rps=%.0f written=%d total_written=%d checkpoint=%d elapsed=%s since_last=%s",
		b.batches,
		b.key,
		rps,
		n,
		b.written,
		b.checkpoint.Position,
		now.Sub(b.start).Truncate(time.Millisecond),
		sinceLast.Truncate(time.Millisecond),
	)
}
