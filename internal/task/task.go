// Package task runs sources through the read → filter → sink → checkpoint
// pipeline.
//
// Concurrency model:
//
//	source A: iterator → chain A → batcher ┐
//	source B: iterator → chain B → batcher ┼→ shared sink, shared offset store
//	...       (at most Workers at a time)  ┘
//
// Each source has exactly one producer goroutine and its own filter chain,
// so filter state never crosses sources. The checkpoint of a source is the
// start of the earliest record still buffered by its chain, or the end of the
// last record read when nothing is buffered, and only ever moves forward.
package task

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"fileflow/internal/config"
	"fileflow/internal/datasource"
	"fileflow/internal/filter"
	"fileflow/internal/metrics"
	"fileflow/internal/reader"
	"fileflow/internal/sink"
	"fileflow/internal/source"
	"fileflow/internal/storage"
)

const (
	defaultBatchSize = 500
	errLogLimit      = 20
)

// Options configures a Runner.
type Options struct {
	Job          string
	Workers      int
	BatchSize    int
	AbortOnError bool
	Verbose      bool
	Filters      []config.Filter
}

// OptionsFromPipeline maps the runtime and filter sections of p.
func OptionsFromPipeline(p config.Pipeline) Options {
	return Options{
		Job:          p.Job,
		Workers:      p.Runtime.Workers,
		BatchSize:    p.Runtime.BatchSize,
		AbortOnError: p.Runtime.AbortOnError,
		Filters:      p.Filters,
	}
}

// statSource is a test seam for source metadata lookups.
var statSource = func(ctx context.Context, location string) (source.Metadata, error) {
	src, err := datasource.For(location)
	if err != nil {
		return source.Metadata{}, err
	}
	return src.Stat(ctx)
}

// Runner owns a reader, a sink and an offset store for the duration of a run.
type Runner struct {
	opts   Options
	reader reader.Reader
	sink   sink.Sink
	store  storage.Repository
	runID  string

	c    counters
	errs *errAgg

	closeOnce sync.Once
	closeErr  error
}

// New validates the filter configuration and returns a Runner. The Runner
// takes ownership of r, s and store; Close releases them.
func New(opts Options, r reader.Reader, s sink.Sink, store storage.Repository) (*Runner, error) {
	if r == nil || s == nil || store == nil {
		return nil, errors.New("task: reader, sink and offset store are required")
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Job == "" {
		opts.Job = "fileflow"
	}
	// Build once up front so configuration errors surface before any source
	// is opened.
	if _, err := filter.Build(opts.Filters); err != nil {
		return nil, fmt.Errorf("task: %w", err)
	}
	return &Runner{
		opts:   opts,
		reader: r,
		sink:   s,
		store:  store,
		runID:  uuid.NewString(),
		errs:   newErrAgg(errLogLimit),
	}, nil
}

// RunID identifies this runner in logs.
func (r *Runner) RunID() string { return r.runID }

// Run processes every path, at most Workers at a time. A failing source does
// not stop the others; their errors are joined.
func (r *Runner) Run(ctx context.Context, paths []string) (Summary, error) {
	start := time.Now()
	log.Printf("task: run=%s job=%s sources=%d workers=%d batch_size=%d",
		r.runID, r.opts.Job, len(paths), r.opts.Workers, r.opts.BatchSize)

	var (
		mu   sync.Mutex
		errs []error
	)
	var g errgroup.Group
	g.SetLimit(r.opts.Workers)
	for _, p := range paths {
		g.Go(func() error {
			if err := r.RunSource(ctx, p); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	err := errors.Join(errs...)
	metrics.RecordStep(r.opts.Job, "run", err, time.Since(start))
	r.errs.log()
	s := r.c.summary(r.runID)
	logSummary(s)
	return s, err
}

// RunSource reads one source from its stored checkpoint to the end.
func (r *Runner) RunSource(ctx context.Context, path string) (err error) {
	start := time.Now()
	defer func() {
		metrics.RecordStep(r.opts.Job, "source", err, time.Since(start))
		if err != nil {
			r.c.failed.Add(1)
			log.Printf("task: run=%s source %s failed: %v", r.runID, path, err)
			return
		}
		r.c.sources.Add(1)
	}()

	md, err := statSource(ctx, path)
	if err != nil {
		return err
	}
	key := md.Key()

	off, found, err := r.store.LoadOffset(ctx, key)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if found && md.Size < off.Position {
		log.Printf("task: run=%s %s shrank to %d bytes below checkpoint %d; reading from the start",
			r.runID, path, md.Size, off.Position)
		off = source.StartOffset()
	}
	if r.opts.Verbose {
		log.Printf("task: run=%s open %s from %s", r.runID, path, off)
	}

	chain, err := filter.Build(r.opts.Filters)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	it, err := r.reader.NewIterator(ctx, source.Context{Metadata: md, Offset: off})
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	defer func() {
		if sc, ok := it.(reader.SkipCounter); ok && sc.Skipped() > 0 {
			r.c.skipped.Add(int64(sc.Skipped()))
			metrics.RecordRow(r.opts.Job, "skipped", int64(sc.Skipped()))
		}
		if cerr := it.Close(); cerr != nil {
			log.Printf("task: close iterator %s: %v", path, cerr)
		}
	}()

	b := newBatcher(r.opts.Job, key, r.opts.BatchSize, r.opts.Verbose, r.sink, r.store, &r.c, off)
	if err := r.drain(ctx, it, chain, b, md); err != nil {
		// Commit what was fully processed before the failure.
		if ferr := b.flush(context.WithoutCancel(ctx)); ferr != nil {
			err = errors.Join(err, ferr)
		}
		return fmt.Errorf("%s: %w", path, err)
	}
	if err := b.flush(ctx); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// drain feeds every record of it through chain into b, then flushes the
// chain. One record of lookahead tells the chain whether more input follows.
func (r *Runner) drain(ctx context.Context, it reader.Iterator, chain *filter.Chain, b *batcher, md source.Metadata) error {
	fctx := filter.NewContext(md)
	var last source.RecordOffset

	has := it.Next()
	for has {
		cur := it.Record()
		has = it.Next()
		r.c.read.Add(1)
		metrics.RecordRow(r.opts.Job, "read", 1)

		dropped := chain.Dropped()
		fctx.Reset(cur.Offset)
		out, err := chain.Apply(fctx, cur.Value, has)
		r.noteFailures(md, fctx.Failures())
		if d := chain.Dropped() - dropped; d > 0 {
			r.c.dropped.Add(d)
			metrics.RecordRow(r.opts.Job, "dropped", d)
		}
		if err != nil && r.opts.AbortOnError {
			return err
		}
		// Without abort only the failed records are gone; their siblings in
		// out are delivered and the checkpoint moves past the input.
		r.emit(b, md, out)
		last = cur.Offset
		b.advance(checkpointAfter(chain, cur.Offset))
		if b.full() {
			if err := b.flush(ctx); err != nil {
				return err
			}
		}
	}
	if err := it.Err(); err != nil {
		return err
	}

	fctx.Reset(source.EmptyBytesOffset())
	if pending, buffered := chain.Pending(); buffered {
		fctx.Reset(pending)
	}
	dropped := chain.Dropped()
	out, err := chain.Flush(fctx)
	r.noteFailures(md, fctx.Failures())
	if d := chain.Dropped() - dropped; d > 0 {
		r.c.dropped.Add(d)
		metrics.RecordRow(r.opts.Job, "dropped", d)
	}
	if err != nil && r.opts.AbortOnError {
		return err
	}
	r.emit(b, md, out)
	if last != nil {
		b.advance(last.ToSourceOffset())
	}
	return nil
}

// emit queues the chain output; each record keeps its own offset and errors.
func (r *Runner) emit(b *batcher, md source.Metadata, out []filter.Output) {
	for _, o := range out {
		b.add(sink.Record{Source: md, Offset: o.Offset, Value: o.Record, Errors: o.Errors})
	}
}

// checkpointAfter is the resume point once off has been processed.
func checkpointAfter(chain *filter.Chain, off source.RecordOffset) source.SourceOffset {
	if p, ok := chain.Pending(); ok {
		return p.Rewind()
	}
	return off.ToSourceOffset()
}

func (r *Runner) noteFailures(md source.Metadata, fs []filter.Failure) {
	for _, f := range fs {
		r.c.filterErrors.Add(1)
		metrics.RecordFilterError(r.opts.Job, f.Filter)
		r.errs.add(fmt.Sprintf("%s %v: %s", md.Path, f.Offset, f.Error()))
	}
}

// Summary returns the counters accumulated so far.
func (r *Runner) Summary() Summary { return r.c.summary(r.runID) }

// Close releases the reader (and with it every open iterator), the sink and
// the offset store. It is safe to call more than once.
func (r *Runner) Close() error {
	r.closeOnce.Do(func() {
		var errs []error
		if err := r.reader.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close reader: %w", err))
		}
		if err := r.sink.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close sink: %w", err))
		}
		r.store.Close()
		r.closeErr = errors.Join(errs...)
	})
	return r.closeErr
}
