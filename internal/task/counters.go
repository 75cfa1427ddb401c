package task

import (
	"log"
	"sync"
	"sync/atomic"
)

// counters holds cross-goroutine statistics for a run. All fields are
// updated atomically.
type counters struct {
	read         atomic.Int64 // records produced by readers
	emitted      atomic.Int64 // records written to the sink
	dropped      atomic.Int64 // records removed by the drop policy
	filterErrors atomic.Int64 // filter failures, any policy
	skipped      atomic.Int64 // input the readers could not parse
	batches      atomic.Int64 // sink batches written
	sources      atomic.Int64 // sources finished without error
	failed       atomic.Int64 // sources that returned an error
}

// Summary is the outcome of a Run.
type Summary struct {
	RunID        string
	Read         int64
	Emitted      int64
	Dropped      int64
	FilterErrors int64
	Skipped      int64
	Batches      int64
	Sources      int64
	Failed       int64
}

func (c *counters) summary(runID string) Summary {
	return Summary{
		RunID:        runID,
		Read:         c.read.Load(),
		Emitted:      c.emitted.Load(),
		Dropped:      c.dropped.Load(),
		FilterErrors: c.filterErrors.Load(),
		Skipped:      c.skipped.Load(),
		Batches:      c.batches.Load(),
		Sources:      c.sources.Load(),
		Failed:       c.failed.Load(),
	}
}

func logSummary(s Summary) {
	log.Printf(
		"summary: run=%s sources=%d failed=%d read=%d emitted=%d dropped=%d filter_errors=%d skipped=%d batches=%d",
		s.RunID, s.Sources, s.Failed, s.Read, s.Emitted, s.Dropped, s.FilterErrors, s.Skipped, s.Batches,
	)
}

// errAgg keeps the first limit filter failure messages of a run and counts
// the rest.
type errAgg struct {
	mu    sync.Mutex
	limit int
	count int
	first []string
}

func newErrAgg(limit int) *errAgg { return &errAgg{limit: limit} }

func (a *errAgg) add(msg string) {
	a.mu.Lock()
	if a.count < a.limit {
		a.first = append(a.first, msg)
	}
	a.count++
	a.mu.Unlock()
}

func (a *errAgg) log() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.count == 0 {
		return
	}
	log.Printf("filter errors: %d (showing first %d)", a.count, len(a.first))
	for i, s := range a.first {
		log.Printf("  #%03d: %s", i+1, s)
	}
}
