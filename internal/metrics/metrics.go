// Package metrics is a backend-agnostic facade for the operational metrics
// of fileflow runs.
//
// A global, pluggable Backend defaults to a no-op implementation, so the
// task runner records unconditionally and the CLI decides where the numbers
// go (Pushgateway, DogStatsD or nowhere). Concrete metric systems live in
// subpackages.
package metrics

import "time"

// Metric names shared by every backend.
const (
	StepTotal           = "fileflow_step_total"
	StepDurationSeconds = "fileflow_step_duration_seconds"
	RecordsTotal        = "fileflow_records_total"
	BatchesTotal        = "fileflow_batches_total"
	FilterErrorsTotal   = "fileflow_filter_errors_total"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a latency/duration style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it (e.g. Pushgateway).
	Flush() error
}

// nopBackend is used by default so metrics are optional.
type nopBackend struct{}

func (nopBackend) IncCounter(name string, delta float64, labels Labels)       {}
func (nopBackend) ObserveHistogram(name string, value float64, labels Labels) {}
func (nopBackend) Flush() error                                               { return nil }

var backend Backend = nopBackend{}

// SetBackend installs a concrete backend. Passing nil keeps the existing
// backend. It is meant to be called once at startup.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	backend = b
}

// Flush delegates to the current backend.
func Flush() error {
	return backend.Flush()
}

// RecordStep counts one execution of a run step (e.g. "source", "flush",
// "run") and observes its duration.
func RecordStep(job, step string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}

	lbls := Labels{
		"job":    job,
		"step":   step,
		"status": status,
	}

	backend.IncCounter(StepTotal, 1, lbls)
	backend.ObserveHistogram(StepDurationSeconds, d.Seconds(), lbls)
}

// RecordRow increments the record counter for the given job and kind.
//
// The task runner reports these kinds:
//   - "read": records produced by readers
//   - "emitted": records written to the sink
//   - "dropped": records removed by the drop policy
//   - "skipped": rows a reader could not parse
func RecordRow(job, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter(RecordsTotal, float64(delta), Labels{
		"job":  job,
		"kind": kind,
	})
}

// RecordBatches increments the sink batch counter for the given job.
func RecordBatches(job string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter(BatchesTotal, float64(delta), Labels{
		"job": job,
	})
}

// RecordFilterError counts one failure of the named filter step.
func RecordFilterError(job, filter string) {
	backend.IncCounter(FilterErrorsTotal, 1, Labels{
		"job":    job,
		"filter": filter,
	})
}
