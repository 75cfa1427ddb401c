// Package prompush implements a Prometheus Pushgateway backend for the
// metrics package.
//
// fileflow runs are batch jobs, so collected metrics are pushed to a
// Pushgateway on Flush instead of being exposed on a scrape endpoint. The
// job label is the Pushgateway grouping key; the remaining labels map onto
// client_golang vectors.
package prompush

import (
	"fmt"

	"fileflow/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Backend is a Prometheus Pushgateway metrics backend.
type Backend struct {
	gatewayURL string // e.g. http://pushgateway:9091
	jobName    string // Pushgateway "job" group
	reg        *prometheus.Registry

	stepCounter  *prometheus.CounterVec // fileflow_step_total
	stepDuration *prometheus.SummaryVec // fileflow_step_duration_seconds

	recordCounter *prometheus.CounterVec // fileflow_records_total
	batchCounter  prometheus.Counter     // fileflow_batches_total
	filterErrors  *prometheus.CounterVec // fileflow_filter_errors_total
}

// NewBackend constructs a Prometheus Pushgateway backend.
// jobName: the Pushgateway "job" name (often the pipeline job).
// gatewayURL: base URL of the Pushgateway server.
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = "fileflow"
	}

	reg := prometheus.NewRegistry()

	stepCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: metrics.StepTotal,
			Help: "Total number of run steps, partitioned by step and status.",
		},
		[]string{"step", "status"},
	)
	stepDuration := prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name:       metrics.StepDurationSeconds,
			Help:       "Duration of run steps in seconds, partitioned by step and status.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
		[]string{"step", "status"},
	)
	recordCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: metrics.RecordsTotal,
			Help: "Record counts per kind (read, emitted, dropped, skipped).",
		},
		[]string{"kind"},
	)
	batchCounter := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: metrics.BatchesTotal,
			Help: "Total number of batches written to the sink.",
		},
	)
	filterErrors := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: metrics.FilterErrorsTotal,
			Help: "Filter failures per filter step.",
		},
		[]string{"filter"},
	)

	for name, c := range map[string]prometheus.Collector{
		"step counter":   stepCounter,
		"step summary":   stepDuration,
		"record counter": recordCounter,
		"batch counter":  batchCounter,
		"filter errors":  filterErrors,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("prompush: register %s: %w", name, err)
		}
	}

	return &Backend{
		gatewayURL:    gatewayURL,
		jobName:       jobName,
		reg:           reg,
		stepCounter:   stepCounter,
		stepDuration:  stepDuration,
		recordCounter: recordCounter,
		batchCounter:  batchCounter,
		filterErrors:  filterErrors,
	}, nil
}

func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case metrics.StepTotal:
		if b.stepCounter == nil {
			return
		}
		b.stepCounter.WithLabelValues(labels["step"], labels["status"]).Add(delta)

	case metrics.RecordsTotal:
		if b.recordCounter == nil {
			return
		}
		b.recordCounter.WithLabelValues(labels["kind"]).Add(delta)

	case metrics.BatchesTotal:
		if b.batchCounter == nil {
			return
		}
		b.batchCounter.Add(delta)

	case metrics.FilterErrorsTotal:
		if b.filterErrors == nil {
			return
		}
		b.filterErrors.WithLabelValues(labels["filter"]).Add(delta)

	default:
		// unknown metric name: ignore
	}
}

func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if name != metrics.StepDurationSeconds || b.stepDuration == nil {
		return
	}
	b.stepDuration.WithLabelValues(labels["step"], labels["status"]).Observe(value)
}

// Flush pushes the current registry to the Pushgateway.
func (b *Backend) Flush() error {
	return push.New(b.gatewayURL, b.jobName).
		Gatherer(b.reg).
		Push()
}
