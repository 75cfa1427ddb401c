// Package datadog implements a Datadog backend for the metrics package.
//
// It forwards counters and histograms to a DogStatsD agent through the
// official statsd client. Metric labels become Datadog tags.
package datadog

import (
	"fmt"
	"sort"

	"fileflow/internal/metrics"

	"github.com/DataDog/datadog-go/v5/statsd"
)

// Config holds Datadog backend configuration.
type Config struct {
	// Addr is the DogStatsD address, e.g. "127.0.0.1:8125" or "unix:///path/to/socket".
	Addr string

	// Namespace is an optional prefix added to all metric names, e.g. "fileflow.".
	Namespace string

	// GlobalTags are tags applied to all metrics emitted by this backend,
	// e.g. []string{"env:prod","service:fileflow"}.
	GlobalTags []string

	// DisableTelemetry turns off the client's own telemetry metrics.
	DisableTelemetry bool
}

// Backend is a Datadog implementation of metrics.Backend.
//
// It wraps a statsd.Client and is meant to be installed as the global
// metrics backend via metrics.SetBackend.
type Backend struct {
	client *statsd.Client
}

// NewBackend constructs a Datadog metrics backend from the given configuration.
//
// The Addr field is required; when empty, NewBackend returns an error.
func NewBackend(cfg Config) (*Backend, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("datadog: Addr is required")
	}

	var opts []statsd.Option
	if cfg.Namespace != "" {
		opts = append(opts, statsd.WithNamespace(cfg.Namespace))
	}
	if len(cfg.GlobalTags) > 0 {
		opts = append(opts, statsd.WithTags(cfg.GlobalTags))
	}
	if cfg.DisableTelemetry {
		opts = append(opts, statsd.WithoutTelemetry())
	}

	c, err := statsd.New(cfg.Addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("datadog: create client: %w", err)
	}
	return &Backend{client: c}, nil
}

// IncCounter implements metrics.Backend.IncCounter using a Datadog Count metric.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	if b.client == nil {
		return
	}
	// DogStatsD Count expects an int64; fractional deltas are truncated.
	_ = b.client.Count(name, int64(delta), labelsToTags(labels), 1)
}

// ObserveHistogram implements metrics.Backend.ObserveHistogram using a Datadog Histogram metric.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if b.client == nil {
		return
	}
	_ = b.client.Histogram(name, value, labelsToTags(labels), 1)
}

// Flush implements metrics.Backend.Flush. The statsd client buffers and
// aggregates, so this closes it; call it once at process shutdown.
func (b *Backend) Flush() error {
	if b.client == nil {
		return nil
	}
	return b.client.Close()
}

// labelsToTags converts labels into sorted Datadog tag strings "key:value".
func labelsToTags(lbls metrics.Labels) []string {
	if len(lbls) == 0 {
		return nil
	}
	out := make([]string, 0, len(lbls))
	for k, v := range lbls {
		out = append(out, fmt.Sprintf("%s:%s", k, v))
	}
	sort.Strings(out)
	return out
}
