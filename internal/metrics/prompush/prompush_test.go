package prompush

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"fileflow/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		t.Fatalf("Write: %v", err)
	}
	return m.GetCounter().GetValue()
}

func newTestBackend(t *testing.T) *Backend {
	t.Helper()
	b, err := NewBackend("app-logs", "http://pushgateway:9091")
	if err != nil {
		t.Fatalf("NewBackend: %v", err)
	}
	return b
}

func TestNewBackend(t *testing.T) {
	t.Parallel()

	if _, err := NewBackend("app-logs", ""); err == nil {
		t.Fatalf("NewBackend without gateway URL succeeded")
	}
	b, err := NewBackend("", "http://pushgateway:9091")
	if err != nil {
		t.Fatalf("NewBackend: %v", err)
	}
	if b.jobName != "fileflow" {
		t.Fatalf("default job = %q; want fileflow", b.jobName)
	}
}

/*
TestIncCounter_RunnerSeries feeds the backend what the task runner records
for a run and reads each collector back.
*/
func TestIncCounter_RunnerSeries(t *testing.T) {
	t.Parallel()

	b := newTestBackend(t)
	job := metrics.Labels{"job": "app-logs"}
	kind := func(k string) metrics.Labels { return metrics.Labels{"job": "app-logs", "kind": k} }
	filter := func(f string) metrics.Labels { return metrics.Labels{"job": "app-logs", "filter": f} }

	b.IncCounter(metrics.RecordsTotal, 6, kind("read"))
	b.IncCounter(metrics.RecordsTotal, 3, kind("emitted"))
	b.IncCounter(metrics.RecordsTotal, 1, kind("dropped"))
	b.IncCounter(metrics.RecordsTotal, 2, kind("skipped"))
	b.IncCounter(metrics.FilterErrorsTotal, 1, filter("stitch"))
	b.IncCounter(metrics.FilterErrorsTotal, 1, filter("need-msg"))
	b.IncCounter(metrics.FilterErrorsTotal, 1, filter("need-msg"))
	b.IncCounter(metrics.BatchesTotal, 2, job)
	b.IncCounter(metrics.StepTotal, 1, metrics.Labels{"job": "app-logs", "step": "source", "status": "failure"})

	tests := []struct {
		name string
		c    prometheus.Counter
		want float64
	}{
		{"read", b.recordCounter.WithLabelValues("read"), 6},
		{"emitted", b.recordCounter.WithLabelValues("emitted"), 3},
		{"dropped", b.recordCounter.WithLabelValues("dropped"), 1},
		{"skipped", b.recordCounter.WithLabelValues("skipped"), 2},
		{"stitch errors", b.filterErrors.WithLabelValues("stitch"), 1},
		{"need-msg errors", b.filterErrors.WithLabelValues("need-msg"), 2},
		{"batches", b.batchCounter, 2},
		{"failed sources", b.stepCounter.WithLabelValues("source", "failure"), 1},
		{"successful sources", b.stepCounter.WithLabelValues("source", "success"), 0},
	}
	for _, tc := range tests {
		if got := counterValue(t, tc.c); got != tc.want {
			t.Fatalf("%s = %v; want %v", tc.name, got, tc.want)
		}
	}
}

func TestBackend_IgnoresUnknownSeries(t *testing.T) {
	t.Parallel()

	b := newTestBackend(t)
	b.IncCounter("fileflow_unknown_total", 5, nil)
	b.ObserveHistogram(metrics.RecordsTotal, 1, nil)

	mfs, err := b.reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, mf := range mfs {
		for _, m := range mf.GetMetric() {
			if m.GetCounter().GetValue() != 0 || m.GetSummary().GetSampleCount() != 0 {
				t.Fatalf("%s changed by an unknown series", mf.GetName())
			}
		}
	}
}

func TestObserveHistogram_StepDuration(t *testing.T) {
	t.Parallel()

	b := newTestBackend(t)
	lbls := metrics.Labels{"job": "app-logs", "step": "source", "status": "success"}
	b.ObserveHistogram(metrics.StepDurationSeconds, 0.5, lbls)
	b.ObserveHistogram(metrics.StepDurationSeconds, 1.5, lbls)

	m := &dto.Metric{}
	s, ok := b.stepDuration.WithLabelValues("source", "success").(prometheus.Metric)
	if !ok {
		t.Fatalf("summary observer is not a prometheus.Metric")
	}
	if err := s.Write(m); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if got := m.GetSummary(); got.GetSampleCount() != 2 || got.GetSampleSum() != 2 {
		t.Fatalf("summary count=%d sum=%v; want 2 and 2", got.GetSampleCount(), got.GetSampleSum())
	}
}

func TestFlush_PushesJobGroup(t *testing.T) {
	t.Parallel()

	type pushed struct {
		method string
		path   string
		body   []byte
	}
	got := make(chan pushed, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got <- pushed{r.Method, r.URL.Path, body}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	b, err := NewBackend("app-logs", srv.URL)
	if err != nil {
		t.Fatalf("NewBackend: %v", err)
	}
	b.IncCounter(metrics.FilterErrorsTotal, 1, metrics.Labels{"job": "app-logs", "filter": "stitch"})
	if err := b.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	p := <-got
	if p.method != http.MethodPut || p.path != "/metrics/job/app-logs" {
		t.Fatalf("push = %s %s; want PUT /metrics/job/app-logs", p.method, p.path)
	}
	if !bytes.Contains(p.body, []byte(metrics.FilterErrorsTotal)) {
		t.Fatalf("pushed body does not carry %s", metrics.FilterErrorsTotal)
	}
}

func TestFlush_GatewayError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	b, err := NewBackend("app-logs", srv.URL)
	if err != nil {
		t.Fatalf("NewBackend: %v", err)
	}
	if err := b.Flush(); err == nil {
		t.Fatalf("Flush against a failing gateway succeeded")
	}
}

func BenchmarkIncCounterRecord(b *testing.B) {
	be, err := NewBackend("bench", "http://localhost:9091")
	if err != nil {
		b.Fatalf("NewBackend: %v", err)
	}
	lbls := metrics.Labels{"job": "bench", "kind": "read"}
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		be.IncCounter(metrics.RecordsTotal, 1, lbls)
	}
}
