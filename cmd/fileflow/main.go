// Command fileflow ingests files through a configured reader, filter chain
// and sink, checkpointing per-file offsets so that a rerun resumes where the
// previous one stopped.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fileflow/internal/config"
	"fileflow/internal/metrics"
	"fileflow/internal/metrics/datadog"
	"fileflow/internal/metrics/prompush"

	// Filters register themselves with the filter factory.
	_ "fileflow/internal/filter/builtin"
	// The config picks the offset backend; support for all of them is built in.
	_ "fileflow/internal/storage/all"
)

func main() {
	var (
		cfgPath           string
		metricsBackendFlg string
		pushGatewayURLFlg string
		datadogAddrFlg    string
		validate          bool
	)

	flag.StringVar(&cfgPath, "config", "configs/pipelines/app-logs.json", "pipeline config JSON path")
	flag.StringVar(&metricsBackendFlg, "metrics-backend", "", "metrics backend to use (pushgateway, datadog, none); overrides env METRICS_BACKEND")
	flag.StringVar(&pushGatewayURLFlg, "pushgateway-url", "", "Pushgateway base URL (overrides env PUSHGATEWAY_URL)")
	flag.StringVar(&datadogAddrFlg, "datadog-addr", "", "DogStatsD address (overrides env DD_AGENT_ADDR)")
	flag.BoolVar(&validate, "validate", false, "validate the configuration and exit")
	verbose := flag.Bool("v", false, "enable verbose logs")

	flag.Parse()

	p, err := config.Load(cfgPath)
	if err != nil {
		fatalf("%v", err)
	}

	if !reportIssues(config.ValidatePipeline(p)) {
		log.Printf("Configuration is invalid: %v", cfgPath)
		os.Exit(1)
	}
	if validate {
		log.Printf("Configuration is valid: %v", cfgPath)
		os.Exit(0)
	}

	backend, err := newMetricsBackend(metricsSettings{
		backend:     pick(metricsBackendFlg, os.Getenv("METRICS_BACKEND")),
		gatewayURL:  pick(pushGatewayURLFlg, os.Getenv("PUSHGATEWAY_URL"), "http://localhost:9091"),
		datadogAddr: pick(datadogAddrFlg, os.Getenv("DD_AGENT_ADDR"), "127.0.0.1:8125"),
		job:         pick(p.Job, "fileflow"),
	})
	if err != nil {
		log.Printf("metrics: %v; metrics disabled", err)
	} else if backend != nil {
		metrics.SetBackend(backend)
		defer func() {
			if err := metrics.Flush(); err != nil {
				log.Printf("metrics: flush error: %v", err)
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	if *verbose {
		log.Printf("pipeline: job=%s reader=%s filters=%d offsets=%s sink=%s",
			p.Job, p.Reader.Kind, len(p.Filters), p.Offsets.Kind, p.Sink.Kind)
	}

	if _, err := run(ctx, p, *verbose); err != nil {
		log.Printf("%v", err)
		stop()
		// Deferred flushes do not run after os.Exit.
		if ferr := metrics.Flush(); ferr != nil {
			log.Printf("metrics: flush error: %v", ferr)
		}
		os.Exit(1)
	}

	if *verbose {
		log.Printf("completed in %s", time.Since(start).Truncate(time.Millisecond))
	}
}

// reportIssues prints every issue and reports whether none is an error.
func reportIssues(issues []config.Issue) bool {
	ok := true
	for _, iss := range issues {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
		if iss.Severity == config.SeverityError {
			ok = false
		}
	}
	return ok
}

type metricsSettings struct {
	backend     string
	gatewayURL  string
	datadogAddr string
	job         string
}

// newMetricsBackend returns nil, nil when metrics are disabled.
func newMetricsBackend(s metricsSettings) (metrics.Backend, error) {
	switch s.backend {
	case "pushgateway":
		b, err := prompush.NewBackend(s.job, s.gatewayURL)
		if err != nil {
			return nil, fmt.Errorf("init prom push backend: %w", err)
		}
		log.Printf("metrics: url=%v, backend=%v, job_name=%v", s.gatewayURL, s.backend, s.job)
		return b, nil
	case "datadog":
		b, err := datadog.NewBackend(datadog.Config{
			Addr:       s.datadogAddr,
			GlobalTags: []string{"service:fileflow", "job:" + s.job},
		})
		if err != nil {
			return nil, fmt.Errorf("init datadog backend: %w", err)
		}
		log.Printf("metrics: addr=%v, backend=%v, job_name=%v", s.datadogAddr, s.backend, s.job)
		return b, nil
	case "", "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown backend %q", s.backend)
	}
}

// pick returns the first non-empty value.
func pick(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
