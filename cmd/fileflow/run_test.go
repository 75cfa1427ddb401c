package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"fileflow/internal/config"
	"fileflow/internal/storage"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func readMessages(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()

	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var line struct {
			Value map[string]any `json:"value"`
		}
		if err := json.Unmarshal(sc.Bytes(), &line); err != nil {
			t.Fatalf("decode %q: %v", sc.Text(), err)
		}
		msg, _ := line.Value["message"].(string)
		out = append(out, msg)
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}
	return out
}

func samplePipeline(dir string) config.Pipeline {
	return config.Pipeline{
		Job:    "app-logs",
		Source: config.Source{Paths: []string{filepath.Join(dir, "app.log")}},
		Reader: config.Reader{Kind: "line"},
		Filters: []config.Filter{{
			Kind:    "multirow",
			Name:    "stitch",
			Options: config.Options{"pattern": `^\t`},
		}},
		Offsets: config.Offsets{
			Kind:            "sqlite",
			DSN:             filepath.Join(dir, "offsets.db"),
			AutoCreateTable: true,
		},
		Sink: config.Sink{
			Kind:    "jsonl",
			Path:    filepath.Join(dir, "out.jsonl"),
			Options: config.Options{"append": true},
		},
	}
}

// TestRun_ResumesAcrossProcesses runs the pipeline twice against the same
// sqlite offset store, as two separate invocations of the binary would.
func TestRun_ResumesAcrossProcesses(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	p := samplePipeline(dir)
	logPath := p.Source.Paths[0]
	writeFile(t, logPath, "[INFO] up\n[ERROR] boom\n\tat main\n")

	if issues := config.ValidatePipeline(p); !reportIssues(issues) {
		t.Fatalf("sample pipeline invalid: %+v", issues)
	}

	sum, err := run(context.Background(), p, false)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if sum.Read != 3 || sum.Emitted != 2 {
		t.Fatalf("first summary = %+v", sum)
	}

	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_WRONLY, 0)
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	if _, err := f.WriteString("[INFO] down\n"); err != nil {
		t.Fatalf("append: %v", err)
	}
	_ = f.Close()

	sum, err = run(context.Background(), p, false)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if sum.Read != 1 || sum.Emitted != 1 {
		t.Fatalf("second summary = %+v", sum)
	}

	want := []string{"[INFO] up", "[ERROR] boom\n\tat main", "[INFO] down"}
	if got := readMessages(t, p.Sink.Path); !reflect.DeepEqual(got, want) {
		t.Fatalf("sink contents = %q; want %q", got, want)
	}
}

func TestRun_ConfigErrors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "app.log"), "x\n")

	tests := []struct {
		name   string
		mutate func(*config.Pipeline)
		want   string
	}{
		{"unknown reader", func(p *config.Pipeline) { p.Reader.Kind = "parquet" }, "init reader"},
		{"unknown offsets", func(p *config.Pipeline) { p.Offsets.Kind = "etcd" }, "init offsets"},
		{"unknown sink", func(p *config.Pipeline) { p.Sink.Kind = "kafka" }, "init sink"},
		{"bad filter", func(p *config.Pipeline) { p.Filters[0].Options = config.Options{} }, "pattern"},
		{"no paths", func(p *config.Pipeline) { p.Source.Paths = nil }, "no source paths"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			p := samplePipeline(dir)
			p.Offsets = config.Offsets{Kind: "memory"}
			p.Sink = config.Sink{Kind: "discard"}
			tc.mutate(&p)
			if _, err := run(context.Background(), p, false); err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("run error = %v; want it to mention %q", err, tc.want)
			}
		})
	}
}

// TestRun_RemoteSource reads a file served over HTTP and resumes it after
// the server-side file grows.
func TestRun_RemoteSource(t *testing.T) {
	t.Parallel()

	var (
		mu      sync.Mutex
		content = "GET /a 200\nGET /b 404\n"
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		c := content
		mu.Unlock()
		http.ServeContent(w, r, "access.log", time.Time{}, strings.NewReader(c))
	}))
	defer srv.Close()

	dir := t.TempDir()
	p := samplePipeline(dir)
	p.Source = config.Source{Paths: []string{srv.URL + "/access.log"}}
	p.Filters = nil

	if sum, err := run(context.Background(), p, false); err != nil || sum.Emitted != 2 {
		t.Fatalf("first run = %+v, %v", sum, err)
	}
	mu.Lock()
	content += "GET /c 500\n"
	mu.Unlock()
	if sum, err := run(context.Background(), p, false); err != nil || sum.Read != 1 {
		t.Fatalf("second run = %+v, %v", sum, err)
	}

	want := []string{"GET /a 200", "GET /b 404", "GET /c 500"}
	if got := readMessages(t, p.Sink.Path); !reflect.DeepEqual(got, want) {
		t.Fatalf("sink contents = %q; want %q", got, want)
	}
}

func TestHTTPConfig(t *testing.T) {
	t.Parallel()

	cfg := httpConfig(config.HTTPSource{TimeoutSeconds: 5, Headers: map[string]string{"authorization": "Bearer x"}})
	if cfg.Timeout != 5*time.Second || cfg.MaxRetries != 3 || cfg.Headers.Get("Authorization") != "Bearer x" {
		t.Fatalf("httpConfig = %+v", cfg)
	}
}

func TestCollectPaths(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	list := filepath.Join(dir, "paths.txt")
	writeFile(t, list, "/var/log/b.log\n/var/log/a.log\n")

	got, err := collectPaths(config.Source{Paths: []string{"/var/log/a.log"}, PathsFile: list})
	if err != nil {
		t.Fatalf("collectPaths: %v", err)
	}
	if want := []string{"/var/log/a.log", "/var/log/b.log"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("collectPaths = %q; want %q", got, want)
	}

	if _, err := collectPaths(config.Source{PathsFile: filepath.Join(dir, "missing.txt")}); err == nil {
		t.Fatalf("collectPaths(missing list) succeeded")
	}
}

// TestInitRepository_DefaultsToMemory swaps newRepositoryFn and must not run
// in parallel.
func TestInitRepository_DefaultsToMemory(t *testing.T) {
	orig := newRepositoryFn
	t.Cleanup(func() { newRepositoryFn = orig })

	var got storage.Config
	newRepositoryFn = func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		got = cfg
		return orig(ctx, cfg)
	}
	repo, err := initRepository(context.Background(), config.Offsets{AutoCreateTable: true})
	if err != nil {
		t.Fatalf("initRepository: %v", err)
	}
	defer repo.Close()
	if got.Kind != "memory" {
		t.Fatalf("kind = %q; want memory", got.Kind)
	}

	boom := errors.New("boom")
	newRepositoryFn = func(context.Context, storage.Config) (storage.Repository, error) { return nil, boom }
	if _, err := initRepository(context.Background(), config.Offsets{Kind: "sqlite"}); !errors.Is(err, boom) {
		t.Fatalf("initRepository error = %v; want boom", err)
	}
}

func TestNewMetricsBackend(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		in      metricsSettings
		wantNil bool
		wantErr bool
	}{
		{"disabled", metricsSettings{backend: ""}, true, false},
		{"none", metricsSettings{backend: "none"}, true, false},
		{"pushgateway", metricsSettings{backend: "pushgateway", gatewayURL: "http://localhost:9091", job: "j"}, false, false},
		{"datadog", metricsSettings{backend: "datadog", datadogAddr: "127.0.0.1:8125", job: "j"}, false, false},
		{"datadog without addr", metricsSettings{backend: "datadog"}, true, true},
		{"unknown", metricsSettings{backend: "graphite"}, true, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			b, err := newMetricsBackend(tc.in)
			if (err != nil) != tc.wantErr {
				t.Fatalf("err = %v; wantErr %v", err, tc.wantErr)
			}
			if (b == nil) != tc.wantNil {
				t.Fatalf("backend = %v; wantNil %v", b, tc.wantNil)
			}
		})
	}
}

func TestPickHelpers(t *testing.T) {
	t.Setenv("FILEFLOW_TEST_INT", "42")
	if v := getenvInt("FILEFLOW_TEST_INT", 7); v != 42 {
		t.Fatalf("getenvInt set = %d, want 42", v)
	}
	if v := getenvInt("FILEFLOW_TEST_UNSET", 7); v != 7 {
		t.Fatalf("getenvInt unset = %d, want 7", v)
	}
	if v := pickInt(0, 9); v != 9 {
		t.Fatalf("pickInt(0,9) = %d, want 9", v)
	}
	if v := pick("", "b", "c"); v != "b" {
		t.Fatalf("pick = %q, want b", v)
	}
}

func TestRuntimeInt_EnvOverridesConfig(t *testing.T) {
	tests := []struct {
		env  string
		cfg  int
		want int
	}{
		{"", 0, 500},
		{"", 200, 200},
		{"64", 200, 64},
		{"0", 200, 200},
		{"nope", 200, 200},
	}
	for _, tc := range tests {
		t.Setenv("FILEFLOW_BATCH_SIZE", tc.env)
		if got := runtimeInt("FILEFLOW_BATCH_SIZE", tc.cfg, 500); got != tc.want {
			t.Fatalf("env=%q cfg=%d: got %d, want %d", tc.env, tc.cfg, got, tc.want)
		}
	}
}
