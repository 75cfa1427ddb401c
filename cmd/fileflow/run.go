package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"fileflow/internal/config"
	"fileflow/internal/datasource/file"
	"fileflow/internal/datasource/httpds"
	"fileflow/internal/reader"
	"fileflow/internal/sink"
	"fileflow/internal/storage"
	"fileflow/internal/task"
)

// newRepositoryFn is a test seam for the offset store constructor.
var newRepositoryFn = storage.New

// run executes one pass over every configured source.
func run(ctx context.Context, p config.Pipeline, verbose bool) (task.Summary, error) {
	paths, err := collectPaths(p.Source)
	if err != nil {
		return task.Summary{}, err
	}
	httpds.Register(httpConfig(p.Source.HTTP))

	rd, err := reader.New(p.Reader.Kind, p.Reader.Options.Flatten())
	if err != nil {
		return task.Summary{}, fmt.Errorf("init reader: %w", err)
	}

	repo, err := initRepository(ctx, p.Offsets)
	if err != nil {
		_ = rd.Close()
		return task.Summary{}, err
	}

	out, err := sink.New(p.Sink)
	if err != nil {
		_ = rd.Close()
		repo.Close()
		return task.Summary{}, fmt.Errorf("init sink: %w", err)
	}

	opts := task.OptionsFromPipeline(p)
	opts.Workers = runtimeInt("FILEFLOW_WORKERS", opts.Workers, 1)
	opts.BatchSize = runtimeInt("FILEFLOW_BATCH_SIZE", opts.BatchSize, 500)
	opts.Verbose = verbose

	r, err := task.New(opts, rd, out, repo)
	if err != nil {
		_ = rd.Close()
		_ = out.Close()
		repo.Close()
		return task.Summary{}, err
	}
	defer func() {
		if cerr := r.Close(); cerr != nil {
			log.Printf("close: %v", cerr)
		}
	}()

	return r.Run(ctx, paths)
}

// collectPaths combines the inline paths with those listed in paths_file,
// keeping the first occurrence of each.
func collectPaths(s config.Source) ([]string, error) {
	paths := append([]string(nil), s.Paths...)
	if strings.TrimSpace(s.PathsFile) != "" {
		listed, err := file.ReadList(s.PathsFile)
		if err != nil {
			return nil, err
		}
		paths = append(paths, listed...)
	}

	seen := make(map[string]struct{}, len(paths))
	out := paths[:0]
	for _, p := range paths {
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no source paths configured")
	}
	return out, nil
}

// httpConfig maps the remote source options onto the HTTP client.
func httpConfig(h config.HTTPSource) httpds.Config {
	cfg := httpds.Config{
		Timeout:            time.Duration(h.TimeoutSeconds) * time.Second,
		MaxRetries:         pickInt(h.MaxRetries, 3),
		InsecureSkipVerify: h.InsecureSkipVerify,
	}
	if len(h.Headers) > 0 {
		cfg.Headers = make(http.Header, len(h.Headers))
		for k, v := range h.Headers {
			cfg.Headers.Set(k, v)
		}
	}
	return cfg
}

// initRepository opens the offset store. An empty kind keeps offsets in
// memory for the duration of the run.
func initRepository(ctx context.Context, o config.Offsets) (storage.Repository, error) {
	cfg := storage.Config{Kind: o.Kind, DSN: o.DSN, Table: o.Table}
	if cfg.Kind == "" {
		cfg.Kind = "memory"
	}
	repo, err := newRepositoryFn(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init offsets: %w", err)
	}
	if o.AutoCreateTable {
		if err := storage.EnsureOffsetTable(ctx, cfg, repo); err != nil {
			repo.Close()
			return nil, err
		}
	}
	return repo, nil
}

// getenvInt reads an integer environment variable, falling back to def.
func getenvInt(k string, def int) int {
	if s := os.Getenv(k); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return def
}

// runtimeInt resolves a runtime setting: a positive env value wins over
// the pipeline file, which wins over def.
func runtimeInt(env string, cfg, def int) int {
	return pickInt(getenvInt(env, 0), pickInt(cfg, def))
}

// pickInt chooses the first positive value 'a', otherwise returns 'b'.
func pickInt(a, b int) int {
	if a > 0 {
		return a
	}
	return b
}
