// Package config defines the JSON-serializable configuration model of a
// fileflow pipeline. Pipelines are decoded with the standard library; the
// free-form option bags of readers, filters and sinks use Options for typed
// access and Settings for the flat view handed to components.
//
// Example (trimmed):
//
//	{
//	  "job":     "app-logs",
//	  "source":  { "paths": ["/var/log/app.log"] },
//	  "reader":  { "kind": "line" },
//	  "filters": [
//	    { "kind": "multirow", "name": "stitch", "options": { "pattern": "^[\\t]" } }
//	  ],
//	  "offsets": { "kind": "sqlite", "dsn": "file:offsets.db" },
//	  "sink":    { "kind": "jsonl", "path": "-" }
//	}
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Pipeline is the top-level object decoded from a pipeline file.
type Pipeline struct {
	// Job names the pipeline in logs and metrics.
	Job string `json:"job"`

	Source  Source   `json:"source"`
	Reader  Reader   `json:"reader"`
	Filters []Filter `json:"filters"`
	Offsets Offsets  `json:"offsets"`
	Sink    Sink     `json:"sink"`
	Runtime Runtime  `json:"runtime"`
}

// Source lists the files to ingest. Paths and the lines of PathsFile are
// combined. Entries are local paths or http(s) URLs.
type Source struct {
	Paths     []string `json:"paths"`
	PathsFile string   `json:"paths_file"`
	// HTTP tunes the client used for URL entries.
	HTTP HTTPSource `json:"http"`
}

// HTTPSource configures how remote sources are fetched.
type HTTPSource struct {
	TimeoutSeconds     int               `json:"timeout_seconds"`
	MaxRetries         int               `json:"max_retries"`
	InsecureSkipVerify bool              `json:"insecure_skip_verify"`
	Headers            map[string]string `json:"headers"`
}

// Reader selects how raw bytes become records ("line", "csv", "json").
type Reader struct {
	Kind    string  `json:"kind"`
	Options Options `json:"options"`
}

// Filter is one step of the filter chain.
type Filter struct {
	Kind string `json:"kind"`
	// Name identifies the step in errors; it defaults to the kind.
	Name string `json:"name"`
	// OnFailure is "fail" (default), "tag" or "drop".
	OnFailure string  `json:"on_failure"`
	Options   Options `json:"options"`
}

// Offsets configures the store that keeps per-file resume points.
type Offsets struct {
	// Kind selects the backend: memory, sqlite, postgres, mysql or mssql.
	Kind            string `json:"kind"`
	DSN             string `json:"dsn"`
	Table           string `json:"table"`
	AutoCreateTable bool   `json:"auto_create_table"`
}

// Sink selects where emitted records go.
type Sink struct {
	Kind    string  `json:"kind"`
	Path    string  `json:"path"`
	Options Options `json:"options"`
}

// Runtime controls concurrency and batching.
type Runtime struct {
	// Workers is the number of sources processed concurrently.
	Workers int `json:"workers"`
	// BatchSize is the number of records written to the sink before the
	// offset is checkpointed.
	BatchSize int `json:"batch_size"`
	// AbortOnError stops a source at the first filter failure.
	AbortOnError bool `json:"abort_on_error"`
}

// Load reads and decodes the pipeline file at path.
func Load(path string) (Pipeline, error) {
	f, err := os.Open(path)
	if err != nil {
		return Pipeline{}, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	var p Pipeline
	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return Pipeline{}, fmt.Errorf("decode config %s: %w", path, err)
	}
	return p, nil
}

// Options is a small helper to fetch typed values from arbitrary JSON maps.
// It performs only minimal type coercion and returns provided defaults when a
// key is absent or of an unexpected type.
type Options map[string]any

// String returns the string value for key or def if key is missing or not a string.
func (o Options) String(key, def string) string {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// Bool returns the bool value for key or def if key is missing or not a bool.
func (o Options) Bool(key string, def bool) bool {
	if v, ok := o[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

// Int returns the int value for key or def. JSON numbers are decoded as
// float64 by encoding/json, so this method accepts float64 and casts to int.
func (o Options) Int(key string, def int) int {
	if v, ok := o[key]; ok {
		switch n := v.(type) {
		case float64:
			return int(n)
		case int:
			return n
		}
	}
	return def
}

// StringSlice returns a []string for key when the value is an array of
// strings. A plain string is a one-element list.
func (o Options) StringSlice(key string) []string {
	if v, ok := o[key]; ok {
		switch vv := v.(type) {
		case []any:
			out := make([]string, 0, len(vv))
			for _, x := range vv {
				if s, ok := x.(string); ok {
					out = append(out, s)
				}
			}
			return out
		case []string:
			return vv
		case string:
			if vv != "" {
				return []string{vv}
			}
		}
	}
	return nil
}

// UnmarshalJSON decodes a missing or null "options" object to a non-nil,
// empty Options map.
func (o *Options) UnmarshalJSON(b []byte) error {
	var tmp map[string]any
	if len(b) == 0 || string(b) == "null" {
		*o = Options{}
		return nil
	}
	if err := json.Unmarshal(b, &tmp); err != nil {
		return err
	}
	*o = Options(tmp)
	return nil
}
