// This file adds a lightweight linter/validator for Pipeline values. It
// performs static checks over a decoded Pipeline and returns a list of issues
// (errors and warnings) that callers can surface in a CLI or tests.
package config

import (
	"fmt"
	"regexp"
	"strings"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a configuration warning that should be surfaced
	// to users but may not necessarily block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation/lint finding for a Pipeline.
//
// Path is a dotted path into the config (e.g. "offsets.kind",
// "filters[1].options.pattern"). Message is human-readable.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a single
// error in contexts that expect error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// ValidatePipeline performs static validation / linting of a Pipeline.
//
// It does not mutate the pipeline. Instead it returns a slice of Issue values.
// Callers may decide whether to treat warnings as fatal or not. Component
// options are only checked for presence and shape here; readers and filters
// report invalid values as *ConfigError when they are configured.
func ValidatePipeline(p Pipeline) []Issue {
	var issues []Issue

	if strings.TrimSpace(p.Job) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "job",
			Message:  "job must not be empty; it is used for metrics labeling and identifying runs",
		})
	}
	issues = append(issues, validateSource(p.Source)...)
	issues = append(issues, validateReader(p.Reader)...)
	issues = append(issues, validateFilters(p.Filters)...)
	issues = append(issues, validateOffsets(p.Offsets)...)
	issues = append(issues, validateSink(p.Sink)...)
	issues = append(issues, validateRuntime(p.Runtime)...)

	return issues
}

func validateSource(s Source) []Issue {
	var issues []Issue

	if len(s.Paths) == 0 && strings.TrimSpace(s.PathsFile) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "source",
			Message:  "source needs at least one of paths or paths_file",
		})
	}
	for i, p := range s.Paths {
		if strings.TrimSpace(p) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     fmt.Sprintf("source.paths[%d]", i),
				Message:  "path must not be empty",
			})
		}
	}
	if s.HTTP.TimeoutSeconds < 0 || s.HTTP.MaxRetries < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "source.http",
			Message:  "timeout_seconds and max_retries must not be negative",
		})
	}
	if s.HTTP.InsecureSkipVerify {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "source.http.insecure_skip_verify",
			Message:  "TLS certificates of remote sources are not verified",
		})
	}
	return issues
}

func validateReader(r Reader) []Issue {
	var issues []Issue

	if strings.TrimSpace(r.Kind) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "reader.kind",
			Message:  "reader.kind must not be empty",
		})
		return issues
	}

	// Unknown kinds are warnings (for forward compatibility).
	known := map[string]struct{}{
		"line": {},
		"csv":  {},
		"json": {},
		"xml":  {},
	}
	if _, ok := known[r.Kind]; !ok {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "reader.kind",
			Message:  fmt.Sprintf("unknown reader kind %q; ensure a matching implementation exists", r.Kind),
		})
	}

	switch r.Kind {
	case "csv":
		if c := r.Options.String("comma", ","); len([]rune(c)) != 1 {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "reader.options.comma",
				Message:  fmt.Sprintf("comma %q must be a single character", c),
			})
		}
	case "xml":
		if strings.TrimSpace(r.Options.String("record_tag", "")) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "reader.options.record_tag",
				Message:  "xml reader requires record_tag",
			})
		}
	case "line":
		if r.Options.Int("skip_headers", 0) < 0 {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "reader.options.skip_headers",
				Message:  "skip_headers must not be negative",
			})
		}
	}

	return issues
}

// validateFilters validates the filter chain.
func validateFilters(fs []Filter) []Issue {
	var issues []Issue

	if len(fs) == 0 {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "filters",
			Message:  "no filters configured; records will be written as read",
		})
		return issues
	}

	knownKinds := map[string]struct{}{
		"multirow":  {},
		"convert":   {},
		"date":      {},
		"normalize": {},
		"dedup":     {},
		"require":   {},
		"function":  {},
	}
	policies := map[string]struct{}{
		"": {}, "fail": {}, "abort": {}, "tag": {}, "continue": {}, "drop": {},
	}

	names := map[string]int{}
	for i, f := range fs {
		path := fmt.Sprintf("filters[%d]", i)
		if strings.TrimSpace(f.Kind) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     path + ".kind",
				Message:  "filter kind must not be empty",
			})
			continue
		}
		if _, ok := knownKinds[f.Kind]; !ok {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     path + ".kind",
				Message:  fmt.Sprintf("unknown filter kind %q; ensure a matching implementation exists", f.Kind),
			})
		}
		if _, ok := policies[strings.ToLower(f.OnFailure)]; !ok {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     path + ".on_failure",
				Message:  fmt.Sprintf("unknown failure policy %q; use fail, tag or drop", f.OnFailure),
			})
		}
		name := f.Name
		if name == "" {
			name = f.Kind
		}
		if prev, dup := names[name]; dup {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     path + ".name",
				Message:  fmt.Sprintf("filter name %q is also used by filters[%d]; errors will be ambiguous", name, prev),
			})
		} else {
			names[name] = i
		}

		// Filter-specific checks.
		switch f.Kind {
		case "multirow":
			pattern := f.Options.String("pattern", "")
			if pattern == "" {
				issues = append(issues, Issue{
					Severity: SeverityError,
					Path:     path + ".options.pattern",
					Message:  "multirow filter requires a pattern",
				})
			} else if _, err := regexp.Compile(pattern); err != nil {
				issues = append(issues, Issue{
					Severity: SeverityError,
					Path:     path + ".options.pattern",
					Message:  fmt.Sprintf("pattern does not compile: %v", err),
				})
			}
		case "dedup":
			if len(f.Options.StringSlice("keys")) == 0 {
				issues = append(issues, Issue{
					Severity: SeverityError,
					Path:     path + ".options.keys",
					Message:  "dedup filter requires keys",
				})
			}
		case "require":
			if len(f.Options.StringSlice("fields")) == 0 {
				issues = append(issues, Issue{
					Severity: SeverityWarning,
					Path:     path + ".options.fields",
					Message:  "require filter has no fields; it will not enforce anything",
				})
			}
		case "convert", "date", "function":
			if f.Options.String("field", "") == "" {
				issues = append(issues, Issue{
					Severity: SeverityError,
					Path:     path + ".options.field",
					Message:  fmt.Sprintf("%s filter requires a field", f.Kind),
				})
			}
		}
	}

	return issues
}

// validateOffsets validates the offset store configuration.
func validateOffsets(o Offsets) []Issue {
	var issues []Issue

	if strings.TrimSpace(o.Kind) == "" {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "offsets.kind",
			Message:  "offsets.kind is empty; offsets are kept in memory and every run starts from the beginning",
		})
		return issues
	}

	known := map[string]struct{}{
		"memory":   {},
		"none":     {},
		"postgres": {},
		"mysql":    {},
		"mssql":    {},
		"sqlite":   {},
	}
	if _, ok := known[o.Kind]; !ok {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "offsets.kind",
			Message:  fmt.Sprintf("unknown offsets kind %q; ensure a matching backend is registered", o.Kind),
		})
	}
	if o.Kind != "memory" && o.Kind != "none" && strings.TrimSpace(o.DSN) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "offsets.dsn",
			Message:  "offsets.dsn must not be empty",
		})
	}

	return issues
}

func validateSink(s Sink) []Issue {
	var issues []Issue

	switch s.Kind {
	case "":
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "sink.kind",
			Message:  "sink.kind must not be empty",
		})
	case "jsonl":
		if strings.TrimSpace(s.Path) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "sink.path",
				Message:  `jsonl sink requires a path ("-" for stdout)`,
			})
		}
	case "discard":
	default:
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "sink.kind",
			Message:  fmt.Sprintf("unknown sink kind %q; ensure a matching implementation exists", s.Kind),
		})
	}
	return issues
}

// validateRuntime validates Runtime for obvious misconfigurations
// (negative values, zero-sized batches).
func validateRuntime(r Runtime) []Issue {
	var issues []Issue

	if r.BatchSize <= 0 {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "runtime.batch_size",
			Message:  fmt.Sprintf("batch_size=%d; the default is used", r.BatchSize),
		})
	}
	if r.Workers < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "runtime.workers",
			Message:  "workers must not be negative",
		})
	}

	return issues
}
