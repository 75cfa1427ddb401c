package config

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Settings is the flat option view handed to readers and filters: option
// names mapped to string values. It is produced from Options by Flatten.
type Settings map[string]string

// ConfigError reports an invalid or missing option. It is raised at
// configuration time, never while records are processed.
type ConfigError struct {
	Key string
	Msg string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("option %q: %s", e.Key, e.Msg)
}

// String returns the trimmed value for key, or def when the key is absent
// or blank.
func (s Settings) String(key, def string) string {
	if v, ok := s[key]; ok && strings.TrimSpace(v) != "" {
		return v
	}
	return def
}

// Raw returns the value for key without trimming. Separators such as "\n"
// rely on this.
func (s Settings) Raw(key, def string) string {
	if v, ok := s[key]; ok && v != "" {
		return v
	}
	return def
}

// Required returns the value for key or a *ConfigError when it is blank.
func (s Settings) Required(key string) (string, error) {
	v := strings.TrimSpace(s[key])
	if v == "" {
		return "", &ConfigError{Key: key, Msg: "is required"}
	}
	return v, nil
}

func (s Settings) Bool(key string, def bool) (bool, error) {
	v := strings.TrimSpace(s[key])
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def, &ConfigError{Key: key, Msg: fmt.Sprintf("%q is not a boolean", v)}
	}
	return b, nil
}

func (s Settings) Int(key string, def int) (int, error) {
	v := strings.TrimSpace(s[key])
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def, &ConfigError{Key: key, Msg: fmt.Sprintf("%q is not an integer", v)}
	}
	return n, nil
}

// List splits a list value. Values flattened from JSON arrays are newline
// terminated items; anything else is comma separated. Blank items are
// dropped.
func (s Settings) List(key string) []string {
	v := s[key]
	if strings.TrimSpace(v) == "" {
		return nil
	}
	sep := ","
	if strings.Contains(v, "\n") {
		sep = "\n"
	}
	parts := strings.Split(v, sep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Map parses "k=v;k=v" pairs.
func (s Settings) Map(key string) (map[string]string, error) {
	v := strings.TrimSpace(s[key])
	if v == "" {
		return nil, nil
	}
	out := make(map[string]string)
	for _, pair := range strings.Split(v, ";") {
		if strings.TrimSpace(pair) == "" {
			continue
		}
		k, val, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, &ConfigError{Key: key, Msg: fmt.Sprintf("entry %q is not key=value", pair)}
		}
		out[strings.TrimSpace(k)] = strings.TrimSpace(val)
	}
	return out, nil
}

// Regexp compiles the value for key. A blank value yields nil.
func (s Settings) Regexp(key string) (*regexp.Regexp, error) {
	v := s[key]
	if v == "" {
		return nil, nil
	}
	re, err := regexp.Compile(v)
	if err != nil {
		return nil, &ConfigError{Key: key, Msg: err.Error()}
	}
	return re, nil
}

// Flatten converts free-form JSON options into Settings. Arrays become
// newline terminated items (see List) and objects become "k=v;k=v" pairs in
// key order.
func (o Options) Flatten() Settings {
	out := make(Settings, len(o))
	for k, v := range o {
		out[k] = flattenValue(v)
	}
	return out
}

func flattenValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case []string:
		var b strings.Builder
		for _, it := range x {
			b.WriteString(it)
			b.WriteByte('\n')
		}
		return b.String()
	case []any:
		var b strings.Builder
		for _, it := range x {
			b.WriteString(flattenValue(it))
			b.WriteByte('\n')
		}
		return b.String()
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+"="+flattenValue(x[k]))
		}
		return strings.Join(parts, ";")
	}
	return fmt.Sprint(v)
}
