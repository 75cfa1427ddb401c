package reader

import (
	"fmt"
	"strings"
)

// pathSeg is one element name, optionally with an attribute predicate.
type pathSeg struct{ name, attrName, attrVal string }

// xmlPath is a path relative to the record element, like "A/B/C[@k='v']".
// Only the last segment may carry a predicate.
type xmlPath struct{ segs []pathSeg }

func parseXMLPath(raw string) (xmlPath, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return xmlPath{}, fmt.Errorf("empty path")
	}
	parts := strings.Split(raw, "/")
	segs := make([]pathSeg, 0, len(parts))
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			return xmlPath{}, fmt.Errorf("bad empty segment in %q", raw)
		}
		s := pathSeg{name: p}
		if j := strings.Index(p, "["); j != -1 {
			if i != len(parts)-1 || !strings.HasSuffix(p, "]") {
				return xmlPath{}, fmt.Errorf("predicate allowed on the last segment only in %q", raw)
			}
			s.name = p[:j]
			pred := strings.TrimSpace(p[j+1 : len(p)-1])
			name, val, ok := strings.Cut(strings.TrimPrefix(pred, "@"), "=")
			if !strings.HasPrefix(pred, "@") || !ok || name == "" {
				return xmlPath{}, fmt.Errorf("unsupported predicate [%s] in %q", pred, raw)
			}
			s.attrName = strings.TrimSpace(name)
			s.attrVal = strings.Trim(strings.TrimSpace(val), `"'`)
		}
		segs = append(segs, s)
	}
	return xmlPath{segs: segs}, nil
}

func (p xmlPath) last() pathSeg { return p.segs[len(p.segs)-1] }

// xmlMatcher binds an output field to a path.
type xmlMatcher struct {
	field  string
	path   xmlPath
	isList bool
}

// compileXMLPaths indexes matchers by the element name that ends their path.
func compileXMLPaths(fields, lists map[string]string) (map[string][]xmlMatcher, error) {
	byLast := make(map[string][]xmlMatcher, len(fields)+len(lists))
	add := func(kind string, m map[string]string, isList bool) error {
		for field, raw := range m {
			p, err := parseXMLPath(raw)
			if err != nil {
				return fmt.Errorf("%s.%s: %w", kind, field, err)
			}
			last := p.last().name
			byLast[last] = append(byLast[last], xmlMatcher{field: field, path: p, isList: isList})
		}
		return nil
	}
	if err := add("fields", fields, false); err != nil {
		return nil, err
	}
	if err := add("lists", lists, true); err != nil {
		return nil, err
	}
	return byLast, nil
}

// tailMatches reports whether rel, the element names below the record,
// ends with the segments of p.
func tailMatches(rel []string, p xmlPath) bool {
	if len(rel) < len(p.segs) {
		return false
	}
	off := len(rel) - len(p.segs)
	for i := range p.segs {
		if rel[off+i] != p.segs[i].name {
			return false
		}
	}
	return true
}
