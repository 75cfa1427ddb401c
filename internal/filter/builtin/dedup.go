package builtin

import (
	"fmt"

	"github.com/zeebo/xxh3"

	"fileflow/internal/config"
	"fileflow/internal/filter"
	"fileflow/pkg/data"
)

func init() { filter.Register("dedup", func() filter.Filter { return &DeDup{} }) }

// DeDup drops records whose key was already seen. The key is the xxh3 hash
// of the configured fields (null -> "\x00", joined by "\x1f"); only the most
// recent max_keys hashes are remembered. Records missing a key field pass
// through.
//
// Options: keys (required), max_keys (100000).
type DeDup struct {
	keys    []string
	maxKeys int

	seen  map[uint64]struct{}
	order []uint64 // ring of hashes in insertion order
	next  int
}

func (d *DeDup) Configure(s config.Settings) error {
	d.keys = s.List("keys")
	if len(d.keys) == 0 {
		return &config.ConfigError{Key: "keys", Msg: "is required"}
	}
	var err error
	if d.maxKeys, err = s.Int("max_keys", 100000); err != nil {
		return err
	}
	if d.maxKeys <= 0 {
		return &config.ConfigError{Key: "max_keys", Msg: "must be > 0"}
	}
	d.seen = make(map[uint64]struct{})
	d.order = make([]uint64, 0, min(d.maxKeys, 1024))
	return nil
}

func (d *DeDup) Apply(_ *filter.Context, rec *data.TypedStruct, _ bool) ([]*data.TypedStruct, error) {
	h, ok := d.keyOf(rec)
	if !ok {
		return []*data.TypedStruct{rec}, nil
	}
	if _, dup := d.seen[h]; dup {
		return nil, nil
	}
	d.remember(h)
	return []*data.TypedStruct{rec}, nil
}

func (d *DeDup) keyOf(rec *data.TypedStruct) (uint64, bool) {
	var b []byte
	for i, k := range d.keys {
		v, err := rec.Find(k)
		if err != nil {
			return 0, false
		}
		if i > 0 {
			b = append(b, '\x1f')
		}
		if v.IsNull() {
			b = append(b, '\x00')
			continue
		}
		s, err := v.AsString()
		if err != nil {
			s = fmt.Sprint(v.Value())
		}
		b = append(b, s...)
	}
	return xxh3.Hash(b), true
}

func (d *DeDup) remember(h uint64) {
	if len(d.order) < d.maxKeys {
		d.order = append(d.order, h)
	} else {
		delete(d.seen, d.order[d.next])
		d.order[d.next] = h
		d.next = (d.next + 1) % d.maxKeys
	}
	d.seen[h] = struct{}{}
}
