// Package filter runs records through an ordered chain of filters. Each
// filter may emit zero, one or many records per input; stateful filters
// buffer records across calls and are drained with Flush.
package filter

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"fileflow/internal/config"
	"fileflow/internal/source"
	"fileflow/pkg/data"
)

// Filter transforms one record. hasNext reports whether more input will
// follow; stateful filters use it to release what they hold at the end of a
// stream. A filter owns the records it is given.
type Filter interface {
	Configure(s config.Settings) error
	Apply(ctx *Context, rec *data.TypedStruct, hasNext bool) ([]*data.TypedStruct, error)
}

// Buffering is implemented by filters that hold records between calls.
//
// A record handed to Apply is either emitted, kept as the head of what the
// filter buffers, or merged into a buffered record; merges are reported
// with Context.Absorb so the chain can carry the merged record's errors.
type Buffering interface {
	Filter
	// Pending is the offset of the first buffered record, if any.
	Pending() (source.RecordOffset, bool)
	// Flush emits everything buffered and resets the filter.
	Flush(ctx *Context) []*data.TypedStruct
}

// Context describes the record being filtered and collects the errors
// raised while filtering it. One Context serves one source.
type Context struct {
	Metadata source.Metadata
	// Offset is the offset of the record a filter is applied to: the input
	// record, or for records built from several inputs the first of them.
	Offset source.RecordOffset
	errs   []Failure
	// held tracks the provenance of records kept by buffering stages.
	held map[*data.TypedStruct]Output
}

func NewContext(md source.Metadata) *Context {
	return &Context{Metadata: md, Offset: source.EmptyBytesOffset()}
}

// Reset points the context at the next input record and clears its errors.
func (c *Context) Reset(off source.RecordOffset) {
	c.Offset = off
	c.errs = c.errs[:0]
}

// AddError records e against the current Offset.
func (c *Context) AddError(e FilterError) {
	c.errs = append(c.errs, Failure{Offset: c.Offset, FilterError: e})
}

// Errors returns the errors raised since the last Reset.
func (c *Context) Errors() []FilterError {
	out := make([]FilterError, len(c.errs))
	for i, f := range c.errs {
		out[i] = f.FilterError
	}
	return out
}

// Failures returns the errors raised since the last Reset with the offset
// of the record each was raised on.
func (c *Context) Failures() []Failure {
	out := make([]Failure, len(c.errs))
	copy(out, c.errs)
	return out
}

// Absorb tells the chain that a buffering filter merged src into dst. The
// errors tagged on src move to dst.
func (c *Context) Absorb(dst, src *data.TypedStruct) {
	h, ok := c.held[src]
	if !ok {
		return
	}
	delete(c.held, src)
	if d, ok := c.held[dst]; ok && len(h.Errors) > 0 {
		d.Errors = append(d.Errors[:len(d.Errors):len(d.Errors)], h.Errors...)
		c.held[dst] = d
	}
}

func (c *Context) hold(o Output) {
	if c.held == nil {
		c.held = make(map[*data.TypedStruct]Output)
	}
	c.held[o.Record] = o
}

// release returns and forgets the provenance of rec.
func (c *Context) release(rec *data.TypedStruct) (Output, bool) {
	o, ok := c.held[rec]
	if ok {
		delete(c.held, rec)
	}
	return o, ok
}

// Output is a record leaving the chain. Offset is the offset of the first
// input record it was built from; Errors are the failures tagged on it or
// on the records merged into it.
type Output struct {
	Record *data.TypedStruct
	Offset source.RecordOffset
	Errors []FilterError
}

// Failure is a FilterError with the offset of the record it was raised on.
type Failure struct {
	Offset source.RecordOffset
	FilterError
}

// FilterError is a filter failure attributed to a chain step.
type FilterError struct {
	Message string `json:"message"`
	Filter  string `json:"filter"`
}

func (e *FilterError) Error() string {
	return fmt.Sprintf("filter %s: %s", e.Filter, e.Message)
}

// Policy decides what happens to a record whose filter failed.
type Policy int

const (
	// PolicyFail stops the chain for the failing record and returns the
	// error; records emitted alongside it continue.
	PolicyFail Policy = iota
	// PolicyTag records the error and passes the input record on unchanged.
	PolicyTag
	// PolicyDrop records the error and drops the record.
	PolicyDrop
)

func (p Policy) String() string {
	switch p {
	case PolicyTag:
		return "tag"
	case PolicyDrop:
		return "drop"
	default:
		return "fail"
	}
}

// ParsePolicy accepts fail|abort, tag|continue and drop. Empty means fail.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "fail", "abort":
		return PolicyFail, nil
	case "tag", "continue":
		return PolicyTag, nil
	case "drop":
		return PolicyDrop, nil
	}
	return PolicyFail, &config.ConfigError{Key: "on_failure", Msg: fmt.Sprintf("unknown policy %q", s)}
}

// Factory returns an unconfigured Filter.
type Factory func() Filter

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register makes a filter kind available to New. It is called from init.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[kind] = f
}

// New returns a configured filter of the given kind.
func New(kind string, s config.Settings) (Filter, error) {
	mu.RLock()
	f, ok := factories[kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown filter kind %q", kind)
	}
	flt := f()
	if err := flt.Configure(s); err != nil {
		return nil, fmt.Errorf("filter %s: %w", kind, err)
	}
	return flt, nil
}

// Kinds lists the registered filter kinds in sorted order.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
