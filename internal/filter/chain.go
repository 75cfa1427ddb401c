package filter

import (
	"fmt"

	"fileflow/internal/config"
	"fileflow/internal/source"
	"fileflow/pkg/data"
)

// Stage is one named step of a Chain.
type Stage struct {
	Name   string
	Filter Filter
	Policy Policy
}

// Chain is an ordered list of stages. A chain holds per-source state and
// must not be shared between sources.
type Chain struct {
	stages  []Stage
	dropped int64
}

func NewChain(stages ...Stage) *Chain { return &Chain{stages: stages} }

// Build configures a fresh chain from filter configuration.
func Build(specs []config.Filter) (*Chain, error) {
	stages := make([]Stage, 0, len(specs))
	for i, spec := range specs {
		name := spec.Name
		if name == "" {
			name = spec.Kind
		}
		policy, err := ParsePolicy(spec.OnFailure)
		if err != nil {
			return nil, fmt.Errorf("filters[%d] %s: %w", i, name, err)
		}
		f, err := New(spec.Kind, spec.Options.Flatten())
		if err != nil {
			return nil, fmt.Errorf("filters[%d] %s: %w", i, name, err)
		}
		stages = append(stages, Stage{Name: name, Filter: f, Policy: policy})
	}
	return NewChain(stages...), nil
}

func (c *Chain) Len() int { return len(c.stages) }

// Dropped is the number of records removed by stages with PolicyDrop.
func (c *Chain) Dropped() int64 { return c.dropped }

// Apply runs rec, read at ctx.Offset, through every stage. Records emitted
// by a stage are fed to the next one in order; all but the last of them are
// passed on with hasNext set.
//
// A stage failing under PolicyFail removes only the record it failed on.
// Its siblings keep going, and Apply returns them together with the first
// such *FilterError.
func (c *Chain) Apply(ctx *Context, rec *data.TypedStruct, hasNext bool) ([]Output, error) {
	return c.run(ctx, 0, []Output{{Record: rec, Offset: ctx.Offset}}, hasNext)
}

func (c *Chain) run(ctx *Context, from int, items []Output, hasNext bool) ([]Output, error) {
	orig := ctx.Offset
	defer func() { ctx.Offset = orig }()

	var failed *FilterError
	for _, st := range c.stages[from:] {
		_, buffering := st.Filter.(Buffering)
		var next []Output
		for i, in := range items {
			more := hasNext || i < len(items)-1
			ctx.Offset = in.Offset
			if buffering {
				ctx.hold(in)
			}
			out, err := st.Filter.Apply(ctx, in.Record, more)
			for _, r := range out {
				next = append(next, derive(ctx, in, r, buffering))
			}
			if err == nil {
				continue
			}
			if buffering {
				ctx.release(in.Record)
			}
			fe := FilterError{Message: err.Error(), Filter: st.Name}
			ctx.AddError(fe)
			switch st.Policy {
			case PolicyTag:
				in.Errors = append(in.Errors[:len(in.Errors):len(in.Errors)], fe)
				next = append(next, in)
			case PolicyDrop:
				c.dropped++
			default:
				if failed == nil {
					failed = &fe
				}
			}
		}
		if len(next) == 0 {
			return nil, errOrNil(failed)
		}
		items = next
	}
	return items, errOrNil(failed)
}

// derive attaches provenance to r, emitted while in was applied. A record
// released by a buffering stage keeps the provenance it was held with.
func derive(ctx *Context, in Output, r *data.TypedStruct, buffering bool) Output {
	if buffering {
		if h, ok := ctx.release(r); ok {
			h.Record = r
			return h
		}
	}
	return Output{Record: r, Offset: in.Offset, Errors: in.Errors}
}

func errOrNil(fe *FilterError) error {
	if fe == nil {
		return nil
	}
	return fe
}

// Flush drains every buffering stage in order. Flushed records run through
// the stages after the one that held them with hasNext false. Like Apply it
// returns what survived together with the first PolicyFail error.
func (c *Chain) Flush(ctx *Context) ([]Output, error) {
	var (
		out    []Output
		failed error
	)
	for i, st := range c.stages {
		b, ok := st.Filter.(Buffering)
		if !ok {
			continue
		}
		recs := b.Flush(ctx)
		if len(recs) == 0 {
			continue
		}
		items := make([]Output, 0, len(recs))
		for _, r := range recs {
			items = append(items, derive(ctx, Output{Offset: ctx.Offset}, r, true))
		}
		emitted, err := c.run(ctx, i+1, items, false)
		out = append(out, emitted...)
		if err != nil && failed == nil {
			failed = err
		}
	}
	return out, failed
}

// Pending is the earliest offset still buffered by any stage.
func (c *Chain) Pending() (source.RecordOffset, bool) {
	var (
		first source.RecordOffset
		found bool
	)
	for _, st := range c.stages {
		b, ok := st.Filter.(Buffering)
		if !ok {
			continue
		}
		off, ok := b.Pending()
		if !ok {
			continue
		}
		if !found || off.Rewind().Before(first.Rewind()) {
			first, found = off, true
		}
	}
	return first, found
}
