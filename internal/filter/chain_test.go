package filter

import (
	"errors"
	"testing"

	"github.com/davecgh/go-spew/spew"

	"fileflow/internal/config"
	"fileflow/internal/source"
	"fileflow/pkg/data"
)

func msg(s string) *data.TypedStruct {
	r := data.NewStruct()
	_ = r.PutString("message", s)
	return r
}

func messages(t *testing.T, recs []Output) []string {
	t.Helper()
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		s, err := r.Record.GetString("message")
		if err != nil {
			t.Fatalf("record without message: %s", spew.Sdump(r.Record))
		}
		out = append(out, s)
	}
	return out
}

// suffix appends a fixed string to message.
type suffix struct{ s string }

func (suffix) Configure(config.Settings) error { return nil }
func (f suffix) Apply(_ *Context, r *data.TypedStruct, _ bool) ([]*data.TypedStruct, error) {
	s, _ := r.GetString("message")
	r.Replace("message", data.String(s+f.s))
	return []*data.TypedStruct{r}, nil
}

// failOn fails records whose message equals bad.
type failOn struct{ bad string }

func (failOn) Configure(config.Settings) error { return nil }
func (f failOn) Apply(_ *Context, r *data.TypedStruct, _ bool) ([]*data.TypedStruct, error) {
	if s, _ := r.GetString("message"); s == f.bad {
		return nil, errors.New("bad record")
	}
	return []*data.TypedStruct{r}, nil
}

// split emits two records per input.
type split struct{}

func (split) Configure(config.Settings) error { return nil }
func (split) Apply(_ *Context, r *data.TypedStruct, _ bool) ([]*data.TypedStruct, error) {
	s, _ := r.GetString("message")
	return []*data.TypedStruct{msg(s + "1"), msg(s + "2")}, nil
}

// hasNextRecorder records the hasNext flag of every call.
type hasNextRecorder struct{ seen []bool }

func (*hasNextRecorder) Configure(config.Settings) error { return nil }
func (h *hasNextRecorder) Apply(_ *Context, r *data.TypedStruct, hasNext bool) ([]*data.TypedStruct, error) {
	h.seen = append(h.seen, hasNext)
	return []*data.TypedStruct{r}, nil
}

// holder buffers everything until flushed.
type holder struct {
	held []*data.TypedStruct
	off  source.RecordOffset
}

func (*holder) Configure(config.Settings) error { return nil }
func (h *holder) Apply(ctx *Context, r *data.TypedStruct, _ bool) ([]*data.TypedStruct, error) {
	if len(h.held) == 0 {
		h.off = ctx.Offset
	}
	h.held = append(h.held, r)
	return nil, nil
}
func (h *holder) Pending() (source.RecordOffset, bool) { return h.off, len(h.held) > 0 }
func (h *holder) Flush(*Context) []*data.TypedStruct {
	out := h.held
	h.held = nil
	return out
}

/*
TestChain_FailurePolicies verifies per-stage failure handling:

  - tag keeps the input record and records the error,
  - drop removes the record and records the error,
  - fail returns a *FilterError naming the stage and emits nothing for
    the failed record.
*/
func TestChain_FailurePolicies(t *testing.T) {
	t.Parallel()

	tests := []struct {
		policy  Policy
		want    []string
		wantErr bool
	}{
		{PolicyTag, []string{"bad!"}, false},
		{PolicyDrop, nil, false},
		{PolicyFail, nil, true},
	}
	for _, tc := range tests {
		c := NewChain(
			Stage{Name: "check", Filter: failOn{bad: "bad"}, Policy: tc.policy},
			Stage{Name: "bang", Filter: suffix{"!"}},
		)
		ctx := NewContext(source.Metadata{Path: "x"})
		out, err := c.Apply(ctx, msg("bad"), true)

		var fe *FilterError
		if tc.wantErr != errors.As(err, &fe) {
			t.Fatalf("%s: err = %v", tc.policy, err)
		}
		if fe != nil && fe.Filter != "check" {
			t.Fatalf("%s: error attributed to %q; want check", tc.policy, fe.Filter)
		}
		if got := messages(t, out); len(got) != len(tc.want) || (len(got) > 0 && got[0] != tc.want[0]) {
			t.Fatalf("%s: out = %v; want %v", tc.policy, got, tc.want)
		}
		if errs := ctx.Errors(); len(errs) != 1 || errs[0].Filter != "check" || errs[0].Message != "bad record" {
			t.Fatalf("%s: ctx errors = %s", tc.policy, spew.Sdump(errs))
		}
		wantDropped := int64(0)
		if tc.policy == PolicyDrop {
			wantDropped = 1
		}
		if c.Dropped() != wantDropped {
			t.Fatalf("%s: Dropped() = %d; want %d", tc.policy, c.Dropped(), wantDropped)
		}
	}
}

func TestChain_HasNextFollowsFanOut(t *testing.T) {
	t.Parallel()

	rec := &hasNextRecorder{}
	c := NewChain(Stage{Name: "split", Filter: split{}}, Stage{Name: "rec", Filter: rec})
	ctx := NewContext(source.Metadata{})

	out, err := c.Apply(ctx, msg("a"), false)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got := messages(t, out); len(got) != 2 || got[0] != "a1" || got[1] != "a2" {
		t.Fatalf("out = %v", got)
	}
	if len(rec.seen) != 2 || !rec.seen[0] || rec.seen[1] {
		t.Fatalf("hasNext seen = %v; want [true false]", rec.seen)
	}
}

func TestChain_FlushRunsRemainingStages(t *testing.T) {
	t.Parallel()

	h := &holder{}
	rec := &hasNextRecorder{}
	c := NewChain(
		Stage{Name: "hold", Filter: h},
		Stage{Name: "bang", Filter: suffix{"!"}},
		Stage{Name: "rec", Filter: rec},
	)
	ctx := NewContext(source.Metadata{})

	for i, s := range []string{"a", "b"} {
		ctx.Reset(source.NewBytesRecordOffset(int64(i*2), int64(i*2+2)))
		out, err := c.Apply(ctx, msg(s), true)
		if err != nil || len(out) != 0 {
			t.Fatalf("Apply(%s) = %v, %v; want nothing", s, out, err)
		}
	}

	off, ok := c.Pending()
	if !ok || off.Rewind().Position != 0 {
		t.Fatalf("Pending() = %v, %v; want offset starting at 0", off, ok)
	}

	out, err := c.Flush(ctx)
	if err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if got := messages(t, out); len(got) != 2 || got[0] != "a!" || got[1] != "b!" {
		t.Fatalf("flushed = %v", got)
	}
	if out[0].Offset.Rewind().Position != 0 || out[1].Offset.Rewind().Position != 2 {
		t.Fatalf("flushed offsets = %v, %v; want the offsets the records were read at", out[0].Offset, out[1].Offset)
	}
	if len(rec.seen) != 2 || !rec.seen[0] || rec.seen[1] {
		t.Fatalf("hasNext seen = %v; want [true false]", rec.seen)
	}
	if _, ok := c.Pending(); ok {
		t.Fatalf("Pending() after Flush still reports an offset")
	}
}

// A failing stage under fail removes only the record it failed on; records
// emitted alongside it by an earlier stage continue.
func TestChain_FailKeepsSiblings(t *testing.T) {
	t.Parallel()

	c := NewChain(
		Stage{Name: "split", Filter: split{}},
		Stage{Name: "check", Filter: failOn{bad: "a1"}, Policy: PolicyFail},
		Stage{Name: "bang", Filter: suffix{"!"}},
	)
	ctx := NewContext(source.Metadata{})
	ctx.Reset(source.NewBytesRecordOffset(5, 7))

	out, err := c.Apply(ctx, msg("a"), false)
	var fe *FilterError
	if !errors.As(err, &fe) || fe.Filter != "check" {
		t.Fatalf("err = %v; want *FilterError from check", err)
	}
	if got := messages(t, out); len(got) != 1 || got[0] != "a2!" {
		t.Fatalf("out = %v; want [a2!]", got)
	}
	if len(out[0].Errors) != 0 {
		t.Fatalf("surviving record carries errors: %s", spew.Sdump(out[0].Errors))
	}
	if ctx.Offset.Rewind().Position != 5 {
		t.Fatalf("ctx.Offset changed to %v", ctx.Offset)
	}
}

func TestChain_ErrorsStayWithTheirRecord(t *testing.T) {
	t.Parallel()

	c := NewChain(
		Stage{Name: "split", Filter: split{}},
		Stage{Name: "check", Filter: failOn{bad: "a1"}, Policy: PolicyTag},
	)
	ctx := NewContext(source.Metadata{})
	ctx.Reset(source.NewBytesRecordOffset(0, 2))

	out, err := c.Apply(ctx, msg("a"), false)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got := messages(t, out); len(got) != 2 || got[0] != "a1" || got[1] != "a2" {
		t.Fatalf("out = %v", got)
	}
	if len(out[0].Errors) != 1 || out[0].Errors[0].Filter != "check" {
		t.Fatalf("a1 errors = %s", spew.Sdump(out[0].Errors))
	}
	if len(out[1].Errors) != 0 {
		t.Fatalf("a2 carries errors it never raised: %s", spew.Sdump(out[1].Errors))
	}
	fs := ctx.Failures()
	if len(fs) != 1 || fs[0].Offset.Rewind().Position != 0 {
		t.Fatalf("failures = %s", spew.Sdump(fs))
	}
}

// A record tagged before a buffering stage keeps its error and its own
// offset when the stage releases it.
func TestChain_HeldRecordKeepsProvenance(t *testing.T) {
	t.Parallel()

	c := NewChain(
		Stage{Name: "check", Filter: failOn{bad: "b"}, Policy: PolicyTag},
		Stage{Name: "hold", Filter: &holder{}},
	)
	ctx := NewContext(source.Metadata{})
	for i, s := range []string{"a", "b"} {
		ctx.Reset(source.NewBytesRecordOffset(int64(i*10), int64(i*10+10)))
		if out, err := c.Apply(ctx, msg(s), true); err != nil || len(out) != 0 {
			t.Fatalf("Apply(%s) = %v, %v", s, out, err)
		}
	}
	ctx.Reset(source.NewBytesRecordOffset(0, 10))
	out, err := c.Flush(ctx)
	if err != nil || len(out) != 2 {
		t.Fatalf("Flush = %v, %v", out, err)
	}
	if len(out[0].Errors) != 0 || out[0].Offset.Rewind().Position != 0 {
		t.Fatalf("a = %s", spew.Sdump(out[0].Errors, out[0].Offset))
	}
	if len(out[1].Errors) != 1 || out[1].Offset.Rewind().Position != 10 {
		t.Fatalf("b = %s", spew.Sdump(out[1].Errors, out[1].Offset))
	}
}

func TestChain_PendingIsEarliest(t *testing.T) {
	t.Parallel()

	a := &holder{held: []*data.TypedStruct{msg("x")}, off: source.NewBytesRecordOffset(40, 50)}
	b := &holder{held: []*data.TypedStruct{msg("y")}, off: source.NewBytesRecordOffset(10, 20)}
	c := NewChain(Stage{Name: "a", Filter: a}, Stage{Name: "b", Filter: b})

	off, ok := c.Pending()
	if !ok || off.Rewind().Position != 10 {
		t.Fatalf("Pending() = %v; want start 10", off)
	}
}

func TestParsePolicy(t *testing.T) {
	t.Parallel()

	tests := map[string]Policy{
		"": PolicyFail, "fail": PolicyFail, "ABORT": PolicyFail,
		"tag": PolicyTag, "continue": PolicyTag, "drop": PolicyDrop,
	}
	for in, want := range tests {
		got, err := ParsePolicy(in)
		if err != nil || got != want {
			t.Fatalf("ParsePolicy(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	var ce *config.ConfigError
	if _, err := ParsePolicy("retry"); !errors.As(err, &ce) {
		t.Fatalf("ParsePolicy(retry) err = %v; want *config.ConfigError", err)
	}
}

func TestBuild_UnknownKind(t *testing.T) {
	t.Parallel()

	if _, err := Build([]config.Filter{{Kind: "nope"}}); err == nil {
		t.Fatalf("Build accepted an unknown kind")
	}
	if _, err := Build([]config.Filter{{Kind: "nope", OnFailure: "sometimes"}}); err == nil {
		t.Fatalf("Build accepted an unknown policy")
	}
}

func TestContext_ResetClearsErrors(t *testing.T) {
	t.Parallel()

	ctx := NewContext(source.Metadata{})
	if !ctx.Offset.IsEmpty() {
		t.Fatalf("new context offset = %v; want empty", ctx.Offset)
	}
	ctx.AddError(FilterError{Message: "m", Filter: "f"})
	errs := ctx.Errors()
	ctx.Reset(source.NewBytesRecordOffset(0, 1))
	if len(ctx.Errors()) != 0 || len(errs) != 1 {
		t.Fatalf("errors after reset = %v, snapshot = %v", ctx.Errors(), errs)
	}
}
