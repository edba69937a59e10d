package stages

import (
	"testing"

	"github.com/xrayctl/xrayd/internal/pipeline"
	"github.com/xrayctl/xrayd/internal/xframe"
)

func TestDeadLineFillColumnAverages(t *testing.T) {
	f := xframe.NewFrame(5, 3)
	for y := 0; y < 3; y++ {
		f.Samples[y*5+1] = 10
		f.Samples[y*5+2] = 999 // dead column
		f.Samples[y*5+3] = 20
	}
	ctx := enabledCtx("dead_line_fill")
	ctx.DeadLine = pipeline.DeadLineParams{DeadColumns: []int{2}}

	out := DeadLineFill{}.Apply(f, ctx)
	for y := 0; y < 3; y++ {
		if got := out.At(2, y); got != 15 {
			t.Fatalf("row %d: expected averaged 15, got %v", y, got)
		}
	}
}

func TestDeadLineFillEdgeColumnCopiesSingleSide(t *testing.T) {
	f := xframe.NewFrame(3, 1)
	f.Samples[0] = 999 // dead, at the edge: no left neighbor
	f.Samples[1] = 42
	f.Samples[2] = 7
	ctx := enabledCtx("dead_line_fill")
	ctx.DeadLine = pipeline.DeadLineParams{DeadColumns: []int{0}}

	out := DeadLineFill{}.Apply(f, ctx)
	if got := out.At(0, 0); got != 42 {
		t.Fatalf("expected edge dead column to copy its only neighbor (42), got %v", got)
	}
}

func TestDeadLineFillNoneConfiguredPassesThrough(t *testing.T) {
	f := fullFrame(3, 3, 5)
	ctx := enabledCtx("dead_line_fill")
	out := DeadLineFill{}.Apply(f, ctx)
	if out != f {
		t.Fatalf("expected pass-through with no dead lines configured")
	}
}
