package stages

import (
	"testing"

	"github.com/xrayctl/xrayd/internal/calib"
	"github.com/xrayctl/xrayd/internal/pipeline"
	"github.com/xrayctl/xrayd/internal/xframe"
)

func fullFrame(w, h int, v float32) *xframe.Frame {
	f := xframe.NewFrame(w, h)
	for i := range f.Samples {
		f.Samples[i] = v
	}
	return f
}

func enabledCtx(names ...string) *pipeline.Context {
	ctx := &pipeline.Context{Enabled: make(map[string]bool)}
	for _, n := range names {
		ctx.Enabled[n] = true
	}
	return ctx
}

func TestDarkSubtract(t *testing.T) {
	frame := fullFrame(4, 4, 100)
	dark := &calib.Reference{Kind: calib.Dark, Frame: fullFrame(4, 4, 10)}
	ctx := enabledCtx("dark_subtract")
	ctx.Dark = dark

	out := DarkSubtract{}.Apply(frame, ctx)
	for _, v := range out.Samples {
		if v != 90 {
			t.Fatalf("expected 90, got %v", v)
		}
	}
}

func TestDarkSubtractShapeMismatchPassesThrough(t *testing.T) {
	frame := fullFrame(4, 4, 100)
	dark := &calib.Reference{Kind: calib.Dark, Frame: fullFrame(2, 2, 10)}
	ctx := enabledCtx("dark_subtract")
	ctx.Dark = dark

	out := DarkSubtract{}.Apply(frame, ctx)
	if out != frame {
		t.Fatalf("expected pass-through on shape mismatch")
	}
}

func TestDarkSubtractNoReference(t *testing.T) {
	frame := fullFrame(4, 4, 100)
	ctx := enabledCtx("dark_subtract")
	out := DarkSubtract{}.Apply(frame, ctx)
	if out != frame {
		t.Fatalf("expected pass-through with no dark reference")
	}
}

func TestDarkSubtractUniformSaturatedFrameSkipsRescale(t *testing.T) {
	// A uniform, saturated frame has f_min == f_max, so f_range collapses to
	// ~1e-10 and the rescale gate must stay closed even though the frame's
	// max is far above the dark's; subtraction alone should apply.
	frame := fullFrame(4, 4, 6000)
	dark := &calib.Reference{Kind: calib.Dark, Frame: fullFrame(4, 4, 10)}
	ctx := enabledCtx("dark_subtract")
	ctx.Dark = dark

	out := DarkSubtract{}.Apply(frame, ctx)
	for _, v := range out.Samples {
		if v != 5990 {
			t.Fatalf("expected plain subtraction (5990), got %v", v)
		}
	}
}
