package stages

import (
	"math"
	"testing"

	"github.com/xrayctl/xrayd/internal/pipeline"
	"github.com/xrayctl/xrayd/internal/xframe"
)

func TestBackgroundSeparateClipsNearWhite(t *testing.T) {
	w, h := 10, 10
	f := xframe.NewFrame(w, h)
	for i := range f.Samples {
		f.Samples[i] = 100 // uncovered background
	}
	f.Samples[0] = 5 // one dark (anatomy) pixel
	ctx := enabledCtx("background_separate")
	ctx.Background = pipeline.BackgroundParams{Offset: 5}

	out := BackgroundSeparate{}.Apply(f, ctx)
	if out.Samples[0] != 5 {
		t.Fatalf("expected the dark pixel untouched, got %v", out.Samples[0])
	}
	if out.Samples[1] < 95 {
		t.Fatalf("expected the uncovered background to remain near the white reference, got %v", out.Samples[1])
	}
}

func TestBackgroundSeparateScrubsNonFinite(t *testing.T) {
	f := xframe.NewFrame(2, 1)
	f.Samples[0] = float32(math.NaN())
	f.Samples[1] = float32(math.Inf(1))
	ctx := enabledCtx("background_separate")
	ctx.Background = pipeline.BackgroundParams{Offset: 5}

	out := BackgroundSeparate{}.Apply(f, ctx)
	if out.Samples[0] != 0 {
		t.Fatalf("expected NaN scrubbed to 0, got %v", out.Samples[0])
	}
	if math.IsInf(float64(out.Samples[1]), 0) {
		t.Fatalf("expected +Inf scrubbed to a finite white reference, got %v", out.Samples[1])
	}
}
