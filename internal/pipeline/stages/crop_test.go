package stages

import (
	"testing"

	"github.com/xrayctl/xrayd/internal/pipeline"
	"github.com/xrayctl/xrayd/internal/xframe"
)

func TestCropExtractsRectangle(t *testing.T) {
	w, h := 5, 5
	f := xframe.NewFrame(w, h)
	for i := range f.Samples {
		f.Samples[i] = float32(i)
	}
	ctx := enabledCtx("crop")
	ctx.Crop = pipeline.CropParams{XStart: 1, YStart: 1, XEnd: 3, YEnd: 3}

	out := Crop{}.Apply(f, ctx)
	if out.Width != 2 || out.Height != 2 {
		t.Fatalf("expected a 2x2 crop, got %dx%d", out.Width, out.Height)
	}
	if out.At(0, 0) != f.At(1, 1) || out.At(1, 1) != f.At(2, 2) {
		t.Fatalf("crop did not preserve the expected source pixels")
	}
}

func TestCropZeroRectangleDisabled(t *testing.T) {
	f := fullFrame(4, 4, 1)
	ctx := enabledCtx("crop")
	out := Crop{}.Apply(f, ctx)
	if out != f {
		t.Fatalf("expected pass-through for the zero rectangle")
	}
}

func TestCropClampsOutOfBounds(t *testing.T) {
	f := fullFrame(4, 4, 1)
	ctx := enabledCtx("crop")
	ctx.Crop = pipeline.CropParams{XStart: -10, YStart: -10, XEnd: 100, YEnd: 100}
	out := Crop{}.Apply(f, ctx)
	if out.Width != 4 || out.Height != 4 {
		t.Fatalf("expected clamp to frame bounds, got %dx%d", out.Width, out.Height)
	}
}
