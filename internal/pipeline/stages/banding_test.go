package stages

import (
	"testing"

	"github.com/xrayctl/xrayd/internal/pipeline"
	"github.com/xrayctl/xrayd/internal/xframe"
)

func TestBandingCorrectHorizontalRemovesStripe(t *testing.T) {
	w, h := 40, 64
	f := xframe.NewFrame(w, h)
	for y := 0; y < h; y++ {
		stripe := float32(0)
		if y%2 == 0 {
			stripe = 30
		}
		for x := 0; x < w; x++ {
			f.Samples[y*w+x] = 100 + stripe
		}
	}

	p := pipeline.DefaultBandingParams()
	p.Horizontal = true
	ctx := enabledCtx("banding_correct")
	ctx.Banding = p

	out := BandingCorrect{}.Apply(f, ctx)
	var maxDelta float32
	for y := 0; y < h; y++ {
		d := out.Samples[y*w] - out.Samples[(h-1)*w]
		if d < 0 {
			d = -d
		}
		if d > maxDelta {
			maxDelta = d
		}
	}
	if maxDelta > 5 {
		t.Fatalf("expected horizontal banding to be mostly removed, residual delta %v", maxDelta)
	}
}

func TestBandingCorrectDisabledPassesThrough(t *testing.T) {
	f := fullFrame(8, 8, 10)
	ctx := enabledCtx("banding_correct")
	out := BandingCorrect{}.Apply(f, ctx)
	if out != f {
		t.Fatalf("expected pass-through when neither axis enabled")
	}
}

func TestOptimizeWindowHorizontalFindsNarrowerWindowForFastBanding(t *testing.T) {
	w, h := 40, 200
	f := xframe.NewFrame(w, h)
	for y := 0; y < h; y++ {
		stripe := float32(0)
		if y%2 == 0 {
			stripe = 30
		}
		for x := 0; x < w; x++ {
			f.Samples[y*w+x] = 100 + stripe
		}
	}

	p := pipeline.DefaultBandingParams()
	win, score := BandingCorrect{}.OptimizeWindowHorizontal(f, p)
	if win < optimizeWindowMin || win > optimizeWindowMax {
		t.Fatalf("window %d out of grid-search range", win)
	}
	if score < 0 {
		t.Fatalf("expected non-negative score, got %v", score)
	}
}

func TestOptimizeWindowVerticalShortCircuitsOnDegenerateStripe(t *testing.T) {
	f := xframe.NewFrame(8, 8)
	p := pipeline.DefaultBandingParams()
	p.VerticalStripeH = 0
	win, score := BandingCorrect{}.OptimizeWindowVertical(f, p)
	if win != pipeline.DefaultBandingParams().VerticalSmoothWindow || score != 0 {
		t.Fatalf("expected degenerate-stripe short circuit, got window=%d score=%v", win, score)
	}
}
