package pipeline_test

import (
	"testing"

	"github.com/xrayctl/xrayd/internal/pipeline"
	"github.com/xrayctl/xrayd/internal/pipeline/stages"
	"github.com/xrayctl/xrayd/internal/xframe"
)

func fullFrame(w, h int, v float32) *xframe.Frame {
	f := xframe.NewFrame(w, h)
	for i := range f.Samples {
		f.Samples[i] = v
	}
	return f
}

func fullyEnabledContext() *pipeline.Context {
	ctx := &pipeline.Context{Enabled: make(map[string]bool)}
	for _, s := range stages.NewDefaultRegistry() {
		ctx.Enabled[s.Name()] = true
	}
	ctx.Banding = pipeline.DefaultBandingParams()
	ctx.Enhance = pipeline.DefaultEnhanceParams()
	ctx.Pincushion = pipeline.DistortionParams{CenterX: -1, CenterY: -1}
	ctx.Mustache = pipeline.MustacheParams{CenterX: -1, CenterY: -1}
	return ctx
}

func TestNewRejectsDuplicateSlots(t *testing.T) {
	_, err := pipeline.New([]pipeline.Stage{stages.Crop{}, stages.Crop{}}, nil)
	if err == nil {
		t.Fatalf("expected an error for two stages claiming the same slot")
	}
}

func TestStagesAreSlotOrdered(t *testing.T) {
	p, err := pipeline.New(stages.NewDefaultRegistry(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	prev := -1
	for _, s := range p.Stages() {
		if s.Slot() <= prev {
			t.Fatalf("stages not slot-ordered: %d after %d", s.Slot(), prev)
		}
		prev = s.Slot()
	}
}

// TestPrefixThenContinuationMatchesLiveRun encodes the property that a
// capture-time prefix run that stops before a slot, followed by a
// continuation from the slot just before it, reaches the same result as a
// single live run over an identical input frame and context.
func TestPrefixThenContinuationMatchesLiveRun(t *testing.T) {
	p, err := pipeline.New(stages.NewDefaultRegistry(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx := fullyEnabledContext()

	live := fullFrame(12, 12, 40)
	liveOut, _ := p.RunLive(live, ctx)

	split := fullFrame(12, 12, 40)
	prefix := p.RunPrefix(split, ctx, stages.CropSlot)
	splitOut := p.ContinueFromSlot(prefix, ctx, stages.EnhanceSlot)

	if len(liveOut.Samples) != len(splitOut.Samples) {
		t.Fatalf("shape mismatch between live and split runs")
	}
	for i := range liveOut.Samples {
		if diff := liveOut.Samples[i] - splitOut.Samples[i]; diff > 1e-3 || diff < -1e-3 {
			t.Fatalf("sample %d diverged: live=%v split=%v", i, liveOut.Samples[i], splitOut.Samples[i])
		}
	}
}

func TestContinueFromModuleFallsBackOnUnknownName(t *testing.T) {
	p, err := pipeline.New(stages.NewDefaultRegistry(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx := fullyEnabledContext()
	f := fullFrame(4, 4, 1)

	out := p.ContinueFromModule("not_a_real_stage", f, ctx)
	if out == nil {
		t.Fatalf("expected a full-pipeline fallback run, got nil")
	}
}

func TestIncomingFrameCachesPerStageInput(t *testing.T) {
	p, err := pipeline.New(stages.NewDefaultRegistry(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx := fullyEnabledContext()
	f := fullFrame(4, 4, 7)

	if p.IncomingFrame("crop") != nil {
		t.Fatalf("expected no cached input before any run")
	}
	p.RunLive(f, ctx)
	cached := p.IncomingFrame("crop")
	if cached == nil {
		t.Fatalf("expected a cached input frame for crop after a live run")
	}
	if cached.Width != 4 || cached.Height != 4 {
		t.Fatalf("cached frame has unexpected shape %dx%d", cached.Width, cached.Height)
	}
}

func TestDisabledStageDoesNotMutateFrame(t *testing.T) {
	p, err := pipeline.New(stages.NewDefaultRegistry(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx := &pipeline.Context{Enabled: map[string]bool{}}
	f := fullFrame(4, 4, 7)

	out, _ := p.RunLive(f, ctx)
	for i, v := range out.Samples {
		if v != f.Samples[i] {
			t.Fatalf("expected frame unchanged with every stage disabled")
		}
	}
}
