package stages

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/xrayctl/xrayd/internal/pipeline"
	"github.com/xrayctl/xrayd/internal/xframe"
)

// FlatCorrectSlot is the canonical slot for flat-field correction.
const FlatCorrectSlot = 200

// flatDivisorFloor matches _apply_flat's divisor floor, preventing
// division blow-up on near-zero flat pixels.
const flatDivisorFloor = 1e-10

// flatClampMax matches _apply_flat's output clamp ceiling.
const flatClampMax = 1e4

// FlatCorrect is the slot-200 stage: frame / normalize(flat), clamped and
// NaN-scrubbed, grounded on
// original_source/machine_modules/flat_correction/__init__.py's
// _apply_flat.
type FlatCorrect struct{}

func (FlatCorrect) Name() string { return "flat_correct" }
func (FlatCorrect) Slot() int    { return FlatCorrectSlot }

func (FlatCorrect) Apply(frame *xframe.Frame, ctx *pipeline.Context) *xframe.Frame {
	if ctx.Flat == nil || !ctx.Flat.MatchesShape(frame.Width, frame.Height) {
		return frame
	}
	flat := ctx.Flat.Frame
	meanFlat := meanOf(flat.Samples)
	if math.IsNaN(float64(meanFlat)) || math.IsInf(float64(meanFlat), 0) || meanFlat <= 0 {
		meanFlat = flatDivisorFloor
	}

	out := xframe.NewFrame(frame.Width, frame.Height)
	for i, v := range frame.Samples {
		divisor := flat.Samples[i] / meanFlat
		if divisor < flatDivisorFloor {
			divisor = flatDivisorFloor
		}
		r := v / divisor
		if math.IsNaN(float64(r)) || math.IsInf(float64(r), 0) {
			r = 0
		}
		if r < 0 {
			r = 0
		}
		if r > flatClampMax {
			r = flatClampMax
		}
		out.Samples[i] = r
	}
	return out
}

func meanOf(xs []float32) float32 {
	col := make([]float64, len(xs))
	for i, v := range xs {
		col[i] = float64(v)
	}
	return float32(stat.Mean(col, nil))
}
