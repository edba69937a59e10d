package stages

import (
	"math"
	"sort"

	"github.com/xrayctl/xrayd/internal/pipeline"
	"github.com/xrayctl/xrayd/internal/xframe"
)

// BackgroundSeparateSlot is the canonical slot for background separation.
const BackgroundSeparateSlot = 600

// White-reference sampling bands, grounded on
// original_source/modules/image_processing/background_separator's
// _estimate_white_reference.
const (
	whiteRefBandLow   = 98.8
	whiteRefBandHigh  = 99.9
	whiteRefFallback  = 99.5
	whiteRefMinPixels = 32
)

// BackgroundSeparate is the slot-600 stage: clips near-white pixels to a
// robustly estimated white reference to flatten the uncovered sensor
// background.
type BackgroundSeparate struct{}

func (BackgroundSeparate) Name() string { return "background_separate" }
func (BackgroundSeparate) Slot() int    { return BackgroundSeparateSlot }

func (BackgroundSeparate) Apply(frame *xframe.Frame, ctx *pipeline.Context) *xframe.Frame {
	offset := ctx.Background.Offset
	if offset < 0 {
		offset = 0
	}
	whiteRef := estimateWhiteReference(frame.Samples)
	threshold := whiteRef - offset

	out := frame.Clone()
	for i, v := range out.Samples {
		if math.IsNaN(float64(v)) {
			out.Samples[i] = 0
			continue
		}
		if math.IsInf(float64(v), 1) {
			out.Samples[i] = float32(whiteRef)
			continue
		}
		if math.IsInf(float64(v), -1) {
			out.Samples[i] = 0
			continue
		}
		if float64(v) >= threshold {
			out.Samples[i] = float32(whiteRef)
		}
	}
	return out
}

// estimateWhiteReference samples a near-white percentile band,
// excluding the extreme tail to resist hot-pixel bias, falling back to a
// narrower band or the frame max when too sparse.
func estimateWhiteReference(samples []float32) float64 {
	finite := make([]float64, 0, len(samples))
	for _, v := range samples {
		if !math.IsInf(float64(v), 0) && !math.IsNaN(float64(v)) {
			finite = append(finite, float64(v))
		}
	}
	if len(finite) == 0 {
		return 0
	}
	if len(finite) < whiteRefMinPixels {
		return maxF64(finite)
	}
	sorted := append([]float64(nil), finite...)
	sort.Float64s(sorted)

	pLo := percentileSorted(sorted, whiteRefBandLow)
	pHi := percentileSorted(sorted, whiteRefBandHigh)
	band := filterRange(finite, pLo, pHi)
	if len(band) < whiteRefMinPixels {
		pTop := percentileSorted(sorted, whiteRefFallback)
		band = filterMin(finite, pTop)
	}
	if len(band) == 0 {
		return maxF64(finite)
	}
	return meanF64(band)
}

func percentileSorted(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

func filterRange(xs []float64, lo, hi float64) []float64 {
	var out []float64
	for _, v := range xs {
		if v >= lo && v <= hi {
			out = append(out, v)
		}
	}
	return out
}

func filterMin(xs []float64, lo float64) []float64 {
	var out []float64
	for _, v := range xs {
		if v >= lo {
			out = append(out, v)
		}
	}
	return out
}

func maxF64(xs []float64) float64 {
	m := xs[0]
	for _, v := range xs[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

func meanF64(xs []float64) float64 {
	var sum float64
	for _, v := range xs {
		sum += v
	}
	return sum / float64(len(xs))
}
