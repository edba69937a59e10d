package stages

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/xrayctl/xrayd/internal/pipeline"
	"github.com/xrayctl/xrayd/internal/xframe"
)

// BandingCorrectSlot is the canonical slot for banding correction.
const BandingCorrectSlot = 300

// BandingCorrect is the slot-300 stage: separates a slow background from a
// fast row/column-correlated banding component using a reference stripe,
// and subtracts only the banding. Grounded on
// original_source/modules/image_processing/banding/banding_correction.py.
type BandingCorrect struct{}

func (BandingCorrect) Name() string { return "banding_correct" }
func (BandingCorrect) Slot() int    { return BandingCorrectSlot }

func (BandingCorrect) Apply(frame *xframe.Frame, ctx *pipeline.Context) *xframe.Frame {
	p := ctx.Banding
	out := frame
	if p.Horizontal {
		out = correctBandingHorizontal(out, p)
	}
	if p.Vertical {
		out = correctBandingVertical(out, p)
	}
	return out
}

func correctBandingHorizontal(f *xframe.Frame, p pipeline.BandingParams) *xframe.Frame {
	w, h := f.Width, f.Height
	blackW := p.BlackW
	if blackW <= 0 {
		blackW = 20
	}
	colStart := w - blackW
	if colStart < 0 {
		colStart = 0
	}
	ref := make([]float64, h)
	for y := 0; y < h; y++ {
		row := rowSlice(f, y, colStart, w)
		ref[y] = medianF64(row)
	}
	refSlow := movingAverage1D(ref, p.SmoothWindow)
	band := make([]float64, h)
	for y := range band {
		band[y] = ref[y] - refSlow[y]
	}

	out := xframe.NewFrame(w, h)
	for y := 0; y < h; y++ {
		b := float32(band[y])
		for x := 0; x < w; x++ {
			out.Samples[y*w+x] = f.Samples[y*w+x] - b
		}
	}
	return out
}

func correctBandingVertical(f *xframe.Frame, p pipeline.BandingParams) *xframe.Frame {
	w, h := f.Width, f.Height
	stripeH := p.VerticalStripeH
	if stripeH <= 0 {
		stripeH = 20
	}
	if stripeH >= h {
		return f
	}
	rowStart := h - stripeH
	ref := make([]float64, w)
	for x := 0; x < w; x++ {
		col := colSlice(f, x, rowStart, h)
		ref[x] = medianF64(col)
	}
	win := p.VerticalSmoothWindow
	if win <= 0 {
		win = 128
	}
	if win > len(ref)/4 {
		win = max(3, len(ref)/4)
	}
	refSlow := movingAverage1D(ref, win)
	band := make([]float64, w)
	for x := range band {
		band[x] = ref[x] - refSlow[x]
	}

	out := xframe.NewFrame(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			out.Samples[y*w+x] = f.Samples[y*w+x] - float32(band[x])
		}
	}
	return out
}

func rowSlice(f *xframe.Frame, y, xStart, xEnd int) []float64 {
	out := make([]float64, 0, xEnd-xStart)
	for x := xStart; x < xEnd; x++ {
		out = append(out, float64(f.Samples[y*f.Width+x]))
	}
	return out
}

func colSlice(f *xframe.Frame, x, yStart, yEnd int) []float64 {
	out := make([]float64, 0, yEnd-yStart)
	for y := yStart; y < yEnd; y++ {
		out = append(out, float64(f.Samples[y*f.Width+x]))
	}
	return out
}

// medianF64 uses gonum/stat's 0.5 quantile, matching the reference's
// np.median usage for the per-row/per-column reference value.
func medianF64(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	return stat.Quantile(0.5, stat.LinInterp, sorted, nil)
}

// optimizeWindowMin/Max/Step bound the smooth-window grid search, matching
// optimize_smooth_window's "10 to 512 in steps of 5" default candidate
// range.
const (
	optimizeWindowMin  = 10
	optimizeWindowMax  = 512
	optimizeWindowStep = 5
)

// candidateWindows builds the grid-search candidates for a reference
// stripe of length dim, matching optimize_smooth_window's
// "min(512, dim // 4)" cap, falling back to a fixed set when the cap
// collapses the range to nothing.
func candidateWindows(dim int) []int {
	maxWin := optimizeWindowMax
	if dim/4 < maxWin {
		maxWin = dim / 4
	}
	var out []int
	for w := optimizeWindowMin; w <= maxWin; w += optimizeWindowStep {
		out = append(out, w)
	}
	if len(out) == 0 {
		return []int{10, 32, 64, 128, 256}
	}
	return out
}

// optimalWindow grid-searches candidates for the smooth window that
// minimizes the standard deviation of the corrected reference stripe.
// Subtracting a per-row (or per-column) constant band[i] from every
// sample in that row leaves the row's median shifted by exactly band[i],
// so the corrected reference is ref[i]-band[i] == refSlow[i]; scoring
// reduces to the spread of refSlow itself, matching
// optimize_smooth_window's corrected_ref/score computation without
// recomputing the full stripe subtraction.
func optimalWindow(ref []float64, candidates []int) (int, float64) {
	best := candidates[0]
	bestScore := math.Inf(1)
	for _, win := range candidates {
		refSlow := movingAverage1D(ref, win)
		score := stat.StdDev(refSlow, nil)
		if score < bestScore {
			bestScore = score
			best = win
		}
	}
	return best, bestScore
}

// OptimizeWindowHorizontal searches for the horizontal smooth window size
// that best flattens frame's reference stripe, matching
// optimize_smooth_window. It is a standalone operation meant to be run
// on demand rather than on every frame; callers feed the result back into
// BandingParams.SmoothWindow.
func (BandingCorrect) OptimizeWindowHorizontal(f *xframe.Frame, p pipeline.BandingParams) (window int, score float64) {
	blackW := p.BlackW
	if blackW <= 0 {
		blackW = 20
	}
	colStart := f.Width - blackW
	if colStart < 0 {
		colStart = 0
	}
	ref := make([]float64, f.Height)
	for y := 0; y < f.Height; y++ {
		ref[y] = medianF64(rowSlice(f, y, colStart, f.Width))
	}
	return optimalWindow(ref, candidateWindows(f.Height))
}

// OptimizeWindowVertical is the vertical counterpart of
// OptimizeWindowHorizontal, matching optimize_smooth_window_vertical.
func (BandingCorrect) OptimizeWindowVertical(f *xframe.Frame, p pipeline.BandingParams) (window int, score float64) {
	stripeH := p.VerticalStripeH
	if stripeH <= 0 || stripeH >= f.Height {
		return pipeline.DefaultBandingParams().VerticalSmoothWindow, 0
	}
	rowStart := f.Height - stripeH
	ref := make([]float64, f.Width)
	for x := 0; x < f.Width; x++ {
		ref[x] = medianF64(colSlice(f, x, rowStart, f.Height))
	}
	return optimalWindow(ref, candidateWindows(f.Width))
}

// movingAverage1D is a box filter with edge padding, matching
// moving_average_1d.
func movingAverage1D(x []float64, win int) []float64 {
	if win < 3 {
		return append([]float64(nil), x...)
	}
	n := len(x)
	padLeft := win / 2
	padRight := win - 1 - padLeft
	padded := make([]float64, n+padLeft+padRight)
	for i := 0; i < padLeft; i++ {
		padded[i] = x[0]
	}
	copy(padded[padLeft:padLeft+n], x)
	for i := 0; i < padRight; i++ {
		padded[padLeft+n+i] = x[n-1]
	}
	out := make([]float64, n)
	var sum float64
	for i := 0; i < win; i++ {
		sum += padded[i]
	}
	out[0] = sum / float64(win)
	for i := 1; i < n; i++ {
		sum += padded[i+win-1] - padded[i-1]
		out[i] = sum / float64(win)
	}
	return out
}
