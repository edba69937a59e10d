package stages

import (
	"github.com/xrayctl/xrayd/internal/pipeline"
	"github.com/xrayctl/xrayd/internal/xframe"
)

// CropSlot is the canonical slot for crop, the only stage permitted to
// shrink the frame shape.
const CropSlot = 500

// Crop is the slot-500 stage: a rectangle selection; (0,0,0,0), or any
// rectangle with XEnd<=XStart or YEnd<=YStart, disables cropping.
// Grounded on original_source/modules/image_processing/autocrop's
// _apply_autocrop, whose bounds are clamped to the frame size.
type Crop struct{}

func (Crop) Name() string { return "crop" }
func (Crop) Slot() int    { return CropSlot }

func (Crop) Apply(frame *xframe.Frame, ctx *pipeline.Context) *xframe.Frame {
	p := ctx.Crop
	if p.XEnd <= p.XStart || p.YEnd <= p.YStart {
		return frame
	}
	xStart, yStart := clamp(p.XStart, 0, frame.Width), clamp(p.YStart, 0, frame.Height)
	xEnd, yEnd := clamp(p.XEnd, 0, frame.Width), clamp(p.YEnd, 0, frame.Height)
	if xEnd <= xStart || yEnd <= yStart {
		return frame
	}
	w, h := xEnd-xStart, yEnd-yStart
	out := xframe.NewFrame(w, h)
	for y := 0; y < h; y++ {
		srcRow := (y + yStart) * frame.Width
		copy(out.Samples[y*w:(y+1)*w], frame.Samples[srcRow+xStart:srcRow+xEnd])
	}
	return out
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
