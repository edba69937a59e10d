package stages

import (
	"github.com/xrayctl/xrayd/internal/pipeline"
	"github.com/xrayctl/xrayd/internal/xframe"
)

// PincushionRemapSlot is the canonical slot for pincushion correction.
const PincushionRemapSlot = 450

// PincushionRemap is the slot-450 stage: radial resample
// r_src = r / (1 + k*r_norm^2) about a configurable center, grounded on
// original_source/modules/image_processing/pincushion/__init__.py.
type PincushionRemap struct{}

func (PincushionRemap) Name() string { return "pincushion_remap" }
func (PincushionRemap) Slot() int    { return PincushionRemapSlot }

func (PincushionRemap) Apply(frame *xframe.Frame, ctx *pipeline.Context) *xframe.Frame {
	p := ctx.Pincushion
	if p.K == 0 {
		return frame
	}
	cx, cy := radialCenter(frame.Width, frame.Height, p.CenterX, p.CenterY)
	return radialRemap(frame, cx, cy, func(rNorm, rSafe float64) float64 {
		return rSafe / (1 + p.K*rNorm*rNorm)
	})
}
