package stages

import (
	"math"

	"github.com/xrayctl/xrayd/internal/pipeline"
	"github.com/xrayctl/xrayd/internal/xframe"
)

// MustacheRemapSlot is the canonical slot for mustache correction.
const MustacheRemapSlot = 455

// mustacheDenomFloor matches the original's max(..., 0.1) guard against a
// near-zero or negative quartic denominator.
const mustacheDenomFloor = 0.1

// MustacheRemap is the slot-455 stage: radial resample
// r_src = r / max(1 + k1*r_norm^2 + k2*r_norm^4, 0.1), grounded on
// original_source/modules/image_processing/mustache/__init__.py.
type MustacheRemap struct{}

func (MustacheRemap) Name() string { return "mustache_remap" }
func (MustacheRemap) Slot() int    { return MustacheRemapSlot }

func (MustacheRemap) Apply(frame *xframe.Frame, ctx *pipeline.Context) *xframe.Frame {
	p := ctx.Mustache
	if p.K1 == 0 && p.K2 == 0 {
		return frame
	}
	cx, cy := radialCenter(frame.Width, frame.Height, p.CenterX, p.CenterY)
	return radialRemap(frame, cx, cy, func(rNorm, rSafe float64) float64 {
		denom := math.Max(1+p.K1*rNorm*rNorm+p.K2*rNorm*rNorm*rNorm*rNorm, mustacheDenomFloor)
		return rSafe / denom
	})
}
