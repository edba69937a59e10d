package stages

import (
	"github.com/xrayctl/xrayd/internal/calib"
	"github.com/xrayctl/xrayd/internal/pipeline"
	"github.com/xrayctl/xrayd/internal/xframe"
)

// BadPixelReplaceSlot is the canonical slot for bad-pixel replacement.
const BadPixelReplaceSlot = 250

// BadPixelReplace is the slot-250 stage: replaces each masked pixel with
// the median of its unmasked 3x3 neighbors. Delegates to calib.ReplaceBadPixels
// since mask derivation and application are both calibration-store
// concerns grounded on the same source file.
type BadPixelReplace struct{}

func (BadPixelReplace) Name() string { return "bad_pixel_replace" }
func (BadPixelReplace) Slot() int    { return BadPixelReplaceSlot }

func (BadPixelReplace) Apply(frame *xframe.Frame, ctx *pipeline.Context) *xframe.Frame {
	if ctx.Mask == nil || !ctx.Mask.MatchesShape(frame.Width, frame.Height) {
		return frame
	}
	return calib.ReplaceBadPixels(frame, ctx.Mask)
}
