package stages

import (
	"github.com/xrayctl/xrayd/internal/pipeline"
	"github.com/xrayctl/xrayd/internal/xframe"
)

// DeadLineFillSlot is the canonical slot for dead-line interpolation.
const DeadLineFillSlot = 400

// DeadLineFill is the slot-400 stage: fills listed dead rows/columns from
// the nearest healthy neighbor on each side, averaging when both sides
// have one, copying the single side when only one exists, leaving the
// line unchanged when neither does. Grounded on
// original_source/modules/image_processing/dead_pixel/dead_pixel_correction.py's
// correct_dead_lines.
type DeadLineFill struct{}

func (DeadLineFill) Name() string { return "dead_line_fill" }
func (DeadLineFill) Slot() int    { return DeadLineFillSlot }

func (DeadLineFill) Apply(frame *xframe.Frame, ctx *pipeline.Context) *xframe.Frame {
	p := ctx.DeadLine
	if len(p.DeadColumns) == 0 && len(p.DeadRows) == 0 {
		return frame
	}
	out := frame.Clone()
	deadCol := toSet(p.DeadColumns)
	deadRow := toSet(p.DeadRows)

	w, h := frame.Width, frame.Height
	for _, x := range p.DeadColumns {
		if x < 0 || x >= w {
			continue
		}
		left, haveLeft := nearestHealthyColumn(frame, x, -1, deadCol)
		right, haveRight := nearestHealthyColumn(frame, x, 1, deadCol)
		fillColumn(out, x, left, haveLeft, right, haveRight)
	}
	for _, y := range p.DeadRows {
		if y < 0 || y >= h {
			continue
		}
		up, haveUp := nearestHealthyRow(frame, y, -1, deadRow)
		down, haveDown := nearestHealthyRow(frame, y, 1, deadRow)
		fillRow(out, y, up, haveUp, down, haveDown)
	}
	return out
}

func toSet(xs []int) map[int]bool {
	m := make(map[int]bool, len(xs))
	for _, x := range xs {
		m[x] = true
	}
	return m
}

func nearestHealthyColumn(f *xframe.Frame, x, dir int, dead map[int]bool) (int, bool) {
	for c := x + dir; c >= 0 && c < f.Width; c += dir {
		if !dead[c] {
			return c, true
		}
	}
	return 0, false
}

func nearestHealthyRow(f *xframe.Frame, y, dir int, dead map[int]bool) (int, bool) {
	for r := y + dir; r >= 0 && r < f.Height; r += dir {
		if !dead[r] {
			return r, true
		}
	}
	return 0, false
}

func fillColumn(f *xframe.Frame, x, left int, haveLeft bool, right int, haveRight bool) {
	for y := 0; y < f.Height; y++ {
		switch {
		case haveLeft && haveRight:
			f.Samples[y*f.Width+x] = (f.Samples[y*f.Width+left] + f.Samples[y*f.Width+right]) / 2
		case haveLeft:
			f.Samples[y*f.Width+x] = f.Samples[y*f.Width+left]
		case haveRight:
			f.Samples[y*f.Width+x] = f.Samples[y*f.Width+right]
		}
	}
}

func fillRow(f *xframe.Frame, y, up int, haveUp bool, down int, haveDown bool) {
	for x := 0; x < f.Width; x++ {
		switch {
		case haveUp && haveDown:
			f.Samples[y*f.Width+x] = (f.Samples[up*f.Width+x] + f.Samples[down*f.Width+x]) / 2
		case haveUp:
			f.Samples[y*f.Width+x] = f.Samples[up*f.Width+x]
		case haveDown:
			f.Samples[y*f.Width+x] = f.Samples[down*f.Width+x]
		}
	}
}
