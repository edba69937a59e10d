package stages

import (
	"math"

	"github.com/xrayctl/xrayd/internal/xframe"
)

// reflectIndex implements scipy's half-sample-symmetric "reflect"
// boundary mode used by map_coordinates in the pincushion/mustache
// remaps: ... d c b a | a b c d | d c b a ...
func reflectIndex(i, n int) int {
	if n <= 1 {
		return 0
	}
	period := 2 * n
	i %= period
	if i < 0 {
		i += period
	}
	if i >= n {
		i = period - 1 - i
	}
	return i
}

// bilinearSample samples f at continuous coordinates (x, y) with
// reflect-boundary bilinear interpolation, the Go equivalent of
// scipy.ndimage.map_coordinates(order=1, mode="reflect").
func bilinearSample(f *xframe.Frame, x, y float64) float32 {
	x0 := int(math.Floor(x))
	y0 := int(math.Floor(y))
	x1, y1 := x0+1, y0+1
	fx := x - float64(x0)
	fy := y - float64(y0)

	rx0, rx1 := reflectIndex(x0, f.Width), reflectIndex(x1, f.Width)
	ry0, ry1 := reflectIndex(y0, f.Height), reflectIndex(y1, f.Height)

	v00 := float64(f.At(rx0, ry0))
	v10 := float64(f.At(rx1, ry0))
	v01 := float64(f.At(rx0, ry1))
	v11 := float64(f.At(rx1, ry1))

	top := v00*(1-fx) + v10*fx
	bottom := v01*(1-fx) + v11*fx
	return float32(top*(1-fy) + bottom*fy)
}

// radialCenter resolves a configured center, defaulting to the frame
// center when either coordinate is negative, matching the original's
// "center defaults to frame center when cx/cy < 0".
func radialCenter(w, h int, cx, cy float64) (float64, float64) {
	if cx < 0 {
		cx = float64(w-1) / 2
	}
	if cy < 0 {
		cy = float64(h-1) / 2
	}
	return cx, cy
}

// radialMax matches r_max = sqrt(max(cx,w-1-cx)^2 + max(cy,h-1-cy)^2).
func radialMax(w, h int, cx, cy float64) float64 {
	dx := math.Max(cx, float64(w-1)-cx)
	dy := math.Max(cy, float64(h-1)-cy)
	return math.Sqrt(dx*dx + dy*dy)
}

// radialRemap walks every output pixel, computes its polar offset from
// (cx, cy), maps it through srcRadius(rNorm, rSafe) to a source radius,
// and bilinear-samples the source frame there. Shared by Pincushion and
// Mustache, whose only difference is the radial distortion polynomial.
func radialRemap(f *xframe.Frame, cx, cy float64, srcRadius func(rNorm, rSafe float64) float64) *xframe.Frame {
	rMax := radialMax(f.Width, f.Height, cx, cy)
	if rMax <= 0 {
		return f
	}
	out := xframe.NewFrame(f.Width, f.Height)
	for y := 0; y < f.Height; y++ {
		dy := float64(y) - cy
		for x := 0; x < f.Width; x++ {
			dx := float64(x) - cx
			r := math.Sqrt(dx*dx + dy*dy)
			if r == 0 {
				out.Set(x, y, f.At(int(cx), int(cy)))
				continue
			}
			rSrc := srcRadius(r/rMax, r)
			scale := rSrc / r
			out.Set(x, y, bilinearSample(f, cx+dx*scale, cy+dy*scale))
		}
	}
	return out
}
