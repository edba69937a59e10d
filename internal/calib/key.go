// Package calib implements the Calibration Store: persistence and
// nearest-match lookup of dark/flat references, and derivation of
// bad-pixel masks, keyed by detector identity, exposure, gain and
// resolution.
//
// Grounded on original_source/ui/dark_flat.py and
// original_source/machine_modules/bad_pixel_map for exact lookup,
// threshold and status-text semantics; structured the way
// github.com/ausocean/av/revid/config.Config groups related persisted
// fields, generalized to a keyed repository.
package calib

import (
	"fmt"
	"strconv"
	"strings"
)

// Key identifies a calibration reference.
type Key struct {
	DetectorID      string
	ExposureSeconds float64
	Gain            int
	Width, Height   int
}

// DefaultMatchThreshold is the maximum distance at which a reference is
// still considered applicable, per §4.2.
const DefaultMatchThreshold = 1.0

// Distance implements d((t1,g1),(t2,g2)) = |t1-t2| + |g1-g2|/100.
func Distance(a, b Key) float64 {
	dt := a.ExposureSeconds - b.ExposureSeconds
	if dt < 0 {
		dt = -dt
	}
	dg := float64(a.Gain - b.Gain)
	if dg < 0 {
		dg = -dg
	}
	return dt + dg/100
}

// formatExposure renders a bare float the way Python's str(float) does:
// always with a decimal point, minimal digits otherwise. This is the exact
// on-disk filename fragment, so it must round-trip byte-for-byte.
func formatExposure(t float64) string {
	s := strconv.FormatFloat(t, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// DarkFilename returns the canonical "dark_<t>_<g>_<W>x<H>" stem (without
// extension) for key k.
func DarkFilename(k Key) string {
	return fmt.Sprintf("dark_%s_%d_%dx%d", formatExposure(k.ExposureSeconds), k.Gain, k.Width, k.Height)
}

// FlatFilename returns the canonical "flat_<t>_<g>_<W>x<H>" stem.
func FlatFilename(k Key) string {
	return fmt.Sprintf("flat_%s_%d_%dx%d", formatExposure(k.ExposureSeconds), k.Gain, k.Width, k.Height)
}

// BadPixelMapFilename returns the "bad_pixel_map_<W>x<H>" stem for a given
// resolution, independent of exposure/gain.
func BadPixelMapFilename(width, height int) string {
	return fmt.Sprintf("bad_pixel_map_%dx%d", width, height)
}
