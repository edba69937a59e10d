// Package xframe implements the Frame Store: the single point of truth for
// raw, processed and integrated frame state under concurrent access.
//
// Grounded on github.com/ausocean/av/revid.Revid's guarded-state pattern
// (a mutex plus a handful of fields touched by one producer goroutine and
// read by many), generalized from a byte stream to a 2-D float32 grid.
package xframe

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Frame is a single 2-D grid of IEEE-754 single precision samples.
type Frame struct {
	Width, Height int
	Samples       []float32
}

// NewFrame allocates a zeroed frame of the given dimensions.
func NewFrame(width, height int) *Frame {
	return &Frame{Width: width, Height: height, Samples: make([]float32, width*height)}
}

// SameShape reports whether f and g share identical dimensions.
func (f *Frame) SameShape(g *Frame) bool {
	if f == nil || g == nil {
		return false
	}
	return f.Width == g.Width && f.Height == g.Height
}

// Clone returns a deep copy of f.
func (f *Frame) Clone() *Frame {
	if f == nil {
		return nil
	}
	out := &Frame{Width: f.Width, Height: f.Height, Samples: make([]float32, len(f.Samples))}
	copy(out.Samples, f.Samples)
	return out
}

// At returns the sample at (x, y).
func (f *Frame) At(x, y int) float32 { return f.Samples[y*f.Width+x] }

// Set assigns the sample at (x, y).
func (f *Frame) Set(x, y int, v float32) { f.Samples[y*f.Width+x] = v }

// ScrubNonFinite replaces NaN and ±Inf samples in place with 0, +max, -max
// respectively, matching the "scrub NaN/±∞ to finite values" contract every
// pipeline stage output must satisfy.
func (f *Frame) ScrubNonFinite() {
	for i, v := range f.Samples {
		switch {
		case math.IsNaN(float64(v)):
			f.Samples[i] = 0
		case math.IsInf(float64(v), 1):
			f.Samples[i] = math.MaxFloat32
		case math.IsInf(float64(v), -1):
			f.Samples[i] = -math.MaxFloat32
		}
	}
}

// MeanOf computes the pixel-wise arithmetic mean of frames, which must all
// share the same shape. It is the sole definition of "integrated frame".
func MeanOf(frames []*Frame) *Frame {
	if len(frames) == 0 {
		return nil
	}
	w, h := frames[0].Width, frames[0].Height
	out := NewFrame(w, h)
	acc := make([]float64, len(out.Samples))
	col := make([]float64, len(frames))
	for i := range out.Samples {
		for j, fr := range frames {
			col[j] = float64(fr.Samples[i])
		}
		acc[i] = stat.Mean(col, nil)
	}
	for i, v := range acc {
		out.Samples[i] = float32(v)
	}
	return out
}
