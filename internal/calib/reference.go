package calib

import "github.com/xrayctl/xrayd/internal/xframe"

// Kind distinguishes a dark reference (beam off) from a flat reference
// (uniform illumination, dark already subtracted).
type Kind int

const (
	Dark Kind = iota
	Flat
)

func (k Kind) String() string {
	if k == Flat {
		return "flat"
	}
	return "dark"
}

// Reference is a persisted or captured dark/flat field.
type Reference struct {
	Kind  Kind
	Key   Key
	Frame *xframe.Frame
}

// MatchesShape reports whether r applies to a frame of the given
// dimensions; per the invariant, a reference is applied only when shapes
// match exactly.
func (r *Reference) MatchesShape(width, height int) bool {
	return r != nil && r.Frame != nil && r.Frame.Width == width && r.Frame.Height == height
}
