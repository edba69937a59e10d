package pipeline

// BandingParams configures the slot-300 banding correction stage.
// Defaults grounded on
// original_source/modules/image_processing/banding/banding_correction.py.
type BandingParams struct {
	Horizontal       bool
	Vertical         bool
	BlackW           int // reference stripe width (horizontal), default 20
	SmoothWindow     int // default 128
	VerticalStripeH  int // reference stripe height (vertical), default 20
	VerticalSmoothWindow int // default 128
}

// DefaultBandingParams matches DEFAULT_BLACK_W / DEFAULT_SMOOTH_WIN /
// DEFAULT_VERTICAL_STRIPE_H / DEFAULT_VERTICAL_SMOOTH_WIN.
func DefaultBandingParams() BandingParams {
	return BandingParams{BlackW: 20, SmoothWindow: 128, VerticalStripeH: 20, VerticalSmoothWindow: 128}
}

// DeadLineParams lists the dead rows/columns to interpolate at slot 400.
type DeadLineParams struct {
	DeadColumns []int
	DeadRows    []int
}

// DistortionParams configures the slot-450 pincushion remap.
type DistortionParams struct {
	K          float64
	CenterX    float64 // < 0 means "use frame center"
	CenterY    float64
}

// MustacheParams configures the slot-455 mustache remap.
type MustacheParams struct {
	K1, K2  float64
	CenterX float64
	CenterY float64
}

// EnhanceParams configures the slot-480 local contrast/dehaze/deconvolution
// stage. Defaults grounded on
// original_source/modules/image_processing/microcontrast_dehaze.
type EnhanceParams struct {
	DeconvEnabled    bool
	DeconvSigma      float64 // default 1.0
	DeconvIterations int     // default 10
	ClarityAmount    float64 // 0..1
	DehazeAmount     float64 // 0..1
}

// DefaultEnhanceParams matches the original's module defaults.
func DefaultEnhanceParams() EnhanceParams {
	return EnhanceParams{DeconvSigma: 1.0, DeconvIterations: 10}
}

// CropParams configures the slot-500 crop stage. A zero rectangle
// ((0,0,0,0), i.e. XEnd<=XStart or YEnd<=YStart) disables cropping.
type CropParams struct {
	XStart, YStart, XEnd, YEnd int
}

// BackgroundParams configures the slot-600 background separator.
type BackgroundParams struct {
	Offset float64 // default 5.0
}
