// Package device defines the Detector Worker contract a detector driver
// must implement, grounded on the open/close/is_connected/read-loop
// shape of github.com/ausocean/av/device's camera drivers, generalized
// from byte-stream video capture to single-frame scientific acquisition.
package device

import (
	"context"

	"github.com/xrayctl/xrayd/internal/xframe"
)

// AcquisitionMode pairs a human label with the driver-specific mode id a
// Start call selects.
type AcquisitionMode struct {
	Label string
	ID    int
}

// Sink receives frames produced by a running acquisition and the shared
// cancellation signal a driver must obey. It is the "controller_handle"
// of spec.md §4.4.
type Sink interface {
	// SubmitFrame delivers one raw frame. Called once per exposure.
	SubmitFrame(f *xframe.Frame)

	// Done is closed when the controller raises should_stop. Cancellation
	// of the acquisition ctx is separate and is not reflected here.
	Done() <-chan struct{}
}

// Detector is the contract a concrete detector driver implements.
// Drivers must never block past ctx cancellation for longer than a
// small read-segment timeout, per spec.md §4.4's failure semantics.
type Detector interface {
	// Open acquires the underlying device handle.
	Open(ctx context.Context) error

	// Close releases the device handle. Safe to call on an unopened or
	// already-closed Detector.
	Close() error

	// IsConnected reports current connectivity without blocking on I/O.
	IsConnected() bool

	// AcquisitionModes lists the modes this detector supports.
	AcquisitionModes() []AcquisitionMode

	// ExposureChoices lists preset exposure labels, or nil if the
	// detector accepts an arbitrary exposure time.
	ExposureChoices() []string

	// SensorBitDepth returns 12, 14, or 16.
	SensorBitDepth() int

	// StartAcquisition runs until ctx is cancelled or the driver
	// completes its own frame count, calling sink.SubmitFrame for every
	// frame produced. It must poll ctx.Done() at read-segment
	// boundaries on the order of one second.
	StartAcquisition(ctx context.Context, mode AcquisitionMode, exposureSeconds float64, gain int, sink Sink) error

	// UsesDualShotForCaptureN reports whether dark/flat capture timeouts are
	// doubled for this detector (some sensors take two exposures per
	// delivered frame in that mode).
	UsesDualShotForCaptureN() bool

	// CurrentGain and GetFrameSize are optional in spirit (spec.md
	// §4.4); drivers that cannot report them return ok=false.
	CurrentGain() (gain int, ok bool)
	GetFrameSize() (width, height int, ok bool)
}
