// Package beam defines the BeamSupply interlock contract and a
// line-oriented serial implementation, grounded on
// original_source/modules/machine/esp_hv_supply and the serial-port
// idiom of go.bug.st/serial as used by the pack's data-velocity
// reporting example.
package beam

import "time"

// Supply is the optional external interlock described in spec.md §3/§4.5.
type Supply interface {
	// WantsAutoToggle reports whether the controller should drive the
	// handshake automatically on every capturing transition.
	WantsAutoToggle() bool

	// IsConnected reports current connectivity without blocking on I/O.
	IsConnected() bool

	// TurnOnWaitReady requests beam-on and blocks until the supply
	// reports ready, cancel fires, or deadline elapses. cancel must be
	// polled at intervals no coarser than 250ms per spec.md §5.
	TurnOnWaitReady(cancel <-chan struct{}, deadline time.Time) (ready bool, err error)

	// TurnOff requests beam-off; best-effort, errors are logged by the
	// caller but never block a shutdown path.
	TurnOff() error
}
