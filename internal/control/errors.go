package control

import "errors"

// Error taxonomy, grounded on spec.md §7. Controller methods wrap these
// with github.com/pkg/errors at call boundaries that add context;
// callers compare with errors.Is.
var (
	ErrNotConnected     = errors.New("control: not connected")
	ErrNotIdle          = errors.New("control: not idle")
	ErrSupplyNotReady   = errors.New("control: supply not ready")
	ErrSupplyNotConn    = errors.New("control: supply not connected")
	ErrTimeout          = errors.New("control: timeout")
	ErrStopped          = errors.New("control: stopped")
	ErrNoFrame          = errors.New("control: no frame")
	ErrInvalidInput     = errors.New("control: invalid input")
	ErrDeviceError      = errors.New("control: device error")
)
