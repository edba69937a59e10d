// Package control implements the Acquisition Controller: the state
// machine coordinating the Detector Worker, an optional beam-supply
// interlock, cancellation, and the synchronous request_integration/
// request_n_frames_processed_up_to_slot entry points workflow automation
// uses. Grounded on the mode-transition and guarded-state shape of
// github.com/ausocean/av/revid.Revid (start/stop around a single
// goroutine, a shared "quit" signal, and a status string), generalized
// from a byte-stream pipeline to a frame-acquisition state machine.
package control

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ausocean/utils/logging"
	"github.com/pkg/errors"

	"github.com/xrayctl/xrayd/internal/beam"
	"github.com/xrayctl/xrayd/internal/device"
	"github.com/xrayctl/xrayd/internal/pipeline"
	"github.com/xrayctl/xrayd/internal/xframe"
)

// Mode identifies the capturing sub-mode, per spec.md §4.5.
type Mode int

const (
	ModeSingle Mode = iota
	ModeDual
	ModeContinuous
	ModeCaptureN
	ModeDarkCapture
	ModeFlatCapture
)

func (m Mode) String() string {
	switch m {
	case ModeSingle:
		return "single"
	case ModeDual:
		return "dual"
	case ModeContinuous:
		return "continuous"
	case ModeCaptureN:
		return "capture_n"
	case ModeDarkCapture:
		return "dark_capture"
	case ModeFlatCapture:
		return "flat_capture"
	default:
		return "unknown"
	}
}

// Phase is the coarse idle/capturing state.
type Phase int

const (
	Idle Phase = iota
	Capturing
)

func (p Phase) String() string {
	if p == Capturing {
		return "capturing"
	}
	return "idle"
}

// readoutMargin is a per-frame allowance for detector warm-up and driver
// queueing. Nothing in this package reads it: RequestNFramesProcessedUpToSlot
// waits for the timeout its caller passes (doubled for dual-shot detectors)
// and does not derive that timeout from the frame count and exposure.
const readoutMargin = 5 * time.Second

// lastCapturedWait is how long request_integration waits for the main
// consumer to publish last_captured_frame after the capturing->idle
// transition, per spec.md §4.5 step 5.
const lastCapturedWait = 3 * time.Second

// State is a snapshot of the controller's externally visible state.
type State struct {
	Phase          Phase
	Mode           Mode
	ProgressFrac   float64
	ProgressLabel  string
	LastFailReason error
}

// Controller orchestrates one detector and an optional beam supply
// against a shared Frame Store and Correction Pipeline.
type Controller struct {
	detector device.Detector
	supply   beam.Supply // nil if no beam supply is configured
	store    *xframe.Store
	pipe     *pipeline.Pipeline
	pipeCtx  *pipeline.Context
	logger   logging.Logger

	mu             sync.Mutex
	phase          Phase
	mode           Mode
	stopCh         chan struct{}
	lastFailReason error
	progressFrac   float64
	progressLabel  string

	// keepBeamOnWorkflow implements the supplemented "keep beam on"
	// workflow flag (spec.md §12): when true, the first capture's beam
	// handshake turns the beam on, later captures leave it on instead of
	// shutting it down, and EndWorkflow turns it off at the end of the run.
	keepBeamOnWorkflow bool
	workflowBeamOn     bool
}

// New builds a Controller. pipeCtx is the shared, mutable pipeline
// context (references, auto-enable flags, stage params); the caller
// owns its lifetime and may mutate it between captures.
func New(det device.Detector, supply beam.Supply, store *xframe.Store, pipe *pipeline.Pipeline, pipeCtx *pipeline.Context, logger logging.Logger) *Controller {
	return &Controller{
		detector: det, supply: supply, store: store, pipe: pipe, pipeCtx: pipeCtx, logger: logger,
		phase: Idle,
	}
}

// Snapshot returns the controller's current externally visible state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{Phase: c.phase, Mode: c.mode, ProgressFrac: c.progressFrac, ProgressLabel: c.progressLabel, LastFailReason: c.lastFailReason}
}

// BeginWorkflow marks the start of a multi-step workflow that wants the
// beam supply toggled only once across several request_integration
// calls (spec.md §12).
func (c *Controller) BeginWorkflow() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keepBeamOnWorkflow = true
}

// EndWorkflow clears the keep-beam-on override and turns the beam off
// if it was left on by the workflow.
func (c *Controller) EndWorkflow() {
	c.mu.Lock()
	wasOn := c.workflowBeamOn
	c.keepBeamOnWorkflow = false
	c.workflowBeamOn = false
	c.mu.Unlock()
	if wasOn && c.supply != nil {
		c.supply.TurnOff()
	}
}

func (c *Controller) setFail(err error) {
	c.mu.Lock()
	c.lastFailReason = err
	c.mu.Unlock()
}

func (c *Controller) setProgress(frac float64, label string) {
	c.mu.Lock()
	c.progressFrac, c.progressLabel = frac, label
	c.mu.Unlock()
}

// beamHandshake runs the beam-on handshake before entering capturing,
// per spec.md §4.5. skipBeam implements the dark-capture skip-beam flag
// (spec.md §12).
func (c *Controller) beamHandshake(cancel <-chan struct{}, deadline time.Time, skipBeam bool) error {
	if c.supply == nil || skipBeam {
		return nil
	}
	c.mu.Lock()
	alreadyOn := c.keepBeamOnWorkflow && c.workflowBeamOn
	c.mu.Unlock()
	if alreadyOn {
		return nil
	}
	if !c.supply.WantsAutoToggle() {
		return nil
	}
	if !c.supply.IsConnected() {
		return ErrSupplyNotConn
	}
	ready, err := c.supply.TurnOnWaitReady(cancel, deadline)
	select {
	case <-cancel:
		return ErrStopped
	default:
	}
	if err != nil {
		return errors.Wrap(ErrStopped, err.Error())
	}
	if !ready {
		return ErrSupplyNotReady
	}
	c.mu.Lock()
	if c.keepBeamOnWorkflow {
		c.workflowBeamOn = true
	}
	c.mu.Unlock()
	return nil
}

// beamShutdown turns the beam off on exit from capturing, unless a
// workflow has asked to keep it on.
func (c *Controller) beamShutdown() {
	if c.supply == nil {
		return
	}
	c.mu.Lock()
	keep := c.keepBeamOnWorkflow
	c.mu.Unlock()
	if keep {
		return
	}
	c.supply.TurnOff()
}

// tryEnterCapturing transitions idle->capturing, or returns ErrNotIdle.
func (c *Controller) tryEnterCapturing(mode Mode) (stopCh chan struct{}, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != Idle {
		return nil, ErrNotIdle
	}
	if !c.detector.IsConnected() {
		return nil, ErrNotConnected
	}
	c.phase = Capturing
	c.mode = mode
	c.lastFailReason = nil
	c.stopCh = make(chan struct{})
	return c.stopCh, nil
}

func (c *Controller) exitToIdle() {
	c.mu.Lock()
	c.phase = Idle
	c.mu.Unlock()
}

// Stop requests cancellation of any in-progress acquisition. Safe to
// call when idle (no-op).
func (c *Controller) Stop() {
	c.mu.Lock()
	stopCh := c.stopCh
	c.mu.Unlock()
	if stopCh != nil {
		select {
		case <-stopCh:
		default:
			close(stopCh)
		}
	}
}

// frameSink adapts the Controller's store/pipeline into a device.Sink,
// running frames through the appropriate pipeline mode depending on the
// capturing sub-mode.
type frameSink struct {
	c        *Controller
	maxSlot  int // < 0 means full live pipeline
	received chan *xframe.Frame
	stopCh   chan struct{}
}

func (s *frameSink) Done() <-chan struct{} { return s.stopCh }

func (s *frameSink) SubmitFrame(f *xframe.Frame) {
	s.c.store.Submit(f)
	var out *xframe.Frame
	if s.maxSlot < 0 {
		out, _ = s.c.pipe.RunLive(f, s.c.pipeCtx)
	} else {
		out = s.c.pipe.RunPrefix(f, s.c.pipeCtx, s.maxSlot)
	}
	s.c.store.PushProcessed(out)
	select {
	case s.received <- out:
	default:
	}
}

// Start begins acquisition in the given mode, running the full live
// pipeline per frame, per spec.md §4.5's idle->capturing transition. It
// returns once acquisition has started; the caller observes progress via
// Snapshot and frame delivery via the Frame Store's signal.
func (c *Controller) Start(ctx context.Context, mode Mode, exposureSeconds float64, gain int) error {
	stopCh, err := c.tryEnterCapturing(mode)
	if err != nil {
		return err
	}
	deadline := time.Now().Add(24 * time.Hour)
	if err := c.beamHandshake(stopCh, deadline, false); err != nil {
		c.beamShutdown()
		c.exitToIdle()
		c.setFail(err)
		return err
	}
	c.store.ClearBuffer()

	sink := &frameSink{c: c, maxSlot: -1, received: make(chan *xframe.Frame, 1), stopCh: stopCh}
	runCtx, cancel := context.WithCancel(ctx)
	go func() {
		defer cancel()
		defer c.beamShutdown()
		defer c.exitToIdle()
		m := c.detector.AcquisitionModes()[0]
		for _, am := range c.detector.AcquisitionModes() {
			if Mode(am.ID) == ModeSingle && mode == ModeSingle {
				m = am
			}
		}
		if err := c.detector.StartAcquisition(runCtx, m, exposureSeconds, gain, sink); err != nil {
			c.setFail(errors.Wrap(ErrDeviceError, err.Error()))
		}
	}()
	go func() {
		<-stopCh
		cancel()
	}()
	return nil
}

// RequestIntegration is the synchronous request_integration(N, timeout)
// entry point, per spec.md §4.5.
func (c *Controller) RequestIntegration(n uint, timeout time.Duration) (*xframe.Frame, error) {
	if n < 1 {
		n = 1
	}
	if n > 32 {
		n = 32
	}
	c.mu.Lock()
	if c.phase != Idle {
		c.lastFailReason = ErrNotIdle
		c.mu.Unlock()
		return nil, ErrNotIdle
	}
	if !c.detector.IsConnected() {
		c.lastFailReason = ErrNotConnected
		c.mu.Unlock()
		return nil, ErrNotConnected
	}
	c.mu.Unlock()

	c.store.ClearLastCaptured()
	c.store.SetIntegrationCapacity(int(n))

	stopCh, err := c.tryEnterCapturing(ModeCaptureN)
	if err != nil {
		return nil, err
	}
	deadline := time.Now().Add(timeout)
	if err := c.beamHandshake(stopCh, deadline, false); err != nil {
		c.beamShutdown()
		c.exitToIdle()
		c.setFail(err)
		return nil, err
	}
	c.store.ClearBuffer()

	sink := &frameSink{c: c, maxSlot: -1, received: make(chan *xframe.Frame, int(n)+1), stopCh: stopCh}
	ctx, cancel := context.WithDeadline(context.Background(), deadline)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		am := c.detector.AcquisitionModes()[0]
		done <- c.detector.StartAcquisition(ctx, am, 0, 0, sink)
	}()

	frames := 0
	for frames < int(n) {
		select {
		case <-sink.received:
			frames++
		case <-stopCh:
			c.Stop()
			<-done
			c.beamShutdown()
			c.exitToIdle()
			c.setFail(ErrStopped)
			return nil, ErrStopped
		case <-ctx.Done():
			c.Stop()
			<-done
			c.beamShutdown()
			c.exitToIdle()
			c.setFail(ErrTimeout)
			return nil, ErrTimeout
		}
	}
	c.Stop()
	<-done
	c.beamShutdown()

	// The controller copies the integrated frame into last_captured as
	// part of the capturing->idle transition, per spec.md §4.5 step 5.
	c.store.PublishLastCaptured()
	c.exitToIdle()

	waitDeadline := time.Now().Add(lastCapturedWait)
	for {
		if f := c.store.TakeLastCaptured(); f != nil {
			return f, nil
		}
		if time.Now().After(waitDeadline) {
			return nil, ErrNoFrame
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// RequestNFramesProcessedUpToSlot is the prefix-only calibration capture
// entry point, per spec.md §4.3/§4.5. When darkCapture is true the beam
// handshake is skipped entirely (spec.md §12).
func (c *Controller) RequestNFramesProcessedUpToSlot(n uint, maxSlot int, timeout time.Duration, darkCapture bool) (*xframe.Frame, error) {
	if n < 1 {
		n = 1
	}
	mode := ModeFlatCapture
	if darkCapture {
		mode = ModeDarkCapture
	}

	c.mu.Lock()
	if c.phase != Idle {
		c.mu.Unlock()
		return nil, ErrNotIdle
	}
	if !c.detector.IsConnected() {
		c.mu.Unlock()
		return nil, ErrNotConnected
	}
	c.mu.Unlock()

	if c.detector.UsesDualShotForCaptureN() {
		timeout *= 2
	}

	stopCh, err := c.tryEnterCapturing(mode)
	if err != nil {
		return nil, err
	}
	deadline := time.Now().Add(timeout)
	if err := c.beamHandshake(stopCh, deadline, darkCapture); err != nil {
		c.beamShutdown()
		c.exitToIdle()
		c.setFail(err)
		return nil, err
	}

	sink := &frameSink{c: c, maxSlot: maxSlot, received: make(chan *xframe.Frame, int(n)+1), stopCh: stopCh}
	ctx, cancel := context.WithDeadline(context.Background(), deadline)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		am := c.detector.AcquisitionModes()[0]
		done <- c.detector.StartAcquisition(ctx, am, 0, 0, sink)
	}()

	var collected []*xframe.Frame
	for len(collected) < int(n) {
		select {
		case f := <-sink.received:
			collected = append(collected, f)
		case <-stopCh:
			c.Stop()
			<-done
			c.beamShutdown()
			c.exitToIdle()
			c.setFail(ErrStopped)
			return nil, ErrStopped
		case <-ctx.Done():
			c.Stop()
			<-done
			c.beamShutdown()
			c.exitToIdle()
			c.setFail(ErrTimeout)
			return nil, ErrTimeout
		}
	}
	c.Stop()
	<-done
	c.beamShutdown()
	c.exitToIdle()

	if len(collected) == 0 {
		return nil, ErrNoFrame
	}
	return xframe.MeanOf(collected), nil
}

// StatusFor renders a human-readable, single-line status for the given
// error, per spec.md §7.
func StatusFor(err error) string {
	if err == nil {
		return "OK"
	}
	switch {
	case errors.Is(err, ErrNotConnected):
		return "Not connected"
	case errors.Is(err, ErrNotIdle):
		return "Busy: acquisition already in progress"
	case errors.Is(err, ErrSupplyNotReady):
		return "Supply did not become ready"
	case errors.Is(err, ErrSupplyNotConn):
		return "Beam supply not connected"
	case errors.Is(err, ErrTimeout):
		return "Timed out waiting for frame"
	case errors.Is(err, ErrStopped):
		return "Stopped"
	case errors.Is(err, ErrNoFrame):
		return "No frame captured"
	case errors.Is(err, ErrInvalidInput):
		return "Invalid input"
	case errors.Is(err, ErrDeviceError):
		return fmt.Sprintf("Device error: %v", err)
	default:
		return err.Error()
	}
}
