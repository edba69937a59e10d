package control

import (
	"context"
	"testing"
	"time"

	"github.com/xrayctl/xrayd/internal/beam"
	"github.com/xrayctl/xrayd/internal/calib"
	"github.com/xrayctl/xrayd/internal/device"
	"github.com/xrayctl/xrayd/internal/pipeline"
	"github.com/xrayctl/xrayd/internal/pipeline/stages"
	"github.com/xrayctl/xrayd/internal/testutil"
	"github.com/xrayctl/xrayd/internal/xframe"
)

func newTestPipeline(t *testing.T) *pipeline.Pipeline {
	t.Helper()
	p, err := pipeline.New(stages.NewDefaultRegistry(), (*testutil.TestLogger)(t))
	if err != nil {
		t.Fatalf("pipeline.New: %v", err)
	}
	return p
}

// TestRequestNFramesProcessedUpToSlotRunsOnlyPrefix exercises S4: a dark
// reference is loaded and dark_subtract is enabled, but the prefix stops
// before flat_correct's slot, so only dark subtraction runs.
func TestRequestNFramesProcessedUpToSlotRunsOnlyPrefix(t *testing.T) {
	dark := xframe.NewFrame(2, 2)
	for i := range dark.Samples {
		dark.Samples[i] = 3
	}
	ctx := &pipeline.Context{
		Dark:    &calib.Reference{Kind: calib.Dark, Frame: dark},
		Enabled: map[string]bool{"dark_subtract": true, "flat_correct": true},
	}

	det := device.NewMock(2, 2, 10)
	store := xframe.NewStore(8)
	pipe := newTestPipeline(t)

	c := New(det, nil, store, pipe, ctx, (*testutil.TestLogger)(t))

	out, err := c.RequestNFramesProcessedUpToSlot(4, stages.FlatCorrectSlot, 2*time.Second, false)
	if err != nil {
		t.Fatalf("RequestNFramesProcessedUpToSlot: %v", err)
	}
	for _, v := range out.Samples {
		if v != 7 {
			t.Fatalf("expected dark-subtracted value 7 (flat_correct must not have run), got %v", v)
		}
	}
	if got := c.Snapshot().Phase; got != Idle {
		t.Fatalf("expected idle after completion, got %v", got)
	}
}

// TestRequestIntegrationCancelledByStopReturnsStopped exercises S5: a beam
// supply that never becomes ready, cancelled by Stop after 200ms.
func TestRequestIntegrationCancelledByStopReturnsStopped(t *testing.T) {
	det := device.NewMock(2, 2, 5)
	supply := beam.NewMock()
	supply.SetNeverReady(true)
	store := xframe.NewStore(8)
	pipe := newTestPipeline(t)
	ctx := &pipeline.Context{Enabled: map[string]bool{}}

	c := New(det, supply, store, pipe, ctx, (*testutil.TestLogger)(t))

	go func() {
		time.Sleep(200 * time.Millisecond)
		c.Stop()
	}()

	start := time.Now()
	f, err := c.RequestIntegration(4, 5*time.Second)
	elapsed := time.Since(start)

	if f != nil {
		t.Fatalf("expected no frame, got %v", f)
	}
	if err != ErrStopped {
		t.Fatalf("expected ErrStopped, got %v", err)
	}
	if elapsed > time.Second {
		t.Fatalf("expected return within ~1s of Stop, took %v", elapsed)
	}
	if supply.OffCalls() != 1 {
		t.Fatalf("expected exactly 1 TurnOff call, got %d", supply.OffCalls())
	}
	if got := c.Snapshot().Phase; got != Idle {
		t.Fatalf("expected idle after stop, got %v", got)
	}
	if store.BufferLen() != 0 {
		t.Fatalf("expected empty integration buffer after stop, got %d", store.BufferLen())
	}
	if got := c.Snapshot().LastFailReason; got != ErrStopped {
		t.Fatalf("expected last_fail_reason stopped, got %v", got)
	}
}

// TestWorkflowKeepsBeamOnAcrossMultipleIntegrations exercises S6: three
// request_integration calls inside one BeginWorkflow/EndWorkflow bracket
// turn the beam on exactly once and off exactly once.
func TestWorkflowKeepsBeamOnAcrossMultipleIntegrations(t *testing.T) {
	det := device.NewMock(2, 2, 42)
	supply := beam.NewMock()
	store := xframe.NewStore(8)
	pipe := newTestPipeline(t)
	ctx := &pipeline.Context{Enabled: map[string]bool{}}

	c := New(det, supply, store, pipe, ctx, (*testutil.TestLogger)(t))

	c.BeginWorkflow()
	var frames []*xframe.Frame
	for i := 0; i < 3; i++ {
		f, err := c.RequestIntegration(5, 2*time.Second)
		if err != nil {
			t.Fatalf("RequestIntegration call %d: %v", i, err)
		}
		frames = append(frames, f)
	}
	if supply.OnCalls() != 1 {
		t.Fatalf("expected beam turned on exactly once, got %d", supply.OnCalls())
	}
	if supply.OffCalls() != 0 {
		t.Fatalf("expected beam still on before EndWorkflow, got %d off calls", supply.OffCalls())
	}
	c.EndWorkflow()
	if supply.OffCalls() != 1 {
		t.Fatalf("expected beam turned off exactly once after EndWorkflow, got %d", supply.OffCalls())
	}
	for i, f := range frames {
		if f == nil {
			t.Fatalf("frame %d is nil", i)
		}
		for _, v := range f.Samples {
			if v != 42 {
				t.Fatalf("frame %d: expected constant 42, got %v", i, v)
			}
		}
	}
}

// TestRequestIntegrationReturnsFrameXorFailReason is Testable Property 7:
// every call either returns a non-nil frame with a nil error, or a nil
// frame with a non-nil error recorded as last_fail_reason.
func TestRequestIntegrationReturnsFrameXorFailReason(t *testing.T) {
	det := device.NewMock(2, 2, 1)
	store := xframe.NewStore(8)
	pipe := newTestPipeline(t)
	ctx := &pipeline.Context{Enabled: map[string]bool{}}
	c := New(det, nil, store, pipe, ctx, (*testutil.TestLogger)(t))

	f, err := c.RequestIntegration(3, time.Second)
	if (f == nil) == (err == nil) {
		t.Fatalf("expected exactly one of frame/error to be set, got f=%v err=%v", f, err)
	}
	if err != nil && c.Snapshot().LastFailReason == nil {
		t.Fatalf("expected last_fail_reason set alongside error %v", err)
	}

	det2 := device.NewMock(2, 2, 1)
	det2.SetConnected(false)
	c2 := New(det2, nil, store, pipe, ctx, (*testutil.TestLogger)(t))
	f2, err2 := c2.RequestIntegration(3, time.Second)
	if f2 != nil || err2 != ErrNotConnected {
		t.Fatalf("expected nil frame and ErrNotConnected, got f=%v err=%v", f2, err2)
	}
}

// TestStopUnblocksWithinOneSecond is Testable Property 8: should_stop
// causes a blocking call to return within a bounded interval.
func TestStopUnblocksWithinOneSecond(t *testing.T) {
	det := device.NewMock(2, 2, 1)
	det.FrameInterval = 500 * time.Millisecond
	store := xframe.NewStore(8)
	pipe := newTestPipeline(t)
	ctx := &pipeline.Context{Enabled: map[string]bool{}}
	c := New(det, nil, store, pipe, ctx, (*testutil.TestLogger)(t))

	go func() {
		time.Sleep(100 * time.Millisecond)
		c.Stop()
	}()

	start := time.Now()
	_, err := c.RequestIntegration(32, 30*time.Second)
	if time.Since(start) > time.Second {
		t.Fatalf("expected return within ~1s of Stop, took %v", time.Since(start))
	}
	if err != ErrStopped {
		t.Fatalf("expected ErrStopped, got %v", err)
	}
}

// TestStartRejectsWhenNotConnected covers the idle->capturing guard for
// Start, mirroring RequestIntegration's ErrNotConnected check.
func TestStartRejectsWhenNotConnected(t *testing.T) {
	det := device.NewMock(2, 2, 1)
	det.SetConnected(false)
	store := xframe.NewStore(8)
	pipe := newTestPipeline(t)
	ctx := &pipeline.Context{Enabled: map[string]bool{}}
	c := New(det, nil, store, pipe, ctx, (*testutil.TestLogger)(t))

	if err := c.Start(context.Background(), ModeSingle, 1, 100); err != ErrNotConnected {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}
