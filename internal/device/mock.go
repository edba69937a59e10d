package device

import (
	"context"
	"sync"
	"time"

	"github.com/xrayctl/xrayd/internal/xframe"
)

// Mock is a Detector backed by a constant-value frame generator,
// grounded on device/file's in-memory-loop shape but generating
// synthetic float32 frames instead of reading a byte stream. Useful for
// controller tests (S3, S5, S6 of spec.md §8) and local development
// without hardware.
type Mock struct {
	Width, Height int
	// Value is the constant sample value each generated frame carries;
	// tests mutate it between calls to simulate changing scenes.
	Value float32

	// FrameInterval is the delay between successive SubmitFrame calls,
	// approximating the exposure+readout cadence.
	FrameInterval time.Duration

	// DualShot makes UsesDualShotForCaptureN report true.
	DualShot bool

	// FrameLimit, if > 0, stops acquisition after that many frames
	// regardless of ctx state (modeling capture_n completion).
	FrameLimit int

	mu        sync.Mutex
	connected bool
	opened    bool
}

// NewMock returns a Mock sized to produce width x height frames of the
// given constant value.
func NewMock(width, height int, value float32) *Mock {
	return &Mock{Width: width, Height: height, Value: value, FrameInterval: time.Millisecond, connected: true}
}

func (m *Mock) Open(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opened = true
	return nil
}

func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opened = false
	return nil
}

func (m *Mock) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// SetConnected lets tests simulate a disconnect mid-run.
func (m *Mock) SetConnected(c bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = c
}

func (m *Mock) AcquisitionModes() []AcquisitionMode {
	return []AcquisitionMode{{Label: "single", ID: 0}, {Label: "continuous", ID: 1}}
}

func (m *Mock) ExposureChoices() []string { return nil }

func (m *Mock) SensorBitDepth() int { return 16 }

func (m *Mock) StartAcquisition(ctx context.Context, mode AcquisitionMode, exposureSeconds float64, gain int, sink Sink) error {
	count := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-sink.Done():
			return nil
		default:
		}
		m.mu.Lock()
		v := m.Value
		m.mu.Unlock()
		f := xframe.NewFrame(m.Width, m.Height)
		for i := range f.Samples {
			f.Samples[i] = v
		}
		sink.SubmitFrame(f)
		count++
		if m.FrameLimit > 0 && count >= m.FrameLimit {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-sink.Done():
			return nil
		case <-time.After(m.FrameInterval):
		}
	}
}

func (m *Mock) UsesDualShotForCaptureN() bool { return m.DualShot }

func (m *Mock) CurrentGain() (int, bool) { return 0, false }

func (m *Mock) GetFrameSize() (int, int, bool) { return m.Width, m.Height, true }
