package device

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/xrayctl/xrayd/internal/xframe"
)

type collectingSink struct {
	mu     sync.Mutex
	frames int
	done   chan struct{}
}

func newCollectingSink() *collectingSink { return &collectingSink{done: make(chan struct{})} }

func (s *collectingSink) SubmitFrame(f *xframe.Frame) {
	s.mu.Lock()
	s.frames++
	s.mu.Unlock()
}

func (s *collectingSink) Done() <-chan struct{} { return s.done }

func (s *collectingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

func TestMockStartAcquisitionRespectsFrameLimit(t *testing.T) {
	m := NewMock(4, 4, 10)
	m.FrameLimit = 3
	m.FrameInterval = time.Millisecond

	sink := newCollectingSink()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := m.StartAcquisition(ctx, m.AcquisitionModes()[0], 0.1, 100, sink); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sink.count() != 3 {
		t.Fatalf("expected 3 frames, got %d", sink.count())
	}
}

func TestMockStartAcquisitionStopsOnSinkDone(t *testing.T) {
	m := NewMock(4, 4, 10)
	m.FrameInterval = time.Millisecond

	sink := newCollectingSink()
	ctx := context.Background()
	go func() {
		time.Sleep(10 * time.Millisecond)
		close(sink.done)
	}()

	done := make(chan error, 1)
	go func() { done <- m.StartAcquisition(ctx, m.AcquisitionModes()[0], 0.1, 100, sink) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("StartAcquisition did not stop within 1s of sink.Done() closing")
	}
	if sink.count() == 0 {
		t.Fatalf("expected at least one frame before stopping")
	}
}

func TestMockIsConnectedToggles(t *testing.T) {
	m := NewMock(2, 2, 0)
	if !m.IsConnected() {
		t.Fatalf("expected a fresh Mock to report connected")
	}
	m.SetConnected(false)
	if m.IsConnected() {
		t.Fatalf("expected SetConnected(false) to take effect")
	}
}
