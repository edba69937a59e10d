package xframe

import "sync"

const (
	minIntegrationCapacity = 1
	maxIntegrationCapacity = 32
)

// PendingPreview is a one-shot request for the main consumer to paint a
// frame next tick regardless of the live display mode.
type PendingPreview struct {
	Frame         *Frame
	HistogramMode bool
}

// Store is the Frame Store: shared ownership of the latest raw frame, the
// integration ring and the integrated (mean) frame, guarded by a single
// mutex, matching the component design's single-lock contract.
//
// Grounded on revid.Revid, which likewise guards a handful of fields
// (running, input, err) behind ad-hoc locking and a level-triggered signal
// channel; here the signal is explicit (newFrameReady) rather than baked
// into a io.Writer chain.
type Store struct {
	mu sync.Mutex

	raw       *Frame
	buffer    []*Frame
	capacity  int
	integrated *Frame

	lastCaptured *Frame
	pending      *PendingPreview

	newFrameReady chan struct{}
}

// NewStore returns a Store with the given initial integration capacity
// (clamped to [1, 32]).
func NewStore(capacity int) *Store {
	return &Store{
		capacity:      clampCapacity(capacity),
		newFrameReady: make(chan struct{}, 1),
	}
}

func clampCapacity(n int) int {
	if n < minIntegrationCapacity {
		return minIntegrationCapacity
	}
	if n > maxIntegrationCapacity {
		return maxIntegrationCapacity
	}
	return n
}

// Submit unconditionally replaces the raw frame.
func (s *Store) Submit(raw *Frame) {
	s.mu.Lock()
	s.raw = raw
	s.mu.Unlock()
}

// RawSnapshot copies the current raw frame out of the lock.
func (s *Store) RawSnapshot() *Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.raw.Clone()
}

// PushProcessed appends f to the integration buffer, evicts the oldest
// entry when the buffer exceeds capacity, recomputes the integrated mean
// in place, and signals newFrameReady. It is the only producer of
// integrated frames.
func (s *Store) PushProcessed(f *Frame) {
	s.mu.Lock()
	s.buffer = append(s.buffer, f)
	if len(s.buffer) > s.capacity {
		s.buffer = s.buffer[len(s.buffer)-s.capacity:]
	}
	s.integrated = MeanOf(s.buffer)
	s.mu.Unlock()
	s.signal()
}

func (s *Store) signal() {
	select {
	case s.newFrameReady <- struct{}{}:
	default:
	}
}

// NewFrameReady returns the level-triggered "a frame is ready" channel.
// Receiving from it drains exactly one pending signal; callers that need
// level-triggered semantics should drain it in a select-default loop.
func (s *Store) NewFrameReady() <-chan struct{} { return s.newFrameReady }

// SnapshotIntegrated copies the integrated frame out of the lock, or
// returns nil if the buffer is empty.
func (s *Store) SnapshotIntegrated() *Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.integrated.Clone()
}

// ClearBuffer empties the integration buffer and forgets the integrated
// frame.
func (s *Store) ClearBuffer() {
	s.mu.Lock()
	s.buffer = nil
	s.integrated = nil
	s.mu.Unlock()
}

// SetIntegrationCapacity clamps n to [1, 32] and trims the buffer, keeping
// the newest entries, then recomputes the integrated frame.
func (s *Store) SetIntegrationCapacity(n int) {
	n = clampCapacity(n)
	s.mu.Lock()
	s.capacity = n
	if len(s.buffer) > n {
		s.buffer = s.buffer[len(s.buffer)-n:]
	}
	if len(s.buffer) > 0 {
		s.integrated = MeanOf(s.buffer)
	} else {
		s.integrated = nil
	}
	s.mu.Unlock()
}

// IntegrationCapacity returns the current capacity.
func (s *Store) IntegrationCapacity() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.capacity
}

// BufferLen returns the current integration buffer length.
func (s *Store) BufferLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buffer)
}

// SetPendingPreview installs a one-shot preview request.
func (s *Store) SetPendingPreview(f *Frame, histogramMode bool) {
	s.mu.Lock()
	s.pending = &PendingPreview{Frame: f, HistogramMode: histogramMode}
	s.mu.Unlock()
}

// TakePendingPreview returns and clears the pending preview, if any.
func (s *Store) TakePendingPreview() *PendingPreview {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.pending
	s.pending = nil
	return p
}

// PublishLastCaptured copies the current integrated frame into the
// "last captured" slot. Called by the controller's request_integration on
// the capturing→idle edge, before it waits for the published frame.
func (s *Store) PublishLastCaptured() {
	s.mu.Lock()
	s.lastCaptured = s.integrated.Clone()
	s.mu.Unlock()
}

// TakeLastCaptured returns and clears the last captured frame.
func (s *Store) TakeLastCaptured() *Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := s.lastCaptured
	s.lastCaptured = nil
	return f
}

// ClearLastCaptured forgets any previously published captured frame,
// called at the start of request_integration so stale results can never
// leak into a new call.
func (s *Store) ClearLastCaptured() {
	s.mu.Lock()
	s.lastCaptured = nil
	s.mu.Unlock()
}
