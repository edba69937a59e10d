package beam

import (
	"sync"
	"time"
)

// Mock is a Supply for controller tests: ready state and connectivity
// are both settable, and every call is counted so tests can assert
// exact handshake call counts (S5, S6 of spec.md §8).
type Mock struct {
	AutoToggle bool

	mu         sync.Mutex
	connected  bool
	neverReady bool
	onCalls    int
	offCalls   int
}

// NewMock returns a Mock that is connected and becomes ready immediately.
func NewMock() *Mock { return &Mock{connected: true, AutoToggle: true} }

func (m *Mock) WantsAutoToggle() bool { return m.AutoToggle }

func (m *Mock) SetConnected(c bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = c
}

func (m *Mock) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// SetNeverReady makes TurnOnWaitReady block until cancel or deadline,
// for exercising S5 (cancel beam wait).
func (m *Mock) SetNeverReady(never bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.neverReady = never
}

func (m *Mock) TurnOnWaitReady(cancel <-chan struct{}, deadline time.Time) (bool, error) {
	m.mu.Lock()
	m.onCalls++
	never := m.neverReady
	m.mu.Unlock()

	if !never {
		return true, nil
	}
	for {
		select {
		case <-cancel:
			return false, nil
		default:
		}
		if time.Now().After(deadline) {
			return false, nil
		}
		select {
		case <-cancel:
			return false, nil
		case <-time.After(20 * time.Millisecond):
		}
	}
}

func (m *Mock) TurnOff() error {
	m.mu.Lock()
	m.offCalls++
	m.mu.Unlock()
	return nil
}

// OnCalls and OffCalls report handshake call counts for assertions.
func (m *Mock) OnCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.onCalls
}

func (m *Mock) OffCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.offCalls
}
