package xframe

import "testing"

func constFrame(w, h int, v float32) *Frame {
	f := NewFrame(w, h)
	for i := range f.Samples {
		f.Samples[i] = v
	}
	return f
}

// TestIntegration covers S3: pushing constant frames [10,20,30,40] with
// capacity 3 leaves the integrated frame at a constant 30 after the 4th.
func TestIntegration(t *testing.T) {
	s := NewStore(3)
	for _, v := range []float32{10, 20, 30, 40} {
		s.PushProcessed(constFrame(2, 2, v))
	}
	got := s.SnapshotIntegrated()
	if got == nil {
		t.Fatal("expected an integrated frame")
	}
	for i, v := range got.Samples {
		if v != 30 {
			t.Errorf("sample %d = %v, want 30", i, v)
		}
	}
}

func TestSetIntegrationCapacityTrims(t *testing.T) {
	s := NewStore(4)
	for _, v := range []float32{10, 20, 30, 40} {
		s.PushProcessed(constFrame(1, 1, v))
	}
	s.SetIntegrationCapacity(2)
	got := s.SnapshotIntegrated()
	want := float32(35) // mean(30, 40)
	if got.Samples[0] != want {
		t.Errorf("integrated = %v, want %v", got.Samples[0], want)
	}
	if s.BufferLen() != 2 {
		t.Errorf("buffer len = %d, want 2", s.BufferLen())
	}
}

func TestClearBuffer(t *testing.T) {
	s := NewStore(4)
	s.PushProcessed(constFrame(1, 1, 1))
	s.ClearBuffer()
	if got := s.SnapshotIntegrated(); got != nil {
		t.Errorf("expected nil integrated frame after clear, got %v", got)
	}
}

func TestCapacityClamp(t *testing.T) {
	s := NewStore(100)
	if s.IntegrationCapacity() != maxIntegrationCapacity {
		t.Errorf("capacity = %d, want clamp to %d", s.IntegrationCapacity(), maxIntegrationCapacity)
	}
	s.SetIntegrationCapacity(0)
	if s.IntegrationCapacity() != minIntegrationCapacity {
		t.Errorf("capacity = %d, want clamp to %d", s.IntegrationCapacity(), minIntegrationCapacity)
	}
}

func TestLastCaptured(t *testing.T) {
	s := NewStore(2)
	s.PushProcessed(constFrame(1, 1, 5))
	s.PublishLastCaptured()
	f := s.TakeLastCaptured()
	if f == nil || f.Samples[0] != 5 {
		t.Fatalf("TakeLastCaptured = %v, want frame with sample 5", f)
	}
	if f2 := s.TakeLastCaptured(); f2 != nil {
		t.Errorf("second TakeLastCaptured = %v, want nil", f2)
	}
}
