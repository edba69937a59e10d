package calib

import (
	"path/filepath"
	"testing"

	"github.com/xrayctl/xrayd/internal/imgio"
	"github.com/xrayctl/xrayd/internal/xframe"
)

func TestDistance(t *testing.T) {
	d := Distance(Key{ExposureSeconds: 1.2, Gain: 100}, Key{ExposureSeconds: 1.0, Gain: 100})
	if diff := d - 0.2; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("distance = %v, want 0.2", d)
	}
}

func TestFormatExposure(t *testing.T) {
	tests := map[float64]string{1.0: "1.0", 1.5: "1.5", 0.25: "0.25"}
	for in, want := range tests {
		if got := formatExposure(in); got != want {
			t.Errorf("formatExposure(%v) = %q, want %q", in, got, want)
		}
	}
}

// TestNearestMatch covers S1/S2: a store with darks at (1.0,100) and
// (1.5,100) selects the 1.0 entry for a (1.2,100) query (distance 0.2,
// applied) and rejects a (5.0,200) query (nearest distance 4.5, too far).
func TestNearestMatch(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir, nil)
	for _, k := range []Key{
		{DetectorID: "det", ExposureSeconds: 1.0, Gain: 100, Width: 4, Height: 4},
		{DetectorID: "det", ExposureSeconds: 1.5, Gain: 100, Width: 4, Height: 4},
	} {
		ref := &Reference{Kind: Dark, Key: k, Frame: xframe.NewFrame(4, 4)}
		if err := s.SaveDark(ref); err != nil {
			t.Fatalf("SaveDark: %v", err)
		}
	}

	query := Key{DetectorID: "det", ExposureSeconds: 1.2, Gain: 100, Width: 4, Height: 4}
	ref, rejected, ok := s.LoadDark(query, DefaultMatchThreshold)
	if !ok || rejected != nil {
		t.Fatalf("expected a match, got ref=%v rejected=%v", ref, rejected)
	}

	far := Key{DetectorID: "det", ExposureSeconds: 5.0, Gain: 200, Width: 4, Height: 4}
	ref2, rejected2, ok2 := s.LoadDark(far, DefaultMatchThreshold)
	if ok2 || ref2 != nil {
		t.Fatalf("expected rejection, got ref=%v", ref2)
	}
	if rejected2 == nil || rejected2.ExposureSeconds != 1.5 {
		t.Fatalf("expected nearest-rejected key at 1.5s, got %v", rejected2)
	}
}

func TestDeriveMask(t *testing.T) {
	flat := xframe.NewFrame(10, 1)
	dark := xframe.NewFrame(10, 1)
	for i := range flat.Samples {
		flat.Samples[i] = float32(100 + i)
		dark.Samples[i] = float32(i)
	}
	// Push one outlier on each side.
	flat.Samples[0] = 1 // cold
	dark.Samples[9] = 9999 // hot
	m := DeriveMask(dark, flat, 0.1, 0.1)
	if m == nil {
		t.Fatal("expected a mask")
	}
	if !m.Bad[0] {
		t.Error("expected pixel 0 flagged cold")
	}
	if !m.Bad[9] {
		t.Error("expected pixel 9 flagged hot")
	}
}

func TestReplaceBadPixels(t *testing.T) {
	f := xframe.NewFrame(3, 3)
	for i := range f.Samples {
		f.Samples[i] = 10
	}
	f.Samples[4] = 999 // center pixel is bad
	m := NewMask(3, 3)
	m.Bad[4] = true

	out := ReplaceBadPixels(f, m)
	if out.Samples[4] != 10 {
		t.Errorf("center = %v, want 10 (median of neighbors)", out.Samples[4])
	}
	for i, v := range out.Samples {
		if i != 4 && v != 10 {
			t.Errorf("pixel %d changed unexpectedly: %v", i, v)
		}
	}
}

func TestLoadFromPathLosesKey(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manual.npy")
	frame := xframe.NewFrame(2, 2)
	if err := imgio.SaveNPY(path, frame.Width, frame.Height, frame.Samples); err != nil {
		t.Fatal(err)
	}
	ref, err := LoadFromPath(Dark, path)
	if err != nil {
		t.Fatal(err)
	}
	if ref.Key != (Key{}) {
		t.Errorf("expected zero-value key on manual load, got %v", ref.Key)
	}
	text := DarkStatusText(ref, nil, nil)
	if text != "Dark: Loaded (manual)" {
		t.Errorf("status = %q, want %q", text, "Dark: Loaded (manual)")
	}
}
