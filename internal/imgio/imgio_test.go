package imgio

import (
	"path/filepath"
	"testing"
)

func TestNPYRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.npy")
	want := []float32{1, 2, 3, 4, 5, 6}
	if err := SaveNPY(path, 3, 2, want); err != nil {
		t.Fatal(err)
	}
	w, h, got, err := LoadNPY(path)
	if err != nil {
		t.Fatal(err)
	}
	if w != 3 || h != 2 {
		t.Fatalf("shape = %dx%d, want 3x2", w, h)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestNormalizeTo16(t *testing.T) {
	in := []float32{0, 5, 10}
	out := NormalizeTo16(in)
	if out[0] != 0 || out[2] != 65535 {
		t.Errorf("out = %v, want ends at 0 and 65535", out)
	}
	if out[1] < 30000 || out[1] > 35000 {
		t.Errorf("midpoint %v not near 32767", out[1])
	}
}

func TestSaveTIFF(t *testing.T) {
	dir := t.TempDir()
	if err := SaveTIFF32F(filepath.Join(dir, "f.tif"), 2, 2, []float32{1, 2, 3, 4}); err != nil {
		t.Fatal(err)
	}
	if err := SaveTIFF8(filepath.Join(dir, "m.tif"), 2, 2, []uint8{0, 255, 0, 255}); err != nil {
		t.Fatal(err)
	}
}
