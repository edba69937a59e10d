package calib

import (
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/pkg/errors"

	"github.com/ausocean/utils/logging"

	"github.com/xrayctl/xrayd/internal/imgio"
	"github.com/xrayctl/xrayd/internal/xframe"
)

// darkFileRE and flatFileRE recognize both the current "<kind>_<t>_<g>_<w>x<h>"
// filename pattern and the legacy "<kind>_<t>_<g>" pattern lacking
// dimensions, which remains readable and is treated as dimension-agnostic.
var (
	darkFileRE = regexp.MustCompile(`^dark_([0-9.]+)_(-?[0-9]+)(?:_([0-9]+)x([0-9]+))?$`)
	flatFileRE = regexp.MustCompile(`^flat_([0-9.]+)_(-?[0-9]+)(?:_([0-9]+)x([0-9]+))?$`)
)

// Store is the Calibration Store: on-disk and in-memory repository of
// dark/flat references and bad-pixel masks.
//
// Grounded on ui/dark_flat.py's load/save/find_nearest functions; the
// directory layout follows §6 of the specification this was built
// against.
type Store struct {
	BaseDir string
	Logger  logging.Logger
}

// NewStore returns a Store rooted at baseDir.
func NewStore(baseDir string, logger logging.Logger) *Store {
	return &Store{BaseDir: baseDir, Logger: logger}
}

func (s *Store) darkDir(detector string) string     { return filepath.Join(s.BaseDir, "darks", detector) }
func (s *Store) flatDir(detector string) string     { return filepath.Join(s.BaseDir, "flats", detector) }
func (s *Store) pixelmapDir(detector string) string { return filepath.Join(s.BaseDir, "pixelmaps", detector) }
func (s *Store) darkTopDir() string                 { return filepath.Join(s.BaseDir, "darks") }
func (s *Store) flatTopDir() string                 { return filepath.Join(s.BaseDir, "flats") }

type candidate struct {
	path    string
	key     Key
	hasDims bool
}

// scanCandidates lists regexp matches of re in dir (non-recursive); dims
// are left zero when the filename omits them.
func scanCandidates(dir string, re *regexp.Regexp, detector string) []candidate {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var out []candidate
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if ext != ".npy" {
			continue
		}
		stem := e.Name()[:len(e.Name())-len(ext)]
		m := re.FindStringSubmatch(stem)
		if m == nil {
			continue
		}
		t, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		g, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		k := Key{DetectorID: detector, ExposureSeconds: t, Gain: g}
		hasDims := m[3] != "" && m[4] != ""
		if hasDims {
			k.Width, _ = strconv.Atoi(m[3])
			k.Height, _ = strconv.Atoi(m[4])
		}
		out = append(out, candidate{path: filepath.Join(dir, e.Name()), key: k, hasDims: hasDims})
	}
	return out
}

// findNearest implements the lookup rule of §4.2: scan the per-detector
// directory first, then the top-level directory; filter by (width,height)
// when dims are encoded; choose minimum distance, breaking ties by scan
// order (per-detector before top-level, matching Testable Property 3).
func findNearest(perDetectorDir, topDir string, re *regexp.Regexp, detector string, query Key) (path string, dist float64, nearestKey Key, found bool) {
	cands := scanCandidates(perDetectorDir, re, detector)
	cands = append(cands, scanCandidates(topDir, re, detector)...)

	best := -1.0
	haveBest := false
	for _, c := range cands {
		if c.hasDims && (c.key.Width != query.Width || c.key.Height != query.Height) {
			continue
		}
		d := Distance(query, c.key)
		if !haveBest || d < best {
			best = d
			haveBest = true
			path = c.path
			nearestKey = c.key
			found = true
		}
	}
	return path, best, nearestKey, found
}

// FindNearestDark scans for the nearest dark reference to query,
// regardless of threshold; callers compare the returned distance against
// their own threshold (default DefaultMatchThreshold).
func (s *Store) FindNearestDark(query Key) (path string, dist float64, nearestKey Key, found bool) {
	return findNearest(s.darkDir(query.DetectorID), s.darkTopDir(), darkFileRE, query.DetectorID, query)
}

// FindNearestFlat scans for the nearest flat reference to query.
func (s *Store) FindNearestFlat(query Key) (path string, dist float64, nearestKey Key, found bool) {
	return findNearest(s.flatDir(query.DetectorID), s.flatTopDir(), flatFileRE, query.DetectorID, query)
}

// LoadDark loads the nearest dark reference within the given threshold,
// or returns ok=false with the nearest rejected key (for "nearest but too
// far" status text) when none qualifies.
func (s *Store) LoadDark(query Key, threshold float64) (ref *Reference, nearestRejected *Key, ok bool) {
	return s.load(Dark, s.darkDir(query.DetectorID), s.darkTopDir(), darkFileRE, query, threshold)
}

// LoadFlat loads the nearest flat reference within threshold.
func (s *Store) LoadFlat(query Key, threshold float64) (ref *Reference, nearestRejected *Key, ok bool) {
	return s.load(Flat, s.flatDir(query.DetectorID), s.flatTopDir(), flatFileRE, query, threshold)
}

func (s *Store) load(kind Kind, perDetectorDir, topDir string, re *regexp.Regexp, query Key, threshold float64) (*Reference, *Key, bool) {
	path, dist, nearestKey, found := findNearest(perDetectorDir, topDir, re, query.DetectorID, query)
	if !found {
		return nil, nil, false
	}
	if dist > threshold {
		return nil, &nearestKey, false
	}
	w, h, samples, err := imgio.LoadNPY(path)
	if err != nil {
		if s.Logger != nil {
			s.Logger.Warning("calib: load failed", "path", path, "error", err.Error())
		}
		return nil, &nearestKey, false
	}
	if query.Width > 0 && query.Height > 0 && (w != query.Width || h != query.Height) {
		return nil, &nearestKey, false
	}
	frame := &xframe.Frame{Width: w, Height: h, Samples: samples}
	key := nearestKey
	key.Width, key.Height = w, h
	return &Reference{Kind: kind, Key: key, Frame: frame}, nil, true
}

// LoadFromPath manually loads a reference from an explicit .npy path,
// without nearest-match or threshold logic. The returned reference has no
// key association beyond the dimensions actually loaded, matching
// load_dark_field_from_path's "manual load forgets the time/gain
// association" behavior.
func LoadFromPath(kind Kind, path string) (*Reference, error) {
	w, h, samples, err := imgio.LoadNPY(path)
	if err != nil {
		return nil, errors.Wrapf(err, "calib: manual load of %s", path)
	}
	return &Reference{Kind: kind, Frame: &xframe.Frame{Width: w, Height: h, Samples: samples}}, nil
}

// SaveDark persists a dark reference as the canonical .npy + .tif pair
// plus a "last_captured_dark" mirror, matching save_dark_field.
func (s *Store) SaveDark(ref *Reference) error {
	return s.save(s.darkDir(ref.Key.DetectorID), DarkFilename(ref.Key), "last_captured_dark", ref)
}

// SaveFlat persists a flat reference the same way.
func (s *Store) SaveFlat(ref *Reference) error {
	return s.save(s.flatDir(ref.Key.DetectorID), FlatFilename(ref.Key), "last_captured_flat", ref)
}

func (s *Store) save(dir, stem, lastCapturedStem string, ref *Reference) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "calib: mkdir")
	}
	npyPath := filepath.Join(dir, stem+".npy")
	if err := imgio.SaveNPY(npyPath, ref.Frame.Width, ref.Frame.Height, ref.Frame.Samples); err != nil {
		return errors.Wrap(err, "calib: save npy")
	}
	if err := copyFile(npyPath, filepath.Join(dir, lastCapturedStem+".npy")); err != nil {
		return errors.Wrap(err, "calib: mirror last-captured npy")
	}
	tifPath := filepath.Join(dir, stem+".tif")
	if err := imgio.SaveTIFF32F(tifPath, ref.Frame.Width, ref.Frame.Height, ref.Frame.Samples); err != nil {
		if s.Logger != nil {
			s.Logger.Warning("calib: tiff save failed", "path", tifPath, "error", err.Error())
		}
		return nil // TIFF companion is best-effort, matching the source's try/except.
	}
	_ = copyFile(tifPath, filepath.Join(dir, lastCapturedStem+".tif"))

	histPath := filepath.Join(dir, stem+"_hist.png")
	if err := saveHistogram(histPath, stem, ref.Frame.Samples); err != nil && s.Logger != nil {
		s.Logger.Warning("calib: histogram save failed", "path", histPath, "error", err.Error())
	}
	return nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}

// LoadMask loads the bad-pixel mask for (detector, width, height), if any.
func (s *Store) LoadMask(detector string, width, height int) (*Mask, error) {
	path := filepath.Join(s.darkDir(detector), BadPixelMapFilename(width, height)+".npy")
	w, h, samples, err := imgio.LoadNPY(path)
	if err != nil {
		return nil, err
	}
	if w != width || h != height {
		return nil, errors.Errorf("calib: mask shape %dx%d does not match requested %dx%d", w, h, width, height)
	}
	m := NewMask(w, h)
	for i, v := range samples {
		m.Bad[i] = v != 0
	}
	return m, nil
}

// SaveMask persists m as a boolean .npy grid alongside a 0/255 review TIFF
// in the pixelmap directory, matching _save_map.
func (s *Store) SaveMask(detector string, m *Mask) error {
	dir := s.darkDir(detector)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "calib: mkdir")
	}
	stem := BadPixelMapFilename(m.Width, m.Height)
	floatBits := make([]float32, len(m.Bad))
	review := make([]uint8, len(m.Bad))
	for i, bad := range m.Bad {
		if bad {
			floatBits[i] = 1
			review[i] = 255
		}
	}
	if err := imgio.SaveNPY(filepath.Join(dir, stem+".npy"), m.Width, m.Height, floatBits); err != nil {
		return errors.Wrap(err, "calib: save mask npy")
	}
	reviewDir := s.pixelmapDir(detector)
	if err := os.MkdirAll(reviewDir, 0o755); err != nil {
		return errors.Wrap(err, "calib: mkdir pixelmap review dir")
	}
	if err := imgio.SaveTIFF8(filepath.Join(reviewDir, stem+".tif"), m.Width, m.Height, review); err != nil {
		if s.Logger != nil {
			s.Logger.Warning("calib: mask review tiff failed", "error", err.Error())
		}
	}
	return nil
}

// DarkStatusText renders the exact status strings ui/dark_flat.py's
// dark_status_text produces.
func DarkStatusText(loaded *Reference, loadedKey *Key, nearestRejected *Key) string {
	return statusText("Dark", loaded, loadedKey, nearestRejected)
}

// FlatStatusText renders the Flat equivalent.
func FlatStatusText(loaded *Reference, loadedKey *Key, nearestRejected *Key) string {
	return statusText("Flat", loaded, loadedKey, nearestRejected)
}

func statusText(label string, loaded *Reference, loadedKey *Key, nearestRejected *Key) string {
	if loaded != nil {
		if loadedKey != nil {
			return label + " (" + formatExposure(loadedKey.ExposureSeconds) + "s @ " + strconv.Itoa(loadedKey.Gain) + "): Loaded"
		}
		return label + ": Loaded (manual)"
	}
	if nearestRejected != nil {
		return label + ": None (nearest " + formatExposure(nearestRejected.ExposureSeconds) + "s @ " + strconv.Itoa(nearestRejected.Gain) + " too far)"
	}
	return label + ": None"
}
