package xconfig

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ausocean/utils/logging"
	"github.com/pkg/errors"
)

// record is the on-disk shape of a Config: plain fields only, matching
// the "single JSON-like key/value store" persistence contract of
// spec.md §6. Logger is excluded; callers re-attach one on Load.
type record struct {
	DetectorID               string
	ExposureLabel            string
	ExposureSeconds          float64
	Gain                     int
	IntegrationN             uint
	WindowMin                float64
	WindowMax                float64
	Mode                     int
	AutoEnabled              map[string]bool
	CalibrationDir           string
	MatchThreshold           float64
	BeamAutoToggle           int
	KeepBeamOnDuringWorkflow bool
	LogLevel                 int8
}

func toRecord(c *Config) record {
	return record{
		DetectorID: c.DetectorID, ExposureLabel: c.ExposureLabel,
		ExposureSeconds: c.ExposureSeconds, Gain: c.Gain,
		IntegrationN: c.IntegrationN, WindowMin: c.WindowMin, WindowMax: c.WindowMax,
		Mode: c.Mode, AutoEnabled: c.AutoEnabled, CalibrationDir: c.CalibrationDir,
		MatchThreshold: c.MatchThreshold, BeamAutoToggle: c.BeamAutoToggle,
		KeepBeamOnDuringWorkflow: c.KeepBeamOnDuringWorkflow, LogLevel: c.LogLevel,
	}
}

func (r record) applyTo(c *Config) {
	c.DetectorID, c.ExposureLabel = r.DetectorID, r.ExposureLabel
	c.ExposureSeconds, c.Gain = r.ExposureSeconds, r.Gain
	c.IntegrationN, c.WindowMin, c.WindowMax = r.IntegrationN, r.WindowMin, r.WindowMax
	c.Mode, c.AutoEnabled, c.CalibrationDir = r.Mode, r.AutoEnabled, r.CalibrationDir
	c.MatchThreshold, c.BeamAutoToggle = r.MatchThreshold, r.BeamAutoToggle
	c.KeepBeamOnDuringWorkflow, c.LogLevel = r.KeepBeamOnDuringWorkflow, r.LogLevel
}

// Load reads path into a Config built from Defaults(logger), falling
// back to the defaults unmodified if path does not yet exist.
func Load(path string, logger logging.Logger) (*Config, error) {
	c := Defaults(logger)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return c, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "xconfig: read")
	}
	var r record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, errors.Wrap(err, "xconfig: unmarshal")
	}
	r.applyTo(c)
	return c, nil
}

// Save writes c to path atomically: marshal to a temp file in the same
// directory, then rename over the destination.
func Save(path string, c *Config) error {
	data, err := json.MarshalIndent(toRecord(c), "", "  ")
	if err != nil {
		return errors.Wrap(err, "xconfig: marshal")
	}
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".xconfig-*.tmp")
	if err != nil {
		return errors.Wrap(err, "xconfig: create temp")
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return errors.Wrap(err, "xconfig: write temp")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return errors.Wrap(err, "xconfig: close temp")
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return errors.Wrap(err, "xconfig: rename")
	}
	return nil
}

// SaveProfile copies c into profiles/<name> under the store's directory,
// matching "named profiles are full copies of that store".
func SaveProfile(profilesDir, name string, c *Config) error {
	if err := os.MkdirAll(profilesDir, 0o755); err != nil {
		return errors.Wrap(err, "xconfig: mkdir profiles")
	}
	return Save(filepath.Join(profilesDir, name), c)
}

// LoadProfile overwrites dst in place from profiles/<name>, matching
// "loading a profile overwrites the main store and marks the application
// for restart"; the caller is responsible for acting on RestartRequired.
func LoadProfile(profilesDir, name string, dst *Config) (restartRequired bool, err error) {
	data, err := os.ReadFile(filepath.Join(profilesDir, name))
	if err != nil {
		return false, errors.Wrap(err, "xconfig: read profile")
	}
	var r record
	if err := json.Unmarshal(data, &r); err != nil {
		return false, errors.Wrap(err, "xconfig: unmarshal profile")
	}
	r.applyTo(dst)
	return true, nil
}

// DebouncedSaver batches config writes behind a single pending flag and
// deadline timer, matching the original's "pending/scope state" write
// coalescing described in spec.md §9 ("Debounced writes").
type DebouncedSaver struct {
	path  string
	delay time.Duration

	mu      sync.Mutex
	pending bool
	timer   *time.Timer
}

// NewDebouncedSaver returns a saver that flushes at most once per delay.
func NewDebouncedSaver(path string, delay time.Duration) *DebouncedSaver {
	return &DebouncedSaver{path: path, delay: delay}
}

// Request marks c for saving after the debounce delay, resetting any
// already-pending timer.
func (s *DebouncedSaver) Request(c *Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = true
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.delay, func() {
		s.mu.Lock()
		pending := s.pending
		s.pending = false
		s.mu.Unlock()
		if pending {
			Save(s.path, c)
		}
	})
}

// Pending reports whether a save is currently scheduled.
func (s *DebouncedSaver) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}
