// Package xconfig holds the typed, file-persisted configuration for the
// acquisition daemon, validated through a Variables-style registry table
// the way github.com/ausocean/av/revid/config does.
package xconfig

import (
	"github.com/ausocean/utils/logging"
)

// Acquisition mode enums, matching control.Mode but kept independent so
// config can be validated without importing the control package.
const (
	ModeSingle = iota
	ModeDual
	ModeContinuous
	ModeCaptureN
)

// Config is the full set of persisted, user-editable settings for one
// detector session. A zero Config is invalid; call Defaults or Load.
type Config struct {
	// DetectorID names the active detector, used to namespace
	// calibration subdirectories.
	DetectorID string

	// ExposureLabel and Gain select the acquisition settings passed to
	// the detector driver.
	ExposureLabel   string
	ExposureSeconds float64
	Gain            int

	// IntegrationN is the Frame Store integration buffer capacity,
	// clamped 1..32.
	IntegrationN uint

	// WindowMin/WindowMax are the display windowing range; they do not
	// affect stored frame values, only presentation.
	WindowMin float64
	WindowMax float64

	// Mode is the last-used acquisition mode label.
	Mode int

	// AutoEnabled records each pipeline stage's auto_enabled flag, keyed
	// by stage name.
	AutoEnabled map[string]bool

	// CalibrationDir is the root of the darks/flats/pixelmaps tree.
	CalibrationDir string

	// MatchThreshold is the calibration nearest-match cutoff.
	MatchThreshold float64

	// BeamAutoToggle mirrors BeamSupply.wants_auto_toggle's persisted
	// override; -1 means "ask the driver".
	BeamAutoToggle int

	// KeepBeamOnDuringWorkflow is the workflow "keep beam on" flag
	// described in the supplemented-features notes.
	KeepBeamOnDuringWorkflow bool

	// LogLevel is the daemon logging verbosity.
	LogLevel int8

	// Logger holds an implementation of the Logger interface. Must be
	// set before Validate or Update are called.
	Logger logging.Logger
}

// Defaults returns a Config with every field set to its documented
// default, given a logger.
func Defaults(logger logging.Logger) *Config {
	return &Config{
		ExposureSeconds:          defaultExposureSeconds,
		Gain:                     defaultGain,
		IntegrationN:             defaultIntegrationN,
		WindowMin:                0,
		WindowMax:                defaultWindowMax,
		Mode:                     ModeSingle,
		AutoEnabled:              make(map[string]bool),
		CalibrationDir:           defaultCalibrationDir,
		MatchThreshold:           defaultMatchThreshold,
		BeamAutoToggle:           -1,
		KeepBeamOnDuringWorkflow: false,
		LogLevel:                 defaultVerbosity,
		Logger:                   logger,
	}
}

// Validate applies every Variables entry's Validate function, defaulting
// out-of-range fields and logging the substitution.
func (c *Config) Validate() error {
	for _, v := range Variables {
		if v.Validate != nil {
			v.Validate(c)
		}
	}
	return nil
}

// Update applies string-typed values from vars to the matching Config
// fields, skipping unknown keys with a logged warning rather than
// silently carrying them.
func (c *Config) Update(vars map[string]string) {
	known := make(map[string]bool, len(Variables))
	for _, value := range Variables {
		known[value.Name] = true
		if v, ok := vars[value.Name]; ok && value.Update != nil {
			value.Update(c, v)
		}
	}
	for k := range vars {
		if !known[k] {
			c.Logger.Warning("unknown config key, ignoring", "key", k)
		}
	}
}

// LogInvalidField logs a defaulted field the way revid/config.Config does.
func (c *Config) LogInvalidField(name string, def interface{}) {
	c.Logger.Info(name+" bad or unset, defaulting", name, def)
}
