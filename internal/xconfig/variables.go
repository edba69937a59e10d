package xconfig

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ausocean/utils/logging"
)

// Config map keys.
const (
	KeyDetectorID               = "DetectorID"
	KeyExposureLabel            = "ExposureLabel"
	KeyExposureSeconds          = "ExposureSeconds"
	KeyGain                     = "Gain"
	KeyIntegrationN             = "IntegrationN"
	KeyWindowMin                = "WindowMin"
	KeyWindowMax                = "WindowMax"
	KeyMode                     = "Mode"
	KeyCalibrationDir           = "CalibrationDir"
	KeyMatchThreshold           = "MatchThreshold"
	KeyBeamAutoToggle           = "BeamAutoToggle"
	KeyKeepBeamOnDuringWorkflow = "KeepBeamOnDuringWorkflow"
	KeyLogLevel                 = "LogLevel"
)

// Config map parameter types.
const (
	typeString = "string"
	typeInt    = "int"
	typeUint   = "uint"
	typeBool   = "bool"
	typeFloat  = "float"
)

// Default variable values, grounded on spec.md §3/§4.2/§4.5.
const (
	defaultExposureSeconds = 1.0
	defaultGain            = 100
	defaultIntegrationN    = 4
	defaultWindowMax       = 65535
	defaultCalibrationDir  = "calibration"
	defaultMatchThreshold  = 1.0
	defaultVerbosity       = logging.Error

	minIntegrationN = 1
	maxIntegrationN = 32
)

// Variables describes every persisted configuration field: its name and
// type for the editor UI, an Update function parsing a string into the
// Config, and an optional Validate function defaulting out-of-range
// values.
var Variables = []struct {
	Name     string
	Type     string
	Update   func(*Config, string)
	Validate func(*Config)
}{
	{
		Name:   KeyDetectorID,
		Type:   typeString,
		Update: func(c *Config, v string) { c.DetectorID = v },
	},
	{
		Name:   KeyExposureLabel,
		Type:   typeString,
		Update: func(c *Config, v string) { c.ExposureLabel = v },
	},
	{
		Name:   KeyExposureSeconds,
		Type:   typeFloat,
		Update: func(c *Config, v string) { c.ExposureSeconds = parseFloat(KeyExposureSeconds, v, c) },
		Validate: func(c *Config) {
			if c.ExposureSeconds <= 0 {
				c.LogInvalidField(KeyExposureSeconds, defaultExposureSeconds)
				c.ExposureSeconds = defaultExposureSeconds
			}
		},
	},
	{
		Name:   KeyGain,
		Type:   typeInt,
		Update: func(c *Config, v string) { c.Gain = parseInt(KeyGain, v, c) },
		Validate: func(c *Config) {
			if c.Gain < 0 {
				c.LogInvalidField(KeyGain, defaultGain)
				c.Gain = defaultGain
			}
		},
	},
	{
		Name:   KeyIntegrationN,
		Type:   typeUint,
		Update: func(c *Config, v string) { c.IntegrationN = parseUint(KeyIntegrationN, v, c) },
		Validate: func(c *Config) {
			if c.IntegrationN < minIntegrationN || c.IntegrationN > maxIntegrationN {
				clamped := c.IntegrationN
				if clamped < minIntegrationN {
					clamped = minIntegrationN
				}
				if clamped > maxIntegrationN {
					clamped = maxIntegrationN
				}
				c.LogInvalidField(KeyIntegrationN, clamped)
				c.IntegrationN = clamped
			}
		},
	},
	{
		Name:   KeyWindowMin,
		Type:   typeFloat,
		Update: func(c *Config, v string) { c.WindowMin = parseFloat(KeyWindowMin, v, c) },
	},
	{
		Name:   KeyWindowMax,
		Type:   typeFloat,
		Update: func(c *Config, v string) { c.WindowMax = parseFloat(KeyWindowMax, v, c) },
		Validate: func(c *Config) {
			if c.WindowMax <= c.WindowMin {
				c.LogInvalidField(KeyWindowMax, defaultWindowMax)
				c.WindowMax = defaultWindowMax
			}
		},
	},
	{
		Name:   KeyMode,
		Type:   typeInt,
		Update: func(c *Config, v string) { c.Mode = parseInt(KeyMode, v, c) },
	},
	{
		Name:   KeyCalibrationDir,
		Type:   typeString,
		Update: func(c *Config, v string) { c.CalibrationDir = v },
		Validate: func(c *Config) {
			if c.CalibrationDir == "" {
				c.LogInvalidField(KeyCalibrationDir, defaultCalibrationDir)
				c.CalibrationDir = defaultCalibrationDir
			}
		},
	},
	{
		Name:   KeyMatchThreshold,
		Type:   typeFloat,
		Update: func(c *Config, v string) { c.MatchThreshold = parseFloat(KeyMatchThreshold, v, c) },
		Validate: func(c *Config) {
			if c.MatchThreshold <= 0 {
				c.LogInvalidField(KeyMatchThreshold, defaultMatchThreshold)
				c.MatchThreshold = defaultMatchThreshold
			}
		},
	},
	{
		Name:   KeyBeamAutoToggle,
		Type:   typeInt,
		Update: func(c *Config, v string) { c.BeamAutoToggle = parseInt(KeyBeamAutoToggle, v, c) },
	},
	{
		Name:   KeyKeepBeamOnDuringWorkflow,
		Type:   typeBool,
		Update: func(c *Config, v string) { c.KeepBeamOnDuringWorkflow = parseBool(KeyKeepBeamOnDuringWorkflow, v, c) },
	},
	{
		Name:   KeyLogLevel,
		Type:   typeInt,
		Update: func(c *Config, v string) { c.LogLevel = int8(parseInt(KeyLogLevel, v, c)) },
	},
}

func parseUint(n, v string, c *Config) uint {
	_v, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		c.Logger.Warning(fmt.Sprintf("expected unsigned int for param %s", n), "value", v)
	}
	return uint(_v)
}

func parseInt(n, v string, c *Config) int {
	_v, err := strconv.Atoi(v)
	if err != nil {
		c.Logger.Warning(fmt.Sprintf("expected integer for param %s", n), "value", v)
	}
	return _v
}

func parseFloat(n, v string, c *Config) float64 {
	_v, err := strconv.ParseFloat(v, 64)
	if err != nil {
		c.Logger.Warning(fmt.Sprintf("expected float for param %s", n), "value", v)
	}
	return _v
}

func parseBool(n, v string, c *Config) (b bool) {
	switch strings.ToLower(v) {
	case "true":
		b = true
	case "false":
		b = false
	default:
		c.Logger.Warning(fmt.Sprintf("expected bool for param %s", n), "value", v)
	}
	return
}
