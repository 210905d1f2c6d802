package config

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"compressure/internal/params"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateEncoding(); err != nil {
		return err
	}
	if err := c.validateSlicing(); err != nil {
		return err
	}
	if err := c.validateTimeline(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.WorkDir) == "" {
		return errors.New("paths.work_dir must be set")
	}
	if strings.TrimSpace(c.Paths.ManifestPath) == "" {
		return errors.New("paths.manifest_path must be set")
	}
	if strings.HasSuffix(c.Paths.ManifestPath, "/") {
		return errors.New("paths.manifest_path must name a file, not a directory")
	}
	if strings.TrimSpace(c.Paths.JournalPath) == "" {
		return errors.New("paths.journal_path must be set")
	}
	return nil
}

func (c *Config) validateEncoding() error {
	if !params.IsKnownEncoder(c.Encoding.Encoder) {
		return fmt.Errorf("encoding.encoder %q is not supported (choose one of %s)",
			c.Encoding.Encoder, strings.Join(params.Encoders(), ", "))
	}
	if c.Encoding.GOPSize <= 0 {
		return errors.New("encoding.gop_size must be positive")
	}
	return nil
}

func (c *Config) validateSlicing() error {
	if c.Slicing.SuperframeSize <= 0 {
		return errors.New("slicing.superframe_size must be positive")
	}
	if c.Slicing.Workers < 0 {
		return errors.New("slicing.workers must be >= 0 (0 sizes the pool automatically)")
	}
	return nil
}

func (c *Config) validateTimeline() error {
	switch c.Timeline.Mode {
	case "scaled", "rectified":
	default:
		return fmt.Errorf("timeline.mode %q must be \"scaled\" or \"rectified\"", c.Timeline.Mode)
	}
	if c.Timeline.Samples <= 0 {
		return errors.New("timeline.samples must be positive")
	}
	if err := ensureFinite(map[string]float64{
		"timeline.frequency":           c.Timeline.Frequency,
		"timeline.secondary_frequency": c.Timeline.SecondaryFrequency,
		"timeline.secondary_amplitude": c.Timeline.SecondaryAmplitude,
		"timeline.stay_probability":    c.Timeline.StayProbability,
	}); err != nil {
		return err
	}
	if c.Timeline.StayProbability < 0 || c.Timeline.StayProbability > 1 {
		return errors.New("timeline.stay_probability must be between 0 and 1")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format %q must be \"console\" or \"json\"", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level %q is not recognized", c.Logging.Level)
	}
	return nil
}

func ensureFinite(values map[string]float64) error {
	for key, value := range values {
		if math.IsNaN(value) || math.IsInf(value, 0) {
			return fmt.Errorf("%s must be a finite number", key)
		}
	}
	return nil
}
