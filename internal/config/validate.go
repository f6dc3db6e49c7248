package config

import (
	"errors"
	"fmt"

	"cutplan/internal/timebase"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateSequence(); err != nil {
		return err
	}
	if err := c.validateLog(); err != nil {
		return err
	}
	if c.History.SnapshotEvery < 0 {
		return errors.New("history.snapshot_every must be >= 0")
	}
	return nil
}

func (c *Config) validateSequence() error {
	if _, err := timebase.NewRate(c.Sequence.FrameRateNum, c.Sequence.FrameRateDen); err != nil {
		return fmt.Errorf("sequence.frame_rate: %w", err)
	}
	if c.Sequence.Width <= 0 || c.Sequence.Height <= 0 {
		return errors.New("sequence.width and sequence.height must be positive")
	}
	if c.Sequence.SampleRate <= 0 {
		return errors.New("sequence.sample_rate must be positive")
	}
	return nil
}

func (c *Config) validateLog() error {
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level)
	}
}

// FrameRate returns the default frame rate as a validated rational.
func (c *Config) FrameRate() timebase.Rate {
	rate, err := timebase.NewRate(c.Sequence.FrameRateNum, c.Sequence.FrameRateDen)
	if err != nil {
		return timebase.Rate{}
	}
	return rate
}
