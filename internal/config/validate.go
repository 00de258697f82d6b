package config

import (
	"errors"
	"fmt"

	"github.com/sausix/scriptycut/internal/formats"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateCache(); err != nil {
		return err
	}
	if err := c.validateRender(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateCache() error {
	if c.Paths.CacheDir == "" {
		return errors.New("paths.cache_dir must be set")
	}
	if c.Cache.FormatVersion < 1 {
		return errors.New("cache.format_version must be at least 1")
	}
	return nil
}

func (c *Config) validateRender() error {
	if _, err := formats.ParseRate(c.Render.FPSHint); err != nil {
		return fmt.Errorf("render.fps_hint: %w", err)
	}
	if c.Render.Threads < 1 {
		return errors.New("render.threads must be positive (check THREADS)")
	}
	if c.Render.Width <= 0 || c.Render.Height <= 0 {
		return errors.New("render.width and render.height must be positive")
	}
	if c.Render.SampleRate <= 0 {
		return errors.New("render.sample_rate must be positive")
	}
	if c.Render.JobTimeout < 0 {
		return errors.New("render.job_timeout must be zero or positive")
	}
	if c.Render.CRF < 0 || c.Render.CRF > 51 {
		return errors.New("render.crf must be between 0 and 51")
	}
	if _, err := formats.ParsePreset(c.Render.Preset); err != nil {
		return fmt.Errorf("render.preset: %w", err)
	}
	if _, err := formats.ParseTune(c.Render.Tune); err != nil {
		return fmt.Errorf("render.tune: %w", err)
	}
	if _, err := formats.ParseProfile(c.Render.Profile); err != nil {
		return fmt.Errorf("render.profile: %w", err)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fmt.Errorf("logging.level %q must be one of debug, info, warn, error", c.Logging.Level)
	}
}

// FPSHint returns the parsed default frame-rate hint.
func (c *Config) FPSHint() formats.Rate {
	rate, err := formats.ParseRate(c.Render.FPSHint)
	if err != nil {
		return formats.Rate{Num: 30, Den: 1}
	}
	return rate
}

// H264 returns the final-output encoder settings.
func (c *Config) H264() formats.H264 {
	preset, _ := formats.ParsePreset(c.Render.Preset)
	tune, _ := formats.ParseTune(c.Render.Tune)
	profile, _ := formats.ParseProfile(c.Render.Profile)
	return formats.H264{Encoder: c.Render.VideoCodec, CRF: c.Render.CRF, Preset: preset, Tune: tune, Profile: profile}
}
