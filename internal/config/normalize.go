package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeRender(); err != nil {
		return err
	}
	c.normalizeTools()
	return c.normalizeLogging()
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.CacheDir) == "" {
		c.Paths.CacheDir = defaultCacheDir()
	}
	if c.Paths.CacheDir, err = expandPath(c.Paths.CacheDir); err != nil {
		return fmt.Errorf("paths.cache_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeRender() error {
	// THREADS is read once here; nothing else consults the environment.
	if value, ok := os.LookupEnv("THREADS"); ok && strings.TrimSpace(value) != "" {
		threads, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("THREADS: %w", err)
		}
		c.Render.Threads = threads
	}
	c.Render.FPSHint = strings.TrimSpace(c.Render.FPSHint)
	if c.Render.FPSHint == "" {
		c.Render.FPSHint = defaultFPSHint
	}
	c.Render.Preset = strings.ToLower(strings.TrimSpace(c.Render.Preset))
	if c.Render.Preset == "" {
		c.Render.Preset = defaultPreset
	}
	c.Render.Tune = strings.ToLower(strings.TrimSpace(c.Render.Tune))
	c.Render.Profile = strings.ToLower(strings.TrimSpace(c.Render.Profile))
	if strings.TrimSpace(c.Render.IntermediateCodec) == "" {
		c.Render.IntermediateCodec = defaultIntermediateCodec
	}
	if strings.TrimSpace(c.Render.VideoCodec) == "" {
		c.Render.VideoCodec = defaultVideoCodec
	}
	if strings.TrimSpace(c.Render.AudioCodec) == "" {
		c.Render.AudioCodec = defaultAudioCodec
	}
	return nil
}

func (c *Config) normalizeTools() {
	c.Tools.FFmpeg = envOr("FFMPEG", c.Tools.FFmpeg, defaultFFmpeg)
	c.Tools.FFprobe = envOr("FFPROBE", c.Tools.FFprobe, defaultFFprobe)
	c.Tools.FFplay = envOr("FFPLAY", c.Tools.FFplay, defaultFFplay)
	if c.Tools.ProbeTimeout < 0 {
		c.Tools.ProbeTimeout = 0
	}
}

func (c *Config) normalizeLogging() error {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	if value, ok := os.LookupEnv("LOGLEVEL"); ok && strings.TrimSpace(value) != "" {
		c.Logging.Level = value
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if value, ok := os.LookupEnv("LOGFILE"); ok && strings.TrimSpace(value) != "" {
		c.Logging.File = value
	}
	if strings.TrimSpace(c.Logging.File) != "" {
		file, err := expandPath(c.Logging.File)
		if err != nil {
			return fmt.Errorf("logging.file: %w", err)
		}
		c.Logging.File = file
	}
	return nil
}

func envOr(key, current, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	if strings.TrimSpace(current) == "" {
		return fallback
	}
	return strings.TrimSpace(current)
}
