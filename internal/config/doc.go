// Package config loads, normalizes, and validates scriptycut configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks: FFMPEG,
// FFPROBE and FFPLAY name the tool binaries, THREADS sizes the worker pool,
// LOGLEVEL and LOGFILE adjust logging. The environment is read once, at load.
//
// Always obtain settings through this package so downstream code receives
// expanded paths, parsed frame rates, and clear validation errors.
package config
