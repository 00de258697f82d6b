// Package logging assembles structured slog loggers and formatting helpers.
//
// It owns the console and JSON handlers, level and output plumbing, and
// context helpers that tag lines with run IDs, node cache keys, and job IDs.
// A no-op logger is provided for tests and for wiring that cannot fail.
package logging
