// Package fftools wraps the ffmpeg command line tools.
//
// Probe runs "ffmpeg -version", "-filters", "-codecs" and "-pix_fmts" at
// most once each and exposes the parsed listings so the renderer can check
// that a filter or encoder exists before it schedules a job. The parsers are
// pure functions over the tools' text output.
//
// Binary names come from configuration, where the FFMPEG, FFPROBE and
// FFPLAY environment variables take precedence.
package fftools
