package preflight

import (
	"context"

	"github.com/sausix/scriptycut/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// Encoders reports whether ffmpeg was built with an encoder.
type Encoders interface {
	RequireEncoder(ctx context.Context, codec string) error
}

// RunAll executes the directory checks and, when enc is set, the encoder
// checks for the configured codecs.
func RunAll(ctx context.Context, cfg *config.Config, enc Encoders) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Cache directory", cfg.Paths.CacheDir),
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
	}
	if enc == nil {
		return results
	}
	results = append(results, CheckEncoder(ctx, enc, "Intermediate codec", cfg.Render.IntermediateCodec))
	results = append(results, CheckEncoder(ctx, enc, "Video encoder", cfg.Render.VideoCodec))
	if cfg.Render.AudioCodec != "" && cfg.Render.AudioCodec != "copy" {
		results = append(results, CheckEncoder(ctx, enc, "Audio encoder", cfg.Render.AudioCodec))
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}
