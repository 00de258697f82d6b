package fftools

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/sausix/scriptycut/internal/logging"
	"github.com/sausix/scriptycut/internal/runner"
	"github.com/sausix/scriptycut/internal/services"
)

const listingTimeout = 10 * time.Second

// Probe reports what an ffmpeg binary supports. Each listing is fetched at
// most once; later calls return the memoized result, including a failure.
type Probe struct {
	binary string
	runner *runner.Runner
	logger *slog.Logger

	versionOnce sync.Once
	version     string
	versionErr  error

	filtersOnce sync.Once
	filters     map[string]Filter
	filtersErr  error

	codecsOnce sync.Once
	codecs     map[string]Codec
	codecsErr  error

	pixOnce sync.Once
	pixFmts map[string]PixelFormat
	pixErr  error
}

// NewProbe constructs a probe for binary.
func NewProbe(binary string, r *runner.Runner, logger *slog.Logger) *Probe {
	if strings.TrimSpace(binary) == "" {
		binary = "ffmpeg"
	}
	if r == nil {
		r = runner.New(logger)
	}
	return &Probe{binary: binary, runner: r, logger: logging.NewComponentLogger(logger, "fftools")}
}

// Binary returns the ffmpeg executable being probed.
func (p *Probe) Binary() string { return p.binary }

// Version returns the tool's version string. It fails when the version call fails.
func (p *Probe) Version(ctx context.Context) (string, error) {
	p.versionOnce.Do(func() {
		out, err := p.listing(ctx, "-version")
		if err != nil {
			p.versionErr = err
			return
		}
		p.version = ParseVersion(out)
	})
	return p.version, p.versionErr
}

// Filters returns the available filters keyed by name.
func (p *Probe) Filters(ctx context.Context) (map[string]Filter, error) {
	p.filtersOnce.Do(func() {
		out, err := p.listing(ctx, "-filters")
		if err != nil {
			p.filtersErr = err
			return
		}
		var skipped []string
		p.filters, skipped = ParseFilters(out)
		p.logSkipped("filters", skipped)
	})
	return p.filters, p.filtersErr
}

// Codecs returns the available audio and video codecs keyed by name.
func (p *Probe) Codecs(ctx context.Context) (map[string]Codec, error) {
	p.codecsOnce.Do(func() {
		out, err := p.listing(ctx, "-codecs")
		if err != nil {
			p.codecsErr = err
			return
		}
		var skipped []string
		p.codecs, skipped = ParseCodecs(out)
		p.logSkipped("codecs", skipped)
	})
	return p.codecs, p.codecsErr
}

// PixelFormats returns the known pixel formats keyed by name.
func (p *Probe) PixelFormats(ctx context.Context) (map[string]PixelFormat, error) {
	p.pixOnce.Do(func() {
		out, err := p.listing(ctx, "-pix_fmts")
		if err != nil {
			p.pixErr = err
			return
		}
		p.pixFmts = ParsePixelFormats(out)
	})
	return p.pixFmts, p.pixErr
}

// RequireFilters returns an error naming every filter the binary lacks.
func (p *Probe) RequireFilters(ctx context.Context, names ...string) error {
	filters, err := p.Filters(ctx)
	if err != nil {
		return err
	}
	var missing []string
	for _, name := range names {
		if _, ok := filters[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return services.Wrap(services.ErrConfiguration, "fftools", "filters", fmt.Sprintf("%s lacks filters: %s", p.binary, strings.Join(missing, ", ")), nil)
	}
	return nil
}

// RequireEncoder returns an error unless codec can be encoded.
func (p *Probe) RequireEncoder(ctx context.Context, codec string) error {
	codecs, err := p.Codecs(ctx)
	if err != nil {
		return err
	}
	if c, ok := codecs[codec]; ok && c.Encode {
		return nil
	}
	// Encoder names such as libx264 are listed under their codec (h264).
	for _, c := range codecs {
		if c.Encode && slices.Contains(c.Encoders(), codec) {
			return nil
		}
	}
	return services.Wrap(services.ErrConfiguration, "fftools", "codecs", fmt.Sprintf("%s cannot encode %s", p.binary, codec), nil)
}

func (p *Probe) listing(ctx context.Context, flag string) (string, error) {
	var stdout bytes.Buffer
	h := p.runner.NewHandle(runner.Job{
		Command: []string{p.binary, "-hide_banner", "-v", "error", flag},
		Stdout:  &stdout,
		Timeout: listingTimeout,
	})
	res, err := h.Run(ctx)
	if err != nil {
		return "", err
	}
	if err := res.AsError(); err != nil {
		return "", services.Wrap(services.ErrExternalTool, "fftools", flag, p.binary+" call failed", err)
	}
	return stdout.String(), nil
}

func (p *Probe) logSkipped(listing string, skipped []string) {
	for _, line := range skipped {
		p.logger.Debug("unparsed listing line", logging.String("listing", listing), logging.String("line", line))
	}
}
