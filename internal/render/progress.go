package render

import (
	"bytes"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/sausix/scriptycut/internal/logging"
)

// progressWriter consumes ffmpeg's -progress key=value stream and logs one
// line per sampled percentage bucket.
type progressWriter struct {
	logger   *slog.Logger
	total    float64
	sampler  *logging.ProgressSampler
	mu       sync.Mutex
	buf      []byte
	position float64
	ended    bool
}

func newProgressWriter(logger *slog.Logger, totalSeconds float64) *progressWriter {
	return &progressWriter{
		logger:  logger,
		total:   totalSeconds,
		sampler: logging.NewProgressSampler(25),
	}
}

func (w *progressWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf = append(w.buf, p...)
	for {
		idx := bytes.IndexByte(w.buf, '\n')
		if idx < 0 {
			break
		}
		line := string(w.buf[:idx])
		w.buf = w.buf[idx+1:]
		w.handle(line)
	}
	return len(p), nil
}

func (w *progressWriter) handle(line string) {
	key, value, ok := parseProgressLine(line)
	if !ok {
		return
	}
	switch key {
	case "out_time_us", "out_time_ms":
		// Both keys carry microseconds.
		us, err := strconv.ParseInt(value, 10, 64)
		if err != nil || us < 0 {
			return
		}
		w.position = float64(us) / 1e6
		percent := w.percent()
		if w.sampler.ShouldLog(percent) {
			w.logger.Debug("render progress",
				logging.Float64("percent", percent),
				logging.Float64("position_seconds", w.position),
			)
		}
	case "progress":
		if value == "end" {
			w.ended = true
		}
	}
}

func (w *progressWriter) percent() float64 {
	if w.total <= 0 {
		return -1
	}
	return min(100, w.position/w.total*100)
}

// Position returns the last reported output time in seconds and whether
// ffmpeg announced the end of the stream.
func (w *progressWriter) Position() (float64, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.position, w.ended
}

func parseProgressLine(line string) (string, string, bool) {
	key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
	if !ok {
		return "", "", false
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return "", "", false
	}
	return key, strings.TrimSpace(value), true
}
