package render

import (
	"strings"
	"time"

	"github.com/sausix/scriptycut/internal/clip"
	"github.com/sausix/scriptycut/internal/config"
	"github.com/sausix/scriptycut/internal/formats"
)

const (
	intermediateAudioCodec = "pcm_s16le"
	intermediateChannels   = "2"
)

// Settings holds the encoder parameters used for intermediates and the final output.
type Settings struct {
	// Size and Rate apply to nodes that do not fix their own resolution or frame rate.
	Size       clip.Size
	Rate       formats.Rate
	SampleRate int

	IntermediateCodec string
	H264              formats.H264
	AudioCodec        string
	AudioBitrate      string

	// JobTimeout bounds each ffmpeg job. Zero disables the limit.
	JobTimeout time.Duration
}

// SettingsFromConfig derives render settings from the loaded configuration.
func SettingsFromConfig(cfg *config.Config) Settings {
	if cfg == nil {
		return Settings{}.normalized()
	}
	return Settings{
		Size:              clip.Size{Width: cfg.Render.Width, Height: cfg.Render.Height},
		Rate:              cfg.FPSHint(),
		SampleRate:        cfg.Render.SampleRate,
		IntermediateCodec: cfg.Render.IntermediateCodec,
		H264:              cfg.H264(),
		AudioCodec:        cfg.Render.AudioCodec,
		AudioBitrate:      cfg.Render.AudioBitrate,
		JobTimeout:        time.Duration(cfg.Render.JobTimeout) * time.Second,
	}.normalized()
}

func (s Settings) normalized() Settings {
	if s.Size.IsZero() {
		s.Size = clip.Size{Width: 1920, Height: 1080}
	}
	if s.Rate.IsZero() {
		s.Rate = formats.Rate{Num: 30, Den: 1}
	}
	if s.SampleRate <= 0 {
		s.SampleRate = 48000
	}
	if strings.TrimSpace(s.IntermediateCodec) == "" {
		s.IntermediateCodec = "ffv1"
	}
	if strings.TrimSpace(s.AudioCodec) == "" {
		s.AudioCodec = "aac"
	}
	if s.JobTimeout < 0 {
		s.JobTimeout = 0
	}
	return s
}
