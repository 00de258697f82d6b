package formats

import (
	"fmt"
	"slices"
	"strings"
)

// Preset is an x264 speed preset.
type Preset string

const (
	PresetUltrafast Preset = "ultrafast"
	PresetSuperfast Preset = "superfast"
	PresetVeryfast  Preset = "veryfast"
	PresetFaster    Preset = "faster"
	PresetFast      Preset = "fast"
	PresetMedium    Preset = "medium"
	PresetSlow      Preset = "slow"
	PresetSlower    Preset = "slower"
	PresetVeryslow  Preset = "veryslow"
)

// Tune is an x264 content tuning.
type Tune string

const (
	TuneFilm        Tune = "film"
	TuneAnimation   Tune = "animation"
	TuneGrain       Tune = "grain"
	TuneStillImage  Tune = "stillimage"
	TuneFastDecode  Tune = "fastdecode"
	TuneZeroLatency Tune = "zerolatency"
)

// Profile is an H.264 profile.
type Profile string

const (
	ProfileBaseline Profile = "baseline"
	ProfileMain     Profile = "main"
	ProfileHigh     Profile = "high"
	ProfileHigh10   Profile = "high10"
	ProfileHigh422  Profile = "high422"
	ProfileHigh444  Profile = "high444"
)

var (
	presets  = []Preset{PresetUltrafast, PresetSuperfast, PresetVeryfast, PresetFaster, PresetFast, PresetMedium, PresetSlow, PresetSlower, PresetVeryslow}
	tunes    = []Tune{TuneFilm, TuneAnimation, TuneGrain, TuneStillImage, TuneFastDecode, TuneZeroLatency}
	profiles = []Profile{ProfileBaseline, ProfileMain, ProfileHigh, ProfileHigh10, ProfileHigh422, ProfileHigh444}
)

// ParsePreset validates an x264 preset name.
func ParsePreset(value string) (Preset, error) {
	p := Preset(strings.ToLower(strings.TrimSpace(value)))
	if !slices.Contains(presets, p) {
		return "", fmt.Errorf("unknown x264 preset %q", value)
	}
	return p, nil
}

// ParseTune validates an x264 tune name. An empty value means no tuning.
func ParseTune(value string) (Tune, error) {
	t := Tune(strings.ToLower(strings.TrimSpace(value)))
	if t == "" {
		return "", nil
	}
	if !slices.Contains(tunes, t) {
		return "", fmt.Errorf("unknown x264 tune %q", value)
	}
	return t, nil
}

// ParseProfile validates an H.264 profile name. An empty value leaves the encoder default.
func ParseProfile(value string) (Profile, error) {
	p := Profile(strings.ToLower(strings.TrimSpace(value)))
	if p == "" {
		return "", nil
	}
	if !slices.Contains(profiles, p) {
		return "", fmt.Errorf("unknown h264 profile %q", value)
	}
	return p, nil
}

// H264 holds final-output encoder settings. Encoder defaults to libx264.
type H264 struct {
	Encoder string
	CRF     int
	Preset  Preset
	Tune    Tune
	Profile Profile
	PixFmt  string
}

// EncoderName returns the ffmpeg encoder the settings target.
func (h H264) EncoderName() string {
	if h.Encoder == "" {
		return "libx264"
	}
	return h.Encoder
}

// Args renders the encoder options. yuv420p is the default pixel format
// because most players outside ffmpeg cannot decode 4:2:2 or 4:4:4.
func (h H264) Args() []string {
	preset := h.Preset
	if preset == "" {
		preset = PresetMedium
	}
	pixFmt := h.PixFmt
	if pixFmt == "" {
		pixFmt = "yuv420p"
	}
	args := []string{"-c:v", h.EncoderName(), "-preset", string(preset), "-crf", fmt.Sprint(h.CRF)}
	if h.Tune != "" {
		args = append(args, "-tune", string(h.Tune))
	}
	if h.Profile != "" {
		args = append(args, "-profile:v", string(h.Profile))
	}
	return append(args, "-pix_fmt", pixFmt)
}
