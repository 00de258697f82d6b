package formats

import (
	"fmt"
	"strconv"

	"github.com/sausix/scriptycut/internal/media/ffprobe"
)

// VideoFormat describes the video stream of a probed source.
type VideoFormat struct {
	Codec       string
	Profile     string
	TimeBase    string
	Width       int
	Height      int
	CodedWidth  int
	CodedHeight int
	PixFmt      string
	Rate        Rate
	Level       int
}

// AudioFormat describes the audio stream of a probed source.
type AudioFormat struct {
	Codec         string
	Profile       string
	TimeBase      string
	Channels      int
	ChannelLayout string
	SampleFmt     string
	SampleRate    int
}

// HasAlpha reports whether the pixel format carries an alpha plane.
func (v VideoFormat) HasAlpha() bool {
	return hasAlphaPixFmt(v.PixFmt)
}

// VideoFromStream converts a probed video stream.
func VideoFromStream(s ffprobe.Stream) (VideoFormat, error) {
	if s.CodecType != "video" {
		return VideoFormat{}, fmt.Errorf("stream %d is %q, not video", s.Index, s.CodecType)
	}
	v := VideoFormat{
		Codec:       s.CodecName,
		Profile:     s.Profile,
		TimeBase:    s.TimeBase,
		Width:       s.Width,
		Height:      s.Height,
		CodedWidth:  s.CodedWidth,
		CodedHeight: s.CodedHeight,
		PixFmt:      s.PixFmt,
		Level:       s.Level,
	}
	if s.RFrameRate != "" && s.RFrameRate != "0/0" {
		rate, err := ParseRate(s.RFrameRate)
		if err == nil {
			v.Rate = rate
		}
	}
	return v, nil
}

// AudioFromStream converts a probed audio stream.
func AudioFromStream(s ffprobe.Stream) (AudioFormat, error) {
	if s.CodecType != "audio" {
		return AudioFormat{}, fmt.Errorf("stream %d is %q, not audio", s.Index, s.CodecType)
	}
	a := AudioFormat{
		Codec:         s.CodecName,
		Profile:       s.Profile,
		TimeBase:      s.TimeBase,
		Channels:      s.Channels,
		ChannelLayout: s.ChannelLayout,
		SampleFmt:     s.SampleFmt,
	}
	if s.SampleRate != "" {
		if rate, err := strconv.Atoi(s.SampleRate); err == nil {
			a.SampleRate = rate
		}
	}
	return a, nil
}

func hasAlphaPixFmt(pixFmt string) bool {
	switch pixFmt {
	case "rgba", "bgra", "argb", "abgr", "ya8", "ya16be", "ya16le",
		"yuva420p", "yuva422p", "yuva444p", "yuva420p10le", "yuva444p10le",
		"rgba64be", "rgba64le", "gbrap", "gbrap10le", "gbrap12le", "gbrap16le", "pal8":
		return true
	}
	return false
}
