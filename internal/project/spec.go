package project

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// File is a parsed project file.
type File struct {
	Output string          `yaml:"output"`
	Root   string          `yaml:"root"`
	Clips  map[string]Spec `yaml:"clips"`

	// Dir is the base directory for relative paths.
	Dir string `yaml:"-"`
}

// Spec describes one clip. Exactly one kind key is set, or the spec is a
// bare scalar naming another clip.
type Spec struct {
	Ref string `yaml:"-"`

	File      string   `yaml:"file"`
	Image     string   `yaml:"image"`
	Images    []string `yaml:"images"`
	Color     string   `yaml:"color"`
	TestSrc   bool     `yaml:"testsrc"`
	Sequence  []Spec   `yaml:"sequence"`
	Repeat    *Spec    `yaml:"repeat"`
	Slice     *Spec    `yaml:"slice"`
	Scale     *Spec    `yaml:"scale"`
	Transform *Spec    `yaml:"transform"`
	Overlay   *Spec    `yaml:"overlay"`
	Crossfade []Spec   `yaml:"crossfade"`

	// file
	Master      bool `yaml:"master"`
	VideoStream int  `yaml:"video_stream"`
	AudioStream int  `yaml:"audio_stream"`
	NoVideo     bool `yaml:"no_video"`
	NoAudio     bool `yaml:"no_audio"`

	// image, images, color, testsrc
	Duration float64 `yaml:"duration"`
	Width    int     `yaml:"width"`
	Height   int     `yaml:"height"`

	// sequence
	Flatten *bool    `yaml:"flatten"`
	Include []string `yaml:"include"`
	Exclude []string `yaml:"exclude"`
	Append  []string `yaml:"append"`

	// repeat
	Count any `yaml:"count"`

	// slice: either an ordered ranges list, or seconds or frames alone
	Ranges  []SliceRange   `yaml:"ranges"`
	Seconds []SecondsRange `yaml:"seconds"`
	Frames  []FrameRange   `yaml:"frames"`

	// scale
	FromMaster bool   `yaml:"from_master"`
	KeepAspect bool   `yaml:"keep_aspect"`
	Center     bool   `yaml:"center"`
	Custom     string `yaml:"custom"`

	// transform
	Options string `yaml:"options"`

	// overlay
	Top *Spec  `yaml:"top"`
	X   string `yaml:"x"`
	Y   string `yaml:"y"`

	// crossfade
	Fade       float64 `yaml:"fade"`
	Transition string  `yaml:"transition"`
}

// SliceRange is one [Start, End) slice range. Unit is "seconds" (the
// default) or "frames"; frame bounds must be whole numbers.
type SliceRange struct {
	Start float64 `yaml:"start"`
	End   float64 `yaml:"end"`
	Unit  string  `yaml:"unit"`
}

// SecondsRange is a [Start, End) slice range in seconds.
type SecondsRange struct {
	Start float64 `yaml:"start"`
	End   float64 `yaml:"end"`
}

// FrameRange is a [Start, End) slice range in frames.
type FrameRange struct {
	Start int `yaml:"start"`
	End   int `yaml:"end"`
}

// UnmarshalYAML accepts a clip name or a clip mapping.
func (s *Spec) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.ScalarNode:
		name := strings.TrimSpace(n.Value)
		if name == "" {
			return fmt.Errorf("line %d: empty clip reference", n.Line)
		}
		*s = Spec{Ref: name}
		return nil
	case yaml.MappingNode:
		type plain Spec
		var tmp plain
		if err := n.Decode(&tmp); err != nil {
			return err
		}
		*s = Spec(tmp)
		return nil
	default:
		return fmt.Errorf("line %d: clip must be a name or a mapping", n.Line)
	}
}

// Kinds lists the clip kinds set on s.
func (s Spec) Kinds() []string {
	var kinds []string
	add := func(set bool, kind string) {
		if set {
			kinds = append(kinds, kind)
		}
	}
	add(s.Ref != "", "ref")
	add(s.File != "", "file")
	add(s.Image != "", "image")
	add(len(s.Images) > 0, "images")
	add(s.Color != "", "color")
	add(s.TestSrc, "testsrc")
	add(len(s.Sequence) > 0, "sequence")
	add(s.Repeat != nil, "repeat")
	add(s.Slice != nil, "slice")
	add(s.Scale != nil, "scale")
	add(s.Transform != nil, "transform")
	add(s.Overlay != nil, "overlay")
	add(len(s.Crossfade) > 0, "crossfade")
	return kinds
}
