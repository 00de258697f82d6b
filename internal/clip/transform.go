package clip

import (
	"strings"
)

const (
	classTransform = "Transform"
	classScale     = "Scale"
)

// Transform applies a raw video filter chain to its source.
type Transform struct {
	node
	source  Clip
	options string
}

// Transform applies options, an ffmpeg video filter chain, to c. The source
// must carry video.
func (cx *Context) Transform(c Clip, options string) (*Transform, error) {
	if err := checkOperand(classTransform, "new", "clip", c); err != nil {
		return nil, err
	}
	if !c.Flags().Has(HasVideo) {
		return nil, constructionErr(classTransform, "new", ErrStructure, "%s has no video", c.Identity())
	}
	options = strings.TrimSpace(options)
	if options == "" {
		return nil, constructionErr(classTransform, "new", ErrValue, "options are empty")
	}
	flags, err := inherit([]Clip{c}, FilterOptions{})
	if err != nil {
		return nil, &ConstructionError{Class: classTransform, Op: "flags", Kind: err, Detail: err.Error()}
	}
	t := &Transform{source: c, options: options}
	t.node = node{
		class:    classTransform,
		data:     c.Identity() + ":" + options,
		flags:    flags,
		duration: c.Duration(),
		children: []Clip{c},
	}
	t.size, _ = c.Resolution()
	t.rate, _ = c.FrameRate()
	if err := cx.finish(&t.node); err != nil {
		return nil, err
	}
	return t, nil
}

// Source returns the transformed clip.
func (t *Transform) Source() Clip { return t.source }

// Options returns the filter chain.
func (t *Transform) Options() string { return t.options }

// ScaleOptions selects the target of a Scale.
//
// Either Width and Height, FromMaster, or Custom must be given. Custom is a
// raw ffmpeg scale expression and excludes every other field.
type ScaleOptions struct {
	Width      int
	Height     int
	FromMaster bool
	KeepAspect bool
	Center     bool
	Custom     string
}

// Scale resizes its source.
type Scale struct {
	node
	source Clip
	opts   ScaleOptions
}

// Scale resizes c. With FromMaster the target is the resolution of the first
// master leaf below c; without one the call fails with ErrStructure.
func (cx *Context) Scale(c Clip, opts ScaleOptions) (*Scale, error) {
	if err := checkOperand(classScale, "new", "clip", c); err != nil {
		return nil, err
	}
	if !c.Flags().Has(HasVideo) {
		return nil, constructionErr(classScale, "new", ErrStructure, "%s has no video", c.Identity())
	}
	opts.Custom = strings.TrimSpace(opts.Custom)

	var target Size
	var label string
	switch {
	case opts.Custom != "":
		if opts.Width != 0 || opts.Height != 0 || opts.FromMaster || opts.KeepAspect || opts.Center {
			return nil, constructionErr(classScale, "new", ErrType, "custom excludes all other scale options")
		}
		target, _ = c.Resolution()
		label = "custom=" + opts.Custom
	case opts.FromMaster:
		if opts.Width != 0 || opts.Height != 0 {
			return nil, constructionErr(classScale, "new", ErrValue, "from_master excludes width and height")
		}
		master, ok := Master(c)
		if !ok {
			return nil, constructionErr(classScale, "new", ErrStructure, "%s contains no master clip with a resolution", c.Identity())
		}
		target, _ = master.Resolution()
		label = "master=" + target.String()
	default:
		if opts.Width <= 0 || opts.Height <= 0 {
			return nil, constructionErr(classScale, "new", ErrValue, "width and height must be positive, got %dx%d", opts.Width, opts.Height)
		}
		target = Size{Width: opts.Width, Height: opts.Height}
		label = target.String()
	}
	if opts.KeepAspect {
		label += ",keep_aspect"
	}
	if opts.Center {
		label += ",center"
	}

	appendFlags := Flags(0)
	if !target.IsZero() {
		appendFlags = HasFixedResolution
	}
	flags, err := inherit([]Clip{c}, FilterOptions{Append: appendFlags})
	if err != nil {
		return nil, &ConstructionError{Class: classScale, Op: "flags", Kind: err, Detail: err.Error()}
	}
	s := &Scale{source: c, opts: opts}
	s.node = node{
		class:    classScale,
		data:     c.Identity() + ":" + label,
		flags:    flags,
		duration: c.Duration(),
		children: []Clip{c},
		size:     target,
	}
	s.rate, _ = c.FrameRate()
	if err := cx.finish(&s.node); err != nil {
		return nil, err
	}
	return s, nil
}

// Source returns the scaled clip.
func (s *Scale) Source() Clip { return s.source }

// Options returns the options the node was built with.
func (s *Scale) Options() ScaleOptions { return s.opts }
