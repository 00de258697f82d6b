package clip

import (
	"math"
	"strings"
)

const (
	classOverlay   = "Overlay"
	classCrossfade = "Crossfade"
)

// OverlayOptions positions the top clip. X and Y are ffmpeg overlay
// expressions and default to 0.
type OverlayOptions struct {
	X string
	Y string
}

func (o OverlayOptions) normalized() OverlayOptions {
	if o.X = strings.TrimSpace(o.X); o.X == "" {
		o.X = "0"
	}
	if o.Y = strings.TrimSpace(o.Y); o.Y == "" {
		o.Y = "0"
	}
	return o
}

// Overlay draws top over bottom. It lasts as long as the longer input.
type Overlay struct {
	node
	bottom Clip
	top    Clip
	opts   OverlayOptions
}

// Overlay composes top over bottom. Both must carry video.
func (cx *Context) Overlay(bottom, top Clip, opts OverlayOptions) (*Overlay, error) {
	if err := checkOperand(classOverlay, "new", "bottom", bottom); err != nil {
		return nil, err
	}
	if err := checkOperand(classOverlay, "new", "top", top); err != nil {
		return nil, err
	}
	if !bottom.Flags().Has(HasVideo) {
		return nil, constructionErr(classOverlay, "new", ErrStructure, "bottom %s has no video", bottom.Identity())
	}
	if !top.Flags().Has(HasVideo) {
		return nil, constructionErr(classOverlay, "new", ErrStructure, "top %s has no video", top.Identity())
	}
	opts = opts.normalized()
	flags, err := inherit([]Clip{bottom, top}, FilterOptions{})
	if err != nil {
		return nil, &ConstructionError{Class: classOverlay, Op: "flags", Kind: err, Detail: err.Error()}
	}
	o := &Overlay{bottom: bottom, top: top, opts: opts}
	o.node = node{
		class:    classOverlay,
		data:     bottom.Identity() + "↙↗" + top.Identity() + ":x=" + opts.X + ":y=" + opts.Y,
		flags:    flags,
		duration: math.Max(bottom.Duration(), top.Duration()),
		children: []Clip{bottom, top},
	}
	o.size, _ = bottom.Resolution()
	o.rate, _ = bottom.FrameRate()
	if err := cx.finish(&o.node); err != nil {
		return nil, err
	}
	return o, nil
}

// Bottom returns the background clip.
func (o *Overlay) Bottom() Clip { return o.bottom }

// Top returns the foreground clip.
func (o *Overlay) Top() Clip { return o.top }

// Options returns the overlay position.
func (o *Overlay) Options() OverlayOptions { return o.opts }

// CrossfadeOptions selects the transition. Transition names an ffmpeg xfade
// transition and defaults to "fade".
type CrossfadeOptions struct {
	Transition string
}

// Crossfade blends the end of First into the start of Second.
type Crossfade struct {
	node
	first  Clip
	second Clip
	fade   float64
	opts   CrossfadeOptions
}

// Crossfade overlaps a and b by fade seconds. Both must carry video and fade
// may not exceed either duration. The result lasts a+b-fade seconds.
func (cx *Context) Crossfade(a, b Clip, fade float64, opts CrossfadeOptions) (*Crossfade, error) {
	if err := checkOperand(classCrossfade, "new", "first clip", a); err != nil {
		return nil, err
	}
	if err := checkOperand(classCrossfade, "new", "second clip", b); err != nil {
		return nil, err
	}
	if !a.Flags().Has(HasVideo) {
		return nil, constructionErr(classCrossfade, "new", ErrStructure, "first clip %s has no video", a.Identity())
	}
	if !b.Flags().Has(HasVideo) {
		return nil, constructionErr(classCrossfade, "new", ErrStructure, "second clip %s has no video", b.Identity())
	}
	if fade <= 0 || math.IsNaN(fade) {
		return nil, constructionErr(classCrossfade, "new", ErrValue, "fade duration must be positive, got %v", fade)
	}
	if fade > a.Duration() {
		return nil, constructionErr(classCrossfade, "new", ErrRange, "fade %s longer than first clip (%s)", formatSeconds(fade), formatSeconds(a.Duration()))
	}
	if fade > b.Duration() {
		return nil, constructionErr(classCrossfade, "new", ErrRange, "fade %s longer than second clip (%s)", formatSeconds(fade), formatSeconds(b.Duration()))
	}
	if opts.Transition = strings.TrimSpace(opts.Transition); opts.Transition == "" {
		opts.Transition = "fade"
	}
	flags, err := inherit([]Clip{a, b}, FilterOptions{})
	if err != nil {
		return nil, &ConstructionError{Class: classCrossfade, Op: "flags", Kind: err, Detail: err.Error()}
	}
	x := &Crossfade{first: a, second: b, fade: fade, opts: opts}
	x.node = node{
		class:    classCrossfade,
		data:     formatSeconds(fade) + ":" + opts.Transition + ":" + a.Identity() + "->" + b.Identity(),
		flags:    flags,
		duration: a.Duration() + b.Duration() - fade,
		children: []Clip{a, b},
	}
	x.size, _ = a.Resolution()
	x.rate, _ = a.FrameRate()
	if err := cx.finish(&x.node); err != nil {
		return nil, err
	}
	return x, nil
}

// First returns the outgoing clip.
func (x *Crossfade) First() Clip { return x.first }

// Second returns the incoming clip.
func (x *Crossfade) Second() Clip { return x.second }

// Fade returns the overlap in seconds.
func (x *Crossfade) Fade() float64 { return x.fade }

// Options returns the transition options.
func (x *Crossfade) Options() CrossfadeOptions { return x.opts }
