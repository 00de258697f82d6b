package clip

import (
	"strconv"
	"strings"
)

const classSlice = "Slice"

// Bound is a position in a clip, given either as a frame index or as a time
// offset in seconds.
type Bound struct {
	frame   int
	seconds float64
	byFrame bool
}

// Frame addresses frame n.
func Frame(n int) Bound { return Bound{frame: n, byFrame: true} }

// At addresses the time offset seconds.
func At(seconds float64) Bound { return Bound{seconds: seconds} }

func (b Bound) String() string {
	if b.byFrame {
		return "f" + strconv.Itoa(b.frame)
	}
	return formatSeconds(b.seconds)
}

// Range is a half-open interval [Start, End).
type Range struct {
	Start Bound
	End   Bound
}

// Frames returns the frame range [start, end).
func Frames(start, end int) Range { return Range{Start: Frame(start), End: Frame(end)} }

// Span returns the time range [start, end) in seconds.
func Span(start, end float64) Range { return Range{Start: At(start), End: At(end)} }

func (r Range) String() string { return r.Start.String() + "-" + r.End.String() }

// Interval is a resolved Range in seconds.
type Interval struct {
	Start float64
	End   float64
}

// Length returns End-Start.
func (i Interval) Length() float64 { return i.End - i.Start }

// Slice plays one or more sub-ranges of its source, in the order given.
type Slice struct {
	node
	source    Clip
	ranges    []Range
	intervals []Interval
}

// Slice selects ranges of c. Every range must lie within [0, duration) of c
// and run forwards; frame bounds use the frame rate of c, or the context
// hint when c has none.
func (cx *Context) Slice(c Clip, ranges ...Range) (*Slice, error) {
	if err := checkOperand(classSlice, "new", "clip", c); err != nil {
		return nil, err
	}
	if len(ranges) == 0 {
		return nil, constructionErr(classSlice, "new", ErrValue, "at least one range is required")
	}
	rate, ok := c.FrameRate()
	if !ok {
		rate = cx.fpsHint
	}
	toSeconds := func(b Bound) float64 {
		if b.byFrame {
			return rate.Seconds(b.frame)
		}
		return b.seconds
	}

	duration := c.Duration()
	intervals := make([]Interval, 0, len(ranges))
	var total float64
	labels := make([]string, 0, len(ranges))
	for _, r := range ranges {
		start, end := toSeconds(r.Start), toSeconds(r.End)
		if start < 0 || start >= duration {
			return nil, constructionErr(classSlice, "new", ErrRange, "start %s outside [0, %s)", r.Start, formatSeconds(duration))
		}
		if end <= start {
			return nil, constructionErr(classSlice, "new", ErrRange, "range %s is empty or reversed", r)
		}
		if end > duration {
			return nil, constructionErr(classSlice, "new", ErrRange, "end %s beyond clip duration %s", r.End, formatSeconds(duration))
		}
		intervals = append(intervals, Interval{Start: start, End: end})
		total += end - start
		labels = append(labels, r.String())
	}

	flags, err := inherit([]Clip{c}, FilterOptions{})
	if err != nil {
		return nil, &ConstructionError{Class: classSlice, Op: "flags", Kind: err, Detail: err.Error()}
	}
	s := &Slice{source: c, ranges: append([]Range(nil), ranges...), intervals: intervals}
	s.node = node{
		class:    classSlice,
		data:     c.Identity() + "↹[" + strings.Join(labels, ",") + "]",
		flags:    flags,
		duration: total,
		children: []Clip{c},
	}
	s.size, _ = c.Resolution()
	s.rate, _ = c.FrameRate()
	if err := cx.finish(&s.node); err != nil {
		return nil, err
	}
	return s, nil
}

// Source returns the sliced clip.
func (s *Slice) Source() Clip { return s.source }

// Intervals returns the selected ranges in seconds.
func (s *Slice) Intervals() []Interval { return append([]Interval(nil), s.intervals...) }
