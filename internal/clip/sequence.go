package clip

import (
	"math"
	"strconv"
	"strings"

	"github.com/sausix/scriptycut/internal/formats"
)

const (
	classSequence = "Sequence"
	classRepeat   = "Repeat"
)

// Sequence plays its children one after another. Repeat builds a Sequence
// whose children are copies of a single clip.
type Sequence struct {
	node
	source Clip
	count  int
}

// SequenceOption configures NewSequence.
type SequenceOption func(*sequenceConfig)

type sequenceConfig struct {
	flatten bool
	filter  FilterOptions
}

// NoFlatten keeps nested sequences as single children.
func NoFlatten() SequenceOption {
	return func(c *sequenceConfig) { c.flatten = false }
}

// WithFlagFilter adjusts the inherited flags of the sequence.
func WithFlagFilter(opts FilterOptions) SequenceOption {
	return func(c *sequenceConfig) { c.filter = opts }
}

// NewSequence concatenates clips. Nested sequences are spliced into the
// result unless NoFlatten is given, so grouping never changes the result.
func (cx *Context) NewSequence(clips []Clip, opts ...SequenceOption) (*Sequence, error) {
	cfg := sequenceConfig{flatten: true}
	for _, opt := range opts {
		opt(&cfg)
	}
	if len(clips) == 0 {
		return nil, constructionErr(classSequence, "new", ErrValue, "a sequence needs at least one clip")
	}
	for i, c := range clips {
		if err := checkOperand(classSequence, "new", "operand "+strconv.Itoa(i), c); err != nil {
			return nil, err
		}
	}
	children := clips
	if cfg.flatten {
		children = flatten(clips)
	} else {
		children = append([]Clip(nil), clips...)
	}
	s := &Sequence{}
	if err := cx.buildSequence(s, classSequence, children, cfg.filter); err != nil {
		return nil, err
	}
	return s, nil
}

// Concat joins a and b into a sequence.
func (cx *Context) Concat(a, b Clip) (*Sequence, error) {
	if err := checkOperand(classSequence, "concat", "left operand", a); err != nil {
		return nil, err
	}
	if err := checkOperand(classSequence, "concat", "right operand", b); err != nil {
		return nil, err
	}
	return cx.NewSequence([]Clip{a, b})
}

// MaxRepeat is the largest count a Repeat node accepts.
const MaxRepeat = 100_000

// Repeat plays c count times.
func (cx *Context) Repeat(c Clip, count int) (*Sequence, error) {
	if err := checkOperand(classRepeat, "new", "clip", c); err != nil {
		return nil, err
	}
	if count < 1 {
		return nil, constructionErr(classRepeat, "new", ErrValue, "count must be >= 1, got %d", count)
	}
	if count > MaxRepeat {
		return nil, constructionErr(classRepeat, "new", ErrValue, "count %d exceeds %d", count, MaxRepeat)
	}
	copies := make([]Clip, 0, count)
	for range count {
		copies = append(copies, c)
	}
	s := &Sequence{source: c, count: count}
	if err := cx.buildSequence(s, classRepeat, flatten(copies), FilterOptions{}); err != nil {
		return nil, err
	}
	return s, nil
}

// RepeatValue is Repeat for counts of unknown type, as decoded from a
// project file. Anything but a whole number fails with ErrType.
func (cx *Context) RepeatValue(c Clip, count any) (*Sequence, error) {
	n, err := CountFromValue(count)
	if err != nil {
		return nil, err
	}
	return cx.Repeat(c, n)
}

// CountFromValue converts a decoded value into a repeat count within
// [1, MaxRepeat].
func CountFromValue(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return boundCount(float64(n), n)
	case int64:
		return boundCount(float64(n), n)
	case uint64:
		return boundCount(float64(n), n)
	case float64:
		if n != math.Trunc(n) {
			return 0, constructionErr(classRepeat, "count", ErrType, "count must be an integer, got %v", n)
		}
		return boundCount(n, n)
	default:
		return 0, constructionErr(classRepeat, "count", ErrType, "count must be an integer, got %T", v)
	}
}

// boundCount range-checks n before converting it, so oversized values never
// wrap around. shown is the value as decoded, for the error message.
func boundCount(n float64, shown any) (int, error) {
	if n < 1 {
		return 0, constructionErr(classRepeat, "count", ErrValue, "count must be >= 1, got %v", shown)
	}
	if n > MaxRepeat {
		return 0, constructionErr(classRepeat, "count", ErrValue, "count %v exceeds %d", shown, MaxRepeat)
	}
	return int(n), nil
}

func (cx *Context) buildSequence(s *Sequence, class string, children []Clip, filter FilterOptions) error {
	flags, err := inherit(children, FilterOptions{
		Include: filter.Include,
		Exclude: filter.Exclude,
		Append:  filter.Append | IsSequence,
	})
	if err != nil {
		return &ConstructionError{Class: class, Op: "flags", Kind: err, Detail: err.Error()}
	}
	var total float64
	for _, child := range children {
		total += child.Duration()
	}
	s.node = node{
		class:    class,
		flags:    flags,
		duration: total,
		children: children,
	}
	if flags.Has(HasVideo) {
		s.size = sequenceSize(cx, children)
		s.rate = firstRate(children)
	}
	if class == classRepeat {
		s.data = strconv.Itoa(s.count) + "×" + s.source.Identity()
	} else {
		ids := make([]string, len(children))
		for i, child := range children {
			ids[i] = child.Identity()
		}
		s.data = "⇻(" + strings.Join(ids, ", ") + ")"
	}
	return cx.finish(&s.node)
}

// Clips returns the sequence children in play order.
func (s *Sequence) Clips() []Clip { return s.Children() }

// Len returns the number of children.
func (s *Sequence) Len() int { return len(s.children) }

// Repeated reports the source clip and count of a Repeat node.
func (s *Sequence) Repeated() (Clip, int, bool) {
	if s.class != classRepeat {
		return nil, 0, false
	}
	return s.source, s.count, true
}

func flatten(clips []Clip) []Clip {
	out := make([]Clip, 0, len(clips))
	for _, c := range clips {
		if s, ok := c.(*Sequence); ok {
			out = append(out, flatten(s.children)...)
			continue
		}
		out = append(out, c)
	}
	return out
}

// sequenceSize picks the master's resolution, then the first child with a
// resolution, then the context default.
func sequenceSize(cx *Context, children []Clip) Size {
	for _, child := range children {
		if m, ok := Master(child); ok {
			size, _ := m.Resolution()
			return size
		}
	}
	for _, child := range children {
		if size, ok := child.Resolution(); ok {
			return size
		}
	}
	return cx.size
}

func firstRate(children []Clip) formats.Rate {
	for _, child := range children {
		if rate, ok := child.FrameRate(); ok {
			return rate
		}
	}
	return formats.Rate{}
}
