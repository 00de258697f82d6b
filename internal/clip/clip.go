package clip

import (
	"fmt"
	"iter"
	"reflect"
	"strconv"

	"golang.org/x/text/unicode/norm"

	"github.com/sausix/scriptycut/internal/cache"
	"github.com/sausix/scriptycut/internal/formats"
)

// Size is a video resolution in pixels.
type Size struct {
	Width  int
	Height int
}

// IsZero reports whether the size is unset.
func (s Size) IsZero() bool { return s.Width <= 0 || s.Height <= 0 }

func (s Size) String() string { return fmt.Sprintf("%dx%d", s.Width, s.Height) }

// Clip is implemented by the node types of this package only: Sequence,
// Slice, Transform, Scale, Overlay, Crossfade, File, Image, ImageSequence and
// Generator.
type Clip interface {
	// Class names the node kind. It is the first component of the cache key.
	Class() string
	// Identity is the canonical representation derived from construction
	// arguments, in the form <Class[AV]:data>.
	Identity() string
	Flags() Flags
	// Duration in seconds.
	Duration() float64
	Resolution() (Size, bool)
	FrameRate() (formats.Rate, bool)
	// Children are the direct inputs of the node in play order.
	Children() []Clip
	// Entry is the cache entry resolved at construction.
	Entry() cache.Entry

	base() *node
}

// node carries the state shared by all clip kinds. It is filled once by the
// constructor and never changed afterwards.
type node struct {
	class    string
	data     string
	identity string
	flags    Flags
	duration float64
	size     Size
	rate     formats.Rate
	children []Clip
	entry    cache.Entry
}

func (n *node) Class() string     { return n.class }
func (n *node) Identity() string  { return n.identity }
func (n *node) Flags() Flags      { return n.flags }
func (n *node) Duration() float64 { return n.duration }
func (n *node) Children() []Clip  { return append([]Clip(nil), n.children...) }
func (n *node) Entry() cache.Entry {
	return n.entry
}

func (n *node) Resolution() (Size, bool) { return n.size, !n.size.IsZero() }

func (n *node) FrameRate() (formats.Rate, bool) { return n.rate, !n.rate.IsZero() }

func (n *node) base() *node { return n }

func (n *node) String() string { return n.identity }

// avMarker is the stream tag embedded in identities.
func avMarker(f Flags) string {
	switch {
	case f.Has(HasVideo | HasAudio):
		return ""
	case f.Has(HasVideo):
		return "[V]"
	case f.Has(HasAudio):
		return "[A]"
	default:
		return "[?]"
	}
}

func formatIdentity(class string, flags Flags, data string) string {
	return norm.NFC.String("<" + class + avMarker(flags) + ":" + data + ">")
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64) + "s"
}

// PlayOrder yields the leaves of c in playback order. Sequences are expanded
// recursively and never yielded themselves; any other node yields only
// itself. A repeated child is yielded once per repetition.
func PlayOrder(c Clip) iter.Seq[Clip] {
	return func(yield func(Clip) bool) {
		playOrder(c, yield)
	}
}

func playOrder(c Clip, yield func(Clip) bool) bool {
	if s, ok := c.(*Sequence); ok {
		for _, child := range s.children {
			if !playOrder(child, yield) {
				return false
			}
		}
		return true
	}
	return yield(c)
}

// Dependencies yields every node reachable from c, each exactly once, with
// every node's inputs before the node itself. Nodes with equal class and
// identity are interchangeable and are yielded once.
func Dependencies(c Clip) iter.Seq[Clip] {
	return func(yield func(Clip) bool) {
		seen := make(map[string]struct{})
		dependencies(c, seen, yield)
	}
}

func dependencies(c Clip, seen map[string]struct{}, yield func(Clip) bool) bool {
	key := c.Class() + "\x00" + c.Identity()
	if _, ok := seen[key]; ok {
		return true
	}
	seen[key] = struct{}{}
	for _, child := range c.base().children {
		if !dependencies(child, seen, yield) {
			return false
		}
	}
	return yield(c)
}

// Leaves yields the nodes without inputs below c, depth first, left to right.
func Leaves(c Clip) iter.Seq[Clip] {
	return func(yield func(Clip) bool) {
		leaves(c, yield)
	}
}

func leaves(c Clip, yield func(Clip) bool) bool {
	children := c.base().children
	if len(children) == 0 {
		return yield(c)
	}
	for _, child := range children {
		if !leaves(child, yield) {
			return false
		}
	}
	return true
}

// Master returns the first leaf below c that is flagged as master and
// reports a resolution.
func Master(c Clip) (Clip, bool) {
	if !c.Flags().Has(ContainsMaster) {
		return nil, false
	}
	for leaf := range Leaves(c) {
		if !leaf.Flags().Has(IsMaster) {
			continue
		}
		if _, ok := leaf.Resolution(); ok {
			return leaf, true
		}
	}
	return nil, false
}

// inherit derives a composite node's flags from its children. Master
// containment is recomputed from the leaves' intrinsic master flag.
func inherit(children []Clip, opts FilterOptions) (Flags, error) {
	sets := make([]Flags, 0, len(children)+1)
	master := false
	for _, child := range children {
		sets = append(sets, child.Flags()&^(IsMaster|ContainsMaster))
		if !master {
			for leaf := range Leaves(child) {
				if leaf.Flags().Has(IsMaster) {
					master = true
					break
				}
			}
		}
	}
	if master {
		sets = append(sets, ContainsMaster)
	}
	return Filter(sets, opts)
}

func checkOperand(class, op, name string, c Clip) error {
	if c == nil {
		return constructionErr(class, op, ErrType, "%s is not a clip", name)
	}
	if v := reflect.ValueOf(c); v.Kind() == reflect.Pointer && v.IsNil() {
		return constructionErr(class, op, ErrType, "%s is a nil %T", name, c)
	}
	return nil
}
