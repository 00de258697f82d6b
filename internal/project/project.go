package project

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sausix/scriptycut/internal/clip"
	"github.com/sausix/scriptycut/internal/services"
)

var (
	// ErrProject reports a malformed project file.
	ErrProject = fmt.Errorf("%w: invalid project", services.ErrValidation)
	// ErrCycle reports clips that reference each other.
	ErrCycle = fmt.Errorf("%w: clip reference cycle", ErrProject)
)

// Load reads and parses the project file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read project file %q: %w", path, err)
	}
	dir := filepath.Dir(path)
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	f, err := Parse(data, dir)
	if err != nil {
		return nil, fmt.Errorf("parse project file %q: %w", path, err)
	}
	return f, nil
}

// Parse decodes a project. Relative paths resolve against dir.
func Parse(data []byte, dir string) (*File, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var f File
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProject, err)
	}
	f.Dir = dir
	f.Root = strings.TrimSpace(f.Root)
	f.Output = strings.TrimSpace(f.Output)
	if len(f.Clips) == 0 {
		return nil, fmt.Errorf("%w: no clips defined", ErrProject)
	}
	if _, err := f.RootName(); err != nil {
		return nil, err
	}
	return &f, nil
}

// RootName returns the name of the clip to render. Without an explicit root
// a lone clip, or one named "main", is used.
func (f *File) RootName() (string, error) {
	if f.Root != "" {
		if _, ok := f.Clips[f.Root]; !ok {
			return "", fmt.Errorf("%w: root %q is not defined", ErrProject, f.Root)
		}
		return f.Root, nil
	}
	if len(f.Clips) == 1 {
		for name := range f.Clips {
			return name, nil
		}
	}
	if _, ok := f.Clips["main"]; ok {
		return "main", nil
	}
	return "", fmt.Errorf("%w: root is not set and no clip is named main", ErrProject)
}

// OutputPath returns the configured output resolved against the project directory.
func (f *File) OutputPath() string {
	if f.Output == "" {
		return ""
	}
	return f.resolve(f.Output)
}

// Names returns the defined clip names in sorted order.
func (f *File) Names() []string {
	names := make([]string, 0, len(f.Clips))
	for name := range f.Clips {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (f *File) resolve(path string) string {
	path = strings.TrimSpace(path)
	if path == "" || filepath.IsAbs(path) || f.Dir == "" {
		return path
	}
	return filepath.Join(f.Dir, path)
}

// Graph is a built project.
type Graph struct {
	Root     clip.Clip
	RootName string
	// Named holds every built clip: defined clips under their own names,
	// inline clips under generated names such as "sequence1".
	Named map[string]clip.Clip
}

// Build constructs every clip reachable from the root.
func Build(ctx context.Context, cx *clip.Context, f *File) (*Graph, error) {
	rootName, err := f.RootName()
	if err != nil {
		return nil, err
	}
	b := &builder{
		cx:       cx,
		file:     f,
		built:    make(map[string]clip.Clip),
		visiting: make(map[string]bool),
		named:    make(map[string]clip.Clip),
	}
	root, err := b.reference(ctx, rootName)
	if err != nil {
		return nil, err
	}
	return &Graph{Root: root, RootName: rootName, Named: b.named}, nil
}

type builder struct {
	cx       *clip.Context
	file     *File
	built    map[string]clip.Clip
	visiting map[string]bool
	stack    []string
	named    map[string]clip.Clip
}

func (b *builder) reference(ctx context.Context, name string) (clip.Clip, error) {
	if c, ok := b.built[name]; ok {
		return c, nil
	}
	spec, ok := b.file.Clips[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown clip %q", ErrProject, name)
	}
	if b.visiting[name] {
		idx := slices.Index(b.stack, name)
		cycle := append(append([]string{}, b.stack[idx:]...), name)
		return nil, fmt.Errorf("%w: %s", ErrCycle, strings.Join(cycle, " -> "))
	}
	b.visiting[name] = true
	b.stack = append(b.stack, name)
	c, err := b.build(ctx, spec, name)
	b.stack = b.stack[:len(b.stack)-1]
	delete(b.visiting, name)
	if err != nil {
		return nil, err
	}
	b.built[name] = c
	b.named[name] = c
	return c, nil
}

// operand builds a nested spec. Inline clips are registered under a generated name.
func (b *builder) operand(ctx context.Context, s Spec, where string) (clip.Clip, error) {
	if s.Ref != "" {
		return b.reference(ctx, s.Ref)
	}
	c, err := b.build(ctx, s, where)
	if err != nil {
		return nil, err
	}
	kinds := s.Kinds()
	b.named[b.cx.Name(kinds[0])] = c
	return c, nil
}

func (b *builder) build(ctx context.Context, s Spec, where string) (clip.Clip, error) {
	kinds := s.Kinds()
	switch len(kinds) {
	case 0:
		return nil, fmt.Errorf("%w: %s: no clip kind given", ErrProject, where)
	case 1:
	default:
		return nil, fmt.Errorf("%w: %s: exactly one clip kind expected, got %s", ErrProject, where, strings.Join(kinds, ", "))
	}
	kind := kinds[0]
	inner := where + "." + kind

	var (
		c   clip.Clip
		err error
	)
	switch kind {
	case "ref":
		return b.reference(ctx, s.Ref)
	case "file":
		c, err = b.cx.File(ctx, b.file.resolve(s.File), clip.FileOptions{
			VideoStream:  s.VideoStream,
			AudioStream:  s.AudioStream,
			DisableVideo: s.NoVideo,
			DisableAudio: s.NoAudio,
			Master:       s.Master,
		})
	case "image":
		c, err = b.cx.Image(b.file.resolve(s.Image), s.Duration)
	case "images":
		paths := make([]string, len(s.Images))
		for i, p := range s.Images {
			paths[i] = b.file.resolve(p)
		}
		c, err = b.cx.ImageSequence(paths, s.Duration)
	case "color":
		c, err = b.cx.Color(s.Duration, b.size(s), s.Color)
	case "testsrc":
		c, err = b.cx.TestSrc(s.Duration, b.size(s))
	case "sequence":
		return b.sequence(ctx, s, inner)
	case "repeat":
		return b.unary(ctx, *s.Repeat, inner, func(src clip.Clip) (clip.Clip, error) {
			return b.cx.RepeatValue(src, s.Count)
		})
	case "slice":
		rs, err := ranges(s, inner)
		if err != nil {
			return nil, err
		}
		return b.unary(ctx, *s.Slice, inner, func(src clip.Clip) (clip.Clip, error) {
			return b.cx.Slice(src, rs...)
		})
	case "scale":
		return b.unary(ctx, *s.Scale, inner, func(src clip.Clip) (clip.Clip, error) {
			return b.cx.Scale(src, clip.ScaleOptions{
				Width:      s.Width,
				Height:     s.Height,
				FromMaster: s.FromMaster,
				KeepAspect: s.KeepAspect,
				Center:     s.Center,
				Custom:     s.Custom,
			})
		})
	case "transform":
		return b.unary(ctx, *s.Transform, inner, func(src clip.Clip) (clip.Clip, error) {
			return b.cx.Transform(src, s.Options)
		})
	case "overlay":
		return b.overlay(ctx, s, inner)
	case "crossfade":
		return b.crossfade(ctx, s, inner)
	}
	if err != nil {
		return nil, at(where, err)
	}
	return c, nil
}

// at locates a construction error within the project.
func at(where string, err error) error {
	return fmt.Errorf("project: %s: %w", where, err)
}

// unary builds the operand of a single-input clip, then the clip itself.
func (b *builder) unary(ctx context.Context, operand Spec, where string, construct func(clip.Clip) (clip.Clip, error)) (clip.Clip, error) {
	src, err := b.operand(ctx, operand, where)
	if err != nil {
		return nil, err
	}
	c, err := construct(src)
	if err != nil {
		return nil, at(where, err)
	}
	return c, nil
}

func (b *builder) size(s Spec) clip.Size {
	if s.Width > 0 && s.Height > 0 {
		return clip.Size{Width: s.Width, Height: s.Height}
	}
	return b.cx.DefaultSize()
}

func (b *builder) sequence(ctx context.Context, s Spec, where string) (clip.Clip, error) {
	children := make([]clip.Clip, 0, len(s.Sequence))
	for i, child := range s.Sequence {
		c, err := b.operand(ctx, child, fmt.Sprintf("%s[%d]", where, i))
		if err != nil {
			return nil, err
		}
		children = append(children, c)
	}
	var opts []clip.SequenceOption
	if s.Flatten != nil && !*s.Flatten {
		opts = append(opts, clip.NoFlatten())
	}
	filter, err := flagFilter(s, where)
	if err != nil {
		return nil, err
	}
	if filter != (clip.FilterOptions{}) {
		opts = append(opts, clip.WithFlagFilter(filter))
	}
	seq, err := b.cx.NewSequence(children, opts...)
	if err != nil {
		return nil, at(where, err)
	}
	return seq, nil
}

func flagFilter(s Spec, where string) (clip.FilterOptions, error) {
	parse := func(names []string) (clip.Flags, error) {
		var out clip.Flags
		for _, name := range names {
			f, err := clip.ParseFlag(name)
			if err != nil {
				return 0, fmt.Errorf("%w: %s: %w", ErrProject, where, err)
			}
			out |= f
		}
		return out, nil
	}
	var opts clip.FilterOptions
	var err error
	if opts.Include, err = parse(s.Include); err != nil {
		return opts, err
	}
	if opts.Exclude, err = parse(s.Exclude); err != nil {
		return opts, err
	}
	if opts.Append, err = parse(s.Append); err != nil {
		return opts, err
	}
	return opts, nil
}

// ranges returns the slice ranges in document order.
func ranges(s Spec, where string) ([]clip.Range, error) {
	switch {
	case len(s.Ranges) > 0 && (len(s.Seconds) > 0 || len(s.Frames) > 0):
		return nil, fmt.Errorf("%w: %s: ranges excludes seconds and frames", ErrProject, where)
	case len(s.Seconds) > 0 && len(s.Frames) > 0:
		return nil, fmt.Errorf("%w: %s: seconds and frames cannot be combined, list them in order under ranges", ErrProject, where)
	}
	out := make([]clip.Range, 0, len(s.Ranges)+len(s.Seconds)+len(s.Frames))
	for i, r := range s.Ranges {
		switch strings.ToLower(strings.TrimSpace(r.Unit)) {
		case "", "seconds":
			out = append(out, clip.Span(r.Start, r.End))
		case "frames":
			if r.Start != math.Trunc(r.Start) || r.End != math.Trunc(r.End) {
				return nil, fmt.Errorf("%w: %s: range %d: frame bounds must be whole numbers", ErrProject, where, i)
			}
			out = append(out, clip.Frames(int(r.Start), int(r.End)))
		default:
			return nil, fmt.Errorf("%w: %s: range %d: unknown unit %q", ErrProject, where, i, r.Unit)
		}
	}
	for _, r := range s.Frames {
		out = append(out, clip.Frames(r.Start, r.End))
	}
	for _, r := range s.Seconds {
		out = append(out, clip.Span(r.Start, r.End))
	}
	return out, nil
}

func (b *builder) overlay(ctx context.Context, s Spec, where string) (clip.Clip, error) {
	if s.Top == nil {
		return nil, fmt.Errorf("%w: %s: overlay needs a top clip", ErrProject, where)
	}
	bottom, err := b.operand(ctx, *s.Overlay, where+".bottom")
	if err != nil {
		return nil, err
	}
	top, err := b.operand(ctx, *s.Top, where+".top")
	if err != nil {
		return nil, err
	}
	o, err := b.cx.Overlay(bottom, top, clip.OverlayOptions{X: s.X, Y: s.Y})
	if err != nil {
		return nil, at(where, err)
	}
	return o, nil
}

func (b *builder) crossfade(ctx context.Context, s Spec, where string) (clip.Clip, error) {
	if len(s.Crossfade) != 2 {
		return nil, fmt.Errorf("%w: %s: crossfade needs exactly two clips, got %d", ErrProject, where, len(s.Crossfade))
	}
	first, err := b.operand(ctx, s.Crossfade[0], where+"[0]")
	if err != nil {
		return nil, err
	}
	second, err := b.operand(ctx, s.Crossfade[1], where+"[1]")
	if err != nil {
		return nil, err
	}
	x, err := b.cx.Crossfade(first, second, s.Fade, clip.CrossfadeOptions{Transition: s.Transition})
	if err != nil {
		return nil, at(where, err)
	}
	return x, nil
}
