package render

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/sausix/scriptycut/internal/cache"
	"github.com/sausix/scriptycut/internal/clip"
	"github.com/sausix/scriptycut/internal/formats"
	"github.com/sausix/scriptycut/internal/services"
)

const (
	payloadName    = "render.mkv"
	concatListName = "images.ffconcat"
)

// Step is the ffmpeg invocation that materializes one node.
type Step struct {
	Node    clip.Clip
	Inputs  []clip.Clip
	Args    []string
	Filters []string
	// Files are written into the node's cache entry before the job starts.
	Files  map[string]string
	Cached bool
}

// Entry returns the cache entry the step renders into.
func (s Step) Entry() cache.Entry { return s.Node.Entry() }

// Key returns the cache key of the rendered node.
func (s Step) Key() string { return s.Node.Entry().Key }

// Payload returns the committed payload path of a node.
func Payload(c clip.Clip) string { return c.Entry().Payload(payloadName) }

// Cached reports whether c already has a committed payload.
func Cached(c clip.Clip) bool { return c.Entry().HasPayload(payloadName) }

// BuildPlan lists the steps needed to render root in dependency order.
// Cached steps are kept in the plan with Cached set; the inputs of a cached
// step are left out unless an uncached step reads them.
func BuildPlan(root clip.Clip, settings Settings) ([]Step, error) {
	if root == nil {
		return nil, errors.New("render: nil clip")
	}
	settings = settings.normalized()
	var steps []Step
	for node := range clip.Dependencies(root) {
		step, err := buildStep(node, settings)
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}
	return prune(steps), nil
}

// prune keeps the steps reachable from the root, which is last, without
// passing through a cached step.
func prune(steps []Step) []Step {
	if len(steps) == 0 {
		return steps
	}
	needed := map[string]bool{steps[len(steps)-1].Key(): true}
	keep := make([]bool, len(steps))
	for i := len(steps) - 1; i >= 0; i-- {
		step := steps[i]
		if !needed[step.Key()] {
			continue
		}
		keep[i] = true
		if step.Cached {
			continue
		}
		for _, in := range step.Inputs {
			needed[in.Entry().Key] = true
		}
	}
	out := make([]Step, 0, len(steps))
	for i, step := range steps {
		if keep[i] {
			out = append(out, step)
		}
	}
	return out
}

func buildStep(node clip.Clip, settings Settings) (Step, error) {
	g := &graph{node: node, settings: settings, filters: make(map[string]struct{})}
	switch n := node.(type) {
	case *clip.File:
		g.file(n)
	case *clip.Image:
		g.image(n)
	case *clip.ImageSequence:
		g.imageSequence(n)
	case *clip.Generator:
		g.generator(n)
	case *clip.Sequence:
		g.sequence(n)
	case *clip.Slice:
		g.slice(n)
	case *clip.Transform:
		g.transform(n)
	case *clip.Scale:
		g.scale(n)
	case *clip.Overlay:
		g.overlay(n)
	case *clip.Crossfade:
		g.crossfade(n)
	default:
		return Step{}, services.Wrap(services.ErrValidation, "render", "plan", "no argument builder for "+node.Class(), nil)
	}
	if len(g.maps) == 0 {
		return Step{}, services.Wrap(services.ErrValidation, "render", "plan", node.Identity()+" has no streams to render", nil)
	}
	entry := node.Entry()
	return Step{
		Node:    node,
		Inputs:  node.Children(),
		Args:    g.args(entry.PartialPayload(payloadName)),
		Filters: g.filterNames(),
		Files:   g.files,
		Cached:  entry.HasPayload(payloadName),
	}, nil
}

// graph accumulates the inputs, filter chains and stream maps of one job.
type graph struct {
	node     clip.Clip
	settings Settings
	inputs   [][]string
	chains   []string
	maps     []string
	filters  map[string]struct{}
	files    map[string]string
}

func (g *graph) input(args ...string) int {
	g.inputs = append(g.inputs, args)
	return len(g.inputs) - 1
}

func (g *graph) payload(c clip.Clip) int {
	return g.input("-i", Payload(c))
}

func (g *graph) chain(chain string, filters ...string) {
	g.chains = append(g.chains, chain)
	g.use(filters...)
}

func (g *graph) use(filters ...string) {
	for _, f := range filters {
		g.filters[f] = struct{}{}
	}
}

func (g *graph) mapStream(spec string) {
	g.maps = append(g.maps, "-map", spec)
}

func (g *graph) hasVideo() bool { return g.node.Flags().Has(clip.HasVideo) }

func (g *graph) hasAudio() bool { return g.node.Flags().Has(clip.HasAudio) }

func (g *graph) size() clip.Size {
	if size, ok := g.node.Resolution(); ok {
		return size
	}
	return g.settings.Size
}

func (g *graph) rate() formats.Rate {
	if rate, ok := g.node.FrameRate(); ok {
		return rate
	}
	return g.settings.Rate
}

func (g *graph) filterNames() []string {
	names := make([]string, 0, len(g.filters))
	for name := range g.filters {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (g *graph) args(output string) []string {
	args := []string{"-hide_banner", "-nostdin", "-y", "-loglevel", "error", "-progress", "pipe:1", "-nostats"}
	for _, in := range g.inputs {
		args = append(args, in...)
	}
	if len(g.chains) > 0 {
		args = append(args, "-filter_complex", strings.Join(g.chains, ";"))
	}
	args = append(args, g.maps...)
	if g.hasVideo() {
		args = append(args, "-c:v", g.settings.IntermediateCodec)
		if g.node.Flags().Has(clip.HasAlpha) {
			args = append(args, "-pix_fmt", "yuva420p")
		}
	}
	if g.hasAudio() {
		args = append(args, "-c:a", intermediateAudioCodec, "-ar", strconv.Itoa(g.settings.SampleRate), "-ac", intermediateChannels)
	}
	return append(args, output)
}

// normalizeVideo fits in into size, letterboxing as needed, at rate.
func (g *graph) normalizeVideo(in, out string, size clip.Size, rate formats.Rate) {
	g.chain(fmt.Sprintf("[%s]scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2,setsar=1,fps=%s[%s]",
		in, size.Width, size.Height, size.Width, size.Height, rate, out), "scale", "pad", "setsar", "fps")
}

func (g *graph) blankVideo(out string, seconds float64, size clip.Size, rate formats.Rate) {
	g.chain(fmt.Sprintf("color=c=black:s=%s:r=%s:d=%s[%s]", size, rate, formatSeconds(seconds), out), "color")
}

func (g *graph) silence(out string, seconds float64) {
	g.chain(fmt.Sprintf("anullsrc=r=%d:cl=stereo,atrim=duration=%s[%s]", g.settings.SampleRate, formatSeconds(seconds), out), "anullsrc", "atrim")
}

// audioOrSilence returns the label carrying the audio of input idx, or of
// generated silence when c has none.
func (g *graph) audioOrSilence(idx int, c clip.Clip, label string) string {
	if c.Flags().Has(clip.HasAudio) {
		return fmt.Sprintf("%d:a", idx)
	}
	g.silence(label, c.Duration())
	return label
}

func (g *graph) concat(pads string, n int) {
	v, a := 0, 0
	var outs string
	if g.hasVideo() {
		v = 1
		outs += "[v]"
	}
	if g.hasAudio() {
		a = 1
		outs += "[a]"
	}
	g.chain(fmt.Sprintf("%sconcat=n=%d:v=%d:a=%d%s", pads, n, v, a, outs), "concat")
	if v == 1 {
		g.mapStream("[v]")
	}
	if a == 1 {
		g.mapStream("[a]")
	}
}

func (g *graph) file(f *clip.File) {
	g.input("-i", f.Path())
	if idx, ok := f.VideoStream(); ok && g.hasVideo() {
		g.chain(fmt.Sprintf("[0:v:%d]fps=%s,setsar=1[v]", idx, g.rate()), "fps", "setsar")
		g.mapStream("[v]")
	}
	if idx, ok := f.AudioStream(); ok && g.hasAudio() {
		g.mapStream(fmt.Sprintf("0:a:%d", idx))
	}
}

func (g *graph) image(img *clip.Image) {
	g.input("-loop", "1", "-framerate", g.rate().String(), "-t", formatSeconds(img.Duration()), "-i", img.Picture().Path)
	g.chain("[0:v]setsar=1[v]", "setsar")
	g.mapStream("[v]")
}

func (g *graph) imageSequence(seq *clip.ImageSequence) {
	pictures := seq.Pictures()
	var b strings.Builder
	b.WriteString("ffconcat version 1.0\n")
	for _, p := range pictures {
		fmt.Fprintf(&b, "file %s\nduration %s\n", concatQuote(p.Path), formatSeconds(seq.Each()))
	}
	// The concat demuxer ignores the duration of the final entry unless it is repeated.
	fmt.Fprintf(&b, "file %s\n", concatQuote(pictures[len(pictures)-1].Path))
	g.files = map[string]string{concatListName: b.String()}

	g.input("-f", "concat", "-safe", "0", "-i", seq.Entry().Path(concatListName))
	g.normalizeVideo("0:v", "v", g.size(), g.rate())
	g.mapStream("[v]")
}

func (g *graph) generator(gen *clip.Generator) {
	source := gen.Source()
	name, _, _ := strings.Cut(source, "=")
	g.input("-f", "lavfi", "-i", source)
	g.use(name)
	g.mapStream("0:v")
}

func (g *graph) sequence(s *clip.Sequence) {
	children := s.Clips()
	size, rate := g.size(), g.rate()
	var pads strings.Builder
	for i, child := range children {
		idx := g.payload(child)
		if g.hasVideo() {
			label := fmt.Sprintf("v%d", i)
			if child.Flags().Has(clip.HasVideo) {
				g.normalizeVideo(fmt.Sprintf("%d:v", idx), label, size, rate)
			} else {
				g.blankVideo(label, child.Duration(), size, rate)
			}
			pads.WriteString("[" + label + "]")
		}
		if g.hasAudio() {
			pads.WriteString("[" + g.audioOrSilence(idx, child, fmt.Sprintf("a%d", i)) + "]")
		}
	}
	g.concat(pads.String(), len(children))
}

func (g *graph) slice(s *clip.Slice) {
	g.payload(s.Source())
	intervals := s.Intervals()
	var pads strings.Builder
	for k, iv := range intervals {
		start, end := formatSeconds(iv.Start), formatSeconds(iv.End)
		if g.hasVideo() {
			g.chain(fmt.Sprintf("[0:v]trim=start=%s:end=%s,setpts=PTS-STARTPTS[v%d]", start, end, k), "trim", "setpts")
			fmt.Fprintf(&pads, "[v%d]", k)
		}
		if g.hasAudio() {
			g.chain(fmt.Sprintf("[0:a]atrim=start=%s:end=%s,asetpts=PTS-STARTPTS[a%d]", start, end, k), "atrim", "asetpts")
			fmt.Fprintf(&pads, "[a%d]", k)
		}
	}
	g.concat(pads.String(), len(intervals))
}

func (g *graph) transform(t *clip.Transform) {
	g.payload(t.Source())
	g.chain("[0:v]" + t.Options() + "[v]")
	g.mapStream("[v]")
	if g.hasAudio() {
		g.mapStream("0:a")
	}
}

func (g *graph) scale(s *clip.Scale) {
	g.payload(s.Source())
	size := g.size()
	opts := s.Options()
	var expr string
	switch {
	case opts.Custom != "":
		expr = "scale=" + opts.Custom
	case opts.KeepAspect:
		expr = fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=decrease", size.Width, size.Height)
		if opts.Center {
			expr += fmt.Sprintf(",pad=%d:%d:(ow-iw)/2:(oh-ih)/2", size.Width, size.Height)
			g.use("pad")
		}
	default:
		expr = fmt.Sprintf("scale=%d:%d", size.Width, size.Height)
	}
	g.chain("[0:v]"+expr+",setsar=1[v]", "scale", "setsar")
	g.mapStream("[v]")
	if g.hasAudio() {
		g.mapStream("0:a")
	}
}

func (g *graph) overlay(o *clip.Overlay) {
	bottom, top := o.Bottom(), o.Top()
	g.payload(bottom)
	g.payload(top)
	base := "0:v"
	if pad := o.Duration() - bottom.Duration(); pad > 0 {
		g.chain(fmt.Sprintf("[0:v]tpad=stop_mode=clone:stop_duration=%s[base]", formatSeconds(pad)), "tpad")
		base = "base"
	}
	opts := o.Options()
	g.chain(fmt.Sprintf("[%s][1:v]overlay=x=%s:y=%s:eof_action=pass[v]", base, opts.X, opts.Y), "overlay")
	g.mapStream("[v]")
	if !g.hasAudio() {
		return
	}
	bottomAudio, topAudio := bottom.Flags().Has(clip.HasAudio), top.Flags().Has(clip.HasAudio)
	switch {
	case bottomAudio && topAudio:
		g.chain("[0:a][1:a]amix=inputs=2:duration=longest[a]", "amix")
		g.mapStream("[a]")
	case bottomAudio:
		g.mapStream("0:a")
	case topAudio:
		g.mapStream("1:a")
	}
}

func (g *graph) crossfade(x *clip.Crossfade) {
	first, second := x.First(), x.Second()
	size, rate := g.size(), g.rate()
	g.payload(first)
	g.payload(second)
	fade := formatSeconds(x.Fade())
	g.normalizeVideo("0:v", "xa", size, rate)
	g.normalizeVideo("1:v", "xb", size, rate)
	g.chain(fmt.Sprintf("[xa][xb]xfade=transition=%s:duration=%s:offset=%s[v]",
		x.Options().Transition, fade, formatSeconds(first.Duration()-x.Fade())), "xfade")
	g.mapStream("[v]")
	if !g.hasAudio() {
		return
	}
	a := g.audioOrSilence(0, first, "sa")
	b := g.audioOrSilence(1, second, "sb")
	g.chain(fmt.Sprintf("[%s][%s]acrossfade=d=%s[a]", a, b, fade), "acrossfade")
	g.mapStream("[a]")
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func concatQuote(path string) string {
	return "'" + strings.ReplaceAll(path, "'", `'\''`) + "'"
}
