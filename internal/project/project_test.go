package project

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sausix/scriptycut/internal/cache"
	"github.com/sausix/scriptycut/internal/clip"
	"github.com/sausix/scriptycut/internal/formats"
	"github.com/sausix/scriptycut/internal/logging"
	"github.com/sausix/scriptycut/internal/services"
	"github.com/sausix/scriptycut/internal/testsupport"
)

func newContext(t *testing.T) (*clip.Context, *testsupport.FakeProber) {
	t.Helper()
	store, err := cache.Open(filepath.Join(t.TempDir(), "cache"), cache.Options{Version: 1}, logging.NewNop())
	require.NoError(t, err)
	prober := testsupport.NewFakeProber()
	cx := clip.NewContext(store, prober,
		clip.WithFPSHint(formats.Rate{Num: 25, Den: 1}),
		clip.WithDefaultSize(clip.Size{Width: 320, Height: 180}),
	)
	return cx, prober
}

func build(t *testing.T, src string) (*Graph, error) {
	t.Helper()
	cx, _ := newContext(t)
	f, err := Parse([]byte(src), t.TempDir())
	require.NoError(t, err)
	return Build(context.Background(), cx, f)
}

func TestBuildSequenceWithReferencesAndRepeat(t *testing.T) {
	g, err := build(t, `
clips:
  bars: {testsrc: true, duration: 2}
  card: {color: navy, duration: 1, width: 640, height: 360}
  main:
    sequence: [bars, {repeat: card, count: 3}]
root: main
`)
	require.NoError(t, err)
	assert.Equal(t, "main", g.RootName)
	assert.InDelta(t, 5.0, g.Root.Duration(), 1e-9)

	seq, ok := g.Root.(*clip.Sequence)
	require.True(t, ok, "root should be a sequence, got %T", g.Root)
	assert.Equal(t, 4, seq.Len(), "the nested repeat is spliced into the sequence")
	assert.Same(t, g.Named["bars"], seq.Clips()[0])
	assert.Contains(t, g.Named, "repeat1")
	assert.Contains(t, g.Named, "card")
}

func TestBuildSharesNamedClips(t *testing.T) {
	g, err := build(t, `
clips:
  bars: {testsrc: true, duration: 1}
  main: {crossfade: [bars, bars], fade: 0.5, transition: dissolve}
`)
	require.NoError(t, err)
	x, ok := g.Root.(*clip.Crossfade)
	require.True(t, ok)
	assert.Same(t, x.First(), x.Second())
	assert.InDelta(t, 1.5, x.Duration(), 1e-9)
	assert.Equal(t, "dissolve", x.Options().Transition)
}

func TestBuildRejectsCycles(t *testing.T) {
	_, err := build(t, `
clips:
  a: {sequence: [b]}
  b: {sequence: [c]}
  c: {repeat: a, count: 2}
root: a
`)
	require.ErrorIs(t, err, ErrCycle)
	require.ErrorIs(t, err, services.ErrValidation)
	assert.Contains(t, err.Error(), "a -> b -> c -> a")
}

func TestBuildUnknownReference(t *testing.T) {
	_, err := build(t, `
clips:
  main: {sequence: [nowhere]}
`)
	require.ErrorIs(t, err, ErrProject)
	assert.Contains(t, err.Error(), `"nowhere"`)
}

func TestBuildRejectsAmbiguousSpec(t *testing.T) {
	_, err := build(t, `
clips:
  main: {testsrc: true, color: red, duration: 1}
`)
	require.ErrorIs(t, err, ErrProject)
	assert.Contains(t, err.Error(), "color, testsrc")
}

func TestBuildRepeatCountMustBeWhole(t *testing.T) {
	_, err := build(t, `
clips:
  bars: {testsrc: true, duration: 1}
  main: {repeat: bars, count: 2.5}
`)
	require.ErrorIs(t, err, clip.ErrType)
	assert.Contains(t, err.Error(), "main.repeat")
}

func TestBuildSliceScaleAndOverlay(t *testing.T) {
	g, err := build(t, `
clips:
  bars: {testsrc: true, duration: 4}
  logo: {color: white, duration: 1, width: 32, height: 32}
  cut:
    slice: bars
    ranges: [{start: 0, end: 25, unit: frames}, {start: 2, end: 3.5}]
  main:
    overlay: {scale: cut, width: 160, height: 90}
    top: logo
    x: "10"
    y: "10"
`)
	require.NoError(t, err)
	o, ok := g.Root.(*clip.Overlay)
	require.True(t, ok)
	size, ok := o.Resolution()
	require.True(t, ok)
	assert.Equal(t, clip.Size{Width: 160, Height: 90}, size)

	cut, ok := g.Named["cut"].(*clip.Slice)
	require.True(t, ok)
	assert.Equal(t, []clip.Interval{{Start: 0, End: 1}, {Start: 2, End: 3.5}}, cut.Intervals())
	assert.InDelta(t, 2.5, o.Duration(), 1e-9)
}

func TestBuildSliceKeepsRangeOrder(t *testing.T) {
	g, err := build(t, `
clips:
  bars: {testsrc: true, duration: 4}
  main:
    slice: bars
    ranges: [{start: 2, end: 3.5}, {start: 0, end: 25, unit: frames}]
`)
	require.NoError(t, err)
	cut, ok := g.Root.(*clip.Slice)
	require.True(t, ok)
	assert.Equal(t, []clip.Interval{{Start: 2, End: 3.5}, {Start: 0, End: 1}}, cut.Intervals())
}

func TestBuildSliceRejectsMixedRangeLists(t *testing.T) {
	_, err := build(t, `
clips:
  bars: {testsrc: true, duration: 4}
  main:
    slice: bars
    frames: [{start: 0, end: 25}]
    seconds: [{start: 2, end: 3.5}]
`)
	require.ErrorIs(t, err, ErrProject)
	assert.Contains(t, err.Error(), "ranges")

	_, err = build(t, `
clips:
  bars: {testsrc: true, duration: 4}
  main:
    slice: bars
    ranges: [{start: 0.5, end: 25, unit: frames}]
`)
	require.ErrorIs(t, err, ErrProject)
}

func TestBuildSequenceFlagFilter(t *testing.T) {
	g, err := build(t, `
clips:
  main:
    sequence: [{testsrc: true, duration: 1}]
    flatten: false
    exclude: [fixed_resolution]
`)
	require.NoError(t, err)
	assert.False(t, g.Root.Flags().Has(clip.HasFixedResolution))
	assert.True(t, g.Root.Flags().Has(clip.HasVideo))
}

func TestBuildUnknownFlag(t *testing.T) {
	_, err := build(t, `
clips:
  main:
    sequence: [{testsrc: true, duration: 1}]
    include: [shiny]
`)
	require.ErrorIs(t, err, ErrProject)
}

func TestParseRejectsUnknownTopLevelKeys(t *testing.T) {
	_, err := Parse([]byte("clips: {a: {testsrc: true, duration: 1}}\nrender: fast\n"), "")
	require.ErrorIs(t, err, ErrProject)
}

func TestRootSelection(t *testing.T) {
	_, err := Parse([]byte("clips: {a: {testsrc: true, duration: 1}, b: {testsrc: true, duration: 2}}\n"), "")
	require.ErrorIs(t, err, ErrProject)

	f, err := Parse([]byte("clips: {only: {testsrc: true, duration: 1}}\n"), "")
	require.NoError(t, err)
	name, err := f.RootName()
	require.NoError(t, err)
	assert.Equal(t, "only", name)

	_, err = Parse([]byte("clips: {a: {testsrc: true, duration: 1}}\nroot: b\n"), "")
	require.ErrorIs(t, err, ErrProject)
}

func TestLoadResolvesRelativePaths(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "project.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
output: renders/out.mp4
clips:
  intro: {file: media/intro.mp4, master: true}
`), 0o644))

	f, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "renders", "out.mp4"), f.OutputPath())
	assert.Equal(t, []string{"intro"}, f.Names())

	cx, prober := newContext(t)
	prober.AddMedia(filepath.Join(dir, "media", "intro.mp4"), 3, 640, 360, "25/1", "", 48000)
	g, err := Build(context.Background(), cx, f)
	require.NoError(t, err)
	flags := g.Root.Flags()
	assert.True(t, flags.Has(clip.IsMaster|clip.HasVideo|clip.HasAudio))
	assert.False(t, flags.Has(clip.MissingResource))
}
