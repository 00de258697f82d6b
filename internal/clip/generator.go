package clip

import (
	"strings"

	"github.com/sausix/scriptycut/internal/formats"
)

const (
	classTestSrc = "TestSrc"
	classColor   = "Color"
)

// Generator is a synthetic video source produced by an ffmpeg lavfi filter.
type Generator struct {
	node
	source string
}

// TestSrc is ffmpeg's test pattern at the context frame rate.
func (cx *Context) TestSrc(seconds float64, size Size) (*Generator, error) {
	if err := checkGenerator(classTestSrc, seconds, size); err != nil {
		return nil, err
	}
	source := "testsrc=duration=" + trimSeconds(seconds) + ":size=" + size.String() + ":rate=" + cx.fpsHint.String()
	return cx.buildGenerator(classTestSrc, source, seconds, size, cx.fpsHint)
}

// Color is a solid frame in color, using ffmpeg color syntax.
func (cx *Context) Color(seconds float64, size Size, color string) (*Generator, error) {
	if err := checkGenerator(classColor, seconds, size); err != nil {
		return nil, err
	}
	color = strings.TrimSpace(color)
	if color == "" || strings.ContainsAny(color, ":,;[]") {
		return nil, constructionErr(classColor, "new", ErrValue, "invalid color %q", color)
	}
	source := "color=duration=" + trimSeconds(seconds) + ":s=" + size.String() + ":c=" + color + ":r=" + cx.fpsHint.String()
	return cx.buildGenerator(classColor, source, seconds, size, cx.fpsHint)
}

func (cx *Context) buildGenerator(class, source string, seconds float64, size Size, rate formats.Rate) (*Generator, error) {
	g := &Generator{source: source}
	g.node = node{
		class:    class,
		data:     source,
		flags:    HasVideo | HasFixedResolution | HasFixedFPS,
		duration: seconds,
		size:     size,
		rate:     rate,
	}
	if err := cx.finish(&g.node); err != nil {
		return nil, err
	}
	return g, nil
}

// Source returns the lavfi source description.
func (g *Generator) Source() string { return g.source }

func checkGenerator(class string, seconds float64, size Size) error {
	if err := checkDuration(class, seconds); err != nil {
		return err
	}
	if size.IsZero() {
		return constructionErr(class, "new", ErrValue, "size must be positive, got %s", size)
	}
	return nil
}

func trimSeconds(v float64) string {
	return strings.TrimSuffix(formatSeconds(v), "s")
}
