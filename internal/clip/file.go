package clip

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sausix/scriptycut/internal/fileutil"
	"github.com/sausix/scriptycut/internal/formats"
	"github.com/sausix/scriptycut/internal/logging"
	"github.com/sausix/scriptycut/internal/media/ffprobe"
)

const (
	classFile     = "File"
	probeFileName = "probe.json"
)

// FileOptions selects streams from a media file. Stream indexes count
// streams of one type, so VideoStream 1 is the second video stream.
type FileOptions struct {
	VideoStream  int
	AudioStream  int
	DisableVideo bool
	DisableAudio bool
	// Master marks the file's format as preferred when formats differ.
	Master bool
}

// File is a clip read from a media file on disk.
type File struct {
	node
	path   string
	opts   FileOptions
	probe  ffprobe.Result
	video  *formats.VideoFormat
	audio  *formats.AudioFormat
	vIndex int
	aIndex int
}

// File probes path and builds a clip from the selected streams. A file that
// cannot be probed, or lacks every selected stream, is not an error: the node
// carries MissingResource instead.
func (cx *Context) File(ctx context.Context, path string, opts FileOptions) (*File, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, constructionErr(classFile, "new", ErrValue, "path is empty")
	}
	if opts.VideoStream < 0 || opts.AudioStream < 0 {
		return nil, constructionErr(classFile, "new", ErrValue, "stream indexes must not be negative")
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}

	f := &File{path: path, opts: opts, vIndex: -1, aIndex: -1}
	var probeErr error
	if cx.prober != nil {
		f.probe, probeErr = cx.prober.Probe(ctx, path)
	} else {
		probeErr = ffprobe.ErrNoStreams
	}
	if probeErr != nil {
		logging.WarnWithContext(cx.logger, "media file unavailable; clip marked as missing", "clip_source_missing",
			logging.String("source_file", path),
			logging.Error(probeErr),
			logging.String(logging.FieldErrorHint, "check that the file exists and ffprobe can read it"),
			logging.String(logging.FieldImpact, "rendering this clip will fail"),
		)
		f.probe = ffprobe.Result{}
	}

	flags := FromFile
	if !opts.DisableVideo {
		if stream, ok := f.probe.Nth("video", opts.VideoStream); ok {
			if vf, err := formats.VideoFromStream(stream); err == nil {
				f.video = &vf
				f.vIndex = opts.VideoStream
				flags |= HasVideo
				if vf.HasAlpha() {
					flags |= HasAlpha
				}
				if vf.Width > 0 && vf.Height > 0 {
					flags |= HasFixedResolution
				}
				if !vf.Rate.IsZero() {
					flags |= HasFixedFPS
				}
			}
		}
	}
	if !opts.DisableAudio {
		if stream, ok := f.probe.Nth("audio", opts.AudioStream); ok {
			if af, err := formats.AudioFromStream(stream); err == nil {
				f.audio = &af
				f.aIndex = opts.AudioStream
				flags |= HasAudio
			}
		}
	}
	if !flags.Any(HasVideo | HasAudio) {
		flags |= MissingResource
	}
	if opts.Master {
		flags |= IsMaster | ContainsMaster
	}

	f.node = node{
		class:    classFile,
		data:     f.identityData(),
		flags:    flags,
		duration: f.probe.DurationSeconds(),
	}
	if f.video != nil {
		f.size = Size{Width: f.video.Width, Height: f.video.Height}
		f.rate = f.video.Rate
	}
	if err := cx.finish(&f.node); err != nil {
		return nil, err
	}
	if err := fileutil.WriteFileAtomic(f.entry.Path(probeFileName), f.probe.RawJSON(), 0o644); err != nil {
		cx.logger.Debug("probe record not stored", logging.String("cache_dir", f.entry.Dir), logging.Error(err))
	}
	return f, nil
}

func (f *File) identityData() string {
	var b strings.Builder
	if f.opts.Master {
		b.WriteString("[Master]")
	}
	b.WriteString(f.path)
	if f.vIndex > 0 {
		b.WriteString(":v=" + strconv.Itoa(f.vIndex))
	}
	if f.aIndex > 0 {
		b.WriteString(":a=" + strconv.Itoa(f.aIndex))
	}
	return b.String()
}

// Path returns the absolute source path.
func (f *File) Path() string { return f.path }

// VideoStream returns the selected video stream index, if any.
func (f *File) VideoStream() (int, bool) { return f.vIndex, f.vIndex >= 0 }

// AudioStream returns the selected audio stream index, if any.
func (f *File) AudioStream() (int, bool) { return f.aIndex, f.aIndex >= 0 }

// VideoFormat returns the format of the selected video stream.
func (f *File) VideoFormat() (formats.VideoFormat, bool) {
	if f.video == nil {
		return formats.VideoFormat{}, false
	}
	return *f.video, true
}

// AudioFormat returns the format of the selected audio stream.
func (f *File) AudioFormat() (formats.AudioFormat, bool) {
	if f.audio == nil {
		return formats.AudioFormat{}, false
	}
	return *f.audio, true
}

// Probe returns the probe result the node was built from.
func (f *File) Probe() ffprobe.Result { return f.probe }
