package testsupport

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/sausix/scriptycut/internal/media/ffprobe"
)

// Listings served by FakeFFmpeg.
const (
	FiltersListing = ` T.C trim              V->V       Pick one continuous section from the input.
 T.C atrim             A->A       Pick one continuous section from the input.
 TSC scale             V->V       Scale the input video size and/or convert the image format.
 ... pad               V->V       Pad the input video.
 T.. overlay           VV->V      Overlay a video source on top of the input.
 ... xfade             VV->V      Cross fade one video with another video.
 ... acrossfade        AA->A      Cross fade two input audio streams.
 ... amix              N->A       Audio mixing.
 ... tpad              V->V       Temporarily pad video frames.
 ... concat            N->N       Concatenate audio and video streams.
 ... setpts            V->V       Set PTS for the output video frame.
 ... asetpts           A->A       Set PTS for the output audio frame.
 ... fps               V->V       Force constant framerate.
 ... setsar            V->V       Set the pixel sample aspect ratio.
 ... loop              V->V       Loop video frames.
 ... format            V->V       Convert the input video to one of the specified pixel formats.
 ... testsrc           |->V       Generate test pattern.
 ... color             |->V       Provide an uniformly colored input.
 ... anullsrc          |->A       Null audio source, return empty audio frames.
`
	CodecsListing = ` -------
 DEV.LS h264                 H.264 / AVC (decoders: h264) (encoders: libx264)
 DEVI.S ffv1                 FFmpeg video codec #1
 DEA.L. aac                  AAC (Advanced Audio Coding)
 DEA..S pcm_s16le            PCM signed 16-bit little-endian
`
	PixFmtsListing = `IO... yuv420p                3             12      8-8-8
IO... yuva420p               4             20      8-8-8-8
`
)

// FakeFFmpeg returns a shell script body that answers capability listings
// and, for any other invocation, writes a small payload to its last argument.
func FakeFFmpeg(logPath string) string {
	return fmt.Sprintf(`echo "$*" >> %q
case "$*" in
  *-version*) echo "ffmpeg version 6.1-fake Copyright (c) the FFmpeg developers"; exit 0 ;;
  *-filters*) cat <<'LISTING'
%sLISTING
  exit 0 ;;
  *-codecs*) cat <<'LISTING'
%sLISTING
  exit 0 ;;
  *-pix_fmts*) cat <<'LISTING'
%sLISTING
  exit 0 ;;
esac
for last; do :; done
printf 'payload' > "$last"
`, logPath, FiltersListing, CodecsListing, PixFmtsListing)
}

// FakeProber serves canned ffprobe results keyed by path.
type FakeProber struct {
	mu      sync.Mutex
	results map[string]ffprobe.Result
	calls   map[string]int
}

// NewFakeProber returns an empty prober; unknown paths fail like an unreadable file.
func NewFakeProber() *FakeProber {
	return &FakeProber{results: make(map[string]ffprobe.Result), calls: make(map[string]int)}
}

// AddMedia registers a media file with the given duration and streams.
// width or height of zero omits the video stream; sampleRate of zero omits audio.
func (f *FakeProber) AddMedia(path string, seconds float64, width, height int, rate string, pixFmt string, sampleRate int) {
	var streams []string
	if width > 0 && height > 0 {
		if pixFmt == "" {
			pixFmt = "yuv420p"
		}
		streams = append(streams, fmt.Sprintf(`{"index":%d,"codec_type":"video","codec_name":"h264","width":%d,"height":%d,"pix_fmt":%q,"r_frame_rate":%q}`,
			len(streams), width, height, pixFmt, rate))
	}
	if sampleRate > 0 {
		streams = append(streams, fmt.Sprintf(`{"index":%d,"codec_type":"audio","codec_name":"aac","sample_rate":"%d","channels":2}`, len(streams), sampleRate))
	}
	payload := fmt.Sprintf(`{"streams":[%s],"format":{"filename":%q,"format_name":"matroska,webm","duration":"%g"}}`,
		strings.Join(streams, ","), path, seconds)
	result, err := ffprobe.Parse([]byte(payload))
	if err != nil {
		panic(fmt.Sprintf("fake probe payload: %v", err))
	}
	f.mu.Lock()
	f.results[path] = result
	f.mu.Unlock()
}

// Probe implements the clip prober contract.
func (f *FakeProber) Probe(_ context.Context, path string) (ffprobe.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[path]++
	result, ok := f.results[path]
	if !ok {
		return ffprobe.Result{}, fmt.Errorf("fake ffprobe: %s: no such file", path)
	}
	return result, nil
}

// Calls reports how many times path was probed.
func (f *FakeProber) Calls(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[path]
}
