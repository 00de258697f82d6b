package clip

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/zeebo/blake3"

	"github.com/sausix/scriptycut/internal/fileutil"
	"github.com/sausix/scriptycut/internal/logging"
)

const (
	classImage         = "Image"
	classImageSequence = "ImageSequence"
)

// Picture is a still image referenced by content hash.
type Picture struct {
	// Path is where the encoder reads the image from.
	Path string
	// Hash is the hex BLAKE3 digest of the image bytes, empty when the
	// image could not be read.
	Hash string
	Size Size
}

func (p Picture) String() string {
	if p.Hash == "" {
		return "missing=" + p.Path
	}
	return "blake3=" + p.Hash
}

func (cx *Context) loadPicture(path string) Picture {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	data, err := os.ReadFile(path)
	if err != nil {
		logging.WarnWithContext(cx.logger, "image unavailable; clip marked as missing", "clip_source_missing",
			logging.String("source_file", path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "rendering this clip will fail"),
		)
		return Picture{Path: path}
	}
	return Picture{Path: path, Hash: hashBytes(data), Size: decodeSize(data)}
}

func hashBytes(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func decodeSize(data []byte) Size {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Size{}
	}
	return Size{Width: cfg.Width, Height: cfg.Height}
}

// Image shows one still picture for a fixed time.
type Image struct {
	node
	picture Picture
}

// Image shows the picture at path for seconds.
func (cx *Context) Image(path string, seconds float64) (*Image, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, constructionErr(classImage, "new", ErrValue, "path is empty")
	}
	if err := checkDuration(classImage, seconds); err != nil {
		return nil, err
	}
	return cx.buildImage(cx.loadPicture(path), seconds, nil, "")
}

// ImageData shows in-memory image bytes for seconds. ext names the image
// format ("png", "jpg") so the encoder can pick a decoder.
func (cx *Context) ImageData(data []byte, ext string, seconds float64) (*Image, error) {
	if len(data) == 0 {
		return nil, constructionErr(classImage, "new", ErrValue, "image data is empty")
	}
	ext = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(ext)), ".")
	if ext == "" {
		return nil, constructionErr(classImage, "new", ErrValue, "image format is empty")
	}
	if err := checkDuration(classImage, seconds); err != nil {
		return nil, err
	}
	picture := Picture{Hash: hashBytes(data), Size: decodeSize(data)}
	return cx.buildImage(picture, seconds, data, ext)
}

func (cx *Context) buildImage(picture Picture, seconds float64, data []byte, ext string) (*Image, error) {
	flags := HasVideo
	if picture.Hash == "" {
		flags |= MissingResource
	}
	if !picture.Size.IsZero() {
		flags |= HasFixedResolution
	}
	img := &Image{picture: picture}
	img.node = node{
		class:    classImage,
		data:     formatSeconds(seconds) + ":" + picture.String(),
		flags:    flags,
		duration: seconds,
		size:     picture.Size,
	}
	if err := cx.finish(&img.node); err != nil {
		return nil, err
	}
	if data != nil {
		img.picture.Path = img.entry.Path("source." + ext)
		if _, err := os.Stat(img.picture.Path); err != nil {
			if err := fileutil.WriteFileAtomic(img.picture.Path, data, 0o644); err != nil {
				return nil, fmt.Errorf("clip: %s: store image data: %w", classImage, err)
			}
		}
	}
	return img, nil
}

// Picture returns the displayed image.
func (i *Image) Picture() Picture { return i.picture }

// ImageSequence shows pictures one after another, each for the same time.
type ImageSequence struct {
	node
	pictures []Picture
	each     float64
}

// ImageSequence shows every picture in paths for each seconds.
func (cx *Context) ImageSequence(paths []string, each float64) (*ImageSequence, error) {
	if len(paths) == 0 {
		return nil, constructionErr(classImageSequence, "new", ErrValue, "at least one image is required")
	}
	if err := checkDuration(classImageSequence, each); err != nil {
		return nil, err
	}
	seq := &ImageSequence{each: each}
	flags := HasVideo
	labels := make([]string, 0, len(paths))
	for _, path := range paths {
		if strings.TrimSpace(path) == "" {
			return nil, constructionErr(classImageSequence, "new", ErrValue, "image path is empty")
		}
		picture := cx.loadPicture(strings.TrimSpace(path))
		if picture.Hash == "" {
			flags |= MissingResource
		}
		seq.pictures = append(seq.pictures, picture)
		labels = append(labels, picture.String())
	}
	if first := seq.pictures[0].Size; !first.IsZero() {
		flags |= HasFixedResolution
		seq.size = first
	}
	seq.node.class = classImageSequence
	seq.node.data = formatSeconds(each) + "@[" + strings.Join(labels, ",") + "]"
	seq.node.flags = flags
	seq.node.duration = each * float64(len(paths))
	if err := cx.finish(&seq.node); err != nil {
		return nil, err
	}
	return seq, nil
}

// Pictures returns the images in display order.
func (s *ImageSequence) Pictures() []Picture { return append([]Picture(nil), s.pictures...) }

// Each returns the display time of every picture.
func (s *ImageSequence) Each() float64 { return s.each }

func checkDuration(class string, seconds float64) error {
	if seconds <= 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return constructionErr(class, "new", ErrValue, "duration must be positive, got %v", seconds)
	}
	return nil
}
