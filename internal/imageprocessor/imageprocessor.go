// Package imageprocessor turns uploaded logo images into classifier input.
package imageprocessor

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
)

// Target resolution expected by the classifier.
const (
	TargetWidth  = 150
	TargetHeight = 150
	Channels     = 3
)

// MaxSourcePixels bounds the decoded size of an upload. Larger images are
// rejected from their header before any pixel data is allocated.
const MaxSourcePixels = 40_000_000

// ErrPreprocessingFailed is the sentinel for any decode or encode failure.
var ErrPreprocessingFailed = errors.New("preprocessing failed")

var allowedExtensions = map[string]imaging.Format{
	"png":  imaging.PNG,
	"jpg":  imaging.JPEG,
	"jpeg": imaging.JPEG,
	"gif":  imaging.GIF,
}

// Tensor is a single image in height-width-channel order with values in [0,1].
type Tensor struct {
	Height   int
	Width    int
	Channels int
	Data     []float32
}

// Shape returns the batched shape sent to the classifier.
func (t Tensor) Shape() []int {
	return []int{1, t.Height, t.Width, t.Channels}
}

// Result contains the model input and the reconstructed artifact.
type Result struct {
	Tensor      Tensor
	Artifact    []byte
	ContentType string
}

// Extension returns the lower-cased extension of filename without the dot.
func Extension(filename string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
}

// Allowed reports whether filename carries a supported image extension.
func Allowed(filename string) bool {
	_, ok := allowedExtensions[Extension(filename)]
	return ok
}

// Preprocessor resizes and normalizes images. The zero value is ready to use.
type Preprocessor struct {
	JPEGQuality int
}

// Preprocess decodes raw, resizes it to the target resolution and normalizes it.
// The artifact is the denormalized tensor encoded in the format implied by filename.
func (p Preprocessor) Preprocess(raw []byte, filename string) (res *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, fmt.Errorf("%w: %v", ErrPreprocessingFailed, r)
		}
	}()

	format, ok := allowedExtensions[Extension(filename)]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported extension %q", ErrPreprocessingFailed, Extension(filename))
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: decode config: %v", ErrPreprocessingFailed, err)
	}
	if pixels := int64(cfg.Width) * int64(cfg.Height); pixels > MaxSourcePixels {
		return nil, fmt.Errorf("%w: %dx%d image exceeds %d pixels", ErrPreprocessingFailed, cfg.Width, cfg.Height, MaxSourcePixels)
	}

	src, err := imaging.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrPreprocessingFailed, err)
	}

	resized := imaging.Resize(src, TargetWidth, TargetHeight, imaging.NearestNeighbor)
	tensor := normalize(resized)

	var buf bytes.Buffer
	opts := []imaging.EncodeOption{}
	if format == imaging.JPEG {
		quality := p.JPEGQuality
		if quality <= 0 {
			quality = 95
		}
		opts = append(opts, imaging.JPEGQuality(quality))
	}
	if err := imaging.Encode(&buf, Denormalize(tensor), format, opts...); err != nil {
		return nil, fmt.Errorf("%w: encode: %v", ErrPreprocessingFailed, err)
	}

	return &Result{
		Tensor:      tensor,
		Artifact:    buf.Bytes(),
		ContentType: contentTypes[format],
	}, nil
}

var contentTypes = map[imaging.Format]string{
	imaging.JPEG: "image/jpeg",
	imaging.PNG:  "image/png",
	imaging.GIF:  "image/gif",
}

// normalize drops alpha and scales each channel to [0,1].
func normalize(img *image.NRGBA) Tensor {
	b := img.Bounds()
	t := Tensor{
		Height:   b.Dy(),
		Width:    b.Dx(),
		Channels: Channels,
		Data:     make([]float32, 0, b.Dx()*b.Dy()*Channels),
	}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			off := img.PixOffset(x, y)
			t.Data = append(t.Data,
				float32(img.Pix[off])/255,
				float32(img.Pix[off+1])/255,
				float32(img.Pix[off+2])/255,
			)
		}
	}
	return t
}

// Denormalize rebuilds an opaque 8-bit image from a normalized tensor.
func Denormalize(t Tensor) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, t.Width, t.Height))
	for y := 0; y < t.Height; y++ {
		for x := 0; x < t.Width; x++ {
			i := (y*t.Width + x) * t.Channels
			img.SetNRGBA(x, y, color.NRGBA{
				R: toByte(t.Data[i]),
				G: toByte(t.Data[i+1]),
				B: toByte(t.Data[i+2]),
				A: 255,
			})
		}
	}
	return img
}

func toByte(v float32) uint8 {
	scaled := math.Round(float64(v) * 255)
	switch {
	case scaled < 0:
		return 0
	case scaled > 255:
		return 255
	default:
		return uint8(scaled)
	}
}
