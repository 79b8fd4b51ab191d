package imageprocessor

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"
)

func gradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x % 256), G: uint8(y % 256), B: uint8((x + y) % 256), A: 255})
		}
	}
	return img
}

func encodeJPEG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("failed to encode jpeg: %v", err)
	}
	return buf.Bytes()
}

func TestPreprocessJPEG(t *testing.T) {
	raw := encodeJPEG(t, gradient(300, 300))

	res, err := Preprocessor{}.Preprocess(raw, "logo.JPG")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.Tensor.Width != TargetWidth || res.Tensor.Height != TargetHeight || res.Tensor.Channels != Channels {
		t.Fatalf("unexpected tensor dims: %dx%dx%d", res.Tensor.Height, res.Tensor.Width, res.Tensor.Channels)
	}
	if got, want := len(res.Tensor.Data), TargetWidth*TargetHeight*Channels; got != want {
		t.Fatalf("expected %d values, got %d", want, got)
	}
	for i, v := range res.Tensor.Data {
		if v < 0 || v > 1 {
			t.Fatalf("value %d out of range: %v", i, v)
		}
	}
	if res.ContentType != "image/jpeg" {
		t.Fatalf("unexpected content type: %s", res.ContentType)
	}

	artifact, err := jpeg.Decode(bytes.NewReader(res.Artifact))
	if err != nil {
		t.Fatalf("artifact is not a jpeg: %v", err)
	}
	if b := artifact.Bounds(); b.Dx() != TargetWidth || b.Dy() != TargetHeight {
		t.Fatalf("unexpected artifact size: %v", b)
	}
}

func TestPreprocessIsDeterministic(t *testing.T) {
	raw := encodeJPEG(t, gradient(640, 480))

	first, err := Preprocessor{}.Preprocess(raw, "a.jpg")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := Preprocessor{}.Preprocess(raw, "a.jpg")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(first.Tensor.Data) != len(second.Tensor.Data) {
		t.Fatal("tensor lengths differ")
	}
	for i := range first.Tensor.Data {
		if first.Tensor.Data[i] != second.Tensor.Data[i] {
			t.Fatalf("tensor differs at %d", i)
		}
	}
	if !bytes.Equal(first.Artifact, second.Artifact) {
		t.Fatal("artifacts differ")
	}
}

func TestPreprocessPNGRoundTripsPixels(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, TargetWidth, TargetHeight))
	for y := 0; y < TargetHeight; y++ {
		for x := 0; x < TargetWidth; x++ {
			src.SetNRGBA(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 200, A: 128})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, src); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}

	res, err := Preprocessor{}.Preprocess(buf.Bytes(), "logo.png")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out, err := png.Decode(bytes.NewReader(res.Artifact))
	if err != nil {
		t.Fatalf("artifact is not a png: %v", err)
	}
	r, g, b, a := out.At(10, 20).RGBA()
	if r>>8 != 10 || g>>8 != 20 || b>>8 != 200 || a>>8 != 255 {
		t.Fatalf("unexpected pixel: %d %d %d %d", r>>8, g>>8, b>>8, a>>8)
	}
	if got := res.Tensor.Data[(20*TargetWidth+10)*Channels]; got != float32(10)/255 {
		t.Fatalf("unexpected normalized red channel: %v", got)
	}
}

func TestPreprocessGIF(t *testing.T) {
	palette := color.Palette{color.Black, color.White}
	img := image.NewPaletted(image.Rect(0, 0, 40, 20), palette)
	var buf bytes.Buffer
	if err := gif.Encode(&buf, img, nil); err != nil {
		t.Fatalf("failed to encode gif: %v", err)
	}

	res, err := Preprocessor{}.Preprocess(buf.Bytes(), "small.gif")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ContentType != "image/gif" {
		t.Fatalf("unexpected content type: %s", res.ContentType)
	}
}

func TestPreprocessCorruptImage(t *testing.T) {
	_, err := Preprocessor{}.Preprocess([]byte("definitely not an image"), "logo.png")
	if !errors.Is(err, ErrPreprocessingFailed) {
		t.Fatalf("expected ErrPreprocessingFailed, got %v", err)
	}
}

func TestPreprocessRejectsOversizedDimensions(t *testing.T) {
	var buf bytes.Buffer
	if err := gif.Encode(&buf, gradient(2, 2), nil); err != nil {
		t.Fatalf("failed to encode gif: %v", err)
	}
	raw := buf.Bytes()
	// Logical screen width and height, little-endian, follow the 6-byte signature.
	raw[6], raw[7], raw[8], raw[9] = 0xff, 0xff, 0xff, 0xff

	_, err := Preprocessor{}.Preprocess(raw, "bomb.gif")
	if !errors.Is(err, ErrPreprocessingFailed) {
		t.Fatalf("expected ErrPreprocessingFailed, got %v", err)
	}
	if !strings.Contains(err.Error(), "65535x65535") {
		t.Fatalf("expected rejection from header dimensions, got %v", err)
	}
}

func TestPreprocessRejectsUnknownExtension(t *testing.T) {
	_, err := Preprocessor{}.Preprocess(encodeJPEG(t, gradient(10, 10)), "notes.txt")
	if !errors.Is(err, ErrPreprocessingFailed) {
		t.Fatalf("expected ErrPreprocessingFailed, got %v", err)
	}
}

func TestAllowed(t *testing.T) {
	for _, name := range []string{"a.png", "b.JPG", "c.jpeg", "d.gif"} {
		if !Allowed(name) {
			t.Fatalf("expected %s to be allowed", name)
		}
	}
	for _, name := range []string{"a.txt", "b", "c.webp", ".png.exe"} {
		if Allowed(name) {
			t.Fatalf("expected %s to be rejected", name)
		}
	}
}
