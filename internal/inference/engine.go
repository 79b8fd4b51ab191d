// Package inference defines the contract of the black-box logo classifier.
package inference

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/imyashpatil/Fake-Logo-Detection/internal/imageprocessor"
)

// ErrInvalidScore is returned when the engine answers outside [0,1].
var ErrInvalidScore = errors.New("invalid classifier score")

// Engine scores a preprocessed tensor. Implementations must be safe for
// concurrent use; one handle is shared by all requests.
type Engine interface {
	Predict(ctx context.Context, tensor imageprocessor.Tensor) (float64, error)
}

// EngineFunc adapts a function to the Engine interface.
type EngineFunc func(ctx context.Context, tensor imageprocessor.Tensor) (float64, error)

// Predict calls f.
func (f EngineFunc) Predict(ctx context.Context, tensor imageprocessor.Tensor) (float64, error) {
	return f(ctx, tensor)
}

// ValidateScore rejects NaN, infinities and values outside [0,1].
func ValidateScore(score float64) error {
	if math.IsNaN(score) || math.IsInf(score, 0) || score < 0 || score > 1 {
		return fmt.Errorf("%w: %v", ErrInvalidScore, score)
	}
	return nil
}

// EncodeTensor serializes tensor values as little-endian float32.
func EncodeTensor(t imageprocessor.Tensor) []byte {
	buf := make([]byte, 4*len(t.Data))
	for i, v := range t.Data {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

// DecodeTensor is the inverse of EncodeTensor for the given dimensions.
func DecodeTensor(b []byte, height, width, channels int) (imageprocessor.Tensor, error) {
	n := height * width * channels
	if n <= 0 || len(b) != 4*n {
		return imageprocessor.Tensor{}, fmt.Errorf("tensor payload of %d bytes does not match shape %dx%dx%d", len(b), height, width, channels)
	}
	t := imageprocessor.Tensor{Height: height, Width: width, Channels: channels, Data: make([]float32, n)}
	for i := range t.Data {
		t.Data[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return t, nil
}
