package mask

import (
	"context"
	"errors"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prodshot/backdrop/pkg/types"
)

// fakeSegmenter returns canned candidates or a canned error.
type fakeSegmenter struct {
	candidates []types.MaskCandidate
	err        error
}

func (f *fakeSegmenter) Segment(_ context.Context, _ string, _ image.Image, _ types.BoundingBox) ([]types.MaskCandidate, error) {
	return f.candidates, f.err
}

// grayWithCenterSquare builds a mask with a filled square in the middle.
func grayWithCenterSquare(w, h int, v uint8) *image.Gray {
	m := image.NewGray(image.Rect(0, 0, w, h))
	for y := h / 4; y < 3*h/4; y++ {
		for x := w / 4; x < 3*w/4; x++ {
			m.Pix[y*m.Stride+x] = v
		}
	}
	return m
}

func grayFilled(w, h int, v uint8) *image.Gray {
	m := image.NewGray(image.Rect(0, 0, w, h))
	for i := range m.Pix {
		m.Pix[i] = v
	}
	return m
}

func TestInvertRoundTrip(t *testing.T) {
	m := image.NewGray(image.Rect(0, 0, 64, 48))
	for i := range m.Pix {
		m.Pix[i] = uint8((i * 7) % 256)
	}

	inverted, err := Invert(m)
	require.NoError(t, err)

	for y := 0; y < 48; y++ {
		for x := 0; x < 64; x++ {
			want := 255 - m.GrayAt(x, y).Y
			require.Equal(t, want, inverted.GrayAt(x, y).Y, "pixel (%d,%d)", x, y)
		}
	}

	twice, err := Invert(inverted)
	require.NoError(t, err)
	assert.Equal(t, m.Pix, twice.Pix)
}

func TestInvertZeroSize(t *testing.T) {
	_, err := Invert(image.NewGray(image.Rect(0, 0, 0, 0)))
	assert.ErrorIs(t, err, types.ErrInvalidDimensions)
}

func TestThreshold(t *testing.T) {
	m := image.NewGray(image.Rect(0, 0, 4, 1))
	m.Pix = []uint8{0, 127, 128, 255}

	out := Threshold(m, BinaryThreshold)
	assert.Equal(t, []uint8{0, 0, 255, 255}, out.Pix)
}

func TestSynthesizeResizesToSourceDimensions(t *testing.T) {
	// Model works at 256x256 internally; output must match the source.
	candidate := grayWithCenterSquare(256, 256, 255)
	s := NewSynthesizer(&fakeSegmenter{candidates: []types.MaskCandidate{{Score: 0.9, Mask: candidate}}})

	src := image.NewRGBA(image.Rect(0, 0, 1024, 1024))
	box := types.BoundingBox{XMin: 256, YMin: 256, XMax: 768, YMax: 768}

	out, err := s.Synthesize(context.Background(), "sam", src, box)
	require.NoError(t, err)

	assert.Equal(t, 1024, out.Bounds().Dx())
	assert.Equal(t, 1024, out.Bounds().Dy())

	// Binary output only.
	for _, v := range out.Pix {
		require.True(t, v == 0 || v == 255, "non-binary pixel value %d", v)
	}

	assert.EqualValues(t, 255, out.GrayAt(512, 512).Y)
	assert.EqualValues(t, 0, out.GrayAt(10, 10).Y)
}

func TestSynthesizePicksHighestScore(t *testing.T) {
	// The all-white candidate scores higher and must win over the first.
	s := NewSynthesizer(&fakeSegmenter{candidates: []types.MaskCandidate{
		{Score: 0.3, Mask: grayFilled(64, 64, 0)},
		{Score: 0.95, Mask: grayFilled(64, 64, 255)},
		{Score: 0.5, Mask: grayFilled(64, 64, 0)},
	}})

	src := image.NewRGBA(image.Rect(0, 0, 64, 64))
	out, err := s.Synthesize(context.Background(), "sam", src, types.BoundingBox{XMin: 0, YMin: 0, XMax: 64, YMax: 64})
	require.NoError(t, err)

	assert.EqualValues(t, 255, out.GrayAt(32, 32).Y)
}

func TestSynthesizeNoCandidates(t *testing.T) {
	s := NewSynthesizer(&fakeSegmenter{candidates: nil})
	src := image.NewRGBA(image.Rect(0, 0, 64, 64))

	_, err := s.Synthesize(context.Background(), "sam", src, types.BoundingBox{XMin: 0, YMin: 0, XMax: 64, YMax: 64})
	assert.Error(t, err)
}

func TestSynthesizeBackendError(t *testing.T) {
	backendErr := errors.New("connection refused")
	s := NewSynthesizer(&fakeSegmenter{err: backendErr})
	src := image.NewRGBA(image.Rect(0, 0, 64, 64))

	_, err := s.Synthesize(context.Background(), "sam", src, types.BoundingBox{XMin: 0, YMin: 0, XMax: 64, YMax: 64})
	assert.ErrorIs(t, err, backendErr)
}

func TestSynthesizeInvalidBox(t *testing.T) {
	s := NewSynthesizer(&fakeSegmenter{})
	src := image.NewRGBA(image.Rect(0, 0, 64, 64))

	_, err := s.Synthesize(context.Background(), "sam", src, types.BoundingBox{XMin: 10, YMin: 10, XMax: 10, YMax: 20})
	assert.ErrorIs(t, err, types.ErrInvalidDimensions)
}
