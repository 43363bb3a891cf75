// Package mask turns segmentation model output into binary inpainting
// masks. A subject mask marks the subject with 255; the inverted mask
// marks the background, which is the region the inpainting model is
// allowed to repaint.
package mask

import (
	"context"
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	"github.com/prodshot/backdrop/pkg/client"
	"github.com/prodshot/backdrop/pkg/types"
)

// BinaryThreshold is the fixed luminance cutoff used to binarize model
// confidence maps: values >= 128 (0.5 in normalized terms) become subject.
const BinaryThreshold = 128

// Synthesizer wraps a promptable segmentation backend and applies the
// candidate selection policy: segmentation models rank masks by predicted
// IoU, and the highest-scoring candidate wins.
type Synthesizer struct {
	client client.Segmenter
}

// NewSynthesizer creates a Synthesizer backed by the given segmentation
// client.
func NewSynthesizer(c client.Segmenter) *Synthesizer {
	return &Synthesizer{client: c}
}

// Synthesize segments the subject inside box and returns a binary subject
// mask with exactly the same pixel dimensions as img, values in {0, 255}.
// The raw model mask is resized back from the model's internal resolution
// before thresholding.
func (s *Synthesizer) Synthesize(ctx context.Context, model string, img image.Image, box types.BoundingBox) (*image.Gray, error) {
	bounds := img.Bounds()
	imgW, imgH := bounds.Dx(), bounds.Dy()
	if imgW <= 0 || imgH <= 0 {
		return nil, fmt.Errorf("mask: source %dx%d: %w", imgW, imgH, types.ErrInvalidDimensions)
	}
	if !box.Valid() {
		return nil, fmt.Errorf("mask: box %v: %w", box, types.ErrInvalidDimensions)
	}

	candidates, err := s.client.Segment(ctx, model, img, box)
	if err != nil {
		return nil, fmt.Errorf("mask: segmentation failed: %w", err)
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("mask: model %q returned no candidates", model)
	}

	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.Score > best.Score {
			best = c
		}
	}
	if best.Mask == nil {
		return nil, fmt.Errorf("mask: model %q returned nil mask", model)
	}

	return fitToSize(best.Mask, imgW, imgH), nil
}

// fitToSize resizes a raw model mask to (w, h) and binarizes it.
func fitToSize(m *image.Gray, w, h int) *image.Gray {
	mb := m.Bounds()
	if mb.Dx() != w || mb.Dy() != h {
		// Nearest neighbor keeps mask edges hard; interpolation artifacts
		// are removed by the threshold below either way.
		resized := imaging.Resize(m, w, h, imaging.NearestNeighbor)
		return Threshold(resizedToGray(resized), BinaryThreshold)
	}
	return Threshold(m, BinaryThreshold)
}

func resizedToGray(img *image.NRGBA) *image.Gray {
	b := img.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		src := img.PixOffset(b.Min.X, b.Min.Y+y)
		dst := y * out.Stride
		for x := 0; x < b.Dx(); x++ {
			// Resizing a grayscale source leaves R==G==B; take R.
			out.Pix[dst+x] = img.Pix[src+x*4]
		}
	}
	return out
}

// Threshold binarizes a mask: values >= cutoff become 255, the rest 0.
func Threshold(m *image.Gray, cutoff uint8) *image.Gray {
	b := m.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		src := m.PixOffset(b.Min.X, b.Min.Y+y)
		dst := y * out.Stride
		for x := 0; x < b.Dx(); x++ {
			if m.Pix[src+x] >= cutoff {
				out.Pix[dst+x] = 255
			}
		}
	}
	return out
}

// Invert replaces every pixel value v with 255-v, turning a subject mask
// into a background (editable region) mask. Pure and total: applying it
// twice returns the original mask.
func Invert(m *image.Gray) (*image.Gray, error) {
	b := m.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, fmt.Errorf("mask: invert %dx%d: %w", b.Dx(), b.Dy(), types.ErrInvalidDimensions)
	}
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		src := m.PixOffset(b.Min.X, b.Min.Y+y)
		dst := y * out.Stride
		for x := 0; x < b.Dx(); x++ {
			out.Pix[dst+x] = 255 - m.Pix[src+x]
		}
	}
	return out, nil
}
