// Package canvas centers a source image on a blank target-size canvas
// while preserving its aspect ratio. This is the first pipeline stage:
// product photos are composed onto a white background before detection so
// the diffusion model always works on a fixed-size frame.
package canvas

import (
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"

	"github.com/prodshot/backdrop/pkg/types"
)

// Placement describes where the resized source landed on the canvas.
type Placement struct {
	Width   int
	Height  int
	OffsetX int
	OffsetY int
}

// Extend resizes img to fit (targetWidth, targetHeight) preserving aspect
// ratio, scales it down further by roiScale, and pastes it centered on a
// white canvas of exactly the target dimensions.
//
// The fitted size is scale = min(tw/ow, th/oh); the pasted region is
// (ow*scale*roiScale, oh*scale*roiScale), integer-truncated. With
// roiScale <= 1 the pasted region never crosses the canvas edge.
func Extend(img image.Image, targetWidth, targetHeight int, roiScale float64) (*image.NRGBA, Placement, error) {
	if img == nil {
		return nil, Placement{}, fmt.Errorf("canvas: nil image: %w", types.ErrInvalidDimensions)
	}
	bounds := img.Bounds()
	origW, origH := bounds.Dx(), bounds.Dy()
	if origW <= 0 || origH <= 0 {
		return nil, Placement{}, fmt.Errorf("canvas: source %dx%d: %w", origW, origH, types.ErrInvalidDimensions)
	}
	if targetWidth <= 0 || targetHeight <= 0 {
		return nil, Placement{}, fmt.Errorf("canvas: target %dx%d: %w", targetWidth, targetHeight, types.ErrInvalidDimensions)
	}
	if roiScale <= 0 || roiScale > 1 {
		return nil, Placement{}, fmt.Errorf("canvas: roi scale %v outside (0,1]: %w", roiScale, types.ErrInvalidDimensions)
	}

	scale := min(float64(targetWidth)/float64(origW), float64(targetHeight)/float64(origH))
	newW := int(float64(origW) * scale * roiScale)
	newH := int(float64(origH) * scale * roiScale)
	// Truncation can hit zero for degenerate sources; keep at least one pixel.
	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}

	resized := imaging.Resize(img, newW, newH, imaging.Lanczos)

	dst := imaging.New(targetWidth, targetHeight, color.White)
	offsetX := (targetWidth - newW) / 2
	offsetY := (targetHeight - newH) / 2
	dst = imaging.Paste(dst, resized, image.Pt(offsetX, offsetY))

	return dst, Placement{Width: newW, Height: newH, OffsetX: offsetX, OffsetY: offsetY}, nil
}
