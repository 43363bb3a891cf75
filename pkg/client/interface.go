// Package client defines the capability interfaces for the model backends
// the pipeline orchestrates. The pipeline only depends on these interfaces
// so its geometry and masking logic can be tested with deterministic fakes.
package client

import (
	"context"
	"image"

	"github.com/prodshot/backdrop/pkg/types"
)

// Detector runs an object-detection model over an image and returns zero
// or more detections in pixel coordinates of the given image.
type Detector interface {
	Detect(ctx context.Context, model string, img image.Image) ([]types.Detection, error)
}

// Segmenter runs a promptable segmentation model conditioned on a single
// bounding box and returns one or more scored mask candidates. Candidates
// may be at the model's internal resolution.
type Segmenter interface {
	Segment(ctx context.Context, model string, img image.Image, box types.BoundingBox) ([]types.MaskCandidate, error)
}

// Inpainter runs a diffusion inpainting model. The mask marks the editable
// region (255 = regenerate, 0 = keep). Image and mask must share identical
// pixel dimensions. Returns params.NumImages synthesized images.
type Inpainter interface {
	Inpaint(ctx context.Context, model string, img image.Image, mask *image.Gray, params types.InpaintParams) ([]image.Image, error)
}

// Captioner produces a short natural-language caption for an image.
type Captioner interface {
	Caption(ctx context.Context, model string, img image.Image) (string, error)
}
