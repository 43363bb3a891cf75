package types

import (
	"errors"
	"fmt"
	"image"
)

// Pipeline error kinds. Every stage fails fast and surfaces one of these
// (wrapped with context); no stage retries internally.
var (
	// ErrInvalidDimensions reports a zero or negative width/height anywhere
	// in the pipeline.
	ErrInvalidDimensions = errors.New("invalid dimensions")

	// ErrNoDetection reports that the detection model returned zero boxes.
	// The pipeline defines no fallback; the caller decides what to do.
	ErrNoDetection = errors.New("no subject detected")

	// ErrDimensionMismatch reports that the image and mask shapes disagree
	// before inpainting.
	ErrDimensionMismatch = errors.New("image and mask dimensions mismatch")

	// ErrModelUnavailable reports that a named checkpoint could not be
	// loaded or reached. Fatal to the run.
	ErrModelUnavailable = errors.New("model unavailable")
)

// BoundingBox is an axis-aligned rectangle in source-image pixel
// coordinates. A valid box satisfies XMin < XMax and YMin < YMax.
type BoundingBox struct {
	XMin float64 `json:"x_min"`
	YMin float64 `json:"y_min"`
	XMax float64 `json:"x_max"`
	YMax float64 `json:"y_max"`
}

// Valid reports whether the box has positive extent on both axes.
func (b BoundingBox) Valid() bool {
	return b.XMin < b.XMax && b.YMin < b.YMax
}

// Width returns the horizontal extent of the box.
func (b BoundingBox) Width() float64 { return b.XMax - b.XMin }

// Height returns the vertical extent of the box.
func (b BoundingBox) Height() float64 { return b.YMax - b.YMin }

// Clamp restricts the box to the given image dimensions.
func (b BoundingBox) Clamp(imgW, imgH int) BoundingBox {
	return BoundingBox{
		XMin: clamp(b.XMin, 0, float64(imgW)),
		YMin: clamp(b.YMin, 0, float64(imgH)),
		XMax: clamp(b.XMax, 0, float64(imgW)),
		YMax: clamp(b.YMax, 0, float64(imgH)),
	}
}

// Rect converts the box to an image.Rectangle, rounding to the nearest
// pixel.
func (b BoundingBox) Rect() image.Rectangle {
	return image.Rect(
		int(b.XMin+0.5), int(b.YMin+0.5),
		int(b.XMax+0.5), int(b.YMax+0.5),
	)
}

func (b BoundingBox) String() string {
	return fmt.Sprintf("[%.1f,%.1f,%.1f,%.1f]", b.XMin, b.YMin, b.XMax, b.YMax)
}

// Detection is a single detected object: a label, a confidence in [0,1]
// and a bounding box in pixel coordinates.
type Detection struct {
	Label      string      `json:"label"`
	Confidence float64     `json:"confidence"`
	Box        BoundingBox `json:"box"`
}

// MaskCandidate is one segmentation hypothesis returned by a promptable
// segmentation model, scored by predicted IoU. The mask may be at the
// model's internal resolution rather than the source image's.
type MaskCandidate struct {
	Score float64
	Mask  *image.Gray
}

// InpaintParams are the sampling parameters handed to the inpainting
// backend. The pipeline passes them through untouched.
type InpaintParams struct {
	Prompt            string  `json:"prompt"`
	NegativePrompt    string  `json:"negative_prompt"`
	NumInferenceSteps int     `json:"num_inference_steps"`
	Strength          float64 `json:"strength"`
	GuidanceScale     float64 `json:"guidance_scale"`
	NumImages         int     `json:"num_images"`
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
