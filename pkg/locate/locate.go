// Package locate finds the primary subject of an image using an
// object-detection backend.
package locate

import (
	"context"
	"fmt"
	"image"

	"github.com/prodshot/backdrop/pkg/client"
	"github.com/prodshot/backdrop/pkg/types"
)

// Locator wraps a detection backend and applies the subject selection
// policy: when a model reports multiple objects the highest-confidence
// detection wins. Ties keep the earlier detection.
type Locator struct {
	client client.Detector
}

// New creates a Locator backed by the given detection client.
func New(c client.Detector) *Locator {
	return &Locator{client: c}
}

// Locate runs the detection model over img and returns the primary
// subject. Returns types.ErrNoDetection (wrapped) when the model reports
// zero boxes; the caller decides the fallback policy.
func (l *Locator) Locate(ctx context.Context, model string, img image.Image) (types.Detection, error) {
	bounds := img.Bounds()
	imgW, imgH := bounds.Dx(), bounds.Dy()
	if imgW <= 0 || imgH <= 0 {
		return types.Detection{}, fmt.Errorf("locate: source %dx%d: %w", imgW, imgH, types.ErrInvalidDimensions)
	}

	detections, err := l.client.Detect(ctx, model, img)
	if err != nil {
		return types.Detection{}, fmt.Errorf("locate: detection failed: %w", err)
	}
	if len(detections) == 0 {
		return types.Detection{}, fmt.Errorf("locate: model %q: %w", model, types.ErrNoDetection)
	}

	best := detections[0]
	for _, d := range detections[1:] {
		if d.Confidence > best.Confidence {
			best = d
		}
	}

	best.Box = best.Box.Clamp(imgW, imgH)
	if !best.Box.Valid() {
		return types.Detection{}, fmt.Errorf("locate: degenerate box %v from model %q: %w", best.Box, model, types.ErrInvalidDimensions)
	}
	return best, nil
}
