// Package backdrop provides object-aware background inpainting for
// product photos.
//
// A photo is composed onto a white canvas of the target size, the subject
// is located with an object-detection model, segmented with a promptable
// segmentation model, and the inverted subject mask plus a text prompt
// are handed to a diffusion inpainting backend that regenerates the
// background.
//
// Basic usage:
//
//	package main
//
//	import (
//		"context"
//		"log"
//
//		"github.com/prodshot/backdrop"
//		"github.com/prodshot/backdrop/pkg/diffusers"
//		"github.com/prodshot/backdrop/pkg/pipeline"
//		"github.com/prodshot/backdrop/pkg/sam"
//		"github.com/prodshot/backdrop/pkg/types"
//		"github.com/prodshot/backdrop/pkg/yolod"
//	)
//
//	func main() {
//		detector, _ := yolod.NewClient("http://localhost:8000")
//		segmenter, _ := sam.NewClient("http://localhost:8001")
//		inpainter, _ := diffusers.NewClient("http://localhost:8002")
//
//		bd, err := backdrop.New(pipeline.Config{
//			TargetWidth:       1024,
//			TargetHeight:      1024,
//			ROIScale:          0.6,
//			DetectionModel:    "yolov8s",
//			SegmentationModel: "facebook/sam-vit-base",
//			DiffusionModel:    "diffusers/stable-diffusion-xl-1.0-inpainting-0.1",
//		}, detector, segmenter, inpainter)
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		_, err = bd.ProcessFile(context.Background(), "product.jpg", "out/output.jpg", "out/mask.jpg",
//			types.InpaintParams{
//				Prompt:            "product on a marble table, soft window light",
//				NegativePrompt:    "blurry, low quality",
//				NumInferenceSteps: 50,
//				Strength:          0.8,
//				GuidanceScale:     7.5,
//				NumImages:         1,
//			})
//		if err != nil {
//			log.Fatal(err)
//		}
//	}
//
// The package is organized around three capability interfaces (Detector,
// Segmenter, Inpainter in pkg/client) with interchangeable backends, so
// the geometry and masking logic stays testable with deterministic fakes.
//
// A Backdrop handle runs one image at a time; it is not safe for
// concurrent use. Give each goroutine its own handle or serialize access.
package backdrop

import (
	"context"
	"image"

	"github.com/prodshot/backdrop/pkg/client"
	"github.com/prodshot/backdrop/pkg/pipeline"
	"github.com/prodshot/backdrop/pkg/types"
)

// Version of the backdrop library
const Version = "1.0.0"

// Backdrop is the high-level handle over a configured pipeline.
type Backdrop struct {
	pipeline *pipeline.Pipeline
}

// New validates cfg and builds a Backdrop over the given backends.
func New(cfg pipeline.Config, d client.Detector, s client.Segmenter, i client.Inpainter) (*Backdrop, error) {
	p, err := pipeline.New(cfg, d, s, i)
	if err != nil {
		return nil, err
	}
	return &Backdrop{pipeline: p}, nil
}

// Process runs the full pipeline over an already-loaded image.
func (b *Backdrop) Process(ctx context.Context, img image.Image, params types.InpaintParams) (*pipeline.Result, error) {
	return b.pipeline.Run(ctx, img, params)
}

// ProcessFile loads an image from a path or URL, runs the pipeline, and
// writes the synthesized image(s) and the inverted mask.
func (b *Backdrop) ProcessFile(ctx context.Context, inputPath, outputPath, maskPath string, params types.InpaintParams) (*pipeline.Result, error) {
	return b.pipeline.RunFile(ctx, inputPath, outputPath, maskPath, params, 90)
}

// GetVersion returns the library version.
func GetVersion() string {
	return Version
}
