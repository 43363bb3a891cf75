// Package pipeline wires the preparation stages and the inpainting
// backend into one strict-sequence run: compose the photo onto a white
// canvas, locate the subject, segment it, invert the mask, and hand
// image + mask + prompt to the diffusion backend.
package pipeline

import (
	"context"
	"fmt"
	"image"
	"path/filepath"
	"strings"

	"github.com/prodshot/backdrop/pkg/canvas"
	"github.com/prodshot/backdrop/pkg/client"
	"github.com/prodshot/backdrop/pkg/imgio"
	"github.com/prodshot/backdrop/pkg/locate"
	"github.com/prodshot/backdrop/pkg/mask"
	"github.com/prodshot/backdrop/pkg/types"
)

// Config holds the geometry and model identifiers for one pipeline.
// Constructed once, immutable, shared read-only across stages.
type Config struct {
	TargetWidth       int
	TargetHeight      int
	ROIScale          float64
	DetectionModel    string
	SegmentationModel string
	DiffusionModel    string
}

func (c Config) validate() error {
	if c.TargetWidth <= 0 || c.TargetHeight <= 0 {
		return fmt.Errorf("pipeline: target %dx%d: %w", c.TargetWidth, c.TargetHeight, types.ErrInvalidDimensions)
	}
	if c.ROIScale <= 0 || c.ROIScale > 1 {
		return fmt.Errorf("pipeline: roi scale %v outside (0,1]: %w", c.ROIScale, types.ErrInvalidDimensions)
	}
	if c.DetectionModel == "" || c.SegmentationModel == "" || c.DiffusionModel == "" {
		return fmt.Errorf("pipeline: detection, segmentation and diffusion model names are required")
	}
	return nil
}

// Pipeline is a caller-owned handle over the three model backends. It is
// not safe for concurrent use: run one image at a time per Pipeline, or
// give each goroutine its own handle.
type Pipeline struct {
	cfg         Config
	locator     *locate.Locator
	synthesizer *mask.Synthesizer
	inpainter   client.Inpainter
}

// New validates cfg and builds a Pipeline over the given backends.
func New(cfg Config, d client.Detector, s client.Segmenter, i client.Inpainter) (*Pipeline, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if d == nil || s == nil || i == nil {
		return nil, fmt.Errorf("pipeline: all three backends are required")
	}
	return &Pipeline{
		cfg:         cfg,
		locator:     locate.New(d),
		synthesizer: mask.NewSynthesizer(s),
		inpainter:   i,
	}, nil
}

// Result collects everything one run produced. Images holds the
// synthesized outputs (params.NumImages of them).
type Result struct {
	Images       []image.Image
	Extended     *image.NRGBA
	SubjectMask  *image.Gray
	InvertedMask *image.Gray
	Detection    types.Detection
	Placement    canvas.Placement
}

// Run executes the pipeline stages in strict sequence. Any stage failure
// aborts the whole run; nothing is retried and no partial output is kept.
func (p *Pipeline) Run(ctx context.Context, img image.Image, params types.InpaintParams) (*Result, error) {
	extended, placement, err := canvas.Extend(img, p.cfg.TargetWidth, p.cfg.TargetHeight, p.cfg.ROIScale)
	if err != nil {
		return nil, err
	}

	detection, err := p.locator.Locate(ctx, p.cfg.DetectionModel, extended)
	if err != nil {
		return nil, err
	}

	subjectMask, err := p.synthesizer.Synthesize(ctx, p.cfg.SegmentationModel, extended, detection.Box)
	if err != nil {
		return nil, err
	}

	inverted, err := mask.Invert(subjectMask)
	if err != nil {
		return nil, err
	}

	eb, mb := extended.Bounds(), inverted.Bounds()
	if eb.Dx() != mb.Dx() || eb.Dy() != mb.Dy() {
		return nil, fmt.Errorf("pipeline: image %dx%d vs mask %dx%d: %w",
			eb.Dx(), eb.Dy(), mb.Dx(), mb.Dy(), types.ErrDimensionMismatch)
	}

	if params.NumImages < 1 {
		params.NumImages = 1
	}
	images, err := p.inpainter.Inpaint(ctx, p.cfg.DiffusionModel, extended, inverted, params)
	if err != nil {
		return nil, fmt.Errorf("pipeline: inpainting failed: %w", err)
	}
	if len(images) == 0 {
		return nil, fmt.Errorf("pipeline: inpainting backend returned no images")
	}

	return &Result{
		Images:       images,
		Extended:     extended,
		SubjectMask:  subjectMask,
		InvertedMask: inverted,
		Detection:    detection,
		Placement:    placement,
	}, nil
}

// RunFile loads an image from inputPath, runs the pipeline, and writes
// the synthesized image(s) to outputPath and the inverted mask to
// maskPath. With NumImages > 1 the extra outputs get an index suffix
// (output.jpg, output_2.jpg, ...). Files are written only after the whole
// run succeeded.
func (p *Pipeline) RunFile(ctx context.Context, inputPath, outputPath, maskPath string, params types.InpaintParams, quality int) (*Result, error) {
	img, err := imgio.LoadImageSmart(inputPath)
	if err != nil {
		return nil, fmt.Errorf("pipeline: failed to load %s: %w", inputPath, err)
	}

	res, err := p.Run(ctx, img, params)
	if err != nil {
		return nil, err
	}

	for i, out := range res.Images {
		path := outputPath
		if i > 0 {
			path = indexedPath(outputPath, i+1)
		}
		if err := imgio.SaveImage(out, path, formatFromPath(path), quality, false); err != nil {
			return nil, fmt.Errorf("pipeline: failed to save %s: %w", path, err)
		}
	}
	if err := imgio.SaveImage(res.InvertedMask, maskPath, formatFromPath(maskPath), quality, false); err != nil {
		return nil, fmt.Errorf("pipeline: failed to save %s: %w", maskPath, err)
	}
	return res, nil
}

func indexedPath(path string, n int) string {
	ext := filepath.Ext(path)
	return fmt.Sprintf("%s_%d%s", strings.TrimSuffix(path, ext), n, ext)
}

func formatFromPath(path string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if ext == "" {
		return "jpg"
	}
	return ext
}
