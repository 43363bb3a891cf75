package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/prodshot/backdrop/internal/config"
	"github.com/prodshot/backdrop/internal/utils"
	"github.com/prodshot/backdrop/pkg/client"
	"github.com/prodshot/backdrop/pkg/diffusers"
	"github.com/prodshot/backdrop/pkg/imgio"
	"github.com/prodshot/backdrop/pkg/ollama"
	"github.com/prodshot/backdrop/pkg/pipeline"
	"github.com/prodshot/backdrop/pkg/sam"
	"github.com/prodshot/backdrop/pkg/types"
	"github.com/prodshot/backdrop/pkg/yolod"
)

func main() {
	var in, outDir, cfgPath string
	var prompt, negative string
	var steps, numImages int
	var strength, guidance float64
	var width, height int
	var roi float64
	var detModel, segModel, diffModel string
	var detector, ollamaURL, detURL, segURL, diffURL string
	var ext string
	var quality int
	var debug bool

	flag.StringVar(&in, "in", "", "input image path or URL (jpg/png/webp)")
	flag.StringVar(&outDir, "out", "", "output directory (default from config)")
	flag.StringVar(&cfgPath, "config", "", "config file path (JSON); flags override it")

	flag.StringVar(&prompt, "prompt", "", "background prompt")
	flag.StringVar(&negative, "negative", "", "negative prompt")
	flag.IntVar(&steps, "steps", 0, "number of inference steps")
	flag.Float64Var(&strength, "strength", 0, "denoising strength (0..1)")
	flag.Float64Var(&guidance, "guidance", 0, "guidance scale")
	flag.IntVar(&numImages, "n", 0, "number of output images")

	flag.IntVar(&width, "width", 0, "target canvas width")
	flag.IntVar(&height, "height", 0, "target canvas height")
	flag.Float64Var(&roi, "roi", 0, "subject scale on the canvas (0..1]")

	flag.StringVar(&detModel, "detmodel", "", "detection model name")
	flag.StringVar(&segModel, "segmodel", "", "segmentation model name")
	flag.StringVar(&diffModel, "diffmodel", "", "diffusion inpainting model name")

	flag.StringVar(&detector, "detector", "", "detection backend: yolod or ollama")
	flag.StringVar(&ollamaURL, "ollama-url", "", "ollama server URL")
	flag.StringVar(&detURL, "det-url", "", "detection server URL")
	flag.StringVar(&segURL, "seg-url", "", "segmentation server URL")
	flag.StringVar(&diffURL, "diff-url", "", "inpainting server URL")

	flag.StringVar(&ext, "ext", "", "output format: jpg|png|webp")
	flag.IntVar(&quality, "quality", 0, "JPEG/WebP output quality (1-100)")
	flag.BoolVar(&debug, "debug", false, "write a detection/mask overlay image")

	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	if in == "" {
		log.Fatal().Msgf("usage: %s -in input.jpg|URL [-config config.json] [-prompt \"...\"] [-out outdir]", filepath.Base(os.Args[0]))
	}

	if cfgPath == "" && utils.FileExists(config.GetConfigPath()) {
		cfgPath = config.GetConfigPath()
	}
	cfg := config.Default()
	if cfgPath != "" {
		loaded, err := config.LoadFromFile(cfgPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfgPath).Msg("failed to load config")
		}
		cfg = loaded
	}
	applyFlags(cfg, flagOverrides{
		prompt: prompt, negative: negative, steps: steps, strength: strength,
		guidance: guidance, numImages: numImages, width: width, height: height,
		roi: roi, detModel: detModel, segModel: segModel, diffModel: diffModel,
		detector: detector, ollamaURL: ollamaURL, detURL: detURL, segURL: segURL,
		diffURL: diffURL, outDir: outDir, ext: ext, quality: quality,
	})
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	if err := utils.EnsureDir(cfg.Output.Dir); err != nil {
		log.Fatal().Err(err).Str("dir", cfg.Output.Dir).Msg("failed to create output directory")
	}

	det, err := buildDetector(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create detection client")
	}
	seg, err := sam.NewClient(cfg.Backends.SegmentationURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create segmentation client")
	}
	inp, err := diffusers.NewClient(cfg.Backends.DiffusionURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create inpainting client")
	}

	p, err := pipeline.New(pipeline.Config{
		TargetWidth:       cfg.Pipeline.TargetWidth,
		TargetHeight:      cfg.Pipeline.TargetHeight,
		ROIScale:          cfg.Pipeline.ROIScale,
		DetectionModel:    cfg.Models.Detection,
		SegmentationModel: cfg.Models.Segmentation,
		DiffusionModel:    cfg.Models.Diffusion,
	}, det, seg, inp)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build pipeline")
	}

	params := types.InpaintParams{
		Prompt:            cfg.Inpaint.Prompt,
		NegativePrompt:    cfg.Inpaint.NegativePrompt,
		NumInferenceSteps: cfg.Inpaint.NumInferenceSteps,
		Strength:          cfg.Inpaint.Strength,
		GuidanceScale:     cfg.Inpaint.GuidanceScale,
		NumImages:         cfg.Inpaint.NumImages,
	}

	format := strings.ToLower(cfg.Output.Format)
	outputPath := utils.GenerateOutputFilename(in, cfg.Output.Dir, "", "_output", format)
	maskPath := utils.GenerateOutputFilename(in, cfg.Output.Dir, "", "_mask", format)

	log.Info().
		Str("in", in).
		Int("width", cfg.Pipeline.TargetWidth).
		Int("height", cfg.Pipeline.TargetHeight).
		Float64("roi", cfg.Pipeline.ROIScale).
		Str("detector", cfg.Backends.Detector).
		Msg("running pipeline")

	res, err := p.RunFile(context.Background(), in, outputPath, maskPath, params, cfg.Output.Quality)
	if err != nil {
		log.Fatal().Err(err).Msg("pipeline failed")
	}

	log.Info().
		Str("subject", res.Detection.Label).
		Float64("confidence", res.Detection.Confidence).
		Str("box", res.Detection.Box.String()).
		Int("images", len(res.Images)).
		Msg("done")
	log.Info().Str("path", outputPath).Msg("wrote output")
	log.Info().Str("path", maskPath).Msg("wrote mask")

	if debug {
		overlay := imgio.DrawDetectionOverlay(res.Extended, res.Detection.Box, res.InvertedMask)
		overlayPath := filepath.Join(cfg.Output.Dir, "debug_overlay.png")
		if err := imgio.SaveImage(overlay, overlayPath, "png", cfg.Output.Quality, false); err != nil {
			log.Warn().Err(err).Msg("debug overlay save failed")
		} else {
			log.Info().Str("path", overlayPath).Msg("wrote debug overlay")
		}
	}
}

func buildDetector(cfg *config.Config) (client.Detector, error) {
	switch cfg.Backends.Detector {
	case "ollama":
		return ollama.NewClient(cfg.Backends.OllamaURL)
	case "yolod":
		return yolod.NewClient(cfg.Backends.DetectionURL)
	default:
		return nil, fmt.Errorf("unknown detection backend: %s (use 'yolod' or 'ollama')", cfg.Backends.Detector)
	}
}

type flagOverrides struct {
	prompt, negative                    string
	steps, numImages                    int
	strength, guidance                  float64
	width, height                       int
	roi                                 float64
	detModel, segModel, diffModel       string
	detector, ollamaURL, detURL, segURL string
	diffURL, outDir, ext                string
	quality                             int
}

// applyFlags overlays non-zero flag values onto the loaded config.
func applyFlags(cfg *config.Config, f flagOverrides) {
	if f.prompt != "" {
		cfg.Inpaint.Prompt = f.prompt
	}
	if f.negative != "" {
		cfg.Inpaint.NegativePrompt = f.negative
	}
	if f.steps > 0 {
		cfg.Inpaint.NumInferenceSteps = f.steps
	}
	if f.strength > 0 {
		cfg.Inpaint.Strength = f.strength
	}
	if f.guidance > 0 {
		cfg.Inpaint.GuidanceScale = f.guidance
	}
	if f.numImages > 0 {
		cfg.Inpaint.NumImages = f.numImages
	}
	if f.width > 0 {
		cfg.Pipeline.TargetWidth = f.width
	}
	if f.height > 0 {
		cfg.Pipeline.TargetHeight = f.height
	}
	if f.roi > 0 {
		cfg.Pipeline.ROIScale = f.roi
	}
	if f.detModel != "" {
		cfg.Models.Detection = f.detModel
	}
	if f.segModel != "" {
		cfg.Models.Segmentation = f.segModel
	}
	if f.diffModel != "" {
		cfg.Models.Diffusion = f.diffModel
	}
	if f.detector != "" {
		cfg.Backends.Detector = f.detector
	}
	if f.ollamaURL != "" {
		cfg.Backends.OllamaURL = f.ollamaURL
	}
	if f.detURL != "" {
		cfg.Backends.DetectionURL = f.detURL
	}
	if f.segURL != "" {
		cfg.Backends.SegmentationURL = f.segURL
	}
	if f.diffURL != "" {
		cfg.Backends.DiffusionURL = f.diffURL
	}
	if f.outDir != "" {
		cfg.Output.Dir = f.outDir
	}
	if f.ext != "" {
		cfg.Output.Format = f.ext
	}
	if f.quality > 0 {
		cfg.Output.Quality = f.quality
	}
}
