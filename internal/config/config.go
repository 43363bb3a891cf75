package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config holds the application configuration.
type Config struct {
	Pipeline PipelineConfig `json:"pipeline"`
	Models   ModelsConfig   `json:"models"`
	Backends BackendsConfig `json:"backends"`
	Inpaint  InpaintConfig  `json:"inpaint"`
	Output   OutputConfig   `json:"output"`
}

// PipelineConfig holds the canvas geometry.
type PipelineConfig struct {
	TargetWidth  int     `json:"target_width"`
	TargetHeight int     `json:"target_height"`
	ROIScale     float64 `json:"roi_scale"`
}

// ModelsConfig names the pretrained checkpoints. Loading and versioning
// of the checkpoints is the serving backend's responsibility.
type ModelsConfig struct {
	Detection    string `json:"detection"`
	Segmentation string `json:"segmentation"`
	Diffusion    string `json:"diffusion"`
}

// BackendsConfig selects and addresses the serving backends.
type BackendsConfig struct {
	// Detector selects the detection backend: "yolod" or "ollama".
	Detector        string `json:"detector"`
	OllamaURL       string `json:"ollama_url"`
	DetectionURL    string `json:"detection_url"`
	SegmentationURL string `json:"segmentation_url"`
	DiffusionURL    string `json:"diffusion_url"`
}

// InpaintConfig holds the sampling parameters for the diffusion backend.
type InpaintConfig struct {
	Prompt            string  `json:"prompt"`
	NegativePrompt    string  `json:"negative_prompt"`
	NumInferenceSteps int     `json:"num_inference_steps"`
	Strength          float64 `json:"strength"`
	GuidanceScale     float64 `json:"guidance_scale"`
	NumImages         int     `json:"num_images"`
}

// OutputConfig holds configuration for output generation.
type OutputConfig struct {
	Dir     string `json:"dir"`
	Format  string `json:"format"`
	Quality int    `json:"quality"`
}

// Default returns a configuration with default values.
func Default() *Config {
	return &Config{
		Pipeline: PipelineConfig{
			TargetWidth:  1024,
			TargetHeight: 1024,
			ROIScale:     0.6,
		},
		Models: ModelsConfig{
			Detection:    "yolov8s",
			Segmentation: "facebook/sam-vit-base",
			Diffusion:    "diffusers/stable-diffusion-xl-1.0-inpainting-0.1",
		},
		Backends: BackendsConfig{
			Detector:        "yolod",
			OllamaURL:       "http://localhost:11434",
			DetectionURL:    "http://localhost:8000",
			SegmentationURL: "http://localhost:8001",
			DiffusionURL:    "http://localhost:8002",
		},
		Inpaint: InpaintConfig{
			Prompt:            "product photography, studio background, soft light",
			NegativePrompt:    "blurry, low quality, distorted",
			NumInferenceSteps: 50,
			Strength:          0.8,
			GuidanceScale:     7.5,
			NumImages:         1,
		},
		Output: OutputConfig{
			Dir:     "./out",
			Format:  "jpg",
			Quality: 90,
		},
	}
}

// LoadFromFile loads configuration from a JSON file.
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

// SaveToFile saves configuration to a JSON file.
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Pipeline.TargetWidth <= 0 || c.Pipeline.TargetHeight <= 0 {
		return fmt.Errorf("pipeline.target_width and pipeline.target_height must be positive")
	}

	if c.Pipeline.ROIScale <= 0 || c.Pipeline.ROIScale > 1 {
		return fmt.Errorf("pipeline.roi_scale must be in (0, 1]")
	}

	if c.Models.Detection == "" || c.Models.Segmentation == "" || c.Models.Diffusion == "" {
		return fmt.Errorf("models.detection, models.segmentation and models.diffusion are required")
	}

	if c.Backends.Detector != "yolod" && c.Backends.Detector != "ollama" {
		return fmt.Errorf("backends.detector must be \"yolod\" or \"ollama\"")
	}

	if c.Inpaint.NumInferenceSteps < 1 {
		return fmt.Errorf("inpaint.num_inference_steps must be positive")
	}

	if c.Inpaint.Strength < 0 || c.Inpaint.Strength > 1 {
		return fmt.Errorf("inpaint.strength must be between 0 and 1")
	}

	if c.Inpaint.NumImages < 1 {
		return fmt.Errorf("inpaint.num_images must be positive")
	}

	if c.Output.Quality < 1 || c.Output.Quality > 100 {
		return fmt.Errorf("output.quality must be between 1 and 100")
	}

	return nil
}

// GetConfigPath returns the default configuration file path.
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(home, ".config", "backdrop", "config.json")
}
