package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero target width", func(c *Config) { c.Pipeline.TargetWidth = 0 }},
		{"negative target height", func(c *Config) { c.Pipeline.TargetHeight = -1 }},
		{"roi scale zero", func(c *Config) { c.Pipeline.ROIScale = 0 }},
		{"roi scale above one", func(c *Config) { c.Pipeline.ROIScale = 1.1 }},
		{"missing detection model", func(c *Config) { c.Models.Detection = "" }},
		{"missing segmentation model", func(c *Config) { c.Models.Segmentation = "" }},
		{"missing diffusion model", func(c *Config) { c.Models.Diffusion = "" }},
		{"unknown detector backend", func(c *Config) { c.Backends.Detector = "detectron" }},
		{"zero steps", func(c *Config) { c.Inpaint.NumInferenceSteps = 0 }},
		{"strength above one", func(c *Config) { c.Inpaint.Strength = 1.5 }},
		{"zero num images", func(c *Config) { c.Inpaint.NumImages = 0 }},
		{"quality out of range", func(c *Config) { c.Output.Quality = 101 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	cfg := Default()
	cfg.Pipeline.TargetWidth = 768
	cfg.Inpaint.Prompt = "on a beach at sunset"
	cfg.Backends.Detector = "ollama"

	require.NoError(t, cfg.SaveToFile(path))

	loaded, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, cfg, loaded)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}
