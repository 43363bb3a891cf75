// Package ollama implements the Detector and Captioner capabilities on
// top of a local Ollama server running a vision model. The model is
// prompted to emit detections as strict JSON; responses are sanitized
// before parsing because vision models routinely wrap JSON in prose or
// code fences.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/ollama/ollama/api"

	"github.com/prodshot/backdrop/pkg/types"
)

// DetectPrompt asks the vision model for every salient object with
// normalized coordinates.
const DetectPrompt = `You are an object detector for product photos.

Return JSON only:
{
  "detections": [
    {"label": "string", "confidence": 0.0, "box": {"x_min": 0.0, "y_min": 0.0, "x_max": 0.0, "y_max": 0.0}}
  ]
}

HARD RULES
- All coordinates are normalized to [0,1] (NOT pixels).
- Every box must satisfy x_min < x_max and y_min < y_max.
- List every clearly visible object, most prominent first.
- confidence is your detection confidence in [0,1].
- If no object is visible, return {"detections": []}.
- JSON only. No markdown, no code fences, no comments, no trailing commas.`

// CaptionPrompt asks for a short product caption.
const CaptionPrompt = `Write one short factual caption (at most 20 words) describing the product in this image. Plain text only.`

// Client wraps the Ollama API client.
type Client struct {
	client *api.Client

	// SendMaxDim bounds the long side of images sent to the model;
	// 0 sends the original size.
	SendMaxDim int
	// SendQuality is the JPEG quality for images sent to the model.
	SendQuality int
}

// NewClient creates a new Ollama client for the given server URL.
func NewClient(ollamaURL string) (*Client, error) {
	parsedURL, err := url.Parse(ollamaURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %v", err)
	}

	// Base URL only; strip any path like /api/chat.
	baseURL := &url.URL{
		Scheme: parsedURL.Scheme,
		Host:   parsedURL.Host,
	}

	return &Client{
		client:      api.NewClient(baseURL, http.DefaultClient),
		SendMaxDim:  1536,
		SendQuality: 85,
	}, nil
}

// Detect implements client.Detector. Normalized model coordinates are
// scaled back to pixel coordinates of img.
func (c *Client) Detect(ctx context.Context, model string, img image.Image) ([]types.Detection, error) {
	raw, err := c.chat(ctx, model, DetectPrompt, img)
	if err != nil {
		return nil, err
	}

	parsed, err := parseDetections(raw)
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	fw, fh := float64(bounds.Dx()), float64(bounds.Dy())
	out := make([]types.Detection, 0, len(parsed))
	for _, d := range parsed {
		box := types.BoundingBox{
			XMin: d.Box.XMin * fw,
			YMin: d.Box.YMin * fh,
			XMax: d.Box.XMax * fw,
			YMax: d.Box.YMax * fh,
		}
		// Some models answer in pixels despite the prompt; detect that by
		// coordinates already exceeding the normalized range.
		if d.Box.XMax > 1.5 || d.Box.YMax > 1.5 {
			box = d.Box
		}
		out = append(out, types.Detection{Label: d.Label, Confidence: d.Confidence, Box: box})
	}
	return out, nil
}

// Caption implements client.Captioner.
func (c *Client) Caption(ctx context.Context, model string, img image.Image) (string, error) {
	raw, err := c.chat(ctx, model, CaptionPrompt, img)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(raw), `"`)), nil
}

func (c *Client) chat(ctx context.Context, model, prompt string, img image.Image) (string, error) {
	// Vision models on CPU can take minutes; bound the call if the caller
	// did not.
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 300*time.Second)
		defer cancel()
	}

	imgBytes, err := c.encodeForModel(img)
	if err != nil {
		return "", fmt.Errorf("failed to encode image: %v", err)
	}

	streamFalse := false
	req := &api.ChatRequest{
		Model: model,
		Messages: []api.Message{
			{
				Role:    "user",
				Content: prompt,
				Images:  []api.ImageData{api.ImageData(imgBytes)},
			},
		},
		Stream: &streamFalse,
	}

	var responseContent string
	err = c.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		responseContent = resp.Message.Content
		return nil
	})
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			return "", fmt.Errorf("ollama model %q: %w", model, types.ErrModelUnavailable)
		}
		return "", fmt.Errorf("ollama chat error: %v", err)
	}
	if responseContent == "" {
		return "", fmt.Errorf("empty response from ollama")
	}
	return responseContent, nil
}

func (c *Client) encodeForModel(img image.Image) ([]byte, error) {
	if c.SendMaxDim > 0 {
		b := img.Bounds()
		if b.Dx() > c.SendMaxDim || b.Dy() > c.SendMaxDim {
			if b.Dx() >= b.Dy() {
				img = imaging.Resize(img, c.SendMaxDim, 0, imaging.Lanczos)
			} else {
				img = imaging.Resize(img, 0, c.SendMaxDim, imaging.Lanczos)
			}
		}
	}
	q := c.SendQuality
	if q <= 0 {
		q = 85
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: q}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type detectionEnvelope struct {
	Detections []types.Detection `json:"detections"`
}

// parseDetections parses the JSON response from the vision model.
func parseDetections(raw string) ([]types.Detection, error) {
	raw = sanitizeModelJSON(raw)

	if !strings.HasPrefix(strings.TrimSpace(raw), "{") {
		return nil, fmt.Errorf("model returned non-JSON response")
	}

	var env detectionEnvelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		// Try conservative brace-slice approach
		start := strings.Index(raw, "{")
		end := strings.LastIndex(raw, "}")
		if start < 0 || end <= start {
			return nil, fmt.Errorf("no valid JSON found in response")
		}
		if err2 := json.Unmarshal([]byte(raw[start:end+1]), &env); err2 != nil {
			return nil, fmt.Errorf("failed to parse model response: %v", err2)
		}
	}
	return env.Detections, nil
}

// sanitizeModelJSON removes code fences, comments, and trailing commas
// from a JSON response.
func sanitizeModelJSON(raw string) string {
	raw = strings.TrimSpace(raw)

	// Strip triple-backtick fences if present
	if strings.HasPrefix(raw, "```") {
		if i := strings.Index(raw, "\n"); i >= 0 {
			raw = raw[i+1:]
		}
		if j := strings.LastIndex(raw, "```"); j >= 0 {
			raw = raw[:j]
		}
	}
	raw = strings.TrimSpace(raw)
	raw = strings.Trim(raw, "`")

	// Remove /* ... */ block comments
	reBlock := regexp.MustCompile(`(?s)/\*.*?\*/`)
	raw = reBlock.ReplaceAllString(raw, "")

	// Remove // line/inline comments
	reLine := regexp.MustCompile(`(?m)^\s*//.*$`)
	raw = reLine.ReplaceAllString(raw, "")
	reInline := regexp.MustCompile(`(?m)//.*$`)
	raw = reInline.ReplaceAllString(raw, "")

	// Remove trailing commas before } or ]
	reTrailing := regexp.MustCompile(`,(\s*[}\]])`)
	raw = reTrailing.ReplaceAllString(raw, "$1")

	// Keep only the outermost {...}
	if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			raw = raw[start : end+1]
		}
	}
	return strings.TrimSpace(raw)
}
