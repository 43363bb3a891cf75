// Package diffusers is an HTTP client for a diffusers-style inpainting
// server. The server exposes POST /inpaint taking the composed image, the
// inverted (background) mask, the prompts and the sampling parameters,
// and answering with one or more synthesized images as base64 PNGs.
//
// Diffusion inference can block for a long, unbounded time; callers that
// need bounded latency must put a deadline on the context themselves.
package diffusers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/prodshot/backdrop/pkg/imgio"
	"github.com/prodshot/backdrop/pkg/types"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
}

type inpaintRequest struct {
	Model             string  `json:"model"`
	Image             string  `json:"image"`      // base64 PNG
	MaskImage         string  `json:"mask_image"` // base64 PNG, 255 = editable
	Prompt            string  `json:"prompt"`
	NegativePrompt    string  `json:"negative_prompt,omitempty"`
	NumInferenceSteps int     `json:"num_inference_steps"`
	Strength          float64 `json:"strength"`
	GuidanceScale     float64 `json:"guidance_scale"`
	NumImages         int     `json:"num_images_per_prompt"`
	Width             int     `json:"width"`
	Height            int     `json:"height"`
}

type inpaintResponse struct {
	Images []string `json:"images"` // base64 PNGs
	Error  string   `json:"error,omitempty"`
}

func NewClient(serverURL string) (*Client, error) {
	if serverURL == "" {
		serverURL = "http://localhost:8002"
	}
	return &Client{
		baseURL: strings.TrimSuffix(serverURL, "/"),
		// No client-side timeout: sampling time grows with steps and
		// image count; the caller's context bounds the call instead.
		httpClient: &http.Client{},
	}, nil
}

// Inpaint implements client.Inpainter. Image and mask must already share
// identical pixel dimensions; this is re-checked here so a misuse outside
// the pipeline still fails before hitting the server.
func (c *Client) Inpaint(ctx context.Context, model string, img image.Image, mask *image.Gray, params types.InpaintParams) ([]image.Image, error) {
	ib, mb := img.Bounds(), mask.Bounds()
	if ib.Dx() != mb.Dx() || ib.Dy() != mb.Dy() {
		return nil, fmt.Errorf("diffusers: image %dx%d vs mask %dx%d: %w",
			ib.Dx(), ib.Dy(), mb.Dx(), mb.Dy(), types.ErrDimensionMismatch)
	}
	if params.NumImages < 1 {
		params.NumImages = 1
	}

	imgB64, err := imgio.EncodeBase64(img, "png", 0, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %v", err)
	}
	maskB64, err := imgio.EncodeBase64(mask, "png", 0, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to encode mask: %v", err)
	}

	respBody, err := c.sendRequest(ctx, "/inpaint", inpaintRequest{
		Model:             model,
		Image:             imgB64,
		MaskImage:         maskB64,
		Prompt:            params.Prompt,
		NegativePrompt:    params.NegativePrompt,
		NumInferenceSteps: params.NumInferenceSteps,
		Strength:          params.Strength,
		GuidanceScale:     params.GuidanceScale,
		NumImages:         params.NumImages,
		Width:             ib.Dx(),
		Height:            ib.Dy(),
	})
	if err != nil {
		return nil, err
	}

	var resp inpaintResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %v", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("inpainting server error: %s", resp.Error)
	}
	if len(resp.Images) == 0 {
		return nil, fmt.Errorf("inpainting server returned no images")
	}

	out := make([]image.Image, 0, len(resp.Images))
	for i, s := range resp.Images {
		decoded, err := imgio.DecodeBase64(s)
		if err != nil {
			return nil, fmt.Errorf("failed to decode output image %d: %v", i, err)
		}
		out = append(out, decoded)
	}
	return out, nil
}

func (c *Client) sendRequest(ctx context.Context, endpoint string, payload interface{}) ([]byte, error) {
	// Generous default when the caller did not bound the call; sampling
	// 50 steps on CPU can take this long.
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 30*time.Minute)
		defer cancel()
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %v", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("inpainting server: %s: %w", strings.TrimSpace(string(body)), types.ErrModelUnavailable)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}
