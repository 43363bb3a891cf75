// Package yolod is an HTTP client for an Ultralytics-style object
// detection server. The server exposes POST /detect taking a base64
// image and a model name and answering with xyxy pixel boxes.
package yolod

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

type detectRequest struct {
	Model string `json:"model"`
	Image string `json:"image"` // base64 JPEG
}

type detectResponse struct {
	Detections []detection `json:"detections"`
	Error      string      `json:"error,omitempty"`
}

type detection struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
	Box        xyxyBox `json:"box"`
}

type xyxyBox struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

func NewClient(serverURL string) (*Client, error) {
	if serverURL == "" {
		serverURL = "http://localhost:8000"
	}
	return &Client{
		baseURL: strings.TrimSuffix(serverURL, "/"),
		httpClient: &http.Client{
			Timeout: 2 * time.Minute,
		},
	}, nil
}

// Detect implements client.Detector. The server answers in pixel
// coordinates of the submitted image, so no rescaling is needed here.
func (c *Client) Detect(ctx context.Context, model string, img image.Image) ([]types.Detection, error) {
	// Send at full resolution: the returned boxes must line up with the
	// source pixels.
	imgB64, err := imgio.EncodeBase64(img, "jpg", 0, 95)
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %v", err)
	}

	respBody, err := c.sendRequest(ctx, "/detect", detectRequest{Model: model, Image: imgB64})
	if err != nil {
		return nil, err
	}

	var resp detectResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %v", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("detection server error: %s", resp.Error)
	}

	out := make([]types.Detection, 0, len(resp.Detections))
	for _, d := range resp.Detections {
		out = append(out, types.Detection{
			Label:      d.Name,
			Confidence: d.Confidence,
			Box:        types.BoundingBox{XMin: d.Box.X1, YMin: d.Box.Y1, XMax: d.Box.X2, YMax: d.Box.Y2},
		})
	}
	return out, nil
}

func (c *Client) sendRequest(ctx context.Context, endpoint string, payload interface{}) ([]byte, error) {
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
		return nil, fmt.Errorf("detection server: %s: %w", strings.TrimSpace(string(body)), types.ErrModelUnavailable)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}
