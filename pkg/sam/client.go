// Package sam is an HTTP client for a SAM-style promptable segmentation
// server. The server exposes POST /segment taking a base64 image plus a
// single bounding box prompt and answering with one or more mask
// candidates, each a base64 PNG with a predicted-IoU score.
package sam

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

type segmentRequest struct {
	Model string     `json:"model"`
	Image string     `json:"image"` // base64 PNG
	Box   [4]float64 `json:"box"`   // xyxy pixels
}

type segmentResponse struct {
	Masks []maskCandidate `json:"masks"`
	Error string          `json:"error,omitempty"`
}

type maskCandidate struct {
	Score float64 `json:"score"`
	Mask  string  `json:"mask"` // base64 PNG, single channel
}

func NewClient(serverURL string) (*Client, error) {
	if serverURL == "" {
		serverURL = "http://localhost:8001"
	}
	return &Client{
		baseURL: strings.TrimSuffix(serverURL, "/"),
		httpClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
	}, nil
}

// Segment implements client.Segmenter. Candidates come back at whatever
// resolution the model worked at; the mask synthesizer resizes them.
func (c *Client) Segment(ctx context.Context, model string, img image.Image, box types.BoundingBox) ([]types.MaskCandidate, error) {
	if !box.Valid() {
		return nil, fmt.Errorf("sam: box %v: %w", box, types.ErrInvalidDimensions)
	}

	// PNG: segmentation quality suffers from JPEG artifacts along edges.
	imgB64, err := imgio.EncodeBase64(img, "png", 0, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %v", err)
	}

	respBody, err := c.sendRequest(ctx, "/segment", segmentRequest{
		Model: model,
		Image: imgB64,
		Box:   [4]float64{box.XMin, box.YMin, box.XMax, box.YMax},
	})
	if err != nil {
		return nil, err
	}

	var resp segmentResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %v", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("segmentation server error: %s", resp.Error)
	}

	out := make([]types.MaskCandidate, 0, len(resp.Masks))
	for i, m := range resp.Masks {
		decoded, err := imgio.DecodeBase64(m.Mask)
		if err != nil {
			return nil, fmt.Errorf("failed to decode mask candidate %d: %v", i, err)
		}
		out = append(out, types.MaskCandidate{Score: m.Score, Mask: imgio.ToGray(decoded)})
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
		return nil, fmt.Errorf("segmentation server: %s: %w", strings.TrimSpace(string(body)), types.ErrModelUnavailable)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}
