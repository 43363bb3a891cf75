package diffusers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prodshot/backdrop/pkg/types"
)

func encodePNG(t *testing.T, img image.Image) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func testParams() types.InpaintParams {
	return types.InpaintParams{
		Prompt:            "product on a wooden table",
		NegativePrompt:    "blurry",
		NumInferenceSteps: 30,
		Strength:          0.8,
		GuidanceScale:     7.5,
		NumImages:         2,
	}
}

func TestInpaint(t *testing.T) {
	out := image.NewRGBA(image.Rect(0, 0, 128, 128))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/inpaint", r.URL.Path)

		var req inpaintRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "sdxl-inpainting", req.Model)
		assert.Equal(t, "product on a wooden table", req.Prompt)
		assert.Equal(t, "blurry", req.NegativePrompt)
		assert.Equal(t, 30, req.NumInferenceSteps)
		assert.Equal(t, 0.8, req.Strength)
		assert.Equal(t, 7.5, req.GuidanceScale)
		assert.Equal(t, 2, req.NumImages)
		assert.Equal(t, 128, req.Width)
		assert.Equal(t, 128, req.Height)
		assert.NotEmpty(t, req.Image)
		assert.NotEmpty(t, req.MaskImage)

		json.NewEncoder(w).Encode(inpaintResponse{Images: []string{encodePNG(t, out), encodePNG(t, out)}})
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL)
	require.NoError(t, err)

	img := image.NewRGBA(image.Rect(0, 0, 128, 128))
	mask := image.NewGray(image.Rect(0, 0, 128, 128))

	images, err := c.Inpaint(context.Background(), "sdxl-inpainting", img, mask, testParams())
	require.NoError(t, err)
	require.Len(t, images, 2)

	assert.Equal(t, 128, images[0].Bounds().Dx())
	assert.Equal(t, 128, images[0].Bounds().Dy())
}

func TestInpaintDimensionMismatchBeforeRequest(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL)
	require.NoError(t, err)

	img := image.NewRGBA(image.Rect(0, 0, 128, 128))
	mask := image.NewGray(image.Rect(0, 0, 64, 64))

	_, err = c.Inpaint(context.Background(), "sdxl-inpainting", img, mask, testParams())
	assert.ErrorIs(t, err, types.ErrDimensionMismatch)
	assert.Equal(t, 0, requests, "mismatch must fail before hitting the server")
}

func TestInpaintModelNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such checkpoint", http.StatusNotFound)
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL)
	require.NoError(t, err)

	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	mask := image.NewGray(image.Rect(0, 0, 64, 64))

	_, err = c.Inpaint(context.Background(), "missing", img, mask, testParams())
	assert.ErrorIs(t, err, types.ErrModelUnavailable)
}

func TestInpaintEmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(inpaintResponse{})
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL)
	require.NoError(t, err)

	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	mask := image.NewGray(image.Rect(0, 0, 64, 64))

	_, err = c.Inpaint(context.Background(), "sdxl-inpainting", img, mask, testParams())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no images")
}

func TestInpaintDefaultsNumImages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req inpaintRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 1, req.NumImages)

		json.NewEncoder(w).Encode(inpaintResponse{Images: []string{encodePNG(t, image.NewRGBA(image.Rect(0, 0, 8, 8)))}})
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL)
	require.NoError(t, err)

	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	mask := image.NewGray(image.Rect(0, 0, 64, 64))

	params := testParams()
	params.NumImages = 0

	images, err := c.Inpaint(context.Background(), "sdxl-inpainting", img, mask, params)
	require.NoError(t, err)
	assert.Len(t, images, 1)
}
