package canvas

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prodshot/backdrop/pkg/types"
)

// createTestImage creates a uniformly colored test image.
func createTestImage(width, height int, c color.RGBA) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestExtendOutputDimensions(t *testing.T) {
	cases := []struct {
		name     string
		srcW     int
		srcH     int
		targetW  int
		targetH  int
		roiScale float64
	}{
		{"landscape to square", 800, 600, 1024, 1024, 0.6},
		{"portrait to square", 600, 800, 1024, 1024, 0.6},
		{"square to landscape", 512, 512, 1920, 1080, 0.8},
		{"larger than target full roi", 4000, 3000, 1000, 1000, 1.0},
		{"tiny source", 3, 2, 512, 512, 0.5},
		{"roi exactly one", 640, 480, 640, 480, 1.0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			src := createTestImage(tc.srcW, tc.srcH, color.RGBA{10, 20, 30, 255})

			out, pl, err := Extend(src, tc.targetW, tc.targetH, tc.roiScale)
			require.NoError(t, err)

			assert.Equal(t, tc.targetW, out.Bounds().Dx())
			assert.Equal(t, tc.targetH, out.Bounds().Dy())
			assert.LessOrEqual(t, pl.Width, tc.targetW)
			assert.LessOrEqual(t, pl.Height, tc.targetH)
			assert.GreaterOrEqual(t, pl.OffsetX, 0)
			assert.GreaterOrEqual(t, pl.OffsetY, 0)
		})
	}
}

func TestExtendScenario800x600(t *testing.T) {
	// scale = min(1024/800, 1024/600) = 1.28
	// new_w = int(800*1.28*0.6) = 614, new_h = int(600*1.28*0.6) = 460
	src := createTestImage(800, 600, color.RGBA{200, 0, 0, 255})

	out, pl, err := Extend(src, 1024, 1024, 0.6)
	require.NoError(t, err)

	assert.Equal(t, 614, pl.Width)
	assert.Equal(t, 460, pl.Height)
	assert.Equal(t, (1024-614)/2, pl.OffsetX)
	assert.Equal(t, (1024-460)/2, pl.OffsetY)
	assert.Equal(t, 1024, out.Bounds().Dx())
	assert.Equal(t, 1024, out.Bounds().Dy())
}

func TestExtendWhiteBorder(t *testing.T) {
	src := createTestImage(400, 400, color.RGBA{0, 0, 0, 255})

	out, pl, err := Extend(src, 1000, 1000, 0.5)
	require.NoError(t, err)

	white := color.NRGBA{255, 255, 255, 255}
	assert.Equal(t, white, out.NRGBAAt(0, 0))
	assert.Equal(t, white, out.NRGBAAt(999, 0))
	assert.Equal(t, white, out.NRGBAAt(0, 999))
	assert.Equal(t, white, out.NRGBAAt(999, 999))

	// Center of the pasted region keeps the source color.
	cx := pl.OffsetX + pl.Width/2
	cy := pl.OffsetY + pl.Height/2
	center := out.NRGBAAt(cx, cy)
	assert.Less(t, int(center.R), 64)
}

func TestExtendPreservesAspectRatio(t *testing.T) {
	src := createTestImage(800, 600, color.RGBA{50, 50, 50, 255})

	_, pl, err := Extend(src, 1024, 1024, 0.6)
	require.NoError(t, err)

	srcRatio := float64(800) / float64(600)
	outRatio := float64(pl.Width) / float64(pl.Height)
	assert.InDelta(t, srcRatio, outRatio, 0.01)
}

func TestExtendInvalidInputs(t *testing.T) {
	valid := createTestImage(100, 100, color.RGBA{0, 0, 0, 255})
	empty := image.NewRGBA(image.Rect(0, 0, 0, 0))

	cases := []struct {
		name     string
		img      image.Image
		targetW  int
		targetH  int
		roiScale float64
	}{
		{"zero source", empty, 512, 512, 0.6},
		{"zero target width", valid, 0, 512, 0.6},
		{"negative target height", valid, 512, -1, 0.6},
		{"roi zero", valid, 512, 512, 0},
		{"roi above one", valid, 512, 512, 1.5},
		{"roi negative", valid, 512, 512, -0.2},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := Extend(tc.img, tc.targetW, tc.targetH, tc.roiScale)
			assert.ErrorIs(t, err, types.ErrInvalidDimensions)
		})
	}
}

func TestExtendNilImage(t *testing.T) {
	_, _, err := Extend(nil, 512, 512, 0.6)
	assert.ErrorIs(t, err, types.ErrInvalidDimensions)
}
