package imgio

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"

	"github.com/prodshot/backdrop/pkg/types"
)

// DrawDetectionOverlay clones img and draws the detected subject box plus
// the editable region from the inverted mask, for debug output.
func DrawDetectionOverlay(img image.Image, box types.BoundingBox, inverted *image.Gray) image.Image {
	nrgba := imaging.Clone(img)
	w := nrgba.Bounds().Dx()
	h := nrgba.Bounds().Dy()

	green := color.NRGBA{0, 255, 0, 255}  // detection box
	red := color.NRGBA{255, 0, 0, 255}    // editable-region tint
	stroke := int(math.Max(2, 0.004*float64(min(w, h))))

	// Tint pixels the inpainting model is allowed to repaint.
	if inverted != nil && inverted.Bounds().Dx() == w && inverted.Bounds().Dy() == h {
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				if inverted.GrayAt(x, y).Y < 128 {
					continue
				}
				i := nrgba.PixOffset(x, y)
				nrgba.Pix[i] = uint8((int(nrgba.Pix[i]) + int(red.R)) / 2)
			}
		}
	}

	drawBox(nrgba, box.Rect(), green, stroke)
	return nrgba
}

func drawBox(img *image.NRGBA, r image.Rectangle, c color.NRGBA, stroke int) {
	for s := 0; s < stroke; s++ {
		drawHLine(img, r.Min.Y+s, r.Min.X, r.Max.X, c)
		drawHLine(img, r.Max.Y-1-s, r.Min.X, r.Max.X, c)
		drawVLine(img, r.Min.X+s, r.Min.Y, r.Max.Y, c)
		drawVLine(img, r.Max.X-1-s, r.Min.Y, r.Max.Y, c)
	}
}

func drawHLine(img *image.NRGBA, y, x0, x1 int, c color.NRGBA) {
	if y < 0 || y >= img.Bounds().Dy() {
		return
	}
	if x0 > x1 {
		x0, x1 = x1, x0
	}
	if x1 <= 0 || x0 >= img.Bounds().Dx() {
		return
	}
	if x0 < 0 {
		x0 = 0
	}
	if x1 > img.Bounds().Dx() {
		x1 = img.Bounds().Dx()
	}
	i := y*img.Stride + x0*4
	for x := x0; x < x1; x++ {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
		i += 4
	}
}

func drawVLine(img *image.NRGBA, x, y0, y1 int, c color.NRGBA) {
	if x < 0 || x >= img.Bounds().Dx() {
		return
	}
	if y0 > y1 {
		y0, y1 = y1, y0
	}
	if y1 <= 0 || y0 >= img.Bounds().Dy() {
		return
	}
	if y0 < 0 {
		y0 = 0
	}
	if y1 > img.Bounds().Dy() {
		y1 = img.Bounds().Dy()
	}
	i := y0*img.Stride + x*4
	for y := y0; y < y1; y++ {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
		i += img.Stride
	}
}
