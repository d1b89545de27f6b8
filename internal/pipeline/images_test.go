package pipeline

import (
	"image"
	"image/color"
	"math"
)

// fillImage returns a w by h frame filled with one color.
func fillImage(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

// checkerImage returns a frame alternating between two colors per pixel.
func checkerImage(w, h int, a, b color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if (x+y)%2 == 0 {
				img.SetNRGBA(x, y, a)
			} else {
				img.SetNRGBA(x, y, b)
			}
		}
	}
	return img
}

// rotatedDocumentImage returns a dark frame with a bright pageW by pageH page
// rotated by angle radians around the frame center.
func rotatedDocumentImage(w, h int, pageW, pageH, angle float64) *image.NRGBA {
	img := fillImage(w, h, color.NRGBA{R: 10, G: 10, B: 10, A: 255})
	cx, cy := float64(w)/2, float64(h)/2
	cos, sin := math.Cos(angle), math.Sin(angle)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dx, dy := float64(x)-cx, float64(y)-cy
			u := dx*cos + dy*sin
			v := -dx*sin + dy*cos
			if math.Abs(u) <= pageW/2 && math.Abs(v) <= pageH/2 {
				img.SetNRGBA(x, y, color.NRGBA{R: 230, G: 230, B: 230, A: 255})
			}
		}
	}
	return img
}

// documentImage returns a dark frame with a bright page region, the minimal
// scene the boundary detector can rectify.
func documentImage(w, h int, page image.Rectangle) *image.NRGBA {
	img := fillImage(w, h, color.NRGBA{R: 10, G: 10, B: 10, A: 255})
	for y := page.Min.Y; y < page.Max.Y; y++ {
		for x := page.Min.X; x < page.Max.X; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 230, G: 230, B: 230, A: 255})
		}
	}
	return img
}
