package imaging

import (
	"image"

	"github.com/nfnt/resize"
)

// ResizeToWidth scales a frame so its width equals w, preserving aspect ratio.
func ResizeToWidth(img *image.NRGBA, w int) *image.NRGBA {
	b := img.Bounds()
	if b.Dx() == w || b.Dx() == 0 {
		return Clone(img)
	}
	scale := float64(w) / float64(b.Dx())
	h := int(float64(b.Dy()) * scale)
	if h < 1 {
		h = 1
	}
	return ToNRGBA(resize.Resize(uint(w), uint(h), img, resize.Bilinear))
}

// ResizeExact scales a frame to exactly w x h, ignoring aspect ratio.
func ResizeExact(img *image.NRGBA, w, h int) *image.NRGBA {
	b := img.Bounds()
	if b.Dx() == w && b.Dy() == h {
		return Clone(img)
	}
	return ToNRGBA(resize.Resize(uint(w), uint(h), img, resize.Bilinear))
}

// CropTop returns the top-aligned crop of height h.
func CropTop(img *image.NRGBA, h int) *image.NRGBA {
	b := img.Bounds()
	if h >= b.Dy() {
		return Clone(img)
	}
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), h))
	for y := 0; y < h; y++ {
		copy(out.Pix[y*out.Stride:y*out.Stride+b.Dx()*4], img.Pix[y*img.Stride:y*img.Stride+b.Dx()*4])
	}
	return out
}
