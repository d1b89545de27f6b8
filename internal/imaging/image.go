/**
 * Image codec and pixel plane primitives for the verifier pipeline.
 *
 * All pipeline stages exchange *image.NRGBA frames. Decoding and encoding
 * happen only at the worker boundary; stages return fresh images and never
 * mutate their input.
 */

package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	_ "image/png"
)

var (
	// ErrEmptyInput is returned when a zero-byte payload is submitted.
	ErrEmptyInput = errors.New("empty image payload")

	// ErrUnsupportedFormat is returned when the payload cannot be decoded.
	ErrUnsupportedFormat = errors.New("unsupported image format")
)

// Decode parses raw upload bytes into an NRGBA frame.
func Decode(data []byte) (*image.NRGBA, error) {
	if len(data) == 0 {
		return nil, ErrEmptyInput
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	return ToNRGBA(img), nil
}

// Encode serializes a frame as JPEG for storage and transport.
func Encode(img *image.NRGBA) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 92}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// ToNRGBA normalizes any decoded image to NRGBA with a zero origin.
func ToNRGBA(img image.Image) *image.NRGBA {
	b := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}

// Clone returns an independent copy of a frame.
func Clone(img *image.NRGBA) *image.NRGBA {
	out := image.NewNRGBA(img.Bounds())
	copy(out.Pix, img.Pix)
	return out
}

// Gray is a single-channel float64 plane. Filters and similarity metrics
// operate on Gray rather than the packed NRGBA layout.
type Gray struct {
	Pix []float64
	W   int
	H   int
}

// NewGray allocates a zeroed plane.
func NewGray(w, h int) *Gray {
	return &Gray{Pix: make([]float64, w*h), W: w, H: h}
}

// At returns the value at (x, y). Callers are responsible for bounds.
func (g *Gray) At(x, y int) float64 { return g.Pix[y*g.W+x] }

// Set stores a value at (x, y).
func (g *Gray) Set(x, y int, v float64) { g.Pix[y*g.W+x] = v }

// SubPlane copies the region r (clipped to the plane) into a new plane.
func (g *Gray) SubPlane(r image.Rectangle) *Gray {
	r = r.Intersect(image.Rect(0, 0, g.W, g.H))
	out := NewGray(r.Dx(), r.Dy())
	for y := 0; y < out.H; y++ {
		src := g.Pix[(r.Min.Y+y)*g.W+r.Min.X : (r.Min.Y+y)*g.W+r.Min.X+out.W]
		copy(out.Pix[y*out.W:(y+1)*out.W], src)
	}
	return out
}

// Grayscale converts a frame to its luminance plane using the BT.601 weights.
func Grayscale(img *image.NRGBA) *Gray {
	b := img.Bounds()
	out := NewGray(b.Dx(), b.Dy())
	for y := 0; y < out.H; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+out.W*4]
		for x := 0; x < out.W; x++ {
			r := float64(row[x*4])
			g := float64(row[x*4+1])
			bl := float64(row[x*4+2])
			out.Pix[y*out.W+x] = 0.299*r + 0.587*g + 0.114*bl
		}
	}
	return out
}
