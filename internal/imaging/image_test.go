package imaging

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func uniformImage(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func TestDecodeEmptyInput(t *testing.T) {
	if _, err := Decode(nil); !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("expected ErrEmptyInput, got %v", err)
	}
	if _, err := Decode([]byte{}); !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("expected ErrEmptyInput for zero-length slice, got %v", err)
	}
}

func TestDecodeUnsupportedFormat(t *testing.T) {
	if _, err := Decode([]byte("definitely not an image")); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestDecodePNG(t *testing.T) {
	src := uniformImage(12, 8, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, src); err != nil {
		t.Fatalf("encode png: %v", err)
	}

	img, err := Decode(buf.Bytes())
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	if img.Bounds().Dx() != 12 || img.Bounds().Dy() != 8 {
		t.Fatalf("unexpected dimensions %v", img.Bounds())
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	src := uniformImage(16, 16, color.NRGBA{R: 128, G: 128, B: 128, A: 255})
	data, err := Encode(src)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	img, err := Decode(data)
	if err != nil {
		t.Fatalf("decode encoded frame: %v", err)
	}
	if img.Bounds() != src.Bounds() {
		t.Fatalf("bounds changed: %v != %v", img.Bounds(), src.Bounds())
	}
}

func TestGrayscaleWeights(t *testing.T) {
	tests := []struct {
		name string
		c    color.NRGBA
		want float64
	}{
		{"white", color.NRGBA{255, 255, 255, 255}, 255.0},
		{"black", color.NRGBA{0, 0, 0, 255}, 0.0},
		{"red", color.NRGBA{255, 0, 0, 255}, 0.299 * 255},
		{"green", color.NRGBA{0, 255, 0, 255}, 0.587 * 255},
		{"blue", color.NRGBA{0, 0, 255, 255}, 0.114 * 255},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := Grayscale(uniformImage(3, 3, tt.c))
			if got := g.At(1, 1); got < tt.want-1e-9 || got > tt.want+1e-9 {
				t.Fatalf("got %f, want %f", got, tt.want)
			}
		})
	}
}

func TestSubPlaneClipsToBounds(t *testing.T) {
	g := NewGray(10, 10)
	for i := range g.Pix {
		g.Pix[i] = float64(i)
	}

	sub := g.SubPlane(image.Rect(8, 8, 20, 20))
	if sub.W != 2 || sub.H != 2 {
		t.Fatalf("expected 2x2 clipped plane, got %dx%d", sub.W, sub.H)
	}
	if sub.At(0, 0) != g.At(8, 8) {
		t.Fatalf("clipped plane does not start at (8,8)")
	}

	empty := g.SubPlane(image.Rect(20, 20, 30, 30))
	if empty.W != 0 || empty.H != 0 {
		t.Fatalf("expected empty plane for out-of-bounds region, got %dx%d", empty.W, empty.H)
	}
}
