package imaging

import (
	"math"
	"testing"
)

func flatPlane(w, h int, v float64) *Gray {
	g := NewGray(w, h)
	for i := range g.Pix {
		g.Pix[i] = v
	}
	return g
}

func checkerPlane(w, h int, lo, hi float64) *Gray {
	g := NewGray(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if (x+y)%2 == 0 {
				g.Set(x, y, hi)
			} else {
				g.Set(x, y, lo)
			}
		}
	}
	return g
}

func TestGaussianBlurPreservesFlat(t *testing.T) {
	g := GaussianBlur(flatPlane(20, 20, 100))
	for i, v := range g.Pix {
		if math.Abs(v-100) > 1e-9 {
			t.Fatalf("pixel %d = %v after blurring a flat plane", i, v)
		}
	}
}

func TestGaussianBlurSmoothsCheckerboard(t *testing.T) {
	g := GaussianBlur(checkerPlane(20, 20, 0, 255))
	center := g.At(10, 10)
	if center < 100 || center > 155 {
		t.Fatalf("blurred checkerboard center = %v, want near the midpoint", center)
	}
}

func TestLaplacianVariance(t *testing.T) {
	if got := LaplacianVariance(flatPlane(30, 30, 128)); got != 0 {
		t.Fatalf("flat plane variance = %v, want 0", got)
	}

	sharp := LaplacianVariance(checkerPlane(30, 30, 0, 255))
	if sharp <= 1000 {
		t.Fatalf("checkerboard variance = %v, want large", sharp)
	}
}

func TestGlareRatio(t *testing.T) {
	g := NewGray(10, 10)
	for i := range g.Pix {
		if i < 50 {
			g.Pix[i] = 250
		}
	}
	if got := GlareRatio(g, 245); got != 0.5 {
		t.Fatalf("glare ratio = %v, want 0.5", got)
	}
	if got := GlareRatio(g, 251); got != 0 {
		t.Fatalf("glare ratio above cutoff = %v, want 0", got)
	}
}

func TestEdgeMap(t *testing.T) {
	flat := EdgeMap(flatPlane(20, 20, 100), 75, 200)
	for i, v := range flat.Pix {
		if v != 0 {
			t.Fatalf("flat plane produced edge at %d", i)
		}
	}

	// Vertical step edge: left half dark, right half bright.
	step := NewGray(20, 20)
	for y := 0; y < 20; y++ {
		for x := 10; x < 20; x++ {
			step.Set(x, y, 255)
		}
	}
	edges := EdgeMap(step, 75, 200)
	found := false
	for _, v := range edges.Pix {
		if v != 0 {
			found = true
			break
		}
	}
	if !found {
		t.Fatalf("step edge produced no edge pixels")
	}
}
