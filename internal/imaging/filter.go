/**
 * Spatial filters used by the quality assessor and the rectifier:
 * Gaussian smoothing, Laplacian response, and a gradient edge detector
 * with double-threshold hysteresis.
 */

package imaging

import "math"

// gaussian5 is a 5x5 binomial approximation of a Gaussian kernel
// (outer product of [1 4 6 4 1], normalized by 256).
var gaussian5 = [5]float64{1, 4, 6, 4, 1}

// GaussianBlur applies a separable 5x5 Gaussian to a plane.
func GaussianBlur(g *Gray) *Gray {
	tmp := NewGray(g.W, g.H)
	out := NewGray(g.W, g.H)

	// Horizontal pass.
	for y := 0; y < g.H; y++ {
		for x := 0; x < g.W; x++ {
			var sum float64
			for k := -2; k <= 2; k++ {
				xx := clampInt(x+k, 0, g.W-1)
				sum += gaussian5[k+2] * g.At(xx, y)
			}
			tmp.Set(x, y, sum/16.0)
		}
	}
	// Vertical pass.
	for y := 0; y < g.H; y++ {
		for x := 0; x < g.W; x++ {
			var sum float64
			for k := -2; k <= 2; k++ {
				yy := clampInt(y+k, 0, g.H-1)
				sum += gaussian5[k+2] * tmp.At(x, yy)
			}
			out.Set(x, y, sum/16.0)
		}
	}
	return out
}

// LaplacianVariance computes the variance of the 4-neighbour Laplacian
// response over the whole plane. Sharp images produce strong second
// derivatives at edges, so higher values mean less blur.
func LaplacianVariance(g *Gray) float64 {
	if g.W < 3 || g.H < 3 {
		return 0
	}
	n := (g.W - 2) * (g.H - 2)
	resp := make([]float64, 0, n)
	var sum float64
	for y := 1; y < g.H-1; y++ {
		for x := 1; x < g.W-1; x++ {
			v := g.At(x-1, y) + g.At(x+1, y) + g.At(x, y-1) + g.At(x, y+1) - 4*g.At(x, y)
			resp = append(resp, v)
			sum += v
		}
	}
	mean := sum / float64(n)
	var variance float64
	for _, v := range resp {
		d := v - mean
		variance += d * d
	}
	return variance / float64(n)
}

// GlareRatio reports the fraction of pixels whose luminance exceeds the
// near-white threshold.
func GlareRatio(g *Gray, threshold float64) float64 {
	if len(g.Pix) == 0 {
		return 0
	}
	count := 0
	for _, v := range g.Pix {
		if v > threshold {
			count++
		}
	}
	return float64(count) / float64(len(g.Pix))
}

// EdgeMap runs a Sobel gradient pass followed by double-threshold
// hysteresis. Pixels with magnitude above high are edge seeds; pixels above
// low that connect (8-neighbourhood) to a seed are kept too. The result is a
// binary plane with edges set to 255.
func EdgeMap(g *Gray, low, high float64) *Gray {
	mag := NewGray(g.W, g.H)
	for y := 1; y < g.H-1; y++ {
		for x := 1; x < g.W-1; x++ {
			gx := -g.At(x-1, y-1) + g.At(x+1, y-1) +
				-2*g.At(x-1, y) + 2*g.At(x+1, y) +
				-g.At(x-1, y+1) + g.At(x+1, y+1)
			gy := -g.At(x-1, y-1) - 2*g.At(x, y-1) - g.At(x+1, y-1) +
				g.At(x-1, y+1) + 2*g.At(x, y+1) + g.At(x+1, y+1)
			mag.Set(x, y, math.Hypot(gx, gy))
		}
	}

	out := NewGray(g.W, g.H)
	var stack []int
	for i, v := range mag.Pix {
		if v >= high {
			out.Pix[i] = 255
			stack = append(stack, i)
		}
	}
	// Grow weak edges connected to strong seeds.
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		x, y := i%g.W, i/g.W
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				nx, ny := x+dx, y+dy
				if nx < 0 || ny < 0 || nx >= g.W || ny >= g.H {
					continue
				}
				j := ny*g.W + nx
				if out.Pix[j] == 0 && mag.Pix[j] >= low {
					out.Pix[j] = 255
					stack = append(stack, j)
				}
			}
		}
	}
	return out
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
