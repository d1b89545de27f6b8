/**
 * Four-point perspective rectification: canonical corner ordering,
 * homography estimation from four correspondences, and inverse-mapped
 * bilinear warping.
 */

package imaging

import (
	"errors"
	"image"
	"math"
)

// ErrDegenerateTransform is returned when the four corners do not produce a
// solvable or usefully sized perspective mapping.
var ErrDegenerateTransform = errors.New("degenerate perspective transform")

// PointF is a sub-pixel coordinate.
type PointF struct {
	X, Y float64
}

// Quad holds the four document corners in canonical order.
type Quad struct {
	TopLeft, TopRight, BottomRight, BottomLeft PointF
}

// OrderCorners maps four unordered corner points onto the canonical layout.
// Top-left has the minimum x+y sum, bottom-right the maximum; top-right has
// the maximum x-y difference, bottom-left the minimum. A mistake here
// mirrors or rotates the page, so this rule is load-bearing.
func OrderCorners(pts [4]PointF) Quad {
	var q Quad
	minSum, maxSum := math.Inf(1), math.Inf(-1)
	minDiff, maxDiff := math.Inf(1), math.Inf(-1)
	for _, p := range pts {
		sum, diff := p.X+p.Y, p.X-p.Y
		if sum < minSum {
			minSum = sum
			q.TopLeft = p
		}
		if sum > maxSum {
			maxSum = sum
			q.BottomRight = p
		}
		if diff < minDiff {
			minDiff = diff
			q.BottomLeft = p
		}
		if diff > maxDiff {
			maxDiff = diff
			q.TopRight = p
		}
	}
	return q
}

func dist(a, b PointF) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// FourPointTransform warps the quadrilateral region of img onto an
// axis-aligned rectangle sized from the longer opposite edges of the quad.
func FourPointTransform(img *image.NRGBA, pts [4]PointF) (*image.NRGBA, error) {
	q := OrderCorners(pts)

	maxWidth := int(math.Max(dist(q.BottomRight, q.BottomLeft), dist(q.TopRight, q.TopLeft)))
	maxHeight := int(math.Max(dist(q.TopRight, q.BottomRight), dist(q.TopLeft, q.BottomLeft)))
	if maxWidth <= 0 || maxHeight <= 0 {
		return nil, ErrDegenerateTransform
	}

	dst := [4]PointF{
		{0, 0},
		{float64(maxWidth - 1), 0},
		{float64(maxWidth - 1), float64(maxHeight - 1)},
		{0, float64(maxHeight - 1)},
	}
	src := [4]PointF{q.TopLeft, q.TopRight, q.BottomRight, q.BottomLeft}

	// Solve the homography in the dst->src direction so warping is a direct
	// inverse lookup per destination pixel.
	h, err := solveHomography(dst, src)
	if err != nil {
		return nil, err
	}

	out := image.NewNRGBA(image.Rect(0, 0, maxWidth, maxHeight))
	for y := 0; y < maxHeight; y++ {
		for x := 0; x < maxWidth; x++ {
			denom := h[6]*float64(x) + h[7]*float64(y) + 1
			if denom == 0 {
				continue
			}
			sx := (h[0]*float64(x) + h[1]*float64(y) + h[2]) / denom
			sy := (h[3]*float64(x) + h[4]*float64(y) + h[5]) / denom
			r, g, b, a := bilinearSample(img, sx, sy)
			i := y*out.Stride + x*4
			out.Pix[i] = r
			out.Pix[i+1] = g
			out.Pix[i+2] = b
			out.Pix[i+3] = a
		}
	}
	return out, nil
}

// solveHomography computes the eight projective coefficients mapping the
// from-quad onto the to-quad (h[8] fixed at 1), via Gaussian elimination
// with partial pivoting.
func solveHomography(from, to [4]PointF) ([8]float64, error) {
	var a [8][9]float64
	for i := 0; i < 4; i++ {
		x, y := from[i].X, from[i].Y
		u, v := to[i].X, to[i].Y
		a[2*i] = [9]float64{x, y, 1, 0, 0, 0, -x * u, -y * u, u}
		a[2*i+1] = [9]float64{0, 0, 0, x, y, 1, -x * v, -y * v, v}
	}

	for col := 0; col < 8; col++ {
		pivot := col
		for row := col + 1; row < 8; row++ {
			if math.Abs(a[row][col]) > math.Abs(a[pivot][col]) {
				pivot = row
			}
		}
		if math.Abs(a[pivot][col]) < 1e-12 {
			return [8]float64{}, ErrDegenerateTransform
		}
		a[col], a[pivot] = a[pivot], a[col]
		for row := 0; row < 8; row++ {
			if row == col {
				continue
			}
			factor := a[row][col] / a[col][col]
			for k := col; k < 9; k++ {
				a[row][k] -= factor * a[col][k]
			}
		}
	}

	var h [8]float64
	for i := 0; i < 8; i++ {
		h[i] = a[i][8] / a[i][i]
	}
	return h, nil
}

func bilinearSample(img *image.NRGBA, x, y float64) (uint8, uint8, uint8, uint8) {
	b := img.Bounds()
	if x < 0 || y < 0 || x > float64(b.Dx()-1) || y > float64(b.Dy()-1) {
		return 0, 0, 0, 255
	}
	x0, y0 := int(x), int(y)
	x1, y1 := clampInt(x0+1, 0, b.Dx()-1), clampInt(y0+1, 0, b.Dy()-1)
	fx, fy := x-float64(x0), y-float64(y0)

	sample := func(px, py, c int) float64 {
		return float64(img.Pix[py*img.Stride+px*4+c])
	}
	var out [4]uint8
	for c := 0; c < 4; c++ {
		top := sample(x0, y0, c)*(1-fx) + sample(x1, y0, c)*fx
		bot := sample(x0, y1, c)*(1-fx) + sample(x1, y1, c)*fx
		out[c] = uint8(top*(1-fy) + bot*fy + 0.5)
	}
	return out[0], out[1], out[2], out[3]
}
