/**
 * Mean structural similarity between two equally sized grayscale planes.
 *
 * Local statistics use uniform 7x7 windows with unbiased variance and the
 * conventional stabilizers K1=0.01, K2=0.03 over an 8-bit dynamic range.
 * SSIM(x, x) is exactly 1 for any plane.
 */

package imaging

const (
	ssimWindow = 7
	ssimK1     = 0.01
	ssimK2     = 0.03
	ssimRange  = 255.0
)

// SSIM returns the mean structural similarity of two planes in [-1, 1].
// Planes must have identical dimensions. Degenerate (zero-sized) planes
// compare as identical.
func SSIM(a, b *Gray) float64 {
	if a.W != b.W || a.H != b.H {
		panic("imaging: SSIM requires equally sized planes")
	}
	if a.W == 0 || a.H == 0 {
		return 1.0
	}

	win := ssimWindow
	if a.W < win || a.H < win {
		win = minInt(a.W, a.H)
		if win%2 == 0 {
			win--
		}
		if win < 1 {
			return 1.0
		}
	}

	w, h := a.W, a.H
	sumA := integral(a.Pix, w, h, nil)
	sumB := integral(b.Pix, w, h, nil)
	sumAA := integral(a.Pix, w, h, a.Pix)
	sumBB := integral(b.Pix, w, h, b.Pix)
	sumAB := integral(a.Pix, w, h, b.Pix)

	c1 := (ssimK1 * ssimRange) * (ssimK1 * ssimRange)
	c2 := (ssimK2 * ssimRange) * (ssimK2 * ssimRange)
	n := float64(win * win)
	covNorm := 1.0
	if win > 1 {
		covNorm = n / (n - 1)
	}

	var total float64
	var count int
	for y := 0; y+win <= h; y++ {
		for x := 0; x+win <= w; x++ {
			ux := windowSum(sumA, w, x, y, win) / n
			uy := windowSum(sumB, w, x, y, win) / n
			uxx := windowSum(sumAA, w, x, y, win) / n
			uyy := windowSum(sumBB, w, x, y, win) / n
			uxy := windowSum(sumAB, w, x, y, win) / n

			vx := covNorm * (uxx - ux*ux)
			vy := covNorm * (uyy - uy*uy)
			vxy := covNorm * (uxy - ux*uy)

			num := (2*ux*uy + c1) * (2*vxy + c2)
			den := (ux*ux + uy*uy + c1) * (vx + vy + c2)
			total += num / den
			count++
		}
	}
	if count == 0 {
		return 1.0
	}
	return total / float64(count)
}

// integral builds an inclusive summed-area table of p (or p*q when q is
// non-nil). The table has (w+1)x(h+1) entries with a zero border.
func integral(p []float64, w, h int, q []float64) []float64 {
	table := make([]float64, (w+1)*(h+1))
	for y := 0; y < h; y++ {
		var rowSum float64
		for x := 0; x < w; x++ {
			v := p[y*w+x]
			if q != nil {
				v *= q[y*w+x]
			}
			rowSum += v
			table[(y+1)*(w+1)+(x+1)] = table[y*(w+1)+(x+1)] + rowSum
		}
	}
	return table
}

func windowSum(table []float64, w, x, y, win int) float64 {
	stride := w + 1
	x1, y1 := x+win, y+win
	return table[y1*stride+x1] - table[y*stride+x1] - table[y1*stride+x] + table[y*stride+x]
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
