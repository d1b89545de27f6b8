/**
 * External contour extraction over a binary edge map.
 *
 * Each 8-connected edge component contributes one contour: the outer
 * boundary traced clockwise with Moore-neighbour following. Polygon
 * simplification uses Douglas-Peucker on the closed boundary.
 */

package imaging

import (
	"image"
	"math"
	"sort"
)

// Contour is a closed boundary polyline in pixel coordinates.
type Contour []image.Point

// moore neighbourhood in clockwise order starting east.
var mooreOffsets = [8]image.Point{
	{1, 0}, {1, 1}, {0, 1}, {-1, 1}, {-1, 0}, {-1, -1}, {0, -1}, {1, -1},
}

// FindExternalContours traces the outer boundary of every 8-connected
// component of set pixels and returns the contours sorted by enclosed area,
// largest first.
func FindExternalContours(edges *Gray) []Contour {
	w, h := edges.W, edges.H
	visited := make([]bool, w*h)
	var contours []Contour

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			if edges.Pix[i] == 0 || visited[i] {
				continue
			}
			// Top-left-most pixel of an unexplored component: trace its
			// boundary, then flood the whole component so inner pixels are
			// not traced again.
			c := traceBoundary(edges, image.Pt(x, y))
			floodComponent(edges, visited, i)
			if len(c) >= 3 {
				contours = append(contours, c)
			}
		}
	}

	sort.SliceStable(contours, func(i, j int) bool {
		return contours[i].Area() > contours[j].Area()
	})
	return contours
}

// traceBoundary walks the outer boundary clockwise starting at the
// top-left-most component pixel. Terminates when the start pixel is
// re-entered from the starting direction, or after a safety bound.
func traceBoundary(edges *Gray, start image.Point) Contour {
	contour := Contour{start}
	cur := start
	// The start pixel was found scanning left-to-right, top-to-bottom, so
	// the pixel to its west is background: begin the neighbourhood search
	// just past west.
	dir := 5 // index into mooreOffsets pointing north-west of "from west"
	limit := 4 * edges.W * edges.H
	for step := 0; step < limit; step++ {
		found := false
		for k := 0; k < 8; k++ {
			d := (dir + k) % 8
			n := cur.Add(mooreOffsets[d])
			if n.X < 0 || n.Y < 0 || n.X >= edges.W || n.Y >= edges.H {
				continue
			}
			if edges.Pix[n.Y*edges.W+n.X] != 0 {
				cur = n
				// Back up the search so the next scan starts from the
				// neighbour behind the direction we moved in.
				dir = (d + 6) % 8
				found = true
				break
			}
		}
		if !found {
			break // isolated pixel
		}
		if cur == start {
			break
		}
		contour = append(contour, cur)
	}
	return contour
}

func floodComponent(edges *Gray, visited []bool, seed int) {
	w, h := edges.W, edges.H
	stack := []int{seed}
	visited[seed] = true
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		x, y := i%w, i/w
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				nx, ny := x+dx, y+dy
				if nx < 0 || ny < 0 || nx >= w || ny >= h {
					continue
				}
				j := ny*w + nx
				if !visited[j] && edges.Pix[j] != 0 {
					visited[j] = true
					stack = append(stack, j)
				}
			}
		}
	}
}

// Area returns the enclosed area of the closed contour (shoelace formula).
func (c Contour) Area() float64 {
	if len(c) < 3 {
		return 0
	}
	var sum float64
	for i := 0; i < len(c); i++ {
		p, q := c[i], c[(i+1)%len(c)]
		sum += float64(p.X*q.Y - q.X*p.Y)
	}
	return math.Abs(sum) / 2
}

// Perimeter returns the length of the closed contour.
func (c Contour) Perimeter() float64 {
	var sum float64
	for i := 0; i < len(c); i++ {
		p, q := c[i], c[(i+1)%len(c)]
		sum += math.Hypot(float64(q.X-p.X), float64(q.Y-p.Y))
	}
	return sum
}

// ApproxPolygon simplifies the closed contour with Douglas-Peucker using the
// given distance tolerance. The contour is split at its two mutually most
// distant vertices and each half is simplified as an open chain.
func (c Contour) ApproxPolygon(epsilon float64) Contour {
	if len(c) < 3 {
		return append(Contour(nil), c...)
	}
	// Anchor at vertex 0; split at the vertex farthest from it.
	split, best := 0, -1.0
	for i := 1; i < len(c); i++ {
		d := math.Hypot(float64(c[i].X-c[0].X), float64(c[i].Y-c[0].Y))
		if d > best {
			best = d
			split = i
		}
	}
	back := append(append(Contour(nil), c[split:]...), c[0])
	first := simplifyChain(c[:split+1], epsilon)
	second := simplifyChain(back, epsilon)

	// Drop shared endpoints when joining the two chains back into a ring.
	out := append(Contour(nil), first...)
	if len(second) > 2 {
		out = append(out, second[1:len(second)-1]...)
	}
	return out
}

func simplifyChain(pts Contour, epsilon float64) Contour {
	if len(pts) < 3 {
		return append(Contour(nil), pts...)
	}
	idx, maxDist := 0, 0.0
	a, b := pts[0], pts[len(pts)-1]
	for i := 1; i < len(pts)-1; i++ {
		d := pointLineDistance(pts[i], a, b)
		if d > maxDist {
			maxDist = d
			idx = i
		}
	}
	if maxDist <= epsilon {
		return Contour{a, b}
	}
	left := simplifyChain(pts[:idx+1], epsilon)
	right := simplifyChain(pts[idx:], epsilon)
	return append(left[:len(left)-1], right...)
}

func pointLineDistance(p, a, b image.Point) float64 {
	dx, dy := float64(b.X-a.X), float64(b.Y-a.Y)
	length := math.Hypot(dx, dy)
	if length == 0 {
		return math.Hypot(float64(p.X-a.X), float64(p.Y-a.Y))
	}
	return math.Abs(dy*float64(p.X)-dx*float64(p.Y)+float64(b.X*a.Y)-float64(b.Y*a.X)) / length
}
