/**
 * Document boundary detection and perspective rectification.
 *
 * The capture is edge-detected, the largest external contours are
 * approximated to polygons, and the first quadrilateral among the top five
 * by area is taken as the page boundary. The four corners are warped onto an
 * axis-aligned rectangle and the result is rescaled to a fixed width.
 */

package pipeline

import (
	"image"

	"github.com/ncsverify/verifier-worker/internal/imaging"
)

const (
	edgeLowThreshold  = 75.0
	edgeHighThreshold = 200.0
	approxEpsilonFrac = 0.02 // polygon tolerance as a fraction of perimeter
	contourCandidates = 5    // largest contours examined for a quadrilateral
)

// Rectify locates the document boundary and returns a flattened, upright
// image rescaled to t.RectifyOutputWidth. On failure the original image is
// returned with Success=false.
func Rectify(img *image.NRGBA, t Thresholds) RectifiedDocument {
	gray := imaging.Grayscale(img)
	smoothed := imaging.GaussianBlur(gray)
	edges := imaging.EdgeMap(smoothed, edgeLowThreshold, edgeHighThreshold)

	contours := imaging.FindExternalContours(edges)
	quad, ok := findDocumentQuad(contours)
	if !ok {
		return RectifiedDocument{Image: img, Success: false}
	}

	warped, err := imaging.FourPointTransform(img, quad)
	if err != nil {
		return RectifiedDocument{Image: img, Success: false}
	}
	if warped.Bounds().Dx() == 0 || warped.Bounds().Dy() == 0 {
		return RectifiedDocument{Image: img, Success: false}
	}

	return RectifiedDocument{
		Image:   imaging.ResizeToWidth(warped, t.RectifyOutputWidth),
		Success: true,
	}
}

// findDocumentQuad examines the largest contours by area and returns the
// corner set of the first one whose polygon approximation has exactly four
// vertices.
func findDocumentQuad(contours []imaging.Contour) ([4]imaging.PointF, bool) {
	limit := len(contours)
	if limit > contourCandidates {
		limit = contourCandidates
	}
	for _, c := range contours[:limit] {
		approx := c.ApproxPolygon(approxEpsilonFrac * c.Perimeter())
		if len(approx) != 4 {
			continue
		}
		var quad [4]imaging.PointF
		for i, p := range approx {
			quad[i] = imaging.PointF{X: float64(p.X), Y: float64(p.Y)}
		}
		return quad, true
	}
	return [4]imaging.PointF{}, false
}
