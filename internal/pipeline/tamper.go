/**
 * Grid-based tamper analysis against a matched reference template.
 *
 * Three passes over the rectified image: a fixed layout grid compared
 * cell-by-cell to the reference, declared watermark zones compared the same
 * way, and a typography check on the spread of OCR box heights.
 */

package pipeline

import (
	"image"
	"sort"

	"github.com/ncsverify/verifier-worker/internal/imaging"
)

const (
	tamperGridRows = 6
	tamperGridCols = 8

	layoutSimilarityMin    = 0.65
	watermarkSimilarityMin = 0.70
	typographyRatioMax     = 5.0

	findingWeight = 8.0
)

// AnalyzeTamper compares the rectified image against the reference template.
// When no template matched, pass the rectified image itself as reference and
// set noReference; the result then carries the flag so callers can see the
// comparison was degenerate.
func AnalyzeTamper(img, reference *image.NRGBA, metadata map[string]interface{}, ocrBoxes []image.Rectangle, noReference bool) TamperResult {
	w := img.Bounds().Dx()
	h := img.Bounds().Dy()

	resizedRef := imaging.ResizeExact(reference, w, h)
	grayImg := imaging.Grayscale(img)
	grayRef := imaging.Grayscale(resizedRef)

	var findings []Finding

	// Layout grid: equal cells, integer division like the enrollment side.
	cellW := w / tamperGridCols
	cellH := h / tamperGridRows
	for row := 0; row < tamperGridRows; row++ {
		for col := 0; col < tamperGridCols; col++ {
			box := [4]int{col * cellW, row * cellH, cellW, cellH}
			sim := regionSimilarity(grayImg, grayRef, box)
			if sim < layoutSimilarityMin {
				findings = append(findings, Finding{
					Category: CategoryLayout,
					Severity: SeverityMedium,
					Message:  "Region differs from reference pattern",
					Box:      box,
					Score:    1.0 - sim,
				})
			}
		}
	}

	for _, zone := range watermarkZones(metadata) {
		box := zoneToBox(zone, w, h)
		sim := regionSimilarity(grayImg, grayRef, box)
		if sim < watermarkSimilarityMin {
			findings = append(findings, Finding{
				Category: CategoryWatermark,
				Severity: SeverityHigh,
				Message:  "Watermark zone texture mismatch",
				Box:      box,
				Score:    1.0 - sim,
			})
		}
	}

	if f, ok := typographyFinding(ocrBoxes); ok {
		findings = append(findings, f)
	}

	score := findingWeight * float64(len(findings))
	if score > 100.0 {
		score = 100.0
	}
	return TamperResult{Findings: findings, TamperScore: score, NoReference: noReference}
}

// regionSimilarity computes SSIM over one box of both planes. Boxes that
// clip to nothing count as a perfect match so out-of-bounds zones are never
// flagged.
func regionSimilarity(a, b *imaging.Gray, box [4]int) float64 {
	r := image.Rect(box[0], box[1], box[0]+box[2], box[1]+box[3])
	pa := a.SubPlane(r)
	pb := b.SubPlane(r)
	if pa.W == 0 || pa.H == 0 || pb.W == 0 || pb.H == 0 {
		return 1.0
	}
	return imaging.SSIM(pa, pb)
}

// zone holds one watermark declaration from reference metadata.
type zone struct {
	X, Y, W, H float64
}

// zoneToBox resolves a zone to pixel coordinates. Values that are all <= 1
// are fractions of the image dimensions; anything larger means absolute
// pixels.
func zoneToBox(z zone, width, height int) [4]int {
	if z.X <= 1.0 && z.Y <= 1.0 && z.W <= 1.0 && z.H <= 1.0 {
		return [4]int{
			int(z.X * float64(width)),
			int(z.Y * float64(height)),
			int(z.W * float64(width)),
			int(z.H * float64(height)),
		}
	}
	return [4]int{int(z.X), int(z.Y), int(z.W), int(z.H)}
}

// watermarkZones pulls the zone list out of loosely typed reference
// metadata (JSON round-trips produce []interface{} of map[string]interface{}).
func watermarkZones(metadata map[string]interface{}) []zone {
	raw, ok := metadata["watermark_zones"].([]interface{})
	if !ok {
		return nil
	}
	zones := make([]zone, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		z := zone{W: 1.0, H: 1.0}
		if v, ok := toFloat(m["x"]); ok {
			z.X = v
		}
		if v, ok := toFloat(m["y"]); ok {
			z.Y = v
		}
		if v, ok := toFloat(m["w"]); ok {
			z.W = v
		}
		if v, ok := toFloat(m["h"]); ok {
			z.H = v
		}
		zones = append(zones, z)
	}
	return zones
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}

// typographyFinding flags an unusual spread of OCR word heights. The ratio
// of height variance to median height separates a forged patch of text from
// ordinary font-size variation.
func typographyFinding(boxes []image.Rectangle) (Finding, bool) {
	if len(boxes) == 0 {
		return Finding{}, false
	}
	heights := make([]float64, len(boxes))
	for i, b := range boxes {
		heights[i] = float64(b.Dy())
	}

	median := medianOf(heights)
	if median <= 0 {
		return Finding{}, false
	}
	variance := varianceOf(heights)
	if variance/median <= typographyRatioMax {
		return Finding{}, false
	}

	score := variance / (median * 10.0)
	if score > 1.0 {
		score = 1.0
	}
	first := boxes[0]
	return Finding{
		Category: CategoryTypography,
		Severity: SeverityLow,
		Message:  "Typography variance differs from expected",
		Box:      [4]int{first.Min.X, first.Min.Y, first.Dx(), first.Dy()},
		Score:    score,
	}, true
}

func medianOf(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// varianceOf is the population variance, matching the enrollment pipeline.
func varianceOf(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	var variance float64
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	return variance / float64(len(values))
}
