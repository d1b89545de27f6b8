package pipeline

import (
	"image"

	"github.com/ncsverify/verifier-worker/internal/imaging"
)

// glareLuminance is the near-white cutoff above which a pixel counts as a
// saturated highlight.
const glareLuminance = 245.0

// AssessQuality scores sharpness and glare of a raw capture. It always
// produces a result, including for degenerate near-uniform images.
func AssessQuality(img *image.NRGBA, t Thresholds) QualityMetrics {
	gray := imaging.Grayscale(img)
	blur := imaging.LaplacianVariance(gray)
	glare := imaging.GlareRatio(gray, glareLuminance)
	return QualityMetrics{
		BlurScore:  blur,
		GlareRatio: glare,
		Acceptable: blur > t.BlurMin && glare < t.GlareMax,
	}
}
