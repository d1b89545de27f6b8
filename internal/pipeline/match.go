/**
 * Template matching by mean structural similarity.
 *
 * Candidates are scored independently and may run concurrently; selection is
 * deterministic regardless of completion order because ties resolve by the
 * order in which references were listed by the store.
 */

package pipeline

import (
	"image"
	"runtime"
	"sync"

	"github.com/ncsverify/verifier-worker/internal/imaging"
)

// Reference pairs a template ID with its enrolled image for matching.
type Reference struct {
	ID    string
	Image *image.NRGBA
}

// ComputeMatchScore compares two frames and returns a similarity score in
// [0, 100]. Both are normalized to a common width and cropped top-aligned to
// the smaller height before the grayscale SSIM comparison.
func ComputeMatchScore(img, ref *image.NRGBA, t Thresholds) float64 {
	a := imaging.ResizeToWidth(img, t.MatchWidth)
	b := imaging.ResizeToWidth(ref, t.MatchWidth)

	minHeight := a.Bounds().Dy()
	if h := b.Bounds().Dy(); h < minHeight {
		minHeight = h
	}
	a = imaging.CropTop(a, minHeight)
	b = imaging.CropTop(b, minHeight)

	return imaging.SSIM(imaging.Grayscale(a), imaging.Grayscale(b)) * 100.0
}

// MatchReference scores the image against every reference and returns the
// best candidate, or nil when no references exist. The strictly highest
// score wins; on an exact tie the earlier reference in the slice wins.
func MatchReference(img *image.NRGBA, refs []Reference, t Thresholds) *MatchCandidate {
	if len(refs) == 0 {
		return nil
	}

	scores := make([]float64, len(refs))
	workers := runtime.NumCPU()
	if workers > len(refs) {
		workers = len(refs)
	}

	var wg sync.WaitGroup
	jobs := make(chan int)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				scores[i] = ComputeMatchScore(img, refs[i].Image, t)
			}
		}()
	}
	for i := range refs {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	best := 0
	for i := 1; i < len(refs); i++ {
		if scores[i] > scores[best] {
			best = i
		}
	}
	return &MatchCandidate{ReferenceID: refs[best].ID, Score: scores[best]}
}
