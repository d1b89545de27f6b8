package pipeline

import (
	"image/color"
	"math"
	"testing"
)

func matchThresholds() Thresholds {
	t := DefaultThresholds()
	t.MatchWidth = 120
	return t
}

func TestComputeMatchScoreIdentity(t *testing.T) {
	img := checkerImage(200, 160,
		color.NRGBA{R: 20, G: 20, B: 20, A: 255},
		color.NRGBA{R: 220, G: 220, B: 220, A: 255})

	score := ComputeMatchScore(img, img, matchThresholds())
	if math.Abs(score-100.0) > 1e-6 {
		t.Fatalf("self match score = %v, want 100", score)
	}
}

func TestComputeMatchScoreDistinguishes(t *testing.T) {
	img := checkerImage(200, 160,
		color.NRGBA{R: 20, G: 20, B: 20, A: 255},
		color.NRGBA{R: 220, G: 220, B: 220, A: 255})
	other := fillImage(200, 160, color.NRGBA{R: 255, G: 255, B: 255, A: 255})

	same := ComputeMatchScore(img, img, matchThresholds())
	diff := ComputeMatchScore(img, other, matchThresholds())
	if diff >= same {
		t.Fatalf("unrelated reference scored %v, not below identity %v", diff, same)
	}
}

func TestMatchReferenceEmpty(t *testing.T) {
	img := fillImage(100, 100, color.NRGBA{R: 128, G: 128, B: 128, A: 255})
	if got := MatchReference(img, nil, matchThresholds()); got != nil {
		t.Fatalf("expected nil candidate for empty reference set, got %+v", got)
	}
}

func TestMatchReferencePicksBest(t *testing.T) {
	img := checkerImage(200, 160,
		color.NRGBA{R: 20, G: 20, B: 20, A: 255},
		color.NRGBA{R: 220, G: 220, B: 220, A: 255})
	refs := []Reference{
		{ID: "blank", Image: fillImage(200, 160, color.NRGBA{R: 255, G: 255, B: 255, A: 255})},
		{ID: "same", Image: img},
	}

	got := MatchReference(img, refs, matchThresholds())
	if got == nil || got.ReferenceID != "same" {
		t.Fatalf("best candidate = %+v, want the identical reference", got)
	}
	if math.Abs(got.Score-100.0) > 1e-6 {
		t.Fatalf("best score = %v, want 100", got.Score)
	}
}

func TestMatchReferenceTieBreaksByOrder(t *testing.T) {
	img := checkerImage(200, 160,
		color.NRGBA{R: 20, G: 20, B: 20, A: 255},
		color.NRGBA{R: 220, G: 220, B: 220, A: 255})
	refs := []Reference{
		{ID: "first", Image: img},
		{ID: "second", Image: img},
	}

	// Identical references produce identical scores. The earlier one must
	// win regardless of which goroutine finishes first.
	for i := 0; i < 10; i++ {
		got := MatchReference(img, refs, matchThresholds())
		if got == nil || got.ReferenceID != "first" {
			t.Fatalf("iteration %d: tie resolved to %+v, want first", i, got)
		}
	}
}
