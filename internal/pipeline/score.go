package pipeline

// ComputeScores combines the stage signals into the final result. The three
// numeric scores pass through unchanged; only the confidence band is
// derived here.
func ComputeScores(matchScore, ocrQualityScore, tamperRiskScore float64, quality QualityMetrics) ScoreResult {
	band := BandLow
	switch {
	case quality.Acceptable && matchScore > 75:
		band = BandHigh
	case matchScore > 55:
		band = BandMedium
	}

	return ScoreResult{
		TemplateMatchScore: matchScore,
		OCRQualityScore:    ocrQualityScore,
		TamperRiskScore:    tamperRiskScore,
		ConfidenceBand:     band,
	}
}
