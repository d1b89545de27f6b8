/**
 * Shared data model for the document verification pipeline.
 *
 * Stage results are transient values computed per submitted frame; the only
 * durable records are ReferenceTemplate and Session, persisted through the
 * store interfaces in analyzer.go.
 */

package pipeline

import (
	"image"
	"time"
)

// Stage identifies a point in the session state machine.
type Stage string

const (
	StageQueued     Stage = "queued"
	StageRectifying Stage = "rectifying"
	StageMatching   Stage = "matching"
	StageOCR        Stage = "ocr"
	StageTamper     Stage = "tamper"
	StageScoring    Stage = "scoring"
	StageDone       Stage = "done"
	StageError      Stage = "error"
)

// Entry percent for each stage. These are the state machine's contract with
// progress pollers; keep them in one place.
const (
	PercentQueued     = 0
	PercentRectifying = 15
	PercentMatching   = 35
	PercentOCR        = 55
	PercentTamper     = 75
	PercentScoring    = 90
	PercentTerminal   = 100
)

// QualityMetrics describes sharpness and glare of a raw capture.
type QualityMetrics struct {
	BlurScore  float64 `json:"blur_score"`
	GlareRatio float64 `json:"glare_ratio"`
	Acceptable bool    `json:"acceptable"`
}

// RectifiedDocument is the output of perspective rectification. When Success
// is false, Image is the unmodified input and must not be treated as
// rectified.
type RectifiedDocument struct {
	Image   *image.NRGBA
	Success bool
}

// MatchCandidate is a scored comparison against one reference template.
type MatchCandidate struct {
	ReferenceID string  `json:"reference_id"`
	Score       float64 `json:"score"`
}

// OCRWord is a recognized token with its confidence and pixel bounding box.
type OCRWord struct {
	Text       string          `json:"text"`
	Confidence float64         `json:"conf"`
	Box        image.Rectangle `json:"-"`
}

// OCRResult carries recognized text in engine reading order plus the fields
// derived from it.
type OCRResult struct {
	FullText        string            `json:"full_text"`
	Words           []OCRWord         `json:"words"`
	ExtractedFields map[string]string `json:"extracted_fields"`
}

// Finding categories.
const (
	CategoryLayout     = "layout"
	CategoryWatermark  = "watermark"
	CategoryTypography = "typography"
)

// Finding severities.
const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// Finding is one tamper indicator localized to a region of the rectified
// image.
type Finding struct {
	Category string  `json:"category"`
	Severity string  `json:"severity"`
	Message  string  `json:"message"`
	Box      [4]int  `json:"bbox"`
	Score    float64 `json:"score"`
}

// TamperResult aggregates tamper findings. NoReference records that the
// analysis fell back to comparing the image against itself because no
// template matched; findings are then biased toward empty.
type TamperResult struct {
	Findings    []Finding `json:"findings"`
	TamperScore float64   `json:"tamper_score"`
	NoReference bool      `json:"no_reference_available"`
}

// ScoreResult is the final numeric outcome with its confidence band.
type ScoreResult struct {
	TemplateMatchScore float64 `json:"template_match_score"`
	OCRQualityScore    float64 `json:"ocr_quality_score"`
	TamperRiskScore    float64 `json:"tamper_risk_score"`
	ConfidenceBand     string  `json:"confidence_band"`
}

// Confidence bands.
const (
	BandHigh   = "high"
	BandMedium = "medium"
	BandLow    = "low"
)

// ReferenceTemplate is an enrolled document template. Immutable after
// enrollment; the image bytes live on disk at ImagePath.
type ReferenceTemplate struct {
	ID        string                 `json:"id"`
	DocType   string                 `json:"doc_type"`
	Version   string                 `json:"version"`
	Metadata  map[string]interface{} `json:"metadata"`
	ImagePath string                 `json:"image_path"`
	CreatedAt time.Time              `json:"created_at"`
}

// Session tracks one verification attempt through the stage machine.
type Session struct {
	ID        string          `json:"id"`
	DocType   string          `json:"doc_type,omitempty"`
	Stage     Stage           `json:"stage"`
	Percent   int             `json:"percent"`
	Message   string          `json:"message,omitempty"`
	Result    *AnalysisResult `json:"result,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Terminal reports whether the session reached done or error.
func (s *Session) Terminal() bool {
	return s.Stage == StageDone || s.Stage == StageError
}

// AnalysisSummary is the caller-facing verdict for one frame.
type AnalysisSummary struct {
	DocTypeGuess         string  `json:"doc_type_guess,omitempty"`
	ReferenceID          string  `json:"reference_id,omitempty"`
	MatchScore           float64 `json:"match_score"`
	TamperRiskScore      float64 `json:"tamper_risk_score"`
	ConfidenceBand       string  `json:"confidence_band"`
	NoReferenceAvailable bool    `json:"no_reference_available"`
	Disclaimer           string  `json:"disclaimer"`
}

// AnalysisMetrics carries the full numeric breakdown.
type AnalysisMetrics struct {
	TemplateMatchScore float64        `json:"template_match_score"`
	OCRQualityScore    float64        `json:"ocr_quality_score"`
	TamperRiskScore    float64        `json:"tamper_risk_score"`
	QualityMetrics     QualityMetrics `json:"quality_metrics"`
}

// AnalysisResult is the complete terminal output of a session.
type AnalysisResult struct {
	Summary         AnalysisSummary   `json:"summary"`
	Metrics         AnalysisMetrics   `json:"metrics"`
	ExtractedFields map[string]string `json:"extracted_fields"`
	OCRText         string            `json:"ocr_text"`
	Findings        []Finding         `json:"findings"`
}

// Disclaimer is attached to every result summary.
const Disclaimer = "Offline verification against reference templates provides a risk assessment, not proof of official issuance."
