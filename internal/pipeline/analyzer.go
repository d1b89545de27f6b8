/**
 * Session orchestrator for the verification pipeline.
 *
 * Drives one submitted frame through quality assessment, rectification,
 * template matching, OCR, tamper analysis and scoring, recording an
 * observable stage/percent update before each stage's work. Every failure is
 * recorded into the session as a terminal error and re-signaled to the
 * caller; nothing is swallowed and nothing is retried here.
 */

package pipeline

import (
	"context"
	stderrors "errors"
	"fmt"
	"image"
	"os"

	"github.com/ncsverify/verifier-worker/internal/errors"
	"github.com/ncsverify/verifier-worker/internal/imaging"
	"github.com/ncsverify/verifier-worker/internal/logging"
)

// ErrNotFound is returned by stores for missing references or sessions.
var ErrNotFound = stderrors.New("not found")

// ReferenceStore is the enrollment-side template collection. List order must
// be stable within one matching call.
type ReferenceStore interface {
	Add(ctx context.Context, ref *ReferenceTemplate) error
	Get(ctx context.Context, id string) (*ReferenceTemplate, error)
	List(ctx context.Context) ([]*ReferenceTemplate, error)
}

// SessionStore tracks verification sessions. UpdateStatus must apply the
// stage/percent/message group atomically and never lower percent or re-open
// a terminal session; SetResult implies the done/100 transition and is valid
// exactly once.
type SessionStore interface {
	Create(ctx context.Context, docType string) (string, error)
	UpdateStatus(ctx context.Context, id string, stage Stage, percent int, message string) error
	SetResult(ctx context.Context, id string, result *AnalysisResult) error
	Get(ctx context.Context, id string) (*Session, error)
}

// ProgressPublisher broadcasts stage transitions for pollers. Publishing is
// best effort; failures must not affect the pipeline.
type ProgressPublisher interface {
	PublishProgress(ctx context.Context, sessionID string, stage Stage, percent int, message string)
}

// ocrWordWeight converts a word count into the OCR quality score, capped at
// 100.
const ocrWordWeight = 1.5

// AnalyzerConfig holds analyzer dependencies.
type AnalyzerConfig struct {
	References ReferenceStore
	Sessions   SessionStore
	Engine     Engine
	Thresholds Thresholds
	Progress   ProgressPublisher // optional
}

// DocumentAnalyzer sequences the pipeline stages for submitted frames.
type DocumentAnalyzer struct {
	refs       ReferenceStore
	sessions   SessionStore
	engine     Engine
	thresholds Thresholds
	progress   ProgressPublisher
	log        *logging.Logger
}

// NewDocumentAnalyzer creates a new analyzer.
func NewDocumentAnalyzer(cfg *AnalyzerConfig) (*DocumentAnalyzer, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.References == nil {
		return nil, fmt.Errorf("reference store is required")
	}
	if cfg.Sessions == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if cfg.Engine == nil {
		return nil, fmt.Errorf("ocr engine is required")
	}
	return &DocumentAnalyzer{
		refs:       cfg.References,
		sessions:   cfg.Sessions,
		engine:     cfg.Engine,
		thresholds: cfg.Thresholds,
		progress:   cfg.Progress,
		log:        logging.NewLogger("DocumentAnalyzer"),
	}, nil
}

// AnalyzeFrame runs the full pipeline for one frame of an open session.
func (a *DocumentAnalyzer) AnalyzeFrame(ctx context.Context, sessionID, docType string, imageData []byte) (*AnalysisResult, error) {
	session, err := a.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", sessionID, err)
	}
	if session.Terminal() {
		return nil, fmt.Errorf("session %s is already terminal (%s)", sessionID, session.Stage)
	}

	// Decode before touching session state so a bad upload leaves the
	// session open for a corrected retry.
	frame, err := imaging.Decode(imageData)
	if err != nil {
		if stderrors.Is(err, imaging.ErrEmptyInput) {
			return nil, errors.NewEmptyInputError(sessionID)
		}
		return nil, errors.NewUnsupportedFormatError(sessionID, err)
	}

	slog := logging.ForSession(sessionID)

	a.updateStatus(ctx, sessionID, StageRectifying, PercentRectifying, "")
	quality := AssessQuality(frame, a.thresholds)
	slog.Info("Quality assessed",
		"blur", fmt.Sprintf("%.1f", quality.BlurScore),
		"glare", fmt.Sprintf("%.3f", quality.GlareRatio),
		"acceptable", quality.Acceptable)

	rectified := Rectify(frame, a.thresholds)
	if !rectified.Success {
		return nil, a.fail(ctx, sessionID, "Could not detect document edges",
			errors.NewBoundaryDetectionError(sessionID, nil))
	}

	a.updateStatus(ctx, sessionID, StageMatching, PercentMatching, "")
	references, err := a.loadReferences(ctx)
	if err != nil {
		return nil, a.fail(ctx, sessionID, "Reference store unavailable",
			errors.NewStorageFailedError(sessionID, err))
	}
	candidate := MatchReference(rectified.Image, references, a.thresholds)
	matchScore := 0.0
	referenceID := ""
	if candidate != nil {
		matchScore = candidate.Score
		referenceID = candidate.ReferenceID
	}
	slog.Info("Template matching finished",
		"references", len(references),
		"best", referenceID,
		"score", fmt.Sprintf("%.1f", matchScore))

	a.updateStatus(ctx, sessionID, StageOCR, PercentOCR, "")
	ocrResult, err := ExtractText(ctx, a.engine, rectified.Image)
	if err != nil {
		if stderrors.Is(err, ErrEngineUnavailable) {
			return nil, a.fail(ctx, sessionID, "OCR engine not installed",
				errors.NewOCRUnavailableError(sessionID, err))
		}
		return nil, a.fail(ctx, sessionID, "Could not read document text", &errors.VerifyError{
			Code:      errors.ErrorInternalCompute,
			Message:   "OCR stage failed",
			SessionID: sessionID,
			Cause:     err,
		})
	}
	ocrQualityScore := float64(len(ocrResult.Words)) * ocrWordWeight
	if ocrQualityScore > 100.0 {
		ocrQualityScore = 100.0
	}

	a.updateStatus(ctx, sessionID, StageTamper, PercentTamper, "")
	referenceImage := rectified.Image
	referenceMetadata := map[string]interface{}{}
	noReference := true
	if referenceID != "" {
		if ref, img, refErr := a.loadReference(ctx, referenceID); refErr == nil {
			referenceImage = img
			referenceMetadata = ref.Metadata
			noReference = false
		} else {
			slog.Warn("Matched reference unavailable", "reference", referenceID, "error", refErr)
		}
	}
	boxes := make([]image.Rectangle, len(ocrResult.Words))
	for i, w := range ocrResult.Words {
		boxes[i] = w.Box
	}
	tamper := AnalyzeTamper(rectified.Image, referenceImage, referenceMetadata, boxes, noReference)
	slog.Info("Tamper analysis finished",
		"findings", len(tamper.Findings),
		"score", fmt.Sprintf("%.1f", tamper.TamperScore),
		"noReference", tamper.NoReference)

	a.updateStatus(ctx, sessionID, StageScoring, PercentScoring, "")
	scores := ComputeScores(matchScore, ocrQualityScore, tamper.TamperScore, quality)

	result := &AnalysisResult{
		Summary: AnalysisSummary{
			DocTypeGuess:         docType,
			ReferenceID:          referenceID,
			MatchScore:           scores.TemplateMatchScore,
			TamperRiskScore:      scores.TamperRiskScore,
			ConfidenceBand:       scores.ConfidenceBand,
			NoReferenceAvailable: tamper.NoReference,
			Disclaimer:           Disclaimer,
		},
		Metrics: AnalysisMetrics{
			TemplateMatchScore: scores.TemplateMatchScore,
			OCRQualityScore:    scores.OCRQualityScore,
			TamperRiskScore:    scores.TamperRiskScore,
			QualityMetrics:     quality,
		},
		ExtractedFields: ocrResult.ExtractedFields,
		OCRText:         ocrResult.FullText,
		Findings:        tamper.Findings,
	}
	if result.Findings == nil {
		result.Findings = []Finding{}
	}

	if err := a.sessions.SetResult(ctx, sessionID, result); err != nil {
		return nil, errors.NewStorageFailedError(sessionID, err)
	}
	a.publish(ctx, sessionID, StageDone, PercentTerminal, "")
	slog.Info("Analysis completed",
		"band", scores.ConfidenceBand,
		"match", fmt.Sprintf("%.1f", matchScore),
		"tamper", fmt.Sprintf("%.1f", tamper.TamperScore))

	return result, nil
}

// fail records a terminal error state on the session and returns the
// structured error for the caller.
func (a *DocumentAnalyzer) fail(ctx context.Context, sessionID, message string, verr *errors.VerifyError) error {
	if err := a.sessions.UpdateStatus(ctx, sessionID, StageError, PercentTerminal, message); err != nil {
		logging.ForSession(sessionID).Warn("Failed to record error state", "error", err)
	}
	a.publish(ctx, sessionID, StageError, PercentTerminal, message)
	return verr
}

func (a *DocumentAnalyzer) updateStatus(ctx context.Context, sessionID string, stage Stage, percent int, message string) {
	if err := a.sessions.UpdateStatus(ctx, sessionID, stage, percent, message); err != nil {
		logging.ForSession(sessionID).Warn("Failed to update status", "stage", stage, "error", err)
	}
	a.publish(ctx, sessionID, stage, percent, message)
}

func (a *DocumentAnalyzer) publish(ctx context.Context, sessionID string, stage Stage, percent int, message string) {
	if a.progress != nil {
		a.progress.PublishProgress(ctx, sessionID, stage, percent, message)
	}
}

// loadReferences lists enrolled templates and decodes their images,
// skipping entries whose image files are unreadable.
func (a *DocumentAnalyzer) loadReferences(ctx context.Context) ([]Reference, error) {
	templates, err := a.refs.List(ctx)
	if err != nil {
		return nil, err
	}
	refs := make([]Reference, 0, len(templates))
	for _, t := range templates {
		img, err := readImageFile(t.ImagePath)
		if err != nil {
			a.log.Warn("Skipping unreadable reference", "reference", t.ID, "error", err)
			continue
		}
		refs = append(refs, Reference{ID: t.ID, Image: img})
	}
	return refs, nil
}

func (a *DocumentAnalyzer) loadReference(ctx context.Context, id string) (*ReferenceTemplate, *image.NRGBA, error) {
	ref, err := a.refs.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	img, err := readImageFile(ref.ImagePath)
	if err != nil {
		return nil, nil, err
	}
	return ref, img, nil
}

func readImageFile(path string) (*image.NRGBA, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read reference image: %w", err)
	}
	return imaging.Decode(data)
}
