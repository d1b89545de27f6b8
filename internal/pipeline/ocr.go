/**
 * OCR extraction and heuristic field derivation.
 *
 * Character recognition is delegated to an Engine; this file owns token
 * filtering, reading-order text assembly, and the regex/line heuristics
 * that pull semantic fields out of the raw text.
 */

package pipeline

import (
	"context"
	"errors"
	"image"
	"regexp"
	"strings"
)

// ErrEngineUnavailable signals that the OCR engine is not installed or not
// configured. This is an environment fault, distinct from "no text found".
var ErrEngineUnavailable = errors.New("ocr engine unavailable")

// RawWord is one token as reported by the OCR engine. A negative confidence
// is the engine's "no confidence" sentinel.
type RawWord struct {
	Text       string
	Confidence float64
	Box        image.Rectangle
}

// Engine performs character recognition on a rectified frame.
type Engine interface {
	Recognize(ctx context.Context, img *image.NRGBA) ([]RawWord, error)
}

var (
	docNumberPattern = regexp.MustCompile(`[A-Z0-9]{6,}`)
	datePattern      = regexp.MustCompile(`\b\d{2}/\d{2}/\d{4}\b|\b\d{4}-\d{2}-\d{2}\b`)
)

// ExtractText runs the engine and assembles the OCR result. Tokens with
// empty text are dropped; surviving tokens keep engine order.
func ExtractText(ctx context.Context, engine Engine, img *image.NRGBA) (*OCRResult, error) {
	raw, err := engine.Recognize(ctx, img)
	if err != nil {
		return nil, err
	}

	words := make([]OCRWord, 0, len(raw))
	for _, w := range raw {
		text := strings.TrimSpace(w.Text)
		if text == "" {
			continue
		}
		conf := w.Confidence
		if conf < 0 {
			conf = 0.0
		}
		words = append(words, OCRWord{Text: text, Confidence: conf, Box: w.Box})
	}

	parts := make([]string, len(words))
	for i, w := range words {
		parts[i] = w.Text
	}
	fullText := strings.Join(parts, "\n")

	return &OCRResult{
		FullText:        fullText,
		Words:           words,
		ExtractedFields: extractFields(fullText),
	}, nil
}

// extractFields derives semantic fields from the raw text.
func extractFields(text string) map[string]string {
	fields := make(map[string]string)

	if m := docNumberPattern.FindString(text); m != "" {
		fields["document_number"] = m
	}

	if dates := datePattern.FindAllString(text, -1); len(dates) > 0 {
		if len(dates) > 3 {
			dates = dates[:3]
		}
		fields["dates"] = strings.Join(dates, ", ")
	}

	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	for i, line := range lines {
		lower := strings.ToLower(line)
		if strings.Contains(lower, "exporter") && i+1 < len(lines) {
			fields["exporter"] = lines[i+1]
		}
		if strings.Contains(lower, "importer") && i+1 < len(lines) {
			fields["importer"] = lines[i+1]
		}
	}

	return fields
}
