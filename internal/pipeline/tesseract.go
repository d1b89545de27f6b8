/**
 * Tesseract-backed OCR engine using the gosseract client.
 *
 * Word-level boxes come from GetBoundingBoxes at RIL_WORD granularity.
 * Recognition failures on a valid image mean the engine or its trained data
 * is missing, so they surface as ErrEngineUnavailable rather than a
 * content-related failure.
 */

package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"

	"github.com/otiai10/gosseract/v2"

	"github.com/ncsverify/verifier-worker/internal/logging"
)

// TesseractEngine implements Engine using a local Tesseract installation.
type TesseractEngine struct {
	language      string
	clientFactory func() *gosseract.Client
	logger        *logging.Logger
}

// NewTesseractEngine constructs a Tesseract-backed OCR engine. An empty
// language defaults to the client's configuration.
func NewTesseractEngine(language string) *TesseractEngine {
	return &TesseractEngine{
		language:      language,
		clientFactory: gosseract.NewClient,
		logger:        logging.NewLogger("TesseractEngine"),
	}
}

// Recognize runs word-level OCR on the frame.
func (t *TesseractEngine) Recognize(ctx context.Context, img *image.NRGBA) ([]RawWord, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode frame for ocr: %w", err)
	}

	client := t.clientFactory()
	defer client.Close()

	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("set ocr image: %w", err)
	}
	if t.language != "" {
		if err := client.SetLanguage(t.language); err != nil {
			return nil, fmt.Errorf("%w: set language: %v", ErrEngineUnavailable, err)
		}
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		t.logger.Error("Recognition failed", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
	}
	t.logger.Debug("Recognition completed", "words", len(boxes), "language", t.language)

	words := make([]RawWord, 0, len(boxes))
	for _, b := range boxes {
		words = append(words, RawWord{
			Text:       b.Word,
			Confidence: b.Confidence,
			Box:        b.Box,
		})
	}
	return words, nil
}
