//go:build tesseract

package ocr

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/otiai10/gosseract/v2"

	"github.com/labelinsight/label-insight/internal/core/domain"
)

// LocalEngine is a tesseract-backed stand-in for the primary OCR service,
// selected with OCR_PRIMARY_MODE=local. Useful for development without the
// hosted primary engine. Requires the tesseract build tag and a system
// tesseract installation.
type LocalEngine struct {
	language string
}

func NewLocalEngine(language string) *LocalEngine {
	if language == "" {
		language = "eng"
	}
	return &LocalEngine{language: language}
}

func newLocalEngine(language string) (primaryEngine, error) {
	return NewLocalEngine(language), nil
}

func (e *LocalEngine) Recognize(ctx context.Context, imageBase64 string) ([]domain.OCRLine, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	imageBytes, err := base64.StdEncoding.DecodeString(imageBase64)
	if err != nil {
		return nil, fmt.Errorf("decode image for local ocr: %w", err)
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(e.language); err != nil {
		return nil, fmt.Errorf("set tesseract language: %w", err)
	}
	if err := client.SetImageFromBytes(imageBytes); err != nil {
		return nil, fmt.Errorf("set tesseract image: %w", err)
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return nil, fmt.Errorf("tesseract bounding boxes: %w", err)
	}

	lines := make([]domain.OCRLine, 0, len(boxes))
	for _, box := range boxes {
		if box.Word == "" {
			continue
		}
		lines = append(lines, domain.OCRLine{
			Text:       box.Word,
			Confidence: float64(box.Confidence) / 100.0,
			Box: [4]domain.Point{
				{X: float64(box.Box.Min.X), Y: float64(box.Box.Min.Y)},
				{X: float64(box.Box.Max.X), Y: float64(box.Box.Min.Y)},
				{X: float64(box.Box.Max.X), Y: float64(box.Box.Max.Y)},
				{X: float64(box.Box.Min.X), Y: float64(box.Box.Max.Y)},
			},
		})
	}
	if len(lines) == 0 {
		return nil, errors.New("local ocr recognized zero lines")
	}
	return lines, nil
}
