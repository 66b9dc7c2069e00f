package ocr

import (
	"context"
	"log/slog"
	"strings"

	"github.com/labelinsight/label-insight/internal/core/domain"
	"github.com/labelinsight/label-insight/internal/core/ports"
)

// primaryEngine lets the gosseract-backed local engine stand in for the HTTP
// primary when built with the tesseract tag.
type primaryEngine interface {
	Recognize(ctx context.Context, imageBase64 string) ([]domain.OCRLine, error)
}

type secondaryEngine interface {
	Recognize(ctx context.Context, imageBase64 string) (*secondaryResult, error)
}

// EngineMetrics counts which engine served or failed each OCR request.
type EngineMetrics interface {
	RecordOCREngine(service, engine, outcome string)
}

type noopEngineMetrics struct{}

func (noopEngineMetrics) RecordOCREngine(string, string, string) {}

// Adapter normalizes the two incompatible OCR engines into one line/box
// model. The primary engine gets a single bounded attempt; on timeout, error
// or zero lines the adapter fails over to the secondary engine once. There is
// no retry loop around either engine.
type Adapter struct {
	primary      primaryEngine
	secondary    secondaryEngine
	layout       ports.LayoutReconstructor
	maxDimension int
	logger       *slog.Logger
	metrics      EngineMetrics
	service      string
}

type AdapterOption func(*Adapter)

func WithEngineMetrics(service string, metrics EngineMetrics) AdapterOption {
	return func(a *Adapter) {
		if metrics != nil {
			a.service = service
			a.metrics = metrics
		}
	}
}

func NewAdapter(primary primaryEngine, secondary secondaryEngine, layout ports.LayoutReconstructor, maxDimension int, logger *slog.Logger, options ...AdapterOption) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	a := &Adapter{
		primary:      primary,
		secondary:    secondary,
		layout:       layout,
		maxDimension: maxDimension,
		logger:       logger,
		metrics:      noopEngineMetrics{},
		service:      "api",
	}
	for _, option := range options {
		option(a)
	}
	return a
}

func (a *Adapter) ProcessImage(ctx context.Context, imageBase64 string) (*domain.ProcessedOCRResult, error) {
	payload, err := NormalizePayload(imageBase64, a.maxDimension)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "ocr: normalize payload", err)
	}

	lines, primaryErr := a.primary.Recognize(ctx, payload)
	if primaryErr == nil {
		a.logger.Info("ocr_engine_served", "stage", "ocr", "engine", domain.OCRSourcePrimary, "lines", len(lines))
		a.metrics.RecordOCREngine(a.service, string(domain.OCRSourcePrimary), "served")
		return a.buildResult(lines, domain.OCRSourcePrimary), nil
	}
	if err := ctx.Err(); err != nil {
		// The enclosing request is gone; do not burn the secondary quota.
		return nil, err
	}
	a.logger.Warn("ocr_engine_failover", "stage", "ocr", "engine", domain.OCRSourcePrimary, "error", primaryErr)
	a.metrics.RecordOCREngine(a.service, string(domain.OCRSourcePrimary), "failed")

	secondary, secondaryErr := a.secondary.Recognize(ctx, payload)
	if secondaryErr != nil {
		a.logger.Error("ocr_engines_exhausted", "stage", "ocr",
			"primary_error", primaryErr, "secondary_error", secondaryErr)
		a.metrics.RecordOCREngine(a.service, string(domain.OCRSourceSecondary), "failed")
		return nil, domain.WrapError(domain.ErrEngineUnavailable, "ocr: both engines failed", secondaryErr)
	}

	lines = aggregateSecondaryLines(secondary.Lines)
	if len(lines) == 0 {
		raw := strings.TrimSpace(secondary.ParsedText)
		if raw == "" {
			a.logger.Error("ocr_engines_exhausted", "stage", "ocr",
				"primary_error", primaryErr, "secondary_error", "empty secondary result")
			a.metrics.RecordOCREngine(a.service, string(domain.OCRSourceSecondary), "failed")
			return nil, domain.WrapError(domain.ErrEngineUnavailable, "ocr: both engines failed", primaryErr)
		}
		a.logger.Info("ocr_engine_served", "stage", "ocr", "engine", domain.OCRSourceSecondaryNoLayout, "lines", 0)
		a.metrics.RecordOCREngine(a.service, string(domain.OCRSourceSecondaryNoLayout), "served")
		return &domain.ProcessedOCRResult{
			Lines:   []domain.OCRLine{},
			Rows:    []domain.OCRRow{},
			RawText: raw,
			Source:  domain.OCRSourceSecondaryNoLayout,
		}, nil
	}

	a.logger.Info("ocr_engine_served", "stage", "ocr", "engine", domain.OCRSourceSecondary, "lines", len(lines))
	a.metrics.RecordOCREngine(a.service, string(domain.OCRSourceSecondary), "served")
	return a.buildResult(lines, domain.OCRSourceSecondary), nil
}

func (a *Adapter) buildResult(lines []domain.OCRLine, source domain.OCRSource) *domain.ProcessedOCRResult {
	texts := make([]string, 0, len(lines))
	for _, line := range lines {
		texts = append(texts, line.Text)
	}
	return &domain.ProcessedOCRResult{
		Lines:   lines,
		Rows:    a.layout.Rows(lines),
		RawText: strings.Join(texts, "\n"),
		Source:  source,
	}
}

// aggregateSecondaryLines folds each overlay line's word boxes into one
// four-point line box via min/max of the word corners. Lines with zero
// constituent words are skipped.
func aggregateSecondaryLines(overlay []secondaryLine) []domain.OCRLine {
	lines := make([]domain.OCRLine, 0, len(overlay))
	for _, raw := range overlay {
		if len(raw.Words) == 0 {
			continue
		}

		minX, minY := raw.Words[0].Left, raw.Words[0].Top
		maxX := raw.Words[0].Left + raw.Words[0].Width
		maxY := raw.Words[0].Top + raw.Words[0].Height
		texts := make([]string, 0, len(raw.Words))

		for _, word := range raw.Words {
			texts = append(texts, word.WordText)
			if word.Left < minX {
				minX = word.Left
			}
			if word.Top < minY {
				minY = word.Top
			}
			if right := word.Left + word.Width; right > maxX {
				maxX = right
			}
			if bottom := word.Top + word.Height; bottom > maxY {
				maxY = bottom
			}
		}

		text := raw.LineText
		if strings.TrimSpace(text) == "" {
			text = strings.Join(texts, " ")
		}

		lines = append(lines, domain.OCRLine{
			Text: text,
			Box: [4]domain.Point{
				{X: minX, Y: minY},
				{X: maxX, Y: minY},
				{X: maxX, Y: maxY},
				{X: minX, Y: maxY},
			},
		})
	}
	return lines
}
