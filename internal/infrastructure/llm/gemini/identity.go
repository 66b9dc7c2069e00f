package gemini

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/labelinsight/label-insight/internal/core/domain"
)

// ChainMetrics counts fallback chains that exhaust every endpoint. The
// identity stage swallows exhaustion, so it has to count it here.
type ChainMetrics interface {
	RecordChainExhausted(service, stage string)
}

type noopChainMetrics struct{}

func (noopChainMetrics) RecordChainExhausted(string, string) {}

// IdentityExtractor infers product identity from raw OCR text. Identity is a
// best-effort stage: chain exhaustion and unparsable responses degrade to a
// nil result so the pipeline continues without enrichment, while fatal model
// failures still propagate because they indicate a broken request shape.
type IdentityExtractor struct {
	chain   *Chain
	logger  *slog.Logger
	metrics ChainMetrics
	service string
}

type IdentityOption func(*IdentityExtractor)

func WithChainMetrics(service string, metrics ChainMetrics) IdentityOption {
	return func(e *IdentityExtractor) {
		if metrics != nil {
			e.service = service
			e.metrics = metrics
		}
	}
}

func NewIdentityExtractor(chain *Chain, logger *slog.Logger, options ...IdentityOption) *IdentityExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	e := &IdentityExtractor{
		chain:   chain,
		logger:  logger,
		metrics: noopChainMetrics{},
		service: "api",
	}
	for _, option := range options {
		option(e)
	}
	return e
}

func (e *IdentityExtractor) ExtractIdentity(ctx context.Context, rawText string) (*domain.IdentityResult, error) {
	text, endpoint, err := e.chain.Generate(ctx, "identity", Request{
		Prompt:          buildIdentityPrompt(rawText),
		MaxOutputTokens: 512,
		Temperature:     0.7,
		JSONResponse:    true,
	})
	if err != nil {
		if domain.IsKind(err, domain.ErrChainExhausted) {
			e.logger.Warn("identity_unavailable", "stage", "identity", "reason", "chain_exhausted")
			e.metrics.RecordChainExhausted(e.service, "identity")
			return nil, nil
		}
		return nil, err
	}

	var result domain.IdentityResult
	if err := json.Unmarshal([]byte(stripCodeFences(text)), &result); err != nil {
		e.logger.Warn("identity_unavailable", "stage", "identity", "endpoint", endpoint,
			"reason", "unparsable_response", "error", err)
		return nil, nil
	}

	result.PredictedName = strings.TrimSpace(result.PredictedName)
	result.PredictedBrand = strings.TrimSpace(result.PredictedBrand)
	if result.Ingredients == nil {
		result.Ingredients = []string{}
	}
	if result.Confidence < 0 {
		result.Confidence = 0
	}
	if result.Confidence > 1 {
		result.Confidence = 1
	}
	return &result, nil
}
