package usecase

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/labelinsight/label-insight/internal/core/domain"
	"github.com/labelinsight/label-insight/internal/core/ports"
	"github.com/labelinsight/label-insight/internal/observability/requestid"
)

const (
	// Identity predictions below this confidence are not worth a directory
	// round trip.
	defaultMinIdentityConfidence = 0.6
	// Candidates whose ingredient lists overlap less than this with the OCR
	// list are considered a different product.
	defaultMinEnrichmentOverlap = 0.5
)

// PipelineMetrics is the subset of metric recording the pipeline emits.
type PipelineMetrics interface {
	RecordAnalysis(service, outcome string, score int, fallback bool)
	RecordStageDuration(service, stage string, duration time.Duration)
	RecordEnrichment(service, outcome string)
	RecordChainExhausted(service, stage string)
	RecordModelEndpoint(service, endpoint, outcome string)
}

type noopMetrics struct{}

func (noopMetrics) RecordAnalysis(string, string, int, bool)          {}
func (noopMetrics) RecordStageDuration(string, string, time.Duration) {}
func (noopMetrics) RecordEnrichment(string, string)                   {}
func (noopMetrics) RecordChainExhausted(string, string)               {}
func (noopMetrics) RecordModelEndpoint(string, string, string)        {}

// Tokenizer splits a directory candidate's free-text ingredient list.
type Tokenizer interface {
	Tokenize(text string) []string
}

type AnalyzeLabelUseCase struct {
	ocr       ports.OCRProvider
	identity  ports.IdentityExtractor
	directory ports.ProductDirectory
	validator ports.IngredientValidator
	tokenizer Tokenizer
	nutrition ports.NutritionSynthesizer
	logger    *slog.Logger
	metrics   PipelineMetrics
	service   string

	minIdentityConfidence float64
	minEnrichmentOverlap  float64
}

type AnalyzeOption func(*AnalyzeLabelUseCase)

func WithThresholds(minIdentityConfidence, minEnrichmentOverlap float64) AnalyzeOption {
	return func(uc *AnalyzeLabelUseCase) {
		if minIdentityConfidence > 0 {
			uc.minIdentityConfidence = minIdentityConfidence
		}
		if minEnrichmentOverlap > 0 {
			uc.minEnrichmentOverlap = minEnrichmentOverlap
		}
	}
}

func WithMetrics(service string, metrics PipelineMetrics) AnalyzeOption {
	return func(uc *AnalyzeLabelUseCase) {
		if metrics != nil {
			uc.service = service
			uc.metrics = metrics
		}
	}
}

func NewAnalyzeLabelUseCase(
	ocr ports.OCRProvider,
	identity ports.IdentityExtractor,
	directory ports.ProductDirectory,
	validator ports.IngredientValidator,
	tokenizer Tokenizer,
	nutrition ports.NutritionSynthesizer,
	logger *slog.Logger,
	options ...AnalyzeOption,
) *AnalyzeLabelUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	uc := &AnalyzeLabelUseCase{
		ocr:       ocr,
		identity:  identity,
		directory: directory,
		validator: validator,
		tokenizer: tokenizer,
		nutrition: nutrition,
		logger:    logger,
		metrics:   noopMetrics{},
		service:   "api",

		minIdentityConfidence: defaultMinIdentityConfidence,
		minEnrichmentOverlap:  defaultMinEnrichmentOverlap,
	}
	for _, option := range options {
		option(uc)
	}
	return uc
}

// Analyze runs the full pipeline. The result is always structurally complete:
// provider exhaustion at the final stage yields a degraded document instead
// of an error, so the caller can always render something.
func (uc *AnalyzeLabelUseCase) Analyze(ctx context.Context, imageBase64 string) (*domain.FinalAnalysis, error) {
	started := time.Now()

	ocrResult, err := uc.runOCR(ctx, imageBase64)
	if err != nil {
		uc.metrics.RecordAnalysis(uc.service, "failed", 0, false)
		return nil, err
	}

	identity, err := uc.runIdentity(ctx, ocrResult.RawText)
	if err != nil {
		uc.metrics.RecordAnalysis(uc.service, "failed", 0, false)
		return nil, err
	}

	enrichment, overlap := uc.runEnrichment(ctx, identity)

	analysis, err := uc.runNutrition(ctx, ocrResult, identity, enrichment)
	if err != nil {
		if domain.IsKind(err, domain.ErrChainExhausted) {
			analysis = uc.degradedAnalysis(ocrResult, identity)
			uc.log(ctx).Warn("analysis_degraded", "reason", "chain_exhausted")
			uc.metrics.RecordChainExhausted(uc.service, "nutrition")
			uc.metrics.RecordAnalysis(uc.service, "degraded", 0, true)
		} else {
			uc.metrics.RecordAnalysis(uc.service, "failed", 0, false)
			return nil, err
		}
	} else {
		uc.metrics.RecordAnalysis(uc.service, "full", analysis.Score.Value, false)
	}

	uc.applyMeta(ctx, analysis, ocrResult, enrichment, overlap, started)
	return analysis, nil
}

func (uc *AnalyzeLabelUseCase) runOCR(ctx context.Context, imageBase64 string) (*domain.ProcessedOCRResult, error) {
	defer uc.observeStage("ocr", time.Now())

	result, err := uc.ocr.ProcessImage(ctx, imageBase64)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (uc *AnalyzeLabelUseCase) runIdentity(ctx context.Context, rawText string) (*domain.IdentityResult, error) {
	defer uc.observeStage("identity", time.Now())

	identity, err := uc.identity.ExtractIdentity(ctx, rawText)
	if err != nil {
		return nil, err
	}
	return identity, nil
}

// runEnrichment is best effort end to end: any gate miss or lookup failure
// means the pipeline simply continues on OCR data alone.
func (uc *AnalyzeLabelUseCase) runEnrichment(ctx context.Context, identity *domain.IdentityResult) (*domain.EnrichmentCandidate, *float64) {
	defer uc.observeStage("enrichment", time.Now())
	logger := uc.log(ctx)

	if identity == nil {
		uc.metrics.RecordEnrichment(uc.service, "skipped")
		return nil, nil
	}
	if identity.Confidence < uc.minIdentityConfidence {
		logger.Info("enrichment_skipped", "reason", "low_confidence", "confidence", identity.Confidence)
		uc.metrics.RecordEnrichment(uc.service, "skipped")
		return nil, nil
	}
	if strings.TrimSpace(identity.PredictedName) == "" {
		logger.Info("enrichment_skipped", "reason", "no_predicted_name")
		uc.metrics.RecordEnrichment(uc.service, "skipped")
		return nil, nil
	}
	if len(identity.Ingredients) == 0 {
		logger.Info("enrichment_skipped", "reason", "no_ocr_ingredients")
		uc.metrics.RecordEnrichment(uc.service, "skipped")
		return nil, nil
	}

	candidate, err := uc.directory.SearchTop(ctx, searchQuery(identity))
	if err != nil {
		logger.Warn("enrichment_lookup_failed", "error", err)
		uc.metrics.RecordEnrichment(uc.service, "no_candidate")
		return nil, nil
	}
	if candidate == nil {
		uc.metrics.RecordEnrichment(uc.service, "no_candidate")
		return nil, nil
	}

	candidateIngredients := uc.tokenizer.Tokenize(candidate.IngredientsText)
	if len(candidateIngredients) == 0 {
		logger.Info("enrichment_skipped", "reason", "no_candidate_ingredients", "barcode", candidate.Barcode)
		uc.metrics.RecordEnrichment(uc.service, "skipped")
		return nil, nil
	}

	validation := uc.validator.Validate(identity.Ingredients, candidateIngredients)
	if validation.OverlapScore < uc.minEnrichmentOverlap {
		logger.Info("enrichment_rejected",
			"overlap", validation.OverlapScore,
			"threshold", uc.minEnrichmentOverlap,
			"barcode", candidate.Barcode,
		)
		uc.metrics.RecordEnrichment(uc.service, "rejected")
		return nil, nil
	}

	logger.Info("enrichment_applied", "overlap", validation.OverlapScore, "barcode", candidate.Barcode)
	uc.metrics.RecordEnrichment(uc.service, "applied")
	overlap := validation.OverlapScore
	return candidate, &overlap
}

func (uc *AnalyzeLabelUseCase) runNutrition(
	ctx context.Context,
	ocrResult *domain.ProcessedOCRResult,
	identity *domain.IdentityResult,
	enrichment *domain.EnrichmentCandidate,
) (*domain.FinalAnalysis, error) {
	defer uc.observeStage("nutrition", time.Now())

	input := ports.NutritionInput{
		Rows:       ocrResult.Rows,
		RawText:    ocrResult.RawText,
		Identity:   identity,
		Enrichment: enrichment,
	}
	if identity != nil {
		input.ProductName = identity.PredictedName
	}

	analysis, endpoint, err := uc.nutrition.Synthesize(ctx, input)
	if err != nil {
		uc.metrics.RecordModelEndpoint(uc.service, endpoint, "failed")
		return nil, err
	}
	uc.metrics.RecordModelEndpoint(uc.service, endpoint, "served")
	analysis.Meta.ModelUsed = endpoint
	return analysis, nil
}

// degradedAnalysis is the fallback document: identity fields survive when
// present, every nutrient stays null, and the score is pinned to 0 / "N/A".
func (uc *AnalyzeLabelUseCase) degradedAnalysis(ocrResult *domain.ProcessedOCRResult, identity *domain.IdentityResult) *domain.FinalAnalysis {
	analysis := &domain.FinalAnalysis{
		Ingredients: []string{},
		Score: domain.HealthScore{
			Value:       0,
			Grade:       "N/A",
			Explanation: "Analysis providers were unavailable; raw label text is preserved below.",
			Breakdown:   []domain.ScoreBreakdownItem{},
		},
		FallbackMode: true,
	}
	if identity != nil {
		analysis.ProductName = identity.PredictedName
		analysis.BrandName = identity.PredictedBrand
		if len(identity.Ingredients) > 0 {
			analysis.Ingredients = identity.Ingredients
		}
	}
	return analysis
}

func (uc *AnalyzeLabelUseCase) applyMeta(
	ctx context.Context,
	analysis *domain.FinalAnalysis,
	ocrResult *domain.ProcessedOCRResult,
	enrichment *domain.EnrichmentCandidate,
	overlap *float64,
	started time.Time,
) {
	analysis.RawText = ocrResult.RawText
	analysis.Meta.OCRSource = ocrResult.Source
	analysis.Meta.OCRLinesCount = len(ocrResult.Lines)
	analysis.Meta.EnrichmentApplied = enrichment != nil
	analysis.Meta.OverlapScore = overlap
	analysis.Meta.RequestID = requestid.FromContext(ctx)
	analysis.Meta.DurationMS = time.Since(started).Milliseconds()
}

func (uc *AnalyzeLabelUseCase) observeStage(stage string, started time.Time) {
	uc.metrics.RecordStageDuration(uc.service, stage, time.Since(started))
}

// log returns the component logger bound to the run's correlation id.
func (uc *AnalyzeLabelUseCase) log(ctx context.Context) *slog.Logger {
	if id := requestid.FromContext(ctx); id != "" {
		return uc.logger.With("request_id", id)
	}
	return uc.logger
}

func searchQuery(identity *domain.IdentityResult) string {
	query := strings.TrimSpace(identity.PredictedBrand + " " + identity.PredictedName)
	return query
}
