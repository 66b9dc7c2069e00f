package gemini

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/labelinsight/label-insight/internal/core/domain"
	"github.com/labelinsight/label-insight/internal/core/ports"
)

// NutritionSynthesizer produces the final structured analysis document. It is
// configured for near-deterministic output; a parse failure here is fatal for
// the call (fail-fast, no re-prompt) to conserve provider quota.
type NutritionSynthesizer struct {
	chain  *Chain
	logger *slog.Logger
}

func NewNutritionSynthesizer(chain *Chain, logger *slog.Logger) *NutritionSynthesizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &NutritionSynthesizer{chain: chain, logger: logger}
}

type nutritionPayload struct {
	ProductName     string                 `json:"product_name"`
	BrandName       string                 `json:"brand_name"`
	Ingredients     []string               `json:"ingredients"`
	NutritionalInfo domain.NutritionRecord `json:"nutritional_info"`
	OCRScore        struct {
		Score          int                         `json:"score"`
		Grade          string                      `json:"grade"`
		Explanation    string                      `json:"explanation"`
		Breakdown      []domain.ScoreBreakdownItem `json:"breakdown"`
		ConfidenceNote string                      `json:"confidence_note"`
	} `json:"ocr_score"`
}

// Synthesize returns the analysis and the name of the endpoint that served
// it. Chain exhaustion propagates as domain.ErrChainExhausted so the caller
// can degrade instead of failing.
func (s *NutritionSynthesizer) Synthesize(ctx context.Context, input ports.NutritionInput) (*domain.FinalAnalysis, string, error) {
	text, endpoint, err := s.chain.Generate(ctx, "nutrition", Request{
		System:          nutritionSystemInstruction,
		Prompt:          buildNutritionPrompt(input),
		MaxOutputTokens: 2048,
		Temperature:     0.1,
		JSONResponse:    true,
	})
	if err != nil {
		return nil, "", err
	}

	var payload nutritionPayload
	if err := json.Unmarshal([]byte(stripCodeFences(text)), &payload); err != nil {
		s.logger.Error("nutrition_parse_failure", "stage", "nutrition", "endpoint", endpoint, "error", err)
		return nil, endpoint, domain.WrapError(domain.ErrParseFailure, "nutrition: "+endpoint, err)
	}

	if payload.Ingredients == nil {
		payload.Ingredients = []string{}
	}
	if payload.OCRScore.Breakdown == nil {
		payload.OCRScore.Breakdown = []domain.ScoreBreakdownItem{}
	}

	// The grade is derived from the clamped score server-side so the band
	// mapping holds even when the model disagrees with itself.
	value := domain.ClampScore(payload.OCRScore.Score)

	analysis := &domain.FinalAnalysis{
		ProductName: payload.ProductName,
		BrandName:   payload.BrandName,
		Ingredients: payload.Ingredients,
		Nutrition:   payload.NutritionalInfo,
		Score: domain.HealthScore{
			Value:          value,
			Grade:          domain.GradeForScore(value),
			Explanation:    payload.OCRScore.Explanation,
			Breakdown:      payload.OCRScore.Breakdown,
			ConfidenceNote: payload.OCRScore.ConfidenceNote,
		},
	}
	return analysis, endpoint, nil
}
