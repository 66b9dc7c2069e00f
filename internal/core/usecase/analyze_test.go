package usecase

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/labelinsight/label-insight/internal/core/domain"
	"github.com/labelinsight/label-insight/internal/core/ports"
	"github.com/labelinsight/label-insight/internal/observability/requestid"
)

type ocrFake struct {
	result *domain.ProcessedOCRResult
	err    error
}

func (f *ocrFake) ProcessImage(context.Context, string) (*domain.ProcessedOCRResult, error) {
	return f.result, f.err
}

type identityFake struct {
	result *domain.IdentityResult
	err    error
}

func (f *identityFake) ExtractIdentity(context.Context, string) (*domain.IdentityResult, error) {
	return f.result, f.err
}

type directoryFake struct {
	candidate   *domain.EnrichmentCandidate
	err         error
	searchCalls int
}

func (f *directoryFake) SearchTop(_ context.Context, _ string) (*domain.EnrichmentCandidate, error) {
	f.searchCalls++
	return f.candidate, f.err
}

func (f *directoryFake) FetchByBarcode(context.Context, string) (*domain.EnrichmentCandidate, error) {
	return nil, nil
}

type validatorFake struct {
	result domain.ValidationResult
}

func (f *validatorFake) Validate(_, _ []string) domain.ValidationResult {
	return f.result
}

type tokenizerFake struct{}

func (tokenizerFake) Tokenize(text string) []string {
	parts := strings.Split(text, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

type synthFake struct {
	analysis  *domain.FinalAnalysis
	endpoint  string
	err       error
	lastInput ports.NutritionInput
}

func (f *synthFake) Synthesize(_ context.Context, input ports.NutritionInput) (*domain.FinalAnalysis, string, error) {
	f.lastInput = input
	if f.err != nil {
		return nil, f.endpoint, f.err
	}
	out := *f.analysis
	return &out, f.endpoint, nil
}

func okOCR() *domain.ProcessedOCRResult {
	line := domain.OCRLine{Text: "OAT DRINK", Box: [4]domain.Point{{X: 0, Y: 0}, {X: 90, Y: 0}, {X: 90, Y: 12}, {X: 0, Y: 12}}}
	return &domain.ProcessedOCRResult{
		Lines:   []domain.OCRLine{line},
		Rows:    []domain.OCRRow{{Lines: []domain.OCRLine{line}}},
		RawText: "OAT DRINK",
		Source:  domain.OCRSourcePrimary,
	}
}

func okAnalysis() *domain.FinalAnalysis {
	sugar := 4.1
	return &domain.FinalAnalysis{
		ProductName: "Oat Drink",
		Ingredients: []string{"water", "oats"},
		Nutrition:   domain.NutritionRecord{Sugar: &sugar},
		Score:       domain.HealthScore{Value: 62, Grade: "C"},
	}
}

func newUseCase(ocr *ocrFake, id *identityFake, dir *directoryFake, val *validatorFake, synth *synthFake) *AnalyzeLabelUseCase {
	return NewAnalyzeLabelUseCase(ocr, id, dir, val, tokenizerFake{}, synth, nil)
}

func TestAnalyzeAppliesEnrichmentAboveThresholds(t *testing.T) {
	dir := &directoryFake{candidate: &domain.EnrichmentCandidate{
		Barcode:         "123",
		Name:            "Oat Drink",
		IngredientsText: "water, oats, rapeseed oil",
	}}
	synth := &synthFake{analysis: okAnalysis(), endpoint: "flash"}
	uc := newUseCase(
		&ocrFake{result: okOCR()},
		&identityFake{result: &domain.IdentityResult{
			PredictedName: "Oat Drink",
			Ingredients:   []string{"water", "oats"},
			Confidence:    0.9,
		}},
		dir,
		&validatorFake{result: domain.ValidationResult{OverlapScore: 1.0}},
		synth,
	)

	analysis, err := uc.Analyze(context.Background(), "aW1n")
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if !analysis.Meta.EnrichmentApplied {
		t.Fatal("expected enrichment to apply")
	}
	if analysis.Meta.OverlapScore == nil || *analysis.Meta.OverlapScore != 1.0 {
		t.Fatalf("unexpected overlap: %v", analysis.Meta.OverlapScore)
	}
	if synth.lastInput.Enrichment == nil || synth.lastInput.Enrichment.Barcode != "123" {
		t.Fatal("synthesis input must carry the validated candidate")
	}
	if analysis.Meta.ModelUsed != "flash" {
		t.Fatalf("unexpected model: %s", analysis.Meta.ModelUsed)
	}
	if analysis.Meta.OCRSource != domain.OCRSourcePrimary || analysis.Meta.OCRLinesCount != 1 {
		t.Fatalf("unexpected meta: %+v", analysis.Meta)
	}
	if analysis.RawText != "OAT DRINK" {
		t.Fatalf("raw text not preserved: %q", analysis.RawText)
	}
}

func TestAnalyzeSkipsDirectoryOnLowConfidence(t *testing.T) {
	dir := &directoryFake{candidate: &domain.EnrichmentCandidate{IngredientsText: "water"}}
	synth := &synthFake{analysis: okAnalysis(), endpoint: "flash"}
	uc := newUseCase(
		&ocrFake{result: okOCR()},
		&identityFake{result: &domain.IdentityResult{
			PredictedName: "Maybe Chips",
			Ingredients:   []string{"potato"},
			Confidence:    0.4,
		}},
		dir,
		&validatorFake{result: domain.ValidationResult{OverlapScore: 1.0}},
		synth,
	)

	analysis, err := uc.Analyze(context.Background(), "aW1n")
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if dir.searchCalls != 0 {
		t.Fatalf("low confidence must short-circuit before the directory, got %d calls", dir.searchCalls)
	}
	if analysis.Meta.EnrichmentApplied {
		t.Fatal("enrichment must not apply")
	}
	if synth.lastInput.Enrichment != nil {
		t.Fatal("synthesis input must not carry a candidate")
	}
}

func TestAnalyzeSkipsDirectoryWithoutPredictedName(t *testing.T) {
	dir := &directoryFake{candidate: &domain.EnrichmentCandidate{IngredientsText: "water"}}
	synth := &synthFake{analysis: okAnalysis(), endpoint: "flash"}
	uc := newUseCase(
		&ocrFake{result: okOCR()},
		&identityFake{result: &domain.IdentityResult{
			PredictedName: "   ",
			Ingredients:   []string{"water", "oats"},
			Confidence:    0.9,
		}},
		dir,
		&validatorFake{result: domain.ValidationResult{OverlapScore: 1.0}},
		synth,
	)

	analysis, err := uc.Analyze(context.Background(), "aW1n")
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if dir.searchCalls != 0 {
		t.Fatalf("blank product name must short-circuit before the directory, got %d calls", dir.searchCalls)
	}
	if analysis.Meta.EnrichmentApplied {
		t.Fatal("enrichment must not apply")
	}
}

func TestAnalyzeSkipsEnrichmentWhenCandidateHasNoIngredients(t *testing.T) {
	dir := &directoryFake{candidate: &domain.EnrichmentCandidate{
		Barcode:         "456",
		IngredientsText: "   ",
	}}
	synth := &synthFake{analysis: okAnalysis(), endpoint: "flash"}
	uc := newUseCase(
		&ocrFake{result: okOCR()},
		&identityFake{result: &domain.IdentityResult{
			PredictedName: "Oat Drink",
			Ingredients:   []string{"water", "oats"},
			Confidence:    0.9,
		}},
		dir,
		&validatorFake{result: domain.ValidationResult{OverlapScore: 1.0}},
		synth,
	)

	analysis, err := uc.Analyze(context.Background(), "aW1n")
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if dir.searchCalls != 1 {
		t.Fatalf("expected one directory call, got %d", dir.searchCalls)
	}
	if analysis.Meta.EnrichmentApplied {
		t.Fatal("empty candidate ingredient list must skip enrichment")
	}
}

func TestAnalyzeRejectsLowOverlapCandidate(t *testing.T) {
	dir := &directoryFake{candidate: &domain.EnrichmentCandidate{
		Barcode:         "789",
		IngredientsText: "milk, cocoa",
	}}
	synth := &synthFake{analysis: okAnalysis(), endpoint: "flash"}
	uc := newUseCase(
		&ocrFake{result: okOCR()},
		&identityFake{result: &domain.IdentityResult{
			PredictedName: "Oat Drink",
			Ingredients:   []string{"water", "oats"},
			Confidence:    0.9,
		}},
		dir,
		&validatorFake{result: domain.ValidationResult{OverlapScore: 0.3}},
		synth,
	)

	analysis, err := uc.Analyze(context.Background(), "aW1n")
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if analysis.Meta.EnrichmentApplied {
		t.Fatal("overlap below threshold must reject the candidate")
	}
	if synth.lastInput.Enrichment != nil {
		t.Fatal("rejected candidate must not reach synthesis")
	}
}

func TestAnalyzeDegradesOnChainExhaustion(t *testing.T) {
	synth := &synthFake{err: domain.WrapError(domain.ErrChainExhausted, "nutrition", errors.New("all endpoints 429"))}
	uc := newUseCase(
		&ocrFake{result: okOCR()},
		&identityFake{result: &domain.IdentityResult{
			PredictedName:  "Oat Drink",
			PredictedBrand: "Oatly",
			Ingredients:    []string{"water", "oats"},
			Confidence:     0.9,
		}},
		&directoryFake{},
		&validatorFake{},
		synth,
	)

	analysis, err := uc.Analyze(context.Background(), "aW1n")
	if err != nil {
		t.Fatalf("exhaustion must degrade, not fail: %v", err)
	}
	if !analysis.FallbackMode {
		t.Fatal("expected fallback mode")
	}
	if analysis.Score.Value != 0 || analysis.Score.Grade != "N/A" {
		t.Fatalf("unexpected degraded score: %+v", analysis.Score)
	}
	if analysis.Nutrition.Sugar != nil || analysis.Nutrition.EnergyKcal != nil {
		t.Fatal("degraded result must carry null nutrients")
	}
	if analysis.ProductName != "Oat Drink" || analysis.BrandName != "Oatly" {
		t.Fatalf("identity fields must survive degradation: %+v", analysis)
	}
	if analysis.RawText != "OAT DRINK" {
		t.Fatal("raw text must be preserved in the degraded document")
	}
}

func TestAnalyzePropagatesEngineUnavailable(t *testing.T) {
	uc := newUseCase(
		&ocrFake{err: domain.WrapError(domain.ErrEngineUnavailable, "ocr", errors.New("both engines failed"))},
		&identityFake{},
		&directoryFake{},
		&validatorFake{},
		&synthFake{analysis: okAnalysis()},
	)

	_, err := uc.Analyze(context.Background(), "aW1n")
	if !domain.IsKind(err, domain.ErrEngineUnavailable) {
		t.Fatalf("expected ErrEngineUnavailable, got %v", err)
	}
}

func TestAnalyzeContinuesWithoutIdentity(t *testing.T) {
	dir := &directoryFake{}
	synth := &synthFake{analysis: okAnalysis(), endpoint: "flash"}
	uc := newUseCase(
		&ocrFake{result: okOCR()},
		&identityFake{result: nil},
		dir,
		&validatorFake{},
		synth,
	)

	analysis, err := uc.Analyze(context.Background(), "aW1n")
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if dir.searchCalls != 0 {
		t.Fatal("no identity means no directory lookup")
	}
	if analysis.Meta.EnrichmentApplied {
		t.Fatal("enrichment must not apply without identity")
	}
	if analysis.Nutrition.Sugar == nil {
		t.Fatal("synthesis output must pass through untouched")
	}
}

func TestAnalyzeStageLogsCarryRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	uc := NewAnalyzeLabelUseCase(
		&ocrFake{result: okOCR()},
		&identityFake{result: &domain.IdentityResult{
			PredictedName: "Maybe Chips",
			Ingredients:   []string{"potato"},
			Confidence:    0.4,
		}},
		&directoryFake{},
		&validatorFake{},
		tokenizerFake{},
		&synthFake{analysis: okAnalysis(), endpoint: "flash"},
		logger,
	)

	ctx := requestid.WithContext(context.Background(), "req-123")
	if _, err := uc.Analyze(ctx, "aW1n"); err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if !strings.Contains(buf.String(), `"request_id":"req-123"`) {
		t.Fatalf("stage logs must carry the correlation id, got: %s", buf.String())
	}
}

func TestAnalyzePropagatesFatalModelFailure(t *testing.T) {
	synth := &synthFake{err: domain.WrapError(domain.ErrModelFatal, "nutrition: flash", errors.New("invalid request"))}
	uc := newUseCase(
		&ocrFake{result: okOCR()},
		&identityFake{result: nil},
		&directoryFake{},
		&validatorFake{},
		synth,
	)

	_, err := uc.Analyze(context.Background(), "aW1n")
	if !domain.IsKind(err, domain.ErrModelFatal) {
		t.Fatalf("expected ErrModelFatal, got %v", err)
	}
}
