package ports

import (
	"context"
	"io"

	"github.com/labelinsight/label-insight/internal/core/domain"
)

// OCRProvider turns a base64 image payload into normalized OCR output.
type OCRProvider interface {
	ProcessImage(ctx context.Context, imageBase64 string) (*domain.ProcessedOCRResult, error)
}

// LayoutReconstructor clusters OCR lines into visually ordered rows.
type LayoutReconstructor interface {
	Rows(lines []domain.OCRLine) []domain.OCRRow
}

// IdentityExtractor infers product identity from OCR raw text. A nil result
// with a nil error is a soft failure: the pipeline continues without
// enrichment.
type IdentityExtractor interface {
	ExtractIdentity(ctx context.Context, rawText string) (*domain.IdentityResult, error)
}

// NutritionSynthesizer produces the final structured analysis. It returns
// domain.ErrChainExhausted when every model endpoint is exhausted.
type NutritionSynthesizer interface {
	Synthesize(ctx context.Context, input NutritionInput) (*domain.FinalAnalysis, string, error)
}

// NutritionInput carries everything the nutrition stage may consult, in
// priority order: OCR rows, then raw text, then optional enrichment.
type NutritionInput struct {
	Rows        []domain.OCRRow
	RawText     string
	ProductName string
	Identity    *domain.IdentityResult
	Enrichment  *domain.EnrichmentCandidate
}

// ProductDirectory searches the external product directory.
type ProductDirectory interface {
	SearchTop(ctx context.Context, name string) (*domain.EnrichmentCandidate, error)
	FetchByBarcode(ctx context.Context, barcode string) (*domain.EnrichmentCandidate, error)
}

// IngredientValidator scores ingredient-list overlap between the OCR-derived
// list and a directory candidate's list.
type IngredientValidator interface {
	Validate(ocrIngredients, candidateIngredients []string) domain.ValidationResult
}

// ScanRepository persists scan records and their completed analyses.
type ScanRepository interface {
	Create(ctx context.Context, scan *domain.Scan) error
	GetByID(ctx context.Context, id string) (*domain.Scan, error)
	ListRecent(ctx context.Context, limit int) ([]domain.Scan, error)
	UpdateStatus(ctx context.Context, id string, status domain.ScanStatus, errMessage string) error
	SaveAnalysis(ctx context.Context, id string, analysis *domain.FinalAnalysis) error
}

// ObjectStorage stores uploaded label images.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// MessageQueue publishes/consumes asynchronous scan analysis requests.
type MessageQueue interface {
	PublishScanQueued(ctx context.Context, scanID string) error
	SubscribeScanQueued(ctx context.Context, handler func(context.Context, string) error) error
}
