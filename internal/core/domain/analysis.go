package domain

// Point is a single corner of an OCR bounding box, in image pixel coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// OCRLine is one recognized text fragment. Box always holds exactly four
// corner points, regardless of which engine produced the line.
type OCRLine struct {
	Text       string   `json:"text"`
	Confidence float64  `json:"confidence"`
	Box        [4]Point `json:"box"`
}

// CenterY is the mean of the four corner y-values.
func (l OCRLine) CenterY() float64 {
	return (l.Box[0].Y + l.Box[1].Y + l.Box[2].Y + l.Box[3].Y) / 4
}

// Height is the vertical extent of the box.
func (l OCRLine) Height() float64 {
	minY, maxY := l.Box[0].Y, l.Box[0].Y
	for _, p := range l.Box[1:] {
		if p.Y < minY {
			minY = p.Y
		}
		if p.Y > maxY {
			maxY = p.Y
		}
	}
	return maxY - minY
}

// LeftX is the leftmost corner x-value, used for reading order within a row.
func (l OCRLine) LeftX() float64 {
	minX := l.Box[0].X
	for _, p := range l.Box[1:] {
		if p.X < minX {
			minX = p.X
		}
	}
	return minX
}

// OCRRow is a visually contiguous row of lines, ordered left to right.
type OCRRow struct {
	Lines []OCRLine `json:"lines"`
}

// Text joins the row's fragments in reading order.
func (r OCRRow) Text() string {
	out := ""
	for i, line := range r.Lines {
		if i > 0 {
			out += " "
		}
		out += line.Text
	}
	return out
}

// OCRSource identifies which engine actually served an OCR request.
type OCRSource string

const (
	OCRSourcePrimary           OCRSource = "primary"
	OCRSourceSecondary         OCRSource = "secondary"
	OCRSourceSecondaryNoLayout OCRSource = "secondary_no_layout"
)

// ProcessedOCRResult is the OCR adapter's normalized output. Rows are ordered
// top to bottom; RawText preserves the engine's own line order.
type ProcessedOCRResult struct {
	Lines   []OCRLine `json:"lines"`
	Rows    []OCRRow  `json:"rows"`
	RawText string    `json:"raw_text"`
	Source  OCRSource `json:"source_engine"`
}

// IdentityResult is the model's guess at what product the label belongs to.
// A nil *IdentityResult means identity extraction soft-failed.
type IdentityResult struct {
	PredictedName  string   `json:"predicted_product_name"`
	PredictedBrand string   `json:"predicted_brand"`
	Ingredients    []string `json:"ingredients"`
	Confidence     float64  `json:"confidence"`
}

// EnrichmentCandidate is a record from the external product directory.
type EnrichmentCandidate struct {
	Barcode         string          `json:"barcode,omitempty"`
	Name            string          `json:"product_name"`
	Brand           string          `json:"brands"`
	IngredientsText string          `json:"ingredients_text"`
	Nutriments      NutritionRecord `json:"nutriments"`
}

// ValidationResult is the outcome of fuzzy ingredient-overlap validation
// between OCR-derived ingredients and a directory candidate.
type ValidationResult struct {
	OverlapScore float64  `json:"overlap_score"`
	Matches      []string `json:"matches"`
}

// NutritionRecord holds per-100g values. A nil field means "not found in any
// trusted source", never zero.
type NutritionRecord struct {
	EnergyKcal    *float64 `json:"energy_kcal"`
	Protein       *float64 `json:"protein"`
	Carbohydrates *float64 `json:"carbohydrates"`
	Sugar         *float64 `json:"sugar"`
	Fat           *float64 `json:"fat"`
	SaturatedFat  *float64 `json:"saturated_fat"`
	Salt          *float64 `json:"salt"`
}

// ScoreBreakdownItem is one applied scoring rule.
type ScoreBreakdownItem struct {
	Label    string `json:"label"`
	Points   int    `json:"points"`
	Polarity string `json:"polarity"`
}

// HealthScore is the 0-100 label score with its letter grade.
type HealthScore struct {
	Value          int                  `json:"value"`
	Grade          string               `json:"grade"`
	Explanation    string               `json:"explanation"`
	Breakdown      []ScoreBreakdownItem `json:"breakdown"`
	ConfidenceNote string               `json:"confidence_note"`
}

// AnalysisMeta records provenance for debuggability.
type AnalysisMeta struct {
	OCRSource         OCRSource `json:"ocr_source"`
	OCRLinesCount     int       `json:"ocr_lines_count"`
	ModelUsed         string    `json:"model_used,omitempty"`
	EnrichmentApplied bool      `json:"enrichment_applied"`
	OverlapScore      *float64  `json:"overlap_score,omitempty"`
	RequestID         string    `json:"request_id,omitempty"`
	DurationMS        int64     `json:"duration_ms,omitempty"`
}

// FinalAnalysis is the pipeline's output document. It is always structurally
// valid; FallbackMode marks a degraded result produced under provider
// exhaustion.
type FinalAnalysis struct {
	ProductName  string          `json:"product_name"`
	BrandName    string          `json:"brand_name"`
	Ingredients  []string        `json:"ingredients"`
	Nutrition    NutritionRecord `json:"nutrition"`
	Score        HealthScore     `json:"score"`
	Meta         AnalysisMeta    `json:"meta"`
	RawText      string          `json:"raw_text"`
	FallbackMode bool            `json:"fallback_mode"`
}
