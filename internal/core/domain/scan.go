package domain

import "time"

type ScanStatus string

const (
	ScanStatusQueued     ScanStatus = "queued"
	ScanStatusProcessing ScanStatus = "processing"
	ScanStatusDone       ScanStatus = "done"
	ScanStatusFailed     ScanStatus = "failed"
)

// Scan is the persisted record of one analyzed label photo.
type Scan struct {
	ID           string         `json:"id"`
	ImageKey     string         `json:"image_key"`
	Status       ScanStatus     `json:"status"`
	ProductName  string         `json:"product_name,omitempty"`
	BrandName    string         `json:"brand_name,omitempty"`
	ScoreValue   int            `json:"score_value"`
	ScoreGrade   string         `json:"score_grade,omitempty"`
	FallbackMode bool           `json:"fallback_mode"`
	Analysis     *FinalAnalysis `json:"analysis,omitempty"`
	Error        string         `json:"error,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}
