package ports

import (
	"context"

	"github.com/labelinsight/label-insight/internal/core/domain"
)

// LabelAnalyzer runs the full label-analysis pipeline for one image.
type LabelAnalyzer interface {
	Analyze(ctx context.Context, imageBase64 string) (*domain.FinalAnalysis, error)
}

// ScanService manages scan records around the pipeline.
type ScanService interface {
	CreateScan(ctx context.Context, imageBase64 string, async bool) (*domain.Scan, error)
	ProcessScanByID(ctx context.Context, scanID string) error
	GetScan(ctx context.Context, scanID string) (*domain.Scan, error)
	ListScans(ctx context.Context, limit int) ([]domain.Scan, error)
}

// AlertService derives personalized alerts from a completed analysis.
type AlertService interface {
	GenerateAlerts(profile domain.HealthProfile, analysis *domain.FinalAnalysis) []domain.Alert
}
