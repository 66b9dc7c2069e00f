package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/labelinsight/label-insight/internal/core/domain"
	"github.com/labelinsight/label-insight/internal/core/ports"
)

// maxPayloadBytes bounds the stored base64 payload (~12MB of image data).
const maxPayloadBytes = 16 << 20

// ScanUseCase manages scan records around the analysis pipeline: persistence,
// image storage, and the sync/async split.
type ScanUseCase struct {
	repo     ports.ScanRepository
	storage  ports.ObjectStorage
	queue    ports.MessageQueue
	analyzer ports.LabelAnalyzer
	logger   *slog.Logger
	now      func() time.Time
}

func NewScanUseCase(
	repo ports.ScanRepository,
	storage ports.ObjectStorage,
	queue ports.MessageQueue,
	analyzer ports.LabelAnalyzer,
	logger *slog.Logger,
) *ScanUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &ScanUseCase{
		repo:     repo,
		storage:  storage,
		queue:    queue,
		analyzer: analyzer,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CreateScan stores the image and either analyzes inline (sync) or enqueues
// the scan for the worker (async). The returned record reflects the final
// state for sync calls and the queued state for async ones.
func (uc *ScanUseCase) CreateScan(ctx context.Context, imageBase64 string, async bool) (*domain.Scan, error) {
	if strings.TrimSpace(imageBase64) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "create scan", errors.New("empty image payload"))
	}
	if len(imageBase64) > maxPayloadBytes {
		return nil, domain.WrapError(domain.ErrInvalidInput, "create scan",
			fmt.Errorf("image payload exceeds %d bytes", maxPayloadBytes))
	}

	now := uc.now()
	scan := &domain.Scan{
		ID:        uuid.NewString(),
		ImageKey:  "scans/" + uuid.NewString() + ".b64",
		Status:    domain.ScanStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := uc.storage.Save(ctx, scan.ImageKey, strings.NewReader(imageBase64)); err != nil {
		return nil, fmt.Errorf("store image: %w", err)
	}
	if err := uc.repo.Create(ctx, scan); err != nil {
		return nil, fmt.Errorf("create scan record: %w", err)
	}

	if async {
		if err := uc.queue.PublishScanQueued(ctx, scan.ID); err != nil {
			if failErr := uc.repo.UpdateStatus(ctx, scan.ID, domain.ScanStatusFailed, err.Error()); failErr != nil {
				return nil, fmt.Errorf("%w; mark failed status: %v", err, failErr)
			}
			return nil, fmt.Errorf("enqueue scan: %w", err)
		}
		uc.logger.Info("scan_enqueued", "scan_id", scan.ID)
		return scan, nil
	}

	if err := uc.ProcessScanByID(ctx, scan.ID); err != nil {
		return nil, err
	}
	return uc.repo.GetByID(ctx, scan.ID)
}

// ProcessScanByID runs the pipeline for a stored scan. A degraded analysis is
// still a completed scan; only pipeline errors mark the record failed.
func (uc *ScanUseCase) ProcessScanByID(ctx context.Context, scanID string) error {
	if err := uc.repo.UpdateStatus(ctx, scanID, domain.ScanStatusProcessing, ""); err != nil {
		return fmt.Errorf("set status=processing: %w", err)
	}

	analysis, err := uc.analyzePersisted(ctx, scanID)
	if err != nil {
		if failErr := uc.repo.UpdateStatus(ctx, scanID, domain.ScanStatusFailed, err.Error()); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if err := uc.repo.SaveAnalysis(ctx, scanID, analysis); err != nil {
		return fmt.Errorf("save analysis: %w", err)
	}

	uc.logger.Info("scan_completed",
		"scan_id", scanID,
		"score", analysis.Score.Value,
		"grade", analysis.Score.Grade,
		"fallback_mode", analysis.FallbackMode,
	)
	return nil
}

func (uc *ScanUseCase) analyzePersisted(ctx context.Context, scanID string) (*domain.FinalAnalysis, error) {
	scan, err := uc.repo.GetByID(ctx, scanID)
	if err != nil {
		return nil, fmt.Errorf("fetch scan: %w", err)
	}

	reader, err := uc.storage.Open(ctx, scan.ImageKey)
	if err != nil {
		return nil, fmt.Errorf("open stored image: %w", err)
	}
	defer reader.Close()

	payload, err := io.ReadAll(io.LimitReader(reader, maxPayloadBytes))
	if err != nil {
		return nil, fmt.Errorf("read stored image: %w", err)
	}

	analysis, err := uc.analyzer.Analyze(ctx, string(payload))
	if err != nil {
		return nil, fmt.Errorf("analyze label: %w", err)
	}
	return analysis, nil
}

func (uc *ScanUseCase) GetScan(ctx context.Context, scanID string) (*domain.Scan, error) {
	if strings.TrimSpace(scanID) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "get scan", errors.New("empty scan id"))
	}
	return uc.repo.GetByID(ctx, scanID)
}

func (uc *ScanUseCase) ListScans(ctx context.Context, limit int) ([]domain.Scan, error) {
	return uc.repo.ListRecent(ctx, limit)
}
