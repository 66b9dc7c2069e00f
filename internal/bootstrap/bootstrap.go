package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/labelinsight/label-insight/internal/config"
	"github.com/labelinsight/label-insight/internal/core/ports"
	"github.com/labelinsight/label-insight/internal/core/usecase"
	"github.com/labelinsight/label-insight/internal/infrastructure/directory/openfoodfacts"
	"github.com/labelinsight/label-insight/internal/infrastructure/layout"
	"github.com/labelinsight/label-insight/internal/infrastructure/llm/gemini"
	"github.com/labelinsight/label-insight/internal/infrastructure/ocr"
	"github.com/labelinsight/label-insight/internal/infrastructure/queue/nats"
	"github.com/labelinsight/label-insight/internal/infrastructure/repository/postgres"
	"github.com/labelinsight/label-insight/internal/infrastructure/resilience"
	"github.com/labelinsight/label-insight/internal/infrastructure/storage/localfs"
	"github.com/labelinsight/label-insight/internal/infrastructure/validation/ingredients"
	"github.com/labelinsight/label-insight/internal/observability/metrics"
)

type App struct {
	Config config.Config

	Queue     ports.MessageQueue
	Repo      ports.ScanRepository
	Directory ports.ProductDirectory
	AnalyzeUC ports.LabelAnalyzer
	ScanUC    ports.ScanService
	AlertUC   ports.AlertService
	Metrics   *metrics.HTTPServerMetrics

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger, service string) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewScanRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultPolicy(), logger)

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		Executor: executor,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	httpMetrics := metrics.NewHTTPServerMetrics(service)

	reconstructor := layout.NewReconstructor()
	primaryOCR, err := ocr.NewPrimaryEngine(cfg.OCRPrimaryMode, cfg.OCRPrimaryURL,
		time.Duration(cfg.OCRTimeoutSeconds)*time.Second, cfg.OCRLanguage)
	if err != nil {
		return nil, fmt.Errorf("init primary ocr engine: %w", err)
	}
	secondaryOCR := ocr.NewSecondaryClient(cfg.OCRSecondaryURL, cfg.OCRSecondaryAPIKey)
	ocrAdapter := ocr.NewAdapter(primaryOCR, secondaryOCR, reconstructor, cfg.MaxImageDimension, logger,
		ocr.WithEngineMetrics(service, httpMetrics))

	geminiClient := gemini.NewClient(cfg.GeminiBaseURL, cfg.GeminiAPIKey)
	chain := gemini.NewChain(geminiClient, endpointsFor(cfg.GeminiModels), logger)
	identity := gemini.NewIdentityExtractor(chain, logger, gemini.WithChainMetrics(service, httpMetrics))
	nutrition := gemini.NewNutritionSynthesizer(chain, logger)

	offDirectory := openfoodfacts.NewClient(cfg.OFFBaseURL, executor, logger)
	validator := ingredients.NewValidator(0)

	analyzeUC := usecase.NewAnalyzeLabelUseCase(
		ocrAdapter, identity, offDirectory, validator, validator, nutrition, logger,
		usecase.WithThresholds(cfg.IdentityMinConfidence, cfg.EnrichmentMinOverlap),
		usecase.WithMetrics(service, httpMetrics),
	)
	scanUC := usecase.NewScanUseCase(repo, storage, queue, analyzeUC, logger)
	alertUC := usecase.NewAlertEngine()

	return &App{
		Config: cfg,

		Queue:     queue,
		Repo:      repo,
		Directory: offDirectory,
		AnalyzeUC: analyzeUC,
		ScanUC:    scanUC,
		AlertUC:   alertUC,
		Metrics:   httpMetrics,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

func endpointsFor(models []string) []gemini.Endpoint {
	endpoints := make([]gemini.Endpoint, 0, len(models))
	for _, model := range models {
		endpoints = append(endpoints, gemini.Endpoint{Name: model, Model: model})
	}
	return endpoints
}
