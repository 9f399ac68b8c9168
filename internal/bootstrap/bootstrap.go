package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kirillkom/fiscal-doc-pipeline/internal/config"
	"github.com/kirillkom/fiscal-doc-pipeline/internal/core/ports"
	"github.com/kirillkom/fiscal-doc-pipeline/internal/core/usecase"
	"github.com/kirillkom/fiscal-doc-pipeline/internal/infrastructure/backend"
	"github.com/kirillkom/fiscal-doc-pipeline/internal/infrastructure/catalog"
	"github.com/kirillkom/fiscal-doc-pipeline/internal/infrastructure/extractor/document"
	"github.com/kirillkom/fiscal-doc-pipeline/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/fiscal-doc-pipeline/internal/infrastructure/queue/nats"
	"github.com/kirillkom/fiscal-doc-pipeline/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/fiscal-doc-pipeline/internal/infrastructure/resilience"
	"github.com/kirillkom/fiscal-doc-pipeline/internal/infrastructure/storage/localfs"
)

type App struct {
	Config config.Config

	Queue     ports.MessageQueue
	Repo      ports.DocumentRepository
	IngestUC  ports.DocumentIngestor
	ProcessUC *usecase.ProcessDocumentUseCase

	closeFn func()
}

// New wires the document pipeline. observer receives pipeline attempt events and may be nil.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger, observer usecase.AttemptObserver) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewDocumentRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	policy := resilienceConfig(cfg)

	queue, err := nats.New(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		QueueGroup:         cfg.NATSQueueGroup,
		JobTimeout:         cfg.WorkerJobTimeout,
		ResilienceExecutor: resilience.NewExecutor(policy.ForQueue(), logger),
		Logger:             logger,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	oracle := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, ollama.Options{
		Timeout:            cfg.OllamaTimeout,
		RequestsPerSecond:  cfg.OracleRPS,
		Burst:              cfg.OracleBurst,
		ResilienceExecutor: resilience.NewExecutor(policy.ForOracle(), logger),
		Logger:             logger,
	})
	extractor := document.NewExtractor(logger)
	articles := catalog.NewSource(cfg.ArticlesCatalogPath, logger)

	pipeline := usecase.NewProcessUseCase(extractor, oracle, cfg.RetryPolicy(), observer, logger)
	processUC := usecase.NewProcessDocumentUseCase(repo, storage, articles, pipeline, logger).
		WithExistingRecordLimit(cfg.ExistingRecordLimit)
	ingestUC := usecase.NewIngestDocumentUseCase(repo, storage, queue, logger)

	return &App{
		Config:    cfg,
		Queue:     queue,
		Repo:      repo,
		IngestUC:  ingestUC,
		ProcessUC: processUC,
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

// NewBackend builds the accounting backend client used by the assistant. It needs no
// database or queue.
func NewBackend(cfg config.Config, logger *slog.Logger) ports.Backend {
	return backend.New(cfg.BackendAPIURL, cfg.BackendJWT, backend.Options{
		Timeout:            cfg.BackendTimeout,
		ResilienceExecutor: resilience.NewExecutor(resilienceConfig(cfg), logger),
		Logger:             logger,
	})
}

func resilienceConfig(cfg config.Config) resilience.Config {
	rc := resilience.DefaultConfig()
	rc.RetryMaxAttempts = cfg.ResilienceMaxAttempts
	rc.RetryInitialBackoff = cfg.ResilienceBackoff
	rc.RetryMaxBackoff = cfg.ResilienceMaxBackoff
	rc.BreakerEnabled = cfg.BreakerEnabled
	rc.BreakerFailureRatio = cfg.BreakerFailureRatio
	rc.BreakerOpenTimeout = cfg.BreakerOpenTimeout
	return rc
}
