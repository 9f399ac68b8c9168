package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/kirillkom/fiscal-doc-pipeline/internal/core/domain"
	"github.com/kirillkom/fiscal-doc-pipeline/internal/core/ports"
)

const (
	defaultExistingRecordsLimit = 500
	persistTimeout              = 15 * time.Second
)

// ProcessDocumentUseCase runs the pipeline for an uploaded document taken off the queue and
// persists the resulting record.
type ProcessDocumentUseCase struct {
	repo          ports.DocumentRepository
	storage       ports.ObjectStorage
	articles      ports.ArticleSource
	pipeline      ports.DocumentPipeline
	existingLimit int
	logger        *slog.Logger
}

func NewProcessDocumentUseCase(
	repo ports.DocumentRepository,
	storage ports.ObjectStorage,
	articles ports.ArticleSource,
	pipeline ports.DocumentPipeline,
	logger *slog.Logger,
) *ProcessDocumentUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProcessDocumentUseCase{
		repo:          repo,
		storage:       storage,
		articles:      articles,
		pipeline:      pipeline,
		existingLimit: defaultExistingRecordsLimit,
		logger:        logger,
	}
}

// WithExistingRecordLimit caps how many stored records of the same client are loaded
// for duplicate detection.
func (uc *ProcessDocumentUseCase) WithExistingRecordLimit(n int) *ProcessDocumentUseCase {
	if n > 0 {
		uc.existingLimit = n
	}
	return uc
}

func (uc *ProcessDocumentUseCase) ProcessByID(ctx context.Context, documentID string) error {
	if err := uc.markStatus(ctx, documentID, domain.StatusProcessing, ""); err != nil {
		return fmt.Errorf("set status=processing: %w", err)
	}

	rec, degraded, err := uc.processPipeline(ctx, documentID)

	// The job deadline may already be spent by a slow pipeline run; the outcome is still written.
	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	if err != nil {
		if failErr := uc.markFailed(persistCtx, documentID, err); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if err := uc.repo.SaveRecord(persistCtx, documentID, rec); err != nil {
		err = fmt.Errorf("save record: %w", err)
		if failErr := uc.markFailed(persistCtx, documentID, err); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	note := ""
	if degraded {
		note = "pipeline fell back to a degraded record; manual review required"
	}
	if err := uc.markStatus(persistCtx, documentID, domain.StatusReady, note); err != nil {
		return fmt.Errorf("set status=ready: %w", err)
	}
	return nil
}

func (uc *ProcessDocumentUseCase) processPipeline(ctx context.Context, documentID string) (domain.Record, bool, error) {
	doc, err := uc.repo.GetByID(ctx, documentID)
	if err != nil {
		return nil, false, fmt.Errorf("fetch document by id: %w", err)
	}

	content, err := uc.readContent(ctx, doc)
	if err != nil {
		return nil, false, err
	}

	existing, err := uc.repo.ListRecords(ctx, doc.ClientID, doc.ID, uc.existingLimit)
	if err != nil {
		return nil, false, fmt.Errorf("list existing records: %w", err)
	}

	result := uc.pipeline.Process(ctx, domain.PipelineInput{
		DocumentBytes:     content,
		ClientID:          doc.ClientID,
		Articles:          uc.loadArticles(ctx, doc.ClientID),
		ExistingDocuments: existing,
		Phase:             doc.Phase,
	})
	if result.Error != "" {
		return nil, false, domain.WrapError(domain.ErrInvalidInput, "run pipeline", errors.New(result.Error+": "+result.Details))
	}
	return result.Data, !result.Success, nil
}

// ProcessContent runs the pipeline for content posted directly by a client. The client's
// stored records still take part in duplicate detection; a failing lookup only disables it.
func (uc *ProcessDocumentUseCase) ProcessContent(ctx context.Context, req domain.ProcessRequest) domain.ProcessResult {
	if len(req.Content) == 0 {
		return domain.ProcessResult{Error: "document not found", Details: "empty upload"}
	}
	if req.Phase == domain.PhaseExtract && len(req.Phase0Result) > 0 && req.Phase0Result.DocumentType() == "" {
		return domain.ProcessResult{Error: "invalid phase0_result", Details: "phase0_result has no document_type"}
	}

	existing := []domain.Record{}
	if req.ClientID != "" {
		records, err := uc.repo.ListRecords(ctx, req.ClientID, "", uc.existingLimit)
		if err != nil {
			uc.logger.Warn("existing_records_unavailable", "client_id", req.ClientID, "error", err)
		} else {
			existing = records
		}
	}

	return uc.pipeline.Process(ctx, domain.PipelineInput{
		DocumentBytes:     req.Content,
		ClientID:          req.ClientID,
		Articles:          uc.loadArticles(ctx, req.ClientID),
		ExistingDocuments: existing,
		Phase:             req.Phase,
		Phase0Result:      req.Phase0Result,
	})
}

func (uc *ProcessDocumentUseCase) readContent(ctx context.Context, doc *domain.Document) ([]byte, error) {
	rc, err := uc.storage.Open(ctx, doc.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("open stored document: %w", err)
	}
	defer rc.Close()

	content, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read stored document: %w", err)
	}
	return content, nil
}

// loadArticles degrades to an empty catalog; every line item then becomes a new article.
func (uc *ProcessDocumentUseCase) loadArticles(ctx context.Context, clientID string) domain.ArticleCatalog {
	if uc.articles == nil {
		return domain.ArticleCatalog{}
	}
	catalog, err := uc.articles.Load(ctx, clientID)
	if err != nil {
		uc.logger.Warn("article_catalog_unavailable", "client_id", clientID, "error", err)
		return domain.ArticleCatalog{}
	}
	return catalog
}

func (uc *ProcessDocumentUseCase) markStatus(ctx context.Context, documentID string, status domain.DocumentStatus, errMessage string) error {
	return uc.repo.UpdateStatus(ctx, documentID, status, errMessage)
}

func (uc *ProcessDocumentUseCase) markFailed(ctx context.Context, documentID string, processErr error) error {
	if processErr == nil {
		return nil
	}
	return uc.markStatus(ctx, documentID, domain.StatusFailed, processErr.Error())
}
