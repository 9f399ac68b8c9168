package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/fiscal-doc-pipeline/internal/core/domain"
	"github.com/kirillkom/fiscal-doc-pipeline/internal/core/ports"
)

type IngestDocumentUseCase struct {
	repo    ports.DocumentRepository
	storage ports.ObjectStorage
	queue   ports.MessageQueue
	logger  *slog.Logger
}

func NewIngestDocumentUseCase(
	repo ports.DocumentRepository,
	storage ports.ObjectStorage,
	queue ports.MessageQueue,
	logger *slog.Logger,
) *IngestDocumentUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestDocumentUseCase{
		repo:    repo,
		storage: storage,
		queue:   queue,
		logger:  logger,
	}
}

// Upload stores a client's document and queues it for processing. The stored file is
// removed again when its metadata cannot be written; a document whose job cannot be
// published is left in failed state.
func (uc *IngestDocumentUseCase) Upload(
	ctx context.Context,
	clientID, filename, mimeType string,
	body io.Reader,
) (*domain.Document, error) {
	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload document", errors.New("client_id is required"))
	}

	content, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if len(content) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload document", errors.New("empty file"))
	}
	if mimeType == "" {
		mimeType = http.DetectContentType(content)
	}
	if !supportedUpload(filename, mimeType) {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload document",
			fmt.Errorf("unsupported file type %q: upload a PDF or a text document", mimeType))
	}

	id := uuid.NewString()
	storageKey := fmt.Sprintf("%s/%s_%s", sanitizeFilename(clientID), id, sanitizeFilename(filename))
	now := time.Now().UTC()

	if err := uc.storage.Save(ctx, storageKey, bytes.NewReader(content)); err != nil {
		return nil, fmt.Errorf("save to object storage: %w", err)
	}

	doc := &domain.Document{
		ID:          id,
		ClientID:    clientID,
		Filename:    filename,
		MimeType:    mimeType,
		StoragePath: storageKey,
		Phase:       domain.PhaseExtract,
		Status:      domain.StatusUploaded,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := uc.repo.Create(ctx, doc); err != nil {
		if delErr := uc.storage.Delete(ctx, storageKey); delErr != nil {
			uc.logger.Warn("upload_cleanup_failed", "storage_key", storageKey, "error", delErr)
		}
		return nil, fmt.Errorf("create document metadata: %w", err)
	}

	if err := uc.queue.PublishDocumentIngested(ctx, doc.ID); err != nil {
		if statusErr := uc.repo.UpdateStatus(ctx, doc.ID, domain.StatusFailed, "enqueue failed: "+err.Error()); statusErr != nil {
			uc.logger.Warn("upload_mark_failed_failed", "document_id", doc.ID, "error", statusErr)
		}
		return nil, fmt.Errorf("publish ingestion event: %w", err)
	}

	uc.logger.Info("document_uploaded", "document_id", doc.ID, "client_id", clientID, "bytes", len(content))
	return doc, nil
}

// supportedUpload accepts what the text extractor can read: PDFs and plain text.
func supportedUpload(filename, mimeType string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf", ".txt", ".csv", ".xml", ".json":
		return true
	}
	mimeType = strings.ToLower(mimeType)
	return mimeType == "application/pdf" || strings.HasPrefix(mimeType, "text/")
}

func sanitizeFilename(name string) string {
	base := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, filepath.Base(name))
	if base == "" || base == "." || base == ".." {
		return "document.bin"
	}
	return base
}
