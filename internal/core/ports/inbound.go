package ports

import (
	"context"
	"io"

	"github.com/kirillkom/fiscal-doc-pipeline/internal/core/domain"
)

// DocumentIngestor is the inbound contract for asynchronous document upload.
type DocumentIngestor interface {
	Upload(ctx context.Context, clientID, filename, mimeType string, body io.Reader) (*domain.Document, error)
}

// DocumentReader is the inbound read model for uploaded documents and their records.
type DocumentReader interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
}

// DocumentProcessor is the inbound contract for queued document processing.
type DocumentProcessor interface {
	ProcessByID(ctx context.Context, documentID string) error
}

// DocumentPipeline runs one pipeline invocation synchronously.
type DocumentPipeline interface {
	Process(ctx context.Context, in domain.PipelineInput) domain.ProcessResult
}

// DocumentSyncProcessor runs the pipeline for uploaded content and returns the result
// without persisting it.
type DocumentSyncProcessor interface {
	ProcessContent(ctx context.Context, req domain.ProcessRequest) domain.ProcessResult
}
