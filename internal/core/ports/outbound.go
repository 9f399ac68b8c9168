package ports

import (
	"context"
	"encoding/json"
	"io"

	"github.com/kirillkom/fiscal-doc-pipeline/internal/core/domain"
)

// DocumentRepository persists uploaded documents and the records produced for them.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error
	SaveRecord(ctx context.Context, id string, record domain.Record) error
	ListRecords(ctx context.Context, clientID, excludeID string, limit int) ([]domain.Record, error)
}

// ObjectStorage stores source documents.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// MessageQueue publishes/consumes processing jobs.
type MessageQueue interface {
	PublishDocumentIngested(ctx context.Context, documentID string) error
	SubscribeDocumentIngested(ctx context.Context, handler func(context.Context, string) error) error
}

// TextExtractor returns the text content of a document on disk.
type TextExtractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

// Oracle runs one free-text generation task and returns its raw output.
type Oracle interface {
	Complete(ctx context.Context, req domain.OracleRequest) (string, error)
}

// ArticleSource loads a client's article catalog.
type ArticleSource interface {
	Load(ctx context.Context, clientID string) (domain.ArticleCatalog, error)
}

// Backend is the remote accounting backend used by the chat assistant.
type Backend interface {
	SearchDocuments(ctx context.Context, q domain.DocumentSearchQuery) (json.RawMessage, error)
	SendEmail(ctx context.Context, email domain.Email) (json.RawMessage, error)
	CreateTodo(ctx context.Context, clientID string, todo domain.Todo) (json.RawMessage, error)
	CompanyFinancialInfo(ctx context.Context, clientID string, topic domain.FinancialTopic) (json.RawMessage, error)
}
