package usecase

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/kirillkom/fiscal-doc-pipeline/internal/core/domain"
)

type ingestStorageFake struct {
	savedKey   string
	savedBody  string
	deletedKey string
	err        error
}

func (f *ingestStorageFake) Save(_ context.Context, key string, data io.Reader) error {
	if f.err != nil {
		return f.err
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.savedKey = key
	f.savedBody = string(raw)
	return nil
}

func (f *ingestStorageFake) Open(context.Context, string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(f.savedBody)), nil
}

func (f *ingestStorageFake) Delete(_ context.Context, key string) error {
	f.deletedKey = key
	return nil
}

type ingestQueueFake struct {
	documentID string
	err        error
}

func (f *ingestQueueFake) PublishDocumentIngested(_ context.Context, documentID string) error {
	if f.err != nil {
		return f.err
	}
	f.documentID = documentID
	return nil
}

func (f *ingestQueueFake) SubscribeDocumentIngested(context.Context, func(context.Context, string) error) error {
	return errors.New("not implemented")
}

func TestIngestUploadStoresAndQueues(t *testing.T) {
	repo := &documentRepoFake{}
	storage := &ingestStorageFake{}
	queue := &ingestQueueFake{}
	uc := NewIngestDocumentUseCase(repo, storage, queue, nil)

	doc, err := uc.Upload(context.Background(), " RO18547290 ", "factura 1.pdf", "application/pdf", bytes.NewBufferString("%PDF-1.4"))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if doc.ID == "" || doc.Status != domain.StatusUploaded || doc.Phase != domain.PhaseExtract {
		t.Fatalf("unexpected document: %+v", doc)
	}
	if doc.ClientID != "RO18547290" {
		t.Fatalf("expected trimmed client id, got %q", doc.ClientID)
	}
	if repo.created == nil || repo.created.StoragePath != storage.savedKey {
		t.Fatalf("expected metadata pointing at stored key, got %+v", repo.created)
	}
	if queue.documentID != doc.ID {
		t.Fatalf("expected queued doc id %s, got %s", doc.ID, queue.documentID)
	}
	if !strings.HasPrefix(storage.savedKey, "RO18547290/") || !strings.HasSuffix(storage.savedKey, "_factura_1.pdf") {
		t.Fatalf("expected client-scoped sanitized key, got %s", storage.savedKey)
	}
	if storage.savedBody != "%PDF-1.4" {
		t.Fatalf("unexpected saved body %q", storage.savedBody)
	}
}

func TestIngestUploadRejectsBadInput(t *testing.T) {
	cases := []struct {
		name     string
		clientID string
		filename string
		mimeType string
		body     string
	}{
		{name: "no client", clientID: "  ", filename: "a.pdf", mimeType: "application/pdf", body: "x"},
		{name: "empty file", clientID: "RO1", filename: "a.pdf", mimeType: "application/pdf", body: ""},
		{name: "image", clientID: "RO1", filename: "scan.png", mimeType: "image/png", body: "\x89PNG"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			storage := &ingestStorageFake{}
			uc := NewIngestDocumentUseCase(&documentRepoFake{}, storage, &ingestQueueFake{}, nil)

			_, err := uc.Upload(context.Background(), tc.clientID, tc.filename, tc.mimeType, strings.NewReader(tc.body))
			if !errors.Is(err, domain.ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
			if storage.savedKey != "" {
				t.Fatalf("nothing should be stored, got %s", storage.savedKey)
			}
		})
	}
}

func TestIngestUploadRemovesFileWhenMetadataFails(t *testing.T) {
	repo := &documentRepoFake{createErr: errors.New("db down")}
	storage := &ingestStorageFake{}
	queue := &ingestQueueFake{}
	uc := NewIngestDocumentUseCase(repo, storage, queue, nil)

	_, err := uc.Upload(context.Background(), "RO1", "report.txt", "text/plain", bytes.NewBufferString("hello"))
	if err == nil || !strings.Contains(err.Error(), "create document metadata") {
		t.Fatalf("expected metadata error, got %v", err)
	}
	if storage.deletedKey == "" || storage.deletedKey != storage.savedKey {
		t.Fatalf("expected stored file %q to be deleted, got %q", storage.savedKey, storage.deletedKey)
	}
	if queue.documentID != "" {
		t.Fatalf("nothing should be queued")
	}
}

func TestIngestUploadQueueErrorMarksFailed(t *testing.T) {
	repo := &documentRepoFake{}
	queue := &ingestQueueFake{err: domain.WrapError(domain.ErrTemporary, "nats publish", errors.New("no servers"))}
	uc := NewIngestDocumentUseCase(repo, &ingestStorageFake{}, queue, nil)

	_, err := uc.Upload(context.Background(), "RO1", "report.txt", "", bytes.NewBufferString("hello"))
	if !errors.Is(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary publish error, got %v", err)
	}
	if len(repo.statusCalls) != 1 || repo.statusCalls[0].status != domain.StatusFailed {
		t.Fatalf("expected document marked failed, got %+v", repo.statusCalls)
	}
	if !strings.HasPrefix(repo.statusCalls[0].errMsg, "enqueue failed") {
		t.Fatalf("unexpected failure note %q", repo.statusCalls[0].errMsg)
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"factură 1.pdf":    "factur__1.pdf",
		"../../etc/passwd": "passwd",
		"":                 "document.bin",
		"..":               "document.bin",
	}
	for in, want := range cases {
		if got := sanitizeFilename(in); got != want {
			t.Fatalf("sanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
}
