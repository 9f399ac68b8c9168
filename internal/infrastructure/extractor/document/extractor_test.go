package document

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/kirillkom/fiscal-doc-pipeline/internal/core/domain"
)

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestExtractPlainText(t *testing.T) {
	path := writeFile(t, "bon.txt", []byte("\n  BON FISCAL nr. 0042\nTOTAL 150,00 LEI \n"))

	text, err := NewExtractor(nil).Extract(context.Background(), path)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if text != "BON FISCAL nr. 0042\nTOTAL 150,00 LEI" {
		t.Fatalf("unexpected text: %q", text)
	}
}

func TestExtractRejectsBinary(t *testing.T) {
	path := writeFile(t, "scan.bin", []byte{0xff, 0xfe, 0x00, 0x81})

	_, err := NewExtractor(nil).Extract(context.Background(), path)
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestExtractMalformedPDF(t *testing.T) {
	path := writeFile(t, "factura.pdf", []byte("%PDF-1.4\nnot really a pdf"))

	_, err := NewExtractor(nil).Extract(context.Background(), path)
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for malformed pdf, got %v", err)
	}
}

func TestExtractMissingFile(t *testing.T) {
	_, err := NewExtractor(nil).Extract(context.Background(), filepath.Join(t.TempDir(), "missing.txt"))
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
