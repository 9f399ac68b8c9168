package document

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/fiscal-doc-pipeline/internal/core/domain"
)

var pdfMagic = []byte("%PDF-")

// Extractor reads the text layer of a stored document. PDFs go through the PDF parser,
// anything else must already be UTF-8 text. Scanned PDFs without a text layer yield "".
type Extractor struct {
	logger *slog.Logger
}

func NewExtractor(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{logger: logger}
}

func (e *Extractor) Extract(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", domain.WrapError(domain.ErrNotFound, "extract text", err)
		}
		return "", fmt.Errorf("read source document: %w", err)
	}

	if bytes.HasPrefix(raw, pdfMagic) || strings.EqualFold(filepath.Ext(path), ".pdf") {
		return e.extractPDF(raw, path)
	}

	if !utf8.Valid(raw) {
		return "", domain.WrapError(domain.ErrInvalidInput, "extract text", fmt.Errorf("unsupported binary format: %s", filepath.Base(path)))
	}
	return strings.TrimSpace(string(raw)), nil
}

func (e *Extractor) extractPDF(raw []byte, path string) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", domain.WrapError(domain.ErrInvalidInput, "parse pdf", err)
	}

	pageCount := reader.NumPage()
	var content strings.Builder
	skipped := 0
	for i := 1; i <= pageCount; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			skipped++
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		if content.Len() > 0 {
			content.WriteString("\n\n")
		}
		content.WriteString(text)
	}

	if skipped > 0 {
		e.logger.Warn("pdf_pages_skipped", "file", filepath.Base(path), "skipped", skipped, "pages", pageCount)
	}
	return content.String(), nil
}
