package catalog

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/fiscal-doc-pipeline/internal/core/domain"
)

// Source loads a client's article catalog from disk. When root is a directory the
// catalog lives in <root>/<clientID>.xlsx or <root>/<clientID>.csv; when root is a
// file it is shared by every client. A missing catalog is an empty one.
type Source struct {
	root   string
	logger *slog.Logger
}

func NewSource(root string, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{root: root, logger: logger}
}

func (s *Source) Load(ctx context.Context, clientID string) (domain.ArticleCatalog, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, ok, err := s.resolve(clientID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return domain.ArticleCatalog{}, nil
	}

	var rows [][]string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		rows, err = readXLSX(path)
	case ".csv":
		rows, err = readCSV(path)
	default:
		return nil, domain.WrapError(domain.ErrInvalidInput, "load catalog", fmt.Errorf("unsupported catalog format: %s", filepath.Base(path)))
	}
	if err != nil {
		return nil, err
	}

	catalog, skipped := parseRows(rows)
	s.logger.Debug("article_catalog_loaded", "client_id", clientID, "path", path, "articles", len(catalog), "skipped_rows", skipped)
	return catalog, nil
}

func (s *Source) resolve(clientID string) (string, bool, error) {
	if strings.TrimSpace(s.root) == "" {
		return "", false, nil
	}
	info, err := os.Stat(s.root)
	if errors.Is(err, os.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("stat catalog root: %w", err)
	}
	if !info.IsDir() {
		return s.root, true, nil
	}

	name := safeName(clientID)
	if name == "" {
		return "", false, nil
	}
	for _, ext := range []string{".xlsx", ".csv"} {
		candidate := filepath.Join(s.root, name+ext)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		}
	}
	return "", false, nil
}

func safeName(clientID string) string {
	name := strings.TrimSpace(clientID)
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	return name
}

func readXLSX(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read catalog sheet %q: %w", sheets[0], err)
	}
	return rows, nil
}

func readCSV(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog csv: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var rows [][]string
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read catalog csv: %w", err)
		}
		rows = append(rows, record)
	}
	return rows, nil
}

var headerAliases = map[string]string{
	"code":            "code",
	"cod":             "code",
	"article_code":    "code",
	"name":            "name",
	"denumire":        "name",
	"vat":             "vat",
	"tva":             "vat",
	"vat_rate":        "vat",
	"unitofmeasure":   "um",
	"unit_of_measure": "um",
	"um":              "um",
	"type":            "type",
	"tip":             "type",
}

// parseRows maps the first row as a header. Rows without a code or a name are skipped.
func parseRows(rows [][]string) (domain.ArticleCatalog, int) {
	catalog := domain.ArticleCatalog{}
	if len(rows) == 0 {
		return catalog, 0
	}

	columns := map[string]int{}
	for i, h := range rows[0] {
		key := strings.ToLower(strings.TrimSpace(h))
		key = strings.ReplaceAll(key, " ", "_")
		if field, ok := headerAliases[key]; ok {
			if _, seen := columns[field]; !seen {
				columns[field] = i
			}
		}
	}
	cell := func(row []string, field string) string {
		idx, ok := columns[field]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	skipped := 0
	for _, row := range rows[1:] {
		code := cell(row, "code")
		name := cell(row, "name")
		if code == "" || name == "" {
			skipped++
			continue
		}
		catalog[code] = domain.Article{
			Code:          code,
			Name:          name,
			VAT:           strings.TrimSuffix(cell(row, "vat"), "%"),
			UnitOfMeasure: cell(row, "um"),
			Type:          cell(row, "type"),
		}
	}
	return catalog, skipped
}
