package catalog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/fiscal-doc-pipeline/internal/core/domain"
)

func writeWorkbook(t *testing.T, path string, rows [][]any) {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	for r, row := range rows {
		for c, v := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				t.Fatalf("cell name: %v", err)
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				t.Fatalf("set cell: %v", err)
			}
		}
	}
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("save workbook: %v", err)
	}
}

func TestLoadClientWorkbook(t *testing.T) {
	dir := t.TempDir()
	writeWorkbook(t, filepath.Join(dir, "RO18547290.xlsx"), [][]any{
		{"code", "name", "vat", "unitOfMeasure", "type"},
		{"ART001", "Hartie copiator A4", "19", "TOP", "Marfuri"},
		{"ART002", "Servicii transport", "19%", "BUC", "Servicii"},
		{"", "fara cod", "19", "BUC", "Marfuri"},
	})

	got, err := NewSource(dir, nil).Load(context.Background(), "RO18547290")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 articles, got %d: %+v", len(got), got)
	}
	if a := got["ART001"]; a.Name != "Hartie copiator A4" || a.UnitOfMeasure != "TOP" || a.Type != "Marfuri" {
		t.Fatalf("unexpected ART001: %+v", a)
	}
	if got["ART002"].VAT != "19" {
		t.Fatalf("expected percent sign stripped, got %q", got["ART002"].VAT)
	}
}

func TestLoadSharedCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "articles.csv")
	content := "cod,denumire,tva,um,tip\nART010,Cafea boabe,9,KG,Marfuri\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write csv: %v", err)
	}

	got, err := NewSource(path, nil).Load(context.Background(), "any-client")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	want := domain.Article{Code: "ART010", Name: "Cafea boabe", VAT: "9", UnitOfMeasure: "KG", Type: "Marfuri"}
	if got["ART010"] != want {
		t.Fatalf("unexpected article: %+v", got["ART010"])
	}
}

func TestLoadMissingCatalogIsEmpty(t *testing.T) {
	got, err := NewSource(t.TempDir(), nil).Load(context.Background(), "RO1590082")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty catalog, got %+v", got)
	}

	got, err = NewSource("", nil).Load(context.Background(), "RO1590082")
	if err != nil || len(got) != 0 {
		t.Fatalf("expected empty catalog for unset root, got %+v err=%v", got, err)
	}
}

func TestLoadRejectsUnknownFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "articles.json")
	if err := os.WriteFile(path, []byte("{}"), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}
	_, err := NewSource(path, nil).Load(context.Background(), "c")
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}
