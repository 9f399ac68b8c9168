package compliance

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/fiscal-doc-pipeline/internal/core/domain"
)

func TestValidCIF(t *testing.T) {
	cases := map[string]bool{
		"18547290":     true,
		"RO 14399840":  true,
		"ro4221306":    true,
		"1590082":      true,
		"12345678":     false,
		"RO12AB5":      false,
		"1":            false,
		"123456789012": false,
	}
	for in, want := range cases {
		if got := ValidCIF(in); got != want {
			t.Fatalf("ValidCIF(%q) = %v, want %v", in, got, want)
		}
	}
}

func newTestValidator() *Validator {
	return &Validator{now: func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }}
}

func TestValidatorAcceptsCleanInvoice(t *testing.T) {
	rec := domain.Record{
		"document_type":   "Invoice",
		"document_number": "F-100",
		"document_date":   "15.03.2025",
		"vendor":          "Alfa SRL",
		"vendor_ein":      "RO18547290",
		"total_amount":    json.Number("119.00"),
		"vat_amount":      json.Number("19.00"),
		"line_items":      []any{map[string]any{"name": "Servicii", "vat_rate": "19%"}},
	}

	f := newTestValidator().Check(rec)
	if !f.Errors.IsEmpty() || !f.Warnings.IsEmpty() {
		t.Fatalf("expected no findings, got errors=%v warnings=%v", f.Errors, f.Warnings)
	}
	if len(f.Rules.EN) == 0 || len(f.Rules.EN) != len(f.Rules.RO) {
		t.Fatalf("expected bilingual rules, got %#v", f.Rules)
	}
}

func TestValidatorFlagsFiscalProblems(t *testing.T) {
	rec := domain.Record{
		"document_type": "Invoice",
		"document_date": "2026-01-10",
		"vendor":        "Alfa SRL",
		"vendor_ein":    "RO12345678",
		"total_amount":  100,
		"vat_amount":    150,
		"line_items":    []any{map[string]any{"name": "x", "vat_rate": 24}},
	}

	f := newTestValidator().Check(rec)
	joinedErrors := strings.Join(f.Errors.EN, "|")
	for _, want := range []string{"document_number", "VAT (150.00) exceeds total", "in the future"} {
		if !strings.Contains(joinedErrors, want) {
			t.Fatalf("expected error containing %q, got %v", want, f.Errors.EN)
		}
	}
	joinedWarnings := strings.Join(f.Warnings.EN, "|")
	if !strings.Contains(joinedWarnings, "Invalid CUI") || !strings.Contains(joinedWarnings, "24%") {
		t.Fatalf("unexpected warnings: %v", f.Warnings.EN)
	}
	if len(f.Errors.RO) != len(f.Errors.EN) || len(f.Warnings.RO) != len(f.Warnings.EN) {
		t.Fatalf("ro/en sides must stay aligned")
	}
}

func TestMergeEscalatesStatus(t *testing.T) {
	passed := domain.PendingCompliance()
	passed.ComplianceStatus = domain.CompliancePassed

	warn := Findings{Rules: domain.EmptyBilingual(), Errors: domain.EmptyBilingual(), Warnings: domain.EmptyBilingual().Add("a", "a")}
	if got := Merge(passed, warn); got.ComplianceStatus != domain.ComplianceWarning {
		t.Fatalf("expected WARNING, got %s", got.ComplianceStatus)
	}

	fail := Findings{Rules: domain.EmptyBilingual(), Errors: domain.EmptyBilingual().Add("e", "e"), Warnings: domain.EmptyBilingual()}
	got := Merge(passed, fail)
	if got.ComplianceStatus != domain.ComplianceFailed {
		t.Fatalf("expected FAILED, got %s", got.ComplianceStatus)
	}
	if len(got.Errors.EN) != 1 || len(passed.Errors.EN) != 0 {
		t.Fatalf("merge must not mutate its input")
	}

	pending := Merge(domain.PendingCompliance(), warn)
	if pending.ComplianceStatus != domain.CompliancePending {
		t.Fatalf("PENDING must not be upgraded by warnings, got %s", pending.ComplianceStatus)
	}
}
