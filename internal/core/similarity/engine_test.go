package similarity

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/kirillkom/fiscal-doc-pipeline/internal/core/domain"
)

func TestScoreSkipsCrossTypePairs(t *testing.T) {
	engine := NewEngine(nil)
	invoice := domain.Record{"document_type": "Invoice", "document_number": "100"}
	receipt := domain.Record{"document_type": "Receipt", "document_number": "100"}

	if _, ok := engine.Score(invoice, receipt); ok {
		t.Fatalf("expected cross-type pair to be skipped")
	}
	detection := engine.Detect(invoice, []domain.Record{receipt})
	if detection.IsDuplicate || len(detection.DuplicateMatches) != 0 {
		t.Fatalf("expected no matches, got %#v", detection)
	}
	if detection.DuplicateMatches == nil {
		t.Fatalf("duplicate_matches must be an empty list, not nil")
	}
}

func TestInvoiceNumberAndVendorEINIsExactMatch(t *testing.T) {
	engine := NewEngine(nil)
	a := domain.Record{"document_type": "Invoice", "document_number": "FA-0012", "vendor_ein": "RO 18547290"}
	b := domain.Record{"document_type": "factura", "document_number": "fa 0012", "vendor_ein": "18547290", "total_amount": "999"}

	res, ok := engine.Score(a, b)
	if !ok {
		t.Fatalf("expected comparable pair")
	}
	if res.Score < domain.ThresholdExact {
		t.Fatalf("expected score >= %.2f, got %.4f", domain.ThresholdExact, res.Score)
	}
	if !reflect.DeepEqual(res.MatchingFields, []string{"document_number", "vendor_ein"}) {
		t.Fatalf("unexpected matching fields: %v", res.MatchingFields)
	}
}

func TestInvoiceScoreIsMonotonic(t *testing.T) {
	engine := NewEngine(nil)
	full := domain.Record{
		"document_type":   "Invoice",
		"document_number": "F-1",
		"total_amount":    json.Number("150.00"),
		"document_date":   "2024-03-15",
		"vendor_ein":      "RO18547290",
		"vendor":          "Alfa Trade SRL",
		"currency":        "RON",
	}
	fields := []string{"document_number", "total_amount", "document_date", "vendor_ein", "vendor", "currency"}

	other := domain.Record{"document_type": "Invoice"}
	prev := 0.0
	for _, field := range fields {
		other[field] = full[field]
		res, ok := engine.Score(full, other)
		if !ok {
			t.Fatalf("expected comparable pair")
		}
		if res.Score < prev {
			t.Fatalf("score decreased after matching %s: %.4f < %.4f", field, res.Score, prev)
		}
		prev = res.Score
	}
	if prev != 1 {
		t.Fatalf("expected identical invoices to score 1.0, got %.4f", prev)
	}
}

func scoreGrowth(t *testing.T, full domain.Record, fields []string) float64 {
	t.Helper()
	engine := NewEngine(nil)
	other := domain.Record{"document_type": full["document_type"]}
	prev := 0.0
	for _, field := range fields {
		other[field] = full[field]
		res, ok := engine.Score(full, other)
		if !ok {
			t.Fatalf("expected comparable pair")
		}
		if res.Score < prev {
			t.Fatalf("score decreased after matching %s: %.4f < %.4f", field, res.Score, prev)
		}
		prev = res.Score
	}
	return prev
}

func TestReceiptScoreIsMonotonic(t *testing.T) {
	full := domain.Record{
		"document_type":  "Receipt",
		"receipt_number": "0042",
		"vendor_ein":     "RO14399840",
		"document_date":  "2024-03-15",
		"total_amount":   json.Number("25.00"),
	}
	orders := [][]string{
		{"receipt_number", "vendor_ein", "document_date", "total_amount"},
		{"vendor_ein", "total_amount", "document_date", "receipt_number"},
	}
	for _, fields := range orders {
		if got := scoreGrowth(t, full, fields); got < domain.ThresholdExact {
			t.Fatalf("expected identical receipts to be an exact match, got %.4f", got)
		}
	}
}

func TestBankStatementScoreIsMonotonic(t *testing.T) {
	full := domain.Record{
		"document_type":  "Bank Statement",
		"account_number": "RO49AAAA1B31007593840000",
		"period_start":   "2024-03-01",
		"period_end":     "2024-03-31",
	}
	orders := [][]string{
		{"account_number", "period_start", "period_end"},
		{"period_start", "period_end", "account_number"},
	}
	for _, fields := range orders {
		if got := scoreGrowth(t, full, fields); got < domain.ThresholdExact {
			t.Fatalf("expected identical statements to be an exact match, got %.4f", got)
		}
	}
}

func TestInvoiceAmountTolerance(t *testing.T) {
	engine := NewEngine(nil)
	base := domain.Record{"document_type": "Invoice", "total_amount": "1.234,50"}

	near, _ := engine.Score(base, domain.Record{"document_type": "Invoice", "total_amount": 1234.00})
	if near.Score != 0.15 {
		t.Fatalf("expected near amount weight 0.15, got %.4f", near.Score)
	}
	exact, _ := engine.Score(base, domain.Record{"document_type": "Invoice", "total_amount": "1234.5 RON"})
	if exact.Score != 0.30 {
		t.Fatalf("expected exact amount weight 0.30, got %.4f", exact.Score)
	}
	zero, _ := engine.Score(domain.Record{"document_type": "Invoice", "total_amount": 0}, domain.Record{"document_type": "Invoice", "total_amount": "n/a"})
	if zero.Score != 0 {
		t.Fatalf("zero amounts must not match, got %.4f", zero.Score)
	}
}

func TestReceiptScenarioWithDifferentAmounts(t *testing.T) {
	engine := NewEngine(nil)
	a := domain.Record{
		"id":             "r-1",
		"document_type":  "Receipt",
		"receipt_number": "0042",
		"vendor_ein":     "RO14399840",
		"document_date":  "15.03.2024",
		"total_amount":   10,
	}
	b := domain.Record{
		"id":             "r-2",
		"document_type":  "Receipt",
		"receipt_number": "42",
		"vendor_ein":     "14399840",
		"document_date":  "2024-03-15",
		"total_amount":   25,
	}

	detection := engine.Detect(a, []domain.Record{b})
	if !detection.IsDuplicate || len(detection.DuplicateMatches) != 1 {
		t.Fatalf("expected one duplicate, got %#v", detection)
	}
	match := detection.DuplicateMatches[0]
	if match.DuplicateType != domain.DuplicateExact {
		t.Fatalf("expected EXACT_MATCH, got %s", match.DuplicateType)
	}
	for _, field := range []string{"receipt_number", "vendor_ein", "document_date"} {
		found := false
		for _, f := range match.MatchingFields {
			found = found || f == field
		}
		if !found {
			t.Fatalf("expected %s in matching fields %v", field, match.MatchingFields)
		}
	}
	if match.DocumentID != "r-2" {
		t.Fatalf("expected document id r-2, got %s", match.DocumentID)
	}
}

func TestReceiptWithoutNumberNeedsAmount(t *testing.T) {
	engine := NewEngine(nil)
	a := domain.Record{"document_type": "Receipt", "vendor_ein": "RO1", "document_date": "01/02/2024", "total_amount": 10}
	b := domain.Record{"document_type": "Receipt", "vendor_ein": "RO1", "document_date": "2024.02.01", "total_amount": "10.00"}

	res, _ := engine.Score(a, b)
	if res.Score != 0.80 {
		t.Fatalf("expected 0.80, got %.4f", res.Score)
	}
	b["total_amount"] = 11
	res, _ = engine.Score(a, b)
	if res.Score != 0 {
		t.Fatalf("expected no match, got %.4f", res.Score)
	}
}

func TestBankStatementPeriods(t *testing.T) {
	engine := NewEngine(nil)
	a := domain.Record{
		"document_type":  "Bank Statement",
		"account_number": "RO49 AAAA 1B31 0075 9384 0000",
		"period_start":   "01.03.2024",
		"period_end":     "31.03.2024",
	}
	same := domain.Record{
		"document_type":    "Bank Statement",
		"account_number":   "RO49AAAA1B31007593840000",
		"statement_period": map[string]any{"start": "2024-03-01", "end": "2024-03-31"},
	}
	overlapping := domain.Record{
		"document_type":  "Bank Statement",
		"account_number": "RO49AAAA1B31007593840000",
		"period_start":   "2024-03-15",
		"period_end":     "2024-04-15",
	}

	if res, _ := engine.Score(a, same); res.Score != 0.95 {
		t.Fatalf("expected 0.95 for identical period, got %.4f", res.Score)
	}
	if res, _ := engine.Score(a, overlapping); res.Score != 0.85 {
		t.Fatalf("expected 0.85 for overlapping period, got %.4f", res.Score)
	}
}

func TestContractAndOtherTypes(t *testing.T) {
	engine := NewEngine(nil)
	contract, _ := engine.Score(
		domain.Record{"document_type": "Contract", "contract_number": "C-7"},
		domain.Record{"document_type": "Contract", "document_number": "c7"},
	)
	if contract.Score != 0.95 {
		t.Fatalf("expected 0.95, got %.4f", contract.Score)
	}

	unknown, ok := engine.Score(
		domain.Record{"document_number": "77"},
		domain.Record{"document_type": "something odd", "document_number": "0077"},
	)
	if !ok || unknown.Score != 0.70 {
		t.Fatalf("expected 0.70 for unknown types, got %.4f (ok=%v)", unknown.Score, ok)
	}
}

func TestDetectSortsAndCaps(t *testing.T) {
	engine := NewEngine(nil)
	candidate := domain.Record{"document_type": "Z Report", "document_number": "5"}
	var existing []domain.Record
	for i := 0; i < 8; i++ {
		existing = append(existing, domain.Record{"document_type": "Z Report", "document_number": "5", "document_id": string(rune('a' + i))})
	}
	existing = append(existing, domain.Record{"document_type": "Z Report", "document_number": "6"})

	detection := engine.Detect(candidate, existing)
	if len(detection.DuplicateMatches) != domain.MaxDuplicateMatches {
		t.Fatalf("expected %d matches, got %d", domain.MaxDuplicateMatches, len(detection.DuplicateMatches))
	}
	if detection.DuplicateMatches[0].DocumentID != "a" || detection.DuplicateMatches[4].DocumentID != "e" {
		t.Fatalf("expected stable order, got %#v", detection.DuplicateMatches)
	}
	if detection.DuplicateMatches[0].DuplicateType != domain.DuplicateContent || detection.Confidence != 0.70 {
		t.Fatalf("unexpected classification: %#v", detection)
	}
}
