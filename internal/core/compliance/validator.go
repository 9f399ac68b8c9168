package compliance

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kirillkom/fiscal-doc-pipeline/internal/core/domain"
)

var cifControlKey = [9]int{7, 5, 3, 2, 1, 7, 5, 3, 2}

// ValidCIF checks a Romanian fiscal code (CUI/CIF) against its control digit. An optional
// "RO" prefix and whitespace are ignored.
func ValidCIF(raw string) bool {
	code := strings.ToUpper(strings.Join(strings.Fields(raw), ""))
	code = strings.TrimPrefix(code, "RO")
	if len(code) < 2 || len(code) > 10 {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}

	body := code[:len(code)-1]
	control := int(code[len(code)-1] - '0')
	body = strings.Repeat("0", 9-len(body)) + body

	sum := 0
	for i := 0; i < 9; i++ {
		sum += int(body[i]-'0') * cifControlKey[i]
	}
	expected := sum * 10 % 11
	if expected == 10 {
		expected = 0
	}
	return expected == control
}

// Allowed Romanian VAT rates, including the rates in force from August 2025.
var allowedVATRates = map[string]bool{"0": true, "5": true, "9": true, "11": true, "19": true, "21": true}

var requiredFields = map[domain.DocumentType][]string{
	domain.TypeInvoice: {
		domain.FieldDocumentNumber, domain.FieldDocumentDate, domain.FieldVendor, domain.FieldTotalAmount,
	},
	domain.TypeReceipt:      {domain.FieldDocumentDate, domain.FieldTotalAmount},
	domain.TypeZReport:      {domain.FieldDocumentDate, domain.FieldTotalAmount},
	domain.TypePaymentOrder: {domain.FieldDocumentDate, domain.FieldTotalAmount},
	domain.TypeContract:     {domain.FieldDocumentDate},
}

// Findings are the results of the local fiscal checks.
type Findings struct {
	Rules    domain.Bilingual
	Errors   domain.Bilingual
	Warnings domain.Bilingual
}

// Validator runs deterministic Romanian fiscal checks over an extracted record.
type Validator struct {
	now func() time.Time
}

func NewValidator() *Validator {
	return &Validator{now: time.Now}
}

func (v *Validator) Check(rec domain.Record) Findings {
	f := Findings{
		Rules:    domain.EmptyBilingual(),
		Errors:   domain.EmptyBilingual(),
		Warnings: domain.EmptyBilingual(),
	}
	docType := rec.DocumentType()

	if fields, ok := requiredFields[docType]; ok {
		f.Rules = f.Rules.Add("Câmpuri obligatorii prezente", "Required fields present")
		for _, field := range fields {
			if domain.IsEmptyValue(rec[field]) {
				f.Errors = f.Errors.Add(
					fmt.Sprintf("Lipsește câmpul obligatoriu %s", field),
					fmt.Sprintf("Missing required field %s", field),
				)
			}
		}
	}

	for _, field := range []string{domain.FieldVendorEIN, domain.FieldBuyerEIN} {
		ein := rec.String(field)
		if ein == "" || !looksRomanian(ein) {
			continue
		}
		f.Rules = f.Rules.Add(fmt.Sprintf("Cifră de control CUI (%s)", field), fmt.Sprintf("CUI control digit (%s)", field))
		if !ValidCIF(ein) {
			f.Warnings = f.Warnings.Add(
				fmt.Sprintf("CUI invalid pentru %s: %s", field, ein),
				fmt.Sprintf("Invalid CUI for %s: %s", field, ein),
			)
		}
	}

	total := rec.Amount(domain.FieldTotalAmount)
	vat := rec.Amount(domain.FieldVATAmount)
	if total.IsPositive() && vat.IsPositive() {
		f.Rules = f.Rules.Add("TVA nu depășește totalul", "VAT does not exceed total")
		if vat.GreaterThan(total) {
			f.Errors = f.Errors.Add(
				fmt.Sprintf("TVA (%s) depășește totalul (%s)", vat.StringFixed(2), total.StringFixed(2)),
				fmt.Sprintf("VAT (%s) exceeds total (%s)", vat.StringFixed(2), total.StringFixed(2)),
			)
		}
	}

	items := rec.LineItems()
	if len(items) > 0 {
		f.Rules = f.Rules.Add("Cote TVA permise", "Allowed VAT rates")
	}
	for i, item := range items {
		rate := normalizeRate(item["vat_rate"])
		if rate == "" || allowedVATRates[rate] {
			continue
		}
		f.Warnings = f.Warnings.Add(
			fmt.Sprintf("Cotă TVA neobișnuită %s%% la poziția %d", rate, i+1),
			fmt.Sprintf("Unusual VAT rate %s%% on line %d", rate, i+1),
		)
	}

	if raw := rec.String(domain.FieldDocumentDate); raw != "" {
		f.Rules = f.Rules.Add("Data documentului nu este în viitor", "Document date not in the future")
		if date, ok := domain.ParseDate(raw); ok && date.After(v.now().UTC()) {
			f.Errors = f.Errors.Add(
				fmt.Sprintf("Data documentului %s este în viitor", raw),
				fmt.Sprintf("Document date %s is in the future", raw),
			)
		}
	}
	return f
}

func looksRomanian(ein string) bool {
	upper := strings.ToUpper(strings.TrimSpace(ein))
	if strings.HasPrefix(upper, "RO") {
		return true
	}
	return len(upper) > 0 && upper[0] >= '0' && upper[0] <= '9'
}

func normalizeRate(v any) string {
	raw := strings.TrimSuffix(strings.TrimSpace(domain.Stringify(v)), "%")
	if raw == "" {
		return ""
	}
	rate := domain.ParseAmount(raw)
	if rate.LessThan(decimal.NewFromInt(1)) && rate.IsPositive() {
		rate = rate.Mul(decimal.NewFromInt(100))
	}
	return rate.Round(0).String()
}

// Merge folds local findings into the oracle's verdict. Local errors force FAILED; local
// warnings downgrade PASSED to WARNING.
func Merge(result domain.ComplianceValidation, f Findings) domain.ComplianceValidation {
	result.ValidationRules = result.ValidationRules.Concat(f.Rules)
	result.Errors = result.Errors.Concat(f.Errors)
	result.Warnings = result.Warnings.Concat(f.Warnings)

	switch {
	case !f.Errors.IsEmpty():
		result.ComplianceStatus = domain.ComplianceFailed
	case !f.Warnings.IsEmpty() && result.ComplianceStatus == domain.CompliancePassed:
		result.ComplianceStatus = domain.ComplianceWarning
	}
	return result
}
