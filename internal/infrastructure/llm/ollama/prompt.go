package ollama

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/kirillkom/fiscal-doc-pipeline/internal/core/domain"
)

const (
	maxSnippet      = 12000
	maxPromptItems  = 200
	classifySnippet = 4000
)

var documentTypeChoices = []domain.DocumentType{
	domain.TypeInvoice,
	domain.TypeReceipt,
	domain.TypeBankStatement,
	domain.TypeContract,
	domain.TypeZReport,
	domain.TypePaymentOrder,
	domain.TypeCollectionOrder,
}

func buildPrompt(req domain.OracleRequest) (string, error) {
	switch req.Task {
	case domain.TaskClassify:
		return buildClassificationPrompt(req.DocumentText), nil
	case domain.TaskExtractInvoice:
		return buildInvoicePrompt(req), nil
	case domain.TaskExtractOther:
		return buildOtherDocumentPrompt(req), nil
	case domain.TaskValidateCompliance:
		return buildCompliancePrompt(req)
	default:
		return "", domain.WrapError(domain.ErrInvalidInput, "build prompt", fmt.Errorf("unknown task %q", req.Task))
	}
}

func snippet(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	return text[:limit]
}

func buildClassificationPrompt(text string) string {
	names := make([]string, 0, len(documentTypeChoices))
	for _, t := range documentTypeChoices {
		names = append(names, string(t))
	}

	return `You classify Romanian accounting documents.
Return strict JSON object with keys:
document_type (one of: ` + strings.Join(names, ", ") + `, Unknown), confidence (number from 0 to 1).
No markdown, no extra keys.

Document:
` + snippet(text, classifySnippet)
}

func buildInvoicePrompt(req domain.OracleRequest) string {
	var b strings.Builder
	b.WriteString(`You extract data from a Romanian invoice (factura).
Return strict JSON object with keys:
document_type ("Invoice"), document_number, document_date (DD-MM-YYYY), due_date, vendor, vendor_ein, buyer, buyer_ein,
direction ("incoming" when the buyer EIN is the client EIN, "outgoing" when the vendor EIN is), currency,
total_amount, vat_amount,
line_items (array of objects with name, quantity, unit_price, total, vat_rate, unit_of_measure, type).
Amounts are numbers with a dot as decimal separator. Use "" for unknown text fields.
No markdown.
`)
	fmt.Fprintf(&b, "\nClient EIN: %s\n", req.ClientID)

	if len(req.Articles) > 0 {
		b.WriteString("\nKnown articles (code | name | vat | unit | type):\n")
		for i, a := range sortedArticles(req.Articles) {
			if i == maxPromptItems {
				break
			}
			fmt.Fprintf(&b, "%s | %s | %s | %s | %s\n", a.Code, a.Name, a.VAT, a.UnitOfMeasure, a.Type)
		}
	}

	b.WriteString("\nDocument:\n")
	b.WriteString(snippet(req.DocumentText, maxSnippet))
	return b.String()
}

func buildOtherDocumentPrompt(req domain.OracleRequest) string {
	docType := req.DocumentType
	if docType == "" {
		docType = domain.TypeUnknown
	}

	var keys string
	switch docType {
	case domain.TypeReceipt, domain.TypeZReport:
		keys = "receipt_number, document_date, vendor, vendor_ein, total_amount, vat_amount, payment_method, line_items"
	case domain.TypeBankStatement:
		keys = "account_number, bank_name, period_start, period_end, opening_balance, closing_balance, currency, transactions (array of objects with date, description, amount, type)"
	case domain.TypeContract:
		keys = "contract_number, document_date, parties (array of names), contract_value, start_date, end_date, contract_type"
	case domain.TypePaymentOrder, domain.TypeCollectionOrder:
		keys = "order_number, document_date, payer, payer_iban, beneficiary, beneficiary_iban, amount, currency, payment_details"
	default:
		keys = "document_number, document_date, issuer, total_amount, summary"
	}

	return fmt.Sprintf(`You extract data from a Romanian %s.
Return strict JSON object with keys:
document_type (%q), %s.
Dates are DD-MM-YYYY, amounts are numbers. Use "" for unknown text fields.
No markdown.

Client EIN: %s

Document:
%s`, docType, string(docType), keys, req.ClientID, snippet(req.DocumentText, maxSnippet))
}

func buildCompliancePrompt(req domain.OracleRequest) (string, error) {
	raw, err := json.Marshal(req.Record)
	if err != nil {
		return "", fmt.Errorf("marshal compliance record: %w", err)
	}

	return `You check Romanian fiscal compliance (ANAF rules: CIF checksum, VAT rates, mandatory invoice fields).
Return strict JSON object with key compliance_validation holding:
compliance_status (PASSED, WARNING or FAILED), overall_score (number from 0 to 1),
validation_rules, errors, warnings. Each of the last three is an object {"ro": [..], "en": [..]}
with the same messages in Romanian and English.
No markdown.

Extracted record:
` + string(raw) + `

Document:
` + snippet(req.DocumentText, classifySnippet), nil
}

func sortedArticles(catalog domain.ArticleCatalog) []domain.Article {
	out := make([]domain.Article, 0, len(catalog))
	for code, a := range catalog {
		if a.Code == "" {
			a.Code = code
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}
