package domain

import (
	"encoding/json"
	"strconv"
	"strings"
)

type DocumentType string

const (
	TypeInvoice         DocumentType = "Invoice"
	TypeReceipt         DocumentType = "Receipt"
	TypeBankStatement   DocumentType = "Bank Statement"
	TypeContract        DocumentType = "Contract"
	TypeZReport         DocumentType = "Z Report"
	TypePaymentOrder    DocumentType = "Payment Order"
	TypeCollectionOrder DocumentType = "Collection Order"
	TypeUnknown         DocumentType = "Unknown"
)

var documentTypeAliases = map[string]DocumentType{
	"invoice":                TypeInvoice,
	"factura":                TypeInvoice,
	"factură":                TypeInvoice,
	"fiscal invoice":         TypeInvoice,
	"receipt":                TypeReceipt,
	"bon fiscal":             TypeReceipt,
	"chitanta":               TypeReceipt,
	"chitanță":               TypeReceipt,
	"bank statement":         TypeBankStatement,
	"bank_statement":         TypeBankStatement,
	"extras de cont":         TypeBankStatement,
	"contract":               TypeContract,
	"z report":               TypeZReport,
	"z_report":               TypeZReport,
	"raport z":               TypeZReport,
	"payment order":          TypePaymentOrder,
	"payment_order":          TypePaymentOrder,
	"ordin de plata":         TypePaymentOrder,
	"ordin de plată":         TypePaymentOrder,
	"collection order":       TypeCollectionOrder,
	"collection_order":       TypeCollectionOrder,
	"dispozitie de incasare": TypeCollectionOrder,
	"dispoziție de încasare": TypeCollectionOrder,
	"unknown":                TypeUnknown,
}

// ParseDocumentType maps oracle spellings (English or Romanian) onto the closed set of
// document types. Anything unrecognised is Unknown.
func ParseDocumentType(raw string) DocumentType {
	key := strings.ToLower(strings.Join(strings.Fields(raw), " "))
	if key == "" {
		return TypeUnknown
	}
	if t, ok := documentTypeAliases[key]; ok {
		return t
	}
	return TypeUnknown
}

type ProcessingStatus string

const (
	ProcessingCompleted ProcessingStatus = "COMPLETED"
	ProcessingFallback  ProcessingStatus = "FALLBACK"
)

// Record keys shared by the pipeline stages.
const (
	FieldDocumentType         = "document_type"
	FieldDocumentNumber       = "document_number"
	FieldDocumentDate         = "document_date"
	FieldDirection            = "direction"
	FieldVendor               = "vendor"
	FieldVendorEIN            = "vendor_ein"
	FieldBuyer                = "buyer"
	FieldBuyerEIN             = "buyer_ein"
	FieldTotalAmount          = "total_amount"
	FieldVATAmount            = "vat_amount"
	FieldCurrency             = "currency"
	FieldLineItems            = "line_items"
	FieldTransactions         = "transactions"
	FieldDocumentHash         = "document_hash"
	FieldDuplicateDetection   = "duplicate_detection"
	FieldComplianceValidation = "compliance_validation"
	FieldProcessingStatus     = "processing_status"
	FieldLowConfidence        = "low_confidence"
)

const DefaultCurrency = "RON"

// Record is the document record assembled by the pipeline. Stages contribute keys by
// shallow overwrite, so it stays a loosely typed mapping; accessors below give typed views.
type Record map[string]any

func NewRecord() Record {
	return Record{}
}

// Merge copies every key of m into r, replacing values already present.
func (r Record) Merge(m map[string]any) {
	for k, v := range m {
		r[k] = v
	}
}

func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

func (r Record) DocumentType() DocumentType {
	raw := r.String(FieldDocumentType)
	if raw == "" {
		return ""
	}
	return ParseDocumentType(raw)
}

// ID returns the identifier of a stored record, accepting both "id" and "document_id".
func (r Record) ID() string {
	if id := r.String("id"); id != "" {
		return id
	}
	return r.String("document_id")
}

// String renders scalar values as text; non-scalars yield "".
func (r Record) String(key string) string {
	return Stringify(r[key])
}

func (r Record) Amount(key string) Amount {
	return ParseAmount(r[key])
}

func (r Record) LineItems() []map[string]any {
	raw, ok := r[FieldLineItems].([]any)
	if !ok {
		if typed, ok := r[FieldLineItems].([]map[string]any); ok {
			return typed
		}
		return nil
	}
	items := make([]map[string]any, 0, len(raw))
	for _, item := range raw {
		if m, ok := item.(map[string]any); ok {
			items = append(items, m)
		}
	}
	return items
}

// Stringify renders a decoded JSON scalar as trimmed text.
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

// IsEmptyValue reports whether v carries no information: nil, "", false, zero numbers and
// empty collections.
func IsEmptyValue(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case bool:
		return !t
	case json.Number:
		f, err := t.Float64()
		return err == nil && f == 0
	case float64:
		return t == 0
	case int:
		return t == 0
	case []any:
		return len(t) == 0
	case []map[string]any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	default:
		return false
	}
}
