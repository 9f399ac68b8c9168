package domain

import "time"

type Phase int

const (
	PhaseClassify Phase = 0
	PhaseExtract  Phase = 1
)

// Article is an entry of a client's article catalog, keyed by article code.
type Article struct {
	Code          string `json:"code"`
	Name          string `json:"name"`
	VAT           string `json:"vat"`
	UnitOfMeasure string `json:"unit_of_measure"`
	Type          string `json:"type"`
}

type ArticleCatalog map[string]Article

// PipelineInput is everything one pipeline invocation needs. Articles and
// ExistingDocuments are read-only for the duration of the run.
type PipelineInput struct {
	DocumentPath      string
	DocumentBytes     []byte
	ClientID          string
	Articles          ArticleCatalog
	ExistingDocuments []Record
	Phase             Phase
	Phase0Result      Record
}

// ProcessResult is what callers of the pipeline receive: either Data or Error/Details.
type ProcessResult struct {
	Data    Record `json:"data,omitempty"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Details string `json:"details,omitempty"`
}

// RetryPolicy bounds one orchestrated pipeline run. The n-th retry waits n times the
// backoff that matches the previous failure.
type RetryPolicy struct {
	MaxRetries        int
	ValidationBackoff time.Duration
	ErrorBackoff      time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:        2,
		ValidationBackoff: 2 * time.Second,
		ErrorBackoff:      3 * time.Second,
	}
}

// Delay returns the wait before retry number attempt (1-based).
func (p RetryPolicy) Delay(attempt int, validationFailure bool) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	base := p.ErrorBackoff
	if validationFailure {
		base = p.ValidationBackoff
	}
	return base * time.Duration(attempt)
}

// Task identifies which oracle prompt a stage runs.
type Task string

const (
	TaskClassify           Task = "categorize_document"
	TaskExtractInvoice     Task = "extract_invoice_data"
	TaskExtractOther       Task = "extract_other_document_data"
	TaskValidateCompliance Task = "validate_compliance"
)

// ExtractionTaskFor selects the extraction task for a classified type.
func ExtractionTaskFor(t DocumentType) Task {
	if t == TypeInvoice {
		return TaskExtractInvoice
	}
	return TaskExtractOther
}

type OracleRequest struct {
	Task         Task
	DocumentText string
	ClientID     string
	DocumentType DocumentType
	Articles     ArticleCatalog
	Record       Record
}

// ProcessRequest is a synchronous processing request for content that is not stored.
type ProcessRequest struct {
	ClientID     string
	Filename     string
	Content      []byte
	Phase        Phase
	Phase0Result Record
}
