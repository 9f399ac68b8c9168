package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/kirillkom/fiscal-doc-pipeline/internal/core/domain"
)

const recordSchema = `{
  "type": "object",
  "required": ["document_type"],
  "properties": {
    "document_type": {"type": "string", "minLength": 1},
    "line_items": {"type": "array"},
    "transactions": {"type": "array"},
    "processing_status": {"enum": ["COMPLETED", "FALLBACK"]}
  }
}`

var compiledRecordSchema = mustCompileRecordSchema()

func mustCompileRecordSchema() *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("record.schema.json", strings.NewReader(recordSchema)); err != nil {
		panic(fmt.Sprintf("add record schema: %v", err))
	}
	schema, err := compiler.Compile("record.schema.json")
	if err != nil {
		panic(fmt.Sprintf("compile record schema: %v", err))
	}
	return schema
}

var errInvalidRecord = errors.New("record failed validation")

// Pass runs one complete pipeline pass. It returns whatever record it built so far even when
// it fails, so the best known document type survives into the fallback.
type Pass func(ctx context.Context) (domain.Record, error)

// AttemptObserver receives orchestration outcomes, typically for metrics.
type AttemptObserver interface {
	ObserveAttempt(outcome string)
	ObserveFallback(documentType string)
	ObserveDuplicate(duplicateType string)
}

type noopObserver struct{}

func (noopObserver) ObserveAttempt(string)   {}
func (noopObserver) ObserveFallback(string)  {}
func (noopObserver) ObserveDuplicate(string) {}

// Orchestrator retries failed pipeline passes and degrades to a fallback record once the
// retry budget is spent.
type Orchestrator struct {
	schema   *jsonschema.Schema
	logger   *slog.Logger
	observer AttemptObserver
	sleep    func(ctx context.Context, d time.Duration) error
}

func NewOrchestrator(logger *slog.Logger, observer AttemptObserver) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if observer == nil {
		observer = noopObserver{}
	}
	return &Orchestrator{
		schema:   compiledRecordSchema,
		logger:   logger,
		observer: observer,
		sleep:    sleepContext,
	}
}

// Run never returns an error: the record is either a validated pass result (ok=true) or a
// fallback record (ok=false).
func (o *Orchestrator) Run(ctx context.Context, pass Pass, policy domain.RetryPolicy) (domain.Record, bool) {
	var bestType domain.DocumentType
	var lastErr error
	validationFailure := false

	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := policy.Delay(attempt, validationFailure)
			o.logger.Info("retry_attempt",
				"attempt", attempt+1,
				"max_attempts", policy.MaxRetries+1,
				"delay_ms", delay.Milliseconds(),
				"validation_failure", validationFailure,
			)
			if err := o.sleep(ctx, delay); err != nil {
				lastErr = err
				break
			}
		}
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}

		rec, err := runPass(ctx, pass)
		if t := rec.DocumentType(); t != "" && t != domain.TypeUnknown {
			bestType = t
		}
		if err != nil {
			validationFailure = false
			lastErr = err
			o.observer.ObserveAttempt("error")
			o.logger.Warn("pipeline_attempt_failed", "attempt", attempt+1, "error", err)
			continue
		}
		if err := o.validate(rec); err != nil {
			validationFailure = true
			lastErr = err
			o.observer.ObserveAttempt("invalid")
			o.logger.Warn("pipeline_attempt_invalid", "attempt", attempt+1, "error", err)
			continue
		}

		o.observer.ObserveAttempt("success")
		return rec, true
	}

	fallback := FallbackRecord(bestType)
	o.observer.ObserveFallback(fallback.String(domain.FieldDocumentType))
	o.logger.Error("pipeline_fallback",
		"document_type", fallback.String(domain.FieldDocumentType),
		"error", lastErr,
	)
	return fallback, false
}

// runPass turns a panic inside a pass into an attempt error.
func runPass(ctx context.Context, pass Pass) (rec domain.Record, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pipeline pass panicked: %v", r)
		}
	}()
	return pass(ctx)
}

// validate checks the JSON form of rec, so typed sub-results are validated as they would
// be serialized.
func (o *Orchestrator) validate(rec domain.Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("%w: marshal: %v", errInvalidRecord, err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("%w: decode: %v", errInvalidRecord, err)
	}
	if err := o.schema.Validate(doc); err != nil {
		return fmt.Errorf("%w: %v", errInvalidRecord, err)
	}
	return nil
}

// FallbackRecord is the well-formed degraded record returned once retries are exhausted.
func FallbackRecord(docType domain.DocumentType) domain.Record {
	if docType == "" {
		docType = domain.TypeUnknown
	}

	cv := domain.PendingCompliance()
	cv.Warnings = cv.Warnings.Add(
		"Procesarea automată a eșuat. Documentul necesită verificare manuală.",
		"Automatic processing failed. The document requires manual review.",
	)

	rec := domain.Record{
		domain.FieldDocumentType:         string(docType),
		domain.FieldDocumentNumber:       "",
		domain.FieldDocumentDate:         "",
		domain.FieldVendor:               "",
		domain.FieldVendorEIN:            "",
		domain.FieldBuyer:                "",
		domain.FieldBuyerEIN:             "",
		domain.FieldTotalAmount:          domain.FormatAmount(domain.ParseAmount(0)),
		domain.FieldVATAmount:            domain.FormatAmount(domain.ParseAmount(0)),
		domain.FieldCurrency:             domain.DefaultCurrency,
		domain.FieldLineItems:            []any{},
		domain.FieldDuplicateDetection:   domain.EmptyDuplicateDetection(),
		domain.FieldComplianceValidation: cv,
		domain.FieldProcessingStatus:     string(domain.ProcessingFallback),
	}
	if docType == domain.TypeBankStatement {
		rec[domain.FieldTransactions] = []any{}
	}
	return rec
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
