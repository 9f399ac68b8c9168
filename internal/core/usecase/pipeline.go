package usecase

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/kirillkom/fiscal-doc-pipeline/internal/core/compliance"
	"github.com/kirillkom/fiscal-doc-pipeline/internal/core/domain"
	"github.com/kirillkom/fiscal-doc-pipeline/internal/core/ports"
	"github.com/kirillkom/fiscal-doc-pipeline/internal/core/recovery"
	"github.com/kirillkom/fiscal-doc-pipeline/internal/core/similarity"
)

type ProcessUseCase struct {
	extractor    ports.TextExtractor
	oracle       ports.Oracle
	recovery     *recovery.Extractor
	similarity   *similarity.Engine
	validator    *compliance.Validator
	articles     *ArticleMatcher
	orchestrator *Orchestrator
	observer     AttemptObserver
	policy       domain.RetryPolicy
	logger       *slog.Logger
}

func NewProcessUseCase(
	extractor ports.TextExtractor,
	oracle ports.Oracle,
	policy domain.RetryPolicy,
	observer AttemptObserver,
	logger *slog.Logger,
) *ProcessUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	if observer == nil {
		observer = noopObserver{}
	}
	return &ProcessUseCase{
		extractor:    extractor,
		oracle:       oracle,
		recovery:     recovery.NewExtractor(logger),
		similarity:   similarity.NewEngine(logger),
		validator:    compliance.NewValidator(),
		articles:     NewArticleMatcher(logger),
		orchestrator: NewOrchestrator(logger, observer),
		observer:     observer,
		policy:       policy,
		logger:       logger,
	}
}

// Process runs the pipeline for one document. Input problems found before the first pass
// are reported as Error/Details; everything after that yields a record, possibly a fallback.
func (uc *ProcessUseCase) Process(ctx context.Context, in domain.PipelineInput) domain.ProcessResult {
	path, content, cleanup, err := stageDocument(in)
	if err != nil {
		uc.logger.Warn("pipeline_input_rejected", "path", in.DocumentPath, "error", err)
		return domain.ProcessResult{Error: "document not found", Details: err.Error()}
	}
	defer cleanup()

	sum := sha256.Sum256(content)
	hash := hex.EncodeToString(sum[:])

	st := &passState{input: in, path: path, hash: hash}
	rec, ok := uc.orchestrator.Run(ctx, func(ctx context.Context) (domain.Record, error) {
		return uc.runPass(ctx, st)
	}, uc.policy)
	rec[domain.FieldDocumentHash] = hash
	if detection, found := rec[domain.FieldDuplicateDetection].(domain.DuplicateDetection); found && detection.IsDuplicate {
		uc.observer.ObserveDuplicate(string(detection.DuplicateMatches[0].DuplicateType))
	}

	uc.logger.Info("pipeline_finished",
		"document_type", rec.String(domain.FieldDocumentType),
		"processing_status", rec.String(domain.FieldProcessingStatus),
		"phase", int(in.Phase),
	)
	return domain.ProcessResult{Data: rec, Success: ok}
}

// stageDocument resolves the document to a readable path and its bytes. Bytes without a
// path are spilled to a temporary file for the text extractor.
func stageDocument(in domain.PipelineInput) (string, []byte, func(), error) {
	noop := func() {}
	switch {
	case in.DocumentPath != "" && len(in.DocumentBytes) > 0:
		return in.DocumentPath, in.DocumentBytes, noop, nil
	case in.DocumentPath != "":
		content, err := os.ReadFile(in.DocumentPath)
		if err != nil {
			return "", nil, noop, domain.WrapError(domain.ErrNotFound, "read document", err)
		}
		return in.DocumentPath, content, noop, nil
	case len(in.DocumentBytes) > 0:
		ext := ".txt"
		if bytes.HasPrefix(in.DocumentBytes, []byte("%PDF-")) {
			ext = ".pdf"
		}
		f, err := os.CreateTemp("", "fiscal-doc-*"+ext)
		if err != nil {
			return "", nil, noop, fmt.Errorf("create temp document: %w", err)
		}
		path := f.Name()
		cleanup := func() { _ = os.Remove(path) }
		if _, err := f.Write(in.DocumentBytes); err != nil {
			_ = f.Close()
			cleanup()
			return "", nil, noop, fmt.Errorf("write temp document: %w", err)
		}
		if err := f.Close(); err != nil {
			cleanup()
			return "", nil, noop, fmt.Errorf("close temp document: %w", err)
		}
		return filepath.Clean(path), in.DocumentBytes, cleanup, nil
	default:
		return "", nil, noop, domain.WrapError(domain.ErrInvalidInput, "stage document", errors.New("no document path or content supplied"))
	}
}

// passState carries what one pass learned into the next, so extracted text is not
// recomputed on retry.
type passState struct {
	input domain.PipelineInput
	path  string
	hash  string
	text  string
}

func (uc *ProcessUseCase) runPass(ctx context.Context, st *passState) (domain.Record, error) {
	rec := domain.NewRecord()

	if st.text == "" {
		text, err := uc.extractor.Extract(ctx, st.path)
		if err != nil {
			return rec, fmt.Errorf("extract text: %w", err)
		}
		if text == "" {
			return rec, domain.WrapError(domain.ErrInvalidInput, "extract text", errors.New("empty extracted text"))
		}
		st.text = text
	}

	classification, err := uc.classify(ctx, st)
	if err != nil {
		return rec, err
	}
	if len(classification) == 0 {
		return rec, nil
	}

	rec.Merge(classification)
	docType := classifiedType(classification)
	rec[domain.FieldDocumentType] = string(docType)
	rec[domain.FieldDocumentHash] = st.hash

	if st.input.Phase == domain.PhaseClassify {
		rec[domain.FieldProcessingStatus] = string(domain.ProcessingCompleted)
		return rec, nil
	}

	if err := uc.extract(ctx, st, rec, docType); err != nil {
		return rec, err
	}

	if docType == domain.TypeInvoice {
		uc.applyArticles(rec, st.input)
	}

	rec[domain.FieldDuplicateDetection] = uc.similarity.Detect(rec, st.input.ExistingDocuments)

	cv, err := uc.validateCompliance(ctx, st, rec, docType)
	if err != nil {
		return rec, err
	}
	rec[domain.FieldComplianceValidation] = cv

	postProcess(rec, docType)
	return rec, nil
}

// classify reuses a supplied phase-0 result for phase-1 requests.
func (uc *ProcessUseCase) classify(ctx context.Context, st *passState) (map[string]any, error) {
	if st.input.Phase == domain.PhaseExtract && len(st.input.Phase0Result) > 0 {
		return st.input.Phase0Result.Clone(), nil
	}

	raw, err := uc.oracle.Complete(ctx, domain.OracleRequest{
		Task:         domain.TaskClassify,
		DocumentText: st.text,
		ClientID:     st.input.ClientID,
	})
	if err != nil {
		return nil, fmt.Errorf("classify document: %w", err)
	}
	res := uc.recovery.Extract(raw)
	if len(res.Data) == 0 {
		uc.logger.Warn("classification_empty", "raw_length", len(raw))
	}
	return res.Data, nil
}

func classifiedType(classification map[string]any) domain.DocumentType {
	t := domain.Record(classification).DocumentType()
	if t == "" {
		return domain.TypeUnknown
	}
	return t
}

// extract merges the type-specific extraction into rec. The classified type stays
// authoritative even if the extraction output names another one.
func (uc *ProcessUseCase) extract(ctx context.Context, st *passState, rec domain.Record, docType domain.DocumentType) error {
	raw, err := uc.oracle.Complete(ctx, domain.OracleRequest{
		Task:         domain.ExtractionTaskFor(docType),
		DocumentText: st.text,
		ClientID:     st.input.ClientID,
		DocumentType: docType,
		Articles:     st.input.Articles,
	})
	if err != nil {
		return fmt.Errorf("extract %s data: %w", docType, err)
	}

	res := uc.recovery.Extract(raw)
	if len(res.Data) == 0 {
		uc.logger.Warn("extraction_empty", "document_type", string(docType), "raw_length", len(raw))
		return nil
	}
	rec.Merge(res.Data)
	rec[domain.FieldDocumentType] = string(docType)
	return nil
}

func (uc *ProcessUseCase) applyArticles(rec domain.Record, in domain.PipelineInput) {
	if domain.IsEmptyValue(rec[domain.FieldDirection]) {
		rec[domain.FieldDirection] = InvoiceDirection(rec, in.ClientID)
	}
	items := rec.LineItems()
	if len(items) == 0 {
		return
	}
	uc.articles.Apply(items, in.Articles, rec.String(domain.FieldDirection))
	lineItems := make([]any, len(items))
	for i, item := range items {
		lineItems[i] = item
	}
	rec[domain.FieldLineItems] = lineItems
}

func (uc *ProcessUseCase) validateCompliance(
	ctx context.Context,
	st *passState,
	rec domain.Record,
	docType domain.DocumentType,
) (domain.ComplianceValidation, error) {
	raw, err := uc.oracle.Complete(ctx, domain.OracleRequest{
		Task:         domain.TaskValidateCompliance,
		DocumentText: st.text,
		ClientID:     st.input.ClientID,
		DocumentType: docType,
		Record:       rec.Clone(),
	})
	if err != nil {
		return domain.ComplianceValidation{}, fmt.Errorf("validate compliance: %w", err)
	}

	res := uc.recovery.Extract(raw)
	var output any = res.Data
	if sub, ok := res.Data[domain.FieldComplianceValidation]; ok {
		output = sub
	}

	cv, err := compliance.Decode(output)
	if err != nil {
		uc.logger.Warn("compliance_output_invalid", "document_type", string(docType), "error", err)
		cv.Warnings = cv.Warnings.Add(
			"Rezultatul validării nu conține statusul de conformitate. Este necesară verificarea manuală.",
			"Compliance output did not include a status. Manual review is required.",
		)
	}
	return compliance.Merge(cv, uc.validator.Check(rec)), nil
}

var optionalNonInvoiceFields = []string{
	domain.FieldVendorEIN,
	domain.FieldBuyerEIN,
	domain.FieldDirection,
	domain.FieldVATAmount,
}

func postProcess(rec domain.Record, docType domain.DocumentType) {
	switch docType {
	case domain.TypeInvoice:
		if _, ok := rec[domain.FieldLineItems].([]any); !ok {
			rec[domain.FieldLineItems] = []any{}
		}
	case domain.TypeBankStatement:
		if _, ok := rec[domain.FieldTransactions].([]any); !ok {
			rec[domain.FieldTransactions] = []any{}
		}
	}
	if docType != domain.TypeInvoice {
		for _, field := range optionalNonInvoiceFields {
			if domain.IsEmptyValue(rec[field]) {
				delete(rec, field)
			}
		}
	}

	for _, field := range []string{domain.FieldTotalAmount, domain.FieldVATAmount} {
		if v, ok := rec[field]; ok {
			rec[field] = domain.FormatAmount(domain.ParseAmount(v))
		}
	}
	if rec.String(domain.FieldCurrency) == "" {
		rec[domain.FieldCurrency] = domain.DefaultCurrency
	}

	if docType == domain.TypeUnknown {
		rec[domain.FieldLowConfidence] = true
		if detection, ok := rec[domain.FieldDuplicateDetection].(domain.DuplicateDetection); ok {
			detection.Confidence /= 2
			rec[domain.FieldDuplicateDetection] = detection
		}
	}
	rec[domain.FieldProcessingStatus] = string(domain.ProcessingCompleted)
}
