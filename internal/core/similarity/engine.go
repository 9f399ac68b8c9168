package similarity

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kirillkom/fiscal-doc-pipeline/internal/core/domain"
)

var (
	exactAmountTolerance = decimal.RequireFromString("0.01")
	nearAmountTolerance  = decimal.NewFromInt(1)
)

// Result is the similarity between two same-type records.
type Result struct {
	Score          float64
	MatchingFields []string
	Reason         string
}

// Engine scores candidate records against previously processed ones.
type Engine struct {
	logger *slog.Logger
}

func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{logger: logger}
}

// Detect compares candidate with every existing record of the same type and reports the
// best matches at or above the similar-content threshold.
func (e *Engine) Detect(candidate domain.Record, existing []domain.Record) domain.DuplicateDetection {
	detection := domain.EmptyDuplicateDetection()
	for i, other := range existing {
		res, ok := e.Score(candidate, other)
		if !ok {
			continue
		}
		dupType, isMatch := domain.ClassifyDuplicate(res.Score)
		if !isMatch {
			continue
		}
		detection.DuplicateMatches = append(detection.DuplicateMatches, domain.DuplicateMatch{
			DocumentID:      documentID(other, i),
			SimilarityScore: res.Score,
			MatchingFields:  res.MatchingFields,
			DuplicateType:   dupType,
			Reason:          res.Reason,
		})
	}

	sort.SliceStable(detection.DuplicateMatches, func(i, j int) bool {
		return detection.DuplicateMatches[i].SimilarityScore > detection.DuplicateMatches[j].SimilarityScore
	})
	if len(detection.DuplicateMatches) > domain.MaxDuplicateMatches {
		detection.DuplicateMatches = detection.DuplicateMatches[:domain.MaxDuplicateMatches]
	}
	if len(detection.DuplicateMatches) > 0 {
		detection.IsDuplicate = true
		detection.Confidence = detection.DuplicateMatches[0].SimilarityScore
		e.logger.Info("duplicate_detected",
			"matches", len(detection.DuplicateMatches),
			"top_score", detection.Confidence,
			"top_document_id", detection.DuplicateMatches[0].DocumentID,
		)
	}
	return detection
}

func documentID(rec domain.Record, index int) string {
	if id := rec.ID(); id != "" {
		return id
	}
	if hash := rec.String(domain.FieldDocumentHash); hash != "" {
		return hash
	}
	return fmt.Sprintf("index:%d", index)
}

// Score returns ok=false for records of different types; those pairs are never compared.
func (e *Engine) Score(candidate, existing domain.Record) (Result, bool) {
	candType := typeOf(candidate)
	if candType != typeOf(existing) {
		return Result{}, false
	}

	m := &matcher{a: candidate, b: existing}
	switch candType {
	case domain.TypeInvoice:
		m.invoice()
	case domain.TypeReceipt:
		m.receipt()
	case domain.TypeBankStatement:
		m.bankStatement()
	case domain.TypeContract:
		m.contract()
	default:
		m.other()
	}
	return m.result(), true
}

func typeOf(rec domain.Record) domain.DocumentType {
	if t := rec.DocumentType(); t != "" {
		return t
	}
	return domain.TypeUnknown
}

type matcher struct {
	a, b   domain.Record
	score  float64
	fields []string
}

func (m *matcher) add(weight float64, field string) {
	m.score += weight
	m.fields = append(m.fields, field)
}

func (m *matcher) result() Result {
	score := math.Min(1, math.Round(m.score*10000)/10000)
	fields := uniqueSorted(m.fields)
	reason := "no matching fields"
	if len(fields) > 0 {
		reason = "matching fields: " + strings.Join(fields, ", ")
	}
	return Result{Score: score, MatchingFields: fields, Reason: reason}
}

func (m *matcher) invoice() {
	exact := 0
	numberMatch := m.sameNumber(domain.FieldDocumentNumber)
	if numberMatch {
		m.add(0.50, domain.FieldDocumentNumber)
		exact++
	}

	switch diff, ok := m.amountDiff(domain.FieldTotalAmount); {
	case ok && diff.LessThan(exactAmountTolerance):
		m.add(0.30, domain.FieldTotalAmount)
		exact++
	case ok && diff.LessThan(nearAmountTolerance):
		m.add(0.15, domain.FieldTotalAmount)
	}

	if m.sameDate(domain.FieldDocumentDate) {
		m.add(0.15, domain.FieldDocumentDate)
		exact++
	}

	einMatch := m.sameEIN(domain.FieldVendorEIN)
	if einMatch {
		m.add(0.15, domain.FieldVendorEIN)
		exact++
	} else if NamesSimilar(NormalizeCompanyName(m.a.String(domain.FieldVendor)), NormalizeCompanyName(m.b.String(domain.FieldVendor))) {
		m.add(0.075, domain.FieldVendor)
	}

	if currency := strings.ToUpper(m.a.String(domain.FieldCurrency)); currency != "" && currency == strings.ToUpper(m.b.String(domain.FieldCurrency)) {
		m.add(0.05, domain.FieldCurrency)
	}

	if exact >= 3 {
		m.score += 0.05
	}
	if numberMatch && einMatch {
		m.score = math.Max(m.score, 0.90)
	}
}

func (m *matcher) receipt() {
	numberMatch := m.sameNumber("receipt_number", domain.FieldDocumentNumber)
	einMatch := m.sameEIN(domain.FieldVendorEIN)
	dateMatch := m.sameDate(domain.FieldDocumentDate)
	diff, ok := m.amountDiff(domain.FieldTotalAmount)
	amountMatch := ok && diff.LessThan(exactAmountTolerance)

	switch {
	case numberMatch && einMatch && dateMatch:
		m.add(0.95, "receipt_number")
		m.fields = append(m.fields, domain.FieldVendorEIN, domain.FieldDocumentDate)
		if amountMatch {
			m.add(0.05, domain.FieldTotalAmount)
		}
	case einMatch && amountMatch && dateMatch:
		m.add(0.80, domain.FieldVendorEIN)
		m.fields = append(m.fields, domain.FieldTotalAmount, domain.FieldDocumentDate)
	}
}

func (m *matcher) bankStatement() {
	if m.sameNumber("account_number") {
		m.add(0.60, "account_number")
	}
	startA, endA, okA := statementPeriod(m.a)
	startB, endB, okB := statementPeriod(m.b)
	if !okA || !okB {
		return
	}
	if !startA.After(endB) && !startB.After(endA) {
		m.add(0.25, "statement_period")
		if startA.Equal(startB) && endA.Equal(endB) {
			m.score += 0.10
		}
	}
}

func (m *matcher) contract() {
	if m.sameNumber("contract_number", domain.FieldDocumentNumber) {
		m.add(0.95, "contract_number")
	}
}

func (m *matcher) other() {
	if m.sameNumber(domain.FieldDocumentNumber) {
		m.add(0.70, domain.FieldDocumentNumber)
	}
}

// sameNumber compares the first non-empty of keys on each side.
func (m *matcher) sameNumber(keys ...string) bool {
	a := NormalizeNumber(firstString(m.a, keys...))
	return a != "" && a == NormalizeNumber(firstString(m.b, keys...))
}

func (m *matcher) sameEIN(key string) bool {
	a := NormalizeEIN(m.a.String(key))
	return a != "" && a == NormalizeEIN(m.b.String(key))
}

func (m *matcher) sameDate(key string) bool {
	a := NormalizeDate(m.a.String(key))
	return a != "" && a == NormalizeDate(m.b.String(key))
}

// amountDiff is the absolute difference of two non-zero amounts.
func (m *matcher) amountDiff(key string) (decimal.Decimal, bool) {
	a := NormalizeAmount(m.a[key])
	b := NormalizeAmount(m.b[key])
	if a.IsZero() || b.IsZero() {
		return decimal.Zero, false
	}
	return a.Sub(b).Abs(), true
}

func firstString(rec domain.Record, keys ...string) string {
	for _, key := range keys {
		if s := rec.String(key); s != "" {
			return s
		}
	}
	return ""
}

func statementPeriod(rec domain.Record) (time.Time, time.Time, bool) {
	from, to := rec.String("period_start"), rec.String("period_end")
	if period, ok := rec["statement_period"].(map[string]any); ok {
		from = firstString(period, "start", "from")
		to = firstString(period, "end", "to")
	}
	start, okStart := domain.ParseDate(from)
	end, okEnd := domain.ParseDate(to)
	if !okStart || !okEnd || end.Before(start) {
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}

func uniqueSorted(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}
