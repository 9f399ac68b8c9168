package recovery

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"regexp"
	"strings"

	"github.com/kirillkom/fiscal-doc-pipeline/internal/core/compliance"
	"github.com/kirillkom/fiscal-doc-pipeline/internal/core/domain"
)

type Strategy string

const (
	StrategyDirect        Strategy = "direct"
	StrategyBraceScan     Strategy = "brace_scan"
	StrategyFencedBlock   Strategy = "fenced_block"
	StrategyFieldPatterns Strategy = "field_patterns"
	StrategyNone          Strategy = "none"
)

const maxBraceCandidates = 5

// Result is the best-effort mapping recovered from oracle text. Data is never nil.
type Result struct {
	Data          map[string]any
	Strategy      Strategy
	ComplianceErr error
}

var (
	ansiEscape  = regexp.MustCompile(`\x1b\[[0-9;?]*[ -/]*[@-~]`)
	fencedBlock = regexp.MustCompile("(?s)```[A-Za-z0-9_-]*\\s*(\\{.*?\\})\\s*```")
	lineItemsAt = regexp.MustCompile(`"line_items"\s*:\s*\[`)
)

var patternFields = []string{
	domain.FieldDocumentType,
	domain.FieldDirection,
	domain.FieldDocumentNumber,
	domain.FieldDocumentDate,
	domain.FieldVendor,
	domain.FieldVendorEIN,
	domain.FieldBuyer,
	domain.FieldBuyerEIN,
	domain.FieldTotalAmount,
	domain.FieldVATAmount,
	domain.FieldCurrency,
	"company_name",
	"company_ein",
}

var fieldPatterns = buildFieldPatterns(patternFields)

var strategies = []struct {
	name    Strategy
	recover func(string) (map[string]any, bool)
}{
	{StrategyDirect, parseObject},
	{StrategyBraceScan, scanBraces},
	{StrategyFencedBlock, fenced},
	{StrategyFieldPatterns, matchFields},
}

func buildFieldPatterns(fields []string) map[string]*regexp.Regexp {
	out := make(map[string]*regexp.Regexp, len(fields))
	for _, field := range fields {
		out[field] = regexp.MustCompile(
			`"` + regexp.QuoteMeta(field) + `"\s*:\s*(?:("(?:[^"\\]|\\.)*")|(-?\d+(?:\.\d+)?(?:[eE][+-]?\d+)?)(?:\s*[,}\]]|\s|$))`,
		)
	}
	return out
}

// Extractor recovers structured data from free text that may or may not contain JSON.
type Extractor struct {
	logger *slog.Logger
}

func NewExtractor(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{logger: logger}
}

// Extract never fails. Strategies are tried in order and the first non-empty object wins.
func (e *Extractor) Extract(raw string) Result {
	text := strings.TrimSpace(ansiEscape.ReplaceAllString(raw, ""))
	result := Result{Data: map[string]any{}, Strategy: StrategyNone}
	if text == "" {
		return result
	}

	for _, step := range strategies {
		data, ok := step.recover(text)
		if ok && len(data) > 0 {
			result.Data = data
			result.Strategy = step.name
			break
		}
	}
	if result.Strategy == StrategyNone {
		e.logger.Warn("json_recovery_failed", "input_length", len(text))
		return result
	}

	if sub, ok := result.Data[domain.FieldComplianceValidation]; ok {
		normalized, err := compliance.Normalize(sub)
		result.Data[domain.FieldComplianceValidation] = normalized
		result.ComplianceErr = err
	}
	if result.Strategy != StrategyDirect {
		e.logger.Debug("json_recovered", "strategy", string(result.Strategy), "keys", len(result.Data))
	}
	return result
}

// parseObject decodes s as exactly one JSON object, keeping numbers as json.Number.
func parseObject(s string) (map[string]any, bool) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var out map[string]any
	if err := dec.Decode(&out); err != nil || out == nil {
		return nil, false
	}
	var trailing json.RawMessage
	if err := dec.Decode(&trailing); !errors.Is(err, io.EOF) {
		return nil, false
	}
	return out, true
}

// scanBraces walks s once, tracking brace depth outside string literals, and parses each
// balanced top-level span. The candidate with the most keys wins; ties keep the earliest.
func scanBraces(s string) (map[string]any, bool) {
	var best map[string]any
	candidates := 0
	depth, start := 0, -1
	inString, escaped := false, false

	for i := 0; i < len(s) && candidates < maxBraceCandidates; i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 {
				candidates++
				if obj, ok := parseObject(s[start : i+1]); ok && len(obj) > len(best) {
					best = obj
				}
			}
		}
	}
	return best, best != nil
}

func fenced(s string) (map[string]any, bool) {
	for _, m := range fencedBlock.FindAllStringSubmatch(s, -1) {
		if obj, ok := parseObject(m[1]); ok && len(obj) > 0 {
			return obj, true
		}
	}
	return nil, false
}

// matchFields salvages known scalar fields and complete line items from text that is not
// valid JSON, typically a truncated object. Numbers only count when a delimiter follows.
func matchFields(s string) (map[string]any, bool) {
	if !mentionsKnownField(s) {
		return nil, false
	}

	out := map[string]any{}
	for _, field := range patternFields {
		m := fieldPatterns[field].FindStringSubmatch(s)
		if m == nil {
			continue
		}
		raw := m[1]
		if raw == "" {
			raw = m[2]
		}
		if v, ok := decodeScalar(raw); ok {
			out[field] = v
		}
	}
	if items := salvageLineItems(s); len(items) > 0 {
		out[domain.FieldLineItems] = items
	}
	return out, len(out) > 0
}

func mentionsKnownField(s string) bool {
	if strings.Contains(s, `"`+domain.FieldLineItems+`"`) {
		return true
	}
	for _, field := range patternFields {
		if strings.Contains(s, `"`+field+`"`) {
			return true
		}
	}
	return false
}

func decodeScalar(raw string) (any, bool) {
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal([]byte(raw), &s); err != nil {
			return nil, false
		}
		return s, true
	}
	return json.Number(raw), true
}

// salvageLineItems collects every complete object of the line_items array, stopping at the
// closing bracket or wherever the text was cut off.
func salvageLineItems(s string) []any {
	loc := lineItemsAt.FindStringIndex(s)
	if loc == nil {
		return nil
	}

	var items []any
	depth, start := 0, -1
	inString, escaped := false, false
	for i := loc[1]; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 {
				if obj, ok := parseObject(s[start : i+1]); ok {
					items = append(items, obj)
				}
			}
		case ']':
			if depth == 0 {
				return items
			}
		}
	}
	return items
}
