package compliance

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/kirillkom/fiscal-doc-pipeline/internal/core/domain"
)

const (
	keyStatus          = "compliance_status"
	keyOverallScore    = "overall_score"
	keyValidationRules = "validation_rules"
	keyErrors          = "errors"
	keyWarnings        = "warnings"
	sideRO             = "ro"
	sideEN             = "en"
)

var bilingualKeys = []string{keyValidationRules, keyErrors, keyWarnings}

// Normalize coerces oracle compliance output into the fixed bilingual shape. Unknown keys
// are kept. When compliance_status is missing or unrecognised the normalized map is still
// returned together with domain.ErrMissingComplianceStatus. Normalize(Normalize(x)) equals
// Normalize(x).
func Normalize(raw any) (map[string]any, error) {
	src, _ := raw.(map[string]any)
	out := make(map[string]any, len(src)+len(bilingualKeys)+2)
	for k, v := range src {
		out[k] = v
	}

	for _, key := range bilingualKeys {
		out[key] = normalizeBilingual(src[key])
	}
	out[keyOverallScore] = normalizeScore(src[keyOverallScore])

	rawStatus, present := src[keyStatus]
	status, ok := domain.ParseComplianceStatus(domain.Stringify(rawStatus))
	if !ok {
		delete(out, keyStatus)
		if present && rawStatus != nil {
			return out, domain.WrapError(
				domain.ErrMissingComplianceStatus,
				"normalize compliance",
				fmt.Errorf("unrecognised status %q", domain.Stringify(rawStatus)),
			)
		}
		return out, domain.ErrMissingComplianceStatus
	}
	out[keyStatus] = string(status)
	return out, nil
}

func normalizeBilingual(v any) map[string]any {
	switch t := v.(type) {
	case []any:
		return map[string]any{sideRO: cloneItems(t), sideEN: cloneItems(t)}
	case []string:
		items := stringsToItems(t)
		return map[string]any{sideRO: items, sideEN: cloneItems(items)}
	case map[string]any:
		return map[string]any{sideRO: normalizeSide(t[sideRO]), sideEN: normalizeSide(t[sideEN])}
	default:
		return map[string]any{sideRO: []any{}, sideEN: []any{}}
	}
}

func normalizeSide(v any) []any {
	switch t := v.(type) {
	case []any:
		return cloneItems(t)
	case []string:
		return stringsToItems(t)
	default:
		return []any{}
	}
}

func cloneItems(in []any) []any {
	out := make([]any, len(in))
	copy(out, in)
	return out
}

func stringsToItems(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}

func normalizeScore(v any) float64 {
	f := scoreValue(v)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

func scoreValue(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case float32:
		return float64(t)
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return 0
		}
		return f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

// Decode turns compliance output into the typed result, normalizing first. A missing
// status decodes as PENDING; the error from Normalize is returned so callers can report it.
func Decode(raw any) (domain.ComplianceValidation, error) {
	normalized, err := Normalize(raw)

	result := domain.ComplianceValidation{
		ComplianceStatus: domain.CompliancePending,
		OverallScore:     normalized[keyOverallScore].(float64),
		ValidationRules:  decodeBilingual(normalized[keyValidationRules]),
		Errors:           decodeBilingual(normalized[keyErrors]),
		Warnings:         decodeBilingual(normalized[keyWarnings]),
	}
	if s, ok := normalized[keyStatus].(string); ok {
		result.ComplianceStatus = domain.ComplianceStatus(s)
	}
	return result, err
}

func decodeBilingual(v any) domain.Bilingual {
	m, _ := v.(map[string]any)
	return domain.Bilingual{RO: decodeItems(m[sideRO]), EN: decodeItems(m[sideEN])}
}

func decodeItems(v any) []string {
	items, _ := v.([]any)
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s := itemText(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func itemText(item any) string {
	if s := domain.Stringify(item); s != "" {
		return s
	}
	switch item.(type) {
	case map[string]any, []any:
		b, err := json.Marshal(item)
		if err != nil {
			return ""
		}
		return string(b)
	}
	return ""
}
