package domain

import "strings"

type ComplianceStatus string

const (
	CompliancePending ComplianceStatus = "PENDING"
	CompliancePassed  ComplianceStatus = "PASSED"
	ComplianceFailed  ComplianceStatus = "FAILED"
	ComplianceWarning ComplianceStatus = "WARNING"
)

// ParseComplianceStatus accepts the canonical values and the spellings the oracle tends to
// produce (COMPLIANT, NON_COMPLIANT, ...). ok is false for anything else.
func ParseComplianceStatus(raw string) (ComplianceStatus, bool) {
	switch normalizeStatusKey(raw) {
	case "PENDING":
		return CompliancePending, true
	case "PASSED", "PASS", "COMPLIANT", "VALID", "OK":
		return CompliancePassed, true
	case "FAILED", "FAIL", "NON_COMPLIANT", "NONCOMPLIANT", "INVALID", "ERROR":
		return ComplianceFailed, true
	case "WARNING", "WARNINGS", "PARTIAL", "PARTIALLY_COMPLIANT":
		return ComplianceWarning, true
	default:
		return "", false
	}
}

// Bilingual holds Romanian and English variants of the same message list. Both sides are
// always non-nil.
type Bilingual struct {
	RO []string `json:"ro"`
	EN []string `json:"en"`
}

func EmptyBilingual() Bilingual {
	return Bilingual{RO: []string{}, EN: []string{}}
}

func (b Bilingual) Add(ro, en string) Bilingual {
	return Bilingual{RO: append(cloneStrings(b.RO), ro), EN: append(cloneStrings(b.EN), en)}
}

func (b Bilingual) Concat(other Bilingual) Bilingual {
	return Bilingual{
		RO: append(cloneStrings(b.RO), other.RO...),
		EN: append(cloneStrings(b.EN), other.EN...),
	}
}

func (b Bilingual) IsEmpty() bool {
	return len(b.RO) == 0 && len(b.EN) == 0
}

type ComplianceValidation struct {
	ComplianceStatus ComplianceStatus `json:"compliance_status"`
	OverallScore     float64          `json:"overall_score"`
	ValidationRules  Bilingual        `json:"validation_rules"`
	Errors           Bilingual        `json:"errors"`
	Warnings         Bilingual        `json:"warnings"`
}

func PendingCompliance() ComplianceValidation {
	return ComplianceValidation{
		ComplianceStatus: CompliancePending,
		ValidationRules:  EmptyBilingual(),
		Errors:           EmptyBilingual(),
		Warnings:         EmptyBilingual(),
	}
}

func cloneStrings(in []string) []string {
	out := make([]string, len(in), len(in)+1)
	copy(out, in)
	return out
}

func normalizeStatusKey(raw string) string {
	key := strings.ToUpper(strings.TrimSpace(raw))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(key)
}
