package similarity

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"

	"github.com/kirillkom/fiscal-doc-pipeline/internal/core/domain"
)

var legalSuffixes = map[string]bool{
	"SRL": true, "SA": true, "PFA": true, "II": true, "IF": true, "SNC": true, "SCS": true,
	"SCA": true, "RA": true, "LLC": true, "LTD": true, "INC": true, "GMBH": true, "AG": true,
	"SRLD": true, "CO": true, "CORP": true,
}

// NormalizeNumber upper-cases a document number and drops whitespace, hyphens and leading
// zeros.
func NormalizeNumber(raw string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(raw) {
		if unicode.IsSpace(r) || r == '-' {
			continue
		}
		b.WriteRune(r)
	}
	return strings.TrimLeft(b.String(), "0")
}

// NormalizeAmount rounds to two decimals; unparseable values are zero.
func NormalizeAmount(v any) decimal.Decimal {
	return domain.ParseAmount(v).Round(2)
}

// NormalizeDate renders any supported date layout as DD-MM-YYYY, or "" when unparseable.
func NormalizeDate(raw string) string {
	t, ok := domain.ParseDate(raw)
	if !ok {
		return ""
	}
	return domain.FormatDate(t)
}

// NormalizeEIN upper-cases a fiscal identifier, removes whitespace and strips a leading
// two-letter country prefix.
func NormalizeEIN(raw string) string {
	code := strings.ToUpper(strings.Join(strings.Fields(raw), ""))
	if len(code) > 2 && isLetter(code[0]) && isLetter(code[1]) {
		code = code[2:]
	}
	return code
}

func isLetter(c byte) bool {
	return c >= 'A' && c <= 'Z'
}

// NormalizeCompanyName upper-cases a company name, removes punctuation and trailing legal
// entity suffixes, and collapses whitespace.
func NormalizeCompanyName(raw string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r == '.':
			return -1
		case unicode.IsLetter(r), unicode.IsDigit(r):
			return unicode.ToUpper(r)
		default:
			return ' '
		}
	}, raw)

	tokens := strings.Fields(cleaned)
	for len(tokens) > 1 && legalSuffixes[tokens[len(tokens)-1]] {
		tokens = tokens[:len(tokens)-1]
	}
	return strings.Join(tokens, " ")
}

// NamesSimilar compares two normalized company names: identical, one containing the other
// when both are longer than five characters, or at least two shared tokens covering 60% of
// the shorter name.
func NamesSimilar(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	if a == b {
		return true
	}
	if len([]rune(a)) > 5 && len([]rune(b)) > 5 && (strings.Contains(a, b) || strings.Contains(b, a)) {
		return true
	}

	tokensA := uniqueTokens(a)
	tokensB := uniqueTokens(b)
	common := 0
	for tok := range tokensA {
		if tokensB[tok] {
			common++
		}
	}
	smaller := min(len(tokensA), len(tokensB))
	return common >= 2 && float64(common) >= 0.6*float64(smaller)
}

func uniqueTokens(s string) map[string]bool {
	out := map[string]bool{}
	for _, tok := range strings.Fields(s) {
		out[tok] = true
	}
	return out
}
