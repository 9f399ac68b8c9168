package domain

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

type Amount = decimal.Decimal

// ParseAmount reads a monetary value from a decoded JSON value. Strings may carry currency
// words and either Romanian ("1.234,56") or English ("1,234.56") separators. Anything that
// does not parse yields zero.
func ParseAmount(v any) Amount {
	switch t := v.(type) {
	case nil:
		return decimal.Zero
	case json.Number:
		return parseAmountString(t.String())
	case float64:
		return decimal.NewFromFloat(t)
	case float32:
		return decimal.NewFromFloat32(t)
	case int:
		return decimal.NewFromInt(int64(t))
	case int64:
		return decimal.NewFromInt(t)
	case decimal.Decimal:
		return t
	case string:
		return parseAmountString(t)
	default:
		return decimal.Zero
	}
}

// FormatAmount renders an amount with two decimals as a JSON number.
func FormatAmount(a Amount) json.Number {
	return json.Number(a.StringFixed(2))
}

func parseAmountString(raw string) Amount {
	if trimmed := strings.TrimSpace(raw); strings.ContainsAny(trimmed, "eE") {
		if d, err := decimal.NewFromString(trimmed); err == nil {
			return d
		}
	}

	var b strings.Builder
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9', r == '.', r == ',':
			b.WriteRune(r)
		case r == '-' && b.Len() == 0:
			b.WriteRune(r)
		}
	}
	s := b.String()
	if s == "" || s == "-" {
		return decimal.Zero
	}

	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")
	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(s, ",") == 1 && len(s)-lastComma-1 <= 2 {
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case strings.Count(s, ".") > 1:
		s = strings.ReplaceAll(s, ".", "")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
