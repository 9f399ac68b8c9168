package domain

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	yearFirstDate = regexp.MustCompile(`^(\d{4})[-./](\d{1,2})[-./](\d{1,2})`)
	dayFirstDate  = regexp.MustCompile(`^(\d{1,2})[-./](\d{1,2})[-./](\d{4}|\d{2})(?:\D|$)`)
)

// ParseDate reads a calendar date written year-first (2024-03-15) or day-first
// (15.03.2024, 15/03/24) with "-", "." or "/" separators. Time suffixes are ignored.
func ParseDate(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}

	var year, month, day string
	if m := yearFirstDate.FindStringSubmatch(s); m != nil {
		year, month, day = m[1], m[2], m[3]
	} else if m := dayFirstDate.FindStringSubmatch(s); m != nil {
		day, month, year = m[1], m[2], m[3]
	} else {
		return time.Time{}, false
	}

	y, _ := strconv.Atoi(year)
	mo, _ := strconv.Atoi(month)
	d, _ := strconv.Atoi(day)
	if len(year) == 2 {
		y += 2000
	}
	if mo < 1 || mo > 12 || d < 1 || d > 31 {
		return time.Time{}, false
	}
	t := time.Date(y, time.Month(mo), d, 0, 0, 0, 0, time.UTC)
	if t.Day() != d {
		return time.Time{}, false
	}
	return t, true
}

// FormatDate renders dates the way records carry them: DD-MM-YYYY.
func FormatDate(t time.Time) string {
	return t.Format("02-01-2006")
}
