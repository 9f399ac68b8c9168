package similarity

import "testing"

func TestNormalizeNumber(t *testing.T) {
	cases := map[string]string{
		"fa-0012":  "FA0012",
		" 000123 ": "123",
		"0-0-0":    "",
		"AB 12-3":  "AB123",
	}
	for in, want := range cases {
		if got := NormalizeNumber(in); got != want {
			t.Fatalf("NormalizeNumber(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalizeDate(t *testing.T) {
	cases := map[string]string{
		"2024-03-15":          "15-03-2024",
		"15.03.2024":          "15-03-2024",
		"15/3/2024":           "15-03-2024",
		"2024/03/15T10:00:00": "15-03-2024",
		"15-03-24":            "15-03-2024",
		"31.02.2024":          "",
		"yesterday":           "",
	}
	for in, want := range cases {
		if got := NormalizeDate(in); got != want {
			t.Fatalf("NormalizeDate(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalizeEINAndAmount(t *testing.T) {
	if got := NormalizeEIN(" ro 1854 7290 "); got != "18547290" {
		t.Fatalf("unexpected EIN %q", got)
	}
	if got := NormalizeEIN("DE123"); got != "123" {
		t.Fatalf("unexpected EIN %q", got)
	}
	if got := NormalizeAmount("1.234,567").String(); got != "1234.57" {
		t.Fatalf("unexpected amount %s", got)
	}
	if !NormalizeAmount("abc").IsZero() {
		t.Fatalf("expected non-numeric amount to be zero")
	}
}

func TestNormalizeCompanyName(t *testing.T) {
	cases := map[string]string{
		"Alfa Trade S.R.L.":       "ALFA TRADE",
		"  beta,   consulting SA": "BETA CONSULTING",
		"Gamma Holdings Ltd. Inc": "GAMMA HOLDINGS",
		"SRL":                     "SRL",
	}
	for in, want := range cases {
		if got := NormalizeCompanyName(in); got != want {
			t.Fatalf("NormalizeCompanyName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNamesSimilar(t *testing.T) {
	cases := []struct {
		a, b string
		want bool
	}{
		{"ALFA TRADE", "ALFA TRADE", true},
		{"ALFA TRADE", "ALFA TRADE DISTRIBUTION", true},
		{"ALFA", "ALFA TRADE", false},
		{"NORD CONSTRUCT", "SUD CONSTRUCT", false},
		{"NORD EST GRUP", "GRUP NORD EST", true},
		{"", "ALFA", false},
	}
	for _, tc := range cases {
		if got := NamesSimilar(tc.a, tc.b); got != tc.want {
			t.Fatalf("NamesSimilar(%q, %q) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}
