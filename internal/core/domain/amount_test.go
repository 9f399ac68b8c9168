package domain

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{name: "json number", in: json.Number("150.00"), want: "150"},
		{name: "exponent number", in: json.Number("1.5e3"), want: "1500"},
		{name: "exponent string", in: " 2.5E-1 ", want: "0.25"},
		{name: "romanian separators", in: "1.234,56 lei", want: "1234.56"},
		{name: "english separators", in: "1,234.56 RON", want: "1234.56"},
		{name: "currency word with e", in: "1500 lei", want: "1500"},
		{name: "negative", in: "-12,5", want: "-12.5"},
		{name: "float", in: 19.9, want: "19.9"},
		{name: "garbage", in: "n/a", want: "0"},
		{name: "nil", in: nil, want: "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseAmount(tt.in)
			if !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Fatalf("ParseAmount(%v) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}
