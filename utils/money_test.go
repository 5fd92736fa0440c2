package utils

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseMoney_AcceptsFormattedStrings(t *testing.T) {
	cases := []struct {
		in       string
		expected string
	}{
		{"20000", "20000"},
		{"20,000", "20000"},
		{"₮ 20,000", "20000"},
		{"MNT -20,000", "-20000"},
		{"  12,500.50₮  ", "12500.5"},
		{"5000 төг", "5000"},
	}
	for _, tc := range cases {
		d, err := ParseMoney(tc.in)
		if err != nil {
			t.Fatalf("ParseMoney(%q) error: %v", tc.in, err)
		}
		if d.String() != tc.expected {
			t.Fatalf("ParseMoney(%q) expected %s, got %s", tc.in, tc.expected, d.String())
		}
	}
}

func TestParseMoney_RejectsEmpty(t *testing.T) {
	if _, err := ParseMoney("₮"); err == nil {
		t.Fatalf("expected error for symbol-only input")
	}
}

func TestFormatMNT(t *testing.T) {
	cases := map[string]string{
		"0":       "0₮",
		"500":     "500₮",
		"12500":   "12,500₮",
		"1234567": "1,234,567₮",
		"-3000":   "-3,000₮",
		"2999.6":  "3,000₮",
	}
	for in, want := range cases {
		if got := FormatMNT(decimal.RequireFromString(in)); got != want {
			t.Fatalf("FormatMNT(%s) = %s, want %s", in, got, want)
		}
	}
}
