package money

import (
	"math"
	"testing"
)

func TestParseAcceptedForms(t *testing.T) {
	cases := []struct {
		in       string
		amount   float64
		currency string
	}{
		{"$25.00", 25, "USD"},
		{"A$7.99", 7.99, "AUD"},
		{"₹199", 199, "INR"},
		{"€1.234,50", 1234.50, "EUR"},
		{"€1,234.50", 1234.50, "EUR"},
		{"£3", 3, "GBP"},
		{"¥500", 500, "JPY"},
		{"NT$75.00", 75, "TWD"},
		{"₩5,000", 5000, "KRW"},
		{"R$10,00", 10, "BRL"},
		{"USD 25", 25, "USD"},
		{"eur 5,50", 5.5, "EUR"},
		{"HK$ 88.80", 88.8, "HKD"},
		{"₺19,99", 19.99, "TRY"},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got := Parse(tc.in)
			if !got.OK {
				t.Fatalf("Parse(%q) failed: %+v", tc.in, got)
			}
			if math.Abs(got.Amount-tc.amount) > 1e-9 {
				t.Fatalf("Parse(%q) amount = %v, want %v", tc.in, got.Amount, tc.amount)
			}
			if got.Currency != tc.currency {
				t.Fatalf("Parse(%q) currency = %q, want %q", tc.in, got.Currency, tc.currency)
			}
		})
	}
}

func TestParseRejections(t *testing.T) {
	cases := []string{
		"",
		"   ",
		"-$5.00",
		"10€",
		"100",
		"$",
		"$abc",
		"$0",
		"$0.00",
		"donation",
		"€-3",
	}
	for _, in := range cases {
		t.Run("reject "+in, func(t *testing.T) {
			got := Parse(in)
			if got.OK || got.Amount != 0 || got.Currency != "" {
				t.Fatalf("Parse(%q) = %+v, want zero result", in, got)
			}
		})
	}
}

func TestParseDeterministic(t *testing.T) {
	a := Parse("A$7.99")
	b := Parse("A$7.99")
	if a != b {
		t.Fatalf("parse not referentially transparent: %+v vs %+v", a, b)
	}
}

func TestNormalizeCurrency(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"$", "USD"},
		{"₽", "RUB"},
		{"฿", "THB"},
		{"元", "CNY"},
		{"usd", "USD"},
		{"EUR", "EUR"},
		{"", "XXX"},
		{"bottlecaps", "XXX"},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			if got := NormalizeCurrency(tc.in); got != tc.want {
				t.Fatalf("NormalizeCurrency(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}
