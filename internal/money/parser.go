// Package money parses the free-form monetary strings live platforms attach
// to paid events ("A$7.99", "₹199", "€1.234,50") into an amount and an
// ISO-4217 currency code.
package money

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/currency"
)

// Result is the outcome of a parse. Unparseable input yields the zero
// Result; a successful parse has OK set, Amount > 0 and a canonical
// uppercase Currency code.
type Result struct {
	OK       bool
	Amount   float64
	Currency string
}

// symbolOverrides covers symbols the locale tables miss or map ambiguously.
// Plain "$" resolving to USD is the documented last-resort default.
var symbolOverrides = map[string]string{
	"₽":  "RUB",
	"฿":  "THB",
	"₫":  "VND",
	"₱":  "PHP",
	"元":  "CNY",
	"円":  "JPY",
	"NT$": "TWD",
	"₩":  "KRW",
	"₴":  "UAH",
	"₦":  "NGN",
	"₵":  "GHS",
	"₭":  "LAK",
	"₲":  "PYG",
	"₡":  "CRC",
	"₺":  "TRY",
	"₸":  "KZT",
	"₮":  "MNT",
}

// baseSymbols is the seed symbol table for the major display symbols the
// platforms emit; the override table above augments it at build time.
var baseSymbols = map[string]string{
	"$":   "USD",
	"US$": "USD",
	"A$":  "AUD",
	"AU$": "AUD",
	"C$":  "CAD",
	"CA$": "CAD",
	"NZ$": "NZD",
	"HK$": "HKD",
	"R$":  "BRL",
	"MX$": "MXN",
	"S$":  "SGD",
	"€":   "EUR",
	"£":   "GBP",
	"¥":   "JPY",
	"CN¥": "CNY",
	"₹":   "INR",
	"₪":   "ILS",
	"zł":  "PLN",
	"kr":  "SEK",
	"CHF": "CHF",
	"R":   "ZAR",
}

var (
	tablesOnce sync.Once
	symbols    map[string]string
	// prefixes holds symbol keys sorted longest-first so matching is
	// deterministic longest-prefix.
	prefixes []string
)

func buildTables() {
	symbols = make(map[string]string, len(baseSymbols)+len(symbolOverrides))
	for sym, code := range baseSymbols {
		symbols[sym] = code
	}
	for sym, code := range symbolOverrides {
		symbols[sym] = code
	}
	prefixes = make([]string, 0, len(symbols))
	for sym := range symbols {
		prefixes = append(prefixes, sym)
	}
	sort.Slice(prefixes, func(i, j int) bool {
		if len(prefixes[i]) != len(prefixes[j]) {
			return len(prefixes[i]) > len(prefixes[j])
		}
		return prefixes[i] < prefixes[j]
	})
}

// Parse extracts amount and currency from a platform monetary string.
// Accepted forms are leading symbol ("$25.00", "A$7.99") and leading ISO
// code ("USD 25", "eur 5,50"). Negative amounts and trailing-symbol forms
// ("10€") are rejected.
func Parse(input string) Result {
	tablesOnce.Do(buildTables)

	s := strings.TrimSpace(input)
	if s == "" {
		return Result{}
	}
	if strings.HasPrefix(s, "-") {
		return Result{}
	}
	if startsWithDigit(s) {
		// digits first means any currency marker trails; only leading
		// symbol/code forms are accepted
		return Result{}
	}

	code, rest := matchCurrencyToken(s)
	if code == "" {
		return Result{}
	}

	amount, ok := parseAmount(strings.TrimSpace(rest))
	if !ok || amount <= 0 || math.IsInf(amount, 0) || math.IsNaN(amount) {
		return Result{}
	}
	return Result{OK: true, Amount: amount, Currency: code}
}

// NormalizeCurrency maps a symbol or code to its ISO-4217 form, or "XXX"
// when the input is unknown.
func NormalizeCurrency(s string) string {
	tablesOnce.Do(buildTables)

	s = strings.TrimSpace(s)
	if s == "" {
		return "XXX"
	}
	if code, ok := symbols[s]; ok {
		return code
	}
	if unit, err := currency.ParseISO(s); err == nil {
		return unit.String()
	}
	return "XXX"
}

func startsWithDigit(s string) bool {
	for _, r := range s {
		return unicode.IsDigit(r)
	}
	return false
}

// matchCurrencyToken resolves the leading currency marker: longest-prefix
// against the symbol table first, then a 3-letter ISO code.
func matchCurrencyToken(s string) (code, rest string) {
	for _, sym := range prefixes {
		if strings.HasPrefix(s, sym) {
			remainder := s[len(sym):]
			// a bare "R" or "kr" prefix must be followed by the amount,
			// not by more letters (so "RSD100" is not ZAR "SD100")
			if hasLetterPrefix(remainder) {
				continue
			}
			return symbols[sym], remainder
		}
	}

	if len(s) >= 3 {
		head := s[:3]
		if isLetters(head) && !hasLetterPrefix(s[3:]) {
			if unit, err := currency.ParseISO(head); err == nil {
				return unit.String(), s[3:]
			}
		}
	}
	return "", s
}

func isLetters(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return s != ""
}

func hasLetterPrefix(s string) bool {
	for _, r := range strings.TrimSpace(s) {
		return unicode.IsLetter(r)
	}
	return false
}

// parseAmount handles both separator conventions: "1,234.50" and
// "1.234,50". Whichever of '.' or ',' appears last is the decimal mark;
// the other is a grouping separator and is stripped.
func parseAmount(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) && r != '.' && r != ',' && r != ' ' {
			return 0, false
		}
	}
	s = strings.ReplaceAll(s, " ", "")

	dots := strings.Count(s, ".")
	commas := strings.Count(s, ",")
	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")

	switch {
	case dots == 0 && commas == 0:
		// integral
	case dots > 0 && commas > 0:
		// the separator appearing later is the decimal mark
		if lastDot > lastComma {
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		}
	case commas > 0:
		// lone comma followed by a group of exactly three digits is a
		// thousands separator ("5,000"); anything else is decimal ("5,50")
		if commas == 1 && len(s)-lastComma-1 != 3 {
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	default:
		if dots > 1 {
			s = strings.ReplaceAll(s, ".", "")
		}
	}

	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
