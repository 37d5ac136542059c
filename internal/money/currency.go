package money

import (
	"strings"

	"golang.org/x/text/currency"
)

// symbolTable maps currency symbols and prefixes to ISO codes. Longer symbols
// are matched before shorter ones so "CA$" wins over "$".
var symbolTable = []struct {
	Symbol string
	Code   string
}{
	{"CA$", "CAD"},
	{"C$", "CAD"},
	{"AU$", "AUD"},
	{"A$", "AUD"},
	{"US$", "USD"},
	{"NZ$", "NZD"},
	{"$", "USD"},
	{"€", "EUR"},
	{"£", "GBP"},
	{"¥", "JPY"},
	{"₹", "INR"},
	{"د.إ", "AED"},
	{"Fr.", "CHF"},
	{"SFr", "CHF"},
}

// isoCodes are the ISO 4217 codes recognized as bare text ("1 234,56 EUR").
var isoCodes = []string{
	"USD", "EUR", "GBP", "AED", "JPY", "INR", "CHF", "CAD", "AUD", "NZD",
}

// commaDecimal holds currencies whose conventional format uses the comma as
// the decimal separator and the dot for thousands (€1.234,56).
var commaDecimal = map[string]bool{
	"EUR": true,
}

// noMinorUnit holds currencies that never carry fractional cents.
var noMinorUnit = map[string]bool{
	"JPY": true,
}

// ValidCode reports whether code is a well-formed ISO 4217 currency code.
func ValidCode(code string) bool {
	if code == "" {
		return false
	}
	_, err := currency.ParseISO(code)
	return err == nil
}

// detectCurrency scans text for a currency symbol or ISO code. It returns the
// resolved code and whether anything was found.
func detectCurrency(text string) (string, bool) {
	for _, entry := range symbolTable {
		if strings.Contains(text, entry.Symbol) {
			return entry.Code, true
		}
	}
	upper := strings.ToUpper(text)
	for _, code := range isoCodes {
		idx := strings.Index(upper, code)
		if idx < 0 {
			continue
		}
		// Require a word boundary so "AUDIO" does not match AUD.
		before := idx == 0 || !isLetter(upper[idx-1])
		afterIdx := idx + len(code)
		after := afterIdx >= len(upper) || !isLetter(upper[afterIdx])
		if before && after {
			return code, true
		}
	}
	return "", false
}

func isLetter(b byte) bool {
	return (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z')
}
