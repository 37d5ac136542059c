// Package money parses locale-ambiguous price strings into structured
// monetary values. It is pure: no DOM access, no I/O, and it never panics or
// returns an error — unparseable input yields a nil Money plus warnings.
package money

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/sells-group/price-sentry/internal/model"
)

// Options tunes a single parse.
type Options struct {
	// ExpectedCurrency penalizes (but does not reject) a mismatching detection.
	ExpectedCurrency string
	// DefaultCurrency is assumed when the text carries no currency indicator.
	DefaultCurrency string
	// MinAmount/MaxAmount bound plausible totals. Zero values fall back to
	// 0.01 and 1,000,000.
	MinAmount float64
	MaxAmount float64
}

// ParseResult is the outcome of parsing one price string.
type ParseResult struct {
	Money       *model.Money `json:"money"`
	Confidence  float64      `json:"confidence"` // 0-100
	IsFromPrice bool         `json:"is_from_price"`
	IsPerNight  bool         `json:"is_per_night"`
	IsPerPerson bool         `json:"is_per_person"`
	Warnings    []string     `json:"warnings,omitempty"`
}

var (
	whitespaceRe = regexp.MustCompile(`[\s\x{00a0}\x{2009}\x{202f}]+`)
	numberRe     = regexp.MustCompile(`\d(?:[\d.,'’ ]*\d)?`)

	fromRe      = regexp.MustCompile(`(?i)\b(from|starting at|starts at|as low as)\b`)
	perNightRe  = regexp.MustCompile(`(?i)(/\s*(night|nt)\b|\bper night\b|\ba night\b|\bnightly\b)`)
	perPersonRe = regexp.MustCompile(`(?i)(/\s*person\b|\bper person\b|\bp\.p\.?(\s|$))`)

	priceHintRe = regexp.MustCompile(`(?i)([$€£¥₹]|\b(usd|eur|gbp|aed|jpy|inr|chf|cad|aud)\b|\d[.,]\d{2}\b)`)
)

// LooksLikePrice is a cheap pre-filter: does the text plausibly contain a
// price? Used to skip irrelevant DOM mutations and heuristic candidates.
func LooksLikePrice(text string) bool {
	if !strings.ContainsAny(text, "0123456789") {
		return false
	}
	return priceHintRe.MatchString(text)
}

// Parse extracts a monetary value from raw text.
func Parse(text string, opts Options) ParseResult {
	res := ParseResult{}

	minAmount, maxAmount := opts.MinAmount, opts.MaxAmount
	if minAmount == 0 && maxAmount == 0 {
		minAmount, maxAmount = 0.01, 1_000_000
	}

	normalized := strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " "))
	if normalized == "" {
		res.Warnings = append(res.Warnings, "empty input")
		return res
	}

	// Qualifiers mark non-total figures and lower trust accordingly.
	res.IsFromPrice = fromRe.MatchString(normalized)
	res.IsPerNight = perNightRe.MatchString(normalized)
	res.IsPerPerson = perPersonRe.MatchString(normalized)

	code, detected := detectCurrency(normalized)
	if !detected {
		switch {
		case opts.ExpectedCurrency != "" && ValidCode(opts.ExpectedCurrency):
			code = opts.ExpectedCurrency
			res.Warnings = append(res.Warnings, "no currency indicator; assuming "+code)
		case opts.DefaultCurrency != "" && ValidCode(opts.DefaultCurrency):
			code = opts.DefaultCurrency
			res.Warnings = append(res.Warnings, "no currency indicator; assuming "+code)
		default:
			code = "USD"
			res.Warnings = append(res.Warnings, "no currency indicator; assuming USD")
		}
	}

	raw := selectAmount(normalized)
	if raw == "" {
		res.Warnings = append(res.Warnings, "no numeric value found")
		return res
	}

	amount, unambiguous, numWarnings := normalizeNumber(raw, code)
	res.Warnings = append(res.Warnings, numWarnings...)

	if noMinorUnit[code] && amount != math.Trunc(amount) {
		res.Warnings = append(res.Warnings, code+" has no minor unit; dropping fraction")
		amount = math.Trunc(amount)
	}
	if !noMinorUnit[code] {
		amount = math.Round(amount*100) / 100
	}

	if amount < minAmount || amount > maxAmount {
		res.Warnings = append(res.Warnings, "amount outside plausible range")
		return res
	}

	confidence := 50.0
	if detected {
		confidence += 30
	}
	if unambiguous {
		confidence += 15
	} else {
		confidence -= 5
	}
	confidence += 5 // in range

	if opts.ExpectedCurrency != "" && detected && code != opts.ExpectedCurrency {
		confidence -= 15
		res.Warnings = append(res.Warnings, "currency mismatch: expected "+opts.ExpectedCurrency+", found "+code)
	}
	if res.IsFromPrice {
		confidence -= 30
	}
	if res.IsPerNight {
		confidence -= 15
	}
	if res.IsPerPerson {
		confidence -= 10
	}

	res.Confidence = math.Max(0, math.Min(100, confidence))
	res.Money = &model.Money{Amount: amount, Currency: code}
	return res
}

// selectAmount picks the number span most likely to be the price: the one
// adjacent to a currency indicator when present, otherwise the first match.
// Space-grouped candidates are trimmed to valid thousands groups so "2 adults"
// never fuses into one number.
func selectAmount(normalized string) string {
	spans := numberRe.FindAllStringIndex(normalized, -1)
	if len(spans) == 0 {
		return ""
	}

	symbolPos := -1
	for _, entry := range symbolTable {
		if idx := strings.Index(normalized, entry.Symbol); idx >= 0 {
			symbolPos = idx + len(entry.Symbol)
			break
		}
	}

	best := spans[0]
	if symbolPos >= 0 {
		bestDist := math.MaxInt32
		for _, span := range spans {
			dist := span[0] - symbolPos
			if dist < 0 {
				dist = symbolPos - span[1]
			}
			if dist < bestDist {
				bestDist = dist
				best = span
			}
		}
	}
	return fixSpaceGrouping(normalized[best[0]:best[1]])
}

// fixSpaceGrouping keeps space-separated digit groups only when they form a
// valid thousands grouping (1 234 567); otherwise the first group stands alone.
func fixSpaceGrouping(raw string) string {
	if !strings.Contains(raw, " ") {
		return raw
	}
	parts := strings.Split(raw, " ")
	out := parts[0]
	for _, p := range parts[1:] {
		digits := strings.Map(func(r rune) rune {
			if r >= '0' && r <= '9' {
				return r
			}
			return -1
		}, p)
		if len(digits) != len(p) || len(p) != 3 {
			// A trailing decimal part like "234,56" is still part of the number.
			if strings.ContainsAny(p, ".,") && len(digits) == len(p)-1 {
				out += p
				continue
			}
			break
		}
		out += p
	}
	return out
}

// normalizeNumber resolves decimal-vs-thousands separators in raw, using the
// currency's conventional format to break ties. It reports whether the
// resolution was unambiguous.
func normalizeNumber(raw string, code string) (float64, bool, []string) {
	var warnings []string

	// Spaces and apostrophes only ever group thousands (CHF 1'234.56).
	cleaned := strings.NewReplacer(" ", "", "'", "", "’", "").Replace(raw)

	thousandsSep, decimalSep := ",", "."
	if commaDecimal[code] {
		thousandsSep, decimalSep = ".", ","
	}

	dots := strings.Count(cleaned, ".")
	commas := strings.Count(cleaned, ",")
	unambiguous := true

	switch {
	case dots == 0 && commas == 0:
		// Plain integer.
	case dots > 0 && commas > 0:
		// Both present: the later separator is the decimal one.
		lastDot, lastComma := strings.LastIndex(cleaned, "."), strings.LastIndex(cleaned, ",")
		if lastDot > lastComma {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		} else {
			cleaned = strings.ReplaceAll(cleaned, ".", "")
			cleaned = strings.ReplaceAll(cleaned, ",", ".")
		}
	default:
		sep := "."
		count := dots
		if commas > 0 {
			sep = ","
			count = commas
		}
		idx := strings.LastIndex(cleaned, sep)
		digitsAfter := len(cleaned) - idx - 1
		switch {
		case count > 1:
			// Repeated separator can only group thousands (1.234.567).
			cleaned = strings.ReplaceAll(cleaned, sep, "")
		case digitsAfter == 3:
			// 1,234 / 1.234: grouping by convention. Only truly unambiguous
			// when the separator matches the currency's thousands character.
			cleaned = strings.ReplaceAll(cleaned, sep, "")
			if sep != thousandsSep {
				unambiguous = false
				warnings = append(warnings, "ambiguous separator treated as thousands grouping")
			}
		case digitsAfter <= 2:
			cleaned = strings.Replace(cleaned, sep, ".", 1)
			if sep != decimalSep {
				unambiguous = false
			}
		default:
			// More than 3 trailing digits: malformed grouping, strip it.
			cleaned = strings.ReplaceAll(cleaned, sep, "")
			unambiguous = false
			warnings = append(warnings, "malformed digit grouping")
		}
	}

	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false, append(warnings, "unparseable number: "+raw)
	}
	return value, unambiguous, warnings
}
