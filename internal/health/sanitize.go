package health

import (
	"net/url"
	"regexp"
	"strings"
)

// maxErrorChars bounds a single persisted error string.
const maxErrorChars = 500

// Patterns for personal data that occasionally leaks into error strings via
// matched page text. Redaction runs before anything is persisted.
var (
	emailRe = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	phoneRe = regexp.MustCompile(`\+?\d[\d\s().\-]{7,}\d`)
	cardRe  = regexp.MustCompile(`\b(?:\d[ \-]?){13,19}\b`)
	nameRe  = regexp.MustCompile(`\b(Mr|Mrs|Ms|Dr|Prof)\.?\s+[A-Z][a-z]+(\s+[A-Z][a-z]+)?`)

	authParams = []string{"token", "auth", "key", "session", "sig", "signature", "access_token", "api_key"}
)

// Sanitize redacts personal data and auth material from an error string and
// truncates it to a persistable length.
func Sanitize(s string) string {
	s = cardRe.ReplaceAllString(s, "[redacted-number]")
	s = emailRe.ReplaceAllString(s, "[redacted-email]")
	s = phoneRe.ReplaceAllString(s, "[redacted-number]")
	s = nameRe.ReplaceAllString(s, "[redacted-name]")
	s = redactURLParams(s)
	if len(s) > maxErrorChars {
		s = s[:maxErrorChars]
	}
	return s
}

// SanitizeAll sanitizes a slice of error strings.
func SanitizeAll(errs []string) []string {
	if len(errs) == 0 {
		return nil
	}
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = Sanitize(e)
	}
	return out
}

// redactURLParams blanks auth-bearing query parameters in any URL embedded in
// the string.
func redactURLParams(s string) string {
	for _, word := range strings.Fields(s) {
		u, err := url.Parse(word)
		if err != nil || u.RawQuery == "" {
			continue
		}
		q := u.Query()
		changed := false
		for _, p := range authParams {
			if q.Has(p) {
				q.Set(p, "redacted")
				changed = true
			}
		}
		if changed {
			u.RawQuery = q.Encode()
			s = strings.Replace(s, word, u.String(), 1)
		}
	}
	return s
}
