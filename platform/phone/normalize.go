// Package phone provides phone number utilities.
// This is part of the platform layer and contains no business logic.
package phone

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

const defaultRegion = "MX"

// DefaultCountryCode is the calling code assumed for bare domestic numbers.
const DefaultCountryCode = "52"

// NormalizeE164 formats a phone number to E.164. If parsing fails, it returns the trimmed input.
func NormalizeE164(input string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return trimmed
	}

	number, err := phonenumbers.Parse(trimmed, defaultRegion)
	if err != nil {
		return trimmed
	}

	if !phonenumbers.IsValidNumber(number) {
		return trimmed
	}

	return phonenumbers.Format(number, phonenumbers.E164)
}

// NormalizeLegacy reproduces the digit heuristic the stage-sync jobs have
// always used to key contact searches. It is intentionally lossy: it guesses
// the country code for bare numbers instead of validating them, because the
// engagement platform stores numbers produced by the same guess. Do not
// replace it with NormalizeE164; that would change lookup keys for existing
// contacts. Returns "" when no digits survive.
func NormalizeLegacy(raw string) string {
	if raw == "" {
		return ""
	}

	var b strings.Builder
	for _, r := range raw {
		if (r >= '0' && r <= '9') || r == '+' {
			b.WriteRune(r)
		}
	}
	s := b.String()
	if s == "" {
		return ""
	}

	// already international
	if strings.HasPrefix(s, "+") {
		return s
	}

	s = strings.ReplaceAll(s, "+", "")

	// country code present without the plus
	if strings.HasPrefix(s, DefaultCountryCode) && len(s) >= 12 {
		return "+" + s
	}

	// bare 10-digit number, assume domestic
	if len(s) == 10 {
		return "+" + DefaultCountryCode + s
	}

	return "+" + s
}
