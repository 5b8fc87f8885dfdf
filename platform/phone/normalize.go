// Package phone normalizes CRM-supplied phone numbers to E.164.
package phone

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

const defaultRegion = "RU"

// NormalizeE164 formats a phone number to E.164. CRM forms spell Russian
// numbers in several ways ("8 (912) 345-67-89", bare ten digits, already
// international), so the input is pre-cleaned before parsing. Input that
// still does not parse into a valid number is returned trimmed, so the raw
// value is kept for operators rather than dropped.
func NormalizeE164(input string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return trimmed
	}

	number, err := phonenumbers.Parse(preclean(trimmed), defaultRegion)
	if err != nil || !phonenumbers.IsValidNumber(number) {
		return trimmed
	}

	return phonenumbers.Format(number, phonenumbers.E164)
}

// preclean strips separators and rewrites domestic spellings onto the
// international form: 8XXXXXXXXXX and 7XXXXXXXXXX become +7XXXXXXXXXX, and a
// bare ten-digit number is assumed Russian.
func preclean(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= '0' && r <= '9' || (r == '+' && i == 0) {
			b.WriteRune(r)
		}
	}

	digits := b.String()
	switch {
	case len(digits) == 11 && digits[0] == '8':
		return "+7" + digits[1:]
	case len(digits) == 11 && digits[0] == '7':
		return "+" + digits
	case len(digits) == 10 && digits[0] != '+':
		return "+7" + digits
	}
	return digits
}
