// Package pii provides heuristic redaction of emails, phone numbers and
// national-ID-shaped digit sequences in free text.
package pii

import "regexp"

const (
	EmailPlaceholder = "[EMAIL]"
	IDPlaceholder    = "[ID]"
	PhonePlaceholder = "[PHONE]"
)

var (
	emailRe = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
	// Resident-registration style: 6 digits, separator, 7 digits.
	nationalIDRe = regexp.MustCompile(`\d{6}[-\s]\d{7}`)
	phoneRe      = regexp.MustCompile(`\d{2,4}[-.\s]?\d{3,4}[-.\s]?\d{4}`)
)

// Mask replaces emails, national-ID patterns and phone-shaped digit groups
// with fixed placeholder tokens. Email and ID run before the phone pattern:
// the phone pattern is permissive enough to match substrings of either.
// Pure and idempotent; the phone pattern can false-positive on arbitrary
// digit runs, which is accepted.
func Mask(text string) string {
	masked := emailRe.ReplaceAllString(text, EmailPlaceholder)
	masked = nationalIDRe.ReplaceAllString(masked, IDPlaceholder)
	return phoneRe.ReplaceAllString(masked, PhonePlaceholder)
}

// MaskPtr is Mask lifted over a nullable string.
func MaskPtr(text *string) *string {
	if text == nil {
		return nil
	}
	masked := Mask(*text)
	return &masked
}
