package otp

import (
	"fmt"
	"strings"
)

// PhoneValidator canonicalizes raw phone input before any provider is
// contacted. It is a pure transformation; carrier-level validity is
// the providers' concern.
type PhoneValidator struct {
	// DefaultCountryCode is prefixed onto bare national numbers,
	// e.g. "+91".
	DefaultCountryCode string
}

// NewPhoneValidator returns a validator with the given default country
// code, falling back to +91 when empty.
func NewPhoneValidator(defaultCountryCode string) *PhoneValidator {
	if defaultCountryCode == "" {
		defaultCountryCode = "+91"
	}
	return &PhoneValidator{DefaultCountryCode: defaultCountryCode}
}

// Normalize strips formatting characters, applies the default country
// code to bare 10-digit numbers, and enforces a 10-16 digit length.
// The result is in +<digits> form.
func (v *PhoneValidator) Normalize(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty input", ErrInvalidPhone)
	}

	var b strings.Builder
	for i, r := range trimmed {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '(' || r == ')' || r == '.':
			// formatting noise
		default:
			return "", fmt.Errorf("%w: unexpected character %q", ErrInvalidPhone, r)
		}
	}

	cleaned := b.String()
	digits := strings.TrimPrefix(cleaned, "+")
	if digits == "" {
		return "", fmt.Errorf("%w: no digits", ErrInvalidPhone)
	}

	switch {
	case strings.HasPrefix(cleaned, "+"):
		// already carries a country code
	case len(digits) == 10:
		cleaned = v.DefaultCountryCode + digits
		digits = strings.TrimPrefix(cleaned, "+")
	default:
		cleaned = "+" + digits
	}

	if len(digits) < 10 || len(digits) > 16 {
		return "", fmt.Errorf("%w: %d digits", ErrInvalidPhone, len(digits))
	}
	return cleaned, nil
}
