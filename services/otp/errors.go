package otp

import (
	"errors"
	"fmt"
)

// Sentinel errors handlers branch on with errors.Is.
var (
	ErrInvalidPhone        = errors.New("invalid phone number format")
	ErrInvalidPurpose      = errors.New("invalid purpose")
	ErrMalformedCode       = errors.New("verification code must be 6 digits")
	ErrNoChallenge         = errors.New("no outstanding challenge")
	ErrInvalidCode         = errors.New("invalid code")
	ErrTooManyAttempts     = errors.New("maximum verification attempts exceeded")
	ErrNoProviderAvailable = errors.New("no verification provider available")
)

// ErrorKind classifies provider failures so callers and logs can react
// without parsing SDK error strings.
type ErrorKind string

const (
	ErrKindNetwork            ErrorKind = "network"
	ErrKindInvalidCredentials ErrorKind = "invalid_credentials"
	ErrKindRateLimited        ErrorKind = "rate_limited"
	ErrKindUnknown            ErrorKind = "unknown"
)

// ProviderError is the single shape every adapter failure is converted
// into. Adapters never panic and never leak raw SDK errors upward.
type ProviderError struct {
	Provider string
	Kind     ErrorKind
	Message  string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: %s error", e.Provider, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %s", e.Provider, e.Kind, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

func newProviderError(provider string, kind ErrorKind, message string, err error) *ProviderError {
	return &ProviderError{Provider: provider, Kind: kind, Message: message, Err: err}
}
