package otp

import (
	"fmt"
	"time"
)

// Purpose says why a challenge was requested. It travels with the
// challenge and is forwarded to session materialization untouched.
type Purpose string

const (
	PurposeLogin        Purpose = "login"
	PurposeRegistration Purpose = "registration"
)

// ParsePurpose converts client input into a Purpose, rejecting
// anything outside the closed set.
func ParsePurpose(s string) (Purpose, error) {
	p := Purpose(s)
	if !p.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidPurpose, s)
	}
	return p, nil
}

// Valid reports whether the purpose is one of the known values.
func (p Purpose) Valid() bool {
	switch p {
	case PurposeLogin, PurposeRegistration:
		return true
	}
	return false
}

func (p Purpose) String() string {
	return string(p)
}

// ChallengeHandle is the opaque record retained between send and
// verify. Its meaning depends on the issuing provider: a Verify SID,
// an identity platform session, or a locally retained code. Exactly
// one handle is live per phone+purpose; a new send replaces it.
type ChallengeHandle struct {
	ID          string    `json:"id"`
	Provider    string    `json:"provider"`
	Phone       string    `json:"phone"`
	Purpose     Purpose   `json:"purpose"`
	SessionID   string    `json:"session_id,omitempty"`
	Code        string    `json:"code,omitempty"`
	MessageSID  string    `json:"message_sid,omitempty"`
	Attempts    int       `json:"attempts"`
	MaxAttempts int       `json:"max_attempts"`
	IssuedAt    time.Time `json:"issued_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Expired reports whether the challenge is past its TTL.
func (h *ChallengeHandle) Expired(now time.Time) bool {
	return !h.ExpiresAt.IsZero() && now.After(h.ExpiresAt)
}

// IdentitySignIn is the session the identity platform hands back when
// it verifies the code itself. The materializer turns it into a local
// user session.
type IdentitySignIn struct {
	IDToken      string `json:"id_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Phone        string `json:"phone,omitempty"`
	IsNewUser    bool   `json:"is_new_user"`
}

// CheckOutcome is an adapter's answer to a code submission. Verified
// false with a nil error is a clean mismatch; adapter failures are
// returned as errors.
type CheckOutcome struct {
	Verified bool
	Identity *IdentitySignIn
}

// SendResult is returned to the caller after a challenge goes out. The
// issuing provider is included for operators; clients only see the
// masked phone and timing fields.
type SendResult struct {
	ChallengeID string        `json:"challenge_id"`
	Phone       string        `json:"phone"`
	Provider    string        `json:"provider"`
	ExpiresAt   time.Time     `json:"expires_at"`
	ResendAfter time.Duration `json:"resend_after"`
}

// ProviderStatus reports whether a provider has the settings it needs.
type ProviderStatus struct {
	Name       string `json:"name"`
	Configured bool   `json:"configured"`
}
