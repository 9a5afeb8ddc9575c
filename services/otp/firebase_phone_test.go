package otp

import (
	"context"
	"errors"
	"testing"

	"google.golang.org/api/googleapi"
)

func TestStaticRecaptchaToken(t *testing.T) {
	t.Run("returns the configured token", func(t *testing.T) {
		token, err := StaticRecaptchaToken("test-token").Token(context.Background(), "site-key")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if token != "test-token" {
			t.Errorf("unexpected token: %s", token)
		}
	})

	t.Run("rejects an empty token", func(t *testing.T) {
		if _, err := StaticRecaptchaToken("").Token(context.Background(), "site-key"); err == nil {
			t.Error("empty token source should error")
		}
	})
}

func TestFirebasePhoneProviderUnconfigured(t *testing.T) {
	p, err := NewFirebasePhoneProvider(context.Background(), "", StaticRecaptchaToken("t"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Configured() {
		t.Error("provider without an API key should not be configured")
	}

	_, err = p.SendChallenge(context.Background(), "+919876543210", "")
	var pErr *ProviderError
	if !errors.As(err, &pErr) {
		t.Fatalf("expected a ProviderError, got %v", err)
	}
	if pErr.Kind != ErrKindInvalidCredentials {
		t.Errorf("unexpected error kind: %s", pErr.Kind)
	}

	// Close is safe before any widget exists.
	if err := p.Close(); err != nil {
		t.Errorf("close failed: %v", err)
	}
}

func TestRecaptchaVerifierTeardown(t *testing.T) {
	w := &recaptchaVerifier{source: StaticRecaptchaToken("t")}
	w.siteKey = "site-key"
	w.ready = true

	// A ready verifier hands out tokens without re-running setup.
	token, err := w.Token(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token != "t" {
		t.Errorf("unexpected token: %s", token)
	}

	w.Teardown()
	if w.ready || w.siteKey != "" {
		t.Error("teardown should clear verifier state")
	}

	// Teardown is idempotent.
	w.Teardown()
	if w.ready {
		t.Error("second teardown should leave the verifier torn down")
	}
}

func TestWrapGoogleError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		kind ErrorKind
	}{
		{"quota", &googleapi.Error{Code: 429, Message: "quota"}, ErrKindRateLimited},
		{"too many attempts", &googleapi.Error{Code: 400, Message: "TOO_MANY_ATTEMPTS_TRY_LATER"}, ErrKindRateLimited},
		{"bad key", &googleapi.Error{Code: 400, Message: "API key not valid. Please pass a valid API key."}, ErrKindInvalidCredentials},
		{"forbidden", &googleapi.Error{Code: 403, Message: "forbidden"}, ErrKindInvalidCredentials},
		{"deadline", context.DeadlineExceeded, ErrKindNetwork},
		{"other", errors.New("boom"), ErrKindUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			pErr := wrapGoogleError("identity", tc.err)
			if pErr.Kind != tc.kind {
				t.Errorf("wrapGoogleError(%v) kind = %s, want %s", tc.err, pErr.Kind, tc.kind)
			}
			if !errors.Is(pErr, tc.err) {
				t.Errorf("wrapped error should unwrap to the original")
			}
		})
	}
}
