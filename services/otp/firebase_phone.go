package otp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"sync"

	"google.golang.org/api/googleapi"
	identitytoolkit "google.golang.org/api/identitytoolkit/v3"
	"google.golang.org/api/option"
)

// RecaptchaTokenSource mints the bot-mitigation token the identity
// platform demands before it will text a code. In production the token
// comes from the challenge surface shown to the user; tests and
// allowlisted test numbers use a static token.
type RecaptchaTokenSource interface {
	Token(ctx context.Context, siteKey string) (string, error)
}

// StaticRecaptchaToken returns the same token for every challenge.
type StaticRecaptchaToken string

func (s StaticRecaptchaToken) Token(context.Context, string) (string, error) {
	if s == "" {
		return "", errors.New("no recaptcha token configured")
	}
	return string(s), nil
}

// recaptchaVerifier owns the verifier lifecycle: discover the site
// key, hold it while challenges flow, drop it on teardown. Setup is
// idempotent; calling it on a live verifier tears the old one down
// first.
type recaptchaVerifier struct {
	svc    *identitytoolkit.Service
	source RecaptchaTokenSource

	mu      sync.Mutex
	siteKey string
	ready   bool
}

func (w *recaptchaVerifier) Setup(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.ready {
		w.teardownLocked()
	}

	resp, err := w.svc.Relyingparty.GetRecaptchaParam().Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to fetch recaptcha params: %w", err)
	}
	w.siteKey = resp.RecaptchaSiteKey
	w.ready = true
	return nil
}

func (w *recaptchaVerifier) Teardown() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.teardownLocked()
}

func (w *recaptchaVerifier) teardownLocked() {
	w.siteKey = ""
	w.ready = false
}

// Token sets the verifier up on first use and hands back a token for
// the discovered site key.
func (w *recaptchaVerifier) Token(ctx context.Context) (string, error) {
	w.mu.Lock()
	ready, siteKey := w.ready, w.siteKey
	w.mu.Unlock()

	if !ready {
		if err := w.Setup(ctx); err != nil {
			return "", err
		}
		w.mu.Lock()
		siteKey = w.siteKey
		w.mu.Unlock()
	}
	return w.source.Token(ctx, siteKey)
}

// FirebasePhoneProvider runs the identity platform's phone sign-in:
// the platform texts the code and checking it yields a platform
// session rather than a bare approval.
type FirebasePhoneProvider struct {
	apiKey string
	svc    *identitytoolkit.Service
	widget *recaptchaVerifier
}

// NewFirebasePhoneProvider builds the adapter. An empty API key or a
// client construction failure leaves it unconfigured; the returned
// error is informational.
func NewFirebasePhoneProvider(ctx context.Context, apiKey string, source RecaptchaTokenSource) (*FirebasePhoneProvider, error) {
	p := &FirebasePhoneProvider{apiKey: apiKey}
	if apiKey == "" {
		return p, nil
	}

	svc, err := identitytoolkit.NewService(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return p, fmt.Errorf("failed to build identity toolkit client: %w", err)
	}
	p.svc = svc
	p.widget = &recaptchaVerifier{svc: svc, source: source}
	return p, nil
}

func (p *FirebasePhoneProvider) Name() string { return ProviderFirebasePhone }

func (p *FirebasePhoneProvider) Configured() bool {
	return p.apiKey != "" && p.svc != nil
}

func (p *FirebasePhoneProvider) RequiresClientCode() bool { return false }

func (p *FirebasePhoneProvider) SendChallenge(ctx context.Context, phone, _ string) (*ChallengeHandle, error) {
	if !p.Configured() {
		return nil, newProviderError(p.Name(), ErrKindInvalidCredentials, "identity platform not configured", nil)
	}

	token, err := p.widget.Token(ctx)
	if err != nil {
		return nil, newProviderError(p.Name(), ErrKindUnknown, "recaptcha token unavailable", err)
	}

	req := &identitytoolkit.IdentitytoolkitRelyingpartySendVerificationCodeRequest{
		PhoneNumber:    phone,
		RecaptchaToken: token,
	}
	resp, err := p.svc.Relyingparty.SendVerificationCode(req).Context(ctx).Do()
	if err != nil {
		return nil, wrapGoogleError(p.Name(), err)
	}
	if resp.SessionInfo == "" {
		return nil, newProviderError(p.Name(), ErrKindUnknown, "verification started without session info", nil)
	}

	return &ChallengeHandle{Provider: p.Name(), SessionID: resp.SessionInfo}, nil
}

func (p *FirebasePhoneProvider) CheckChallenge(ctx context.Context, _, code string, h *ChallengeHandle) (*CheckOutcome, error) {
	if !p.Configured() {
		return nil, newProviderError(p.Name(), ErrKindInvalidCredentials, "identity platform not configured", nil)
	}
	if h == nil || h.SessionID == "" {
		return nil, newProviderError(p.Name(), ErrKindUnknown, "challenge handle carries no session info", nil)
	}

	req := &identitytoolkit.IdentitytoolkitRelyingpartyVerifyPhoneNumberRequest{
		SessionInfo: h.SessionID,
		Code:        code,
	}
	resp, err := p.svc.Relyingparty.VerifyPhoneNumber(req).Context(ctx).Do()
	if err != nil {
		// A wrong or stale code is a mismatch, not a provider fault.
		var gerr *googleapi.Error
		if errors.As(err, &gerr) &&
			(strings.Contains(gerr.Message, "INVALID_CODE") || strings.Contains(gerr.Message, "SESSION_EXPIRED")) {
			return &CheckOutcome{Verified: false}, nil
		}
		return nil, wrapGoogleError(p.Name(), err)
	}

	return &CheckOutcome{
		Verified: true,
		Identity: &IdentitySignIn{
			IDToken:      resp.IdToken,
			RefreshToken: resp.RefreshToken,
			Phone:        resp.PhoneNumber,
			IsNewUser:    resp.IsNewUser,
		},
	}, nil
}

// Close releases the recaptcha verifier.
func (p *FirebasePhoneProvider) Close() error {
	if p.widget != nil {
		p.widget.Teardown()
	}
	return nil
}

func wrapGoogleError(provider string, err error) *ProviderError {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch {
		case gerr.Code == 429 || strings.Contains(gerr.Message, "TOO_MANY_ATTEMPTS") || strings.Contains(gerr.Message, "QUOTA_EXCEEDED"):
			return newProviderError(provider, ErrKindRateLimited, gerr.Message, err)
		case gerr.Code == 401 || gerr.Code == 403 || strings.Contains(gerr.Message, "API key not valid"):
			return newProviderError(provider, ErrKindInvalidCredentials, gerr.Message, err)
		default:
			return newProviderError(provider, ErrKindUnknown, gerr.Message, err)
		}
	}

	var urlErr *url.Error
	var netErr net.Error
	if errors.As(err, &urlErr) || errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return newProviderError(provider, ErrKindNetwork, "request to identity platform failed", err)
	}
	return newProviderError(provider, ErrKindUnknown, err.Error(), err)
}
