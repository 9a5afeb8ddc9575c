package otp

import (
	"context"
	"errors"
	"net"
	"net/url"
	"time"

	"github.com/twilio/twilio-go"
	twclient "github.com/twilio/twilio-go/client"
	verify "github.com/twilio/twilio-go/rest/verify/v2"
)

// TwilioVerifyProvider issues challenges through a Twilio Verify
// service. Twilio generates, delivers, and checks the code; we retain
// only the verification SID.
type TwilioVerifyProvider struct {
	ServiceSID string

	client *twilio.RestClient
}

// NewTwilioVerifyProvider builds the adapter. Missing credentials
// leave it unconfigured rather than erroring, so boot never depends on
// Twilio settings being present.
func NewTwilioVerifyProvider(accountSID, authToken, serviceSID string, timeout time.Duration) *TwilioVerifyProvider {
	p := &TwilioVerifyProvider{ServiceSID: serviceSID}
	if accountSID == "" || authToken == "" {
		return p
	}
	p.client = twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	// The generated API methods do not take a context, so the call
	// budget is bound on the HTTP client instead.
	p.client.SetTimeout(timeout)
	return p
}

func (p *TwilioVerifyProvider) Name() string { return ProviderTwilioVerify }

func (p *TwilioVerifyProvider) Configured() bool {
	return p.client != nil && p.ServiceSID != ""
}

func (p *TwilioVerifyProvider) RequiresClientCode() bool { return false }

func (p *TwilioVerifyProvider) SendChallenge(_ context.Context, phone, _ string) (*ChallengeHandle, error) {
	if !p.Configured() {
		return nil, newProviderError(p.Name(), ErrKindInvalidCredentials, "verify service not configured", nil)
	}

	params := &verify.CreateVerificationParams{}
	params.SetTo(phone)
	params.SetChannel("sms")

	resp, err := p.client.VerifyV2.CreateVerification(p.ServiceSID, params)
	if err != nil {
		return nil, wrapTwilioError(p.Name(), err)
	}
	if resp.Sid == nil {
		return nil, newProviderError(p.Name(), ErrKindUnknown, "verification created without sid", nil)
	}

	return &ChallengeHandle{Provider: p.Name(), SessionID: *resp.Sid}, nil
}

func (p *TwilioVerifyProvider) CheckChallenge(_ context.Context, phone, code string, _ *ChallengeHandle) (*CheckOutcome, error) {
	if !p.Configured() {
		return nil, newProviderError(p.Name(), ErrKindInvalidCredentials, "verify service not configured", nil)
	}

	params := &verify.CreateVerificationCheckParams{}
	params.SetTo(phone)
	params.SetCode(code)

	resp, err := p.client.VerifyV2.CreateVerificationCheck(p.ServiceSID, params)
	if err != nil {
		// Twilio answers 404 once a verification is expired or already
		// consumed; that is a mismatch, not an outage.
		var restErr *twclient.TwilioRestError
		if errors.As(err, &restErr) && restErr.Status == 404 {
			return &CheckOutcome{Verified: false}, nil
		}
		return nil, wrapTwilioError(p.Name(), err)
	}

	approved := resp.Status != nil && *resp.Status == "approved"
	return &CheckOutcome{Verified: approved}, nil
}

// wrapTwilioError converts SDK and transport errors into the tagged
// ProviderError shape shared by both Twilio adapters.
func wrapTwilioError(provider string, err error) *ProviderError {
	var restErr *twclient.TwilioRestError
	if errors.As(err, &restErr) {
		switch {
		case restErr.Status == 401 || restErr.Code == 20003:
			return newProviderError(provider, ErrKindInvalidCredentials, restErr.Message, err)
		case restErr.Status == 429 || restErr.Code == 20429:
			return newProviderError(provider, ErrKindRateLimited, restErr.Message, err)
		default:
			return newProviderError(provider, ErrKindUnknown, restErr.Message, err)
		}
	}

	var urlErr *url.Error
	var netErr net.Error
	if errors.As(err, &urlErr) || errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return newProviderError(provider, ErrKindNetwork, "request to Twilio failed", err)
	}
	return newProviderError(provider, ErrKindUnknown, err.Error(), err)
}
