package otp

import (
	"context"
	"crypto/subtle"
	"fmt"
	"time"

	"github.com/twilio/twilio-go"
	api "github.com/twilio/twilio-go/rest/api/v2010"
)

// TwilioSMSProvider delivers a locally generated code as a plain text
// message. Unlike the Verify service, checking the code never leaves
// the process: the handle retains the code.
type TwilioSMSProvider struct {
	MessagingServiceSID string
	FromNumber          string

	client  *twilio.RestClient
	codeTTL time.Duration
}

// NewTwilioSMSProvider builds the adapter. Either a messaging service
// SID or a from number must be present for it to count as configured.
func NewTwilioSMSProvider(accountSID, authToken, messagingServiceSID, fromNumber string, timeout, codeTTL time.Duration) *TwilioSMSProvider {
	p := &TwilioSMSProvider{
		MessagingServiceSID: messagingServiceSID,
		FromNumber:          fromNumber,
		codeTTL:             codeTTL,
	}
	if accountSID == "" || authToken == "" {
		return p
	}
	p.client = twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	p.client.SetTimeout(timeout)
	return p
}

func (p *TwilioSMSProvider) Name() string { return ProviderTwilioSMS }

func (p *TwilioSMSProvider) Configured() bool {
	return p.client != nil && (p.MessagingServiceSID != "" || p.FromNumber != "")
}

func (p *TwilioSMSProvider) RequiresClientCode() bool { return true }

func (p *TwilioSMSProvider) messageBody(code string) string {
	minutes := int(p.codeTTL.Minutes())
	if minutes <= 0 {
		minutes = 5
	}
	return fmt.Sprintf(
		"Your AgroWatch verification code is: %s. Valid for %d minutes. Do not share this code with anyone.",
		code, minutes,
	)
}

func (p *TwilioSMSProvider) SendChallenge(_ context.Context, phone, code string) (*ChallengeHandle, error) {
	if !p.Configured() {
		return nil, newProviderError(p.Name(), ErrKindInvalidCredentials, "messaging not configured", nil)
	}
	if !validCodeShape(code) {
		return nil, newProviderError(p.Name(), ErrKindUnknown, "no client code supplied", nil)
	}

	params := &api.CreateMessageParams{}
	params.SetTo(phone)
	params.SetBody(p.messageBody(code))
	// A messaging service spreads sends across a sender pool; fall
	// back to the single configured number otherwise.
	if p.MessagingServiceSID != "" {
		params.SetMessagingServiceSid(p.MessagingServiceSID)
	} else {
		params.SetFrom(p.FromNumber)
	}

	resp, err := p.client.Api.CreateMessage(params)
	if err != nil {
		return nil, wrapTwilioError(p.Name(), err)
	}

	h := &ChallengeHandle{Provider: p.Name(), Code: code}
	if resp.Sid != nil {
		h.MessageSID = *resp.Sid
	}
	return h, nil
}

func (p *TwilioSMSProvider) CheckChallenge(_ context.Context, _, code string, h *ChallengeHandle) (*CheckOutcome, error) {
	if h == nil || h.Code == "" {
		return nil, newProviderError(p.Name(), ErrKindUnknown, "challenge handle carries no code", nil)
	}
	match := subtle.ConstantTimeCompare([]byte(h.Code), []byte(code)) == 1
	return &CheckOutcome{Verified: match}, nil
}

// FetchDeliveryStatus asks Twilio what happened to a sent message.
// Used by the queue worker, never on the request path.
func (p *TwilioSMSProvider) FetchDeliveryStatus(_ context.Context, messageSID string) (string, error) {
	if !p.Configured() {
		return "", newProviderError(p.Name(), ErrKindInvalidCredentials, "messaging not configured", nil)
	}
	resp, err := p.client.Api.FetchMessage(messageSID, &api.FetchMessageParams{})
	if err != nil {
		return "", wrapTwilioError(p.Name(), err)
	}
	if resp.Status == nil {
		return "", newProviderError(p.Name(), ErrKindUnknown, "message fetched without status", nil)
	}
	return *resp.Status, nil
}
