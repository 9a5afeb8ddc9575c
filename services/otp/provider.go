package otp

import (
	"context"

	"agrowatch/models"
)

// Provider names, also used to route verification back to the adapter
// that issued a challenge.
const (
	ProviderTwilioVerify  = "twilio_verify"
	ProviderTwilioSMS     = "twilio_sms"
	ProviderFirebasePhone = "firebase_phone"
)

// Provider is one way of delivering and checking a challenge. The
// orchestrator walks providers in priority order; an unconfigured
// provider is skipped without being called.
type Provider interface {
	Name() string
	// Configured reports whether every setting the provider needs is
	// present. It must not perform I/O.
	Configured() bool
	// RequiresClientCode reports whether the caller must generate the
	// code and pass it to SendChallenge. Server-managed providers
	// ignore the code argument.
	RequiresClientCode() bool
	SendChallenge(ctx context.Context, phone, code string) (*ChallengeHandle, error)
	CheckChallenge(ctx context.Context, phone, code string, h *ChallengeHandle) (*CheckOutcome, error)
}

// DeliveryStatusFetcher is implemented by providers that can report
// carrier delivery status for a sent message.
type DeliveryStatusFetcher interface {
	FetchDeliveryStatus(ctx context.Context, messageSID string) (string, error)
}

// SessionMaterializer turns a verified challenge into an application
// session. Implemented by the user service.
type SessionMaterializer interface {
	MaterializeByPhone(ctx context.Context, phone string, purpose Purpose) (*models.AuthenticatedUser, error)
	MaterializeIdentity(ctx context.Context, signIn *IdentitySignIn) (*models.AuthenticatedUser, error)
}

// Auditor records challenge lifecycle events. Implementations must be
// fire-and-forget: recording never fails the request path.
type Auditor interface {
	Record(ctx context.Context, event models.OTPEvent)
}

// NopAuditor drops every event.
type NopAuditor struct{}

func (NopAuditor) Record(context.Context, models.OTPEvent) {}
