package otp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"agrowatch/models"
	"agrowatch/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Service drives the challenge lifecycle across whatever providers are
// configured. Callers never learn which provider served them.
type Service interface {
	SendChallenge(ctx context.Context, rawPhone string, purpose Purpose) (*SendResult, error)
	VerifyChallenge(ctx context.Context, rawPhone, code string, purpose Purpose) (*models.AuthenticatedUser, error)
	ProviderStatus() []ProviderStatus
	Close()
}

// DefaultService walks providers in priority order: Twilio Verify,
// then direct SMS, then the identity platform. A configured provider
// that fails falls through to the next candidate.
type DefaultService struct {
	Providers []Provider
	Validator *PhoneValidator
	Store     ChallengeStore
	Gate      ResendGate
	Sessions  SessionMaterializer
	Audit     Auditor

	// CallTimeout bounds each provider call.
	CallTimeout time.Duration
	// ChallengeTTL is how long a sent code stays verifiable.
	ChallengeTTL time.Duration
	// MaxAttempts is the per-challenge verification attempt budget.
	MaxAttempts int
}

func (s *DefaultService) auditor() Auditor {
	if s.Audit == nil {
		return NopAuditor{}
	}
	return s.Audit
}

func (s *DefaultService) record(ctx context.Context, h *ChallengeHandle, event, detail string) {
	s.auditor().Record(ctx, models.OTPEvent{
		ChallengeID: h.ID,
		Phone:       utils.MaskPhone(h.Phone),
		Purpose:     h.Purpose.String(),
		Provider:    h.Provider,
		Event:       event,
		Detail:      detail,
		MessageSID:  h.MessageSID,
	})
}

// SendChallenge validates input, then tries each configured provider
// until one delivers. The first success stores the handle (replacing
// any prior challenge for the same phone and purpose) and starts the
// resend gate.
func (s *DefaultService) SendChallenge(ctx context.Context, rawPhone string, purpose Purpose) (*SendResult, error) {
	logger := utils.GetLogger()

	// 1. Reject bad input before any provider is touched.
	if !purpose.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPurpose, purpose)
	}
	phone, err := s.Validator.Normalize(rawPhone)
	if err != nil {
		return nil, err
	}

	// 2. Walk the provider chain.
	var failures []string
	for _, p := range s.Providers {
		if !p.Configured() {
			logger.Debug("Skipping unconfigured OTP provider", zap.String("provider", p.Name()))
			continue
		}

		code := ""
		if p.RequiresClientCode() {
			code, err = GenerateCode()
			if err != nil {
				return nil, fmt.Errorf("failed to prepare verification code: %w", err)
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, s.CallTimeout)
		h, err := p.SendChallenge(callCtx, phone, code)
		cancel()
		if err != nil {
			kind := ErrKindUnknown
			var pErr *ProviderError
			if errors.As(err, &pErr) {
				kind = pErr.Kind
			}
			logger.Warn("OTP provider failed to send, falling back",
				zap.String("provider", p.Name()),
				zap.String("kind", string(kind)),
				zap.String("phone", utils.MaskPhone(phone)),
				zap.Error(err),
			)
			failures = append(failures, fmt.Sprintf("%s (%s)", p.Name(), kind))
			continue
		}

		// 3. First success wins: persist and hand timing back.
		now := time.Now()
		h.ID = uuid.New().String()
		h.Phone = phone
		h.Purpose = purpose
		h.MaxAttempts = s.MaxAttempts
		h.IssuedAt = now
		h.ExpiresAt = now.Add(s.ChallengeTTL)

		if err := s.Store.Put(ctx, h, s.ChallengeTTL); err != nil {
			logger.Error("Failed to store challenge after send", zap.Error(err))
			return nil, fmt.Errorf("failed to persist verification challenge")
		}
		if err := s.Gate.Start(ctx, phone); err != nil {
			logger.Warn("Failed to start resend cooldown", zap.Error(err))
		}
		s.record(ctx, h, models.OTPEventIssued, "")

		logger.Info("OTP challenge issued",
			zap.String("provider", p.Name()),
			zap.String("purpose", purpose.String()),
			zap.String("phone", utils.MaskPhone(phone)),
		)
		return &SendResult{
			ChallengeID: h.ID,
			Phone:       phone,
			Provider:    h.Provider,
			ExpiresAt:   h.ExpiresAt,
			ResendAfter: s.gateInterval(ctx, phone),
		}, nil
	}

	// 4. Nothing delivered.
	if len(failures) == 0 {
		return nil, ErrNoProviderAvailable
	}
	return nil, fmt.Errorf("%w: tried %s", ErrNoProviderAvailable, strings.Join(failures, ", "))
}

func (s *DefaultService) gateInterval(ctx context.Context, phone string) time.Duration {
	remaining, err := s.Gate.Remaining(ctx, phone)
	if err != nil {
		return 0
	}
	return remaining
}

// VerifyChallenge routes a submitted code to the adapter that issued
// the live challenge. A mismatch leaves the challenge outstanding; a
// success consumes it and materializes a session.
func (s *DefaultService) VerifyChallenge(ctx context.Context, rawPhone, code string, purpose Purpose) (*models.AuthenticatedUser, error) {
	logger := utils.GetLogger()

	// 1. Validate shape before touching the store or any provider.
	if !purpose.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPurpose, purpose)
	}
	phone, err := s.Validator.Normalize(rawPhone)
	if err != nil {
		return nil, err
	}
	if !validCodeShape(code) {
		return nil, ErrMalformedCode
	}

	// 2. Load the outstanding challenge.
	h, err := s.Store.Get(ctx, phone, purpose)
	if err != nil {
		logger.Error("Failed to load challenge", zap.Error(err))
		return nil, fmt.Errorf("failed to load verification challenge")
	}
	if h == nil {
		return nil, ErrNoChallenge
	}

	// 3. Spend an attempt up front so provider hiccups still count.
	if h.Attempts >= h.MaxAttempts {
		_ = s.Store.Delete(ctx, phone, purpose)
		s.record(ctx, h, models.OTPEventExhausted, "attempt budget spent")
		return nil, ErrTooManyAttempts
	}
	h.Attempts++
	if err := s.Store.Update(ctx, h); err != nil {
		logger.Warn("Failed to persist attempt count", zap.Error(err))
	}

	// 4. Route to the issuing adapter.
	p := s.providerByName(h.Provider)
	if p == nil {
		logger.Warn("Issuing provider no longer registered", zap.String("provider", h.Provider))
		s.record(ctx, h, models.OTPEventFailed, "issuing provider unavailable")
		return nil, ErrInvalidCode
	}

	callCtx, cancel := context.WithTimeout(ctx, s.CallTimeout)
	outcome, err := p.CheckChallenge(callCtx, phone, code, h)
	cancel()
	if err != nil {
		logger.Warn("OTP provider failed during verification",
			zap.String("provider", p.Name()),
			zap.String("phone", utils.MaskPhone(phone)),
			zap.Error(err),
		)
		s.record(ctx, h, models.OTPEventFailed, "provider error")
		return nil, ErrInvalidCode
	}
	if !outcome.Verified {
		s.record(ctx, h, models.OTPEventFailed, "code mismatch")
		return nil, ErrInvalidCode
	}

	// 5. Consume the challenge, then materialize the session.
	if err := s.Store.Delete(ctx, phone, purpose); err != nil {
		logger.Warn("Failed to delete consumed challenge", zap.Error(err))
	}
	s.record(ctx, h, models.OTPEventVerified, "")

	if outcome.Identity != nil {
		return s.Sessions.MaterializeIdentity(ctx, outcome.Identity)
	}
	return s.Sessions.MaterializeByPhone(ctx, phone, purpose)
}

// ProviderStatus reports, per provider, whether its settings are
// present. Secrets never leave this as anything but a boolean.
func (s *DefaultService) ProviderStatus() []ProviderStatus {
	statuses := make([]ProviderStatus, 0, len(s.Providers))
	for _, p := range s.Providers {
		statuses = append(statuses, ProviderStatus{Name: p.Name(), Configured: p.Configured()})
	}
	return statuses
}

// Close releases provider-owned resources.
func (s *DefaultService) Close() {
	for _, p := range s.Providers {
		if c, ok := p.(io.Closer); ok {
			_ = c.Close()
		}
	}
}

func (s *DefaultService) providerByName(name string) Provider {
	for _, p := range s.Providers {
		if p.Name() == name {
			return p
		}
	}
	return nil
}
