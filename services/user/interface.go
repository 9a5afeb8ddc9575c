package user

import (
	"context"
	"time"

	userRepo "agrowatch/database/repository/user"
	"agrowatch/models"
	"agrowatch/services/otp"

	"firebase.google.com/go/v4/auth"
	"github.com/go-redis/redis/v8"
)

// SessionService owns everything after a phone number is proven:
// fetch-or-create of the user record, token minting, and the
// profile steps that follow registration.
type SessionService interface {
	// Challenge hand-off (called by the OTP orchestrator)
	MaterializeByPhone(ctx context.Context, phone string, purpose otp.Purpose) (*models.AuthenticatedUser, error)
	MaterializeIdentity(ctx context.Context, signIn *otp.IdentitySignIn) (*models.AuthenticatedUser, error)

	// Alternative entrances
	PasswordLogin(ctx context.Context, rawPhone, password string) (*models.AuthenticatedUser, error)
	FirebaseLogin(ctx context.Context, idToken string) (*models.AuthenticatedUser, error)

	// Account management
	CompleteRegistration(ctx context.Context, userID string, details RegistrationDetails) (*models.User, error)
	GetProfile(ctx context.Context, userID string) (*models.User, error)
	UpdateFarmerProfile(ctx context.Context, userID string, profile models.FarmerProfile) (*models.User, error)
	Logout(ctx context.Context, userID string) error
}

// RegistrationDetails completes a minimal record created during
// registration verification.
type RegistrationDetails struct {
	Name     string
	Email    string
	Aadhar   string
	Password string
}

// DefaultSessionService is the production implementation. Firebase is
// nil when the identity platform is not configured; only the identity
// paths need it. AuthCache may be nil, in which case the auth
// middleware falls back to the database on every request.
type DefaultSessionService struct {
	Repo      userRepo.UserRepository
	Firebase  *auth.Client
	AuthCache *redis.Client
	Validator *otp.PhoneValidator
	TokenTTL  time.Duration
}
