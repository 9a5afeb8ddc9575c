package user

import (
	"context"
	"fmt"
	"time"

	"agrowatch/models"
	"agrowatch/services/otp"
	"agrowatch/utils"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// MaterializeByPhone turns a verified phone number into a session. The
// purpose decides the existence rule: registration needs the number to
// be free, login needs it to be taken.
func (s *DefaultSessionService) MaterializeByPhone(ctx context.Context, phone string, purpose otp.Purpose) (*models.AuthenticatedUser, error) {
	// 1. Look up the account behind the proven number.
	existing, err := s.Repo.GetByPhone(phone)
	if err != nil {
		utils.GetLogger().Error("MaterializeByPhone: failed to fetch user", zap.Error(err))
		return nil, fmt.Errorf("failed to look up account, please try again")
	}

	// 2. Apply the purpose's existence rule.
	switch purpose {
	case otp.PurposeRegistration:
		if existing != nil {
			return nil, ErrUserExists
		}
		newUser := &models.User{
			ID:       uuid.New().String(),
			Phone:    phone,
			Role:     models.RoleFarmer,
			Verified: true,
			Active:   true,
		}
		if err := s.Repo.Create(newUser); err != nil {
			utils.GetLogger().Error("MaterializeByPhone: failed to create user", zap.Error(err))
			return nil, fmt.Errorf("failed to create account, please try again")
		}
		return s.issueSession(newUser)

	case otp.PurposeLogin:
		if existing == nil {
			return nil, ErrUserNotFound
		}
		return s.loginExisting(existing)

	default:
		return nil, fmt.Errorf("%w: %q", otp.ErrInvalidPurpose, purpose)
	}
}

// MaterializeIdentity turns an identity platform sign-in into the same
// session shape the classic path produces.
func (s *DefaultSessionService) MaterializeIdentity(ctx context.Context, signIn *otp.IdentitySignIn) (*models.AuthenticatedUser, error) {
	if s.Firebase == nil {
		return nil, ErrIdentityUnavailable
	}
	if signIn == nil || signIn.IDToken == "" {
		return nil, fmt.Errorf("missing identity token")
	}

	tok, err := s.Firebase.VerifyIDToken(ctx, signIn.IDToken)
	if err != nil {
		utils.GetLogger().Warn("MaterializeIdentity: token rejected", zap.Error(err))
		return nil, fmt.Errorf("identity token rejected")
	}

	phone := signIn.Phone
	if phone == "" {
		phone, _ = tok.Claims["phone_number"].(string)
	}
	return s.sessionForUID(ctx, tok.UID, phone, "")
}

// FirebaseLogin accepts an ID token minted by a client-side sign-in
// (Google, or phone auth done entirely in the app) and materializes a
// local session for it.
func (s *DefaultSessionService) FirebaseLogin(ctx context.Context, idToken string) (*models.AuthenticatedUser, error) {
	if s.Firebase == nil {
		return nil, ErrIdentityUnavailable
	}

	tok, err := s.Firebase.VerifyIDToken(ctx, idToken)
	if err != nil {
		utils.GetLogger().Warn("FirebaseLogin: token rejected", zap.Error(err))
		return nil, fmt.Errorf("identity token rejected")
	}

	phone, _ := tok.Claims["phone_number"].(string)
	name, _ := tok.Claims["name"].(string)
	if phone == "" || name == "" {
		// The token is minimal; the admin SDK has the full record.
		if rec, err := s.Firebase.GetUser(ctx, tok.UID); err == nil {
			if phone == "" {
				phone = rec.PhoneNumber
			}
			if name == "" {
				name = rec.DisplayName
			}
		}
	}
	return s.sessionForUID(ctx, tok.UID, phone, name)
}

// PasswordLogin is the fallback for accounts that set a password
// during registration. OTP remains the primary path.
func (s *DefaultSessionService) PasswordLogin(ctx context.Context, rawPhone, password string) (*models.AuthenticatedUser, error) {
	phone, err := s.Validator.Normalize(rawPhone)
	if err != nil {
		return nil, err
	}

	u, err := s.Repo.GetByPhone(phone)
	if err != nil {
		utils.GetLogger().Error("PasswordLogin: failed to fetch user", zap.Error(err))
		return nil, fmt.Errorf("failed to look up account, please try again")
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	// An account without a password only signs in over OTP; answer the
	// same way as a wrong password.
	if u.PasswordHash == "" {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return s.loginExisting(u)
}

// Logout invalidates the active token everywhere the middleware looks.
func (s *DefaultSessionService) Logout(ctx context.Context, userID string) error {
	if err := s.Repo.UpdateFields(userID, bson.M{"token_hash": ""}); err != nil {
		return fmt.Errorf("failed to sign out: %w", err)
	}
	if s.AuthCache != nil {
		if err := utils.DropCachedTokenHash(s.AuthCache, userID); err != nil {
			utils.GetLogger().Warn("Logout: failed to drop cached token", zap.Error(err))
		}
	}
	return nil
}

// sessionForUID fetches or creates the account behind an identity
// platform UID, linking classic accounts by phone when possible.
func (s *DefaultSessionService) sessionForUID(ctx context.Context, uid, phone, name string) (*models.AuthenticatedUser, error) {
	u, err := s.Repo.GetByFirebaseUID(uid)
	if err != nil {
		utils.GetLogger().Error("sessionForUID: failed to fetch user", zap.Error(err))
		return nil, fmt.Errorf("failed to look up account, please try again")
	}

	if u == nil && phone != "" {
		u, err = s.Repo.GetByPhone(phone)
		if err != nil {
			utils.GetLogger().Error("sessionForUID: failed to fetch user by phone", zap.Error(err))
			return nil, fmt.Errorf("failed to look up account, please try again")
		}
		if u != nil {
			u.FirebaseUID = uid
			if err := s.Repo.UpdateFields(u.ID, bson.M{"firebase_uid": uid}); err != nil {
				utils.GetLogger().Warn("sessionForUID: failed to link firebase uid", zap.Error(err))
			}
		}
	}

	if u == nil {
		u = &models.User{
			ID:          uuid.New().String(),
			Phone:       phone,
			Name:        name,
			Role:        models.RoleFarmer,
			Verified:    true,
			Active:      true,
			FirebaseUID: uid,
		}
		if err := s.Repo.Create(u); err != nil {
			utils.GetLogger().Error("sessionForUID: failed to create user", zap.Error(err))
			return nil, fmt.Errorf("failed to create account, please try again")
		}
		return s.issueSession(u)
	}
	return s.loginExisting(u)
}

// loginExisting stamps the sign-in and issues the session.
func (s *DefaultSessionService) loginExisting(u *models.User) (*models.AuthenticatedUser, error) {
	if !u.Active {
		return nil, ErrUserInactive
	}
	now := time.Now()
	u.Verified = true
	u.LastLogin = &now
	if err := s.Repo.UpdateFields(u.ID, bson.M{"is_verified": true, "last_login": now}); err != nil {
		utils.GetLogger().Warn("loginExisting: failed to stamp last login", zap.Error(err))
	}
	return s.issueSession(u)
}

// issueSession mints the JWT and records its hash so the middleware
// can check bearer tokens against something revocable.
func (s *DefaultSessionService) issueSession(u *models.User) (*models.AuthenticatedUser, error) {
	token, err := utils.GenerateToken(u.ID, u.Phone, u.Role, s.TokenTTL)
	if err != nil {
		utils.GetLogger().Error("issueSession: failed to sign token", zap.Error(err))
		return nil, fmt.Errorf("failed to establish session, please try again")
	}

	hash := utils.HashToken(token)
	u.TokenHash = hash
	if err := s.Repo.UpdateFields(u.ID, bson.M{"token_hash": hash}); err != nil {
		utils.GetLogger().Error("issueSession: failed to persist token hash", zap.Error(err))
		return nil, fmt.Errorf("failed to establish session, please try again")
	}
	if s.AuthCache != nil {
		if err := utils.CacheTokenHash(s.AuthCache, u.ID, hash); err != nil {
			utils.GetLogger().Warn("issueSession: failed to cache token hash", zap.Error(err))
		}
	}

	return &models.AuthenticatedUser{
		User:                      u,
		AccessToken:               token,
		RequiresProfileCompletion: !u.ProfileComplete(),
	}, nil
}
