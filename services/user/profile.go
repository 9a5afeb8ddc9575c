package user

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"agrowatch/models"
	"agrowatch/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// fetchUser loads a record by ID, translating a missing document into
// ErrUserNotFound so handlers can answer 404 instead of 500.
func (s *DefaultSessionService) fetchUser(userID string) (*models.User, error) {
	u, err := s.Repo.GetByID(userID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		utils.GetLogger().Error("Failed to fetch user", zap.String("userID", userID), zap.Error(err))
		return nil, fmt.Errorf("failed to look up account, please try again")
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	return u, nil
}

// CompleteRegistration fills in the details a registration challenge
// could not carry: name, contact fields, and an optional password for
// the fallback login.
func (s *DefaultSessionService) CompleteRegistration(ctx context.Context, userID string, details RegistrationDetails) (*models.User, error) {
	u, err := s.fetchUser(userID)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(details.Name)
	if name == "" {
		return nil, fmt.Errorf("name is required")
	}

	fields := bson.M{"name": name}
	if details.Email != "" {
		fields["email"] = details.Email
	}
	if details.Aadhar != "" {
		fields["aadhar"] = details.Aadhar
	}
	if details.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(details.Password), bcrypt.DefaultCost)
		if err != nil {
			utils.GetLogger().Error("CompleteRegistration: failed to hash password", zap.Error(err))
			return nil, fmt.Errorf("failed to set password, please try again")
		}
		fields["password_hash"] = string(hash)
	}

	if err := s.Repo.UpdateFields(u.ID, fields); err != nil {
		utils.GetLogger().Error("CompleteRegistration: failed to update user", zap.Error(err))
		return nil, fmt.Errorf("failed to save registration details, please try again")
	}
	return s.fetchUser(userID)
}

// GetProfile returns the caller's own record.
func (s *DefaultSessionService) GetProfile(ctx context.Context, userID string) (*models.User, error) {
	return s.fetchUser(userID)
}

// UpdateFarmerProfile upserts the farm details and marks the profile
// complete; advisory features key off that flag.
func (s *DefaultSessionService) UpdateFarmerProfile(ctx context.Context, userID string, profile models.FarmerProfile) (*models.User, error) {
	if profile.FarmSize <= 0 {
		return nil, fmt.Errorf("farm size must be positive")
	}
	profile.Complete = true

	if err := s.Repo.UpdateFields(userID, bson.M{"farmer_profile": profile}); err != nil {
		utils.GetLogger().Error("UpdateFarmerProfile: failed to update profile", zap.Error(err))
		return nil, fmt.Errorf("failed to save farm profile, please try again")
	}
	return s.fetchUser(userID)
}
