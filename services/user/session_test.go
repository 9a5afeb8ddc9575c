package user

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"agrowatch/config"
	"agrowatch/models"
	"agrowatch/services/otp"
	"agrowatch/utils"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"
)

// fakeUserRepo keeps users in memory and mirrors the Mongo repo's
// contract: phone and firebase lookups return (nil, nil) on a miss, ID
// lookups error, partial updates fail for unknown IDs.
type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*models.User)}
}

func (r *fakeUserRepo) GetByID(id string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, fmt.Errorf("failed to fetch user with id %s: %w", id, mongo.ErrNoDocuments)
	}
	cp := *u
	return &cp, nil
}

func (r *fakeUserRepo) GetByPhone(phone string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Phone == phone {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeUserRepo) GetByFirebaseUID(uid string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.FirebaseUID == uid {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeUserRepo) Create(u *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.users[u.ID]; exists {
		return fmt.Errorf("duplicate user id %s", u.ID)
	}
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r *fakeUserRepo) Update(u *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.users[u.ID]; !exists {
		return fmt.Errorf("user with id %s not found", u.ID)
	}
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r *fakeUserRepo) UpdateFields(id string, fields bson.M) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return fmt.Errorf("user with id %s not found", id)
	}
	for k, v := range fields {
		switch k {
		case "name":
			u.Name = v.(string)
		case "email":
			u.Email = v.(string)
		case "aadhar":
			u.Aadhar = v.(string)
		case "password_hash":
			u.PasswordHash = v.(string)
		case "token_hash":
			u.TokenHash = v.(string)
		case "is_verified":
			u.Verified = v.(bool)
		case "last_login":
			t := v.(time.Time)
			u.LastLogin = &t
		case "firebase_uid":
			u.FirebaseUID = v.(string)
		case "farmer_profile":
			p := v.(models.FarmerProfile)
			u.Profile = &p
		}
	}
	u.UpdatedAt = time.Now()
	return nil
}

func (r *fakeUserRepo) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.users, id)
	return nil
}

func (r *fakeUserRepo) GetByIDWithProjection(id string, _ bson.M) (*models.User, error) {
	return r.GetByID(id)
}

func (r *fakeUserRepo) GetByPhoneWithProjection(phone string, _ bson.M) (*models.User, error) {
	return r.GetByPhone(phone)
}

func newTestSessionService(t *testing.T) (*DefaultSessionService, *fakeUserRepo) {
	t.Helper()
	config.AppConfig.JWTSecret = "unit-test-secret"

	repo := newFakeUserRepo()
	svc := &DefaultSessionService{
		Repo:      repo,
		Validator: otp.NewPhoneValidator("+91"),
		TokenTTL:  time.Hour,
	}
	return svc, repo
}

const testPhone = "+919876543210"

func seedUser(t *testing.T, repo *fakeUserRepo, u *models.User) *models.User {
	t.Helper()
	if u.Role == "" {
		u.Role = models.RoleFarmer
	}
	require.NoError(t, repo.Create(u))
	return u
}

func TestMaterializeByPhoneRegistration(t *testing.T) {
	ctx := context.Background()

	t.Run("creates a verified account for a new number", func(t *testing.T) {
		svc, repo := newTestSessionService(t)

		authUser, err := svc.MaterializeByPhone(ctx, testPhone, otp.PurposeRegistration)
		require.NoError(t, err)
		require.NotEmpty(t, authUser.AccessToken)
		require.True(t, authUser.RequiresProfileCompletion, "fresh farmers have no farm profile yet")

		u := authUser.User
		require.Equal(t, testPhone, u.Phone)
		require.Equal(t, models.RoleFarmer, u.Role)
		require.True(t, u.Verified)
		require.True(t, u.Active)

		// The token hash is persisted for the auth middleware.
		stored, err := repo.GetByID(u.ID)
		require.NoError(t, err)
		require.Equal(t, utils.HashToken(authUser.AccessToken), stored.TokenHash)
	})

	t.Run("rejects a number that already has an account", func(t *testing.T) {
		svc, repo := newTestSessionService(t)
		seedUser(t, repo, &models.User{ID: "u1", Phone: testPhone, Active: true})

		_, err := svc.MaterializeByPhone(ctx, testPhone, otp.PurposeRegistration)
		require.ErrorIs(t, err, ErrUserExists)
	})
}

func TestMaterializeByPhoneLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("rejects an unknown number", func(t *testing.T) {
		svc, _ := newTestSessionService(t)

		_, err := svc.MaterializeByPhone(ctx, testPhone, otp.PurposeLogin)
		require.ErrorIs(t, err, ErrUserNotFound)
	})

	t.Run("stamps the sign-in on an existing account", func(t *testing.T) {
		svc, repo := newTestSessionService(t)
		seedUser(t, repo, &models.User{ID: "u1", Phone: testPhone, Active: true})

		authUser, err := svc.MaterializeByPhone(ctx, testPhone, otp.PurposeLogin)
		require.NoError(t, err)
		require.NotEmpty(t, authUser.AccessToken)

		stored, err := repo.GetByID("u1")
		require.NoError(t, err)
		require.True(t, stored.Verified)
		require.NotNil(t, stored.LastLogin)
	})

	t.Run("rejects a deactivated account", func(t *testing.T) {
		svc, repo := newTestSessionService(t)
		seedUser(t, repo, &models.User{ID: "u1", Phone: testPhone, Active: false})

		_, err := svc.MaterializeByPhone(ctx, testPhone, otp.PurposeLogin)
		require.ErrorIs(t, err, ErrUserInactive)
	})

	t.Run("skips profile completion for finished profiles", func(t *testing.T) {
		svc, repo := newTestSessionService(t)
		seedUser(t, repo, &models.User{
			ID: "u1", Phone: testPhone, Active: true,
			Profile: &models.FarmerProfile{FarmSize: 2.5, Complete: true},
		})

		authUser, err := svc.MaterializeByPhone(ctx, testPhone, otp.PurposeLogin)
		require.NoError(t, err)
		require.False(t, authUser.RequiresProfileCompletion)
	})
}

func TestMaterializeIdentityRequiresFirebase(t *testing.T) {
	svc, _ := newTestSessionService(t)

	_, err := svc.MaterializeIdentity(context.Background(), &otp.IdentitySignIn{IDToken: "tok"})
	require.ErrorIs(t, err, ErrIdentityUnavailable)

	_, err = svc.FirebaseLogin(context.Background(), "tok")
	require.ErrorIs(t, err, ErrIdentityUnavailable)
}

func TestPasswordLogin(t *testing.T) {
	ctx := context.Background()
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret-pass"), bcrypt.DefaultCost)
	require.NoError(t, err)

	t.Run("accepts the right password", func(t *testing.T) {
		svc, repo := newTestSessionService(t)
		seedUser(t, repo, &models.User{ID: "u1", Phone: testPhone, Active: true, PasswordHash: string(hash)})

		authUser, err := svc.PasswordLogin(ctx, "9876543210", "s3cret-pass")
		require.NoError(t, err)
		require.NotEmpty(t, authUser.AccessToken)
	})

	t.Run("rejects the wrong password", func(t *testing.T) {
		svc, repo := newTestSessionService(t)
		seedUser(t, repo, &models.User{ID: "u1", Phone: testPhone, Active: true, PasswordHash: string(hash)})

		_, err := svc.PasswordLogin(ctx, "9876543210", "wrong-pass")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("rejects accounts without a password", func(t *testing.T) {
		svc, repo := newTestSessionService(t)
		seedUser(t, repo, &models.User{ID: "u1", Phone: testPhone, Active: true})

		_, err := svc.PasswordLogin(ctx, "9876543210", "anything")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("rejects an unknown number", func(t *testing.T) {
		svc, _ := newTestSessionService(t)

		_, err := svc.PasswordLogin(ctx, "9876543210", "anything")
		require.ErrorIs(t, err, ErrUserNotFound)
	})

	t.Run("rejects an invalid number", func(t *testing.T) {
		svc, _ := newTestSessionService(t)

		_, err := svc.PasswordLogin(ctx, "not-a-phone", "anything")
		require.ErrorIs(t, err, otp.ErrInvalidPhone)
	})
}

func TestCompleteRegistration(t *testing.T) {
	ctx := context.Background()

	t.Run("fills in the minimal record", func(t *testing.T) {
		svc, repo := newTestSessionService(t)
		seedUser(t, repo, &models.User{ID: "u1", Phone: testPhone, Active: true})

		u, err := svc.CompleteRegistration(ctx, "u1", RegistrationDetails{
			Name:     "Asha Patel",
			Email:    "asha@example.com",
			Password: "s3cret-pass",
		})
		require.NoError(t, err)
		require.Equal(t, "Asha Patel", u.Name)
		require.Equal(t, "asha@example.com", u.Email)
		require.NotEmpty(t, u.PasswordHash)
		require.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("s3cret-pass")))
	})

	t.Run("requires a name", func(t *testing.T) {
		svc, repo := newTestSessionService(t)
		seedUser(t, repo, &models.User{ID: "u1", Phone: testPhone, Active: true})

		_, err := svc.CompleteRegistration(ctx, "u1", RegistrationDetails{Name: "   "})
		require.Error(t, err)
	})

	t.Run("unknown user yields not found", func(t *testing.T) {
		svc, _ := newTestSessionService(t)

		_, err := svc.CompleteRegistration(ctx, "missing", RegistrationDetails{Name: "Asha"})
		require.ErrorIs(t, err, ErrUserNotFound)
	})
}

func TestUpdateFarmerProfile(t *testing.T) {
	ctx := context.Background()

	t.Run("marks the profile complete", func(t *testing.T) {
		svc, repo := newTestSessionService(t)
		seedUser(t, repo, &models.User{ID: "u1", Phone: testPhone, Active: true})

		u, err := svc.UpdateFarmerProfile(ctx, "u1", models.FarmerProfile{
			FarmSize: 3.2,
			Location: models.FarmLocation{District: "Nashik", State: "Maharashtra", Pincode: "422001"},
			SoilType: "black",
		})
		require.NoError(t, err)
		require.NotNil(t, u.Profile)
		require.True(t, u.Profile.Complete)
		require.True(t, u.ProfileComplete())
	})

	t.Run("rejects a non-positive farm size", func(t *testing.T) {
		svc, repo := newTestSessionService(t)
		seedUser(t, repo, &models.User{ID: "u1", Phone: testPhone, Active: true})

		_, err := svc.UpdateFarmerProfile(ctx, "u1", models.FarmerProfile{FarmSize: 0})
		require.Error(t, err)
	})
}

func TestLogout(t *testing.T) {
	svc, repo := newTestSessionService(t)
	ctx := context.Background()

	authUser, err := svc.MaterializeByPhone(ctx, testPhone, otp.PurposeRegistration)
	require.NoError(t, err)

	stored, err := repo.GetByID(authUser.User.ID)
	require.NoError(t, err)
	require.NotEmpty(t, stored.TokenHash)

	require.NoError(t, svc.Logout(ctx, authUser.User.ID))

	stored, err = repo.GetByID(authUser.User.ID)
	require.NoError(t, err)
	require.Empty(t, stored.TokenHash, "logout must clear the stored token hash")
}

func TestGetProfile(t *testing.T) {
	svc, repo := newTestSessionService(t)
	seedUser(t, repo, &models.User{ID: "u1", Phone: testPhone, Name: "Asha", Active: true})

	u, err := svc.GetProfile(context.Background(), "u1")
	require.NoError(t, err)
	require.Equal(t, "Asha", u.Name)

	_, err = svc.GetProfile(context.Background(), "missing")
	require.ErrorIs(t, err, ErrUserNotFound)
}
