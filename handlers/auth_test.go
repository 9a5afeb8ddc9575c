package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"agrowatch/models"
	"agrowatch/services/otp"
	"agrowatch/services/user"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

type fakeOTPService struct {
	sendResult *otp.SendResult
	sendErr    error
	verifyUser *models.AuthenticatedUser
	verifyErr  error
	statuses   []otp.ProviderStatus

	sendCalls   int
	verifyCalls int
	lastPurpose otp.Purpose
	lastCode    string
}

func (f *fakeOTPService) SendChallenge(ctx context.Context, rawPhone string, purpose otp.Purpose) (*otp.SendResult, error) {
	f.sendCalls++
	f.lastPurpose = purpose
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	return f.sendResult, nil
}

func (f *fakeOTPService) VerifyChallenge(ctx context.Context, rawPhone, code string, purpose otp.Purpose) (*models.AuthenticatedUser, error) {
	f.verifyCalls++
	f.lastPurpose = purpose
	f.lastCode = code
	if f.verifyErr != nil {
		return nil, f.verifyErr
	}
	return f.verifyUser, nil
}

func (f *fakeOTPService) ProviderStatus() []otp.ProviderStatus { return f.statuses }
func (f *fakeOTPService) Close()                               {}

type fakeSessionService struct {
	authUser  *models.AuthenticatedUser
	loginErr  error
	logoutErr error
}

func (f *fakeSessionService) MaterializeByPhone(ctx context.Context, phone string, purpose otp.Purpose) (*models.AuthenticatedUser, error) {
	return f.authUser, f.loginErr
}

func (f *fakeSessionService) MaterializeIdentity(ctx context.Context, signIn *otp.IdentitySignIn) (*models.AuthenticatedUser, error) {
	return f.authUser, f.loginErr
}

func (f *fakeSessionService) PasswordLogin(ctx context.Context, rawPhone, password string) (*models.AuthenticatedUser, error) {
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return f.authUser, nil
}

func (f *fakeSessionService) FirebaseLogin(ctx context.Context, idToken string) (*models.AuthenticatedUser, error) {
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return f.authUser, nil
}

func (f *fakeSessionService) CompleteRegistration(ctx context.Context, userID string, details user.RegistrationDetails) (*models.User, error) {
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return f.authUser.User, nil
}

func (f *fakeSessionService) GetProfile(ctx context.Context, userID string) (*models.User, error) {
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return f.authUser.User, nil
}

func (f *fakeSessionService) UpdateFarmerProfile(ctx context.Context, userID string, profile models.FarmerProfile) (*models.User, error) {
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return f.authUser.User, nil
}

func (f *fakeSessionService) Logout(ctx context.Context, userID string) error { return f.logoutErr }

func newAuthTestRouter(otpSvc otp.Service, users user.SessionService, gate otp.ResendGate) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewAuthHandler(otpSvc, users, gate, otp.NewPhoneValidator("+91"))

	r := gin.New()
	r.POST("/api/auth/send-otp", h.SendOTPHandler)
	r.POST("/api/auth/verify-otp", h.VerifyOTPHandler)
	r.POST("/api/auth/login", h.LoginHandler)
	r.POST("/api/auth/firebase-login", h.FirebaseLoginHandler)
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var parsed map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &parsed))
	}
	return w, parsed
}

func sampleAuthUser() *models.AuthenticatedUser {
	return &models.AuthenticatedUser{
		User:                      &models.User{ID: "u1", Phone: "+919876543210", Role: models.RoleFarmer},
		AccessToken:               "access-token",
		RequiresProfileCompletion: true,
	}
}

func TestSendOTPHandler(t *testing.T) {
	t.Run("happy path", func(t *testing.T) {
		svc := &fakeOTPService{sendResult: &otp.SendResult{
			ChallengeID: "ch-1",
			Phone:       "+919876543210",
			Provider:    "twilio_verify",
			ExpiresAt:   time.Now().Add(5 * time.Minute),
			ResendAfter: time.Minute,
		}}
		r := newAuthTestRouter(svc, &fakeSessionService{}, otp.NewMemoryResendGate(time.Minute))

		w, body := doJSON(t, r, http.MethodPost, "/api/auth/send-otp",
			`{"phone": "9876543210", "purpose": "login"}`)
		require.Equal(t, http.StatusOK, w.Code)
		require.Equal(t, true, body["success"])
		require.Equal(t, "+919876543210", body["phone"])
		require.Equal(t, float64(60), body["resend_after_seconds"])
		require.Equal(t, 1, svc.sendCalls)
		require.Equal(t, otp.PurposeLogin, svc.lastPurpose)
	})

	t.Run("missing fields", func(t *testing.T) {
		svc := &fakeOTPService{}
		r := newAuthTestRouter(svc, &fakeSessionService{}, otp.NewMemoryResendGate(time.Minute))

		w, _ := doJSON(t, r, http.MethodPost, "/api/auth/send-otp", `{"phone": "9876543210"}`)
		require.Equal(t, http.StatusBadRequest, w.Code)
		require.Equal(t, 0, svc.sendCalls)
	})

	t.Run("unknown purpose", func(t *testing.T) {
		svc := &fakeOTPService{}
		r := newAuthTestRouter(svc, &fakeSessionService{}, otp.NewMemoryResendGate(time.Minute))

		w, _ := doJSON(t, r, http.MethodPost, "/api/auth/send-otp",
			`{"phone": "9876543210", "purpose": "password_reset"}`)
		require.Equal(t, http.StatusBadRequest, w.Code)
		require.Equal(t, 0, svc.sendCalls)
	})

	t.Run("invalid phone", func(t *testing.T) {
		svc := &fakeOTPService{}
		r := newAuthTestRouter(svc, &fakeSessionService{}, otp.NewMemoryResendGate(time.Minute))

		w, _ := doJSON(t, r, http.MethodPost, "/api/auth/send-otp",
			`{"phone": "not-a-phone", "purpose": "login"}`)
		require.Equal(t, http.StatusBadRequest, w.Code)
		require.Equal(t, 0, svc.sendCalls)
	})

	t.Run("cooldown yields 429 with retry hint", func(t *testing.T) {
		svc := &fakeOTPService{}
		gate := otp.NewMemoryResendGate(time.Minute)
		require.NoError(t, gate.Start(context.Background(), "+919876543210"))
		r := newAuthTestRouter(svc, &fakeSessionService{}, gate)

		w, body := doJSON(t, r, http.MethodPost, "/api/auth/send-otp",
			`{"phone": "9876543210", "purpose": "login"}`)
		require.Equal(t, http.StatusTooManyRequests, w.Code)
		require.Greater(t, body["retry_after_seconds"], float64(0))
		require.Equal(t, 0, svc.sendCalls, "a closed gate must not reach the provider chain")
	})

	t.Run("no provider available", func(t *testing.T) {
		svc := &fakeOTPService{sendErr: otp.ErrNoProviderAvailable}
		r := newAuthTestRouter(svc, &fakeSessionService{}, otp.NewMemoryResendGate(time.Minute))

		w, _ := doJSON(t, r, http.MethodPost, "/api/auth/send-otp",
			`{"phone": "9876543210", "purpose": "login"}`)
		require.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestVerifyOTPHandler(t *testing.T) {
	t.Run("happy path", func(t *testing.T) {
		svc := &fakeOTPService{verifyUser: sampleAuthUser()}
		r := newAuthTestRouter(svc, &fakeSessionService{}, otp.NewMemoryResendGate(time.Minute))

		w, body := doJSON(t, r, http.MethodPost, "/api/auth/verify-otp",
			`{"phone": "9876543210", "code": "482913", "purpose": "registration"}`)
		require.Equal(t, http.StatusOK, w.Code)
		require.Equal(t, true, body["success"])
		require.Equal(t, "access-token", body["access_token"])
		require.Equal(t, true, body["requires_profile_completion"])
		require.Equal(t, otp.PurposeRegistration, svc.lastPurpose)
		require.Equal(t, "482913", svc.lastCode)
	})

	t.Run("error mapping", func(t *testing.T) {
		cases := []struct {
			name string
			err  error
			code int
		}{
			{"no challenge", otp.ErrNoChallenge, http.StatusBadRequest},
			{"malformed code", otp.ErrMalformedCode, http.StatusBadRequest},
			{"wrong code", otp.ErrInvalidCode, http.StatusUnauthorized},
			{"attempts exhausted", otp.ErrTooManyAttempts, http.StatusTooManyRequests},
			{"login without account", user.ErrUserNotFound, http.StatusNotFound},
			{"registration with account", user.ErrUserExists, http.StatusConflict},
			{"deactivated account", user.ErrUserInactive, http.StatusForbidden},
			{"identity platform down", user.ErrIdentityUnavailable, http.StatusServiceUnavailable},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				svc := &fakeOTPService{verifyErr: tc.err}
				r := newAuthTestRouter(svc, &fakeSessionService{}, otp.NewMemoryResendGate(time.Minute))

				w, body := doJSON(t, r, http.MethodPost, "/api/auth/verify-otp",
					`{"phone": "9876543210", "code": "482913", "purpose": "login"}`)
				require.Equal(t, tc.code, w.Code)
				require.NotEmpty(t, body["error"])
			})
		}
	})

	t.Run("unknown purpose is rejected before the service", func(t *testing.T) {
		svc := &fakeOTPService{}
		r := newAuthTestRouter(svc, &fakeSessionService{}, otp.NewMemoryResendGate(time.Minute))

		w, _ := doJSON(t, r, http.MethodPost, "/api/auth/verify-otp",
			`{"phone": "9876543210", "code": "482913", "purpose": "reset"}`)
		require.Equal(t, http.StatusBadRequest, w.Code)
		require.Equal(t, 0, svc.verifyCalls)
	})
}

func TestLoginHandler(t *testing.T) {
	t.Run("happy path", func(t *testing.T) {
		users := &fakeSessionService{authUser: sampleAuthUser()}
		r := newAuthTestRouter(&fakeOTPService{}, users, otp.NewMemoryResendGate(time.Minute))

		w, body := doJSON(t, r, http.MethodPost, "/api/auth/login",
			`{"phone": "9876543210", "password": "s3cret-pass"}`)
		require.Equal(t, http.StatusOK, w.Code)
		require.Equal(t, "access-token", body["access_token"])
	})

	t.Run("unknown account", func(t *testing.T) {
		users := &fakeSessionService{loginErr: user.ErrUserNotFound}
		r := newAuthTestRouter(&fakeOTPService{}, users, otp.NewMemoryResendGate(time.Minute))

		w, _ := doJSON(t, r, http.MethodPost, "/api/auth/login",
			`{"phone": "9876543210", "password": "s3cret-pass"}`)
		require.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("wrong password", func(t *testing.T) {
		users := &fakeSessionService{loginErr: user.ErrInvalidCredentials}
		r := newAuthTestRouter(&fakeOTPService{}, users, otp.NewMemoryResendGate(time.Minute))

		w, _ := doJSON(t, r, http.MethodPost, "/api/auth/login",
			`{"phone": "9876543210", "password": "wrong"}`)
		require.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestFirebaseLoginHandler(t *testing.T) {
	t.Run("happy path", func(t *testing.T) {
		users := &fakeSessionService{authUser: sampleAuthUser()}
		r := newAuthTestRouter(&fakeOTPService{}, users, otp.NewMemoryResendGate(time.Minute))

		w, body := doJSON(t, r, http.MethodPost, "/api/auth/firebase-login",
			`{"id_token": "fb-token"}`)
		require.Equal(t, http.StatusOK, w.Code)
		require.Equal(t, "access-token", body["access_token"])
	})

	t.Run("identity platform not configured", func(t *testing.T) {
		users := &fakeSessionService{loginErr: user.ErrIdentityUnavailable}
		r := newAuthTestRouter(&fakeOTPService{}, users, otp.NewMemoryResendGate(time.Minute))

		w, _ := doJSON(t, r, http.MethodPost, "/api/auth/firebase-login",
			`{"id_token": "fb-token"}`)
		require.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("rejected token", func(t *testing.T) {
		users := &fakeSessionService{loginErr: context.DeadlineExceeded}
		r := newAuthTestRouter(&fakeOTPService{}, users, otp.NewMemoryResendGate(time.Minute))

		w, _ := doJSON(t, r, http.MethodPost, "/api/auth/firebase-login",
			`{"id_token": "bad-token"}`)
		require.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestProviderStatusHandler(t *testing.T) {
	svc := &fakeOTPService{statuses: []otp.ProviderStatus{
		{Name: "twilio_verify", Configured: true},
		{Name: "twilio_sms", Configured: false},
		{Name: "firebase_phone", Configured: false},
	}}
	gin.SetMode(gin.TestMode)
	h := NewStatusHandler(svc)
	r := gin.New()
	r.GET("/api/otp/status", h.ProviderStatusHandler)

	w, body := doJSON(t, r, http.MethodGet, "/api/otp/status", "")
	require.Equal(t, http.StatusOK, w.Code)

	providers, ok := body["providers"].([]any)
	require.True(t, ok)
	require.Len(t, providers, 3)
	first := providers[0].(map[string]any)
	require.Equal(t, "twilio_verify", first["name"])
	require.Equal(t, true, first["configured"])
}
