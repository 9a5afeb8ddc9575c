package handlers

import (
	"errors"
	"net/http"
	"time"

	"agrowatch/services/otp"
	"agrowatch/services/user"
	"agrowatch/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AuthHandler serves the phone verification and session endpoints.
type AuthHandler struct {
	OTP       otp.Service
	Users     user.SessionService
	Gate      otp.ResendGate
	Validator *otp.PhoneValidator
}

func NewAuthHandler(otpSvc otp.Service, users user.SessionService, gate otp.ResendGate, validator *otp.PhoneValidator) *AuthHandler {
	return &AuthHandler{OTP: otpSvc, Users: users, Gate: gate, Validator: validator}
}

type sendOTPRequest struct {
	Phone   string `json:"phone" binding:"required"`
	Purpose string `json:"purpose" binding:"required"`
}

// SendOTPHandler handles POST /api/auth/send-otp.
func (h *AuthHandler) SendOTPHandler(c *gin.Context) {
	logger := getLogger(c)

	var req sendOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	purpose, err := otp.ParsePurpose(req.Purpose)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	phone, err := h.Validator.Normalize(req.Phone)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Check the resend cooldown before spending provider quota. A gate
	// read failure is logged and treated as open, same as the auth
	// cache fallback.
	if h.Gate != nil {
		remaining, err := h.Gate.Remaining(c.Request.Context(), phone)
		if err != nil {
			logger.Warn("Resend gate unavailable, allowing send",
				zap.String("phone", utils.MaskPhone(phone)), zap.Error(err))
		} else if remaining > 0 {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":               "please wait before requesting another code",
				"retry_after_seconds": int(remaining.Round(time.Second).Seconds()),
			})
			return
		}
	}

	res, err := h.OTP.SendChallenge(c.Request.Context(), phone, purpose)
	if err != nil {
		switch {
		case errors.Is(err, otp.ErrInvalidPhone), errors.Is(err, otp.ErrInvalidPurpose):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, otp.ErrNoProviderAvailable):
			logger.Error("No provider could deliver the code",
				zap.String("phone", utils.MaskPhone(phone)), zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "unable to send verification code, please try again later"})
		default:
			logger.Error("Send OTP failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to send verification code"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":              true,
		"message":              "verification code sent",
		"phone":                res.Phone,
		"expires_at":           res.ExpiresAt,
		"resend_after_seconds": int(res.ResendAfter.Seconds()),
	})
}

type verifyOTPRequest struct {
	Phone   string `json:"phone" binding:"required"`
	Code    string `json:"code" binding:"required"`
	Purpose string `json:"purpose" binding:"required"`
}

// VerifyOTPHandler handles POST /api/auth/verify-otp. On success the
// response carries the session token and the user record.
func (h *AuthHandler) VerifyOTPHandler(c *gin.Context) {
	logger := getLogger(c)

	var req verifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	purpose, err := otp.ParsePurpose(req.Purpose)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	authUser, err := h.OTP.VerifyChallenge(c.Request.Context(), req.Phone, req.Code, purpose)
	if err != nil {
		status := verifyStatus(err)
		if status == http.StatusInternalServerError {
			logger.Error("Verify OTP failed", zap.Error(err))
			c.JSON(status, gin.H{"error": "verification failed, please try again"})
			return
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":                     true,
		"message":                     "verification successful",
		"user":                        authUser.User,
		"access_token":                authUser.AccessToken,
		"requires_profile_completion": authUser.RequiresProfileCompletion,
	})
}

// verifyStatus maps the known verification failures onto HTTP codes.
func verifyStatus(err error) int {
	switch {
	case errors.Is(err, otp.ErrInvalidPhone),
		errors.Is(err, otp.ErrInvalidPurpose),
		errors.Is(err, otp.ErrMalformedCode),
		errors.Is(err, otp.ErrNoChallenge):
		return http.StatusBadRequest
	case errors.Is(err, otp.ErrInvalidCode):
		return http.StatusUnauthorized
	case errors.Is(err, otp.ErrTooManyAttempts):
		return http.StatusTooManyRequests
	case errors.Is(err, user.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, user.ErrUserExists):
		return http.StatusConflict
	case errors.Is(err, user.ErrUserInactive):
		return http.StatusForbidden
	case errors.Is(err, user.ErrIdentityUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

type loginRequest struct {
	Phone    string `json:"phone" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginHandler handles POST /api/auth/login, the password fallback for
// accounts that have one set.
func (h *AuthHandler) LoginHandler(c *gin.Context) {
	logger := getLogger(c)

	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	authUser, err := h.Users.PasswordLogin(c.Request.Context(), req.Phone, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, otp.ErrInvalidPhone):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, user.ErrUserNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, user.ErrInvalidCredentials):
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		case errors.Is(err, user.ErrUserInactive):
			c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
		default:
			logger.Error("Password login failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed, please try again"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":                     true,
		"message":                     "login successful",
		"user":                        authUser.User,
		"access_token":                authUser.AccessToken,
		"requires_profile_completion": authUser.RequiresProfileCompletion,
	})
}

type firebaseLoginRequest struct {
	IDToken string `json:"id_token" binding:"required"`
}

// FirebaseLoginHandler handles POST /api/auth/firebase-login for
// clients that completed phone verification against Firebase directly.
func (h *AuthHandler) FirebaseLoginHandler(c *gin.Context) {
	logger := getLogger(c)

	var req firebaseLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	authUser, err := h.Users.FirebaseLogin(c.Request.Context(), req.IDToken)
	if err != nil {
		switch {
		case errors.Is(err, user.ErrIdentityUnavailable):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		case errors.Is(err, user.ErrUserInactive):
			c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
		default:
			logger.Warn("Firebase login rejected", zap.Error(err))
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid identity token"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":                     true,
		"message":                     "login successful",
		"user":                        authUser.User,
		"access_token":                authUser.AccessToken,
		"requires_profile_completion": authUser.RequiresProfileCompletion,
	})
}

// LogoutHandler handles POST /api/auth/logout. It clears the stored
// token hash, revoking every token minted for the user.
func (h *AuthHandler) LogoutHandler(c *gin.Context) {
	logger := getLogger(c)

	userID, exists := c.Get("userID")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	if err := h.Users.Logout(c.Request.Context(), userID.(string)); err != nil {
		logger.Error("Logout failed", zap.String("userID", userID.(string)), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "logout failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "logged out"})
}
