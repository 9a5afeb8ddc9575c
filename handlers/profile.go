package handlers

import (
	"errors"
	"net/http"

	"agrowatch/models"
	"agrowatch/services/user"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AccountHandler serves the authenticated account endpoints. The auth
// middleware has already placed "userID" in the context by the time
// these run.
type AccountHandler struct {
	Users user.SessionService
}

func NewAccountHandler(users user.SessionService) *AccountHandler {
	return &AccountHandler{Users: users}
}

// GetMeHandler handles GET /api/auth/me.
func (h *AccountHandler) GetMeHandler(c *gin.Context) {
	logger := getLogger(c)

	userID, exists := c.Get("userID")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	usr, err := h.Users.GetProfile(c.Request.Context(), userID.(string))
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		logger.Error("Failed to get user profile", zap.String("userID", userID.(string)), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to retrieve profile"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":                        usr,
		"requires_profile_completion": !usr.ProfileComplete(),
	})
}

type registerRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email"`
	Aadhar   string `json:"aadhar"`
	Password string `json:"password"`
}

// RegisterHandler handles POST /api/auth/register. Verification has
// already created the minimal record; this fills it in.
func (h *AccountHandler) RegisterHandler(c *gin.Context) {
	logger := getLogger(c)

	userID, exists := c.Get("userID")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	usr, err := h.Users.CompleteRegistration(c.Request.Context(), userID.(string), user.RegistrationDetails{
		Name:     req.Name,
		Email:    req.Email,
		Aadhar:   req.Aadhar,
		Password: req.Password,
	})
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		logger.Error("Failed to complete registration", zap.String("userID", userID.(string)), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to complete registration"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":                     true,
		"message":                     "registration completed",
		"user":                        usr,
		"requires_profile_completion": !usr.ProfileComplete(),
	})
}

// UpdateFarmerProfileHandler handles PUT /api/auth/farmer-profile.
func (h *AccountHandler) UpdateFarmerProfileHandler(c *gin.Context) {
	logger := getLogger(c)

	userID, exists := c.Get("userID")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req models.FarmerProfile
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.FarmSize <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "farm size must be greater than zero"})
		return
	}

	usr, err := h.Users.UpdateFarmerProfile(c.Request.Context(), userID.(string), req)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		logger.Error("Failed to update farmer profile", zap.String("userID", userID.(string)), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update farmer profile"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "farmer profile updated",
		"user":    usr,
	})
}
