package handlers

import (
	userRepoPkg "agrowatch/database/repository/user"

	"github.com/gin-gonic/gin"
)

// HandlerBundle groups all endpoint handlers into one struct so route
// registration takes a single argument.
type HandlerBundle struct {
	UserRepo userRepoPkg.UserRepository

	// Public auth endpoints
	SendOTPHandler       gin.HandlerFunc
	VerifyOTPHandler     gin.HandlerFunc
	LoginHandler         gin.HandlerFunc
	FirebaseLoginHandler gin.HandlerFunc

	// Authenticated account endpoints
	GetMeHandler               gin.HandlerFunc
	RegisterHandler            gin.HandlerFunc
	UpdateFarmerProfileHandler gin.HandlerFunc
	LogoutHandler              gin.HandlerFunc

	// Operational endpoints
	ProviderStatusHandler gin.HandlerFunc
	HealthHandler         gin.HandlerFunc
}
