package routes

import (
	"time"

	"agrowatch/handlers"
	"agrowatch/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// RegisterAuthRoutes registers the phone verification and session
// endpoints.
func RegisterAuthRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	api := r.Group("/api/auth")
	{
		api.POST("/send-otp", hb.SendOTPHandler)
		api.POST("/verify-otp", hb.VerifyOTPHandler)
		api.POST("/login", hb.LoginHandler)
		api.POST("/firebase-login", hb.FirebaseLoginHandler)

		// Protected routes (Require Authentication)
		api.Use(middleware.JWTAuthUserMiddleware(hb.UserRepo))
		api.GET("/me", hb.GetMeHandler)
		api.POST("/register", hb.RegisterHandler)
		api.PUT("/farmer-profile", hb.UpdateFarmerProfileHandler)
		api.POST("/logout", hb.LogoutHandler)
	}
}

// RegisterOTPStatusRoute exposes provider configuration for operators.
func RegisterOTPStatusRoute(r *gin.Engine, hb *handlers.HandlerBundle) {
	r.GET("/api/otp/status", hb.ProviderStatusHandler)
}

// RegisterHealthRoute registers a health-check endpoint.
func RegisterHealthRoute(r *gin.Engine, hb *handlers.HandlerBundle) {
	r.GET("/health", hb.HealthHandler)
}

// RegisterRoutes centralizes registration of all endpoints and middleware.
func RegisterRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	// Setup global middleware (e.g., CORS) here.
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	RegisterAuthRoutes(r, hb)
	RegisterOTPStatusRoute(r, hb)
	RegisterHealthRoute(r, hb)
}
